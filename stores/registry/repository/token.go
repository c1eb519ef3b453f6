package repository

import (
	"strconv"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/keys"
	"github.com/talmarket/goapi/domain/registry"
	"github.com/talmarket/goapi/service/statedb"
)

type tokenImpl struct {
	state *statedb.StateDB
}

func NewTokenRepo(state *statedb.StateDB) registry.TokenRepo {
	return &tokenImpl{state}
}

func (im *tokenImpl) counterKey() string {
	return keys.CustomKey("/", "registry", "token", "counter")
}

func (im *tokenImpl) uriKey(id domain.TokenId) string {
	return keys.CustomKey("/", "registry", "token", "uri", id.String())
}

// NextTokenId increments and returns the token-id counter. Ids start at 1.
func (im *tokenImpl) NextTokenId(c ctx.Ctx) (domain.TokenId, error) {
	var counter uint64
	raw, err := im.state.Get(im.counterKey())
	if err == nil {
		counter, err = strconv.ParseUint(string(raw), 10, 64)
		if err != nil {
			c.WithField("err", err).Error("corrupt token counter")
			return "", err
		}
	} else if err != statedb.ErrNotFound {
		return "", err
	}

	counter++
	im.state.Put(im.counterKey(), []byte(strconv.FormatUint(counter, 10)))
	return domain.TokenIdFromUint64(counter), nil
}

func (im *tokenImpl) SetUri(c ctx.Ctx, id domain.TokenId, uri string) error {
	im.state.Put(im.uriKey(id), []byte(uri))
	return nil
}

func (im *tokenImpl) Uri(c ctx.Ctx, id domain.TokenId) (string, error) {
	raw, err := im.state.Get(im.uriKey(id))
	if err == statedb.ErrNotFound {
		return "", domain.ErrNotFound
	} else if err != nil {
		return "", err
	}
	return string(raw), nil
}
