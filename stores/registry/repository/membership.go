package repository

import (
	"encoding/json"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/base/log"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/keys"
	"github.com/talmarket/goapi/domain/registry"
	"github.com/talmarket/goapi/service/statedb"
)

type membershipImpl struct {
	state *statedb.StateDB
}

func NewMembershipRepo(state *statedb.StateDB) registry.MembershipRepo {
	return &membershipImpl{state}
}

func (im *membershipImpl) key(kind registry.Kind, account domain.Address) string {
	return keys.CustomKey("/", "registry", "membership", string(kind), account.ToLowerStr())
}

func (im *membershipImpl) load(c ctx.Ctx, kind registry.Kind, account domain.Address) ([]domain.TokenId, error) {
	raw, err := im.state.Get(im.key(kind, account))
	if err == statedb.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var ids []domain.TokenId
	if err := json.Unmarshal(raw, &ids); err != nil {
		c.WithField("err", err).Error("json.Unmarshal failed")
		return nil, err
	}
	return ids, nil
}

func (im *membershipImpl) store(c ctx.Ctx, kind registry.Kind, account domain.Address, ids []domain.TokenId) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		c.WithField("err", err).Error("json.Marshal failed")
		return err
	}
	im.state.Put(im.key(kind, account), raw)
	return nil
}

func (im *membershipImpl) Add(c ctx.Ctx, kind registry.Kind, account domain.Address, tokenId domain.TokenId) error {
	ids, err := im.load(c, kind, account)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == tokenId {
			return nil
		}
	}
	return im.store(c, kind, account, append(ids, tokenId))
}

func (im *membershipImpl) Remove(c ctx.Ctx, kind registry.Kind, account domain.Address, tokenId domain.TokenId) error {
	ids, err := im.load(c, kind, account)
	if err != nil {
		return err
	}
	for i, id := range ids {
		if id == tokenId {
			// swap with last then truncate, order is not preserved
			ids[i] = ids[len(ids)-1]
			return im.store(c, kind, account, ids[:len(ids)-1])
		}
	}
	c.WithFields(log.Fields{
		"kind":    kind,
		"account": account,
		"tokenId": tokenId,
	}).Debug("membership entry already absent")
	return nil
}

func (im *membershipImpl) List(c ctx.Ctx, kind registry.Kind, account domain.Address) ([]domain.TokenId, error) {
	return im.load(c, kind, account)
}
