package repository

import (
	"encoding/json"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/keys"
	"github.com/talmarket/goapi/domain/market"
	"github.com/talmarket/goapi/service/statedb"
)

type settingsImpl struct {
	state *statedb.StateDB
}

func NewSettingsRepo(state *statedb.StateDB) market.SettingsRepo {
	return &settingsImpl{state}
}

func (im *settingsImpl) feesKey() string {
	return keys.CustomKey("/", "market", "settings", "fees")
}

func (im *settingsImpl) ownerKey() string {
	return keys.CustomKey("/", "market", "settings", "owner")
}

func (im *settingsImpl) FeePercents(c ctx.Ctx) (*market.FeePercents, error) {
	raw, err := im.state.Get(im.feesKey())
	if err == statedb.ErrNotFound {
		return &market.FeePercents{}, nil
	} else if err != nil {
		return nil, err
	}
	res := &market.FeePercents{}
	if err := json.Unmarshal(raw, res); err != nil {
		c.WithField("err", err).Error("json.Unmarshal failed")
		return nil, err
	}
	return res, nil
}

func (im *settingsImpl) SetFeePercents(c ctx.Ctx, fees *market.FeePercents) error {
	raw, err := json.Marshal(fees)
	if err != nil {
		c.WithField("err", err).Error("json.Marshal failed")
		return err
	}
	im.state.Put(im.feesKey(), raw)
	return nil
}

func (im *settingsImpl) Owner(c ctx.Ctx) (domain.Address, error) {
	raw, err := im.state.Get(im.ownerKey())
	if err == statedb.ErrNotFound {
		return domain.EmptyAddress, nil
	} else if err != nil {
		return "", err
	}
	return domain.Address(raw), nil
}

func (im *settingsImpl) SetOwner(c ctx.Ctx, owner domain.Address) error {
	im.state.Put(im.ownerKey(), []byte(owner.ToLower()))
	return nil
}
