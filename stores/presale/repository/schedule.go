package repository

import (
	"encoding/json"
	"strconv"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/keys"
	"github.com/talmarket/goapi/domain/presale"
	"github.com/talmarket/goapi/service/statedb"
)

type scheduleImpl struct {
	state *statedb.StateDB
}

func NewScheduleRepo(state *statedb.StateDB) presale.ScheduleRepo {
	return &scheduleImpl{state}
}

func (im *scheduleImpl) saleStartKey() string {
	return keys.CustomKey("/", "presale", "saleStart")
}

func (im *scheduleImpl) roundsKey() string {
	return keys.CustomKey("/", "presale", "rounds")
}

func (im *scheduleImpl) ownerKey() string {
	return keys.CustomKey("/", "presale", "owner")
}

func (im *scheduleImpl) SaleStart(c ctx.Ctx) (int64, error) {
	raw, err := im.state.Get(im.saleStartKey())
	if err == statedb.ErrNotFound {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	ts, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		c.WithField("err", err).Error("corrupt saleStart record")
		return 0, err
	}
	return ts, nil
}

func (im *scheduleImpl) SetSaleStart(c ctx.Ctx, ts int64) error {
	im.state.Put(im.saleStartKey(), []byte(strconv.FormatInt(ts, 10)))
	return nil
}

func (im *scheduleImpl) loadRounds(c ctx.Ctx) ([]*presale.Round, error) {
	raw, err := im.state.Get(im.roundsKey())
	if err == statedb.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var rounds []*presale.Round
	if err := json.Unmarshal(raw, &rounds); err != nil {
		c.WithField("err", err).Error("json.Unmarshal failed")
		return nil, err
	}
	return rounds, nil
}

func (im *scheduleImpl) storeRounds(c ctx.Ctx, rounds []*presale.Round) error {
	raw, err := json.Marshal(rounds)
	if err != nil {
		c.WithField("err", err).Error("json.Marshal failed")
		return err
	}
	im.state.Put(im.roundsKey(), raw)
	return nil
}

func (im *scheduleImpl) Rounds(c ctx.Ctx) ([]*presale.Round, error) {
	return im.loadRounds(c)
}

func (im *scheduleImpl) RoundCount(c ctx.Ctx) (int, error) {
	rounds, err := im.loadRounds(c)
	if err != nil {
		return 0, err
	}
	return len(rounds), nil
}

func (im *scheduleImpl) FindRound(c ctx.Ctx, round int) (*presale.Round, error) {
	rounds, err := im.loadRounds(c)
	if err != nil {
		return nil, err
	}
	if round < 1 || round > len(rounds) {
		return nil, domain.ErrInvalidRound
	}
	return rounds[round-1], nil
}

func (im *scheduleImpl) UpdateRound(c ctx.Ctx, round int, r *presale.Round) error {
	rounds, err := im.loadRounds(c)
	if err != nil {
		return err
	}
	if round < 1 || round > len(rounds) {
		return domain.ErrInvalidRound
	}
	rounds[round-1] = r
	return im.storeRounds(c, rounds)
}

func (im *scheduleImpl) AppendRound(c ctx.Ctx, r *presale.Round) error {
	rounds, err := im.loadRounds(c)
	if err != nil {
		return err
	}
	return im.storeRounds(c, append(rounds, r))
}

func (im *scheduleImpl) Owner(c ctx.Ctx) (domain.Address, error) {
	raw, err := im.state.Get(im.ownerKey())
	if err == statedb.ErrNotFound {
		return domain.EmptyAddress, nil
	} else if err != nil {
		return "", err
	}
	return domain.Address(raw), nil
}

func (im *scheduleImpl) SetOwner(c ctx.Ctx, owner domain.Address) error {
	im.state.Put(im.ownerKey(), []byte(owner.ToLower()))
	return nil
}
