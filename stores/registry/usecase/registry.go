package usecase

import (
	"math/big"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/base/log"
	"github.com/talmarket/goapi/base/reentrancy"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/ledger"
	"github.com/talmarket/goapi/domain/registry"
	"github.com/talmarket/goapi/service/statedb"
)

type RegistryUseCaseCfg struct {
	State      *statedb.StateDB
	Membership registry.MembershipRepo
	Token      registry.TokenRepo
	MultiToken ledger.MultiToken
}

type impl struct {
	state      *statedb.StateDB
	guard      *reentrancy.Guard
	membership registry.MembershipRepo
	token      registry.TokenRepo
	multiToken ledger.MultiToken
}

func New(cfg *RegistryUseCaseCfg) registry.Usecase {
	return &impl{
		state:      cfg.State,
		guard:      reentrancy.NewGuard(),
		membership: cfg.Membership,
		token:      cfg.Token,
		multiToken: cfg.MultiToken,
	}
}

// run wraps one state-mutating entry point: reentrancy guard, snapshot,
// all-or-nothing commit.
func (im *impl) run(c ctx.Ctx, fn func(ctx.Ctx) error) error {
	if err := im.guard.Enter(); err != nil {
		return err
	}
	defer im.guard.Leave()

	snap := im.state.Snapshot()
	if err := fn(c); err != nil {
		im.state.RevertToSnapshot(snap)
		return err
	}
	if err := im.state.Commit(); err != nil {
		c.WithField("err", err).Error("state.Commit failed")
		im.state.RevertToSnapshot(snap)
		return err
	}
	return nil
}

// AddMembership and RemoveMembership are pure bookkeeping and take any
// account, the zero address included, without complaint.
func (im *impl) AddMembership(c ctx.Ctx, kind registry.Kind, account domain.Address, tokenId domain.TokenId) error {
	if !kind.IsValid() {
		return domain.ErrInvalidArgument
	}
	return im.run(c, func(c ctx.Ctx) error {
		return im.membership.Add(c, kind, account, tokenId)
	})
}

func (im *impl) RemoveMembership(c ctx.Ctx, kind registry.Kind, account domain.Address, tokenId domain.TokenId) error {
	if !kind.IsValid() {
		return domain.ErrInvalidArgument
	}
	return im.run(c, func(c ctx.Ctx) error {
		return im.membership.Remove(c, kind, account, tokenId)
	})
}

func (im *impl) Membership(c ctx.Ctx, kind registry.Kind, account domain.Address) ([]domain.TokenId, error) {
	if !kind.IsValid() {
		return nil, domain.ErrInvalidArgument
	}
	return im.membership.List(c, kind, account)
}

func (im *impl) Mint(c ctx.Ctx, caller domain.Address, amount *big.Int, uri string) (domain.TokenId, error) {
	if caller.IsEmpty() {
		return "", domain.ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", domain.ErrZeroAmount
	}

	var id domain.TokenId
	err := im.run(c, func(c ctx.Ctx) error {
		var err error
		if id, err = im.token.NextTokenId(c); err != nil {
			c.WithField("err", err).Error("token.NextTokenId failed")
			return err
		}
		if err := im.token.SetUri(c, id, uri); err != nil {
			c.WithField("err", err).Error("token.SetUri failed")
			return err
		}
		if err := im.multiToken.Mint(c, caller, id, amount); err != nil {
			c.WithField("err", err).Error("multiToken.Mint failed")
			return err
		}
		if err := im.membership.Add(c, registry.KindFresh, caller, id); err != nil {
			c.WithField("err", err).Error("membership.Add failed")
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	c.WithFields(log.Fields{
		"caller":  caller,
		"tokenId": id,
		"amount":  amount.String(),
	}).Info("token minted")
	return id, nil
}

func (im *impl) Uri(c ctx.Ctx, id domain.TokenId) (string, error) {
	return im.token.Uri(c, id)
}
