package usecase

import (
	"math/big"
	"time"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/base/log"
	"github.com/talmarket/goapi/base/reentrancy"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/ledger"
	"github.com/talmarket/goapi/domain/presale"
	"github.com/talmarket/goapi/service/pricefeed"
	"github.com/talmarket/goapi/service/statedb"
)

// priceScale is the fixed-point scale of round reference prices, matching
// the oracle answer scale.
var priceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(8), nil)

type PresaleUseCaseCfg struct {
	State      *statedb.StateDB
	Schedule   presale.ScheduleRepo
	SaleToken  ledger.Fungible
	Stablecoin ledger.Fungible
	NativeCoin ledger.Fungible
	Feed       pricefeed.Feed
	Event      domain.EventRepo

	// PresaleAddr is the presale's own custody account holding the sale
	// token supply.
	PresaleAddr domain.Address
	// BridgeAddr is the only caller allowed to settle cash purchases.
	BridgeAddr domain.Address

	// Now overrides the clock, nil means time.Now.
	Now func() time.Time
}

type impl struct {
	state      *statedb.StateDB
	guard      *reentrancy.Guard
	schedule   presale.ScheduleRepo
	saleToken  ledger.Fungible
	stablecoin ledger.Fungible
	nativeCoin ledger.Fungible
	feed       pricefeed.Feed
	event      domain.EventRepo

	presaleAddr domain.Address
	bridgeAddr  domain.Address
	now         func() time.Time
}

func New(cfg *PresaleUseCaseCfg) presale.Usecase {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &impl{
		state:       cfg.State,
		guard:       reentrancy.NewGuard(),
		schedule:    cfg.Schedule,
		saleToken:   cfg.SaleToken,
		stablecoin:  cfg.Stablecoin,
		nativeCoin:  cfg.NativeCoin,
		feed:        cfg.Feed,
		event:       cfg.Event,
		presaleAddr: cfg.PresaleAddr.ToLower(),
		bridgeAddr:  cfg.BridgeAddr.ToLower(),
		now:         now,
	}
}

// run wraps one state-mutating entry point: reentrancy guard, snapshot,
// all-or-nothing commit, events persisted only after the commit lands.
func (im *impl) run(c ctx.Ctx, fn func(ctx.Ctx) ([]*domain.Event, error)) error {
	if err := im.guard.Enter(); err != nil {
		return err
	}
	defer im.guard.Leave()

	snap := im.state.Snapshot()
	evs, err := fn(c)
	if err != nil {
		im.state.RevertToSnapshot(snap)
		return err
	}
	if err := im.state.Commit(); err != nil {
		c.WithField("err", err).Error("state.Commit failed")
		im.state.RevertToSnapshot(snap)
		return err
	}

	for _, ev := range evs {
		if err := im.event.Insert(c, ev); err != nil {
			c.WithFields(log.Fields{
				"err":   err,
				"event": ev.Name,
			}).Warn("event.Insert failed")
		}
	}
	return nil
}

func (im *impl) requireOwner(c ctx.Ctx, caller domain.Address) (domain.Address, error) {
	owner, err := im.schedule.Owner(c)
	if err != nil {
		return "", err
	}
	if !caller.Equals(owner) {
		return "", domain.ErrNotOwner
	}
	return owner, nil
}

func (im *impl) Start(c ctx.Ctx, caller domain.Address) error {
	return im.run(c, func(c ctx.Ctx) ([]*domain.Event, error) {
		if _, err := im.requireOwner(c, caller); err != nil {
			return nil, err
		}
		start, err := im.schedule.SaleStart(c)
		if err != nil {
			return nil, err
		}
		if start != 0 {
			return nil, domain.ErrSaleAlreadyStarted
		}
		return nil, im.schedule.SetSaleStart(c, im.now().Unix())
	})
}

func (im *impl) CurrentRound(c ctx.Ctx) (int, error) {
	start, err := im.schedule.SaleStart(c)
	if err != nil {
		return 0, err
	}
	if start == 0 {
		return 0, nil
	}
	rounds, err := im.schedule.Rounds(c)
	if err != nil {
		return 0, err
	}
	now := im.now().Unix()
	for i, r := range rounds {
		if start+r.Length >= now {
			return i + 1, nil
		}
	}
	return len(rounds), nil
}

func (im *impl) RoundFinished(c ctx.Ctx, round int) (bool, error) {
	start, err := im.schedule.SaleStart(c)
	if err != nil {
		return false, err
	}
	if start == 0 {
		return false, domain.ErrSaleNotStarted
	}
	count, err := im.schedule.RoundCount(c)
	if err != nil {
		return false, err
	}
	if round < 1 || round > count {
		return false, domain.ErrInvalidRound
	}
	// the last round stays open forever
	if round == count {
		return false, nil
	}
	r, err := im.schedule.FindRound(c, round)
	if err != nil {
		return false, err
	}
	return start+r.Length <= im.now().Unix(), nil
}

func (im *impl) Rounds(c ctx.Ctx) ([]*presale.Round, error) {
	return im.schedule.Rounds(c)
}

// activeRound validates that the round can sell `amount` right now and
// returns it.
func (im *impl) activeRound(c ctx.Ctx, round int, amount *big.Int) (*presale.Round, error) {
	finished, err := im.RoundFinished(c, round)
	if err != nil {
		return nil, err
	}
	if finished {
		return nil, domain.ErrRoundFinished
	}
	r, err := im.schedule.FindRound(c, round)
	if err != nil {
		return nil, err
	}
	if r.RemainingSupply == nil || r.RemainingSupply.Cmp(amount) < 0 {
		return nil, domain.ErrInsufficientRoundSupply
	}
	return r, nil
}

func (im *impl) consumeSupply(c ctx.Ctx, round int, r *presale.Round, amount *big.Int) error {
	return im.schedule.UpdateRound(c, round, &presale.Round{
		Length:          r.Length,
		ReferencePrice:  r.ReferencePrice,
		RemainingSupply: new(big.Int).Sub(r.RemainingSupply, amount),
	})
}

func (im *impl) BuyWithNativeCoin(c ctx.Ctx, buyer domain.Address, amount *big.Int, round int, payment *big.Int) error {
	if buyer.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrZeroAmount
	}
	if payment == nil || payment.Sign() < 0 {
		return domain.ErrInvalidArgument
	}

	return im.run(c, func(c ctx.Ctx) ([]*domain.Event, error) {
		r, err := im.activeRound(c, round, amount)
		if err != nil {
			return nil, err
		}

		rd, err := im.feed.LatestRoundData(c)
		if err != nil {
			c.WithField("err", err).Error("feed.LatestRoundData failed")
			return nil, err
		}
		if rd.Answer == nil || rd.Answer.Sign() <= 0 {
			return nil, domain.ErrInternalServerError
		}

		cost := new(big.Int).Mul(r.ReferencePrice, amount)
		cost.Div(cost, rd.Answer)
		// one whole reference-price unit of slack absorbs oracle drift
		// between quote and settlement
		tolerance := new(big.Int).Exp(domain.Big10, big.NewInt(int64(im.feed.Decimals())), nil)
		tolerance.Mul(tolerance, r.ReferencePrice)
		tolerance.Div(tolerance, rd.Answer)

		low := new(big.Int).Sub(cost, tolerance)
		high := new(big.Int).Add(cost, tolerance)
		if payment.Cmp(low) < 0 || payment.Cmp(high) > 0 {
			c.WithFields(log.Fields{
				"payment": payment.String(),
				"cost":    cost.String(),
			}).Warn("payment outside tolerance")
			return nil, domain.ErrPaymentOutOfRange
		}

		if err := im.consumeSupply(c, round, r, amount); err != nil {
			return nil, err
		}

		owner, err := im.schedule.Owner(c)
		if err != nil {
			return nil, err
		}
		if err := im.nativeCoin.Transfer(c, buyer, im.presaleAddr, payment); err != nil {
			return nil, err
		}
		if err := im.nativeCoin.Transfer(c, im.presaleAddr, owner, payment); err != nil {
			return nil, err
		}
		if err := im.saleToken.Transfer(c, im.presaleAddr, buyer, amount); err != nil {
			return nil, err
		}

		return []*domain.Event{im.buyEvent(domain.EventBuyTALTokenByBNB, buyer, amount, payment)}, nil
	})
}

func (im *impl) BuyWithStablecoin(c ctx.Ctx, buyer domain.Address, amount *big.Int, round int) error {
	if buyer.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrZeroAmount
	}

	return im.run(c, func(c ctx.Ctx) ([]*domain.Event, error) {
		r, err := im.activeRound(c, round, amount)
		if err != nil {
			return nil, err
		}

		cost := new(big.Int).Mul(r.ReferencePrice, amount)
		cost.Div(cost, priceScale)

		if err := im.consumeSupply(c, round, r, amount); err != nil {
			return nil, err
		}

		owner, err := im.schedule.Owner(c)
		if err != nil {
			return nil, err
		}
		if err := im.stablecoin.TransferFrom(c, im.presaleAddr, buyer, owner, cost); err != nil {
			return nil, err
		}
		if err := im.saleToken.Transfer(c, im.presaleAddr, buyer, amount); err != nil {
			return nil, err
		}

		return []*domain.Event{im.buyEvent(domain.EventBuyTALTokenByUSDT, buyer, amount, cost)}, nil
	})
}

func (im *impl) BuyOnBehalf(c ctx.Ctx, caller domain.Address, amount *big.Int, round int, recipient domain.Address) error {
	if !caller.Equals(im.bridgeAddr) {
		return domain.ErrNotBridge
	}
	if recipient.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrZeroAmount
	}

	return im.run(c, func(c ctx.Ctx) ([]*domain.Event, error) {
		r, err := im.activeRound(c, round, amount)
		if err != nil {
			return nil, err
		}
		if err := im.consumeSupply(c, round, r, amount); err != nil {
			return nil, err
		}
		// settlement happened off-chain, only the sale token moves
		if err := im.saleToken.Transfer(c, im.presaleAddr, recipient, amount); err != nil {
			return nil, err
		}
		return []*domain.Event{im.buyEvent(domain.EventBuyTALTokenByCash, recipient, amount, nil)}, nil
	})
}

func (im *impl) FundRoundSupply(c ctx.Ctx, caller domain.Address, amount *big.Int, round int) error {
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrZeroAmount
	}

	return im.run(c, func(c ctx.Ctx) ([]*domain.Event, error) {
		if _, err := im.requireOwner(c, caller); err != nil {
			return nil, err
		}
		count, err := im.schedule.RoundCount(c)
		if err != nil {
			return nil, err
		}
		if round < 0 || round > count {
			return nil, domain.ErrInvalidRound
		}

		if round == 0 {
			// round 0 opens a fresh supply slot instead of topping one up
			if err := im.schedule.AppendRound(c, &presale.Round{
				ReferencePrice:  new(big.Int),
				RemainingSupply: amount,
			}); err != nil {
				return nil, err
			}
		} else {
			r, err := im.schedule.FindRound(c, round)
			if err != nil {
				return nil, err
			}
			supply := new(big.Int)
			if r.RemainingSupply != nil {
				supply.Set(r.RemainingSupply)
			}
			if err := im.schedule.UpdateRound(c, round, &presale.Round{
				Length:          r.Length,
				ReferencePrice:  r.ReferencePrice,
				RemainingSupply: supply.Add(supply, amount),
			}); err != nil {
				return nil, err
			}
		}

		return nil, im.saleToken.Transfer(c, caller, im.presaleAddr, amount)
	})
}

func (im *impl) WithdrawRoundSupply(c ctx.Ctx, caller, recipient domain.Address, round int) error {
	if recipient.IsEmpty() {
		return domain.ErrInvalidAddress
	}

	return im.run(c, func(c ctx.Ctx) ([]*domain.Event, error) {
		if _, err := im.requireOwner(c, caller); err != nil {
			return nil, err
		}
		r, err := im.schedule.FindRound(c, round)
		if err != nil {
			return nil, err
		}
		supply := new(big.Int)
		if r.RemainingSupply != nil {
			supply.Set(r.RemainingSupply)
		}
		if supply.Sign() == 0 {
			return nil, domain.ErrInsufficientRoundSupply
		}
		if err := im.schedule.UpdateRound(c, round, &presale.Round{
			Length:          r.Length,
			ReferencePrice:  r.ReferencePrice,
			RemainingSupply: new(big.Int),
		}); err != nil {
			return nil, err
		}
		return nil, im.saleToken.Transfer(c, im.presaleAddr, recipient, supply)
	})
}

func (im *impl) TransferOwnership(c ctx.Ctx, caller, newOwner domain.Address) error {
	if newOwner.IsEmpty() {
		return domain.ErrInvalidAddress
	}

	return im.run(c, func(c ctx.Ctx) ([]*domain.Event, error) {
		owner, err := im.requireOwner(c, caller)
		if err != nil {
			return nil, err
		}
		if err := im.schedule.SetOwner(c, newOwner); err != nil {
			return nil, err
		}
		return []*domain.Event{{
			Name: domain.EventOwnershipTransferred,
			Ownership: &domain.OwnershipTransferredEvent{
				PreviousOwner: owner,
				NewOwner:      newOwner.ToLower(),
			},
		}}, nil
	})
}

func (im *impl) buyEvent(name domain.EventName, buyer domain.Address, amount, payment *big.Int) *domain.Event {
	ev := &domain.PresaleBuyEvent{
		Buyer:  buyer.ToLower(),
		Amount: amount.String(),
	}
	if payment != nil {
		ev.PaymentAmount = payment.String()
	}
	return &domain.Event{
		Name:       name,
		PresaleBuy: ev,
	}
}
