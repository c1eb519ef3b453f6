package usecase

import (
	"math/big"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/base/log"
	"github.com/talmarket/goapi/base/reentrancy"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/ledger"
	"github.com/talmarket/goapi/domain/market"
	"github.com/talmarket/goapi/domain/registry"
	"github.com/talmarket/goapi/service/statedb"
)

type MarketUseCaseCfg struct {
	State      *statedb.StateDB
	Listing    market.ListingRepo
	Settings   market.SettingsRepo
	Membership registry.MembershipRepo
	MultiToken ledger.MultiToken
	Settlement ledger.Fungible
	Event      domain.EventRepo

	// MarketAddr is the marketplace's own custody account.
	MarketAddr domain.Address
	// PlatformAddr receives the fee cut of every sale.
	PlatformAddr domain.Address
	// FeeAdmin is the only account allowed to change fee percents.
	FeeAdmin domain.Address
}

type impl struct {
	state      *statedb.StateDB
	guard      *reentrancy.Guard
	listing    market.ListingRepo
	settings   market.SettingsRepo
	membership registry.MembershipRepo
	multiToken ledger.MultiToken
	settlement ledger.Fungible
	event      domain.EventRepo

	marketAddr   domain.Address
	platformAddr domain.Address
	feeAdmin     domain.Address
}

func New(cfg *MarketUseCaseCfg) market.Usecase {
	im := &impl{
		state:        cfg.State,
		guard:        reentrancy.NewGuard(),
		listing:      cfg.Listing,
		settings:     cfg.Settings,
		membership:   cfg.Membership,
		multiToken:   cfg.MultiToken,
		settlement:   cfg.Settlement,
		event:        cfg.Event,
		marketAddr:   cfg.MarketAddr.ToLower(),
		platformAddr: cfg.PlatformAddr.ToLower(),
		feeAdmin:     cfg.FeeAdmin.ToLower(),
	}
	im.multiToken.RegisterReceiver(im.marketAddr, im)
	return im
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

	// the transition already landed, a failed event write must not undo it
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

func kindFor(book market.Book) registry.Kind {
	if book == market.BookPrimary {
		return registry.KindFresh
	}
	return registry.KindSecondhand
}

func (im *impl) List(c ctx.Ctx, book market.Book, caller domain.Address, tokenId domain.TokenId, unitPrice, amount *big.Int) error {
	if !book.IsValid() {
		return domain.ErrInvalidArgument
	}
	if caller.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	if unitPrice == nil || unitPrice.Sign() <= 0 {
		return domain.ErrZeroPrice
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrZeroAmount
	}

	return im.run(c, func(c ctx.Ctx) ([]*domain.Event, error) {
		balance, err := im.multiToken.BalanceOf(c, caller, tokenId)
		if err != nil {
			return nil, err
		}
		if balance.Cmp(amount) < 0 {
			return nil, domain.ErrInsufficientTokenBalance
		}

		lid := market.ListingId{Seller: caller.ToLower(), TokenId: tokenId}
		l, err := im.listing.FindOne(c, book, lid)
		if err != nil {
			return nil, err
		}

		created := l.Cleared()
		if !created && l.UnitPrice.Cmp(unitPrice) != 0 {
			return nil, domain.ErrListingPriceMismatch
		}

		record := &market.Listing{
			UnitPrice:       unitPrice,
			Seller:          caller.ToLower(),
			Amount:          new(big.Int).Add(l.Amount, amount),
			UnlistingAmount: new(big.Int).Sub(balance, amount),
			TokenId:         tokenId,
		}
		if err := im.listing.Upsert(c, book, lid, record); err != nil {
			return nil, err
		}
		if created {
			if err := im.listing.AppendIndex(c, book, lid); err != nil {
				return nil, err
			}
		}

		// custody moves only after the books are written
		if err := im.multiToken.SafeTransferFrom(c, caller, caller, im.marketAddr, tokenId, amount, nil); err != nil {
			return nil, err
		}

		fees, err := im.settings.FeePercents(c)
		if err != nil {
			return nil, err
		}
		ev := im.transferEvent(tokenId, caller, im.marketAddr, unitPrice, amount, domain.Big0, domain.Big0, fees, domain.TransferTypeList)
		return []*domain.Event{ev}, nil
	})
}

func (im *impl) Buy(c ctx.Ctx, book market.Book, buyer domain.Address, tokenId domain.TokenId, amount *big.Int, seller domain.Address) error {
	if !book.IsValid() {
		return domain.ErrInvalidArgument
	}
	if buyer.IsEmpty() || seller.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrZeroAmount
	}

	return im.run(c, func(c ctx.Ctx) ([]*domain.Event, error) {
		lid := market.ListingId{Seller: seller.ToLower(), TokenId: tokenId}
		l, err := im.listing.FindOne(c, book, lid)
		if err != nil {
			return nil, err
		}
		if l.Cleared() {
			return nil, domain.ErrListingNotFound
		}
		if amount.Cmp(l.Amount) > 0 {
			return nil, domain.ErrListingExceeded
		}

		fees, err := im.settings.FeePercents(c)
		if err != nil {
			return nil, err
		}
		feePercent := fees.Secondhand
		if book == market.BookPrimary {
			feePercent = fees.Primary
		}

		total := new(big.Int).Mul(l.UnitPrice, amount)
		total.Mul(total, domain.WeiPerToken)
		fee := new(big.Int).Mul(total, big.NewInt(feePercent))
		fee.Div(fee, domain.Big100)
		proceeds := new(big.Int).Sub(total, fee)

		buyerBalance, err := im.settlement.BalanceOf(c, buyer)
		if err != nil {
			return nil, err
		}
		if buyerBalance.Cmp(total) < 0 {
			return nil, domain.ErrInsufficientSettlementBalance
		}

		exhausted := amount.Cmp(l.Amount) == 0
		if exhausted {
			if err := im.listing.Clear(c, book, lid); err != nil {
				return nil, err
			}
			if err := im.listing.RemoveIndex(c, book, lid); err != nil {
				return nil, err
			}
			// the seller leaves the book only when no unlisted balance was
			// left behind at list time
			if l.UnlistingAmount.Sign() == 0 {
				if err := im.membership.Remove(c, kindFor(book), seller, tokenId); err != nil {
					return nil, err
				}
			}
		} else {
			record := &market.Listing{
				UnitPrice:       l.UnitPrice,
				Seller:          l.Seller,
				Amount:          new(big.Int).Sub(l.Amount, amount),
				UnlistingAmount: l.UnlistingAmount,
				TokenId:         tokenId,
			}
			if err := im.listing.Upsert(c, book, lid, record); err != nil {
				return nil, err
			}
		}
		if err := im.membership.Add(c, registry.KindSecondhand, buyer, tokenId); err != nil {
			return nil, err
		}

		// internal state is settled, move custody and payment
		if err := im.multiToken.SafeTransferFrom(c, im.marketAddr, im.marketAddr, buyer, tokenId, amount, nil); err != nil {
			return nil, err
		}
		if err := im.settlement.TransferFrom(c, im.marketAddr, buyer, seller, proceeds); err != nil {
			return nil, err
		}
		if err := im.settlement.TransferFrom(c, im.marketAddr, buyer, im.platformAddr, fee); err != nil {
			return nil, err
		}

		ev := im.transferEvent(tokenId, seller, buyer, l.UnitPrice, amount, proceeds, fee, fees, domain.TransferTypeBuy)
		return []*domain.Event{ev}, nil
	})
}

func (im *impl) Cancel(c ctx.Ctx, book market.Book, caller domain.Address, tokenId domain.TokenId, amount *big.Int) error {
	if !book.IsValid() {
		return domain.ErrInvalidArgument
	}
	if caller.IsEmpty() {
		return domain.ErrInvalidAddress
	}
	if amount == nil || amount.Sign() <= 0 {
		return domain.ErrZeroAmount
	}

	return im.run(c, func(c ctx.Ctx) ([]*domain.Event, error) {
		lid := market.ListingId{Seller: caller.ToLower(), TokenId: tokenId}
		l, err := im.listing.FindOne(c, book, lid)
		if err != nil {
			return nil, err
		}
		if l.Cleared() {
			return nil, domain.ErrListingNotFound
		}
		if amount.Cmp(l.Amount) > 0 {
			return nil, domain.ErrListingExceeded
		}

		if amount.Cmp(l.Amount) == 0 {
			if err := im.listing.Clear(c, book, lid); err != nil {
				return nil, err
			}
			if err := im.listing.RemoveIndex(c, book, lid); err != nil {
				return nil, err
			}
		} else {
			record := &market.Listing{
				UnitPrice:       l.UnitPrice,
				Seller:          l.Seller,
				Amount:          new(big.Int).Sub(l.Amount, amount),
				UnlistingAmount: l.UnlistingAmount,
				TokenId:         tokenId,
			}
			if err := im.listing.Upsert(c, book, lid, record); err != nil {
				return nil, err
			}
		}

		if err := im.multiToken.SafeTransferFrom(c, im.marketAddr, im.marketAddr, caller, tokenId, amount, nil); err != nil {
			return nil, err
		}

		fees, err := im.settings.FeePercents(c)
		if err != nil {
			return nil, err
		}
		ev := im.transferEvent(tokenId, im.marketAddr, caller, l.UnitPrice, amount, domain.Big0, domain.Big0, fees, domain.TransferTypeCancel)
		return []*domain.Event{ev}, nil
	})
}

func (im *impl) ListingTokens(c ctx.Ctx, book market.Book, offset, size int) ([]*market.Listing, error) {
	if !book.IsValid() {
		return nil, domain.ErrInvalidArgument
	}
	if offset < 0 || size <= 0 {
		return nil, domain.ErrInvalidPaging
	}

	ids, err := im.listing.IndexKeys(c, book)
	if err != nil {
		return nil, err
	}
	if offset >= len(ids) {
		return []*market.Listing{}, nil
	}
	end := offset + size
	if end > len(ids) {
		end = len(ids)
	}

	res := make([]*market.Listing, 0, end-offset)
	for _, id := range ids[offset:end] {
		l, err := im.listing.FindOne(c, book, id)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, nil
}

func (im *impl) AccountListingTokens(c ctx.Ctx, book market.Book, account domain.Address) ([]*market.Listing, error) {
	if !book.IsValid() {
		return nil, domain.ErrInvalidArgument
	}
	if account.IsEmpty() {
		return nil, domain.ErrInvalidAddress
	}

	ids, err := im.membership.List(c, kindFor(book), account)
	if err != nil {
		return nil, err
	}

	res := []*market.Listing{}
	for _, id := range ids {
		l, err := im.listing.FindOne(c, book, market.ListingId{Seller: account.ToLower(), TokenId: id})
		if err != nil {
			return nil, err
		}
		if !l.Cleared() {
			res = append(res, l)
		}
	}
	return res, nil
}

func (im *impl) SetFeePercents(c ctx.Ctx, caller domain.Address, fees *market.FeePercents) error {
	if !caller.Equals(im.feeAdmin) {
		return domain.ErrNotFeeAdmin
	}
	if fees == nil || fees.Primary < 0 || fees.Primary > 100 || fees.Secondhand < 0 || fees.Secondhand > 100 {
		return domain.ErrInvalidArgument
	}

	return im.run(c, func(c ctx.Ctx) ([]*domain.Event, error) {
		return nil, im.settings.SetFeePercents(c, fees)
	})
}

func (im *impl) TransferOwnership(c ctx.Ctx, caller, newOwner domain.Address) error {
	if newOwner.IsEmpty() {
		return domain.ErrInvalidAddress
	}

	return im.run(c, func(c ctx.Ctx) ([]*domain.Event, error) {
		owner, err := im.settings.Owner(c)
		if err != nil {
			return nil, err
		}
		if !caller.Equals(owner) {
			return nil, domain.ErrNotOwner
		}
		if err := im.settings.SetOwner(c, newOwner); err != nil {
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

// OnTokenReceived accepts custody transfers into the marketplace account.
func (im *impl) OnTokenReceived(c ctx.Ctx, operator, from domain.Address, id domain.TokenId, amount *big.Int, data []byte) ([4]byte, error) {
	return ledger.ReceivedMagic, nil
}

func (im *impl) OnTokenBatchReceived(c ctx.Ctx, operator, from domain.Address, ids []domain.TokenId, amounts []*big.Int, data []byte) ([4]byte, error) {
	return ledger.BatchReceivedMagic, nil
}

func (im *impl) transferEvent(tokenId domain.TokenId, from, to domain.Address, unitPrice, amount, sellerAmount, feeAmount *big.Int, fees *market.FeePercents, typ domain.TransferType) *domain.Event {
	return &domain.Event{
		Name: domain.EventNFTTransfer,
		NFTTransfer: &domain.NFTTransferEvent{
			TokenID:              tokenId,
			From:                 from.ToLower(),
			To:                   to.ToLower(),
			UnitPrice:            unitPrice.String(),
			Amount:               amount.String(),
			SellerAmount:         sellerAmount.String(),
			FeeAmount:            feeAmount.String(),
			FeePercentPrimary:    fees.Primary,
			FeePercentSecondhand: fees.Secondhand,
			TransferType:         typ,
		},
	}
}
