package usecase

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/ledger"
	"github.com/talmarket/goapi/domain/market"
	"github.com/talmarket/goapi/domain/registry"
	"github.com/talmarket/goapi/service/statedb"
	ledgerRepo "github.com/talmarket/goapi/stores/ledger/repository"
	marketRepo "github.com/talmarket/goapi/stores/market/repository"
	registryRepo "github.com/talmarket/goapi/stores/registry/repository"
)

var (
	marketAddr   = domain.Address("0x111aaa")
	platformAddr = domain.Address("0xfee")
	feeAdmin     = domain.Address("0xad317")
	ownerAddr    = domain.Address("0x0112e5")
	sellerAddr   = domain.Address("0x5e11e5")
	buyerAddr    = domain.Address("0xb15e5")
)

type memEventRepo struct {
	events []*domain.Event
}

func (r *memEventRepo) Insert(c ctx.Ctx, event *domain.Event) error {
	r.events = append(r.events, event)
	return nil
}

func (r *memEventRepo) FindAll(c ctx.Ctx, opts ...domain.EventFindAllOptionsFunc) ([]*domain.Event, error) {
	return r.events, nil
}

type marketSuite struct {
	suite.Suite
	state      *statedb.StateDB
	listing    market.ListingRepo
	settings   market.SettingsRepo
	membership registry.MembershipRepo
	multiToken ledger.MultiToken
	settlement ledger.Fungible
	events     *memEventRepo
	impl       market.Usecase
}

func TestMarketSuite(t *testing.T) {
	suite.Run(t, new(marketSuite))
}

func (s *marketSuite) SetupTest() {
	s.state = statedb.New(statedb.NewMemKV())
	s.listing = marketRepo.NewListingRepo(s.state)
	s.settings = marketRepo.NewSettingsRepo(s.state)
	s.membership = registryRepo.NewMembershipRepo(s.state)
	s.multiToken = ledgerRepo.NewMultiToken(s.state)
	s.settlement = ledgerRepo.NewFungible(s.state, "tal")
	s.events = &memEventRepo{}
	s.impl = New(&MarketUseCaseCfg{
		State:        s.state,
		Listing:      s.listing,
		Settings:     s.settings,
		Membership:   s.membership,
		MultiToken:   s.multiToken,
		Settlement:   s.settlement,
		Event:        s.events,
		MarketAddr:   marketAddr,
		PlatformAddr: platformAddr,
		FeeAdmin:     feeAdmin,
	})
}

// seed gives the seller custody of `supply` units of token `id` plus the
// matching fresh-book membership, the way the registry does on mint.
func (s *marketSuite) seed(c ctx.Ctx, id domain.TokenId, supply int64) {
	s.Require().Nil(s.multiToken.Mint(c, sellerAddr, id, big.NewInt(supply)))
	s.Require().Nil(s.membership.Add(c, registry.KindFresh, sellerAddr, id))
	s.Require().Nil(s.settings.SetOwner(c, ownerAddr))
	s.Require().Nil(s.impl.SetFeePercents(c, feeAdmin, &market.FeePercents{Primary: 2, Secondhand: 4}))
}

// fund gives the buyer settlement balance and market allowance for `total`.
func (s *marketSuite) fund(c ctx.Ctx, total *big.Int) {
	s.Require().Nil(s.settlement.Mint(c, buyerAddr, total))
	s.Require().Nil(s.settlement.Approve(c, buyerAddr, marketAddr, total))
}

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), domain.WeiPerToken)
}

func (s *marketSuite) TestListThenBuyAll() {
	c := ctx.Background()
	s.seed(c, "7", 5)

	s.Nil(s.impl.List(c, market.BookPrimary, sellerAddr, "7", big.NewInt(100), big.NewInt(5)))

	marketBal, err := s.multiToken.BalanceOf(c, marketAddr, "7")
	s.Nil(err)
	s.Equal(int64(5), marketBal.Int64())

	listings, err := s.impl.ListingTokens(c, market.BookPrimary, 0, 10)
	s.Nil(err)
	s.Require().Len(listings, 1)
	s.Equal(int64(5), listings[0].Amount.Int64())
	s.Equal(int64(0), listings[0].UnlistingAmount.Int64())

	// 5 units at 100 each, scaled to wei
	total := tokens(500)
	s.fund(c, total)

	s.Nil(s.impl.Buy(c, market.BookPrimary, buyerAddr, "7", big.NewInt(5), sellerAddr))

	buyerTokens, err := s.multiToken.BalanceOf(c, buyerAddr, "7")
	s.Nil(err)
	s.Equal(int64(5), buyerTokens.Int64())

	fee := new(big.Int).Div(new(big.Int).Mul(total, big.NewInt(2)), domain.Big100)
	proceeds := new(big.Int).Sub(total, fee)

	sellerBal, err := s.settlement.BalanceOf(c, sellerAddr)
	s.Nil(err)
	s.Equal(proceeds, sellerBal)

	platformBal, err := s.settlement.BalanceOf(c, platformAddr)
	s.Nil(err)
	s.Equal(fee, platformBal)

	// listing fully consumed: record cleared, index entry dropped
	listings, err = s.impl.ListingTokens(c, market.BookPrimary, 0, 10)
	s.Nil(err)
	s.Empty(listings)

	// seller listed everything, so the fresh book drops the id
	sellerIds, err := s.membership.List(c, registry.KindFresh, sellerAddr)
	s.Nil(err)
	s.Empty(sellerIds)

	buyerIds, err := s.membership.List(c, registry.KindSecondhand, buyerAddr)
	s.Nil(err)
	s.Equal([]domain.TokenId{"7"}, buyerIds)

	s.Require().Len(s.events.events, 2)
	listEv := s.events.events[0].NFTTransfer
	s.Require().NotNil(listEv)
	s.Equal(domain.TransferTypeList, listEv.TransferType)
	s.Equal("0", listEv.SellerAmount)
	buyEv := s.events.events[1].NFTTransfer
	s.Require().NotNil(buyEv)
	s.Equal(domain.TransferTypeBuy, buyEv.TransferType)
	s.Equal(proceeds.String(), buyEv.SellerAmount)
	s.Equal(fee.String(), buyEv.FeeAmount)
	s.Equal(sellerAddr.ToLower(), buyEv.From)
	s.Equal(buyerAddr.ToLower(), buyEv.To)
}

func (s *marketSuite) TestPartialBuyKeepsListing() {
	c := ctx.Background()
	s.seed(c, "7", 5)

	s.Nil(s.impl.List(c, market.BookPrimary, sellerAddr, "7", big.NewInt(100), big.NewInt(4)))
	s.fund(c, tokens(200))

	s.Nil(s.impl.Buy(c, market.BookPrimary, buyerAddr, "7", big.NewInt(2), sellerAddr))

	listings, err := s.impl.ListingTokens(c, market.BookPrimary, 0, 10)
	s.Nil(err)
	s.Require().Len(listings, 1)
	s.Equal(int64(2), listings[0].Amount.Int64())

	// seller keeps the fresh-book entry while the listing is open
	sellerIds, err := s.membership.List(c, registry.KindFresh, sellerAddr)
	s.Nil(err)
	s.Equal([]domain.TokenId{"7"}, sellerIds)
}

func (s *marketSuite) TestExhaustionKeepsSellerWithUnlistedBalance() {
	c := ctx.Background()
	s.seed(c, "7", 5)

	// list 3 of 5, 2 stay in the seller's wallet
	s.Nil(s.impl.List(c, market.BookPrimary, sellerAddr, "7", big.NewInt(100), big.NewInt(3)))
	s.fund(c, tokens(300))

	s.Nil(s.impl.Buy(c, market.BookPrimary, buyerAddr, "7", big.NewInt(3), sellerAddr))

	sellerIds, err := s.membership.List(c, registry.KindFresh, sellerAddr)
	s.Nil(err)
	s.Equal([]domain.TokenId{"7"}, sellerIds)
}

func (s *marketSuite) TestRelistAccumulatesWithoutDuplicateIndex() {
	c := ctx.Background()
	s.seed(c, "7", 5)

	s.Nil(s.impl.List(c, market.BookPrimary, sellerAddr, "7", big.NewInt(100), big.NewInt(2)))
	s.Nil(s.impl.List(c, market.BookPrimary, sellerAddr, "7", big.NewInt(100), big.NewInt(1)))

	listings, err := s.impl.ListingTokens(c, market.BookPrimary, 0, 10)
	s.Nil(err)
	s.Require().Len(listings, 1)
	s.Equal(int64(3), listings[0].Amount.Int64())

	err = s.impl.List(c, market.BookPrimary, sellerAddr, "7", big.NewInt(200), big.NewInt(1))
	s.ErrorIs(err, domain.ErrStateConflict)
}

func (s *marketSuite) TestCancelReturnsCustody() {
	c := ctx.Background()
	s.seed(c, "7", 5)

	s.Nil(s.impl.List(c, market.BookPrimary, sellerAddr, "7", big.NewInt(100), big.NewInt(4)))
	s.Nil(s.impl.Cancel(c, market.BookPrimary, sellerAddr, "7", big.NewInt(1)))

	sellerBal, err := s.multiToken.BalanceOf(c, sellerAddr, "7")
	s.Nil(err)
	s.Equal(int64(2), sellerBal.Int64())

	s.Nil(s.impl.Cancel(c, market.BookPrimary, sellerAddr, "7", big.NewInt(3)))

	sellerBal, err = s.multiToken.BalanceOf(c, sellerAddr, "7")
	s.Nil(err)
	s.Equal(int64(5), sellerBal.Int64())

	listings, err := s.impl.ListingTokens(c, market.BookPrimary, 0, 10)
	s.Nil(err)
	s.Empty(listings)

	err = s.impl.Cancel(c, market.BookPrimary, sellerAddr, "7", big.NewInt(1))
	s.ErrorIs(err, domain.ErrPreconditionFailed)
}

func (s *marketSuite) TestBuyChecks() {
	c := ctx.Background()
	s.seed(c, "7", 5)

	err := s.impl.Buy(c, market.BookPrimary, buyerAddr, "7", big.NewInt(1), sellerAddr)
	s.ErrorIs(err, domain.ErrPreconditionFailed)

	s.Nil(s.impl.List(c, market.BookPrimary, sellerAddr, "7", big.NewInt(100), big.NewInt(2)))

	err = s.impl.Buy(c, market.BookPrimary, buyerAddr, "7", big.NewInt(3), sellerAddr)
	s.ErrorIs(err, domain.ErrPreconditionFailed)

	// buyer has no settlement balance
	err = s.impl.Buy(c, market.BookPrimary, buyerAddr, "7", big.NewInt(1), sellerAddr)
	s.ErrorIs(err, domain.ErrInsufficientBalance)

	// failed buy must leave the listing untouched
	listings, err := s.impl.ListingTokens(c, market.BookPrimary, 0, 10)
	s.Nil(err)
	s.Require().Len(listings, 1)
	s.Equal(int64(2), listings[0].Amount.Int64())
}

func (s *marketSuite) TestSelfBuyConservesSettlement() {
	c := ctx.Background()
	s.seed(c, "7", 5)

	s.Nil(s.impl.List(c, market.BookPrimary, sellerAddr, "7", big.NewInt(100), big.NewInt(5)))

	total := tokens(500)
	s.Require().Nil(s.settlement.Mint(c, sellerAddr, total))
	s.Require().Nil(s.settlement.Approve(c, sellerAddr, marketAddr, total))

	// seller buys their own listing: payment and proceeds route through
	// the same account, only the fee may leave it
	s.Nil(s.impl.Buy(c, market.BookPrimary, sellerAddr, "7", big.NewInt(5), sellerAddr))

	fee := new(big.Int).Div(new(big.Int).Mul(total, big.NewInt(2)), domain.Big100)

	sellerBal, err := s.settlement.BalanceOf(c, sellerAddr)
	s.Nil(err)
	s.Equal(new(big.Int).Sub(total, fee), sellerBal)

	platformBal, err := s.settlement.BalanceOf(c, platformAddr)
	s.Nil(err)
	s.Equal(fee, platformBal)

	sellerTokens, err := s.multiToken.BalanceOf(c, sellerAddr, "7")
	s.Nil(err)
	s.Equal(int64(5), sellerTokens.Int64())
}

func (s *marketSuite) TestPagination() {
	c := ctx.Background()
	s.seed(c, "1", 1)
	s.Require().Nil(s.multiToken.Mint(c, sellerAddr, "2", big.NewInt(1)))
	s.Require().Nil(s.multiToken.Mint(c, sellerAddr, "3", big.NewInt(1)))

	for _, id := range []domain.TokenId{"1", "2", "3"} {
		s.Nil(s.impl.List(c, market.BookPrimary, sellerAddr, id, big.NewInt(10), big.NewInt(1)))
	}

	page, err := s.impl.ListingTokens(c, market.BookPrimary, 1, 1)
	s.Nil(err)
	s.Require().Len(page, 1)
	s.Equal(domain.TokenId("2"), page[0].TokenId)

	// window clipped at the tail
	page, err = s.impl.ListingTokens(c, market.BookPrimary, 2, 5)
	s.Nil(err)
	s.Len(page, 1)

	page, err = s.impl.ListingTokens(c, market.BookPrimary, 9, 5)
	s.Nil(err)
	s.Empty(page)

	_, err = s.impl.ListingTokens(c, market.BookPrimary, -1, 5)
	s.ErrorIs(err, domain.ErrInvalidArgument)
	_, err = s.impl.ListingTokens(c, market.BookPrimary, 0, 0)
	s.ErrorIs(err, domain.ErrInvalidArgument)
}

func (s *marketSuite) TestAccountListingTokens() {
	c := ctx.Background()
	s.seed(c, "7", 5)
	s.Require().Nil(s.multiToken.Mint(c, sellerAddr, "8", big.NewInt(1)))
	s.Require().Nil(s.membership.Add(c, registry.KindFresh, sellerAddr, "8"))

	s.Nil(s.impl.List(c, market.BookPrimary, sellerAddr, "7", big.NewInt(100), big.NewInt(2)))

	// token 8 is in the fresh book but has no open listing
	listings, err := s.impl.AccountListingTokens(c, market.BookPrimary, sellerAddr)
	s.Nil(err)
	s.Require().Len(listings, 1)
	s.Equal(domain.TokenId("7"), listings[0].TokenId)
}

func (s *marketSuite) TestSetFeePercentsRequiresFeeAdmin() {
	c := ctx.Background()

	err := s.impl.SetFeePercents(c, sellerAddr, &market.FeePercents{Primary: 1, Secondhand: 1})
	s.ErrorIs(err, domain.ErrPermissionDenied)

	err = s.impl.SetFeePercents(c, feeAdmin, &market.FeePercents{Primary: 101, Secondhand: 1})
	s.ErrorIs(err, domain.ErrInvalidArgument)

	s.Nil(s.impl.SetFeePercents(c, feeAdmin, &market.FeePercents{Primary: 3, Secondhand: 6}))
	fees, err := s.settings.FeePercents(c)
	s.Nil(err)
	s.Equal(int64(3), fees.Primary)
	s.Equal(int64(6), fees.Secondhand)
}

func (s *marketSuite) TestTransferOwnership() {
	c := ctx.Background()
	s.Require().Nil(s.settings.SetOwner(c, ownerAddr))

	err := s.impl.TransferOwnership(c, sellerAddr, buyerAddr)
	s.ErrorIs(err, domain.ErrPermissionDenied)

	s.Nil(s.impl.TransferOwnership(c, ownerAddr, buyerAddr))

	owner, err := s.settings.Owner(c)
	s.Nil(err)
	s.Equal(buyerAddr.ToLower(), owner)

	s.Require().Len(s.events.events, 1)
	s.Equal(domain.EventOwnershipTransferred, s.events.events[0].Name)
}

// reentrantBuyer tries to re-enter Buy from inside the custody callback.
type reentrantBuyer struct {
	uc       market.Usecase
	innerErr error
}

func (r *reentrantBuyer) OnTokenReceived(c ctx.Ctx, operator, from domain.Address, id domain.TokenId, amount *big.Int, data []byte) ([4]byte, error) {
	r.innerErr = r.uc.Buy(c, market.BookPrimary, buyerAddr, id, big.NewInt(1), sellerAddr)
	if r.innerErr != nil {
		return [4]byte{}, r.innerErr
	}
	return ledger.ReceivedMagic, nil
}

func (r *reentrantBuyer) OnTokenBatchReceived(c ctx.Ctx, operator, from domain.Address, ids []domain.TokenId, amounts []*big.Int, data []byte) ([4]byte, error) {
	return ledger.BatchReceivedMagic, nil
}

func (s *marketSuite) TestBuyRejectsReentrancy() {
	c := ctx.Background()
	s.seed(c, "7", 5)

	s.Nil(s.impl.List(c, market.BookPrimary, sellerAddr, "7", big.NewInt(100), big.NewInt(5)))
	s.fund(c, tokens(1000))

	attacker := &reentrantBuyer{uc: s.impl}
	s.multiToken.RegisterReceiver(buyerAddr, attacker)

	err := s.impl.Buy(c, market.BookPrimary, buyerAddr, "7", big.NewInt(2), sellerAddr)
	s.ErrorIs(err, domain.ErrPreconditionFailed)
	s.ErrorIs(attacker.innerErr, domain.ErrReentrantCall)

	// the whole transition rolled back
	listings, lerr := s.impl.ListingTokens(c, market.BookPrimary, 0, 10)
	s.Nil(lerr)
	s.Require().Len(listings, 1)
	s.Equal(int64(5), listings[0].Amount.Int64())

	buyerTokens, berr := s.multiToken.BalanceOf(c, buyerAddr, "7")
	s.Nil(berr)
	s.Equal(int64(0), buyerTokens.Int64())
}
