package usecase

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/ledger"
	"github.com/talmarket/goapi/domain/presale"
	"github.com/talmarket/goapi/service/pricefeed"
	"github.com/talmarket/goapi/service/statedb"
	ledgerRepo "github.com/talmarket/goapi/stores/ledger/repository"
	presaleRepo "github.com/talmarket/goapi/stores/presale/repository"
)

var (
	presaleAddr = domain.Address("0x9145a1e")
	bridgeAddr  = domain.Address("0xb41d9e")
	ownerAddr   = domain.Address("0x0112e5")
	buyerAddr   = domain.Address("0xb15e5")
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

type presaleSuite struct {
	suite.Suite
	state      *statedb.StateDB
	schedule   presale.ScheduleRepo
	saleToken  ledger.Fungible
	stablecoin ledger.Fungible
	nativeCoin ledger.Fungible
	events     *memEventRepo
	now        time.Time
	impl       presale.Usecase
}

func TestPresaleSuite(t *testing.T) {
	suite.Run(t, new(presaleSuite))
}

// oracle quotes the native coin at $300 with 8 decimals
const oracleAnswer = 300 * 1e8

func usd(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e8))
}

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), domain.WeiPerToken)
}

func (s *presaleSuite) SetupTest() {
	s.state = statedb.New(statedb.NewMemKV())
	s.schedule = presaleRepo.NewScheduleRepo(s.state)
	s.saleToken = ledgerRepo.NewFungible(s.state, "tal")
	s.stablecoin = ledgerRepo.NewFungible(s.state, "usdt")
	s.nativeCoin = ledgerRepo.NewFungible(s.state, "bnb")
	s.events = &memEventRepo{}
	s.now = time.Unix(1700000000, 0)
	s.impl = New(&PresaleUseCaseCfg{
		State:       s.state,
		Schedule:    s.schedule,
		SaleToken:   s.saleToken,
		Stablecoin:  s.stablecoin,
		NativeCoin:  s.nativeCoin,
		Feed:        pricefeed.NewStatic(big.NewInt(oracleAnswer), 8),
		Event:       s.events,
		PresaleAddr: presaleAddr,
		BridgeAddr:  bridgeAddr,
		Now:         func() time.Time { return s.now },
	})

	c := ctx.Background()
	s.Require().Nil(s.schedule.SetOwner(c, ownerAddr))
	// round 1 closes 1000s after start at $50, round 2 is open-ended at $60
	s.Require().Nil(s.schedule.AppendRound(c, &presale.Round{
		Length:          1000,
		ReferencePrice:  usd(50),
		RemainingSupply: tokens(100),
	}))
	s.Require().Nil(s.schedule.AppendRound(c, &presale.Round{
		Length:          2000,
		ReferencePrice:  usd(60),
		RemainingSupply: tokens(200),
	}))
	s.Require().Nil(s.saleToken.Mint(c, presaleAddr, tokens(300)))
}

func (s *presaleSuite) start() {
	s.Require().Nil(s.impl.Start(ctx.Background(), ownerAddr))
}

func (s *presaleSuite) TestStartIsOwnerOnlyAndOneShot() {
	c := ctx.Background()

	err := s.impl.Start(c, buyerAddr)
	s.ErrorIs(err, domain.ErrPermissionDenied)

	round, err := s.impl.CurrentRound(c)
	s.Nil(err)
	s.Equal(0, round)

	s.start()

	round, err = s.impl.CurrentRound(c)
	s.Nil(err)
	s.Equal(1, round)

	err = s.impl.Start(c, ownerAddr)
	s.ErrorIs(err, domain.ErrPreconditionFailed)
}

func (s *presaleSuite) TestRoundProgression() {
	c := ctx.Background()
	s.start()

	// boundary is inclusive on the open side
	s.now = s.now.Add(1000 * time.Second)
	round, err := s.impl.CurrentRound(c)
	s.Nil(err)
	s.Equal(1, round)

	finished, err := s.impl.RoundFinished(c, 1)
	s.Nil(err)
	s.True(finished)

	s.now = s.now.Add(1 * time.Second)
	round, err = s.impl.CurrentRound(c)
	s.Nil(err)
	s.Equal(2, round)

	// past every boundary the last round stays current and never finishes
	s.now = s.now.Add(5000 * time.Second)
	round, err = s.impl.CurrentRound(c)
	s.Nil(err)
	s.Equal(2, round)

	finished, err = s.impl.RoundFinished(c, 2)
	s.Nil(err)
	s.False(finished)

	_, err = s.impl.RoundFinished(c, 0)
	s.ErrorIs(err, domain.ErrInvalidArgument)
	_, err = s.impl.RoundFinished(c, 3)
	s.ErrorIs(err, domain.ErrInvalidArgument)
}

func (s *presaleSuite) TestBuyWithNativeCoin() {
	c := ctx.Background()
	s.start()

	amount := tokens(2)
	// $50 a token against a $300 native coin
	cost := new(big.Int).Mul(usd(50), amount)
	cost.Div(cost, big.NewInt(oracleAnswer))

	s.Require().Nil(s.nativeCoin.Mint(c, buyerAddr, cost))

	s.Nil(s.impl.BuyWithNativeCoin(c, buyerAddr, amount, 1, cost))

	got, err := s.saleToken.BalanceOf(c, buyerAddr)
	s.Nil(err)
	s.Equal(amount, got)

	// payment is forwarded straight to the owner
	ownerBal, err := s.nativeCoin.BalanceOf(c, ownerAddr)
	s.Nil(err)
	s.Equal(cost, ownerBal)

	rounds, err := s.impl.Rounds(c)
	s.Nil(err)
	s.Equal(new(big.Int).Sub(tokens(100), amount), rounds[0].RemainingSupply)

	s.Require().Len(s.events.events, 1)
	s.Equal(domain.EventBuyTALTokenByBNB, s.events.events[0].Name)
	s.Equal(cost.String(), s.events.events[0].PresaleBuy.PaymentAmount)
}

func (s *presaleSuite) TestBuyWithNativeCoinRejectsBadPayment() {
	c := ctx.Background()
	s.start()

	amount := tokens(2)
	cost := new(big.Int).Mul(usd(50), amount)
	cost.Div(cost, big.NewInt(oracleAnswer))
	tolerance := new(big.Int).Div(new(big.Int).Mul(usd(50), big.NewInt(1e8)), big.NewInt(oracleAnswer))

	low := new(big.Int).Sub(cost, tolerance)
	low.Sub(low, domain.Big1)
	s.Require().Nil(s.nativeCoin.Mint(c, buyerAddr, cost))

	err := s.impl.BuyWithNativeCoin(c, buyerAddr, amount, 1, low)
	s.ErrorIs(err, domain.ErrInsufficientBalance)

	// an in-tolerance underpayment clears
	s.Nil(s.impl.BuyWithNativeCoin(c, buyerAddr, amount, 1, new(big.Int).Add(low, domain.Big1)))
}

func (s *presaleSuite) TestBuyWithStablecoin() {
	c := ctx.Background()
	s.start()

	amount := tokens(2)
	cost := new(big.Int).Mul(usd(50), amount)
	cost.Div(cost, big.NewInt(1e8))

	s.Require().Nil(s.stablecoin.Mint(c, buyerAddr, cost))
	s.Require().Nil(s.stablecoin.Approve(c, buyerAddr, presaleAddr, cost))

	s.Nil(s.impl.BuyWithStablecoin(c, buyerAddr, amount, 1))

	got, err := s.saleToken.BalanceOf(c, buyerAddr)
	s.Nil(err)
	s.Equal(amount, got)

	ownerBal, err := s.stablecoin.BalanceOf(c, ownerAddr)
	s.Nil(err)
	s.Equal(cost, ownerBal)

	s.Require().Len(s.events.events, 1)
	s.Equal(domain.EventBuyTALTokenByUSDT, s.events.events[0].Name)
}

func (s *presaleSuite) TestBuyWithStablecoinNeedsAllowance() {
	c := ctx.Background()
	s.start()

	amount := tokens(2)
	cost := new(big.Int).Mul(usd(50), amount)
	cost.Div(cost, big.NewInt(1e8))
	s.Require().Nil(s.stablecoin.Mint(c, buyerAddr, cost))

	err := s.impl.BuyWithStablecoin(c, buyerAddr, amount, 1)
	s.ErrorIs(err, domain.ErrInsufficientBalance)

	// failed buy leaves the round supply untouched
	rounds, rerr := s.impl.Rounds(c)
	s.Nil(rerr)
	s.Equal(tokens(100), rounds[0].RemainingSupply)
}

func (s *presaleSuite) TestBuyOnBehalfIsBridgeOnly() {
	c := ctx.Background()
	s.start()

	err := s.impl.BuyOnBehalf(c, buyerAddr, tokens(1), 1, buyerAddr)
	s.ErrorIs(err, domain.ErrPermissionDenied)

	s.Nil(s.impl.BuyOnBehalf(c, bridgeAddr, tokens(1), 1, buyerAddr))

	got, err := s.saleToken.BalanceOf(c, buyerAddr)
	s.Nil(err)
	s.Equal(tokens(1), got)

	s.Require().Len(s.events.events, 1)
	s.Equal(domain.EventBuyTALTokenByCash, s.events.events[0].Name)
	s.Equal("", s.events.events[0].PresaleBuy.PaymentAmount)
}

func (s *presaleSuite) TestBuyRoundChecks() {
	c := ctx.Background()

	err := s.impl.BuyOnBehalf(c, bridgeAddr, tokens(1), 1, buyerAddr)
	s.ErrorIs(err, domain.ErrSaleNotStarted)

	s.start()

	err = s.impl.BuyOnBehalf(c, bridgeAddr, tokens(1), 0, buyerAddr)
	s.ErrorIs(err, domain.ErrInvalidArgument)

	err = s.impl.BuyOnBehalf(c, bridgeAddr, tokens(1), 3, buyerAddr)
	s.ErrorIs(err, domain.ErrInvalidArgument)

	err = s.impl.BuyOnBehalf(c, bridgeAddr, tokens(101), 1, buyerAddr)
	s.ErrorIs(err, domain.ErrInsufficientBalance)

	s.now = s.now.Add(1001 * time.Second)
	err = s.impl.BuyOnBehalf(c, bridgeAddr, tokens(1), 1, buyerAddr)
	s.ErrorIs(err, domain.ErrRoundFinished)
}

func (s *presaleSuite) TestFundRoundSupply() {
	c := ctx.Background()
	s.Require().Nil(s.saleToken.Mint(c, ownerAddr, tokens(50)))

	err := s.impl.FundRoundSupply(c, buyerAddr, tokens(10), 1)
	s.ErrorIs(err, domain.ErrPermissionDenied)

	s.Nil(s.impl.FundRoundSupply(c, ownerAddr, tokens(10), 1))

	rounds, err := s.impl.Rounds(c)
	s.Nil(err)
	s.Equal(tokens(110), rounds[0].RemainingSupply)

	// round 0 opens a new slot instead of topping one up
	s.Nil(s.impl.FundRoundSupply(c, ownerAddr, tokens(5), 0))

	rounds, err = s.impl.Rounds(c)
	s.Nil(err)
	s.Require().Len(rounds, 3)
	s.Equal(tokens(5), rounds[2].RemainingSupply)

	err = s.impl.FundRoundSupply(c, ownerAddr, tokens(5), 7)
	s.ErrorIs(err, domain.ErrInvalidArgument)
}

func (s *presaleSuite) TestWithdrawRoundSupply() {
	c := ctx.Background()

	s.Nil(s.impl.WithdrawRoundSupply(c, ownerAddr, ownerAddr, 1))

	rounds, err := s.impl.Rounds(c)
	s.Nil(err)
	s.Equal(int64(0), rounds[0].RemainingSupply.Int64())

	ownerBal, err := s.saleToken.BalanceOf(c, ownerAddr)
	s.Nil(err)
	s.Equal(tokens(100), ownerBal)

	// the round is empty now, a second withdrawal has nothing to pay out
	err = s.impl.WithdrawRoundSupply(c, ownerAddr, ownerAddr, 1)
	s.ErrorIs(err, domain.ErrInsufficientBalance)

	ownerBal, err = s.saleToken.BalanceOf(c, ownerAddr)
	s.Nil(err)
	s.Equal(tokens(100), ownerBal)
}

func (s *presaleSuite) TestTransferOwnership() {
	c := ctx.Background()

	err := s.impl.TransferOwnership(c, buyerAddr, bridgeAddr)
	s.ErrorIs(err, domain.ErrPermissionDenied)

	s.Nil(s.impl.TransferOwnership(c, ownerAddr, buyerAddr))

	owner, err := s.schedule.Owner(c)
	s.Nil(err)
	s.Equal(buyerAddr.ToLower(), owner)
}
