package repository

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/ledger"
	"github.com/talmarket/goapi/service/statedb"
)

type fungibleSuite struct {
	suite.Suite
	state *statedb.StateDB
	impl  ledger.Fungible
}

func TestFungibleSuite(t *testing.T) {
	suite.Run(t, new(fungibleSuite))
}

func (s *fungibleSuite) SetupTest() {
	s.state = statedb.New(statedb.NewMemKV())
	s.impl = NewFungible(s.state, "tal")
}

func (s *fungibleSuite) TestTransfer() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")
	bob := domain.Address("0xb0b")

	s.Nil(s.impl.Mint(c, alice, big.NewInt(100)))
	s.Nil(s.impl.Transfer(c, alice, bob, big.NewInt(30)))

	aBal, err := s.impl.BalanceOf(c, alice)
	s.Nil(err)
	s.Equal(int64(70), aBal.Int64())

	bBal, err := s.impl.BalanceOf(c, bob)
	s.Nil(err)
	s.Equal(int64(30), bBal.Int64())

	err = s.impl.Transfer(c, alice, bob, big.NewInt(1000))
	s.ErrorIs(err, domain.ErrInsufficientBalance)
}

func (s *fungibleSuite) TestTransferFromConsumesAllowance() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")
	bob := domain.Address("0xb0b")
	market := domain.Address("0x111a")

	s.Nil(s.impl.Mint(c, alice, big.NewInt(100)))

	err := s.impl.TransferFrom(c, market, alice, bob, big.NewInt(10))
	s.ErrorIs(err, domain.ErrInsufficientBalance)

	s.Nil(s.impl.Approve(c, alice, market, big.NewInt(25)))
	s.Nil(s.impl.TransferFrom(c, market, alice, bob, big.NewInt(10)))

	remaining, err := s.impl.Allowance(c, alice, market)
	s.Nil(err)
	s.Equal(int64(15), remaining.Int64())

	err = s.impl.TransferFrom(c, market, alice, bob, big.NewInt(20))
	s.ErrorIs(err, domain.ErrInsufficientBalance)
}

func (s *fungibleSuite) TestSelfTransferConservesBalance() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")

	s.Nil(s.impl.Mint(c, alice, big.NewInt(100)))
	s.Nil(s.impl.Transfer(c, alice, alice, big.NewInt(40)))

	bal, err := s.impl.BalanceOf(c, alice)
	s.Nil(err)
	s.Equal(int64(100), bal.Int64())

	s.Nil(s.impl.TransferFrom(c, alice, alice, alice, big.NewInt(40)))

	bal, err = s.impl.BalanceOf(c, alice)
	s.Nil(err)
	s.Equal(int64(100), bal.Int64())
}

func (s *fungibleSuite) TestTransferFromBySelfSkipsAllowance() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")
	bob := domain.Address("0xb0b")

	s.Nil(s.impl.Mint(c, alice, big.NewInt(100)))
	s.Nil(s.impl.TransferFrom(c, alice, alice, bob, big.NewInt(10)))

	bBal, err := s.impl.BalanceOf(c, bob)
	s.Nil(err)
	s.Equal(int64(10), bBal.Int64())
}

func (s *fungibleSuite) TestLedgersAreNamespaced() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")
	usdt := NewFungible(s.state, "usdt")

	s.Nil(s.impl.Mint(c, alice, big.NewInt(100)))

	bal, err := usdt.BalanceOf(c, alice)
	s.Nil(err)
	s.Equal(int64(0), bal.Int64())

	var _ ledger.Fungible = usdt
}
