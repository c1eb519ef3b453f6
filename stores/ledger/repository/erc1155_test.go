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

type multiTokenSuite struct {
	suite.Suite
	state *statedb.StateDB
	impl  ledger.MultiToken
}

func TestMultiTokenSuite(t *testing.T) {
	suite.Run(t, new(multiTokenSuite))
}

func (s *multiTokenSuite) SetupTest() {
	s.state = statedb.New(statedb.NewMemKV())
	s.impl = NewMultiToken(s.state)
}

func (s *multiTokenSuite) TestMintAndBalance() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")

	s.Nil(s.impl.Mint(c, alice, "1", big.NewInt(10)))

	bal, err := s.impl.BalanceOf(c, alice, "1")
	s.Nil(err)
	s.Equal(int64(10), bal.Int64())

	other, err := s.impl.BalanceOf(c, alice, "2")
	s.Nil(err)
	s.Equal(int64(0), other.Int64())
}

func (s *multiTokenSuite) TestTransferMovesBalance() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")
	bob := domain.Address("0xb0b")

	s.Nil(s.impl.Mint(c, alice, "7", big.NewInt(5)))
	s.Nil(s.impl.SafeTransferFrom(c, alice, alice, bob, "7", big.NewInt(3), nil))

	aBal, err := s.impl.BalanceOf(c, alice, "7")
	s.Nil(err)
	s.Equal(int64(2), aBal.Int64())

	bBal, err := s.impl.BalanceOf(c, bob, "7")
	s.Nil(err)
	s.Equal(int64(3), bBal.Int64())
}

func (s *multiTokenSuite) TestSelfTransferConservesBalance() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")

	s.Nil(s.impl.Mint(c, alice, "7", big.NewInt(5)))
	s.Nil(s.impl.SafeTransferFrom(c, alice, alice, alice, "7", big.NewInt(3), nil))

	bal, err := s.impl.BalanceOf(c, alice, "7")
	s.Nil(err)
	s.Equal(int64(5), bal.Int64())
}

func (s *multiTokenSuite) TestTransferInsufficientBalance() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")
	bob := domain.Address("0xb0b")

	s.Nil(s.impl.Mint(c, alice, "7", big.NewInt(1)))

	err := s.impl.SafeTransferFrom(c, alice, alice, bob, "7", big.NewInt(2), nil)
	s.ErrorIs(err, domain.ErrInsufficientBalance)
}

func (s *multiTokenSuite) TestOperatorNeedsApproval() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")
	bob := domain.Address("0xb0b")
	operator := domain.Address("0x0pe")

	s.Nil(s.impl.Mint(c, alice, "7", big.NewInt(5)))

	err := s.impl.SafeTransferFrom(c, operator, alice, bob, "7", big.NewInt(1), nil)
	s.ErrorIs(err, domain.ErrPermissionDenied)

	s.Nil(s.impl.SetApprovalForAll(c, alice, operator, true))
	s.Nil(s.impl.SafeTransferFrom(c, operator, alice, bob, "7", big.NewInt(1), nil))

	s.Nil(s.impl.SetApprovalForAll(c, alice, operator, false))
	err = s.impl.SafeTransferFrom(c, operator, alice, bob, "7", big.NewInt(1), nil)
	s.ErrorIs(err, domain.ErrPermissionDenied)
}

type acceptingReceiver struct {
	calls int
}

func (r *acceptingReceiver) OnTokenReceived(c ctx.Ctx, operator, from domain.Address, id domain.TokenId, amount *big.Int, data []byte) ([4]byte, error) {
	r.calls++
	return ledger.ReceivedMagic, nil
}

func (r *acceptingReceiver) OnTokenBatchReceived(c ctx.Ctx, operator, from domain.Address, ids []domain.TokenId, amounts []*big.Int, data []byte) ([4]byte, error) {
	r.calls++
	return ledger.BatchReceivedMagic, nil
}

type rejectingReceiver struct{}

func (r *rejectingReceiver) OnTokenReceived(c ctx.Ctx, operator, from domain.Address, id domain.TokenId, amount *big.Int, data []byte) ([4]byte, error) {
	return [4]byte{}, nil
}

func (r *rejectingReceiver) OnTokenBatchReceived(c ctx.Ctx, operator, from domain.Address, ids []domain.TokenId, amounts []*big.Int, data []byte) ([4]byte, error) {
	return [4]byte{}, nil
}

func (s *multiTokenSuite) TestReceiverCallback() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")
	vault := domain.Address("0xva117")
	r := &acceptingReceiver{}
	s.impl.RegisterReceiver(vault, r)

	s.Nil(s.impl.Mint(c, alice, "7", big.NewInt(5)))
	s.Nil(s.impl.SafeTransferFrom(c, alice, alice, vault, "7", big.NewInt(2), nil))
	s.Equal(1, r.calls)
}

func (s *multiTokenSuite) TestReceiverRejectionFailsTransfer() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")
	vault := domain.Address("0xva117")
	s.impl.RegisterReceiver(vault, &rejectingReceiver{})

	s.Nil(s.impl.Mint(c, alice, "7", big.NewInt(5)))
	err := s.impl.SafeTransferFrom(c, alice, alice, vault, "7", big.NewInt(2), nil)
	s.ErrorIs(err, domain.ErrPreconditionFailed)
}

func (s *multiTokenSuite) TestBatchTransfer() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")
	bob := domain.Address("0xb0b")

	s.Nil(s.impl.Mint(c, alice, "1", big.NewInt(4)))
	s.Nil(s.impl.Mint(c, alice, "2", big.NewInt(6)))

	ids := []domain.TokenId{"1", "2"}
	amounts := []*big.Int{big.NewInt(1), big.NewInt(2)}
	s.Nil(s.impl.SafeBatchTransferFrom(c, alice, alice, bob, ids, amounts, nil))

	bals, err := s.impl.BalanceOfBatch(c, []domain.Address{bob, bob}, ids)
	s.Nil(err)
	s.Equal(int64(1), bals[0].Int64())
	s.Equal(int64(2), bals[1].Int64())

	_, err = s.impl.BalanceOfBatch(c, []domain.Address{bob}, ids)
	s.ErrorIs(err, domain.ErrInvalidArgument)
}
