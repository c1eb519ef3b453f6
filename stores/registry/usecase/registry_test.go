package usecase

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/registry"
	"github.com/talmarket/goapi/service/statedb"
	ledgerRepo "github.com/talmarket/goapi/stores/ledger/repository"
	registryRepo "github.com/talmarket/goapi/stores/registry/repository"
)

type registrySuite struct {
	suite.Suite
	state *statedb.StateDB
	impl  registry.Usecase
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(registrySuite))
}

func (s *registrySuite) SetupTest() {
	s.state = statedb.New(statedb.NewMemKV())
	s.impl = New(&RegistryUseCaseCfg{
		State:      s.state,
		Membership: registryRepo.NewMembershipRepo(s.state),
		Token:      registryRepo.NewTokenRepo(s.state),
		MultiToken: ledgerRepo.NewMultiToken(s.state),
	})
}

func (s *registrySuite) TestMintAssignsSequentialIds() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")

	id1, err := s.impl.Mint(c, alice, big.NewInt(10), "ipfs://one")
	s.Nil(err)
	s.Equal(domain.TokenId("1"), id1)

	id2, err := s.impl.Mint(c, alice, big.NewInt(5), "ipfs://two")
	s.Nil(err)
	s.Equal(domain.TokenId("2"), id2)

	uri, err := s.impl.Uri(c, id1)
	s.Nil(err)
	s.Equal("ipfs://one", uri)

	ids, err := s.impl.Membership(c, registry.KindFresh, alice)
	s.Nil(err)
	s.Equal([]domain.TokenId{"1", "2"}, ids)
}

func (s *registrySuite) TestMintRejectsZeroAmount() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")

	_, err := s.impl.Mint(c, alice, big.NewInt(0), "ipfs://zero")
	s.ErrorIs(err, domain.ErrInvalidArgument)

	// nothing persisted
	ids, err := s.impl.Membership(c, registry.KindFresh, alice)
	s.Nil(err)
	s.Empty(ids)
}

func (s *registrySuite) TestMembershipAddIsIdempotent() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")

	s.Nil(s.impl.AddMembership(c, registry.KindSecondhand, alice, "9"))
	s.Nil(s.impl.AddMembership(c, registry.KindSecondhand, alice, "9"))

	ids, err := s.impl.Membership(c, registry.KindSecondhand, alice)
	s.Nil(err)
	s.Equal([]domain.TokenId{"9"}, ids)
}

func (s *registrySuite) TestMembershipAcceptsZeroAddress() {
	c := ctx.Background()

	s.Nil(s.impl.AddMembership(c, registry.KindFresh, domain.EmptyAddress, "9"))

	ids, err := s.impl.Membership(c, registry.KindFresh, domain.EmptyAddress)
	s.Nil(err)
	s.Equal([]domain.TokenId{"9"}, ids)

	s.Nil(s.impl.RemoveMembership(c, registry.KindFresh, domain.EmptyAddress, "9"))
	s.Nil(s.impl.RemoveMembership(c, registry.KindFresh, "", "9"))
}

func (s *registrySuite) TestMembershipRemoveSwapsWithLast() {
	c := ctx.Background()
	alice := domain.Address("0xa11ce")

	for _, id := range []domain.TokenId{"1", "2", "3"} {
		s.Nil(s.impl.AddMembership(c, registry.KindFresh, alice, id))
	}
	s.Nil(s.impl.RemoveMembership(c, registry.KindFresh, alice, "1"))

	ids, err := s.impl.Membership(c, registry.KindFresh, alice)
	s.Nil(err)
	s.Equal([]domain.TokenId{"3", "2"}, ids)

	// removing an absent id is a no-op
	s.Nil(s.impl.RemoveMembership(c, registry.KindFresh, alice, "1"))
}

func (s *registrySuite) TestUriOfUnknownToken() {
	c := ctx.Background()
	_, err := s.impl.Uri(c, "404")
	s.ErrorIs(err, domain.ErrNotFound)
}
