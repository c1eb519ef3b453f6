package registry

import (
	"math/big"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
)

// Kind selects one of the two membership books kept per account.
type Kind string

const (
	KindFresh      Kind = "fresh"
	KindSecondhand Kind = "secondhand"
)

func (k Kind) IsValid() bool {
	return k == KindFresh || k == KindSecondhand
}

// MembershipRepo keeps the advisory per-account token-id lists. Membership
// is bookkeeping layered on the custody ledger; callers that move custody
// are responsible for keeping it consistent.
type MembershipRepo interface {
	// Add appends tokenId unless already present. No-op on duplicate.
	Add(c ctx.Ctx, kind Kind, account domain.Address, tokenId domain.TokenId) error
	// Remove drops tokenId via swap-with-last-and-truncate. No-op if absent.
	Remove(c ctx.Ctx, kind Kind, account domain.Address, tokenId domain.TokenId) error
	// List returns the current list. Order is swap-removal order after any
	// removal, not insertion order.
	List(c ctx.Ctx, kind Kind, account domain.Address) ([]domain.TokenId, error)
}

// TokenRepo owns the monotonic token-id counter and the per-token URI table.
type TokenRepo interface {
	NextTokenId(c ctx.Ctx) (domain.TokenId, error)
	SetUri(c ctx.Ctx, id domain.TokenId, uri string) error
	Uri(c ctx.Ctx, id domain.TokenId) (string, error)
}

type Usecase interface {
	AddMembership(c ctx.Ctx, kind Kind, account domain.Address, tokenId domain.TokenId) error
	RemoveMembership(c ctx.Ctx, kind Kind, account domain.Address, tokenId domain.TokenId) error
	Membership(c ctx.Ctx, kind Kind, account domain.Address) ([]domain.TokenId, error)

	// Mint creates a new token id, records its URI, credits the caller on
	// the custody ledger and adds the id to the caller's fresh book.
	Mint(c ctx.Ctx, caller domain.Address, amount *big.Int, uri string) (domain.TokenId, error)
	Uri(c ctx.Ctx, id domain.TokenId) (string, error)
}
