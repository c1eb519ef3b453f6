package market

import (
	"math/big"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
)

// Book selects one of the two structurally identical listing ledgers.
type Book string

const (
	BookPrimary    Book = "primary"
	BookSecondhand Book = "secondhand"
)

func (b Book) IsValid() bool {
	return b == BookPrimary || b == BookSecondhand
}

// ListingId is the composite key of a listing. Two sellers can list the
// same token id independently; one (seller, tokenId) pair has at most one
// active listing per book.
type ListingId struct {
	Seller  domain.Address `json:"seller" bson:"seller"`
	TokenId domain.TokenId `json:"tokenId" bson:"tokenId"`
}

// Listing is an open offer to sell a quantity of one token id, held in
// marketplace custody. A cleared listing has every field zeroed; invariant:
// UnitPrice == 0 iff Amount == 0 iff Seller is the zero address.
type Listing struct {
	UnitPrice *big.Int       `json:"unitPrice" bson:"unitPrice"`
	Seller    domain.Address `json:"seller" bson:"seller"`
	Amount    *big.Int       `json:"amount" bson:"amount"`
	// UnlistingAmount is the seller's remaining unlisted balance at the
	// time of the most recent list call; it decides whether the seller's
	// registry membership is removed when the listing is exhausted.
	UnlistingAmount *big.Int       `json:"unlistingAmount" bson:"unlistingAmount"`
	TokenId         domain.TokenId `json:"id" bson:"id"`
}

// Cleared reports whether the record is in the joint-nullified state.
func (l *Listing) Cleared() bool {
	return l == nil || l.UnitPrice == nil || l.UnitPrice.Sign() == 0
}

// FeePercents carries the whole-percent fee of each book.
type FeePercents struct {
	Primary    int64 `json:"primary" bson:"primary"`
	Secondhand int64 `json:"secondhand" bson:"secondhand"`
}

// ListingRepo owns the two listing books and their ordered key indexes.
type ListingRepo interface {
	// FindOne returns the stored record, or a cleared zero record when the
	// key has never been written.
	FindOne(c ctx.Ctx, book Book, id ListingId) (*Listing, error)
	Upsert(c ctx.Ctx, book Book, id ListingId, listing *Listing) error
	// Clear zeroes the record for the key.
	Clear(c ctx.Ctx, book Book, id ListingId) error

	IndexKeys(c ctx.Ctx, book Book) ([]ListingId, error)
	AppendIndex(c ctx.Ctx, book Book, id ListingId) error
	// RemoveIndex drops the key via swap-with-last-and-truncate, so index
	// order is not stable across removals.
	RemoveIndex(c ctx.Ctx, book Book, id ListingId) error
}

// SettingsRepo keeps marketplace-level configuration state.
type SettingsRepo interface {
	FeePercents(c ctx.Ctx) (*FeePercents, error)
	SetFeePercents(c ctx.Ctx, fees *FeePercents) error
	Owner(c ctx.Ctx) (domain.Address, error)
	SetOwner(c ctx.Ctx, owner domain.Address) error
}

type Usecase interface {
	List(c ctx.Ctx, book Book, caller domain.Address, tokenId domain.TokenId, unitPrice, amount *big.Int) error
	Buy(c ctx.Ctx, book Book, buyer domain.Address, tokenId domain.TokenId, amount *big.Int, seller domain.Address) error
	Cancel(c ctx.Ctx, book Book, caller domain.Address, tokenId domain.TokenId, amount *big.Int) error

	// ListingTokens pages through the book's key index window
	// [offset, offset+size).
	ListingTokens(c ctx.Ctx, book Book, offset, size int) ([]*Listing, error)
	// AccountListingTokens resolves the account's registry membership into
	// the listings actually opened by that account.
	AccountListingTokens(c ctx.Ctx, book Book, account domain.Address) ([]*Listing, error)

	SetFeePercents(c ctx.Ctx, caller domain.Address, fees *FeePercents) error
	TransferOwnership(c ctx.Ctx, caller, newOwner domain.Address) error
}
