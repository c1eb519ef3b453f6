package presale

import (
	"math/big"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/domain"
)

// Round is one sale phase. Rounds are 1-indexed externally.
//
// Length is the round's closing boundary expressed in seconds from the sale
// start, not a per-round duration to be prefix-summed; configure schedules
// with strictly increasing values. The final round's boundary is never
// reached (open-ended).
type Round struct {
	Length          int64    `json:"length" bson:"length"`
	ReferencePrice  *big.Int `json:"referencePrice" bson:"referencePrice"`
	RemainingSupply *big.Int `json:"remainingSupply" bson:"remainingSupply"`
}

// ScheduleRepo owns the round table and the one-shot sale-start timestamp
// (zero means not started).
type ScheduleRepo interface {
	SaleStart(c ctx.Ctx) (int64, error)
	SetSaleStart(c ctx.Ctx, ts int64) error

	RoundCount(c ctx.Ctx) (int, error)
	Rounds(c ctx.Ctx) ([]*Round, error)
	// FindRound looks up the 1-indexed round.
	FindRound(c ctx.Ctx, round int) (*Round, error)
	UpdateRound(c ctx.Ctx, round int, r *Round) error
	AppendRound(c ctx.Ctx, r *Round) error

	Owner(c ctx.Ctx) (domain.Address, error)
	SetOwner(c ctx.Ctx, owner domain.Address) error
}

type Usecase interface {
	// Start fixes the sale-start timestamp. One-shot, owner-only.
	Start(c ctx.Ctx, caller domain.Address) error

	// CurrentRound returns 0 before Start, otherwise the first round whose
	// boundary has not passed, or the last round once every boundary has.
	CurrentRound(c ctx.Ctx) (int, error)
	// RoundFinished reports whether the round's boundary has passed. The
	// final round is never finished.
	RoundFinished(c ctx.Ctx, round int) (bool, error)
	Rounds(c ctx.Ctx) ([]*Round, error)

	BuyWithNativeCoin(c ctx.Ctx, buyer domain.Address, amount *big.Int, round int, payment *big.Int) error
	BuyWithStablecoin(c ctx.Ctx, buyer domain.Address, amount *big.Int, round int) error
	// BuyOnBehalf is restricted to the payment bridge; settlement happened
	// off-chain.
	BuyOnBehalf(c ctx.Ctx, caller domain.Address, amount *big.Int, round int, recipient domain.Address) error

	// FundRoundSupply adds supply to a round; round 0 appends a new supply
	// slot instead of funding an existing one.
	FundRoundSupply(c ctx.Ctx, caller domain.Address, amount *big.Int, round int) error
	// WithdrawRoundSupply zeroes a round's remaining supply and pays it out.
	WithdrawRoundSupply(c ctx.Ctx, caller, recipient domain.Address, round int) error

	TransferOwnership(c ctx.Ctx, caller, newOwner domain.Address) error
}
