package pricefeed

import (
	"math/big"

	"github.com/talmarket/goapi/base/ctx"
)

// RoundData mirrors the Chainlink aggregator answer tuple.
type RoundData struct {
	RoundId         *big.Int `json:"roundId"`
	Answer          *big.Int `json:"answer"`
	StartedAt       *big.Int `json:"startedAt"`
	UpdatedAt       *big.Int `json:"updatedAt"`
	AnsweredInRound *big.Int `json:"answeredInRound"`
}

// Feed supplies the latest reference-currency price of the native coin.
// Read-only; no staleness check is performed by consumers.
type Feed interface {
	LatestRoundData(c ctx.Ctx) (*RoundData, error)
	Decimals() uint8
}
