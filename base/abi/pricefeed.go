package abi

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// PriceFeedABI is the Chainlink AggregatorV3 read surface.
var PriceFeedABI abi.ABI

var priceFeedABI = `[{"type":"function","name":"latestRoundData","constant":true,"stateMutability":"view","payable":false,"inputs":[],"outputs":[{"type":"uint80","name":"roundId"},{"type":"int256","name":"answer"},{"type":"uint256","name":"startedAt"},{"type":"uint256","name":"updatedAt"},{"type":"uint80","name":"answeredInRound"}]},{"type":"function","name":"decimals","constant":true,"stateMutability":"view","payable":false,"inputs":[],"outputs":[{"type":"uint8"}]},{"type":"function","name":"latestAnswer","constant":true,"stateMutability":"view","payable":false,"inputs":[],"outputs":[{"type":"int256"}]}]`

func init() {
	_abi, err := abi.JSON(strings.NewReader(priceFeedABI))
	if err != nil {
		panic("Failed to parse price feed abi")
	}
	PriceFeedABI = _abi
}
