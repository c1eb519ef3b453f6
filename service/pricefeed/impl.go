package pricefeed

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/talmarket/goapi/base/abi"
	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/base/log"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/keys"
	"github.com/talmarket/goapi/service/cache"
	"github.com/talmarket/goapi/service/cache/provider/primitive"
	"github.com/talmarket/goapi/service/chain"
)

type impl struct {
	chainClient chain.Client
	chainId     int32
	feedAddr    domain.Address
	decimals    uint8
	cache       cache.Service
}

// New creates a Feed backed by an on-chain Chainlink aggregator. Answers
// are cached briefly so bursty purchase traffic does not fan out one RPC
// call per request.
func New(chainClient chain.Client, chainId int32, feedAddr domain.Address, decimals uint8) Feed {
	return &impl{
		chainClient: chainClient,
		chainId:     chainId,
		feedAddr:    feedAddr,
		decimals:    decimals,
		cache: cache.New(cache.ServiceConfig{
			Ttl:   time.Minute,
			Pfx:   "pricefeed_cache",
			Cache: primitive.NewPrimitive("pricefeed_cache", 4),
		}),
	}
}

func (im *impl) LatestRoundData(c ctx.Ctx) (*RoundData, error) {
	var res RoundData

	key := keys.CacheKey(string(im.feedAddr), "latest")

	if err := im.cache.GetByFunc(c, key, &res, func() (interface{}, error) {
		if res, err := im.latestRoundData(c); err != nil {
			c.WithFields(log.Fields{
				"err":      err,
				"feedAddr": im.feedAddr,
			}).Error("latestRoundData failed")
			return nil, err
		} else {
			return res, nil
		}
	}); err != nil {
		c.WithFields(log.Fields{
			"err":      err,
			"feedAddr": im.feedAddr,
		}).Error("cache.GetByFunc failed")
		return nil, err
	}

	return &res, nil
}

func (im *impl) Decimals() uint8 {
	return im.decimals
}

func (im *impl) latestRoundData(c ctx.Ctx) (*RoundData, error) {
	feedAddr := common.HexToAddress(string(im.feedAddr))

	res, err := im.chainClient.Call(c, im.chainId, feedAddr, nil, abi.PriceFeedABI, "latestRoundData")
	if err != nil {
		c.WithFields(log.Fields{
			"err":      err,
			"feedAddr": im.feedAddr,
		}).Error("chainClient.Call failed")
		return nil, err
	}

	return &RoundData{
		RoundId:         res[0].(*big.Int),
		Answer:          res[1].(*big.Int),
		StartedAt:       res[2].(*big.Int),
		UpdatedAt:       res[3].(*big.Int),
		AnsweredInRound: res[4].(*big.Int),
	}, nil
}
