package main

import (
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/go-playground/validator/v10"
	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/base/database/mongoclient"
	"github.com/talmarket/goapi/base/log"
	bValidator "github.com/talmarket/goapi/base/validator"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/ledger"
	"github.com/talmarket/goapi/domain/market"
	"github.com/talmarket/goapi/domain/presale"
	mmiddleware "github.com/talmarket/goapi/middleware"
	"github.com/talmarket/goapi/service/chain"
	"github.com/talmarket/goapi/service/pricefeed"
	"github.com/talmarket/goapi/service/query"
	"github.com/talmarket/goapi/service/statedb"
	event_delivery "github.com/talmarket/goapi/stores/event/delivery/http"
	event_repository "github.com/talmarket/goapi/stores/event/repository"
	ledger_repository "github.com/talmarket/goapi/stores/ledger/repository"
	market_delivery "github.com/talmarket/goapi/stores/market/delivery/http"
	market_repository "github.com/talmarket/goapi/stores/market/repository"
	market_usecase "github.com/talmarket/goapi/stores/market/usecase"
	presale_delivery "github.com/talmarket/goapi/stores/presale/delivery/http"
	presale_repository "github.com/talmarket/goapi/stores/presale/repository"
	presale_usecase "github.com/talmarket/goapi/stores/presale/usecase"
	registry_delivery "github.com/talmarket/goapi/stores/registry/delivery/http"
	registry_repository "github.com/talmarket/goapi/stores/registry/repository"
	registry_usecase "github.com/talmarket/goapi/stores/registry/usecase"
)

func init() {
	configPath := pflag.String("config", "infra/configs/config.yaml", "config file path")
	pflag.Parse()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(*configPath)
	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}

	if viper.GetBool(`debug`) {
		log.Log().Info("Service RUN on DEBUG mode")
	}
}

func main() {
	// init echo
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	middL := mmiddleware.InitMiddleware()
	e.Use(middL.ResponseLogger())
	e.Use(middL.AddContext())
	e.Use(middleware.CORS())
	e.Validator = bValidator.NewCustomValidator(validator.New())

	context := ctx.Background()

	// init state store
	context.Info("init state store")
	var kv statedb.KV
	if path := viper.GetString("state.path"); path != "" {
		var err error
		if kv, err = statedb.NewLevelKV(path); err != nil {
			context.WithField("err", err).Panic("fail to open state store")
		}
	} else {
		context.Info("state.path not set, using in-memory state")
		kv = statedb.NewMemKV()
	}
	state := statedb.New(kv)

	// init mongo client for the event log
	context.Info("init mongo")
	uri := viper.GetString("mongo.uri")
	authDBName := viper.GetString("mongo.authDBName")
	dbName := viper.GetString("mongo.dbName")
	enableSSL := viper.GetBool("mongo.enableSSL")
	mongoClient := mongoclient.MustConnectMongoClient(uri, authDBName, dbName, enableSSL, true, 2)
	q := query.New(mongoClient)

	// init price feed
	var feed pricefeed.Feed
	feedDecimals := uint8(viper.GetUint32("pricefeed.decimals"))
	if staticAnswer := viper.GetString("pricefeed.staticAnswer"); staticAnswer != "" {
		answer, ok := new(big.Int).SetString(staticAnswer, 10)
		if !ok {
			context.WithField("staticAnswer", staticAnswer).Panic("bad static feed answer")
		}
		feed = pricefeed.NewStatic(answer, feedDecimals)
	} else {
		networks := viper.Sub("networks")
		rpcs := make(map[int32]string)
		for k := range networks.AllSettings() {
			rpcs[networks.GetInt32(k+".chainId")] = networks.GetString(k + ".rpcUrl")
		}
		chainService, err := chain.NewClient(context, &chain.ClientCfg{RpcUrls: rpcs})
		if err != nil {
			context.WithField("err", err).Warn("chainService started with error")
		}
		feed = pricefeed.New(
			chainService,
			viper.GetInt32("pricefeed.chainId"),
			domain.Address(viper.GetString("pricefeed.address")),
			feedDecimals,
		)
	}

	// construct repository, usecase and delivery
	eventRepo := event_repository.New(q)
	multiToken := ledger_repository.NewMultiToken(state)
	talToken := ledger_repository.NewFungible(state, "tal")
	usdtToken := ledger_repository.NewFungible(state, "usdt")
	bnbCoin := ledger_repository.NewFungible(state, "bnb")
	membershipRepo := registry_repository.NewMembershipRepo(state)
	tokenRepo := registry_repository.NewTokenRepo(state)
	listingRepo := market_repository.NewListingRepo(state)
	settingsRepo := market_repository.NewSettingsRepo(state)
	scheduleRepo := presale_repository.NewScheduleRepo(state)

	seedGenesis(context, state, scheduleRepo, settingsRepo, map[string]ledger.Fungible{
		"tal":  talToken,
		"usdt": usdtToken,
		"bnb":  bnbCoin,
	})

	registryUC := registry_usecase.New(&registry_usecase.RegistryUseCaseCfg{
		State:      state,
		Membership: membershipRepo,
		Token:      tokenRepo,
		MultiToken: multiToken,
	})
	marketUC := market_usecase.New(&market_usecase.MarketUseCaseCfg{
		State:        state,
		Listing:      listingRepo,
		Settings:     settingsRepo,
		Membership:   membershipRepo,
		MultiToken:   multiToken,
		Settlement:   talToken,
		Event:        eventRepo,
		MarketAddr:   domain.Address(viper.GetString("market.address")),
		PlatformAddr: domain.Address(viper.GetString("market.platform")),
		FeeAdmin:     domain.Address(viper.GetString("market.feeAdmin")),
	})
	presaleUC := presale_usecase.New(&presale_usecase.PresaleUseCaseCfg{
		State:       state,
		Schedule:    scheduleRepo,
		SaleToken:   talToken,
		Stablecoin:  usdtToken,
		NativeCoin:  bnbCoin,
		Feed:        feed,
		Event:       eventRepo,
		PresaleAddr: domain.Address(viper.GetString("presale.address")),
		BridgeAddr:  domain.Address(viper.GetString("presale.bridge")),
	})

	registry_delivery.New(e, registryUC, middL)
	market_delivery.New(e, marketUC, middL)
	presale_delivery.New(e, presaleUC, middL)
	event_delivery.New(e, eventRepo)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{"status": "ok"})
	})

	go func() {
		if err := e.Start(viper.GetString("server.address")); err != nil && err != http.ErrServerClosed {
			log.Log().WithField("err", err).Error("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-quit
	log.Log().WithField("signal", sig).Info("received signal")
	shutdownCtx, cancel := ctx.WithTimeout(context, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Log().WithField("err", err).Error("shutting down the server")
	} else {
		log.Log().Info("shutdown server successfully")
	}

	if err := kv.Close(); err != nil {
		log.Log().WithField("err", err).Error("closing state store")
	}
}

const genesisDoneKey = "genesis/done"

// seedGenesis applies the configured initial state once: owners, fee
// settings, presale schedule and initial ledger balances.
func seedGenesis(
	context ctx.Ctx,
	state *statedb.StateDB,
	schedule presale.ScheduleRepo,
	settings market.SettingsRepo,
	fungibles map[string]ledger.Fungible,
) {
	if _, err := state.Get(genesisDoneKey); err == nil {
		context.Info("genesis already applied")
		return
	} else if err != statedb.ErrNotFound {
		context.WithField("err", err).Panic("fail to read genesis marker")
	}

	if owner := viper.GetString("market.owner"); owner != "" {
		if err := settings.SetOwner(context, domain.Address(owner)); err != nil {
			context.WithField("err", err).Panic("fail to seed market owner")
		}
	}
	if err := settings.SetFeePercents(context, &market.FeePercents{
		Primary:    viper.GetInt64("market.feePrimary"),
		Secondhand: viper.GetInt64("market.feeSecondhand"),
	}); err != nil {
		context.WithField("err", err).Panic("fail to seed fee percents")
	}
	if owner := viper.GetString("presale.owner"); owner != "" {
		if err := schedule.SetOwner(context, domain.Address(owner)); err != nil {
			context.WithField("err", err).Panic("fail to seed presale owner")
		}
	}

	var rounds []struct {
		Length         int64  `mapstructure:"length"`
		ReferencePrice string `mapstructure:"referencePrice"`
		Supply         string `mapstructure:"supply"`
	}
	if err := viper.UnmarshalKey("presale.rounds", &rounds); err != nil {
		context.WithField("err", err).Panic("fail to parse presale rounds")
	}
	for _, r := range rounds {
		nums, err := domain.ToBigInt([]string{r.ReferencePrice, r.Supply})
		if err != nil {
			context.WithField("err", err).Panic("fail to parse presale round numbers")
		}
		if err := schedule.AppendRound(context, &presale.Round{
			Length:          r.Length,
			ReferencePrice:  nums[0],
			RemainingSupply: nums[1],
		}); err != nil {
			context.WithField("err", err).Panic("fail to seed presale round")
		}
	}

	var balances []struct {
		Address string `mapstructure:"address"`
		Token   string `mapstructure:"token"`
		Amount  string `mapstructure:"amount"`
	}
	if err := viper.UnmarshalKey("genesis.balances", &balances); err != nil {
		context.WithField("err", err).Panic("fail to parse genesis balances")
	}
	for _, b := range balances {
		nums, err := domain.ToBigInt([]string{b.Amount})
		if err != nil {
			context.WithField("err", err).Panic("fail to parse genesis balance")
		}
		fungible, ok := fungibles[b.Token]
		if !ok {
			context.WithField("token", b.Token).Panic("unknown genesis token")
		}
		if err := fungible.Mint(context, domain.Address(b.Address), nums[0]); err != nil {
			context.WithField("err", err).Panic("fail to seed genesis balance")
		}
	}

	state.Put(genesisDoneKey, []byte("1"))
	if err := state.Commit(); err != nil {
		context.WithField("err", err).Panic("fail to commit genesis state")
	}
	context.Info("genesis state applied")
}
