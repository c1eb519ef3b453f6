package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/base/delivery"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/presale"
	"github.com/talmarket/goapi/middleware"
)

type handler struct {
	presale presale.Usecase
}

// New registers the presale endpoints. Mutating routes run behind the write
// serializer.
func New(e *echo.Echo, presale presale.Usecase, m *middleware.GoMiddleware) {
	h := &handler{presale}

	serialized := m.SerializeWrites()

	e.GET("/presale/rounds", h.rounds)
	e.GET("/presale/round", h.currentRound)

	e.POST("/presale/start", h.start, serialized)
	e.POST("/presale/buy/native", h.buyNative, serialized)
	e.POST("/presale/buy/stable", h.buyStable, serialized)
	e.POST("/presale/buy/cash", h.buyCash, serialized)
	e.POST("/presale/rounds/fund", h.fund, serialized)
	e.POST("/presale/rounds/withdraw", h.withdraw, serialized)
	e.POST("/presale/ownership", h.transferOwnership, serialized)
}

type roundView struct {
	Round           int    `json:"round"`
	Length          int64  `json:"length"`
	ReferencePrice  string `json:"referencePrice"`
	RemainingSupply string `json:"remainingSupply"`
	Finished        bool   `json:"finished"`
}

func (h *handler) rounds(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	rounds, err := h.presale.Rounds(ctx)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	views := make([]*roundView, 0, len(rounds))
	for i, r := range rounds {
		finished, err := h.presale.RoundFinished(ctx, i+1)
		if err != nil {
			// not started yet, every round reads as open
			finished = false
		}
		views = append(views, &roundView{
			Round:           i + 1,
			Length:          r.Length,
			ReferencePrice:  r.ReferencePrice.String(),
			RemainingSupply: r.RemainingSupply.String(),
			Finished:        finished,
		})
	}
	return delivery.MakeJsonResp(c, http.StatusOK, views)
}

func (h *handler) currentRound(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	round, err := h.presale.CurrentRound(ctx)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, map[string]interface{}{"round": round})
}

func (h *handler) start(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type payload struct {
		Caller domain.Address `json:"caller" validate:"required"`
	}

	p := &payload{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.presale.Start(ctx, p.Caller); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) buyNative(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type payload struct {
		Buyer   domain.Address `json:"buyer" validate:"required"`
		Amount  string         `json:"amount" validate:"required"`
		Round   int            `json:"round"`
		Payment string         `json:"payment" validate:"required"`
	}

	p := &payload{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	nums, err := domain.ToBigInt([]string{p.Amount, p.Payment})
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.presale.BuyWithNativeCoin(ctx, p.Buyer, nums[0], p.Round, nums[1]); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) buyStable(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type payload struct {
		Buyer  domain.Address `json:"buyer" validate:"required"`
		Amount string         `json:"amount" validate:"required"`
		Round  int            `json:"round"`
	}

	p := &payload{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	nums, err := domain.ToBigInt([]string{p.Amount})
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.presale.BuyWithStablecoin(ctx, p.Buyer, nums[0], p.Round); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) buyCash(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type payload struct {
		Caller    domain.Address `json:"caller" validate:"required"`
		Amount    string         `json:"amount" validate:"required"`
		Round     int            `json:"round"`
		Recipient domain.Address `json:"recipient" validate:"required"`
	}

	p := &payload{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	nums, err := domain.ToBigInt([]string{p.Amount})
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.presale.BuyOnBehalf(ctx, p.Caller, nums[0], p.Round, p.Recipient); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) fund(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type payload struct {
		Caller domain.Address `json:"caller" validate:"required"`
		Amount string         `json:"amount" validate:"required"`
		Round  int            `json:"round"`
	}

	p := &payload{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	nums, err := domain.ToBigInt([]string{p.Amount})
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.presale.FundRoundSupply(ctx, p.Caller, nums[0], p.Round); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) withdraw(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type payload struct {
		Caller    domain.Address `json:"caller" validate:"required"`
		Recipient domain.Address `json:"recipient" validate:"required"`
		Round     int            `json:"round"`
	}

	p := &payload{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.presale.WithdrawRoundSupply(ctx, p.Caller, p.Recipient, p.Round); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) transferOwnership(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type payload struct {
		Caller   domain.Address `json:"caller" validate:"required"`
		NewOwner domain.Address `json:"newOwner" validate:"required"`
	}

	p := &payload{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.presale.TransferOwnership(ctx, p.Caller, p.NewOwner); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}
