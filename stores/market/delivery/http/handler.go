package http

import (
	"math/big"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/base/delivery"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/market"
	"github.com/talmarket/goapi/middleware"
)

type handler struct {
	market market.Usecase
}

// New registers the marketplace endpoints. Mutating routes run behind the
// write serializer.
func New(e *echo.Echo, market market.Usecase, m *middleware.GoMiddleware) {
	h := &handler{market}

	serialized := m.SerializeWrites()

	e.GET("/market/listings", h.listings)
	e.GET("/market/accounts/:account/listings", h.accountListings)

	e.POST("/market/listings", h.list, serialized)
	e.POST("/market/buy", h.buy, serialized)
	e.POST("/market/cancel", h.cancel, serialized)

	e.PATCH("/market/fees", h.setFees, serialized)
	e.POST("/market/ownership", h.transferOwnership, serialized)
}

type listingView struct {
	TokenId         domain.TokenId `json:"tokenId"`
	Seller          domain.Address `json:"seller"`
	UnitPrice       string         `json:"unitPrice"`
	Amount          string         `json:"amount"`
	UnlistingAmount string         `json:"unlistingAmount"`
	// TotalPrice is the whole-listing price in settlement tokens,
	// rendered with 18 decimals
	TotalPrice string `json:"totalPrice"`
}

func toListingView(l *market.Listing) *listingView {
	total := new(big.Int).Mul(l.UnitPrice, l.Amount)
	total.Mul(total, domain.WeiPerToken)
	return &listingView{
		TokenId:         l.TokenId,
		Seller:          l.Seller,
		UnitPrice:       l.UnitPrice.String(),
		Amount:          l.Amount.String(),
		UnlistingAmount: l.UnlistingAmount.String(),
		TotalPrice:      decimal.NewFromBigInt(total, -18).String(),
	}
}

func bookOrDefault(b market.Book) market.Book {
	if b == "" {
		return market.BookPrimary
	}
	return b
}

func (h *handler) listings(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		Book   market.Book `query:"book"`
		Offset int         `query:"offset"`
		Size   int         `query:"size"`
	}

	p := &params{Size: 20}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	res, err := h.market.ListingTokens(ctx, bookOrDefault(p.Book), p.Offset, p.Size)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	views := make([]*listingView, 0, len(res))
	for _, l := range res {
		views = append(views, toListingView(l))
	}
	return delivery.MakeJsonResp(c, http.StatusOK, views)
}

func (h *handler) accountListings(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		Account domain.Address `param:"account"`
		Book    market.Book    `query:"book"`
	}

	p := &params{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	res, err := h.market.AccountListingTokens(ctx, bookOrDefault(p.Book), p.Account)
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	views := make([]*listingView, 0, len(res))
	for _, l := range res {
		views = append(views, toListingView(l))
	}
	return delivery.MakeJsonResp(c, http.StatusOK, views)
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type payload struct {
		Book      market.Book    `json:"book"`
		Caller    domain.Address `json:"caller" validate:"required"`
		TokenId   domain.TokenId `json:"tokenId" validate:"required"`
		UnitPrice string         `json:"unitPrice" validate:"required"`
		Amount    string         `json:"amount" validate:"required"`
	}

	p := &payload{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	nums, err := domain.ToBigInt([]string{p.UnitPrice, p.Amount})
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := h.market.List(ctx, bookOrDefault(p.Book), p.Caller, p.TokenId, nums[0], nums[1]); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusCreated, nil)
}

func (h *handler) buy(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type payload struct {
		Book    market.Book    `json:"book"`
		Buyer   domain.Address `json:"buyer" validate:"required"`
		TokenId domain.TokenId `json:"tokenId" validate:"required"`
		Amount  string         `json:"amount" validate:"required"`
		Seller  domain.Address `json:"seller" validate:"required"`
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

	if err := h.market.Buy(ctx, bookOrDefault(p.Book), p.Buyer, p.TokenId, nums[0], p.Seller); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) cancel(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type payload struct {
		Book    market.Book    `json:"book"`
		Caller  domain.Address `json:"caller" validate:"required"`
		TokenId domain.TokenId `json:"tokenId" validate:"required"`
		Amount  string         `json:"amount" validate:"required"`
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

	if err := h.market.Cancel(ctx, bookOrDefault(p.Book), p.Caller, p.TokenId, nums[0]); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}

func (h *handler) setFees(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type payload struct {
		Caller     domain.Address `json:"caller" validate:"required"`
		Primary    int64          `json:"primary"`
		Secondhand int64          `json:"secondhand"`
	}

	p := &payload{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	fees := &market.FeePercents{Primary: p.Primary, Secondhand: p.Secondhand}
	if err := h.market.SetFeePercents(ctx, p.Caller, fees); err != nil {
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

	if err := h.market.TransferOwnership(ctx, p.Caller, p.NewOwner); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, nil)
}
