package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/base/delivery"
	"github.com/talmarket/goapi/domain"
	"github.com/talmarket/goapi/domain/registry"
	"github.com/talmarket/goapi/middleware"
)

type handler struct {
	registry registry.Usecase
}

// New registers the token registry endpoints. Mutating routes run behind
// the write serializer.
func New(e *echo.Echo, registry registry.Usecase, m *middleware.GoMiddleware) {
	h := &handler{registry}

	e.POST("/registry/tokens", h.mint, m.SerializeWrites())
	e.GET("/registry/tokens/:id/uri", h.uri)
	e.GET("/registry/accounts/:account/tokens", h.membership)
}

func (h *handler) mint(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type payload struct {
		Caller domain.Address `json:"caller" validate:"required"`
		Amount string         `json:"amount" validate:"required"`
		Uri    string         `json:"uri"`
	}

	p := &payload{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if err := c.Validate(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	amounts, err := domain.ToBigInt([]string{p.Amount})
	if err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if id, err := h.registry.Mint(ctx, p.Caller, amounts[0], p.Uri); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusCreated, map[string]interface{}{"tokenId": id})
	}
}

func (h *handler) uri(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		Id domain.TokenId `param:"id"`
	}

	p := &params{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if uri, err := h.registry.Uri(ctx, p.Id); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, map[string]interface{}{"uri": uri})
	}
}

func (h *handler) membership(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		Account domain.Address `param:"account"`
		Kind    registry.Kind  `query:"kind"`
	}

	p := &params{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	if p.Kind == "" {
		p.Kind = registry.KindFresh
	}

	if ids, err := h.registry.Membership(ctx, p.Kind, p.Account); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, ids)
	}
}
