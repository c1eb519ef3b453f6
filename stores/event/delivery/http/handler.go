package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/base/delivery"
	"github.com/talmarket/goapi/domain"
)

type handler struct {
	event domain.EventRepo
}

// New registers the event-log read surface used by indexers.
func New(e *echo.Echo, event domain.EventRepo) {
	h := &handler{event}

	e.GET("/events", h.findAll)
}

func (h *handler) findAll(c echo.Context) error {
	ctx := c.Get("ctx").(ctx.Ctx)

	type params struct {
		Name    string         `query:"name"`
		Account domain.Address `query:"account"`
		Limit   int            `query:"limit"`
	}

	p := &params{}

	if err := c.Bind(p); err != nil {
		ctx.WithField("err", err).Error("c.Bind failed")
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	}

	opts := []domain.EventFindAllOptionsFunc{}
	if p.Name != "" {
		opts = append(opts, domain.EventWithName(domain.EventName(p.Name)))
	}
	if !p.Account.IsEmpty() {
		opts = append(opts, domain.EventWithAccount(p.Account))
	}
	if p.Limit > 0 {
		opts = append(opts, domain.EventWithLimit(p.Limit))
	}

	if res, err := h.event.FindAll(ctx, opts...); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, res)
	}
}
