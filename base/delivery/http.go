package delivery

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/talmarket/goapi/domain"
)

type JsonResponseStatus string

const (
	JsonResponseStatusSuccess JsonResponseStatus = "success"
	JsonResponseStatusFail    JsonResponseStatus = "fail"
)

type JsonResponse struct {
	Data   interface{}        `json:"data"`
	Status JsonResponseStatus `json:"status"`
}

// MakeJsonResp writes the uniform response envelope. When data is an error,
// the status code is refined by the domain error category so callers get a
// stable mapping regardless of which handler surfaced the failure.
func MakeJsonResp(c echo.Context, status int, data interface{}) error {
	if err, ok := data.(error); ok {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, domain.ErrInvalidArgument):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrPermissionDenied):
			status = http.StatusForbidden
		case errors.Is(err, domain.ErrInsufficientBalance):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrStateConflict),
			errors.Is(err, domain.ErrPreconditionFailed):
			status = http.StatusConflict
		}
		data = err.Error()
	}

	if status >= 400 {
		return c.JSON(status, JsonResponse{data, JsonResponseStatusFail})
	}

	if status >= 200 && status < 300 {
		return c.JSON(status, JsonResponse{data, JsonResponseStatusSuccess})
	}

	return c.JSON(status, data)
}
