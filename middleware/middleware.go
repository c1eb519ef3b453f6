package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/talmarket/goapi/base/ctx"
	"github.com/talmarket/goapi/base/delivery"
	"github.com/talmarket/goapi/base/log"
	"github.com/talmarket/goapi/base/metrics"
	"github.com/talmarket/goapi/base/validator"
)

// GoMiddleware represent the data-struct for middleware
type GoMiddleware struct {
	writeMu sync.Mutex
}

// InitMiddleware initialize the middleware
func InitMiddleware() *GoMiddleware {
	return &GoMiddleware{}
}

// CORS will handle the CORS middleware
func (m *GoMiddleware) CORS(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set("Access-Control-Allow-Origin", "*")
		return next(c)
	}
}

// AddContext adds custom context into echo
func (m *GoMiddleware) AddContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			cont := ctx.WithValue(ctx.Background(), "requestID", c.Response().Header().Get(echo.HeaderXRequestID))
			c.Set("ctx", cont)
			return next(c)
		}
	}
}

// SerializeWrites funnels every state-mutating request through one mutex.
// The engines share a single state store and commit whole transitions, so
// hosts apply writes one at a time; reentrancy from in-process callbacks is
// still caught by the per-engine guard underneath, not here.
func (m *GoMiddleware) SerializeWrites() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.writeMu.Lock()
			defer m.writeMu.Unlock()
			return next(c)
		}
	}
}

// ResponseLogger logs response for every request
func (m *GoMiddleware) ResponseLogger() echo.MiddlewareFunc {
	met := metrics.New("http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer met.BumpTime("request.time", "method", c.Request().Method, "path", c.Path()).End()

			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()

			fields := log.Fields{
				"ms":         time.Since(start).Seconds() * 1000,
				"httpStatus": c.Response().Status,
				"host":       req.Host,
				"remoteIP":   c.RealIP(),
				"uri":        c.Request().URL.Path,
				"httpMethod": c.Request().Method,
				"size":       res.Size,
				"userAgent":  req.UserAgent(),
				"referer":    c.Request().Header.Get("Referer"),
			}

			n := res.Status
			switch {
			case n >= 400:
				fields["nextErr"] = err
			default:
			}

			c.Get("ctx").(ctx.Ctx).WithFields(fields).Info("response")
			return nil
		}
	}
}

func IsValidAddress(param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			if !validator.IsValidAddress(c.Param(param)) {
				return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid address")
			}
			return next(c)
		}
	}
}
