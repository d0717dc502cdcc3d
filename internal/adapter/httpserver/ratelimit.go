package httpserver

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/pscheid92/wallpaperpicker/internal/platform/correlation"
	apperrors "github.com/pscheid92/wallpaperpicker/internal/platform/errors"
)

const rateLimiterExpiry = 5 * time.Minute

// newRateLimiter limits writes per client IP and destination.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP() + "|" + c.Param("destination"), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			correlationID, _ := correlation.ID(c.Request().Context())
			return c.JSON(http.StatusTooManyRequests, apperrors.ErrorResponse{
				Error:         "rate limit exceeded",
				Type:          "rate_limited",
				CorrelationID: correlationID,
			})
		},
	})
}
