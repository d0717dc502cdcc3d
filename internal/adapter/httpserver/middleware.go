package httpserver

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/wallpaperpicker/internal/app"
	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/pscheid92/wallpaperpicker/internal/platform/correlation"
	apperrors "github.com/pscheid92/wallpaperpicker/internal/platform/errors"
)

// correlationMiddleware adopts a well-formed X-Correlation-ID from the caller or creates one,
// and echoes it on the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.Sanitize(c.Request().Header.Get(correlation.Header))
		if id == "" {
			id = correlation.NewID()
		}
		c.Response().Header().Set(correlation.Header, id)

		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ErrorHandlingMiddleware renders handler errors as structured JSON.
// *echo.HTTPError is left to echo's own error handler.
func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				return err
			}

			structuredErr := apperrors.AsStructuredError(classify(err))
			logError(c, structuredErr)

			if c.Response().Committed {
				return nil
			}
			correlationID, _ := correlation.ID(c.Request().Context())
			if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse(correlationID)); err != nil {
				return fmt.Errorf("failed to write error response: %w", err)
			}
			return nil
		}
	}
}

// classify turns domain and infrastructure errors into structured errors.
// Errors that already are structured pass through unchanged.
func classify(err error) error {
	var structuredErr *apperrors.Error
	if errors.As(err, &structuredErr) {
		return err
	}

	switch {
	case errors.Is(err, domain.ErrUnknownDestination):
		return apperrors.ValidationError("unknown destination", err)
	case errors.Is(err, domain.ErrEmptyWallpaperID):
		return apperrors.ValidationError("wallpaper_id is required", err)
	case errors.Is(err, domain.ErrInvalidMaxResults):
		return apperrors.ValidationError("max must be a positive number", err)
	case errors.Is(err, domain.ErrWallpaperNotFound):
		return apperrors.NotFoundError("wallpaper not found", err)
	case errors.Is(err, domain.ErrSnapshotNotFound):
		return apperrors.NotFoundError("nothing to undo", err)
	case errors.Is(err, circuitbreaker.ErrOpen):
		return apperrors.UnavailableError("wallpaper store temporarily unavailable", err)
	case errors.Is(err, app.ErrRestorerNotBound):
		return apperrors.UnavailableError("snapshot restorer is starting", err)
	default:
		return err
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	ctx := c.Request().Context()
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}
	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}
	if err.Cause != nil {
		attrs = append(attrs, "cause", err.Cause)
	}

	switch err.Type {
	case apperrors.TypeValidation:
		slog.InfoContext(ctx, "Validation error", attrs...)
	case apperrors.TypeNotFound:
		slog.InfoContext(ctx, "Not found", attrs...)
	case apperrors.TypeConflict:
		slog.WarnContext(ctx, "Conflict", attrs...)
	case apperrors.TypeUnavailable:
		slog.WarnContext(ctx, "Dependency unavailable", attrs...)
	default:
		slog.ErrorContext(ctx, "Internal error", attrs...)
	}
}
