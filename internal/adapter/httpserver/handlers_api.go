package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/pscheid92/wallpaperpicker/internal/flow"
	apperrors "github.com/pscheid92/wallpaperpicker/internal/platform/errors"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	thumbnailCacheAge   = 3600
)

type destinationResponse struct {
	Destination          domain.Destination `json:"destination"`
	SelectedWallpaperID  string             `json:"selected_wallpaper_id"`
	SelectingWallpaperID string             `json:"selecting_wallpaper_id"`
}

type previewsResponse struct {
	Destination domain.Destination      `json:"destination"`
	Previews    []domain.WallpaperModel `json:"previews"`
}

type setWallpaperRequest struct {
	WallpaperID string `json:"wallpaper_id"`
}

type snapshotsResponse struct {
	Destination domain.Destination `json:"destination"`
	Snapshots   []domain.Snapshot  `json:"snapshots"`
}

func (s *Server) registerAPIRoutes() {
	writeLimiter := newRateLimiter(s.config.WriteRateLimit, s.config.WriteRateBurst)

	api := s.echo.Group("/api")
	api.GET("/destinations/:destination", s.handleGetDestination)
	api.GET("/destinations/:destination/previews", s.handleGetPreviews)
	api.PUT("/destinations/:destination/wallpaper", s.handleSetWallpaper, writeLimiter)
	api.POST("/destinations/:destination/undo", s.handleUndo, writeLimiter)
	api.GET("/destinations/:destination/history", s.handleGetHistory)
	api.GET("/wallpapers/:id/thumbnail", s.handleGetThumbnail)
}

func destinationParam(c echo.Context) (domain.Destination, error) {
	raw := c.Param("destination")
	d, err := domain.ParseDestination(raw)
	if err != nil {
		return "", apperrors.ValidationError("unknown destination", err).WithField("destination", raw)
	}
	return d, nil
}

// intQuery parses a positive integer query parameter, falling back to def when absent.
func intQuery(c echo.Context, name string, def, limit int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperrors.ValidationError(name+" must be a positive integer", err).WithField(name, raw)
	}
	if n > limit {
		return 0, apperrors.ValidationError(fmt.Sprintf("%s must not exceed %d", name, limit), nil).WithField(name, n)
	}
	return n, nil
}

func (s *Server) handleGetDestination(c echo.Context) error {
	ctx := c.Request().Context()

	d, err := destinationParam(c)
	if err != nil {
		return err
	}

	selecting, err := flow.First(ctx, s.selection.SelectingWallpaperID(d))
	if err != nil {
		return apperrors.InternalError("failed to read selection state", err).WithField("destination", d.String())
	}

	response := destinationResponse{
		Destination:          d,
		SelectedWallpaperID:  s.selection.SelectedWallpaperID(d).Value(),
		SelectingWallpaperID: selecting,
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetPreviews(c echo.Context) error {
	ctx := c.Request().Context()

	d, err := destinationParam(c)
	if err != nil {
		return err
	}
	maxResults, err := intQuery(c, "max", s.config.DefaultPreviewLimit, s.config.MaxPreviewLimit)
	if err != nil {
		return err
	}

	previews, err := flow.First(ctx, s.selection.Previews(d, maxResults))
	if err != nil {
		return err
	}
	if previews == nil {
		previews = []domain.WallpaperModel{}
	}

	if err := c.JSON(http.StatusOK, previewsResponse{Destination: d, Previews: previews}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleSetWallpaper(c echo.Context) error {
	ctx := c.Request().Context()

	d, err := destinationParam(c)
	if err != nil {
		return err
	}

	var req setWallpaperRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body", err)
	}
	wallpaperID := strings.TrimSpace(req.WallpaperID)

	start := s.clock.Now()
	err = s.selection.SetWallpaper(ctx, d, wallpaperID)
	if s.obs.Selection != nil {
		s.obs.Selection.ObserveSelection(d.String(), s.clock.Since(start).Seconds(), err)
	}
	if err != nil {
		return fmt.Errorf("failed to set wallpaper %q on %s: %w", wallpaperID, d, err)
	}

	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleUndo(c echo.Context) error {
	ctx := c.Request().Context()

	d, err := destinationParam(c)
	if err != nil {
		return err
	}

	restored, err := s.snapshots.Undo(ctx, d)
	if s.obs.Selection != nil {
		s.obs.Selection.Undos.WithLabelValues(undoResult(err)).Inc()
	}
	if err != nil {
		return fmt.Errorf("failed to undo on %s: %w", d, err)
	}

	if err := c.JSON(http.StatusOK, snapshotsResponse{Destination: d, Snapshots: restored}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func undoResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrSnapshotNotFound):
		return "empty"
	default:
		return "error"
	}
}

func (s *Server) handleGetHistory(c echo.Context) error {
	ctx := c.Request().Context()

	d, err := destinationParam(c)
	if err != nil {
		return err
	}
	limit, err := intQuery(c, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		return err
	}

	history, err := s.snapshots.History(ctx, d, limit)
	if err != nil {
		return apperrors.InternalError("failed to load history", err).WithField("destination", d.String())
	}
	if history == nil {
		history = []domain.Snapshot{}
	}

	if err := c.JSON(http.StatusOK, snapshotsResponse{Destination: d, Snapshots: history}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetThumbnail(c echo.Context) error {
	ctx := c.Request().Context()
	wallpaperID := c.Param("id")

	thumb, err := s.selection.LoadThumbnail(ctx, wallpaperID)
	if err != nil {
		return fmt.Errorf("failed to load thumbnail %q: %w", wallpaperID, err)
	}
	if thumb == nil {
		return apperrors.NotFoundError("thumbnail not found", nil).WithField("wallpaper_id", wallpaperID)
	}

	contentType := thumb.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Response().Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", thumbnailCacheAge))
	return c.Blob(http.StatusOK, contentType, thumb.Data)
}
