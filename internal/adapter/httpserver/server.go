package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/wallpaperpicker/internal/adapter/metrics"
	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/pscheid92/wallpaperpicker/internal/flow"
	"github.com/pscheid92/wallpaperpicker/internal/platform/config"
)

// selectionService is the part of app.WallpaperInteractor served over HTTP.
type selectionService interface {
	SelectedWallpaperID(destination domain.Destination) flow.StateFlow[string]
	SelectingWallpaperID(destination domain.Destination) flow.Flow[string]
	Previews(destination domain.Destination, maxResults int) flow.Flow[[]domain.WallpaperModel]
	SetWallpaper(ctx context.Context, destination domain.Destination, wallpaperID string) error
	LoadThumbnail(ctx context.Context, wallpaperID string) (*domain.Thumbnail, error)
}

// snapshotService is the part of app.SnapshotRestorer served over HTTP.
type snapshotService interface {
	Undo(ctx context.Context, destination domain.Destination) ([]domain.Snapshot, error)
	History(ctx context.Context, destination domain.Destination, limit int) ([]domain.Snapshot, error)
}

// Observability bundles the optional metrics the server records. Nil fields are skipped.
type Observability struct {
	MetricsHandler http.Handler
	HTTP           *metrics.HTTPMetrics
	Selection      *metrics.SelectionMetrics
	Stream         *metrics.StreamMetrics
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	selection selectionService
	snapshots snapshotService
	obs       Observability

	upgrader websocket.Upgrader
	// streamCtx outlives requests; hijacked stream connections end when it is cancelled.
	streamCtx    context.Context
	stopStreams  context.CancelFunc
	healthChecks []HealthCheck
	startTime    time.Time
}

func NewServer(cfg *config.Config, selection selectionService, snapshots snapshotService, obs Observability, healthChecks []HealthCheck, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	streamCtx, stopStreams := context.WithCancel(context.Background())

	srv := &Server{
		echo:      e,
		config:    cfg,
		clock:     clock,
		selection: selection,
		snapshots: snapshots,
		obs:       obs,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.AppURL, !cfg.IsProduction()),
		},
		streamCtx:    streamCtx,
		stopStreams:  stopStreams,
		healthChecks: healthChecks,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown closes open streams, then drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopStreams()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
