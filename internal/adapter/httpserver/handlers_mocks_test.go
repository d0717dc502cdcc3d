package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/pscheid92/wallpaperpicker/internal/flow"
	"github.com/pscheid92/wallpaperpicker/internal/platform/config"
)

// --- Mock implementations ---

// mockSelectionService serves selection state from per-destination state flows.
// Function fields override the defaults.
type mockSelectionService struct {
	selected  map[domain.Destination]*flow.MutableStateFlow[string]
	selecting *flow.MutableStateFlow[map[domain.Destination]string]

	previewsFn      func(destination domain.Destination, maxResults int) flow.Flow[[]domain.WallpaperModel]
	setWallpaperFn  func(ctx context.Context, destination domain.Destination, wallpaperID string) error
	loadThumbnailFn func(ctx context.Context, wallpaperID string) (*domain.Thumbnail, error)
}

func newMockSelectionService(home, lock string) *mockSelectionService {
	return &mockSelectionService{
		selected: map[domain.Destination]*flow.MutableStateFlow[string]{
			domain.DestinationHome: flow.NewMutableStateFlow(home),
			domain.DestinationLock: flow.NewMutableStateFlow(lock),
		},
		selecting: flow.NewMutableStateFlow(map[domain.Destination]string{}),
	}
}

func (m *mockSelectionService) surface(d domain.Destination) domain.Destination {
	if d == domain.DestinationAll {
		return domain.DestinationHome
	}
	return d
}

func (m *mockSelectionService) SelectedWallpaperID(destination domain.Destination) flow.StateFlow[string] {
	return m.selected[m.surface(destination)]
}

func (m *mockSelectionService) SelectingWallpaperID(destination domain.Destination) flow.Flow[string] {
	return flow.Map(m.selecting, func(s map[domain.Destination]string) string {
		return s[destination]
	})
}

func (m *mockSelectionService) Previews(destination domain.Destination, maxResults int) flow.Flow[[]domain.WallpaperModel] {
	if m.previewsFn != nil {
		return m.previewsFn(destination, maxResults)
	}
	return flow.Of([]domain.WallpaperModel{{WallpaperID: m.selected[m.surface(destination)].Value()}})
}

func (m *mockSelectionService) SetWallpaper(ctx context.Context, destination domain.Destination, wallpaperID string) error {
	if m.setWallpaperFn != nil {
		return m.setWallpaperFn(ctx, destination, wallpaperID)
	}
	for _, d := range destination.Expand() {
		m.selected[d].Set(wallpaperID)
	}
	return nil
}

func (m *mockSelectionService) LoadThumbnail(ctx context.Context, wallpaperID string) (*domain.Thumbnail, error) {
	if m.loadThumbnailFn != nil {
		return m.loadThumbnailFn(ctx, wallpaperID)
	}
	return nil, nil
}

type mockSnapshotService struct {
	undoFn    func(ctx context.Context, destination domain.Destination) ([]domain.Snapshot, error)
	historyFn func(ctx context.Context, destination domain.Destination, limit int) ([]domain.Snapshot, error)
}

func (m *mockSnapshotService) Undo(ctx context.Context, destination domain.Destination) ([]domain.Snapshot, error) {
	if m.undoFn != nil {
		return m.undoFn(ctx, destination)
	}
	return nil, domain.ErrSnapshotNotFound
}

func (m *mockSnapshotService) History(ctx context.Context, destination domain.Destination, limit int) ([]domain.Snapshot, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, destination, limit)
	}
	return nil, nil
}

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:              "test",
		Port:                "0",
		AppURL:              "https://wallpapers.example.com",
		DefaultPreviewLimit: 5,
		MaxPreviewLimit:     50,
		WriteRateLimit:      100,
		WriteRateBurst:      100,
	}
}

type serverOption func(cfg *config.Config, obs *Observability, checks *[]HealthCheck)

func withHealthChecks(hc ...HealthCheck) serverOption {
	return func(_ *config.Config, _ *Observability, checks *[]HealthCheck) {
		*checks = hc
	}
}

func withObservability(o Observability) serverOption {
	return func(_ *config.Config, obs *Observability, _ *[]HealthCheck) {
		*obs = o
	}
}

func withConfig(fn func(cfg *config.Config)) serverOption {
	return func(cfg *config.Config, _ *Observability, _ *[]HealthCheck) {
		fn(cfg)
	}
}

func newTestServer(t *testing.T, selection selectionService, snapshots snapshotService, opts ...serverOption) *Server {
	t.Helper()

	cfg := testConfig()
	var (
		obs    Observability
		checks []HealthCheck
	)
	for _, opt := range opts {
		opt(cfg, &obs, &checks)
	}

	srv := NewServer(cfg, selection, snapshots, obs, checks, clockwork.NewFakeClock())
	t.Cleanup(srv.stopStreams)
	return srv
}

// serve runs a request through the full middleware chain.
func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	if req.RemoteAddr == "" {
		req.RemoteAddr = testRemoteAddr
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

// callHandler wraps a handler with error middleware, matching production behavior.
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return ErrorHandlingMiddleware()(handler)(c)
}
