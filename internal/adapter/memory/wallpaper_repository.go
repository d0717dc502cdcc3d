package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/pscheid92/wallpaperpicker/internal/flow"
)

const defaultMaxRecent = 10

var errEmptyCatalog = errors.New("catalog is empty")

// WallpaperRepository keeps selection state in memory.
//
// Selection state is exposed through state flows; the in-flight map and recent lists are
// replaced on every change, never mutated in place. SetWallpaper is serialised per surface.
type WallpaperRepository struct {
	clock      clockwork.Clock
	applyDelay time.Duration
	maxRecent  int

	mu         sync.RWMutex
	catalog    map[string]domain.WallpaperModel
	thumbnails map[string]domain.Thumbnail

	selected  map[domain.Destination]*flow.MutableStateFlow[string]
	recent    map[domain.Destination]*flow.MutableStateFlow[[]string]
	selecting *flow.MutableStateFlow[map[domain.Destination]string]
	locks     map[domain.Destination]*sync.Mutex
}

var _ domain.WallpaperRepository = (*WallpaperRepository)(nil)

type Option func(*WallpaperRepository)

// WithMaxRecent caps the recent list per surface.
func WithMaxRecent(n int) Option {
	return func(r *WallpaperRepository) {
		if n > 0 {
			r.maxRecent = n
		}
	}
}

// WithApplyDelay makes SetWallpaper take d before applying, so the in-flight state is observable.
func WithApplyDelay(clock clockwork.Clock, d time.Duration) Option {
	return func(r *WallpaperRepository) {
		r.clock = clock
		r.applyDelay = d
	}
}

// NewWallpaperRepository creates a repository over catalog. Surfaces missing from initial
// start on the first catalog entry.
func NewWallpaperRepository(catalog []domain.WallpaperModel, initial map[domain.Destination]string, opts ...Option) (*WallpaperRepository, error) {
	if len(catalog) == 0 {
		return nil, errEmptyCatalog
	}

	r := &WallpaperRepository{
		clock:      clockwork.NewRealClock(),
		maxRecent:  defaultMaxRecent,
		catalog:    make(map[string]domain.WallpaperModel, len(catalog)),
		thumbnails: make(map[string]domain.Thumbnail),
		selected:   make(map[domain.Destination]*flow.MutableStateFlow[string]),
		recent:     make(map[domain.Destination]*flow.MutableStateFlow[[]string]),
		selecting:  flow.NewMutableStateFlow(map[domain.Destination]string{}),
		locks:      make(map[domain.Destination]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, m := range catalog {
		r.catalog[m.WallpaperID] = m
	}

	for _, d := range domain.Destinations() {
		id, ok := initial[d]
		if !ok {
			id = catalog[0].WallpaperID
		}
		if _, exists := r.catalog[id]; !exists {
			return nil, fmt.Errorf("initial %s selection: %w: %s", d, domain.ErrWallpaperNotFound, id)
		}
		r.selected[d] = flow.NewMutableStateFlow(id)
		r.recent[d] = flow.NewMutableStateFlow([]string{id})
		r.locks[d] = &sync.Mutex{}
	}

	return r, nil
}

// PutWallpaper adds or replaces a catalog entry. thumbnail may be nil.
func (r *WallpaperRepository) PutWallpaper(model domain.WallpaperModel, thumbnail *domain.Thumbnail) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.catalog[model.WallpaperID] = model
	if thumbnail != nil {
		r.thumbnails[model.WallpaperID] = *thumbnail
	}
}

// Catalog lists every known wallpaper ordered by ID.
func (r *WallpaperRepository) Catalog() []domain.WallpaperModel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.WallpaperModel, 0, len(r.catalog))
	for _, m := range r.catalog {
		result = append(result, m)
	}
	slices.SortFunc(result, func(a, b domain.WallpaperModel) int {
		switch {
		case a.WallpaperID < b.WallpaperID:
			return -1
		case a.WallpaperID > b.WallpaperID:
			return 1
		default:
			return 0
		}
	})
	return result
}

// SelectedWallpaperID returns the selection of a surface. DestinationAll reads the home surface.
func (r *WallpaperRepository) SelectedWallpaperID(destination domain.Destination) flow.StateFlow[string] {
	return r.selected[surface(destination)]
}

func (r *WallpaperRepository) SelectingWallpaperIDs() flow.Flow[map[domain.Destination]string] {
	return r.selecting
}

// RecentWallpapers emits the recent list of a surface on every change. limit is a hint;
// the list is capped by WithMaxRecent only.
func (r *WallpaperRepository) RecentWallpapers(destination domain.Destination, _ int) flow.Flow[[]domain.WallpaperModel] {
	recent, ok := r.recent[surface(destination)]
	if !ok {
		return flow.Error[[]domain.WallpaperModel](fmt.Errorf("%w: %q", domain.ErrUnknownDestination, destination))
	}
	return flow.Map[[]string](recent, r.resolve)
}

func (r *WallpaperRepository) SetWallpaper(ctx context.Context, destination domain.Destination, wallpaperID string) error {
	if wallpaperID == "" {
		return domain.ErrEmptyWallpaperID
	}

	r.mu.RLock()
	_, exists := r.catalog[wallpaperID]
	r.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrWallpaperNotFound, wallpaperID)
	}

	// Locks are taken in Destinations() order so concurrent "all" and single-surface calls cannot deadlock.
	surfaces := destination.Expand()
	for _, d := range surfaces {
		lock, ok := r.locks[d]
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrUnknownDestination, d)
		}
		lock.Lock()
		defer lock.Unlock()
	}

	r.markSelecting(surfaces, wallpaperID)
	defer r.clearSelecting(surfaces)

	if r.applyDelay > 0 {
		select {
		case <-r.clock.After(r.applyDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, d := range surfaces {
		r.selected[d].Set(wallpaperID)
		r.recent[d].Update(func(ids []string) []string {
			return pushRecent(ids, wallpaperID, r.maxRecent)
		})
	}
	return nil
}

func (r *WallpaperRepository) LoadThumbnail(_ context.Context, wallpaperID string) (*domain.Thumbnail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	thumb, ok := r.thumbnails[wallpaperID]
	if !ok {
		return nil, nil
	}
	thumb.Data = slices.Clone(thumb.Data)
	return &thumb, nil
}

func (r *WallpaperRepository) markSelecting(surfaces []domain.Destination, wallpaperID string) {
	r.selecting.Update(func(current map[domain.Destination]string) map[domain.Destination]string {
		next := make(map[domain.Destination]string, len(current)+len(surfaces))
		for d, id := range current {
			next[d] = id
		}
		for _, d := range surfaces {
			next[d] = wallpaperID
		}
		return next
	})
}

func (r *WallpaperRepository) clearSelecting(surfaces []domain.Destination) {
	r.selecting.Update(func(current map[domain.Destination]string) map[domain.Destination]string {
		next := make(map[domain.Destination]string, len(current))
		for d, id := range current {
			next[d] = id
		}
		for _, d := range surfaces {
			delete(next, d)
		}
		return next
	})
}

func (r *WallpaperRepository) resolve(ids []string) []domain.WallpaperModel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]domain.WallpaperModel, 0, len(ids))
	for _, id := range ids {
		if m, ok := r.catalog[id]; ok {
			models = append(models, m)
		}
	}
	return models
}

// pushRecent moves id to the front of ids, dropping duplicates and capping the length.
func pushRecent(ids []string, id string, maxLen int) []string {
	next := make([]string, 0, min(len(ids)+1, maxLen))
	next = append(next, id)
	for _, existing := range ids {
		if len(next) == maxLen {
			break
		}
		if existing != id {
			next = append(next, existing)
		}
	}
	return next
}

func surface(destination domain.Destination) domain.Destination {
	if destination == domain.DestinationAll {
		return domain.DestinationHome
	}
	return destination
}
