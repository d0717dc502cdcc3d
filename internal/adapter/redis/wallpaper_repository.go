package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/wallpaperpicker/internal/adapter/metrics"
	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/pscheid92/wallpaperpicker/internal/flow"
)

const (
	changedChannel   = "wallpaper:changed"
	selectingKey     = "wallpaper:selecting"
	defaultMaxRecent = 10

	eventSelecting = "selecting"
	eventSelected  = "selected"
)

func modelKey(wallpaperID string) string { return "wallpaper:model:" + wallpaperID }
func thumbKey(wallpaperID string) string { return "wallpaper:thumb:" + wallpaperID }
func selectedKey(d domain.Destination) string {
	return "wallpaper:selected:" + string(d)
}
func recentKey(d domain.Destination) string {
	return "wallpaper:recent:" + string(d)
}

// changeEvent is published on changedChannel after every write.
type changeEvent struct {
	Destination domain.Destination `json:"destination"`
	Kind        string             `json:"kind"`
}

// WallpaperRepository stores selection state in Redis and mirrors it into local state flows.
//
// Writes go through MULTI/EXEC and are announced on changedChannel, so every instance that
// runs Start refreshes its flows. SetWallpaper calls for the same surface are serialised
// within one process.
type WallpaperRepository struct {
	rdb          *goredis.Client
	maxRecent    int
	thumbMetrics *metrics.ThumbnailMetrics

	thumbs singleflight.Group
	locks  map[domain.Destination]*sync.Mutex

	selected  map[domain.Destination]*flow.MutableStateFlow[string]
	recent    map[domain.Destination]*flow.MutableStateFlow[uint64]
	selecting *flow.MutableStateFlow[map[domain.Destination]string]
}

var _ domain.WallpaperRepository = (*WallpaperRepository)(nil)

type Option func(*WallpaperRepository)

func WithMaxRecent(n int) Option {
	return func(r *WallpaperRepository) {
		if n > 0 {
			r.maxRecent = n
		}
	}
}

func WithThumbnailMetrics(m *metrics.ThumbnailMetrics) Option {
	return func(r *WallpaperRepository) { r.thumbMetrics = m }
}

// NewWallpaperRepository loads the current selection of every surface. Surfaces without a
// selection are initialised to defaultWallpaperID; if that is empty too, an error is returned.
func NewWallpaperRepository(ctx context.Context, rdb *goredis.Client, defaultWallpaperID string, opts ...Option) (*WallpaperRepository, error) {
	r := &WallpaperRepository{
		rdb:       rdb,
		maxRecent: defaultMaxRecent,
		locks:     make(map[domain.Destination]*sync.Mutex),
		selected:  make(map[domain.Destination]*flow.MutableStateFlow[string]),
		recent:    make(map[domain.Destination]*flow.MutableStateFlow[uint64]),
		selecting: flow.NewMutableStateFlow(map[domain.Destination]string{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, d := range domain.Destinations() {
		id, err := r.loadSelected(ctx, d, defaultWallpaperID)
		if err != nil {
			return nil, err
		}
		r.selected[d] = flow.NewMutableStateFlow(id)
		r.recent[d] = flow.NewMutableStateFlow[uint64](0)
		r.locks[d] = &sync.Mutex{}
	}

	if err := r.refreshSelecting(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *WallpaperRepository) loadSelected(ctx context.Context, d domain.Destination, defaultWallpaperID string) (string, error) {
	if defaultWallpaperID != "" {
		created, err := r.rdb.SetNX(ctx, selectedKey(d), defaultWallpaperID, 0).Result()
		if err != nil {
			return "", fmt.Errorf("failed to initialise %s selection: %w", d, err)
		}
		if created {
			if err := r.rdb.LPush(ctx, recentKey(d), defaultWallpaperID).Err(); err != nil {
				return "", fmt.Errorf("failed to initialise %s recent list: %w", d, err)
			}
		}
	}

	id, err := r.rdb.Get(ctx, selectedKey(d)).Result()
	if errors.Is(err, goredis.Nil) {
		return "", fmt.Errorf("no wallpaper selected for %s and no default configured", d)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load %s selection: %w", d, err)
	}
	return id, nil
}

// Start follows changes made by any instance until ctx is done.
func (r *WallpaperRepository) Start(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, changedChannel)
	defer func() { _ = pubsub.Close() }()

	// Changes made before the subscription was active are picked up by a full refresh.
	if _, err := pubsub.Receive(ctx); err != nil {
		slog.Error("Failed to subscribe to wallpaper changes", "error", err)
		return
	}
	r.refreshAll(ctx)

	ch := pubsub.Channel()
	for {
		select {
		case msg := <-ch:
			if msg == nil {
				return
			}
			r.handleChange(ctx, msg.Payload)
		case <-ctx.Done():
			return
		}
	}
}

func (r *WallpaperRepository) handleChange(ctx context.Context, payload string) {
	var event changeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		slog.Warn("Malformed wallpaper change event", "payload", payload, "error", err)
		return
	}

	if err := r.refreshSelecting(ctx); err != nil {
		slog.Warn("Failed to refresh in-flight selections", "error", err)
	}
	if event.Kind != eventSelected {
		return
	}
	if err := r.refreshSelected(ctx, event.Destination); err != nil {
		slog.Warn("Failed to refresh selection", "destination", event.Destination, "error", err)
	}
}

func (r *WallpaperRepository) refreshAll(ctx context.Context) {
	if err := r.refreshSelecting(ctx); err != nil {
		slog.Warn("Failed to refresh in-flight selections", "error", err)
	}
	for _, d := range domain.Destinations() {
		if err := r.refreshSelected(ctx, d); err != nil {
			slog.Warn("Failed to refresh selection", "destination", d, "error", err)
		}
	}
}

func (r *WallpaperRepository) refreshSelected(ctx context.Context, d domain.Destination) error {
	selected, ok := r.selected[d]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownDestination, d)
	}

	id, err := r.rdb.Get(ctx, selectedKey(d)).Result()
	if err != nil {
		return err
	}
	flow.SetDistinct(selected, id)
	r.recent[d].Update(func(v uint64) uint64 { return v + 1 })
	return nil
}

func (r *WallpaperRepository) refreshSelecting(ctx context.Context) error {
	raw, err := r.rdb.HGetAll(ctx, selectingKey).Result()
	if err != nil {
		return fmt.Errorf("failed to load in-flight selections: %w", err)
	}

	next := make(map[domain.Destination]string, len(raw))
	for d, id := range raw {
		next[domain.Destination(d)] = id
	}
	r.selecting.Set(next)
	return nil
}

// SelectedWallpaperID returns the selection of a surface. DestinationAll reads the home surface.
func (r *WallpaperRepository) SelectedWallpaperID(destination domain.Destination) flow.StateFlow[string] {
	return r.selected[surface(destination)]
}

func (r *WallpaperRepository) SelectingWallpaperIDs() flow.Flow[map[domain.Destination]string] {
	return r.selecting
}

// RecentWallpapers reads up to limit recent wallpapers, again after every change to the surface.
func (r *WallpaperRepository) RecentWallpapers(destination domain.Destination, limit int) flow.Flow[[]domain.WallpaperModel] {
	d := surface(destination)
	changes, ok := r.recent[d]
	if !ok {
		return flow.Error[[]domain.WallpaperModel](fmt.Errorf("%w: %q", domain.ErrUnknownDestination, destination))
	}

	return flow.FlowFunc[[]domain.WallpaperModel](func(ctx context.Context, emit func([]domain.WallpaperModel) error) error {
		return changes.Collect(ctx, func(uint64) error {
			models, err := r.loadRecent(ctx, d, limit)
			if err != nil {
				return err
			}
			return emit(models)
		})
	})
}

func (r *WallpaperRepository) loadRecent(ctx context.Context, d domain.Destination, limit int) ([]domain.WallpaperModel, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}

	ids, err := r.rdb.LRange(ctx, recentKey(d), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read recent wallpapers: %w", err)
	}
	if len(ids) == 0 {
		return []domain.WallpaperModel{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = modelKey(id)
	}
	raw, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read wallpaper models: %w", err)
	}

	models := make([]domain.WallpaperModel, 0, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			slog.Warn("Recent wallpaper has no model", "wallpaper_id", ids[i])
			continue
		}
		var m domain.WallpaperModel
		if err := json.Unmarshal([]byte(s), &m); err != nil {
			return nil, fmt.Errorf("failed to decode wallpaper %s: %w", ids[i], err)
		}
		models = append(models, m)
	}
	return models, nil
}

func (r *WallpaperRepository) SetWallpaper(ctx context.Context, destination domain.Destination, wallpaperID string) error {
	if wallpaperID == "" {
		return domain.ErrEmptyWallpaperID
	}

	surfaces := destination.Expand()
	for _, d := range surfaces {
		if _, ok := r.locks[d]; !ok {
			return fmt.Errorf("%w: %q", domain.ErrUnknownDestination, d)
		}
	}

	n, err := r.rdb.Exists(ctx, modelKey(wallpaperID)).Result()
	if err != nil {
		return fmt.Errorf("failed to look up wallpaper: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrWallpaperNotFound, wallpaperID)
	}

	for _, d := range surfaces {
		r.locks[d].Lock()
		defer r.locks[d].Unlock()
	}

	if err := r.markSelecting(ctx, surfaces, wallpaperID); err != nil {
		return err
	}

	if err := r.apply(ctx, surfaces, wallpaperID); err != nil {
		r.clearSelecting(context.WithoutCancel(ctx), surfaces)
		return err
	}
	return nil
}

func (r *WallpaperRepository) markSelecting(ctx context.Context, surfaces []domain.Destination, wallpaperID string) error {
	pipe := r.rdb.TxPipeline()
	for _, d := range surfaces {
		pipe.HSet(ctx, selectingKey, string(d), wallpaperID)
		pipe.Publish(ctx, changedChannel, encodeEvent(d, eventSelecting))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to mark selection in flight: %w", err)
	}

	r.selecting.Update(func(current map[domain.Destination]string) map[domain.Destination]string {
		next := cloneSelecting(current)
		for _, d := range surfaces {
			next[d] = wallpaperID
		}
		return next
	})
	return nil
}

func (r *WallpaperRepository) clearSelecting(ctx context.Context, surfaces []domain.Destination) {
	pipe := r.rdb.TxPipeline()
	for _, d := range surfaces {
		pipe.HDel(ctx, selectingKey, string(d))
		pipe.Publish(ctx, changedChannel, encodeEvent(d, eventSelecting))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Error("Failed to clear in-flight selection", "error", err)
	}
	r.dropSelecting(surfaces)
}

func (r *WallpaperRepository) dropSelecting(surfaces []domain.Destination) {
	r.selecting.Update(func(current map[domain.Destination]string) map[domain.Destination]string {
		next := cloneSelecting(current)
		for _, d := range surfaces {
			delete(next, d)
		}
		return next
	})
}

func (r *WallpaperRepository) apply(ctx context.Context, surfaces []domain.Destination, wallpaperID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	pipe := r.rdb.TxPipeline()
	for _, d := range surfaces {
		pipe.Set(ctx, selectedKey(d), wallpaperID, 0)
		pipe.LRem(ctx, recentKey(d), 0, wallpaperID)
		pipe.LPush(ctx, recentKey(d), wallpaperID)
		pipe.LTrim(ctx, recentKey(d), 0, int64(r.maxRecent-1))
		pipe.HDel(ctx, selectingKey, string(d))
		pipe.Publish(ctx, changedChannel, encodeEvent(d, eventSelected))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to apply wallpaper: %w", err)
	}

	for _, d := range surfaces {
		flow.SetDistinct(r.selected[d], wallpaperID)
		r.recent[d].Update(func(v uint64) uint64 { return v + 1 })
	}
	r.dropSelecting(surfaces)
	return nil
}

// LoadThumbnail reads a thumbnail. Concurrent loads of the same wallpaper share one read.
func (r *WallpaperRepository) LoadThumbnail(ctx context.Context, wallpaperID string) (*domain.Thumbnail, error) {
	// One read serves every concurrent caller, so it is detached from this caller.
	readCtx := context.WithoutCancel(ctx)
	v, err, shared := r.thumbs.Do(wallpaperID, func() (any, error) {
		return r.readThumbnail(readCtx, wallpaperID)
	})
	r.observeThumbnail(v, err, shared)
	if err != nil {
		return nil, err
	}

	thumb, _ := v.(*domain.Thumbnail)
	if thumb == nil {
		return nil, nil
	}
	cp := *thumb
	cp.Data = slices.Clone(thumb.Data)
	return &cp, nil
}

func (r *WallpaperRepository) readThumbnail(ctx context.Context, wallpaperID string) (*domain.Thumbnail, error) {
	fields, err := r.rdb.HGetAll(ctx, thumbKey(wallpaperID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read thumbnail: %w", err)
	}
	data, ok := fields["data"]
	if !ok {
		return nil, nil
	}
	return &domain.Thumbnail{
		WallpaperID: wallpaperID,
		ContentType: fields["content_type"],
		Data:        []byte(data),
	}, nil
}

func (r *WallpaperRepository) observeThumbnail(v any, err error, shared bool) {
	if r.thumbMetrics == nil {
		return
	}
	if shared {
		r.thumbMetrics.SharedLoads.Inc()
	}

	result := "hit"
	switch thumb, _ := v.(*domain.Thumbnail); {
	case err != nil:
		result = "error"
	case thumb == nil:
		result = "miss"
	}
	r.thumbMetrics.Loads.WithLabelValues(result).Inc()
}

// PutWallpaper stores a wallpaper model and, if given, its thumbnail.
func (r *WallpaperRepository) PutWallpaper(ctx context.Context, model domain.WallpaperModel, thumbnail *domain.Thumbnail) error {
	return PutWallpaper(ctx, r.rdb, model, thumbnail)
}

// PutWallpaper writes a catalog entry without a running repository, e.g. when seeding.
func PutWallpaper(ctx context.Context, rdb goredis.Cmdable, model domain.WallpaperModel, thumbnail *domain.Thumbnail) error {
	if model.WallpaperID == "" {
		return domain.ErrEmptyWallpaperID
	}
	data, err := json.Marshal(model)
	if err != nil {
		return fmt.Errorf("failed to encode wallpaper: %w", err)
	}

	pipe := rdb.TxPipeline()
	pipe.Set(ctx, modelKey(model.WallpaperID), data, 0)
	if thumbnail != nil {
		pipe.HSet(ctx, thumbKey(model.WallpaperID), "content_type", thumbnail.ContentType, "data", thumbnail.Data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store wallpaper: %w", err)
	}
	return nil
}

func encodeEvent(d domain.Destination, kind string) string {
	data, _ := json.Marshal(changeEvent{Destination: d, Kind: kind})
	return string(data)
}

func cloneSelecting(m map[domain.Destination]string) map[domain.Destination]string {
	next := make(map[domain.Destination]string, len(m)+2)
	for k, v := range m {
		next[k] = v
	}
	return next
}

func surface(destination domain.Destination) domain.Destination {
	if destination == domain.DestinationAll {
		return domain.DestinationHome
	}
	return destination
}
