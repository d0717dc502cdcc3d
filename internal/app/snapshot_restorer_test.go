package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWiredRestorer builds the interactor and restorer the way cmd/server does:
// restorer first, interactor resolving it lazily, then Bind.
func newWiredRestorer(repo *mockWallpaperRepo, store *mockSnapshotStore, clock clockwork.Clock) (*WallpaperInteractor, *SnapshotRestorer) {
	restorer := NewSnapshotRestorer(store, clock)
	interactor := NewWallpaperInteractor(repo, restorer.Provider())
	restorer.Bind(interactor)
	return interactor, restorer
}

func TestSnapshotRestorer_StoreSnapshot(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := newMockSnapshotStore()
	restorer := NewSnapshotRestorer(store, clock)

	err := restorer.StoreSnapshot(context.Background(), domain.DestinationHome, "C")
	require.NoError(t, err)

	latest, err := store.Latest(context.Background(), domain.DestinationHome)
	require.NoError(t, err)
	assert.Equal(t, "C", latest.WallpaperID)
	assert.Equal(t, clock.Now(), latest.RecordedAt)
	assert.NotZero(t, latest.ID)

	_, err = store.Latest(context.Background(), domain.DestinationLock)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestSnapshotRestorer_StoreSnapshotAllExpands(t *testing.T) {
	store := newMockSnapshotStore()
	restorer := NewSnapshotRestorer(store, clockwork.NewFakeClock())

	require.NoError(t, restorer.StoreSnapshot(context.Background(), domain.DestinationAll, "Z"))

	for _, d := range domain.Destinations() {
		latest, err := store.Latest(context.Background(), d)
		require.NoError(t, err)
		assert.Equal(t, "Z", latest.WallpaperID)
		assert.Equal(t, d, latest.Destination)
	}
}

func TestSnapshotRestorer_StoreSnapshotError(t *testing.T) {
	store := newMockSnapshotStore()
	store.saveErr = errors.New("disk full")
	restorer := NewSnapshotRestorer(store, clockwork.NewFakeClock())

	err := restorer.StoreSnapshot(context.Background(), domain.DestinationHome, "C")
	assert.ErrorIs(t, err, store.saveErr)
}

func TestSnapshotRestorer_SetupRecordsBaseline(t *testing.T) {
	repo := newMockWallpaperRepo(map[domain.Destination]string{
		domain.DestinationHome: "A",
		domain.DestinationLock: "B",
	})
	store := newMockSnapshotStore()
	_, restorer := newWiredRestorer(repo, store, clockwork.NewFakeClock())

	require.NoError(t, restorer.Setup(context.Background()))
	require.NoError(t, restorer.Setup(context.Background()))

	home, _ := store.History(context.Background(), domain.DestinationHome, 10)
	lock, _ := store.History(context.Background(), domain.DestinationLock, 10)
	require.Len(t, home, 1, "second Setup must not duplicate the baseline")
	require.Len(t, lock, 1)
	assert.Equal(t, "A", home[0].WallpaperID)
	assert.Equal(t, "B", lock[0].WallpaperID)
}

func TestSnapshotRestorer_UnboundFails(t *testing.T) {
	restorer := NewSnapshotRestorer(newMockSnapshotStore(), clockwork.NewFakeClock())

	assert.ErrorIs(t, restorer.Setup(context.Background()), ErrRestorerNotBound)
	_, err := restorer.Undo(context.Background(), domain.DestinationHome)
	assert.ErrorIs(t, err, ErrRestorerNotBound)
}

func TestSnapshotRestorer_UndoReappliesPrevious(t *testing.T) {
	repo := newMockWallpaperRepo(map[domain.Destination]string{domain.DestinationHome: "A", domain.DestinationLock: "B"})
	var applied []string
	repo.setWallpaperFn = func(_ context.Context, d domain.Destination, id string) error {
		applied = append(applied, string(d)+":"+id)
		repo.selected[d].Set(id)
		return nil
	}
	store := newMockSnapshotStore()
	interactor, restorer := newWiredRestorer(repo, store, clockwork.NewFakeClock())
	ctx := context.Background()

	require.NoError(t, restorer.Setup(ctx))
	require.NoError(t, interactor.SetWallpaper(ctx, domain.DestinationHome, "C"))

	restored, err := restorer.Undo(ctx, domain.DestinationHome)
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, "A", restored[0].WallpaperID)
	assert.Equal(t, "A", repo.selected[domain.DestinationHome].Value())
	assert.Equal(t, []string{"home:C", "home:A"}, applied)

	// Undo of the undo returns to C.
	restored, err = restorer.Undo(ctx, domain.DestinationHome)
	require.NoError(t, err)
	assert.Equal(t, "C", restored[0].WallpaperID)
}

func TestSnapshotRestorer_UndoWithoutHistory(t *testing.T) {
	repo := newMockWallpaperRepo(map[domain.Destination]string{domain.DestinationHome: "A", domain.DestinationLock: "B"})
	store := newMockSnapshotStore()
	_, restorer := newWiredRestorer(repo, store, clockwork.NewFakeClock())
	ctx := context.Background()
	require.NoError(t, restorer.Setup(ctx))

	_, err := restorer.Undo(ctx, domain.DestinationHome)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
}

func TestSnapshotRestorer_UndoAllRequiresHistoryEverywhere(t *testing.T) {
	repo := newMockWallpaperRepo(map[domain.Destination]string{domain.DestinationHome: "A", domain.DestinationLock: "B"})
	applies := 0
	repo.setWallpaperFn = func(context.Context, domain.Destination, string) error {
		applies++
		return nil
	}
	store := newMockSnapshotStore()
	interactor, restorer := newWiredRestorer(repo, store, clockwork.NewFakeClock())
	ctx := context.Background()
	require.NoError(t, restorer.Setup(ctx))
	require.NoError(t, interactor.SetWallpaper(ctx, domain.DestinationHome, "C"))
	applies = 0

	_, err := restorer.Undo(ctx, domain.DestinationAll)
	assert.ErrorIs(t, err, domain.ErrSnapshotNotFound)
	assert.Zero(t, applies, "nothing may be applied when one surface has no history")
}

func TestSnapshotRestorer_HistoryAllReadsHome(t *testing.T) {
	store := newMockSnapshotStore()
	restorer := NewSnapshotRestorer(store, clockwork.NewFakeClock())
	ctx := context.Background()
	require.NoError(t, restorer.StoreSnapshot(ctx, domain.DestinationHome, "A"))
	require.NoError(t, restorer.StoreSnapshot(ctx, domain.DestinationLock, "L"))
	require.NoError(t, restorer.StoreSnapshot(ctx, domain.DestinationHome, "B"))

	history, err := restorer.History(ctx, domain.DestinationAll, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "B", history[0].WallpaperID)
	assert.Equal(t, "A", history[1].WallpaperID)
}
