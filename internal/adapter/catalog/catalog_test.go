package catalog

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/wallpaperpicker/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "thumbs/dunes.png", "\x89PNG fake")
	path := writeFile(t, dir, "catalog.yaml", `
wallpapers:
  - wallpaper_id: dunes
    collection_id: landscapes
    title: Dunes
    attributions: [Desert at dusk, Photo by A]
    placeholder_color: 4292387422
    thumbnail: thumbs/dunes.png
  - wallpaper_id: grid
    title: Grid
`)

	entries, err := Load(path)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.WallpaperModel{
		WallpaperID:  "dunes",
		CollectionID: "landscapes",
		Title:        "Dunes",
		Attributions: []string{"Desert at dusk", "Photo by A"},
		Placeholder:  0xFFD8A25E,
	}, entries[0].Model)
	require.NotNil(t, entries[0].Thumbnail)
	assert.Equal(t, "image/png", entries[0].Thumbnail.ContentType)
	assert.Equal(t, []byte("\x89PNG fake"), entries[0].Thumbnail.Data)
	assert.Nil(t, entries[1].Thumbnail)
}

func TestLoad_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "catalog.json", `{"wallpapers":[{"wallpaper_id":"a","title":"A"},{"wallpaper_id":"b"}]}`)

	entries, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, []string{entries[0].Model.WallpaperID, entries[1].Model.WallpaperID})
	assert.Equal(t, "A", entries[0].Model.Title)
}

func TestLoad_TOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "catalog.toml", `
[[wallpapers]]
wallpaper_id = "fjord"
preview_uri = "https://img.example/fjord.jpg"
`)

	entries, err := Load(path)

	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "https://img.example/fjord.jpg", entries[0].Model.PreviewURI)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"empty", `{"wallpapers":[]}`, ErrEmptyCatalog},
		{"blank id", `{"wallpapers":[{"wallpaper_id":"  "}]}`, domain.ErrEmptyWallpaperID},
		{"duplicate id", `{"wallpapers":[{"wallpaper_id":"a"},{"wallpaper_id":"a"}]}`, nil},
		{"missing thumbnail", `{"wallpapers":[{"wallpaper_id":"a","thumbnail":"nope.png"}]}`, os.ErrNotExist},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "catalog.json", tt.content)

			_, err := Load(path)

			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDemo(t *testing.T) {
	entries := Demo()

	require.NotEmpty(t, entries)
	seen := map[string]bool{}
	for _, e := range entries {
		assert.False(t, seen[e.Model.WallpaperID], "duplicate %s", e.Model.WallpaperID)
		seen[e.Model.WallpaperID] = true

		require.NotNil(t, e.Thumbnail)
		assert.Equal(t, e.Model.WallpaperID, e.Thumbnail.WallpaperID)
		img, err := png.Decode(bytes.NewReader(e.Thumbnail.Data))
		require.NoError(t, err)
		assert.Equal(t, 16, img.Bounds().Dx())
	}
	assert.Len(t, Models(entries), len(entries))
}
