// Package catalog loads wallpaper catalogs from JSON, YAML or TOML files.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/pscheid92/wallpaperpicker/internal/domain"
)

var ErrEmptyCatalog = errors.New("catalog has no wallpapers")

// Entry is one wallpaper together with its optional thumbnail.
type Entry struct {
	Model     domain.WallpaperModel
	Thumbnail *domain.Thumbnail
}

type fileEntry struct {
	WallpaperID  string   `mapstructure:"wallpaper_id"`
	CollectionID string   `mapstructure:"collection_id"`
	Title        string   `mapstructure:"title"`
	Attributions []string `mapstructure:"attributions"`
	PreviewURI   string   `mapstructure:"preview_uri"`
	Placeholder  uint32   `mapstructure:"placeholder_color"`
	Thumbnail    string   `mapstructure:"thumbnail"`
}

type file struct {
	Wallpapers []fileEntry `mapstructure:"wallpapers"`
}

// Load reads the catalog at path. The format follows the file extension.
// Thumbnail paths are resolved relative to the catalog's directory.
func Load(path string) ([]Entry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var f file
	if err := v.Unmarshal(&f); err != nil {
		return nil, fmt.Errorf("failed to decode catalog %s: %w", path, err)
	}
	if len(f.Wallpapers) == 0 {
		return nil, ErrEmptyCatalog
	}

	dir := filepath.Dir(path)
	seen := make(map[string]struct{}, len(f.Wallpapers))
	entries := make([]Entry, 0, len(f.Wallpapers))
	for i, fe := range f.Wallpapers {
		id := strings.TrimSpace(fe.WallpaperID)
		if id == "" {
			return nil, fmt.Errorf("catalog entry %d: %w", i, domain.ErrEmptyWallpaperID)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate wallpaper ID %q", i, id)
		}
		seen[id] = struct{}{}

		entry := Entry{Model: domain.WallpaperModel{
			WallpaperID:  id,
			CollectionID: fe.CollectionID,
			Title:        fe.Title,
			Attributions: fe.Attributions,
			PreviewURI:   fe.PreviewURI,
			Placeholder:  fe.Placeholder,
		}}
		if fe.Thumbnail != "" {
			thumb, err := readThumbnail(id, resolve(dir, fe.Thumbnail))
			if err != nil {
				return nil, err
			}
			entry.Thumbnail = thumb
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func resolve(dir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func readThumbnail(wallpaperID, path string) (*domain.Thumbnail, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read thumbnail for %s: %w", wallpaperID, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return &domain.Thumbnail{WallpaperID: wallpaperID, ContentType: contentType, Data: data}, nil
}

// Models returns the wallpaper models of entries.
func Models(entries []Entry) []domain.WallpaperModel {
	models := make([]domain.WallpaperModel, len(entries))
	for i, e := range entries {
		models[i] = e.Model
	}
	return models
}

// Demo returns a small built-in catalog whose thumbnails are solid placeholder swatches.
func Demo() []Entry {
	models := []domain.WallpaperModel{
		{WallpaperID: "dunes", CollectionID: "landscapes", Title: "Dunes", Attributions: []string{"Desert at dusk"}, Placeholder: 0xFFD8A25E},
		{WallpaperID: "fjord", CollectionID: "landscapes", Title: "Fjord", Attributions: []string{"Still water"}, Placeholder: 0xFF3C6E8F},
		{WallpaperID: "canopy", CollectionID: "landscapes", Title: "Canopy", Placeholder: 0xFF2F6B3A},
		{WallpaperID: "grid", CollectionID: "abstract", Title: "Grid", Placeholder: 0xFF20232A},
		{WallpaperID: "ember", CollectionID: "abstract", Title: "Ember", Placeholder: 0xFFB8432F},
	}

	entries := make([]Entry, len(models))
	for i, m := range models {
		entries[i] = Entry{Model: m, Thumbnail: swatch(m.WallpaperID, m.Placeholder)}
	}
	return entries
}

func swatch(wallpaperID string, argb uint32) *domain.Thumbnail {
	c := color.NRGBA{R: uint8(argb >> 16), G: uint8(argb >> 8), B: uint8(argb), A: uint8(argb >> 24)}
	img := image.NewNRGBA(image.Rect(0, 0, 16, 9))
	for y := range 9 {
		for x := range 16 {
			img.SetNRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return &domain.Thumbnail{WallpaperID: wallpaperID, ContentType: "image/png", Data: buf.Bytes()}
}
