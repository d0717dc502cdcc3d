package httpserver

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name          string
		origin        string
		isDevelopment bool
		want          bool
	}{
		{"empty origin", "", false, true},
		{"app origin", "https://wallpapers.example.com", false, true},
		{"foreign origin", "https://evil.example", false, false},
		{"app host over http", "http://wallpapers.example.com", false, false},
		{"localhost in development", "http://localhost:5173", true, true},
		{"loopback in development", "http://127.0.0.1:8080", true, true},
		{"localhost in production", "http://localhost:5173", false, false},
	}

	check := func(isDevelopment bool) func(string) bool {
		fn := NewCheckOrigin("https://wallpapers.example.com/app", isDevelopment)
		return func(origin string) bool {
			req := httptest.NewRequest("GET", "/ws/destinations/home", nil)
			if origin != "" {
				req.Header.Set("Origin", origin)
			}
			return fn(req)
		}
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, check(tt.isDevelopment)(tt.origin))
		})
	}
}

func TestCheckOrigin_NoAppURL(t *testing.T) {
	fn := NewCheckOrigin("", false)

	req := httptest.NewRequest("GET", "/ws/destinations/home", nil)
	req.Header.Set("Origin", "https://anything.example")

	assert.False(t, fn(req))
}
