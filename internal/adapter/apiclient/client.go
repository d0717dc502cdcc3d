// Package apiclient talks to the wallpaper picker HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/pscheid92/wallpaperpicker/internal/platform/correlation"
	apperrors "github.com/pscheid92/wallpaperpicker/internal/platform/errors"
)

// State is the selection state of one destination.
type State struct {
	Destination          domain.Destination `json:"destination"`
	SelectedWallpaperID  string             `json:"selected_wallpaper_id"`
	SelectingWallpaperID string             `json:"selecting_wallpaper_id"`
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode    int
	Type          apperrors.ErrorType
	Message       string
	CorrelationID string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%d %s", e.StatusCode, e.Message)
	if e.CorrelationID != "" {
		msg += " (correlation id " + e.CorrelationID + ")"
	}
	return msg
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	base      *url.URL
	http      *http.Client
	userAgent string
}

func New(baseURL, userAgent string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server URL %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient, userAgent: userAgent}, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path += path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)
	if id, ok := correlation.ID(ctx); ok {
		req.Header.Set(correlation.Header, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		return nil, decodeError(resp)
	}
	if out == nil {
		return resp, nil
	}

	defer func() { _ = resp.Body.Close() }()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body apperrors.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Type = body.Type
		apiErr.CorrelationID = body.CorrelationID
	}
	if apiErr.CorrelationID == "" {
		apiErr.CorrelationID = resp.Header.Get(correlation.Header)
	}
	return apiErr
}

func destinationPath(d domain.Destination, suffix string) string {
	return "/api/destinations/" + url.PathEscape(d.String()) + suffix
}

func (c *Client) State(ctx context.Context, d domain.Destination) (State, error) {
	var out State
	_, err := c.do(ctx, http.MethodGet, destinationPath(d, ""), nil, nil, &out)
	return out, err
}

func (c *Client) Previews(ctx context.Context, d domain.Destination, maxResults int) ([]domain.WallpaperModel, error) {
	query := url.Values{}
	if maxResults > 0 {
		query.Set("max", strconv.Itoa(maxResults))
	}

	var out struct {
		Previews []domain.WallpaperModel `json:"previews"`
	}
	_, err := c.do(ctx, http.MethodGet, destinationPath(d, "/previews"), query, nil, &out)
	return out.Previews, err
}

func (c *Client) SetWallpaper(ctx context.Context, d domain.Destination, wallpaperID string) error {
	body := map[string]string{"wallpaper_id": wallpaperID}
	resp, err := c.do(ctx, http.MethodPut, destinationPath(d, "/wallpaper"), nil, body, nil)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Undo re-applies the previous selection and returns the snapshots that were restored.
func (c *Client) Undo(ctx context.Context, d domain.Destination) ([]domain.Snapshot, error) {
	var out struct {
		Snapshots []domain.Snapshot `json:"snapshots"`
	}
	_, err := c.do(ctx, http.MethodPost, destinationPath(d, "/undo"), nil, nil, &out)
	return out.Snapshots, err
}

func (c *Client) History(ctx context.Context, d domain.Destination, limit int) ([]domain.Snapshot, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var out struct {
		Snapshots []domain.Snapshot `json:"snapshots"`
	}
	_, err := c.do(ctx, http.MethodGet, destinationPath(d, "/history"), query, nil, &out)
	return out.Snapshots, err
}

// Thumbnail downloads the thumbnail of wallpaperID. A missing thumbnail yields an error
// for which IsNotFound is true.
func (c *Client) Thumbnail(ctx context.Context, wallpaperID string) (*domain.Thumbnail, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/wallpapers/"+url.PathEscape(wallpaperID)+"/thumbnail", nil, nil, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read thumbnail: %w", err)
	}
	return &domain.Thumbnail{
		WallpaperID: wallpaperID,
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
