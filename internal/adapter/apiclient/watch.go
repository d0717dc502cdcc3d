package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/pscheid92/wallpaperpicker/internal/domain"
)

// ErrStreamClosed is returned by Watch when the server ends the stream.
var ErrStreamClosed = errors.New("stream closed by server")

// Watch streams the selection state of d to fn until ctx is done, fn fails or the
// stream ends.
func (c *Client) Watch(ctx context.Context, d domain.Destination, fn func(State) error) error {
	u := *c.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/ws/destinations/" + d.String()

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer func() { _ = resp.Body.Close() }()
			return decodeError(resp)
		}
		return fmt.Errorf("failed to open stream: %w", err)
	}
	defer func() { _ = conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var state State
		if err := conn.ReadJSON(&state); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return ErrStreamClosed
			}
			return fmt.Errorf("stream read failed: %w", err)
		}
		if err := fn(state); err != nil {
			return err
		}
	}
}
