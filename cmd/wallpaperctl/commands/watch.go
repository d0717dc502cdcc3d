package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pscheid92/wallpaperpicker/internal/adapter/apiclient"
	"github.com/pscheid92/wallpaperpicker/internal/platform/retry"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream selection changes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			d, err := destination()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd)
			defer cancel()

			out := cmd.OutOrStdout()
			show := func(s apiclient.State) error {
				line := fmt.Sprintf("%s %s: %s", time.Now().Format(time.TimeOnly), s.Destination, s.SelectedWallpaperID)
				if s.SelectingWallpaperID != "" {
					line += " (selecting " + s.SelectingWallpaperID + ")"
				}
				_, err := fmt.Fprintln(out, line)
				return err
			}

			policy := retry.Policy{
				MaxAttempts:    settings.GetInt("reconnects") + 1,
				InitialBackoff: time.Second,
				MaxBackoff:     30 * time.Second,
				OnRetry: func(attempt int, err error, backoff time.Duration) {
					slog.Warn("Stream interrupted, reconnecting", "attempt", attempt, "backoff", backoff, "error", err)
				},
			}
			err = retry.DoVoid(ctx, policy, classifyStreamError, func(ctx context.Context) error {
				return client.Watch(ctx, d, show)
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().Int("reconnects", 5, "reconnect attempts after the stream drops")
	return cmd
}

// classifyStreamError reconnects on transport failures but not on rejected requests.
func classifyStreamError(err error) retry.Action {
	if errors.Is(err, context.Canceled) {
		return retry.Stop
	}
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
		return retry.Stop
	}
	return retry.Retry
}
