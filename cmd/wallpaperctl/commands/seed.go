package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pscheid92/wallpaperpicker/internal/adapter/catalog"
	"github.com/pscheid92/wallpaperpicker/internal/adapter/redis"
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed CATALOG_FILE",
		Short: "Load a catalog file into Redis",
		Long: "Load a JSON, YAML or TOML catalog into Redis. Surfaces without a selection\n" +
			"start on --default, or on the first catalog entry.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			redisURL := settings.GetString("redis-url")
			if redisURL == "" {
				return errors.New("--redis-url (or WALLPAPERCTL_REDIS_URL) is required")
			}

			entries, err := catalog.Load(args[0])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), settings.GetDuration("timeout"))
			defer cancel()

			rdb, err := redis.NewClient(ctx, redisURL, nil)
			if err != nil {
				return err
			}
			defer func() { _ = rdb.Close() }()

			for _, e := range entries {
				if err := redis.PutWallpaper(ctx, rdb, e.Model, e.Thumbnail); err != nil {
					return err
				}
			}

			defaultID := settings.GetString("default")
			if defaultID == "" {
				defaultID = entries[0].Model.WallpaperID
			}
			if _, err := redis.NewWallpaperRepository(ctx, rdb, defaultID); err != nil {
				return fmt.Errorf("initialise selection: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d wallpapers\n", len(entries))
			return nil
		},
	}
	cmd.Flags().String("redis-url", "", "Redis URL of the server's store")
	cmd.Flags().String("default", "", "wallpaper for surfaces without a selection")
	return cmd
}
