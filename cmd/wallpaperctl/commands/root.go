// Package commands implements the wallpaperctl command tree.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pscheid92/wallpaperpicker/internal/adapter/apiclient"
	"github.com/pscheid92/wallpaperpicker/internal/domain"
	"github.com/pscheid92/wallpaperpicker/internal/platform/correlation"
	"github.com/pscheid92/wallpaperpicker/internal/platform/version"
)

const programName = "wallpaperctl"

// settings holds the resolved configuration: flags override WALLPAPERCTL_* env vars,
// which override the config file.
var settings = viper.New()

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	settings = viper.New()

	root := &cobra.Command{
		Use:           programName,
		Short:         "Inspect and change wallpaper selections",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadSettings(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.config/wallpaperctl/config.yaml)")
	flags.String("server", "http://localhost:8080", "wallpaper picker base URL")
	flags.Duration("timeout", 10*time.Second, "request timeout")
	flags.StringP("destination", "d", "home", "destination: home, lock or all")

	root.AddCommand(
		selectedCmd(),
		previewsCmd(),
		selectCmd(),
		undoCmd(),
		historyCmd(),
		watchCmd(),
		thumbnailCmd(),
		seedCmd(),
	)
	return root
}

func loadSettings(cmd *cobra.Command) error {
	if err := settings.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	settings.SetEnvPrefix("WALLPAPERCTL")
	settings.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	settings.AutomaticEnv()

	if path := settings.GetString("config"); path != "" {
		settings.SetConfigFile(path)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			settings.AddConfigPath(filepath.Join(home, ".config", programName))
		}
		settings.SetConfigName("config")
	}

	if err := settings.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if settings.GetString("config") != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

func newClient() (*apiclient.Client, error) {
	return apiclient.New(settings.GetString("server"), version.UserAgent(programName), nil)
}

func destination() (domain.Destination, error) {
	return domain.ParseDestination(settings.GetString("destination"))
}

// requestContext bounds a single request and tags it with a fresh correlation ID.
func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := correlation.WithID(cmd.Context(), correlation.NewID())
	return context.WithTimeout(ctx, settings.GetDuration("timeout"))
}

// signalContext lives until the command is interrupted.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
