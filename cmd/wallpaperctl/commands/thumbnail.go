package commands

import (
	"fmt"
	"mime"
	"os"

	"github.com/spf13/cobra"
)

func thumbnailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "thumbnail WALLPAPER_ID",
		Short: "Download a wallpaper thumbnail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			thumb, err := client.Thumbnail(ctx, args[0])
			if err != nil {
				return err
			}

			path := settings.GetString("out")
			if path == "" {
				path = args[0] + extensionFor(thumb.ContentType)
			}
			if err := os.WriteFile(path, thumb.Data, 0o644); err != nil {
				return fmt.Errorf("write thumbnail: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %d bytes)\n", path, thumb.ContentType, len(thumb.Data))
			return nil
		},
	}
	cmd.Flags().StringP("out", "o", "", "output file (default WALLPAPER_ID plus an extension)")
	return cmd
}

func extensionFor(contentType string) string {
	exts, err := mime.ExtensionsByType(contentType)
	if err != nil || len(exts) == 0 {
		return ".bin"
	}
	return exts[0]
}
