package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pscheid92/wallpaperpicker/internal/domain"
)

func selectedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selected",
		Short: "Show the selected wallpaper and any selection in flight",
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
			ctx, cancel := requestContext(cmd)
			defer cancel()

			state, err := client.State(ctx, d)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", state.Destination, state.SelectedWallpaperID)
			if state.SelectingWallpaperID != "" {
				fmt.Fprintf(out, "  selecting: %s\n", state.SelectingWallpaperID)
			}
			return nil
		},
	}
}

func previewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "previews",
		Short: "List recent wallpapers, current first",
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
			ctx, cancel := requestContext(cmd)
			defer cancel()

			previews, err := client.Previews(ctx, d, settings.GetInt("max"))
			if err != nil {
				return err
			}
			return printPreviews(cmd.OutOrStdout(), previews)
		},
	}
	cmd.Flags().Int("max", 0, "maximum number of previews (server default when 0)")
	return cmd
}

func printPreviews(w io.Writer, previews []domain.WallpaperModel) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tCOLLECTION")
	for _, p := range previews {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.WallpaperID, p.Title, p.CollectionID)
	}
	return tw.Flush()
}

func selectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select WALLPAPER_ID",
		Short: "Select a wallpaper",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			d, err := destination()
			if err != nil {
				return err
			}
			ctx, cancel := requestContext(cmd)
			defer cancel()

			if err := client.SetWallpaper(ctx, d, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", d, args[0])
			return nil
		},
	}
}
