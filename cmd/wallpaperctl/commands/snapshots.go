package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pscheid92/wallpaperpicker/internal/adapter/apiclient"
	"github.com/pscheid92/wallpaperpicker/internal/domain"
)

func undoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Restore the previously selected wallpaper",
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

			restored, err := client.Undo(ctx, d)
			if apiclient.IsNotFound(err) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: nothing to undo\n", d)
				return nil
			}
			if err != nil {
				return err
			}
			for _, s := range restored {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: restored %s\n", s.Destination, s.WallpaperID)
			}
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded selections, newest first",
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

			history, err := client.History(ctx, d, settings.GetInt("limit"))
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), history)
		},
	}
	cmd.Flags().Int("limit", 0, "maximum number of snapshots (server default when 0)")
	return cmd
}

func printHistory(w io.Writer, history []domain.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RECORDED\tDESTINATION\tWALLPAPER")
	for _, s := range history {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.RecordedAt.Local().Format(time.DateTime), s.Destination, s.WallpaperID)
	}
	return tw.Flush()
}
