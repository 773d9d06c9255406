package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/exposurekeys/internal/client/repositories/metadata"
)

func writeCursors(w io.Writer, curs []metadata.Cursor) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REGION\tLAST FILE\tUPDATED")
	for _, c := range curs {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.Source, c.FileName, c.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func (r *root) cursorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cursors",
		Short: "Show the last ingested export file per region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) error {
				curs, err := a.cursors.All(ctx)
				if err != nil {
					return err
				}
				if len(curs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "nothing ingested yet")
					return nil
				}
				return writeCursors(cmd.OutOrStdout(), curs)
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset <region>...",
		Short: "Forget the cursor so the next ingest starts from the oldest export",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) error {
				for _, region := range args {
					if err := a.cursors.Reset(ctx, region); err != nil {
						return err
					}
					r.log.Info(ctx, "download cursor reset", "region", region)
				}
				return nil
			})
		},
	})
	return cmd
}
