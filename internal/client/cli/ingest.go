package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/exposurekeys/internal/client/scheduler"
)

func runIngest(ctx context.Context, a *App, engine EngineConn) error {
	res, err := a.ingestService(engine).Ingest(ctx)
	fmt.Fprintf(a.out, "%s: %d files\n", res.Status, res.Files)
	return err
}

func (r *root) ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Download new export files and submit them to the matching engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) error {
				if err := a.checkIngest(); err != nil {
					return err
				}
				engine, err := dialEngine(a.cfg.EngineAddr)
				if err != nil {
					return err
				}
				defer engine.Close()
				return runIngest(ctx, a, engine)
			})
		},
	}
}

func (r *root) daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Ingest export files periodically until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) error {
				if err := a.checkIngest(); err != nil {
					return err
				}
				engine, err := dialEngine(a.cfg.EngineAddr)
				if err != nil {
					return err
				}
				defer engine.Close()

				r.log.Info(ctx, "ingest daemon started", "interval", scheduler.Interval(a.cfg.IngestInterval), "regions", a.cfg.Regions)
				err = scheduler.Periodic(ctx, a.cfg.IngestInterval, func(ctx context.Context) error {
					return runIngest(ctx, a, engine)
				}, r.log)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}
}
