package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/exposurekeys/internal/client/matching"
)

func (r *root) engineCmd() *cobra.Command {
	var (
		listen  string
		history string
	)
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Run a local development matching engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			trusted, err := trustedKeys(r.cfg)
			if err != nil {
				return err
			}
			if listen == "" {
				listen = r.cfg.EngineAddr
			}
			engine := matching.NewLocalEngine(history, trusted, r.log)
			err = matching.NewServer(listen, engine, r.log).Run(cmd.Context())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default: the engine address)")
	cmd.Flags().StringVar(&history, "history", "", "JSON file with this device's own keys")
	return cmd
}
