package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/exposurekeys/internal/client/config"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
)

type root struct {
	loader *config.Loader
	cfg    *config.Config
	log    logging.Logger
}

// NewRootCommand builds the command tree. Configuration is loaded before
// any subcommand runs.
func NewRootCommand() *cobra.Command {
	r := &root{}
	cmd := &cobra.Command{
		Use:           "exposurekeys",
		Short:         "Exposure notification key sharing and export ingestion client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := r.loader.Load()
			if err != nil {
				return err
			}
			level := slog.LevelInfo
			if cfg.Debug {
				level = slog.LevelDebug
			}
			r.cfg = cfg
			r.log = logging.NewText(cmd.ErrOrStderr(), level)
			return nil
		},
	}
	r.loader = config.Bind(cmd.PersistentFlags())

	cmd.AddCommand(
		r.verifyCmd(),
		r.shareCmd(),
		r.reshareCmd(),
		r.listCmd(),
		r.ingestCmd(),
		r.daemonCmd(),
		r.cursorsCmd(),
		r.pubkeyCmd(),
		r.exportCmd(),
		r.engineCmd(),
	)
	return cmd
}

// withApp opens the local database for the duration of fn.
func (r *root) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *App) error) error {
	ctx := cmd.Context()
	a, err := NewApp(ctx, r.cfg, cmd.OutOrStdout(), r.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			r.log.Warn(ctx, "failed to close database", "error", err)
		}
	}()
	return fn(ctx, a)
}

// Execute runs the command line until it finishes or the process is
// interrupted, and returns the exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}
