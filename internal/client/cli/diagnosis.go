package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/dmitrijs2005/exposurekeys/internal/client/models"
	"github.com/dmitrijs2005/exposurekeys/internal/client/services"
	"github.com/dmitrijs2005/exposurekeys/internal/keys"
)

// report prints res and turns unsuccessful outcomes into an error.
func report(w io.Writer, res services.Result) error {
	switch res.Outcome {
	case services.OutcomeOK:
		fmt.Fprintf(w, "ok: diagnosis %s, status %s\n", res.Record.ID, res.Record.SharedStatus)
		return nil
	case services.OutcomeAlreadyVerified:
		fmt.Fprintf(w, "code already verified: diagnosis %s\n", res.Record.ID)
		return nil
	case services.OutcomeAlreadyShared:
		fmt.Fprintf(w, "keys of diagnosis %s are already shared, use reshare to update them\n", res.Record.ID)
		return nil
	case services.OutcomeNoInternet:
		return fmt.Errorf("no internet connection, try again later: %w", res.Err)
	case services.OutcomeRateLimited, services.OutcomeServerError:
		return fmt.Errorf("server is unavailable, try again later: %w", res.Err)
	}
	if res.Reason != "" {
		return fmt.Errorf("%s (%s): %w", res.Outcome, res.Reason, res.Err)
	}
	return fmt.Errorf("%s: %w", res.Outcome, res.Err)
}

func (r *root) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <code>",
		Short: "Exchange a verification code for a long-term token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) error {
				return report(cmd.OutOrStdout(), a.diagnoses.VerifyCode(ctx, args[0]))
			})
		},
	}
}

// shareKeys reads keys from path, or asks the matching engine for the
// device key history when path is empty.
func shareKeys(ctx context.Context, a *App, path string) ([]keys.DiagnosisKey, error) {
	if path != "" {
		return readKeysFile(path)
	}
	engine, err := dialEngine(a.cfg.EngineAddr)
	if err != nil {
		return nil, err
	}
	defer engine.Close()
	return engine.TemporaryExposureKeyHistory(ctx)
}

func (r *root) shareCmd() *cobra.Command {
	var (
		keysPath string
		traveler bool
		retry    bool
	)
	cmd := &cobra.Command{
		Use:   "share <diagnosis-id>",
		Short: "Certify and publish the keys of a verified diagnosis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) error {
				ks, err := shareKeys(ctx, a, keysPath)
				if err != nil {
					return err
				}
				svc := a.diagnoses
				if retry {
					svc = a.withRetry()
				}
				return report(cmd.OutOrStdout(), svc.Share(ctx, args[0], ks, traveler))
			})
		},
	}
	cmd.Flags().StringVar(&keysPath, "keys", "", "JSON file with the keys to share (default: ask the matching engine)")
	cmd.Flags().BoolVar(&traveler, "traveler", false, "mark the diagnosis as having travelled")
	cmd.Flags().BoolVar(&retry, "retry", false, "retry transient failures with backoff")
	return cmd
}

func (r *root) reshareCmd() *cobra.Command {
	var (
		keysPath string
		traveler bool
		onset    string
	)
	cmd := &cobra.Command{
		Use:   "reshare <diagnosis-id>",
		Short: "Publish updated keys or details of a shared diagnosis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var onsetDate *time.Time
			if onset != "" {
				d, err := time.Parse(api.DateFormat, onset)
				if err != nil {
					return fmt.Errorf("invalid onset date %q: %w", onset, err)
				}
				onsetDate = &d
			}
			return r.withApp(cmd, func(ctx context.Context, a *App) error {
				ks, err := shareKeys(ctx, a, keysPath)
				if err != nil {
					return err
				}
				return report(cmd.OutOrStdout(), a.diagnoses.Reshare(ctx, args[0], ks, traveler, onsetDate))
			})
		},
	}
	cmd.Flags().StringVar(&keysPath, "keys", "", "JSON file with the keys to share (default: ask the matching engine)")
	cmd.Flags().BoolVar(&traveler, "traveler", false, "mark the diagnosis as having travelled")
	cmd.Flags().StringVar(&onset, "onset", "", "symptom onset date, "+api.DateFormat)
	return cmd
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(api.DateFormat)
}

func writeRecords(w io.Writer, recs []*models.DiagnosisRecord) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTEST TYPE\tONSET\tTRAVELER\tUPDATED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			r.ID, r.SharedStatus, r.TestType, formatDate(r.SymptomOnset), r.Traveler,
			r.UpdatedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func (r *root) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored diagnoses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) error {
				recs, err := a.diagnoses.List(ctx)
				if err != nil {
					return err
				}
				if len(recs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no diagnoses")
					return nil
				}
				return writeRecords(cmd.OutOrStdout(), recs)
			})
		},
	}
}
