package cli

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/exposurekeys/internal/client/config"
	"github.com/dmitrijs2005/exposurekeys/internal/export"
	"github.com/dmitrijs2005/exposurekeys/internal/filex"
)

func (r *root) pubkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pubkey",
		Short: "Print the export signing public key as a trusted key entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return r.withApp(cmd, func(ctx context.Context, a *App) error {
				s, err := a.signer(ctx, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				pub, err := s.PublicKeyBase64(ctx)
				if err != nil {
					return err
				}
				info := s.VerificationInfo()
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(config.TrustedKey{KeyID: info.KeyID, KeyVersion: info.KeyVersion, PublicKey: pub})
			})
		},
	}
}

func (r *root) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Create or inspect signed export files",
	}
	cmd.AddCommand(r.exportEncodeCmd(), r.exportInspectCmd())
	return cmd
}

func parseWindow(start, end string, now time.Time) (time.Time, time.Time, error) {
	e := now.UTC().Truncate(time.Hour)
	if end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end %q: %w", end, err)
		}
		e = t
	}
	s := e.Add(-24 * time.Hour)
	if start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start %q: %w", start, err)
		}
		s = t
	}
	return s, e, nil
}

func (r *root) exportEncodeCmd() *cobra.Command {
	var (
		keysPath  string
		region    string
		start     string
		end       string
		outDir    string
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode keys into signed export files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := readKeysFile(keysPath)
			if err != nil {
				return err
			}
			from, to, err := parseWindow(start, end, time.Now())
			if err != nil {
				return err
			}
			if region == "" {
				region = r.cfg.Regions[0]
			}

			return r.withApp(cmd, func(ctx context.Context, a *App) error {
				s, err := a.signer(ctx, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				exports, err := export.Encoder{Signers: []export.Signer{s}, MaxBatchSize: batchSize}.Encode(ctx, ks, from, to, region)
				if err != nil {
					return err
				}

				dir, err := filex.EnsureDir(outDir)
				if err != nil {
					return err
				}
				for _, e := range exports {
					path := filepath.Join(dir, e.FileName())
					if err := e.WriteFile(path); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), path)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&keysPath, "keys", "", "JSON file with the keys to export")
	cmd.Flags().StringVar(&region, "region", "", "export region (default: first configured region)")
	cmd.Flags().StringVar(&start, "start", "", "window start, RFC 3339 (default: end minus 24h)")
	cmd.Flags().StringVar(&end, "end", "", "window end, RFC 3339 (default: current hour)")
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	cmd.Flags().IntVar(&batchSize, "batch-size", export.DefaultMaxBatchSize, "maximum keys per file")
	_ = cmd.MarkFlagRequired("keys")
	return cmd
}

func describe(w io.Writer, a *export.Archive, showKeys bool) {
	b := a.Batch
	fmt.Fprintf(w, "region:     %s\n", b.Region)
	fmt.Fprintf(w, "window:     %s - %s\n", b.StartTimestamp.Format(time.RFC3339), b.EndTimestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "batch:      %d/%d\n", b.BatchNum, b.BatchSize)
	fmt.Fprintf(w, "keys:       %d\n", len(b.Keys))
	for _, s := range a.Signatures {
		fmt.Fprintf(w, "signature:  %s/%s %s\n", s.Info.KeyID, s.Info.KeyVersion, s.Info.AlgorithmOID)
	}
	if !showKeys {
		return
	}
	for _, k := range b.Keys {
		fmt.Fprintf(w, "  %s start=%d period=%d risk=%d\n",
			hex.EncodeToString(k.KeyData()), k.RollingStart(), k.RollingPeriod(), k.TransmissionRisk())
	}
}

func (r *root) exportInspectCmd() *cobra.Command {
	var showKeys bool
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Decode an export file and check its signatures",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := export.ReadFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			describe(out, a, showKeys)

			trusted, err := trustedKeys(r.cfg)
			if err != nil {
				return err
			}
			if len(trusted) == 0 {
				fmt.Fprintln(out, "verified:   unknown (no trusted keys configured)")
				return nil
			}
			if err := export.Verify(a, trusted); err != nil {
				fmt.Fprintln(out, "verified:   no")
				return err
			}
			fmt.Fprintln(out, "verified:   yes")
			return nil
		},
	}
	cmd.Flags().BoolVar(&showKeys, "show-keys", false, "print every key")
	return cmd
}
