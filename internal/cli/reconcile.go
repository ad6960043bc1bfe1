package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tindale/ruledger/internal/engine"
	"github.com/tindale/ruledger/internal/ledger"
	"github.com/tindale/ruledger/internal/rules"
	"github.com/tindale/ruledger/internal/store"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	Packs    string
	Database string
}

// EventFailure reports one event that could not be processed.
type EventFailure struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

// ReconcileResult is the reconcile command's output payload.
type ReconcileResult struct {
	Processed     int                  `json:"processed"`
	Failed        []EventFailure       `json:"failed,omitempty"`
	Discrepancies []ledger.Discrepancy `json:"discrepancies"`
}

func (r ReconcileResult) String() string {
	out := fmt.Sprintf("Processed %d event(s), %d failure(s), %d discrepancy(ies)",
		r.Processed, len(r.Failed), len(r.Discrepancies))
	for _, f := range r.Failed {
		out += fmt.Sprintf("\n  failed %s: %s", f.Token, f.Message)
	}
	for _, d := range r.Discrepancies {
		out += fmt.Sprintf("\n  %s %s: expected %s, reported %s, diff %s",
			d.EntityID, d.Kind, d.Expected.StringFixed(2), d.Actual.StringFixed(2), d.Diff.StringFixed(2))
	}
	return out
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <events.yaml> <balances.yaml>",
		Short: "Accumulate events and reconcile against reported balances",
		Long: `Drain an event file through the processor, then reconcile the
resulting obligation ledger against externally reported balances.

Every mismatch between an accumulated total and its reported balance is
emitted as a discrepancy (expected minus actual), as is any reported
balance with no obligation recorded. With --db, processed results and
discrepancies are appended to the audit store.

Exit code 1 signals failed events or discrepancies; the command itself
succeeding is not the same as the books balancing.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Packs, "packs", "", "rule pack definitions directory (required)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite audit store path (optional)")
	_ = cmd.MarkFlagRequired("packs")

	return cmd
}

func runReconcile(opts *ReconcileOptions, eventsPath, balancesPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	configureLogging(opts.Verbose)

	events, err := loadEvents(eventsPath)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load events", err)
	}
	balances, err := loadBalances(balancesPath)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load balances", err)
	}

	repo, err := rules.LoadRepository(opts.Packs)
	if err != nil {
		_ = formatter.Error(ErrCodeCommand, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load pack definitions", err)
	}

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeCommand, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open audit store", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing audit store", "error", closeErr)
			}
		}()
	}

	ldg := ledger.New()
	processed, failed := drainEvents(cmd.Context(), repo, ldg, st, events)
	formatter.VerboseLog("Processed %d event(s), %d failed", processed, len(failed))

	discrepancies := ldg.Reconcile(balances)
	if st != nil {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		for _, d := range discrepancies {
			if err := st.AppendDiscrepancy(ctx, d); err != nil {
				_ = formatter.Error(ErrCodeCommand, err.Error(), nil)
				return WrapExitError(ExitCommandError, "failed to persist discrepancy", err)
			}
		}
	}

	result := ReconcileResult{
		Processed:     processed,
		Failed:        failed,
		Discrepancies: discrepancies,
	}
	if err := formatter.Success(result); err != nil {
		return err
	}
	if len(failed) > 0 || len(discrepancies) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d failed event(s), %d discrepancy(ies)", len(failed), len(discrepancies)))
	}
	return nil
}

// drainEvents runs the events through a processor to completion and
// reports the outcome split. Failures are sorted by token for stable
// output.
func drainEvents(ctx context.Context, repo *rules.Repository, ldg *ledger.Ledger, st *store.Store, events []engine.Event) (int, []EventFailure) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		processed int
		failed    []EventFailure
	)
	procOpts := []engine.Option{
		engine.WithOutcomeHook(func(o engine.Outcome) {
			if o.Err != nil {
				failed = append(failed, EventFailure{Token: o.Token, Message: o.Err.Error()})
				return
			}
			processed++
		}),
	}
	if st != nil {
		procOpts = append(procOpts, engine.WithAuditStore(st))
	}
	proc := engine.New(repo, ldg, procOpts...)

	for _, ev := range events {
		proc.Submit(ev)
	}

	done := make(chan error, 1)
	go func() { done <- proc.Run(ctx) }()
	proc.Stop()
	<-done

	sort.Slice(failed, func(i, j int) bool { return failed[i].Token < failed[j].Token })
	return processed, failed
}

// configureLogging routes slog to stderr at a level driven by the
// verbose flag.
func configureLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
