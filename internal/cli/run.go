package cli

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tindale/ruledger/internal/bas"
	"github.com/tindale/ruledger/internal/gateway"
	"github.com/tindale/ruledger/internal/ledger"
	"github.com/tindale/ruledger/internal/rules"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Packs   string
	Mapping string

	// Gateway overrides the submission target (for testing). Defaults
	// to a fresh stub.
	Gateway gateway.Gateway
}

// Submission reports one liability handed to the gateway.
type Submission struct {
	EntityID  string            `json:"entity_id"`
	Product   string            `json:"product"`
	Liability string            `json:"liability"`
	Labels    map[string]string `json:"labels,omitempty"`
	Reference string            `json:"reference"`
}

// RunResult is the run command's output payload.
type RunResult struct {
	Processed   int            `json:"processed"`
	Failed      []EventFailure `json:"failed,omitempty"`
	Submissions []Submission   `json:"submissions"`
}

func (r RunResult) String() string {
	out := fmt.Sprintf("Processed %d event(s), %d failure(s), submitted %d liability(ies)",
		r.Processed, len(r.Failed), len(r.Submissions))
	for _, f := range r.Failed {
		out += fmt.Sprintf("\n  failed %s: %s", f.Token, f.Message)
	}
	for _, s := range r.Submissions {
		out += fmt.Sprintf("\n  %s %s: %s (%s)", s.EntityID, s.Product, s.Liability, s.Reference)
	}
	return out
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommandWithOptions(&RunOptions{RootOptions: rootOpts})
}

// newRunCommandWithOptions lets tests inject a pre-built gateway.
func newRunCommandWithOptions(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <events.yaml>",
		Short: "Process events and submit liabilities",
		Long: `Drain an event file through the processor, then submit one
liability per accumulated obligation to the submission gateway.

With --mapping, each entity's obligations are also compiled into BAS
labels and attached to the submission as a breakdown. The gateway is a
recording stub; transport lives outside this tool.

Example:
  ruledger run ./events.yaml --packs ./packs
  ruledger run ./events.yaml --packs ./packs --mapping ./bas-mapping.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Packs, "packs", "", "rule pack definitions directory (required)")
	cmd.Flags().StringVar(&opts.Mapping, "mapping", "", "BAS label mapping YAML (optional)")
	_ = cmd.MarkFlagRequired("packs")

	return cmd
}

func runRun(opts *RunOptions, eventsPath string, cmd *cobra.Command) error {
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

	repo, err := rules.LoadRepository(opts.Packs)
	if err != nil {
		_ = formatter.Error(ErrCodeCommand, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load pack definitions", err)
	}

	var mapping *bas.Mapping
	if opts.Mapping != "" {
		mapping, err = bas.LoadMapping(opts.Mapping)
		if err != nil {
			_ = formatter.Error(ErrCodeCommand, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load mapping", err)
		}
	}

	gw := opts.Gateway
	if gw == nil {
		gw = gateway.NewStub()
	}

	ldg := ledger.New()
	processed, failed := drainEvents(cmd.Context(), repo, ldg, nil, events)
	formatter.VerboseLog("Processed %d event(s), %d failed", processed, len(failed))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var submissions []Submission
	for _, snap := range ldg.Snapshots() {
		var labels map[string]string
		var breakdown map[string]decimal.Decimal
		if mapping != nil {
			filing, err := bas.Compile(mapping, obligationSources(ldg, snap.EntityID))
			if err != nil {
				_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
				return WrapExitError(ExitFailure, "label compilation failed", err)
			}
			breakdown = filing.Labels
			labels = make(map[string]string, len(filing.Labels))
			for label, amount := range filing.Labels {
				labels[label] = amount.StringFixed(0)
			}
		}

		payload := gateway.BuildPayload(snap, breakdown)
		ack, err := gw.SubmitLiability(ctx, payload)
		if err != nil {
			_ = formatter.Error(ErrCodeCommand, err.Error(), nil)
			return WrapExitError(ExitFailure, "gateway submission failed", err)
		}
		formatter.VerboseLog("Submitted %s %s as %s", snap.EntityID, snap.Kind, ack.Reference)

		submissions = append(submissions, Submission{
			EntityID:  snap.EntityID,
			Product:   payload.Product,
			Liability: payload.Liability,
			Labels:    labels,
			Reference: ack.Reference,
		})
	}

	result := RunResult{Processed: processed, Failed: failed, Submissions: submissions}
	if err := formatter.Success(result); err != nil {
		return err
	}
	if len(failed) > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d failed event(s)", len(failed)))
	}
	return nil
}

// obligationSources builds the label compiler's source document for
// one entity: a single "obligations" source keyed by obligation kind.
func obligationSources(ldg *ledger.Ledger, entityID string) map[string]any {
	kinds := make(map[string]any)
	for _, snap := range ldg.Snapshots() {
		if snap.EntityID == entityID {
			kinds[string(snap.Kind)] = snap.Total
		}
	}
	return map[string]any{"obligations": kinds}
}
