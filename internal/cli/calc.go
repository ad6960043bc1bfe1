package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tindale/ruledger/internal/calc"
	"github.com/tindale/ruledger/internal/ledger"
	"github.com/tindale/ruledger/internal/rules"
)

// CalcOptions holds flags for the calc command.
type CalcOptions struct {
	*RootOptions
	Kind       string
	Amount     string
	Category   string
	Allowances string
	Pack       string
	AsOf       string
}

// CalcResult is the calc command's output payload.
type CalcResult struct {
	Kind       string          `json:"kind"`
	Amount     string          `json:"amount"`
	Liability  string          `json:"liability"`
	Provenance calc.Provenance `json:"provenance"`
}

func (r CalcResult) String() string {
	return fmt.Sprintf("%s liability on %s: %s (pack %s version %s)",
		r.Kind, r.Amount, r.Liability, r.Provenance.PackID, r.Provenance.Version)
}

// NewCalcCommand creates the calc command.
func NewCalcCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CalcOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "calc <packs-dir>",
		Short: "Compute a single liability",
		Long: `Compute one GST or PAYGW liability against a rule pack directory.

The as-of date drives temporal rule resolution; the pack flag pins an
explicit version or resolves "latest" subject to the backdating guard.

Example:
  ruledger calc ./packs --kind GST --amount 100.00 --category standard --as-of 2024-08-15
  ruledger calc ./packs --kind PAYGW --amount 2000 --allowances 100 --pack 2024.2 --as-of 2024-08-15`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalc(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "obligation kind (GST|PAYGW)")
	cmd.Flags().StringVar(&opts.Amount, "amount", "", "net amount (GST) or taxable income (PAYGW)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "GST category")
	cmd.Flags().StringVar(&opts.Allowances, "allowances", "0", "PAYGW allowances")
	cmd.Flags().StringVar(&opts.Pack, "pack", rules.SelectorLatest, "rule pack version selector")
	cmd.Flags().StringVar(&opts.AsOf, "as-of", "", "period date YYYY-MM-DD")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("as-of")

	return cmd
}

func runCalc(opts *CalcOptions, packsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	kind, err := ledger.ParseKind(opts.Kind)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid kind", err)
	}
	amount, err := decimal.NewFromString(opts.Amount)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, fmt.Sprintf("bad amount %q", opts.Amount), nil)
		return WrapExitError(ExitCommandError, "invalid amount", err)
	}
	allowances, err := decimal.NewFromString(opts.Allowances)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, fmt.Sprintf("bad allowances %q", opts.Allowances), nil)
		return WrapExitError(ExitCommandError, "invalid allowances", err)
	}
	asOf, err := time.Parse("2006-01-02", opts.AsOf)
	if err != nil {
		_ = formatter.Error(ErrCodeBadInput, fmt.Sprintf("bad as-of date %q (want YYYY-MM-DD)", opts.AsOf), nil)
		return WrapExitError(ExitCommandError, "invalid as-of date", err)
	}

	repo, err := rules.LoadRepository(packsDir)
	if err != nil {
		_ = formatter.Error(ErrCodeCommand, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load pack definitions", err)
	}

	pack, err := repo.Resolve(opts.Pack, asOf)
	if err != nil {
		return outputDomainError(formatter, err)
	}
	formatter.VerboseLog("Resolved pack %s version %s", pack.ID, pack.Version)

	var (
		liability decimal.Decimal
		prov      calc.Provenance
	)
	switch kind {
	case ledger.KindGST:
		r, err := calc.GST(calc.GSTInput{Category: opts.Category, NetAmount: amount}, pack)
		if err != nil {
			return outputDomainError(formatter, err)
		}
		liability, prov = r.GSTAmount, r.Provenance
	case ledger.KindPAYGW:
		r, err := calc.PAYGW(calc.PAYGWInput{TaxableIncome: amount, Allowances: allowances}, pack)
		if err != nil {
			return outputDomainError(formatter, err)
		}
		liability, prov = r.WithheldAmount, r.Provenance
	}

	return formatter.Success(CalcResult{
		Kind:       string(kind),
		Amount:     amount.StringFixed(2),
		Liability:  liability.StringFixed(2),
		Provenance: prov,
	})
}

// outputDomainError renders a calculation-layer error with its own
// code when it carries one, then signals a data failure exit.
func outputDomainError(formatter *OutputFormatter, err error) error {
	code := ErrCodeBadInput
	var rerr *rules.ResolveError
	if errors.As(err, &rerr) {
		code = string(rerr.Code)
	}
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitFailure, "calculation failed", err)
}
