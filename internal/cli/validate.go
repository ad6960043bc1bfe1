package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tindale/ruledger/internal/rules"
)

// PackIssue is one validation finding against a loaded pack.
type PackIssue struct {
	PackID  string `json:"pack_id,omitempty"`
	Version string `json:"version,omitempty"`
	Message string `json:"message"`
}

// ValidationResult holds the outcome of a pack directory validation.
type ValidationResult struct {
	Valid  bool        `json:"valid"`
	Packs  int         `json:"packs"`
	Issues []PackIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	failFast := false

	cmd := &cobra.Command{
		Use:   "validate <packs-dir>",
		Short: "Validate rule pack definitions",
		Long: `Validate a directory of CUE rule pack definitions.

Checks bracket tables for contiguous coverage of [0, inf), rate ranges,
effective windows and source digests, then verifies the packs assemble
into a repository (unique versions). By default all findings are
collected; --fail-fast stops at the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], failFast, cmd)
		},
	}

	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first finding")

	return cmd
}

func runValidate(opts *RootOptions, packsDir string, failFast bool, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	packs, err := rules.LoadDir(packsDir)
	if err != nil {
		_ = formatter.Error(ErrCodeCommand, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load pack definitions", err)
	}
	formatter.VerboseLog("Loaded %d pack(s) from %s", len(packs), packsDir)

	var issues []PackIssue
	for _, p := range packs {
		formatter.VerboseLog("Validating pack %s version %s", p.ID, p.Version)
		if err := rules.Validate(p); err != nil {
			issues = append(issues, PackIssue{PackID: p.ID, Version: p.Version, Message: err.Error()})
			if failFast {
				return outputValidationIssues(formatter, len(packs), issues)
			}
		}
		if err := rules.VerifyDigest(p); err != nil {
			issues = append(issues, PackIssue{PackID: p.ID, Version: p.Version, Message: err.Error()})
			if failFast {
				return outputValidationIssues(formatter, len(packs), issues)
			}
		}
	}

	// Cross-pack checks (duplicate versions) only make sense once the
	// individual packs are sound.
	if len(issues) == 0 {
		if _, err := rules.NewRepository(packs); err != nil {
			issues = append(issues, PackIssue{Message: err.Error()})
		}
	}

	if len(issues) > 0 {
		return outputValidationIssues(formatter, len(packs), issues)
	}

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Packs: len(packs)})
	}
	fmt.Fprintf(formatter.Writer, "✓ %d pack(s) valid\n", len(packs))
	return nil
}

func outputValidationIssues(formatter *OutputFormatter, packCount int, issues []PackIssue) error {
	if formatter.Format == "json" {
		enc := json.NewEncoder(formatter.Writer)
		enc.SetIndent("", "  ")
		_ = enc.Encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Packs: packCount, Issues: issues},
			Error:  &CLIError{Code: "INVALID_PACK", Message: issues[0].Message},
		})
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d finding(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, issue := range issues {
		if issue.PackID != "" {
			fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", issue.PackID, issue.Version, issue.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s\n", issue.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d finding(s)", len(issues)))
}
