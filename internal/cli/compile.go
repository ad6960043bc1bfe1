package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tindale/ruledger/internal/bas"
)

// FilingResult is the compile command's output payload: whole-dollar
// label amounts as decimal strings.
type FilingResult struct {
	MappingVersion string            `json:"mapping_version"`
	Labels         map[string]string `json:"labels"`
}

func (r FilingResult) String() string {
	labels := make([]string, 0, len(r.Labels))
	for label := range r.Labels {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	out := fmt.Sprintf("Filing (mapping %s):", r.MappingVersion)
	for _, label := range labels {
		out += fmt.Sprintf("\n  %s: %s", label, r.Labels[label])
	}
	return out
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <sources.json> <mapping.yaml>",
		Short: "Compile BAS labels from calculation sources",
		Long: `Compile Business Activity Statement labels.

Reads a JSON document of named calculation sources and a YAML label
mapping, resolves each label's dotted source paths, sums them exactly
and rounds each label to whole dollars once at the end. Missing paths
contribute zero; an undeclared source name fails the whole filing.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runCompile(opts *RootOptions, sourcesPath, mappingPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	raw, err := os.ReadFile(sourcesPath)
	if err != nil {
		_ = formatter.Error(ErrCodeCommand, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read sources", err)
	}
	var sources map[string]any
	if err := json.Unmarshal(raw, &sources); err != nil {
		_ = formatter.Error(ErrCodeBadInput, fmt.Sprintf("sources file %s is not a JSON object: %v", sourcesPath, err), nil)
		return WrapExitError(ExitCommandError, "failed to parse sources", err)
	}

	mapping, err := bas.LoadMapping(mappingPath)
	if err != nil {
		_ = formatter.Error(ErrCodeCommand, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load mapping", err)
	}
	formatter.VerboseLog("Mapping %s declares %d label(s)", mapping.Version, len(mapping.Labels))

	filing, err := bas.Compile(mapping, sources)
	if err != nil {
		code := ErrCodeBadInput
		var cerr *bas.CompileError
		if errors.As(err, &cerr) {
			code = string(cerr.Code)
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitFailure, "label compilation failed", err)
	}

	labels := make(map[string]string, len(filing.Labels))
	for label, amount := range filing.Labels {
		labels[label] = amount.StringFixed(0)
	}
	return formatter.Success(FilingResult{
		MappingVersion: filing.MappingVersion,
		Labels:         labels,
	})
}
