package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"markupcheck-backend/internal/console"
	"markupcheck-backend/internal/markup"
)

const stdinName = "-"

type checkOptions struct {
	watch bool
	fixed bool
}

// documentResult is the outcome of checking one input.
type documentResult struct {
	Name   string         `json:"name"`
	Report *markup.Report `json:"report,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func newCheckCmd() *cobra.Command {
	var opts checkOptions
	cmd := &cobra.Command{
		Use:   "check [files...|-]",
		Short: "Check HTML files, directories or standard input",
		Long: `Check analyzes each input and prints its issues.

Directories are searched for .html and .htm files. "-" or no arguments reads
standard input. The exit status is 1 when any issue meets --fail-on.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveSettings(cmd)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			if len(args) == 0 {
				args = []string{stdinName}
			}
			if opts.watch {
				return runWatch(cmd, cfg, opts, args)
			}
			return runCheck(cmd, cfg, opts, args)
		},
	}

	cmd.Flags().String("format", "text", "output format (text|json)")
	cmd.Flags().String("fail-on", "error", "lowest severity that fails the run (error|warning|info|none)")
	cmd.Flags().Int("context-radius", markup.DefaultContextRadius, "lines of source shown around each issue")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "re-check files when they change")
	cmd.Flags().BoolVar(&opts.fixed, "fixed", false, "print the auto-fixed document when one is produced")
	return cmd
}

func runCheck(cmd *cobra.Command, cfg settings, opts checkOptions, args []string) error {
	paths, err := expandInputs(args)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	analyzer := markup.Analyzer{ContextRadius: cfg.ContextRadius}
	results := analyzeInputs(cmd.Context(), analyzer, paths, cmd.InOrStdin(), cfg.Workers)

	printer := console.NewPrinter(outFile(cmd), cfg.Color)
	if err := writeResults(cmd.OutOrStdout(), printer, cfg.Format, opts.fixed, results); err != nil {
		return &exitError{code: 2, err: err}
	}
	return thresholdError(results, cfg.FailOn)
}

// expandInputs replaces directories with the HTML files beneath them, in
// lexical order. Other arguments are kept as given.
func expandInputs(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		if arg == stdinName {
			out = append(out, arg)
			continue
		}
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			out = append(out, arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != arg && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if isHTMLFile(path) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", arg, err)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}

func isHTMLFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	default:
		return false
	}
}

// analyzeInputs checks every path concurrently. Results keep argument order.
func analyzeInputs(ctx context.Context, analyzer markup.Analyzer, paths []string, stdin io.Reader, workers int) []documentResult {
	results := make([]documentResult, len(paths))
	p := pool.New().WithMaxGoroutines(max(workers, 1))
	for i, path := range paths {
		p.Go(func() {
			results[i] = analyzeInput(ctx, analyzer, path, stdin)
		})
	}
	p.Wait()
	return results
}

func analyzeInput(ctx context.Context, analyzer markup.Analyzer, path string, stdin io.Reader) documentResult {
	res := documentResult{Name: path}
	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res
	}
	text, err := readInput(path, stdin)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	report := analyzer.Analyze(text)
	res.Report = &report
	return res
}

func readInput(path string, stdin io.Reader) (string, error) {
	if path == stdinName {
		if stdin == nil {
			return "", fmt.Errorf("standard input is not available")
		}
		raw, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read standard input: %w", err)
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func writeResults(w io.Writer, printer console.Printer, format string, fixed bool, results []documentResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	for i, res := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if res.Report == nil {
			fmt.Fprint(w, printer.FormatError(res.Name, fmt.Errorf("%s", res.Error)))
			continue
		}
		fmt.Fprint(w, printer.FormatReport(res.Name, *res.Report))
		if fixed && res.Report.FixedCode != nil {
			fmt.Fprintf(w, "\nfixed %s:\n%s\n", res.Name, *res.Report.FixedCode)
		}
	}
	return nil
}

// thresholdError returns an exit status 1 error when any input failed to
// load or any issue ranks at or above failOn.
func thresholdError(results []documentResult, failOn string) error {
	rank, err := failRank(failOn)
	if err != nil {
		return &exitError{code: 2, err: err}
	}
	for _, res := range results {
		if res.Report == nil {
			return &exitError{code: 1}
		}
		if rank == 0 {
			continue
		}
		if sev := markup.MaxSeverity(res.Report.Issues); sev != "" && sev.Rank() >= rank {
			return &exitError{code: 1}
		}
	}
	return nil
}

func outFile(cmd *cobra.Command) *os.File {
	if f, ok := cmd.OutOrStdout().(*os.File); ok {
		return f
	}
	return nil
}
