package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"markupcheck-backend/internal/console"
	"markupcheck-backend/internal/fetch"
	"markupcheck-backend/internal/markup"
)

func newFetchCmd() *cobra.Command {
	var (
		opts checkOptions
		body bool
	)
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Fetch a page and check it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveSettings(cmd)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			fetcher := fetch.New(cfg.Fetch.options())
			doc, err := fetcher.Fetch(cmd.Context(), args[0])
			if err != nil {
				return &exitError{code: 2, err: fmt.Errorf("fetch %s: %w", args[0], err)}
			}
			if body {
				_, err := fmt.Fprint(cmd.OutOrStdout(), doc.Body)
				return err
			}

			report := markup.Analyzer{ContextRadius: cfg.ContextRadius}.Analyze(doc.Body)
			results := []documentResult{{Name: doc.FinalURL, Report: &report}}
			printer := console.NewPrinter(outFile(cmd), cfg.Color)
			if err := writeResults(cmd.OutOrStdout(), printer, cfg.Format, opts.fixed, results); err != nil {
				return &exitError{code: 2, err: err}
			}
			return thresholdError(results, cfg.FailOn)
		},
	}

	cmd.Flags().String("format", "text", "output format (text|json)")
	cmd.Flags().String("fail-on", "error", "lowest severity that fails the run (error|warning|info|none)")
	cmd.Flags().Int("context-radius", markup.DefaultContextRadius, "lines of source shown around each issue")
	cmd.Flags().Duration("timeout", 10*time.Second, "request timeout")
	cmd.Flags().Bool("allow-private", true, "allow loopback and private network hosts")
	cmd.Flags().BoolVar(&opts.fixed, "fixed", false, "print the auto-fixed document when one is produced")
	cmd.Flags().BoolVar(&body, "body", false, "print the fetched document instead of checking it")
	return cmd
}
