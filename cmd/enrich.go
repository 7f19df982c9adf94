// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bonial-oss/vulnfacts/internal/enrich"
	"github.com/bonial-oss/vulnfacts/internal/findings"
	"github.com/bonial-oss/vulnfacts/internal/logging"
)

// enrichOptions holds the enrich command's flag values.
type enrichOptions struct {
	Output   string
	JSONOut  string
	XLSXOut  string
	Upload   bool
	KeepZero bool
	TopN     int
}

func newEnrichCommand(root *rootOptions) *cobra.Command {
	opts := &enrichOptions{}

	cmd := &cobra.Command{
		Use:   "enrich <input.csv>",
		Short: "Enrich a scanner CSV export with risk scores and threat metadata",
		Long: `Reads a vulnerability-scanner CSV export, detects the scanner dialect,
normalizes it to the canonical finding schema, and merges each row's matched
CVE facts into a single risk score and threat set.

Rows with a merged score of 0 carry no actionable intelligence and are
dropped by default; use --keep-zero (or enrich.drop_zero_score in the config
file) to keep them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			rt, err := setup(root)
			if err != nil {
				return err
			}
			defer rt.store.Close()
			return runEnrich(rt, args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Output, "output", "o", "", "Write enriched CSV to file")
	flags.StringVar(&opts.JSONOut, "json", "", "Write enriched JSON records to file")
	flags.StringVar(&opts.XLSXOut, "xlsx", "", "Write spreadsheet export to file (best effort)")
	flags.BoolVar(&opts.Upload, "upload", false, "Upsert findings into the report collection")
	flags.BoolVar(&opts.KeepZero, "keep-zero", false, "Keep rows with a merged score of 0")
	flags.IntVar(&opts.TopN, "top", 0, "Rows in the terminal summary (overrides config)")

	return cmd
}

func runEnrich(rt *runtime, input string, opts *enrichOptions) error {
	log := logging.Component(rt.log, "enrich")

	f, err := os.Open(input)
	if err != nil {
		return &ExitError{Code: 2, Message: fmt.Sprintf("opening scanner export: %v", err)}
	}
	defer f.Close()

	table, err := findings.ReadCSV(f)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	normalized, dialect, err := findings.Normalize(table)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	log.WithFields(logrus.Fields{"dialect": dialect.Name, "rows": len(normalized)}).Info("scanner export normalized")

	policy := rt.enrichPolicy()
	if opts.KeepZero {
		policy.DropZeroScore = false
	}

	enricher := enrich.New(rt.store, policy, log)
	result, err := enricher.Enrich(normalized)
	if err != nil {
		return err
	}

	if opts.Output != "" {
		out, err := os.Create(opts.Output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer out.Close()
		if err := enrich.WriteCSV(out, result.Findings); err != nil {
			return err
		}
		log.WithField("path", opts.Output).Info("enriched CSV written")
	}

	if opts.JSONOut != "" {
		out, err := os.Create(opts.JSONOut)
		if err != nil {
			return fmt.Errorf("creating JSON output file: %w", err)
		}
		defer out.Close()
		if err := enrich.WriteJSON(out, result.Findings); err != nil {
			return err
		}
		log.WithField("path", opts.JSONOut).Info("enriched JSON written")
	}

	if opts.XLSXOut != "" {
		if err := enrich.WriteXLSX(opts.XLSXOut, result.Findings); err != nil {
			// Best effort only.
			log.WithError(err).Warn("spreadsheet export failed")
		} else {
			log.WithField("path", opts.XLSXOut).Info("spreadsheet written")
		}
	}

	if opts.Upload {
		if err := enricher.UpsertFindings(result.Findings); err != nil {
			return err
		}
	}

	topN := rt.cfg.Enrich.SummaryRows
	if opts.TopN > 0 {
		topN = opts.TopN
	}
	enrich.WriteSummary(os.Stdout, result.Findings, topN, enrich.IsOutputToTerminal(os.Stdout))

	return nil
}
