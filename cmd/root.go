// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bonial-oss/vulnfacts/internal/config"
	"github.com/bonial-oss/vulnfacts/internal/enrich"
	"github.com/bonial-oss/vulnfacts/internal/logging"
	"github.com/bonial-oss/vulnfacts/internal/store"
)

// Version is set at build time via ldflags.
var Version = "dev"

// ExitError signals a non-zero exit code with an optional message.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	ConfigFile string
	StorePath  string
	LogLevel   string
}

// runtime bundles what a subcommand needs after setup. The store is an
// explicit handle: opened at run start, closed by the subcommand at run
// end.
type runtime struct {
	cfg   *config.Config
	log   *logrus.Logger
	store *store.Store
}

// NewRootCommand creates the root cobra command with all subcommands.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:     "vulnfacts",
		Short:   "Aggregate vulnerability intelligence into risk facts and enrich scanner exports",
		Version: Version,
		Long: `vulnfacts joins independently-updated vulnerability feeds (CISA KEV, EPSS,
ExploitDB, Metasploit, NVD) into one risk fact per CVE, and uses those facts
to enrich arbitrary vulnerability-scanner CSV exports with a risk score and
structured threat metadata.

Typical flow:
  vulnfacts ingest --feed CISA --file known_exploited_vulnerabilities.json
  vulnfacts ingest --feed EPSS --file epss_scores.csv
  vulnfacts ingest --feed NVD  --file nvd_gold.json
  vulnfacts facts run
  vulnfacts enrich scan_export.csv --output enriched.csv`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, "config", "", "Path to YAML config file")
	flags.StringVar(&opts.StorePath, "store", "", "Override document store path")
	flags.StringVar(&opts.LogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")

	cmd.AddCommand(
		newIngestCommand(opts),
		newFactsCommand(opts),
		newRulesCommand(opts),
		newEnrichCommand(opts),
		newServeCommand(opts),
	)

	return cmd
}

// setup resolves config, builds the logger, and opens the store.
func setup(opts *rootOptions) (*runtime, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.StorePath != "" {
		cfg.Store.Path = opts.StorePath
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}

	log := logging.New(cfg.Logging.Level)

	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		// Connectivity faults abort before anything destructive runs.
		return nil, &ExitError{Code: 2, Message: fmt.Sprintf("document store unavailable: %v", err)}
	}

	return &runtime{cfg: cfg, log: log, store: st}, nil
}

// enrichPolicy translates the config's merge policy settings.
func (rt *runtime) enrichPolicy() enrich.Policy {
	policy := enrich.DefaultPolicy()
	policy.ScoreMerge = rt.cfg.Enrich.ScoreMerge
	if rt.cfg.Enrich.DropZeroScore != nil {
		policy.DropZeroScore = *rt.cfg.Enrich.DropZeroScore
	}
	return policy
}
