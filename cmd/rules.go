// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"strconv"

	aqtable "github.com/aquasecurity/table"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bonial-oss/vulnfacts/internal/document"
	"github.com/bonial-oss/vulnfacts/internal/logging"
	"github.com/bonial-oss/vulnfacts/internal/rules"
	"github.com/bonial-oss/vulnfacts/internal/store"
)

// Reference collections capturing the rule tables for audit. The
// evaluator never reads these back; they exist for transparency.
const (
	collectionScoringRules = "dim_vrr"
	collectionThreatRules  = "dim_threat"
)

func newRulesCommand(root *rootOptions) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Print the scoring and threat rule tables",
		Long: `Prints the fixed rule tables driving fact computation. With --write, one
reference record per rule is also stored for audit purposes.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			rt, err := setup(root)
			if err != nil {
				return err
			}
			defer rt.store.Close()

			printRules(os.Stdout)

			if write {
				if err := writeRuleRecords(rt); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&write, "write", false, "Write rule reference records to the store")
	return cmd
}

func printRules(w *os.File) {
	fmt.Fprintln(w, "Scoring rules")
	st := aqtable.New(w)
	st.SetHeaders("Category", "Name", "Source", "Field", "Weight")
	for _, r := range rules.Scoring {
		st.AddRow(r.Category, r.Name, r.Source, r.Field, strconv.FormatFloat(r.Weight, 'f', -1, 64))
	}
	st.Render()

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Threat rules")
	tt := aqtable.New(w)
	tt.SetHeaders("Key", "Source", "Field")
	for _, r := range rules.Threats {
		tt.AddRow(r.Key(), r.Source, r.Field)
	}
	tt.Render()
}

func writeRuleRecords(rt *runtime) error {
	log := logging.Component(rt.log, "rules")

	scoring := make([]store.KeyedDoc, 0, len(rules.Scoring))
	for _, r := range rules.Scoring {
		scoring = append(scoring, store.KeyedDoc{
			Key: r.Category + "_" + r.Name,
			Doc: document.Document{
				"unique_id": uuid.NewString(),
				"category":  r.Category,
				"name":      r.Name,
				"source":    r.Source,
				"field":     r.Field,
				"weight":    r.Weight,
			},
		})
	}

	threats := make([]store.KeyedDoc, 0, len(rules.Threats))
	for _, r := range rules.Threats {
		threats = append(threats, store.KeyedDoc{
			Key: r.Key(),
			Doc: document.Document{
				"unique_id": uuid.NewString(),
				"category":  r.Category,
				"name":      r.Name,
				"source":    r.Source,
				"field":     r.Field,
			},
		})
	}

	if err := rt.store.Truncate(collectionScoringRules); err != nil {
		return err
	}
	if err := rt.store.BulkInsert(collectionScoringRules, scoring); err != nil {
		return fmt.Errorf("writing scoring rule records: %w", err)
	}
	if err := rt.store.Truncate(collectionThreatRules); err != nil {
		return err
	}
	if err := rt.store.BulkInsert(collectionThreatRules, threats); err != nil {
		return fmt.Errorf("writing threat rule records: %w", err)
	}

	log.WithField("scoring", len(scoring)).WithField("threat", len(threats)).Info("rule reference records written")
	return nil
}
