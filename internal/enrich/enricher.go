// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package enrich applies persisted risk facts to normalized scanner
// findings: per-row fact lookup, multi-identifier merge, and report
// artifacts.
package enrich

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bonial-oss/vulnfacts/internal/document"
	"github.com/bonial-oss/vulnfacts/internal/feeds"
	"github.com/bonial-oss/vulnfacts/internal/findings"
	"github.com/bonial-oss/vulnfacts/internal/store"
)

// Policy parameterizes the merge behavior. The defaults (max-of-scores,
// drop zero-score rows) mirror how the risk report has always been
// produced, but both are data-quality policy rather than correctness,
// so callers can override them.
type Policy struct {
	ScoreMerge    string // "max" or "sum"
	DropZeroScore bool
}

// DefaultPolicy returns the standard merge policy.
func DefaultPolicy() Policy {
	return Policy{ScoreMerge: "max", DropZeroScore: true}
}

// Enricher joins findings against the fact store.
type Enricher struct {
	store  *store.Store
	policy Policy
	log    *logrus.Entry
}

// Result carries the enriched findings plus run counters.
type Result struct {
	Findings    []findings.Finding
	UniqueCVEs  int
	MatchedCVEs int
	Dropped     int
}

// New creates an Enricher over an open store.
func New(st *store.Store, policy Policy, log *logrus.Entry) *Enricher {
	return &Enricher{store: st, policy: policy, log: log}
}

// Enrich looks up every referenced identifier's fact in one round trip
// and merges the matches into each finding. Rows whose merged score is
// exactly 0 are dropped when the policy says so.
func (e *Enricher) Enrich(items []findings.Finding) (*Result, error) {
	unique := make(map[string]bool)
	for _, f := range items {
		for _, cve := range f.CVEs {
			unique[cve] = true
		}
	}
	ids := make([]string, 0, len(unique))
	for id := range unique {
		ids = append(ids, id)
	}

	intel, err := e.store.FindByKeys(feeds.CollectionFacts, ids)
	if err != nil {
		return nil, fmt.Errorf("looking up risk facts: %w", err)
	}
	e.log.WithFields(logrus.Fields{"unique_cves": len(ids), "matched": len(intel)}).Info("risk intel lookup")

	result := &Result{UniqueCVEs: len(ids), MatchedCVEs: len(intel)}
	for _, f := range items {
		e.merge(&f, intel)
		if e.policy.DropZeroScore && f.Score == 0 {
			result.Dropped++
			continue
		}
		result.Findings = append(result.Findings, f)
	}

	if result.Dropped > 0 {
		e.log.WithField("dropped", result.Dropped).Info("dropped rows without actionable intelligence")
	}
	return result, nil
}

// merge folds all matched facts into one finding: the row's score is
// bounded by its single worst associated vulnerability (or summed under
// the "sum" policy), threats are unioned with the distinct-value
// collapse law, and weaknesses collect every CWE-tagged threat value.
func (e *Enricher) merge(f *findings.Finding, intel map[string]document.Document) {
	var scores []float64
	var matched []string
	weaknesses := make(map[string]bool)
	union := make(map[string]map[string]any) // key -> rendered value -> raw value

	for _, cve := range f.CVEs {
		fact, ok := intel[cve]
		if !ok {
			// An unmatched identifier means a fact pipeline gap, not a
			// broken row.
			e.log.WithField("cve", cve).Warn("no risk intel found for identifier")
			continue
		}
		matched = append(matched, cve)
		scores = append(scores, fact.Float("vrr_score"))

		for key, val := range fact.Sub("threats") {
			values := union[key]
			if values == nil {
				values = make(map[string]any)
				union[key] = values
			}
			for _, v := range flatten(val) {
				values[render(v)] = v
			}
		}
	}

	for _, values := range union {
		for rendered := range values {
			if strings.Contains(rendered, "CWE-") {
				weaknesses[rendered] = true
			}
		}
	}

	sort.Strings(matched)
	f.CVEs = matched
	f.Score = mergeScores(scores, e.policy.ScoreMerge)
	f.Weaknesses = sortedKeys(weaknesses)
	f.Threats = collapse(union)
}

func mergeScores(scores []float64, policy string) float64 {
	if len(scores) == 0 {
		return 0
	}
	if policy == "sum" {
		total := 0.0
		for _, s := range scores {
			total += s
		}
		return total
	}
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	return max
}

// collapse applies the distinct-value law: exactly one distinct element
// stays a scalar, two or more become the sorted list of distinct
// values.
func collapse(union map[string]map[string]any) map[string]any {
	out := make(map[string]any, len(union))
	for key, values := range union {
		rendered := make([]string, 0, len(values))
		for r := range values {
			rendered = append(rendered, r)
		}
		sort.Strings(rendered)

		if len(rendered) == 1 {
			out[key] = values[rendered[0]]
			continue
		}
		list := make([]any, 0, len(rendered))
		for _, r := range rendered {
			list = append(list, values[r])
		}
		out[key] = list
	}
	return out
}

// flatten expands list-valued threat entries into their elements.
func flatten(val any) []any {
	if list, ok := val.([]any); ok {
		return list
	}
	return []any{val}
}

// render gives the distinct-value identity for a threat element.
func render(v any) string {
	return fmt.Sprintf("%v", v)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// UpsertFindings writes the enriched findings to the report collection,
// keyed by finding id so re-ingesting the same export is idempotent.
func (e *Enricher) UpsertFindings(items []findings.Finding) error {
	for _, f := range items {
		if err := e.store.UpsertByKey(feeds.CollectionFindings, f.ID, f.Document()); err != nil {
			return fmt.Errorf("upserting finding %s: %w", f.ID, err)
		}
	}
	e.log.WithFields(logrus.Fields{
		"collection": feeds.CollectionFindings,
		"count":      len(items),
	}).Info("findings loaded to store")
	return nil
}
