// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package facts computes the per-vulnerability risk record: a weighted
// additive score and a structured threat map, aggregated across every
// source feed.
package facts

import (
	"math"
	"time"

	"github.com/bonial-oss/vulnfacts/internal/document"
	"github.com/bonial-oss/vulnfacts/internal/rules"
)

// Fact is the aggregation output for one identifier.
type Fact struct {
	CVEID      string         `json:"cve_id"`
	Score      float64        `json:"vrr_score"`
	Threats    map[string]any `json:"threats"`
	ComputedAt time.Time      `json:"computed_at"`
}

// Document renders the fact as a store document.
func (f Fact) Document() document.Document {
	return document.Document{
		"cve_id":      f.CVEID,
		"vrr_score":   f.Score,
		"threats":     f.Threats,
		"computed_at": f.ComputedAt.UTC().Format(time.RFC3339),
	}
}

// Score applies the scoring rule table to one identifier's merged
// per-source document set. Boolean rule results add the rule's weight
// when true; numeric results add value times weight. A rule that fails
// for any reason contributes exactly 0: one inconsistent source shape
// must never abort the computation. The result is rounded to 2 decimals.
func Score(merged map[string]document.Document) float64 {
	score := 0.0
	for _, rule := range rules.Scoring {
		raw := evalScoring(rule, merged[rule.Source])
		switch v := raw.(type) {
		case bool:
			if v {
				score += rule.Weight
			}
		case float64:
			score += v * rule.Weight
		case int:
			score += float64(v) * rule.Weight
		}
	}
	return math.Round(score*100) / 100
}

// Threats applies the threat rule table, recording truthy transform
// results under "{category}_{name}". Per-rule faults are swallowed
// exactly as in scoring.
func Threats(merged map[string]document.Document) map[string]any {
	threats := make(map[string]any)
	for _, rule := range rules.Threats {
		val := evalThreat(rule, merged[rule.Source])
		if truthy(val) {
			threats[rule.Key()] = val
		}
	}
	return threats
}

// Compute evaluates both rule tables for one identifier.
func Compute(cveID string, merged map[string]document.Document, now time.Time) Fact {
	return Fact{
		CVEID:      cveID,
		Score:      Score(merged),
		Threats:    Threats(merged),
		ComputedAt: now,
	}
}

// evalScoring runs one scoring rule, isolating panics from malformed
// documents so the rule simply contributes nothing.
func evalScoring(rule rules.ScoringRule, doc document.Document) (result any) {
	defer func() {
		if recover() != nil {
			result = nil
		}
	}()
	return rule.Logic(doc)
}

func evalThreat(rule rules.ThreatRule, doc document.Document) (result any) {
	defer func() {
		if recover() != nil {
			result = nil
		}
	}()
	return rule.Transform(doc, rule.Field)
}

// truthy decides whether a transform result is worth recording: nil,
// empty strings, empty lists, zero numbers, and false are not.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	case []any:
		return len(x) > 0
	case []string:
		return len(x) > 0
	case map[string]any:
		return len(x) > 0
	default:
		return true
	}
}
