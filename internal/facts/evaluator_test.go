// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package facts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bonial-oss/vulnfacts/internal/document"
	"github.com/bonial-oss/vulnfacts/internal/feeds"
	"github.com/bonial-oss/vulnfacts/internal/rules"
)

// emptyMerged returns the per-source document set of an identifier
// present in zero feeds: every source is the empty sentinel.
func emptyMerged() map[string]document.Document {
	return map[string]document.Document{
		feeds.SourceCISA:       {},
		feeds.SourceEPSS:       {},
		feeds.SourceExploitDB:  {},
		feeds.SourceMetasploit: {},
		feeds.SourceNVD:        {},
	}
}

func TestScore_NoFeeds(t *testing.T) {
	assert.Equal(t, 0.0, Score(emptyMerged()))
	assert.Empty(t, Threats(emptyMerged()))
}

func TestScore_CatalogPlusPrediction(t *testing.T) {
	// Catalog presence (weight 30) + EPSS 0.7 (weight 10):
	// 30 + 0.7*10 = 37.0
	merged := emptyMerged()
	merged[feeds.SourceCISA] = document.Document{"cve_id": "CVE-2024-0001"}
	merged[feeds.SourceEPSS] = document.Document{"cve": "CVE-2024-0001", "epss": 0.7}

	assert.InDelta(t, 37.0, Score(merged), 0.001)
}

func TestScore_AllSources(t *testing.T) {
	// 30 (CISA) + 0.5*10 (EPSS) + 10 (ExploitDB) + 10 (Metasploit)
	// + 9.8*0.5 (CVSS) = 59.9
	merged := emptyMerged()
	merged[feeds.SourceCISA] = document.Document{"cve_id": "CVE-2021-44228"}
	merged[feeds.SourceEPSS] = document.Document{"epss": 0.5}
	merged[feeds.SourceExploitDB] = document.Document{"source_url": "https://example.com"}
	merged[feeds.SourceMetasploit] = document.Document{"name": "mod"}
	merged[feeds.SourceNVD] = document.Document{
		"metrics_cvssMetricV31": []any{map[string]any{"cvssData": map[string]any{"baseScore": 9.8}}},
	}

	assert.InDelta(t, 59.9, Score(merged), 0.001)
}

func TestScore_RoundsToTwoDecimals(t *testing.T) {
	merged := emptyMerged()
	merged[feeds.SourceEPSS] = document.Document{"epss": 0.12345}
	// 0.12345 * 10 = 1.2345 -> 1.23
	assert.Equal(t, 1.23, Score(merged))
}

func TestEvalScoring_PanickingRuleContributesZero(t *testing.T) {
	rule := rules.ScoringRule{
		Category: "test", Name: "boom", Weight: 100.0,
		Logic: func(document.Document) any { panic("malformed nested field") },
	}
	got := evalScoring(rule, document.Document{})
	assert.Nil(t, got, "a panicking rule must yield no contribution, not an error")
}

func TestEvalThreat_PanickingTransformIsSwallowed(t *testing.T) {
	rule := rules.ThreatRule{
		Category: "test", Name: "boom", Field: "x",
		Transform: func(document.Document, string) any { panic("bad shape") },
	}
	assert.Nil(t, evalThreat(rule, document.Document{}))
}

func TestThreats_RecordsTruthyValuesUnderCategoryKeys(t *testing.T) {
	merged := emptyMerged()
	merged[feeds.SourceCISA] = document.Document{
		"cve_id":                        "CVE-2021-44228",
		"required_action":               "Apply updates per vendor instructions.",
		"known_ransomware_campaign_use": "Known",
	}
	merged[feeds.SourceEPSS] = document.Document{"epss": 0.97, "percentile": 0.999}

	threats := Threats(merged)
	assert.Equal(t, "Apply updates per vendor instructions.", threats["CISA_required_action"])
	assert.Equal(t, "Known", threats["CISA_known_ransomware_campaign_use"])
	assert.Equal(t, 0.97, threats["EPSS_epss_value"])

	// Absent sources leave no keys behind.
	_, ok := threats["ExploitDB_exploit_id"]
	assert.False(t, ok)
}

func TestCompute(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)
	merged := emptyMerged()
	merged[feeds.SourceCISA] = document.Document{"cve_id": "CVE-2024-0001"}

	fact := Compute("CVE-2024-0001", merged, now)
	assert.Equal(t, "CVE-2024-0001", fact.CVEID)
	assert.Equal(t, 30.0, fact.Score)
	assert.Equal(t, now, fact.ComputedAt)

	doc := fact.Document()
	assert.Equal(t, "CVE-2024-0001", doc.String("cve_id"))
	assert.Equal(t, "2026-02-12T10:00:00Z", doc.String("computed_at"))
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		val  any
		want bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"empty string", "", false},
		{"string", "x", true},
		{"zero float", 0.0, false},
		{"float", 0.1, true},
		{"empty list", []any{}, false},
		{"list", []any{"x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truthy(tt.val))
		})
	}
}
