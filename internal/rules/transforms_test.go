// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bonial-oss/vulnfacts/internal/document"
)

func TestBoolExists(t *testing.T) {
	assert.Equal(t, false, BoolExists(document.Document{}, ""))
	assert.Equal(t, true, BoolExists(document.Document{"cve_id": "CVE-2024-0001"}, ""))
}

func TestLowercaseIn(t *testing.T) {
	known := LowercaseIn("Known")
	assert.Equal(t, true, known(document.Document{"known_ransomware_campaign_use": "KNOWN"}, "known_ransomware_campaign_use"))
	assert.Equal(t, false, known(document.Document{"known_ransomware_campaign_use": "Unknown"}, "known_ransomware_campaign_use"))
	assert.Equal(t, false, known(document.Document{}, "known_ransomware_campaign_use"))
}

func TestDeepCVSS(t *testing.T) {
	tests := []struct {
		name string
		doc  document.Document
		want float64
	}{
		{
			name: "modern flattened path",
			doc: document.Document{
				"metrics_cvssMetricV31": []any{map[string]any{"cvssData": map[string]any{"baseScore": 9.8}}},
			},
			want: 9.8,
		},
		{
			name: "flattened v2 fallback",
			doc: document.Document{
				"metrics_cvssMetricV2": []any{map[string]any{"cvssData": map[string]any{"baseScore": 5.0}}},
			},
			want: 5.0,
		},
		{
			name: "legacy nested path",
			doc: document.Document{
				"metrics": map[string]any{
					"cvssMetricV31": []any{map[string]any{"cvssData": map[string]any{"baseScore": 7.5}}},
				},
			},
			want: 7.5,
		},
		{name: "absent", doc: document.Document{}, want: 0},
		{
			name: "empty metrics list",
			doc:  document.Document{"metrics_cvssMetricV31": []any{}},
			want: 0,
		},
		{
			name: "malformed first element",
			doc:  document.Document{"metrics_cvssMetricV31": []any{"not a map"}},
			want: 0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeepCVSS(tt.doc, "")
			assert.InDelta(t, tt.want, got.(float64), 0.0001)
		})
	}
}

func TestListPluck(t *testing.T) {
	pluck := ListPluck("url")
	doc := document.Document{
		"references": []any{
			map[string]any{"url": "https://a.example.com"},
			// Bare strings pass through when the subkey is "url".
			"https://b.example.com",
			// Malformed elements are skipped.
			map[string]any{"source": "no url key"},
			7,
		},
	}
	got := pluck(doc, "references").([]any)
	assert.Equal(t, []any{"https://a.example.com", "https://b.example.com"}, got)

	// Bare strings are NOT passed through for other subkeys.
	names := ListPluck("name")(document.Document{"references": []any{"plain"}}, "references").([]any)
	assert.Empty(t, names)
}

func TestWeaknessExtract_StructuredShape(t *testing.T) {
	doc := document.Document{
		"weaknesses": []any{
			map[string]any{"description": []any{
				map[string]any{"lang": "en", "value": "CWE-917"},
				map[string]any{"lang": "es", "value": "CWE-ignored"},
			}},
		},
	}
	got := WeaknessExtract(doc, "weaknesses").([]any)
	assert.Equal(t, []any{"CWE-917"}, got)
}

func TestWeaknessExtract_PlainStringShape(t *testing.T) {
	doc := document.Document{"weaknesses": []any{"CWE-79", "CWE-89"}}
	got := WeaknessExtract(doc, "weaknesses").([]any)
	assert.Equal(t, []any{"CWE-79", "CWE-89"}, got)
}

func TestWeaknessExtract_MixedAndMalformed(t *testing.T) {
	doc := document.Document{
		"weaknesses": []any{
			"CWE-79",
			map[string]any{"description": "not a list"},
			42,
		},
	}
	got := WeaknessExtract(doc, "weaknesses").([]any)
	assert.Equal(t, []any{"CWE-79"}, got)
}

func TestThreatRule_Key(t *testing.T) {
	rule := ThreatRule{Category: "CISA", Name: "required_action"}
	assert.Equal(t, "CISA_required_action", rule.Key())
}
