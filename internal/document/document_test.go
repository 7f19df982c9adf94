// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocument_Exists(t *testing.T) {
	assert.False(t, Document{}.Exists())
	assert.False(t, Document(nil).Exists())
	assert.True(t, Document{"cve_id": "CVE-2024-0001"}.Exists())
}

func TestDocument_String(t *testing.T) {
	doc := Document{
		"name":  "apache",
		"score": 9.8,
		"flag":  true,
	}
	assert.Equal(t, "apache", doc.String("name"))
	assert.Equal(t, "9.8", doc.String("score"))
	assert.Equal(t, "true", doc.String("flag"))
	assert.Equal(t, "", doc.String("missing"))
	assert.Equal(t, "", Document(nil).String("name"))
}

func TestDocument_Float(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want float64
	}{
		{"float", Document{"epss": 0.7}, 0.7},
		{"int", Document{"epss": 3}, 3.0},
		{"numeric string", Document{"epss": "0.42"}, 0.42},
		{"padded string", Document{"epss": " 0.42 "}, 0.42},
		{"garbage string", Document{"epss": "n/a"}, 0},
		{"missing", Document{}, 0},
		{"wrong type", Document{"epss": []any{1.0}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.doc.Float("epss"), 0.0001)
		})
	}
}

func TestDocument_Lists(t *testing.T) {
	doc := Document{
		"codes": []any{"CVE-2021-44228", "CVE-2021-45046", 7},
		"name":  "not a list",
	}
	assert.Len(t, doc.List("codes"), 3)
	assert.Nil(t, doc.List("name"))
	assert.Nil(t, doc.List("missing"))

	// Non-string elements are skipped.
	assert.Equal(t, []string{"CVE-2021-44228", "CVE-2021-45046"}, doc.StringList("codes"))
}

func TestDocument_Sub(t *testing.T) {
	doc := Document{
		"metrics": map[string]any{"cvssMetricV31": []any{}},
		"name":    "scalar",
	}
	assert.True(t, doc.Sub("metrics").Exists())
	// A scalar or missing field yields the empty sentinel, not an error.
	assert.False(t, doc.Sub("name").Exists())
	assert.False(t, doc.Sub("missing").Exists())
}

func TestDocument_FirstList(t *testing.T) {
	doc := Document{
		"metrics_cvssMetricV2": []any{"old"},
		"other":                "x",
	}
	// The first present list-valued path wins.
	got := doc.FirstList("metrics_cvssMetricV31", "metrics_cvssMetricV40", "metrics_cvssMetricV2")
	assert.Equal(t, []any{"old"}, got)
	assert.Nil(t, doc.FirstList("a", "b"))
}
