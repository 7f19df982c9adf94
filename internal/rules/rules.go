// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package rules holds the declarative scoring and threat-extraction
// tables. Rule definitions are a fixed, code-level table, not a
// user-authored DSL: each rule names its source feed, a field, a
// transform, and (for scoring) an additive weight.
package rules

import (
	"github.com/bonial-oss/vulnfacts/internal/document"
	"github.com/bonial-oss/vulnfacts/internal/feeds"
)

// ScoringRule contributes to the risk score. Logic returns either a
// bool (adds Weight when true) or a float64 (adds value times Weight).
type ScoringRule struct {
	Category string
	Name     string
	Source   string
	Field    string
	Weight   float64
	Logic    func(doc document.Document) any
}

// ThreatRule extracts one threat attribute, recorded under the key
// "{Category}_{Name}" when the transform yields a truthy value.
type ThreatRule struct {
	Category  string
	Name      string
	Source    string
	Field     string
	Transform Transform
}

// Key returns the threat-attribute key this rule writes.
func (r ThreatRule) Key() string {
	return r.Category + "_" + r.Name
}

// Scoring is the risk-score factor table. Weights are additive: the
// maximum possible score is the sum of all weights, with numeric rules
// scaled by their field's range (CVSS 0-10 at weight 0.5 contributes up
// to 5.0).
var Scoring = []ScoringRule{
	{
		Category: "CISA", Name: "CISA_KEY",
		Source: feeds.SourceCISA, Field: "cve_id", Weight: 30.0,
		// Presence in the exploited-vulnerabilities catalog is the factor.
		Logic: func(doc document.Document) any { return doc.Exists() },
	},
	{
		Category: "EPSS", Name: "EPSS",
		Source: feeds.SourceEPSS, Field: "epss", Weight: 10.0,
		Logic: func(doc document.Document) any { return doc.Float("epss") },
	},
	{
		Category: "ExploitDB", Name: "EXPLOIT_DB",
		Source: feeds.SourceExploitDB, Field: "source_url", Weight: 10.0,
		Logic: func(doc document.Document) any { return doc.Exists() },
	},
	{
		Category: "Metasploit", Name: "METASPLOIT",
		Source: feeds.SourceMetasploit, Field: "references", Weight: 10.0,
		Logic: func(doc document.Document) any { return doc.Exists() },
	},
	{
		Category: "NVD", Name: "NVD_CVSS_3",
		Source: feeds.SourceNVD, Field: "metrics_cvssMetricV31", Weight: 0.5,
		Logic: func(doc document.Document) any { return DeepCVSS(doc, "") },
	},
}

// Threats is the threat-attribute table.
var Threats = []ThreatRule{
	// CISA
	{Category: "CISA", Name: "required_action", Source: feeds.SourceCISA, Field: "required_action", Transform: Identity},
	{Category: "CISA", Name: "known_ransomware_campaign_use", Source: feeds.SourceCISA, Field: "known_ransomware_campaign_use", Transform: Identity},
	{Category: "CISA", Name: "product", Source: feeds.SourceCISA, Field: "product", Transform: Identity},
	{Category: "CISA", Name: "vendor_project", Source: feeds.SourceCISA, Field: "vendor_project", Transform: Identity},
	{Category: "CISA", Name: "cwe", Source: feeds.SourceCISA, Field: "cwes", Transform: Identity},

	// EPSS
	{Category: "EPSS", Name: "epss_value", Source: feeds.SourceEPSS, Field: "epss", Transform: Identity},
	{Category: "EPSS", Name: "percentile", Source: feeds.SourceEPSS, Field: "percentile", Transform: Identity},

	// ExploitDB
	{Category: "ExploitDB", Name: "exploit_id", Source: feeds.SourceExploitDB, Field: "source_url", Transform: Identity},
	{Category: "ExploitDB", Name: "type", Source: feeds.SourceExploitDB, Field: "type", Transform: Identity},
	{Category: "ExploitDB", Name: "platform", Source: feeds.SourceExploitDB, Field: "platform", Transform: Identity},

	// NVD
	{Category: "NVD", Name: "weaknesses", Source: feeds.SourceNVD, Field: "weaknesses", Transform: WeaknessExtract},
	{Category: "NVD", Name: "references", Source: feeds.SourceNVD, Field: "references", Transform: ListPluck("url")},

	// Metasploit
	{Category: "Metasploit", Name: "module_name", Source: feeds.SourceMetasploit, Field: "name", Transform: Identity},
	{Category: "Metasploit", Name: "type", Source: feeds.SourceMetasploit, Field: "type", Transform: Identity},
	{Category: "Metasploit", Name: "platform", Source: feeds.SourceMetasploit, Field: "platform", Transform: Identity},
}
