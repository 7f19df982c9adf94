// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package findings

import "strings"

// Canonical field names used as keys in every dialect's column map.
const (
	FieldPluginID    = "plugin_id"
	FieldName        = "name"
	FieldSeverity    = "severity"
	FieldCVSS        = "cvss"
	FieldDescription = "description"
	FieldSynopsis    = "synopsis"
	FieldStatus      = "status"
	FieldPort        = "port"
	FieldProtocol    = "protocol"
	FieldOutput      = "output"
	FieldSolution    = "solution"
	FieldPatches     = "patches"
	FieldHost        = "host"
	FieldCVE         = "cve"
	FieldScanDate    = "scan_date"
)

// Dialect maps one scanner's export columns onto the canonical finding
// schema. CVEColumns is the ordered list of columns scanned for
// identifiers.
type Dialect struct {
	Name       string
	Columns    map[string]string
	CVEColumns []string
}

// legacyColumns are the historical hardcoded names, tried whenever a
// dialect does not map a canonical field or the mapped column is absent
// from the input.
var legacyColumns = map[string]string{
	FieldPluginID:    "Plugin ID",
	FieldName:        "Name",
	FieldSeverity:    "Risk",
	FieldCVSS:        "CVSS",
	FieldDescription: "Description",
	FieldSynopsis:    "Synopsis",
	FieldStatus:      "Status",
	FieldPort:        "Port",
	FieldProtocol:    "Protocol",
	FieldOutput:      "Plugin Output",
	FieldSolution:    "Solution",
	FieldPatches:     "See Also",
	FieldHost:        "Host",
	FieldCVE:         "CVE",
	FieldScanDate:    "Scan Date",
}

// GenericDialect passes canonical/legacy column names straight through.
// It is the fallback when no registered dialect matches.
var GenericDialect = Dialect{
	Name:       "Generic",
	Columns:    legacyColumns,
	CVEColumns: []string{"CVE", "CVEs", "CVE ID", "Vulnerability ID", "Name", "Description"},
}

// Dialects is the fixed registry of known scanner export formats.
var Dialects = []Dialect{
	{
		Name: "Nessus",
		Columns: map[string]string{
			FieldPluginID:    "Plugin ID",
			FieldName:        "Name",
			FieldSeverity:    "Risk",
			FieldCVSS:        "CVSS",
			FieldDescription: "Description",
			FieldSynopsis:    "Synopsis",
			FieldStatus:      "Status",
			FieldPort:        "Port",
			FieldProtocol:    "Protocol",
			FieldOutput:      "Plugin Output",
			FieldSolution:    "Solution",
			FieldPatches:     "See Also",
			FieldHost:        "Host",
			FieldCVE:         "CVE",
		},
		CVEColumns: []string{"CVE"},
	},
	{
		Name: "Qualys",
		Columns: map[string]string{
			FieldPluginID:    "QID",
			FieldName:        "Title",
			FieldSeverity:    "Severity",
			FieldCVSS:        "CVSS Base",
			FieldDescription: "Threat",
			FieldStatus:      "Vuln Status",
			FieldPort:        "Port",
			FieldProtocol:    "Protocol",
			FieldOutput:      "Results",
			FieldSolution:    "Solution",
			FieldHost:        "IP",
			FieldCVE:         "CVE ID",
			FieldScanDate:    "Last Detected",
		},
		CVEColumns: []string{"CVE ID"},
	},
	{
		Name: "OpenVAS",
		Columns: map[string]string{
			FieldPluginID:    "NVT OID",
			FieldName:        "NVT Name",
			FieldSeverity:    "Severity",
			FieldCVSS:        "CVSS",
			FieldDescription: "Summary",
			FieldPort:        "Port",
			FieldProtocol:    "Port Protocol",
			FieldOutput:      "Specific Result",
			FieldSolution:    "Solution",
			FieldHost:        "IP",
			FieldCVE:         "CVEs",
			FieldScanDate:    "Timestamp",
		},
		CVEColumns: []string{"CVEs"},
	},
}

// DetectDialect scores every registered dialect by how many of its
// mapped source columns appear in the header (case-insensitively) and
// returns the best match, or the generic pass-through dialect when
// nothing scores above zero.
func DetectDialect(header []string) Dialect {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[strings.ToLower(strings.TrimSpace(col))] = true
	}

	best := GenericDialect
	bestScore := 0
	for _, d := range Dialects {
		score := 0
		for _, col := range d.Columns {
			if present[strings.ToLower(col)] {
				score++
			}
		}
		if score > bestScore {
			best = d
			bestScore = score
		}
	}
	return best
}
