// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package findings normalizes arbitrary vulnerability-scanner CSV
// exports into a canonical finding schema and extracts the CVE
// identifiers each row references.
package findings

import (
	"crypto/md5"
	"encoding/hex"

	"github.com/bonial-oss/vulnfacts/internal/document"
)

// Finding is one normalized scanner export row. Score, CVEs,
// Weaknesses, and Threats are filled in by enrichment.
type Finding struct {
	ID               string         `json:"host_findings_id"`
	Score            float64        `json:"vrr_score"`
	Scanner          string         `json:"scanner_name"`
	PluginID         string         `json:"scanner_plugin_id"`
	Name             string         `json:"vulnerability_name"`
	ReportedSeverity string         `json:"scanner_reported_severity"`
	Severity         float64        `json:"scanner_severity"`
	Description      string         `json:"description"`
	Status           string         `json:"status"`
	Port             string         `json:"port"`
	Protocol         string         `json:"protocol"`
	Output           string         `json:"plugin_output"`
	Solution         string         `json:"possible_solutions"`
	Patches          string         `json:"possible_patches"`
	Host             string         `json:"ip_address"`
	CVEs             []string       `json:"vulnerabilities"`
	Weaknesses       []string       `json:"weaknesses"`
	Threats          map[string]any `json:"threats"`
	ScanDate         string         `json:"scan_date"`
}

// FindingID derives the deterministic finding id from host address and
// plugin id. It is the natural upsert key: re-ingesting the same export
// updates in place instead of duplicating.
func FindingID(host, pluginID string) string {
	sum := md5.Sum([]byte(host + "-" + pluginID))
	return hex.EncodeToString(sum[:])
}

// Document renders the finding as a store document.
func (f Finding) Document() document.Document {
	cves := make([]any, 0, len(f.CVEs))
	for _, c := range f.CVEs {
		cves = append(cves, c)
	}
	weaknesses := make([]any, 0, len(f.Weaknesses))
	for _, w := range f.Weaknesses {
		weaknesses = append(weaknesses, w)
	}
	return document.Document{
		"host_findings_id":          f.ID,
		"vrr_score":                 f.Score,
		"scanner_name":              f.Scanner,
		"scanner_plugin_id":         f.PluginID,
		"vulnerability_name":        f.Name,
		"scanner_reported_severity": f.ReportedSeverity,
		"scanner_severity":          f.Severity,
		"description":               f.Description,
		"status":                    f.Status,
		"port":                      f.Port,
		"protocol":                  f.Protocol,
		"plugin_output":             f.Output,
		"possible_solutions":        f.Solution,
		"possible_patches":          f.Patches,
		"ip_address":                f.Host,
		"vulnerabilities":           cves,
		"weaknesses":                weaknesses,
		"threats":                   f.Threats,
		"scan_date":                 f.ScanDate,
	}
}
