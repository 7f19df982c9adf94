// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package findings

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/bonial-oss/vulnfacts/internal/document"
)

// cvePattern matches canonical vulnerability identifiers embedded in
// free text, case-insensitively.
var cvePattern = regexp.MustCompile(`(?i)CVE-\d{4}-\d{4,}`)

// RawTable is a scanner export before normalization.
type RawTable struct {
	Header []string
	Rows   [][]string

	index map[string]int // lowercased column name -> position
}

// ReadCSV parses a raw scanner export. An unreadable table or one with
// no header row is an input-format fault, fatal to the run.
func ReadCSV(r io.Reader) (*RawTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("unreadable CSV input: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("CSV input has no header row")
	}

	header := make([]string, len(records[0]))
	index := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		header[i] = strings.TrimSpace(col)
		index[strings.ToLower(header[i])] = i
	}

	return &RawTable{Header: header, Rows: records[1:], index: index}, nil
}

// cell returns the named column's value for the row, or "".
func (t *RawTable) cell(row []string, column string) string {
	i, ok := t.index[strings.ToLower(column)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// hasColumn reports whether the table carries the named column.
func (t *RawTable) hasColumn(column string) bool {
	_, ok := t.index[strings.ToLower(column)]
	return ok
}

// field resolves a canonical field for the row: the dialect's column
// first, then the legacy hardcoded name. Absent columns yield "", not
// an error.
func (t *RawTable) field(row []string, d Dialect, canonical string) string {
	if col, ok := d.Columns[canonical]; ok && t.hasColumn(col) {
		return t.cell(row, col)
	}
	if legacy, ok := legacyColumns[canonical]; ok {
		return t.cell(row, legacy)
	}
	return ""
}

// Normalize maps a raw scanner export onto the canonical finding
// schema. The dialect is detected from the header; each row yields one
// finding with zero or more extracted identifiers.
func Normalize(table *RawTable) ([]Finding, Dialect, error) {
	if table == nil || len(table.Header) == 0 {
		return nil, Dialect{}, fmt.Errorf("empty scanner export")
	}

	dialect := DetectDialect(table.Header)

	// The identifying column must be resolvable for the id hash.
	if !table.hasColumn(columnOrLegacy(dialect, FieldHost)) &&
		!table.hasColumn(columnOrLegacy(dialect, FieldPluginID)) {
		return nil, dialect, fmt.Errorf(
			"cannot locate host or plugin id column (dialect %s); available columns: %s",
			dialect.Name, strings.Join(table.Header, ", "))
	}

	out := make([]Finding, 0, len(table.Rows))
	for _, row := range table.Rows {
		host := table.field(row, dialect, FieldHost)
		pluginID := table.field(row, dialect, FieldPluginID)

		desc := table.field(row, dialect, FieldDescription)
		if synopsis := table.field(row, dialect, FieldSynopsis); synopsis != "" {
			desc = strings.TrimSpace(desc + " " + synopsis)
		}

		status := table.field(row, dialect, FieldStatus)
		if status == "" {
			status = "Open"
		}

		f := Finding{
			ID:               FindingID(host, pluginID),
			Scanner:          dialect.Name,
			PluginID:         pluginID,
			Name:             table.field(row, dialect, FieldName),
			ReportedSeverity: table.field(row, dialect, FieldSeverity),
			Severity:         document.ToFloat(table.field(row, dialect, FieldCVSS)),
			Description:      desc,
			Status:           status,
			Port:             table.field(row, dialect, FieldPort),
			Protocol:         table.field(row, dialect, FieldProtocol),
			Output:           table.field(row, dialect, FieldOutput),
			Solution:         table.field(row, dialect, FieldSolution),
			Patches:          table.field(row, dialect, FieldPatches),
			Host:             host,
			CVEs:             extractCVEs(table, row, dialect),
			Threats:          map[string]any{},
			ScanDate:         table.field(row, dialect, FieldScanDate),
		}
		out = append(out, f)
	}
	return out, dialect, nil
}

func columnOrLegacy(d Dialect, canonical string) string {
	if col, ok := d.Columns[canonical]; ok {
		return col
	}
	return legacyColumns[canonical]
}

// extractCVEs scans the dialect's candidate columns for identifier
// substrings: case-normalized, de-duplicated, sorted. A row may yield
// zero, one, or many.
func extractCVEs(table *RawTable, row []string, d Dialect) []string {
	candidates := d.CVEColumns
	if len(candidates) == 0 {
		candidates = GenericDialect.CVEColumns
	}

	seen := make(map[string]bool)
	for _, column := range candidates {
		if !table.hasColumn(column) {
			continue
		}
		for _, match := range cvePattern.FindAllString(table.cell(row, column), -1) {
			seen[strings.ToUpper(match)] = true
		}
		// The designated column decides; fall through only when absent.
		break
	}

	if len(seen) == 0 {
		return nil
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
