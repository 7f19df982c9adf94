// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package enrich

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/bonial-oss/vulnfacts/internal/findings"
)

// reportColumns is the canonical, fixed column order of the enriched
// report.
var reportColumns = []string{
	"host_findings_id",
	"vrr_score",
	"scanner_name",
	"scanner_plugin_id",
	"vulnerability_name",
	"scanner_reported_severity",
	"scanner_severity",
	"description",
	"status",
	"port",
	"protocol",
	"plugin_output",
	"possible_solutions",
	"possible_patches",
	"ip_address",
	"vulnerabilities",
	"weaknesses",
	"threats",
	"scan_date",
}

// row renders one finding in report column order. List and map cells
// are JSON-encoded so they round-trip.
func row(f findings.Finding) []string {
	return []string{
		f.ID,
		strconv.FormatFloat(f.Score, 'f', 2, 64),
		f.Scanner,
		f.PluginID,
		f.Name,
		f.ReportedSeverity,
		strconv.FormatFloat(f.Severity, 'f', -1, 64),
		f.Description,
		f.Status,
		f.Port,
		f.Protocol,
		f.Output,
		f.Solution,
		f.Patches,
		f.Host,
		jsonCell(f.CVEs),
		jsonCell(f.Weaknesses),
		jsonCell(f.Threats),
		f.ScanDate,
	}
}

func jsonCell(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// WriteCSV writes the enriched report as a row-oriented CSV.
func WriteCSV(w io.Writer, items []findings.Finding) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, f := range items {
		if err := cw.Write(row(f)); err != nil {
			return fmt.Errorf("writing CSV row %s: %w", f.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV output: %w", err)
	}
	return nil
}

// WriteJSON writes the enriched report as a structured document list.
func WriteJSON(w io.Writer, items []findings.Finding) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}

// WriteXLSX writes the enriched report as a spreadsheet. The export is
// best effort; callers treat a failure as non-fatal.
func WriteXLSX(path string, items []findings.Finding) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Risk Report"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	header := make([]any, len(reportColumns))
	for i, col := range reportColumns {
		header[i] = strings.ToUpper(col)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("writing sheet header: %w", err)
	}

	for i, item := range items {
		cells := row(item)
		values := make([]any, len(cells))
		for j, c := range cells {
			values[j] = c
		}
		axis, err := excelize.JoinCellName("A", i+2)
		if err != nil {
			return fmt.Errorf("addressing row %d: %w", i+2, err)
		}
		if err := f.SetSheetRow(sheet, axis, &values); err != nil {
			return fmt.Errorf("writing sheet row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving spreadsheet %s: %w", path, err)
	}
	return nil
}
