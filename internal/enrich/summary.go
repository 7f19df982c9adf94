// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package enrich

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	aqtable "github.com/aquasecurity/table"
	"github.com/aquasecurity/tml"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/bonial-oss/vulnfacts/internal/findings"
)

// IsOutputToTerminal returns true if the writer is stdout connected to
// a character device (TTY).
func IsOutputToTerminal(output io.Writer) bool {
	return output == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))
}

// scoreColors buckets the risk score for terminal styling.
var scoreColors = []struct {
	min float64
	fn  func(a ...any) string
}{
	{40, color.New(color.FgRed).SprintFunc()},
	{20, color.New(color.FgHiRed).SprintFunc()},
	{10, color.New(color.FgYellow).SprintFunc()},
	{0, color.New(color.FgBlue).SprintFunc()},
}

func colorizeScore(score float64) string {
	text := strconv.FormatFloat(score, 'f', 2, 64)
	for _, bucket := range scoreColors {
		if score >= bucket.min {
			return bucket.fn(text)
		}
	}
	return text
}

// WriteSummary renders the top-N findings by risk score as a terminal
// table with a short totals line.
func WriteSummary(w io.Writer, items []findings.Finding, topN int, isTerminal bool) {
	title := "Enriched Vulnerability Report Summary"
	if isTerminal {
		_ = tml.Fprintf(w, "<underline><bold>%s</bold></underline>\n", title)
	} else {
		fmt.Fprintln(w, title)
		fmt.Fprintln(w, strings.Repeat("=", utf8.RuneCountInString(title)))
	}

	if len(items) == 0 {
		fmt.Fprintln(w, "No findings with actionable intelligence.")
		return
	}

	sorted := make([]findings.Finding, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if topN > 0 && len(sorted) > topN {
		sorted = sorted[:topN]
	}

	tw := aqtable.New(w)
	if isTerminal {
		tw.SetHeaderStyle(aqtable.StyleBold)
		tw.SetLineStyle(aqtable.StyleDim)
	}
	tw.SetBorders(true)
	tw.SetRowLines(false)
	tw.SetHeaders("Host", "Plugin", "Vulnerability", "Severity", "Risk", "CVEs")

	for _, f := range sorted {
		score := strconv.FormatFloat(f.Score, 'f', 2, 64)
		if isTerminal {
			score = colorizeScore(f.Score)
		}
		tw.AddRow(f.Host, f.PluginID, truncate(f.Name, 48), f.ReportedSeverity, score, strings.Join(f.CVEs, ", "))
	}
	tw.Render()

	if len(items) > len(sorted) {
		fmt.Fprintf(w, "... and %d more rows.\n", len(items)-len(sorted))
	}
	fmt.Fprintf(w, "Total findings: %d\n", len(items))
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
