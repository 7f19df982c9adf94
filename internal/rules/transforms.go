// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"strings"

	"github.com/bonial-oss/vulnfacts/internal/document"
)

// Transform extracts a value from one feed document. Implementations
// are tolerant of missing or malformed fields and return a zero value
// rather than failing; the evaluator additionally isolates each rule
// invocation, so even a panicking transform contributes nothing.
type Transform func(doc document.Document, field string) any

// Identity reads the field as-is.
func Identity(doc document.Document, field string) any {
	return doc.Get(field)
}

// BoolExists signals whether the source holds any record at all for the
// identifier. The field is unused; existence is the fact.
func BoolExists(doc document.Document, _ string) any {
	return doc.Exists()
}

// LowercaseIn builds a transform testing the field's value against a
// fixed set, case-insensitively.
func LowercaseIn(valid ...string) Transform {
	set := make(map[string]bool, len(valid))
	for _, v := range valid {
		set[strings.ToLower(v)] = true
	}
	return func(doc document.Document, field string) any {
		return set[strings.ToLower(doc.String(field))]
	}
}

// cvssPaths lists the historical shapes of the severity metrics field,
// tried in order: the modern flattened paths first, then the legacy
// nested one.
var cvssPaths = []string{"metrics_cvssMetricV31", "metrics_cvssMetricV40", "metrics_cvssMetricV2"}

// DeepCVSS extracts the CVSS base score from whichever metrics shape
// the record carries, defaulting to 0 when none is present or the
// metrics list is empty or malformed.
func DeepCVSS(doc document.Document, field string) any {
	paths := cvssPaths
	if field != "" {
		paths = append([]string{field}, cvssPaths...)
	}

	data := doc.FirstList(paths...)
	if data == nil {
		data = doc.Sub("metrics").FirstList("cvssMetricV31", "cvssMetricV40", "cvssMetricV2")
	}
	if len(data) == 0 {
		return 0.0
	}
	entry, ok := data[0].(map[string]any)
	if !ok {
		return 0.0
	}
	return document.Document(entry).Sub("cvssData").Float("baseScore")
}

// ListPluck builds a transform reading a list-of-objects field and
// plucking subkey from every element. Elements that are bare strings
// are passed through when the subkey is "url" (older reference lists
// stored plain URLs); malformed elements are skipped.
func ListPluck(subkey string) Transform {
	return func(doc document.Document, field string) any {
		var out []any
		for _, item := range doc.List(field) {
			switch v := item.(type) {
			case map[string]any:
				if val := document.Document(v).Get(subkey); val != nil && val != "" {
					out = append(out, val)
				}
			case string:
				if subkey == "url" && v != "" {
					out = append(out, v)
				}
			}
		}
		return out
	}
}

// WeaknessExtract reads the weakness classification list. Both
// historical shapes are supported: structured objects carrying
// language-tagged descriptions (only the English value is kept) and
// plain strings (passed through directly).
func WeaknessExtract(doc document.Document, field string) any {
	var out []any
	for _, item := range doc.List(field) {
		switch w := item.(type) {
		case map[string]any:
			for _, d := range document.Document(w).List("description") {
				desc, ok := d.(map[string]any)
				if !ok {
					continue
				}
				dd := document.Document(desc)
				if dd.String("lang") == "en" && dd.String("value") != "" {
					out = append(out, dd.String("value"))
				}
			}
		case string:
			out = append(out, w)
		}
	}
	return out
}
