// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package document

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Document is one loosely-typed record from a feed or the fact store.
// Feed shapes have changed over time, so fields are accessed through
// tolerant getters instead of a fixed struct. The zero-length Document
// doubles as the lookup-miss sentinel: every getter returns a zero value
// on a missing or mistyped field, never an error.
type Document map[string]any

// Exists reports whether the document holds any data at all. Rules use
// this as the "record present in feed" signal.
func (d Document) Exists() bool {
	return len(d) > 0
}

// Get returns the raw value for key, or nil.
func (d Document) Get(key string) any {
	if d == nil {
		return nil
	}
	return d[key]
}

// String returns the value for key as a string. Non-string scalars are
// formatted; missing values yield "".
func (d Document) String(key string) string {
	switch v := d.Get(key).(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// Float returns the value for key as a float64, accepting the numeric
// encodings seen across feed snapshots (JSON numbers, ints, and numeric
// strings such as EPSS CSV cells). Missing or unparseable values yield 0.
func (d Document) Float(key string) float64 {
	return ToFloat(d.Get(key))
}

// ToFloat converts any scalar to float64, returning 0 when it cannot.
func ToFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// List returns the value for key as a slice, or nil when the field is
// absent or not list-valued.
func (d Document) List(key string) []any {
	v, ok := d.Get(key).([]any)
	if !ok {
		return nil
	}
	return v
}

// StringList returns the list-valued field's string elements. Non-string
// elements are skipped.
func (d Document) StringList(key string) []string {
	var out []string
	for _, v := range d.List(key) {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Sub returns a nested document under key, or the empty sentinel.
func (d Document) Sub(key string) Document {
	switch v := d.Get(key).(type) {
	case Document:
		return v
	case map[string]any:
		return Document(v)
	default:
		return Document{}
	}
}

// FirstList tries each key in order and returns the first list-valued
// field found. Used for fields whose name has drifted across historical
// feed snapshots.
func (d Document) FirstList(keys ...string) []any {
	for _, key := range keys {
		if v := d.List(key); v != nil {
			return v
		}
	}
	return nil
}
