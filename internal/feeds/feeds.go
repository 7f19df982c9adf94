// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package feeds defines the source feeds contributing vulnerability
// intelligence and the warm in-memory cache that joins them by CVE.
package feeds

import (
	"strings"
)

// Source keys used throughout rule tables and fact computation.
const (
	SourceCISA       = "CISA"
	SourceNVD        = "NVD"
	SourceEPSS       = "EPSS"
	SourceExploitDB  = "ExploitDB"
	SourceMetasploit = "Metasploit"
)

// Store collection names, one per feed.
const (
	CollectionCISA       = "gold_cisa"
	CollectionNVD        = "gold_nvd"
	CollectionEPSS       = "gold_epss"
	CollectionExploitDB  = "gold_exploit"
	CollectionMetasploit = "gold_metasploit"
	CollectionFacts      = "fct_final"
	CollectionFindings   = "vrr_risk_report"
)

// Feed describes how one feed's documents are keyed. When Explode is
// set the join field is list-valued and the same document is indexed
// under every element; KeyFilter, if non-nil, drops elements that are
// not identifiers (Metasploit references mix CVE ids with URLs).
type Feed struct {
	Name       string
	Collection string
	JoinField  string
	Explode    bool
	KeyFilter  func(key string) bool
}

// Registry lists every auxiliary feed the source cache warms. The
// primary NVD collection is streamed by the fact pipeline itself and
// injected per record, so it is not part of the cache.
var Registry = []Feed{
	{Name: SourceCISA, Collection: CollectionCISA, JoinField: "cve_id"},
	{Name: SourceEPSS, Collection: CollectionEPSS, JoinField: "cve"},
	{Name: SourceExploitDB, Collection: CollectionExploitDB, JoinField: "codes", Explode: true},
	{
		Name:       SourceMetasploit,
		Collection: CollectionMetasploit,
		JoinField:  "references",
		Explode:    true,
		KeyFilter: func(key string) bool {
			return strings.HasPrefix(key, "CVE-")
		},
	},
}

// NormalizeID canonicalizes a vulnerability identifier: trimmed and
// upper-cased, so "cve-2021-44228 " joins as "CVE-2021-44228".
func NormalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}
