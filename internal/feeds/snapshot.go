// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package feeds

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bonial-oss/vulnfacts/internal/document"
	"github.com/bonial-oss/vulnfacts/internal/store"
)

// ParseSnapshot parses a local snapshot file of the named feed into
// keyed documents ready for bulk insert. Feed names match the source
// keys ("CISA", "EPSS", "ExploitDB", "Metasploit", "NVD"),
// case-insensitively.
func ParseSnapshot(feed string, r io.Reader) ([]store.KeyedDoc, error) {
	switch strings.ToUpper(strings.TrimSpace(feed)) {
	case "CISA", "KEV":
		return parseKEVCatalog(r)
	case "EPSS":
		return parseEPSSScores(r)
	case "EXPLOITDB":
		return parseExploitDB(r)
	case "METASPLOIT":
		return parseMetasploitModules(r)
	case "NVD":
		return parseNVD(r)
	default:
		return nil, fmt.Errorf("unknown feed %q (known: CISA, EPSS, ExploitDB, Metasploit, NVD)", feed)
	}
}

// CollectionFor returns the store collection the feed snapshot loads
// into.
func CollectionFor(feed string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(feed)) {
	case "CISA", "KEV":
		return CollectionCISA, nil
	case "EPSS":
		return CollectionEPSS, nil
	case "EXPLOITDB":
		return CollectionExploitDB, nil
	case "METASPLOIT":
		return CollectionMetasploit, nil
	case "NVD":
		return CollectionNVD, nil
	default:
		return "", fmt.Errorf("unknown feed %q", feed)
	}
}

// kevCatalog mirrors the CISA KEV catalog JSON shape.
type kevCatalog struct {
	CatalogVersion  string `json:"catalogVersion"`
	Vulnerabilities []struct {
		CVEID                      string   `json:"cveID"`
		VendorProject              string   `json:"vendorProject"`
		Product                    string   `json:"product"`
		VulnerabilityName          string   `json:"vulnerabilityName"`
		DateAdded                  string   `json:"dateAdded"`
		ShortDescription           string   `json:"shortDescription"`
		RequiredAction             string   `json:"requiredAction"`
		DueDate                    string   `json:"dueDate"`
		KnownRansomwareCampaignUse string   `json:"knownRansomwareCampaignUse"`
		CWEs                       []string `json:"cwes"`
	} `json:"vulnerabilities"`
}

func parseKEVCatalog(r io.Reader) ([]store.KeyedDoc, error) {
	var catalog kevCatalog
	if err := json.NewDecoder(r).Decode(&catalog); err != nil {
		return nil, fmt.Errorf("unmarshaling KEV catalog: %w", err)
	}

	docs := make([]store.KeyedDoc, 0, len(catalog.Vulnerabilities))
	for _, v := range catalog.Vulnerabilities {
		id := NormalizeID(v.CVEID)
		if id == "" {
			continue
		}
		cwes := make([]any, 0, len(v.CWEs))
		for _, c := range v.CWEs {
			cwes = append(cwes, c)
		}
		docs = append(docs, store.KeyedDoc{
			Key: id,
			Doc: document.Document{
				"cve_id":                        id,
				"vendor_project":                v.VendorProject,
				"product":                       v.Product,
				"vulnerability_name":            v.VulnerabilityName,
				"date_added":                    v.DateAdded,
				"short_description":             v.ShortDescription,
				"required_action":               v.RequiredAction,
				"due_date":                      v.DueDate,
				"known_ransomware_campaign_use": v.KnownRansomwareCampaignUse,
				"cwes":                          cwes,
			},
		})
	}
	return docs, nil
}

// parseEPSSScores parses the daily EPSS CSV. The file starts with
// '#'-prefixed comment lines carrying metadata like:
// #model_version:v2025.03.14,score_date:2026-02-12T00:00:00+0000
func parseEPSSScores(r io.Reader) ([]store.KeyedDoc, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading EPSS snapshot: %w", err)
	}

	lines := strings.Split(string(data), "\n")

	var modelVersion, scoreDate string
	dataStart := 0
	for i, line := range lines {
		if !strings.HasPrefix(line, "#") {
			dataStart = i
			break
		}
		for _, part := range strings.Split(strings.TrimPrefix(line, "#"), ",") {
			kv := strings.SplitN(part, ":", 2)
			if len(kv) != 2 {
				continue
			}
			switch strings.TrimSpace(kv[0]) {
			case "model_version":
				modelVersion = strings.TrimSpace(kv[1])
			case "score_date":
				scoreDate = strings.TrimSpace(kv[1])
			}
		}
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[dataStart:], "\n")))

	// Discard the CSV header line (cve,epss,percentile).
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("reading EPSS CSV header: %w", err)
	}

	var docs []store.KeyedDoc
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading EPSS CSV record: %w", err)
		}
		if len(record) < 3 {
			continue
		}
		id := NormalizeID(record[0])
		if id == "" {
			continue
		}
		doc := document.Document{
			"cve":        id,
			"epss":       document.ToFloat(record[1]),
			"percentile": document.ToFloat(record[2]),
		}
		if modelVersion != "" {
			doc["model_version"] = modelVersion
		}
		if scoreDate != "" {
			doc["score_date"] = scoreDate
		}
		docs = append(docs, store.KeyedDoc{Key: id, Doc: doc})
	}
	return docs, nil
}

// parseExploitDB parses the files_exploits.csv index. The codes column
// holds semicolon-separated identifiers; one exploit may declare many
// CVEs, and the cache explodes them into separate entries later.
func parseExploitDB(r io.Reader) ([]store.KeyedDoc, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading ExploitDB CSV header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var docs []store.KeyedDoc
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ExploitDB CSV record: %w", err)
		}

		var codes []any
		for _, code := range strings.Split(field(record, "codes"), ";") {
			id := NormalizeID(code)
			if strings.HasPrefix(id, "CVE-") {
				codes = append(codes, id)
			}
		}
		if len(codes) == 0 {
			continue
		}
		docs = append(docs, store.KeyedDoc{
			Key: field(record, "id"),
			Doc: document.Document{
				"id":          field(record, "id"),
				"description": field(record, "description"),
				"type":        field(record, "type"),
				"platform":    field(record, "platform"),
				"source_url":  field(record, "source_url"),
				"codes":       codes,
			},
		})
	}
	return docs, nil
}

// parseMetasploitModules parses the module metadata JSON, a map of
// module path to module descriptor.
func parseMetasploitModules(r io.Reader) ([]store.KeyedDoc, error) {
	var modules map[string]struct {
		Name       string   `json:"name"`
		FullName   string   `json:"fullname"`
		Type       string   `json:"type"`
		Platform   string   `json:"platform"`
		References []string `json:"references"`
	}
	if err := json.NewDecoder(r).Decode(&modules); err != nil {
		return nil, fmt.Errorf("unmarshaling Metasploit modules: %w", err)
	}

	docs := make([]store.KeyedDoc, 0, len(modules))
	for path, m := range modules {
		refs := make([]any, 0, len(m.References))
		for _, ref := range m.References {
			refs = append(refs, NormalizeID(ref))
		}
		docs = append(docs, store.KeyedDoc{
			Key: path,
			Doc: document.Document{
				"name":       m.Name,
				"fullname":   m.FullName,
				"type":       m.Type,
				"platform":   m.Platform,
				"references": refs,
			},
		})
	}
	return docs, nil
}

// parseNVD parses a primary-database snapshot: either a flat JSON array
// of documents or an NVD API response with a vulnerabilities list. API
// records are flattened into the historical storage shape the rule
// tables expect (cve_id, metrics_cvssMetricV31, weaknesses,
// references).
func parseNVD(r io.Reader) ([]store.KeyedDoc, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading NVD snapshot: %w", err)
	}

	var flat []document.Document
	if err := json.Unmarshal(data, &flat); err == nil {
		return keyNVDDocs(flat), nil
	}

	var api struct {
		Vulnerabilities []struct {
			CVE document.Document `json:"cve"`
		} `json:"vulnerabilities"`
	}
	if err := json.Unmarshal(data, &api); err != nil {
		return nil, fmt.Errorf("unmarshaling NVD snapshot: %w", err)
	}

	docs := make([]document.Document, 0, len(api.Vulnerabilities))
	for _, v := range api.Vulnerabilities {
		docs = append(docs, flattenNVDRecord(v.CVE))
	}
	return keyNVDDocs(docs), nil
}

func keyNVDDocs(docs []document.Document) []store.KeyedDoc {
	out := make([]store.KeyedDoc, 0, len(docs))
	for _, doc := range docs {
		id := NormalizeID(doc.String("cve_id"))
		if id == "" {
			continue
		}
		doc["cve_id"] = id
		out = append(out, store.KeyedDoc{Key: id, Doc: doc})
	}
	return out
}

// flattenNVDRecord maps an NVD API 2.0 record onto the flattened
// storage shape.
func flattenNVDRecord(cve document.Document) document.Document {
	doc := document.Document{
		"cve_id": cve.String("id"),
	}
	if refs := cve.List("references"); refs != nil {
		doc["references"] = refs
	}
	if weaknesses := cve.List("weaknesses"); weaknesses != nil {
		doc["weaknesses"] = weaknesses
	}
	metrics := cve.Sub("metrics")
	for _, name := range []string{"cvssMetricV31", "cvssMetricV40", "cvssMetricV2"} {
		if list := metrics.List(name); list != nil {
			doc["metrics_"+name] = list
		}
	}
	return doc
}
