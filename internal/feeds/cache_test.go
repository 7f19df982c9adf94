// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package feeds

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonial-oss/vulnfacts/internal/document"
	"github.com/bonial-oss/vulnfacts/internal/store"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestWarm_SimpleAndExplodedJoins(t *testing.T) {
	st := openTestStore(t)

	require.NoError(t, st.BulkInsert(CollectionCISA, []store.KeyedDoc{
		{Key: "CVE-2021-44228", Doc: document.Document{"cve_id": "CVE-2021-44228", "product": "Log4j"}},
		// Missing join field: skipped, not a load failure.
		{Key: "", Doc: document.Document{"product": "orphan"}},
	}))
	// One exploit record declaring two CVEs produces two cache entries
	// pointing at the same document.
	require.NoError(t, st.BulkInsert(CollectionExploitDB, []store.KeyedDoc{
		{Key: "50592", Doc: document.Document{
			"source_url": "https://www.exploit-db.com/exploits/50592",
			"codes":      []any{"CVE-2021-44228", "CVE-2021-45046"},
		}},
	}))
	// Metasploit references mix CVE ids with URLs; only CVEs are keys.
	require.NoError(t, st.BulkInsert(CollectionMetasploit, []store.KeyedDoc{
		{Key: "exploit/multi/http/log4shell", Doc: document.Document{
			"name":       "Log4Shell HTTP Header Injection",
			"references": []any{"CVE-2021-44228", "URL-https://example.com"},
		}},
	}))

	cache, err := Warm(st, testLog())
	require.NoError(t, err)

	assert.Equal(t, 1, cache.Size(SourceCISA))
	assert.Equal(t, 2, cache.Size(SourceExploitDB))
	assert.Equal(t, 1, cache.Size(SourceMetasploit))

	assert.Equal(t, "Log4j", cache.Lookup(SourceCISA, "CVE-2021-44228").String("product"))
	assert.Equal(t,
		cache.Lookup(SourceExploitDB, "CVE-2021-44228").String("source_url"),
		cache.Lookup(SourceExploitDB, "CVE-2021-45046").String("source_url"))
}

func TestCache_LookupMissIsEmptySentinel(t *testing.T) {
	cache, err := Warm(openTestStore(t), testLog())
	require.NoError(t, err)

	doc := cache.Lookup(SourceEPSS, "CVE-1999-0001")
	assert.False(t, doc.Exists())
	assert.Equal(t, 0.0, doc.Float("epss"))
}

func TestCache_MergedCoversEveryFeed(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.BulkInsert(CollectionEPSS, []store.KeyedDoc{
		{Key: "CVE-2024-0001", Doc: document.Document{"cve": "CVE-2024-0001", "epss": 0.7}},
	}))

	cache, err := Warm(st, testLog())
	require.NoError(t, err)

	merged := cache.Merged("CVE-2024-0001")
	assert.Len(t, merged, len(Registry))
	assert.True(t, merged[SourceEPSS].Exists())
	assert.False(t, merged[SourceCISA].Exists())
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "CVE-2021-44228", NormalizeID(" cve-2021-44228 "))
	assert.Equal(t, "", NormalizeID("   "))
}
