// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonial-oss/vulnfacts/internal/document"
	"github.com/bonial-oss/vulnfacts/internal/enrich"
	"github.com/bonial-oss/vulnfacts/internal/feeds"
	"github.com/bonial-oss/vulnfacts/internal/store"
)

func testLog() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	srv, err := New(st, enrich.DefaultPolicy(), testLog())
	require.NoError(t, err)
	return srv, st
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestFactLookup(t *testing.T) {
	srv, st := newTestServer(t)
	require.NoError(t, st.BulkInsert(feeds.CollectionFacts, []store.KeyedDoc{
		{Key: "CVE-2021-44228", Doc: document.Document{
			"cve_id":    "CVE-2021-44228",
			"vrr_score": 59.9,
			"threats":   map[string]any{"CISA_product": "Log4j"},
		}},
	}))

	// Lookup normalizes the identifier before querying.
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/facts/cve-2021-44228", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var fact map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fact))
	assert.Equal(t, "CVE-2021-44228", fact["cve_id"])
	assert.Equal(t, 59.9, fact["vrr_score"])
}

func TestFactLookup_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/facts/CVE-2099-9999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpload(t *testing.T) {
	srv, st := newTestServer(t)
	require.NoError(t, st.BulkInsert(feeds.CollectionFacts, []store.KeyedDoc{
		{Key: "CVE-2021-44228", Doc: document.Document{
			"vrr_score": 59.9,
			"threats":   map[string]any{"CISA_product": "Log4j"},
		}},
	}))

	csv := "Plugin ID,CVE,CVSS,Risk,Host,Name\n" +
		"19506,CVE-2021-44228,10.0,Critical,10.0.0.5,Apache Log4j RCE\n" +
		"10180,,0.0,None,10.0.0.5,Ping the remote host\n"

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "export.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload/csv", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp["status"])
	assert.Equal(t, "Nessus", resp["dialect"])
	// The zero-score ping row is dropped under the default policy.
	assert.Equal(t, 1.0, resp["processed"])
	assert.Equal(t, 1.0, resp["dropped"])

	// The enriched finding also lands in the report collection.
	count, err := st.Count(feeds.CollectionFindings)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpload_MissingFile(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/upload/csv", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=none")

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_UnusableCSV(t *testing.T) {
	srv, _ := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "export.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("colA,colB\n1,2\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload/csv", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "cannot locate host or plugin id column")
}
