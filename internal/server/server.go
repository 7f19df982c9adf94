// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

// Package server exposes the enrichment pipeline over HTTP: scanner
// export upload and fact lookup.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/bonial-oss/vulnfacts/internal/enrich"
	"github.com/bonial-oss/vulnfacts/internal/feeds"
	"github.com/bonial-oss/vulnfacts/internal/findings"
	"github.com/bonial-oss/vulnfacts/internal/store"
)

// maxUploadSize bounds scanner export uploads.
const maxUploadSize = 256 * 1024 * 1024

// Server handles enrichment requests against an open store.
type Server struct {
	store  *store.Store
	policy enrich.Policy
	log    *logrus.Entry
}

// New creates a Server. The store must be reachable; startup aborts on
// a connectivity fault before any request is served.
func New(st *store.Store, policy enrich.Policy, log *logrus.Entry) (*Server, error) {
	if err := st.Ping(); err != nil {
		return nil, err
	}
	return &Server{store: st, policy: policy, log: log}, nil
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Get("/facts/{cve}", s.handleFactLookup)
	r.Post("/upload/csv", s.handleUpload)
	return r
}

// ListenAndServe runs the HTTP server until it fails.
func (s *Server) ListenAndServe(addr string) error {
	s.log.WithField("addr", addr).Info("HTTP API listening")
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if err := s.store.Ping(); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFactLookup(w http.ResponseWriter, r *http.Request) {
	cve := feeds.NormalizeID(chi.URLParam(r, "cve"))
	doc, found, err := s.store.FindByKey(feeds.CollectionFacts, cve)
	if err != nil {
		s.log.WithError(err).Error("fact lookup failed")
		s.writeError(w, http.StatusInternalServerError, "fact lookup failed")
		return
	}
	if !found {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("no fact for %s", cve))
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

// handleUpload ingests a scanner CSV export and returns the enriched
// findings. The upload is also upserted into the report collection.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing multipart field \"file\"")
		return
	}
	defer file.Close()

	table, err := findings.ReadCSV(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	normalized, dialect, err := findings.Normalize(table)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.WithFields(logrus.Fields{
		"file":    header.Filename,
		"dialect": dialect.Name,
		"rows":    len(normalized),
	}).Info("processing upload")

	enricher := enrich.New(s.store, s.policy, s.log)
	result, err := enricher.Enrich(normalized)
	if err != nil {
		s.log.WithError(err).Error("enrichment failed")
		s.writeError(w, http.StatusInternalServerError, "enrichment failed")
		return
	}
	if err := enricher.UpsertFindings(result.Findings); err != nil {
		s.log.WithError(err).Error("storing findings failed")
		s.writeError(w, http.StatusInternalServerError, "storing findings failed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"dialect":     dialect.Name,
		"processed":   len(result.Findings),
		"dropped":     result.Dropped,
		"unique_cves": result.UniqueCVEs,
		"matched":     result.MatchedCVEs,
		"data":        result.Findings,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		s.log.WithError(err).Error("writing response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
