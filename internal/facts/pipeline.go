// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package facts

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bonial-oss/vulnfacts/internal/document"
	"github.com/bonial-oss/vulnfacts/internal/feeds"
	"github.com/bonial-oss/vulnfacts/internal/store"
)

// progressInterval is the coarse reporting step; progress is
// informational only, never used for control flow.
const progressInterval = 10000

// PipelineConfig tunes batching and concurrency.
type PipelineConfig struct {
	BatchSize   int
	Workers     int
	MaxInFlight int
}

// Pipeline streams the primary vulnerability database, evaluates the
// rule tables per record against the warm source cache, and rebuilds
// the fact store.
type Pipeline struct {
	store *store.Store
	cache *feeds.Cache
	cfg   PipelineConfig
	log   *logrus.Entry
}

// NewPipeline wires a pipeline over an open store and a fully warmed
// cache. Workers only ever read the cache, so the pipeline needs no
// locking beyond the batch channel itself.
func NewPipeline(st *store.Store, cache *feeds.Cache, cfg PipelineConfig, log *logrus.Entry) *Pipeline {
	return &Pipeline{store: st, cache: cache, cfg: cfg, log: log}
}

// Run truncates and rebuilds the fact collection. It returns the number
// of facts written. Batch faults are logged and skipped: their records
// are absent from this run, the pipeline continues.
func (p *Pipeline) Run() (int, error) {
	runID := uuid.NewString()
	log := p.log.WithField("run_id", runID)
	start := time.Now()

	// Connectivity check must precede the destructive reset.
	if err := p.store.Ping(); err != nil {
		return 0, err
	}
	if err := p.store.Truncate(feeds.CollectionFacts); err != nil {
		return 0, fmt.Errorf("resetting fact collection: %w", err)
	}
	if err := p.store.EnsureUniqueIndex(feeds.CollectionFacts); err != nil {
		return 0, fmt.Errorf("indexing fact collection: %w", err)
	}

	total, err := p.store.Count(feeds.CollectionNVD)
	if err != nil {
		return 0, fmt.Errorf("counting primary records: %w", err)
	}
	log.WithField("total", total).Info("streaming primary records")

	// The channel capacity caps in-flight batches: submission blocks
	// once the workers fall behind.
	batches := make(chan []document.Document, p.cfg.MaxInFlight)

	var processed, failed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batches {
				n, err := p.processBatch(batch)
				if err != nil {
					failed.Add(int64(len(batch)))
					log.WithError(err).WithField("batch_size", len(batch)).Error("batch failed, records skipped")
					continue
				}
				done := processed.Add(int64(n))
				if done/progressInterval != (done-int64(n))/progressInterval {
					log.WithFields(logrus.Fields{"processed": done, "total": total}).Info("progress")
				}
			}
		}()
	}

	cursor, err := p.store.FindAll(feeds.CollectionNVD)
	if err != nil {
		close(batches)
		wg.Wait()
		return 0, fmt.Errorf("streaming primary records: %w", err)
	}

	batch := make([]document.Document, 0, p.cfg.BatchSize)
	for cursor.Next() {
		batch = append(batch, cursor.Document())
		if len(batch) >= p.cfg.BatchSize {
			batches <- batch
			batch = make([]document.Document, 0, p.cfg.BatchSize)
		}
	}
	streamErr := cursor.Err()
	cursor.Close()

	if len(batch) > 0 {
		batches <- batch
	}
	close(batches)
	wg.Wait()

	if streamErr != nil {
		return int(processed.Load()), fmt.Errorf("streaming primary records: %w", streamErr)
	}

	log.WithFields(logrus.Fields{
		"processed": processed.Load(),
		"failed":    failed.Load(),
		"duration":  time.Since(start).Round(time.Millisecond).String(),
	}).Info("fact computation complete")
	return int(processed.Load()), nil
}

// processBatch evaluates one batch of primary records and writes its
// facts in a single bulk insert. Batches cover disjoint identifiers, so
// write order across batches does not matter.
func (p *Pipeline) processBatch(batch []document.Document) (int, error) {
	now := time.Now().UTC()
	out := make([]store.KeyedDoc, 0, len(batch))

	for _, primary := range batch {
		id := feeds.NormalizeID(primary.String("cve_id"))
		if id == "" {
			continue
		}
		merged := p.cache.Merged(id)
		merged[feeds.SourceNVD] = primary

		fact := Compute(id, merged, now)
		out = append(out, store.KeyedDoc{Key: id, Doc: fact.Document()})
	}

	if err := p.store.BulkInsert(feeds.CollectionFacts, out); err != nil {
		return 0, err
	}
	return len(out), nil
}
