// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package feeds

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/bonial-oss/vulnfacts/internal/document"
	"github.com/bonial-oss/vulnfacts/internal/store"
)

// progressInterval controls how often cache warm-up progress is logged.
const progressInterval = 50000

// Cache holds every auxiliary feed's documents in memory, keyed by
// identifier, so fact computation does O(1) lookups instead of a store
// round trip per record. It is populated once by Warm and read-only
// afterwards, which makes it safe for concurrent readers without
// locking.
type Cache struct {
	bySource map[string]map[string]document.Document
}

// Warm streams each registered feed once and indexes its documents by
// join value. Documents missing the join field are skipped; only one
// cursor is open at a time.
func Warm(st *store.Store, log *logrus.Entry) (*Cache, error) {
	c := &Cache{bySource: make(map[string]map[string]document.Document, len(Registry))}

	for _, feed := range Registry {
		log.WithField("feed", feed.Name).Info("caching feed")
		index, err := warmFeed(st, feed, log)
		if err != nil {
			return nil, fmt.Errorf("caching feed %s: %w", feed.Name, err)
		}
		log.WithFields(logrus.Fields{"feed": feed.Name, "keys": len(index)}).Info("feed cached")
		c.bySource[feed.Name] = index
	}

	log.Info("warm-up complete, memory cache ready")
	return c, nil
}

func warmFeed(st *store.Store, feed Feed, log *logrus.Entry) (map[string]document.Document, error) {
	cursor, err := st.FindAll(feed.Collection)
	if err != nil {
		return nil, err
	}
	defer cursor.Close()

	index := make(map[string]document.Document)
	scanned := 0
	for cursor.Next() {
		doc := cursor.Document()
		for _, key := range joinKeys(doc, feed) {
			index[key] = doc
		}
		scanned++
		if scanned%progressInterval == 0 {
			log.WithFields(logrus.Fields{"feed": feed.Name, "scanned": scanned}).Info("caching feed")
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return index, nil
}

// joinKeys extracts the cache keys one document is indexed under. A
// list-valued join field yields one key per element, all pointing at
// the same document.
func joinKeys(doc document.Document, feed Feed) []string {
	if !feed.Explode {
		id := NormalizeID(doc.String(feed.JoinField))
		if id == "" {
			return nil
		}
		return []string{id}
	}

	var keys []string
	for _, elem := range doc.StringList(feed.JoinField) {
		id := NormalizeID(elem)
		if id == "" {
			continue
		}
		if feed.KeyFilter != nil && !feed.KeyFilter(id) {
			continue
		}
		keys = append(keys, id)
	}
	return keys
}

// Lookup returns the feed document for the identifier, or the empty
// sentinel. Downstream rule logic is written against missing-field
// semantics, never missing-document errors.
func (c *Cache) Lookup(source, id string) document.Document {
	if doc, ok := c.bySource[source][id]; ok {
		return doc
	}
	return document.Document{}
}

// Merged assembles the per-source document set for one identifier, one
// entry per cached feed (empty sentinel on miss).
func (c *Cache) Merged(id string) map[string]document.Document {
	merged := make(map[string]document.Document, len(c.bySource)+1)
	for source := range c.bySource {
		merged[source] = c.Lookup(source, id)
	}
	return merged
}

// Size returns the number of keys cached for one source. Used by
// tests and progress reporting.
func (c *Cache) Size(source string) int {
	return len(c.bySource[source])
}
