// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bonial-oss/vulnfacts/internal/feeds"
	"github.com/bonial-oss/vulnfacts/internal/logging"
)

// newIngestCommand loads a feed snapshot file into its store
// collection.
func newIngestCommand(root *rootOptions) *cobra.Command {
	var feedName string
	var filePath string
	var appendDocs bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load a feed snapshot (CISA, EPSS, ExploitDB, Metasploit, NVD) into the store",
		RunE: func(_ *cobra.Command, _ []string) error {
			rt, err := setup(root)
			if err != nil {
				return err
			}
			defer rt.store.Close()
			return runIngest(rt, feedName, filePath, appendDocs)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&feedName, "feed", "", "Feed name: CISA, EPSS, ExploitDB, Metasploit, NVD")
	flags.StringVar(&filePath, "file", "", "Path to the feed snapshot file")
	flags.BoolVar(&appendDocs, "append", false, "Append to the collection instead of replacing it")
	_ = cmd.MarkFlagRequired("feed")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runIngest(rt *runtime, feedName, filePath string, appendDocs bool) error {
	log := logging.Component(rt.log, "ingest")

	collection, err := feeds.CollectionFor(feedName)
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("opening snapshot file: %w", err)
	}
	defer f.Close()

	docs, err := feeds.ParseSnapshot(feedName, f)
	if err != nil {
		return fmt.Errorf("parsing %s snapshot: %w", feedName, err)
	}
	log.WithFields(logrus.Fields{"feed": feedName, "documents": len(docs)}).Info("snapshot parsed")

	if !appendDocs {
		if err := rt.store.Truncate(collection); err != nil {
			return err
		}
	}
	if err := rt.store.BulkInsert(collection, docs); err != nil {
		return fmt.Errorf("loading %s into %s: %w", feedName, collection, err)
	}

	log.WithFields(logrus.Fields{"feed": feedName, "collection": collection, "documents": len(docs)}).Info("feed loaded")
	return nil
}
