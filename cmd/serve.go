// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bonial-oss/vulnfacts/internal/logging"
	"github.com/bonial-oss/vulnfacts/internal/server"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP enrichment API",
		RunE: func(_ *cobra.Command, _ []string) error {
			rt, err := setup(root)
			if err != nil {
				return err
			}
			defer rt.store.Close()

			listen := rt.cfg.Server.Addr
			if addr != "" {
				listen = addr
			}

			srv, err := server.New(rt.store, rt.enrichPolicy(), logging.Component(rt.log, "server"))
			if err != nil {
				return &ExitError{Code: 2, Message: fmt.Sprintf("starting API server: %v", err)}
			}
			return srv.ListenAndServe(listen)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}
