// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Agentsync is the command-line host for the sync data plane.
//
// It implements the host contract (bearer token, GraphQL endpoint,
// HTTP session) from an agentsync.yaml file and the environment, then
// exposes the sync core as subcommands:
//
//	agentsync render agent add --items agents.json   print the request, no network
//	agentsync sync agent add --items agents.json     write through the offline sync manager
//	agentsync load agent --owner u-1                 query and convert to local records
//	agentsync queue stats|list|drain|retry|run       operate on the durable offline queue
//	agentsync subscribe                              stream bus events as JSON lines
//	agentsync version
//
// The token comes from AGENTSYNC_TOKEN when set and from
// cloud.token_file otherwise. The config file is named by --config or
// AGENTSYNC_CONFIG; without either the built-in defaults apply.
package main
