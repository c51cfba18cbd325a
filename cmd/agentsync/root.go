// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/agentcloud/agentsync/cmd/agentsync/cli"
)

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:    "agentsync",
		Summary: "Cloud sync for agent catalogs",
		Description: `agentsync keeps a local catalog of agents, skills, tasks, tools, and
their relationships in sync with the cloud GraphQL service, and
follows the account's realtime message bus.`,
		Stderr: a.stderr,
		Subcommands: []*cli.Command{
			a.renderCommand(),
			a.syncCommand(),
			a.loadCommand(),
			a.queueCommand(),
			a.subscribeCommand(),
			a.versionCommand(),
		},
		Examples: []cli.Example{
			{Description: "Preview the mutation for new agents", Command: "agentsync render agent add --items agents.json"},
			{Description: "Replay writes queued while offline", Command: "agentsync queue drain"},
		},
	}
}
