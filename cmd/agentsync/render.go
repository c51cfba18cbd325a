// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/agentcloud/agentsync/cmd/agentsync/cli"
	"github.com/agentcloud/agentsync/lib/entity"
)

func (a *app) renderCommand() *cli.Command {
	var (
		global   globalOptions
		items    string
		settings string
	)
	return &cli.Command{
		Name:    "render",
		Summary: "Print the GraphQL request for a write or query",
		Description: `Render converts items to wire form with the kind's mapping document
and prints the request that sync would send. It never contacts the
cloud.`,
		Usage: "agentsync render <kind> <operation> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("render", pflag.ContinueOnError)
			global.addFlags(flagSet)
			flagSet.StringVar(&items, "items", "", `JSON object or array of objects ("-" reads stdin)`)
			flagSet.StringVar(&settings, "settings", "", "JSON settings argument for the mutation")
			return flagSet
		},
		Examples: []cli.Example{
			{Command: "agentsync render agent add --items agents.json"},
			{Command: `echo '{"agent_id":"a1","skill_id":"s1"}' | agentsync render agent_skill delete --items -`},
		},
		Run: func(_ context.Context, args []string) error {
			kind, op, err := kindAndOperation(args)
			if err != nil {
				return err
			}
			input, err := a.itemsFor(op, items)
			if err != nil {
				return err
			}
			settingsValue, err := parseSettings(settings)
			if err != nil {
				return err
			}
			e, err := a.open(global, "render")
			if err != nil {
				return err
			}
			query, err := e.builder().Build(kind, op, input, settingsValue)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.stdout, query)
			return err
		},
	}
}

// itemsFor reads --items. A query may omit it and runs unfiltered.
func (a *app) itemsFor(op entity.Operation, path string) ([]any, error) {
	if path == "" {
		if op == entity.OpQuery {
			return []any{map[string]any{}}, nil
		}
		return nil, fmt.Errorf("--items is required for %s", op)
	}
	return a.readItems(path)
}
