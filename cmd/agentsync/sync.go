// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/agentcloud/agentsync/cloud"
	"github.com/agentcloud/agentsync/cmd/agentsync/cli"
	"github.com/agentcloud/agentsync/lib/entity"
	"github.com/agentcloud/agentsync/lib/offlinequeue"
)

func (a *app) syncCommand() *cli.Command {
	var (
		global   globalOptions
		items    string
		settings string
		files    string
		timeout  time.Duration
	)
	return &cli.Command{
		Name:    "sync",
		Summary: "Write items to the cloud",
		Description: `Sync sends one write through the offline sync manager and prints the
result as JSON. With offline_sync.enabled, a retryable failure is
stored in the queue and reported as cached.

--files creates the items together with every file under a directory:
the create response carries presigned URLs and each file is uploaded
with a PUT.`,
		Usage: "agentsync sync <kind> <operation> --items FILE [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("sync", pflag.ContinueOnError)
			global.addFlags(flagSet)
			flagSet.StringVar(&items, "items", "", `JSON object or array of objects ("-" reads stdin)`)
			flagSet.StringVar(&settings, "settings", "", "JSON settings argument for the mutation")
			flagSet.StringVar(&files, "files", "", "directory of files to create the items with (add only)")
			flagSet.DurationVar(&timeout, "timeout", 0, "request timeout (default cloud.timeout)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			kind, op, err := kindAndOperation(args)
			if err != nil {
				return err
			}
			if op == entity.OpQuery {
				return fmt.Errorf("sync writes; use 'agentsync load %s' to query", kind)
			}
			input, err := a.itemsFor(op, items)
			if err != nil {
				return err
			}
			settingsValue, err := parseSettings(settings)
			if err != nil {
				return err
			}
			var opts []cloud.SyncOption
			if timeout > 0 {
				opts = append(opts, cloud.WithTimeout(timeout))
			}
			if settingsValue != nil {
				opts = append(opts, cloud.WithSettings(settingsValue))
			}

			e, err := a.open(global, "sync")
			if err != nil {
				return err
			}
			services, err := e.services()
			if err != nil {
				return err
			}

			if files != "" {
				if op != entity.OpAdd {
					return fmt.Errorf("--files only applies to add")
				}
				service, err := services.For(kind)
				if err != nil {
					return err
				}
				result, err := service.CreateWithFiles(ctx, input, files, opts...)
				if err != nil {
					return err
				}
				if err := cli.WriteJSON(a.stdout, result); err != nil {
					return err
				}
				if !result.Create.Success || len(result.Uploads.Failed) > 0 {
					return &cli.ExitError{Code: 1}
				}
				return nil
			}

			var queue *offlinequeue.Queue
			if e.config.OfflineSync.Enabled {
				if queue, err = e.openQueue(); err != nil {
					return err
				}
				defer queue.Close()
			}
			manager, err := e.manager(services, queue)
			if err != nil {
				return err
			}
			defer manager.Close()

			result := manager.Sync(ctx, kind, op, input, opts...)
			if err := cli.WriteJSON(a.stdout, result); err != nil {
				return err
			}
			if !result.Success {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func (a *app) loadCommand() *cli.Command {
	var (
		global  globalOptions
		owner   string
		phrase  string
		params  []string
		timeout time.Duration
	)
	return &cli.Command{
		Name:    "load",
		Summary: "Query items and print them in local form",
		Usage:   "agentsync load <kind> [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("load", pflag.ContinueOnError)
			global.addFlags(flagSet)
			flagSet.StringVar(&owner, "owner", "", "only items owned by this user")
			flagSet.StringVar(&phrase, "phrase", "", "free-text filter")
			flagSet.StringArrayVar(&params, "param", nil, "extra query parameter as key=value (repeatable)")
			flagSet.DurationVar(&timeout, "timeout", 0, "request timeout (default cloud.timeout)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("want <kind>, got %d arguments", len(args))
			}
			kind, err := entity.ParseKind(args[0])
			if err != nil {
				return err
			}
			query := cloud.QueryParams{ByOwnerUser: owner, Phrase: phrase}
			for _, param := range params {
				key, value, ok := strings.Cut(param, "=")
				if !ok || key == "" {
					return fmt.Errorf("--param %q: want key=value", param)
				}
				if query.Extra == nil {
					query.Extra = make(map[string]any)
				}
				query.Extra[key] = value
			}
			var opts []cloud.SyncOption
			if timeout > 0 {
				opts = append(opts, cloud.WithTimeout(timeout))
			}

			e, err := a.open(global, "load")
			if err != nil {
				return err
			}
			services, err := e.services()
			if err != nil {
				return err
			}
			service, err := services.For(kind)
			if err != nil {
				return err
			}
			result, err := service.Load(ctx, query, opts...)
			if err != nil {
				return err
			}
			return cli.WriteJSON(a.stdout, result)
		},
	}
}
