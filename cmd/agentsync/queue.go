// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/agentcloud/agentsync/cmd/agentsync/cli"
	"github.com/agentcloud/agentsync/lib/offlinequeue"
	"github.com/agentcloud/agentsync/lib/syncmanager"
)

func (a *app) queueCommand() *cli.Command {
	return &cli.Command{
		Name:    "queue",
		Summary: "Inspect and replay the offline queue",
		Description: `The offline queue holds writes that failed while the cloud was
unreachable. Tasks are replayed oldest first; a task that fails a
replay is marked failed and returns to pending on the next drain.`,
		Subcommands: []*cli.Command{
			a.queueStatsCommand(),
			a.queueListCommand(),
			a.queueDrainCommand(),
			a.queueRetryCommand(),
			a.queueRunCommand(),
		},
	}
}

// queueSession is a manager over the durable queue. The syncer is
// only dialed by drains.
type queueSession struct {
	env     *env
	queue   *offlinequeue.Queue
	manager *syncmanager.Manager
}

// openQueueSession opens the queue. needCloud requires an endpoint for
// commands that replay tasks.
func (a *app) openQueueSession(global globalOptions, command string, needCloud bool) (*queueSession, error) {
	e, err := a.open(global, command)
	if err != nil {
		return nil, err
	}
	var syncer syncmanager.Syncer = offlineSyncer{}
	if needCloud {
		services, err := e.services()
		if err != nil {
			return nil, err
		}
		syncer = services
	}
	queue, err := e.openQueue()
	if err != nil {
		return nil, err
	}
	manager, err := e.manager(syncer, queue)
	if err != nil {
		queue.Close()
		return nil, err
	}
	return &queueSession{env: e, queue: queue, manager: manager}, nil
}

func (s *queueSession) Close() {
	s.manager.Close()
	s.queue.Close()
}

func (a *app) queueStatsCommand() *cli.Command {
	var (
		global globalOptions
		output cli.JSONOutput
	)
	return &cli.Command{
		Name:    "stats",
		Summary: "Show pending and failed task counts",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("stats", pflag.ContinueOnError)
			global.addFlags(flagSet)
			output.AddFlag(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, _ []string) error {
			session, err := a.openQueueSession(global, "queue/stats", false)
			if err != nil {
				return err
			}
			defer session.Close()

			stats, err := session.manager.Stats(ctx)
			if err != nil {
				return err
			}
			if done, err := output.EmitJSON(a.stdout, stats); done {
				return err
			}
			return writeTable(a.stdout,
				[]string{"PENDING", "FAILED", "TOTAL", "OFFLINE SYNC", "QUEUE"},
				[][]string{{
					strconv.Itoa(stats.Queue.Pending),
					strconv.Itoa(stats.Queue.Failed),
					strconv.Itoa(stats.Queue.Total),
					enabledString(stats.OfflineSyncEnabled),
					session.env.config.OfflineSync.QueuePath,
				}})
		},
	}
}

func (a *app) queueListCommand() *cli.Command {
	var (
		global globalOptions
		output cli.JSONOutput
		failed bool
	)
	return &cli.Command{
		Name:    "list",
		Summary: "List queued tasks, oldest first",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("list", pflag.ContinueOnError)
			global.addFlags(flagSet)
			output.AddFlag(flagSet)
			flagSet.BoolVar(&failed, "failed", false, "list failed tasks instead of pending ones")
			return flagSet
		},
		Run: func(ctx context.Context, _ []string) error {
			session, err := a.openQueueSession(global, "queue/list", false)
			if err != nil {
				return err
			}
			defer session.Close()

			list := session.queue.Pending
			if failed {
				list = session.queue.Failed
			}
			tasks, err := list(ctx)
			if err != nil {
				return err
			}
			if done, err := output.EmitJSON(a.stdout, tasks); done {
				return err
			}
			rows := make([][]string, 0, len(tasks))
			for _, task := range tasks {
				rows = append(rows, []string{
					task.ID,
					string(task.Kind),
					string(task.Operation),
					strconv.Itoa(len(task.Items)),
					task.CreatedAt.Local().Format(time.DateTime),
					strconv.Itoa(task.AttemptCount),
					task.LastError,
				})
			}
			return writeTable(a.stdout,
				[]string{"TASK", "KIND", "OP", "ITEMS", "CREATED", "ATTEMPTS", "LAST ERROR"},
				rows)
		},
	}
}

func (a *app) queueDrainCommand() *cli.Command {
	var (
		global        globalOptions
		output        cli.JSONOutput
		max           int
		timeout       time.Duration
		excludeFailed bool
	)
	return &cli.Command{
		Name:    "drain",
		Summary: "Replay queued tasks now",
		Description: `Drain moves failed tasks back to pending (unless --exclude-failed)
and replays pending tasks oldest first, one attempt each. It exits 1
when any task failed.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("drain", pflag.ContinueOnError)
			global.addFlags(flagSet)
			output.AddFlag(flagSet)
			flagSet.IntVar(&max, "max", 0, "attempt at most this many tasks (0 means all)")
			flagSet.DurationVar(&timeout, "timeout", 0, "per-task timeout (default offline_sync.drain_task_timeout)")
			flagSet.BoolVar(&excludeFailed, "exclude-failed", false, "leave failed tasks failed")
			return flagSet
		},
		Run: func(ctx context.Context, _ []string) error {
			session, err := a.openQueueSession(global, "queue/drain", true)
			if err != nil {
				return err
			}
			defer session.Close()

			report, err := session.manager.Drain(ctx, syncmanager.DrainOptions{
				Max:            max,
				PerTaskTimeout: timeout,
				ExcludeFailed:  excludeFailed,
			})
			if err != nil {
				return err
			}
			done, err := output.EmitJSON(a.stdout, report)
			if err != nil {
				return err
			}
			if !done {
				err := writeTable(a.stdout,
					[]string{"ATTEMPTED", "SYNCED", "FAILED", "SKIPPED"},
					[][]string{{
						strconv.Itoa(report.Total),
						strconv.Itoa(report.Synced),
						strconv.Itoa(report.Failed),
						strconv.Itoa(report.Skipped),
					}})
				if err != nil {
					return err
				}
			}
			if report.Failed > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func (a *app) queueRetryCommand() *cli.Command {
	var global globalOptions
	return &cli.Command{
		Name:    "retry",
		Summary: "Move failed tasks back to pending",
		Usage:   "agentsync queue retry [task-id...] [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("retry", pflag.ContinueOnError)
			global.addFlags(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			session, err := a.openQueueSession(global, "queue/retry", false)
			if err != nil {
				return err
			}
			defer session.Close()

			if len(args) == 0 {
				n, err := session.queue.RetryAllFailed(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(a.stdout, "%d failed tasks moved to pending\n", n)
				return err
			}
			for _, id := range args {
				if err := session.queue.RetryFailed(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%s moved to pending\n", id)
			}
			return nil
		},
	}
}

func (a *app) queueRunCommand() *cli.Command {
	var (
		global   globalOptions
		interval time.Duration
	)
	return &cli.Command{
		Name:    "run",
		Summary: "Run the retry loop until interrupted",
		Description: `Run drains the queue every retry interval while it holds tasks, and
serves /metrics when metrics.listen is set. It stops on SIGINT or
SIGTERM.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			global.addFlags(flagSet)
			flagSet.DurationVar(&interval, "interval", 0, "drain interval (default offline_sync.retry_interval)")
			return flagSet
		},
		Run: func(ctx context.Context, _ []string) error {
			session, err := a.openQueueSession(global, "queue/run", true)
			if err != nil {
				return err
			}
			defer session.Close()

			stopMetrics, err := session.env.serveMetrics(ctx)
			if err != nil {
				return err
			}
			defer stopMetrics()

			session.manager.StartRetryLoop(interval)
			<-ctx.Done()
			session.manager.StopRetryLoop()
			return nil
		},
	}
}

func enabledString(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
