// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"

	"github.com/agentcloud/agentsync/cloud"
	"github.com/agentcloud/agentsync/lib/entity"
)

// offlineSyncer backs queue commands that never replay tasks, so they
// work without a configured endpoint.
type offlineSyncer struct{}

func (offlineSyncer) Sync(context.Context, entity.Kind, entity.Operation, []any, ...cloud.SyncOption) cloud.SyncResult {
	return cloud.SyncResult{Reason: cloud.ReasonTransport, Errors: []string{"no cloud endpoint in this command"}}
}
