// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package cloud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/agentcloud/agentsync/lib/entity"
	"github.com/agentcloud/agentsync/lib/graphql"
	"github.com/agentcloud/agentsync/lib/wire"
)

// ServicesConfig configures a Services set.
type ServicesConfig struct {
	Host    Host
	Client  *Client
	Schemas graphql.SchemaSource
	// Table overrides the root-field table. Nil means
	// graphql.DefaultTable.
	Table  graphql.Table
	Logger *slog.Logger
}

// Services holds one Service per entity kind.
type Services struct {
	byKind map[entity.Kind]*Service
}

// NewServices builds a Service for every kind, sharing one Client and
// one Builder.
func NewServices(cfg ServicesConfig) (*Services, error) {
	if cfg.Host == nil {
		return nil, errors.New("cloud: services need a host")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	client := cfg.Client
	if client == nil {
		client = NewClient(ClientConfig{Logger: logger})
	}
	builder := graphql.NewBuilder(cfg.Schemas, cfg.Table, logger)

	services := &Services{byKind: make(map[entity.Kind]*Service)}
	for _, kind := range entity.AllKinds() {
		service, err := NewService(ServiceConfig{
			Kind:    kind,
			Host:    cfg.Host,
			Client:  client,
			Schemas: cfg.Schemas,
			Builder: builder,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
		services.byKind[kind] = service
	}
	return services, nil
}

// For returns the Service of kind.
func (s *Services) For(kind entity.Kind) (*Service, error) {
	service, ok := s.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("cloud: %w: %q", wire.ErrUnknownKind, kind)
	}
	return service, nil
}

// Sync dispatches to the Service of kind. An unknown kind is reported
// as an unsupported operation.
func (s *Services) Sync(ctx context.Context, kind entity.Kind, op entity.Operation, items []any, opts ...SyncOption) SyncResult {
	service, err := s.For(kind)
	if err != nil {
		return failure(ReasonUnsupported, err.Error())
	}
	return service.Sync(ctx, op, items, opts...)
}

// AssignIDs dispatches to the Service of kind.
func (s *Services) AssignIDs(kind entity.Kind, items []any) ([]any, error) {
	service, err := s.For(kind)
	if err != nil {
		return nil, err
	}
	return service.AssignIDs(items)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
