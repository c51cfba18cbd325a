// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package wire

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/agentcloud/agentsync/lib/entity"
	"github.com/agentcloud/agentsync/lib/mapping"
)

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Source provides mapping documents. Required.
	Source mapping.Source

	// NewID is passed to Build for id fill transforms.
	NewID func() string

	Logger *slog.Logger
}

// Registry holds the SchemaVersions of every kind. Current versions
// are built from the mapping source on first request; additional
// versions can be registered explicitly at startup.
type Registry struct {
	source mapping.Source
	opts   BuildOptions
	logger *slog.Logger

	mu       sync.Mutex
	current  map[entity.Kind]*SchemaVersion
	versions map[entity.Kind]map[int]*SchemaVersion
}

// NewRegistry returns an empty Registry.
func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("wire: RegistryConfig.Source is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		source:   cfg.Source,
		opts:     BuildOptions{NewID: cfg.NewID},
		logger:   logger,
		current:  make(map[entity.Kind]*SchemaVersion),
		versions: make(map[entity.Kind]map[int]*SchemaVersion),
	}, nil
}

// SchemaFor returns the current SchemaVersion of kind, building it on
// first use. A kind without a mapping document gets an empty schema.
func (r *Registry) SchemaFor(kind entity.Kind) (*SchemaVersion, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.current[kind]; ok {
		return s, nil
	}

	doc, err := r.source.Load(kind)
	switch {
	case errors.Is(err, mapping.ErrNotFound):
		r.logger.Warn("no mapping document, using identity schema", "kind", kind)
		doc = mapping.Empty(kind)
	case err != nil:
		return nil, fmt.Errorf("wire: loading mapping for %s: %w", kind, err)
	}

	s, err := Build(doc, r.opts)
	if err != nil {
		return nil, err
	}
	r.storeLocked(s)
	r.logger.Debug("schema built", "kind", kind, "version", s.Version(),
		"renames", len(s.toWire), "transformers", len(s.transformers))
	return s, nil
}

// SchemaForVersion returns a specific version. The current version is
// built if needed; other versions must have been registered.
func (r *Registry) SchemaForVersion(kind entity.Kind, version int) (*SchemaVersion, error) {
	current, err := r.SchemaFor(kind)
	if err != nil {
		return nil, err
	}
	if current.Version() == version {
		return current, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.versions[kind][version]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("wire: %s has no schema version %d", kind, version)
}

// Register adds s. It becomes the current version of its kind when
// its version is at least the current one.
func (r *Registry) Register(s *SchemaVersion) error {
	if !s.Kind().Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind())
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.storeLocked(s)
	return nil
}

func (r *Registry) storeLocked(s *SchemaVersion) {
	byVersion := r.versions[s.Kind()]
	if byVersion == nil {
		byVersion = make(map[int]*SchemaVersion)
		r.versions[s.Kind()] = byVersion
	}
	byVersion[s.Version()] = s
	if current, ok := r.current[s.Kind()]; !ok || s.Version() >= current.Version() {
		r.current[s.Kind()] = s
	}
}

// Preload builds every kind's current schema, surfacing mapping
// errors at startup instead of on the first sync.
func (r *Registry) Preload() error {
	var errs []error
	for _, kind := range entity.AllKinds() {
		if _, err := r.SchemaFor(kind); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
