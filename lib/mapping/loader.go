// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package mapping

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/agentcloud/agentsync/lib/entity"
)

//go:embed documents/*.jsonc
var embedded embed.FS

// ErrNotFound is returned by Load when no document exists for a kind.
var ErrNotFound = errors.New("mapping: document not found")

// Source yields mapping documents by kind.
type Source interface {
	Load(kind entity.Kind) (*Document, error)
}

// Loader reads documents from an override directory first, then from
// the embedded defaults.
type Loader struct {
	layers []fs.FS
	logger *slog.Logger
}

// NewLoader returns a Loader over the embedded defaults, with dir (if
// non-empty) consulted first.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	var layers []fs.FS
	if dir != "" {
		layers = append(layers, os.DirFS(dir))
	}
	defaults, err := fs.Sub(embedded, "documents")
	if err != nil {
		panic("mapping: embedded documents missing: " + err.Error())
	}
	return NewFSLoader(logger, append(layers, defaults)...)
}

// NewFSLoader returns a Loader reading from the given file systems in
// order. Files are named <kind>.jsonc or <kind>.json at the root.
func NewFSLoader(logger *slog.Logger, layers ...fs.FS) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{layers: layers, logger: logger}
}

// Load returns the validated document for kind. The error wraps
// ErrNotFound when no layer has one.
func (l *Loader) Load(kind entity.Kind) (*Document, error) {
	for i, layer := range l.layers {
		for _, name := range []string{string(kind) + ".jsonc", string(kind) + ".json"} {
			data, err := fs.ReadFile(layer, name)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("mapping: reading %s: %w", name, err)
			}
			doc, err := Parse(data)
			if err != nil {
				return nil, fmt.Errorf("mapping: %s: %w", name, err)
			}
			if doc.Kind == "" {
				doc.Kind = kind
			}
			if doc.Kind != kind {
				return nil, fmt.Errorf("mapping: %s declares kind %q", name, doc.Kind)
			}
			if err := doc.Validate(); err != nil {
				return nil, err
			}
			l.logger.Debug("mapping document loaded", "kind", kind, "file", name, "layer", i, "version", doc.Version)
			return doc, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, kind)
}

// LoadAll loads every known kind, returning the first error other than
// ErrNotFound. Kinds without a document are omitted.
func (l *Loader) LoadAll() (map[entity.Kind]*Document, error) {
	out := make(map[entity.Kind]*Document)
	for _, kind := range entity.AllKinds() {
		doc, err := l.Load(kind)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[kind] = doc
	}
	return out, nil
}
