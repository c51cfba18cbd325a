// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/agentcloud/agentsync/lib/entity"
)

// kindAndOperation parses the <kind> <operation> positional pair.
func kindAndOperation(args []string) (entity.Kind, entity.Operation, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("want <kind> <operation>, got %d arguments", len(args))
	}
	kind, err := entity.ParseKind(args[0])
	if err != nil {
		return "", "", err
	}
	op, err := entity.ParseOperation(args[1])
	if err != nil {
		return "", "", err
	}
	return kind, op, nil
}

// readItems reads a JSON object or array of objects from path, or from
// stdin when path is "-".
func (a *app) readItems(path string) ([]any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(a.stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading items: %w", err)
	}
	return parseItems(data)
}

func parseItems(data []byte) ([]any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("items: empty input")
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, fmt.Errorf("items: %w", err)
	}
	switch v := value.(type) {
	case map[string]any:
		return []any{normalizeNumbers(v)}, nil
	case []any:
		for i, item := range v {
			object, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("items[%d]: want an object, got %T", i, item)
			}
			v[i] = normalizeNumbers(object)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("items: want an object or an array of objects, got %T", value)
	}
}

// parseSettings decodes the --settings object. Empty means none.
func parseSettings(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()
	var settings map[string]any
	if err := decoder.Decode(&settings); err != nil {
		return nil, fmt.Errorf("--settings: %w", err)
	}
	return normalizeNumbers(settings), nil
}

// normalizeNumbers turns json.Number values into int64 where they are
// integral and float64 otherwise, so ids and counts keep their exact
// decimal form.
func normalizeNumbers(m map[string]any) map[string]any {
	return map[string]any(entity.NormalizeNumbers(m))
}
