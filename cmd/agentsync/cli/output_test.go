// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestEmitJSON(t *testing.T) {
	var opts JSONOutput
	var buffer bytes.Buffer

	done, err := opts.EmitJSON(&buffer, map[string]int{"pending": 1})
	if done || err != nil || buffer.Len() != 0 {
		t.Fatalf("EmitJSON without --json = (%v, %v), wrote %q", done, err, buffer.String())
	}

	flagSet := pflag.NewFlagSet("stats", pflag.ContinueOnError)
	opts.AddFlag(flagSet)
	if err := flagSet.Parse([]string{"--json"}); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	done, err = opts.EmitJSON(&buffer, []string(nil))
	if !done || err != nil {
		t.Fatalf("EmitJSON = (%v, %v), want (true, nil)", done, err)
	}
	if got := strings.TrimSpace(buffer.String()); got != "[]" {
		t.Errorf("nil slice encoded as %q, want []", got)
	}
}

func TestWriteJSONLine(t *testing.T) {
	var buffer bytes.Buffer
	if err := WriteJSONLine(&buffer, map[string]any{"type": "chat", "n": 1}); err != nil {
		t.Fatalf("WriteJSONLine: %v", err)
	}
	if got := buffer.String(); got != `{"n":1,"type":"chat"}`+"\n" {
		t.Errorf("line = %q", got)
	}
}

func TestNewLogger(t *testing.T) {
	var buffer bytes.Buffer
	logger, err := NewLogger(&buffer, FormatJSON, slog.LevelWarn)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown", "task_id", "t1")
	if strings.Contains(buffer.String(), "hidden") {
		t.Errorf("info record written at warn level: %q", buffer.String())
	}
	if !strings.Contains(buffer.String(), `"task_id":"t1"`) {
		t.Errorf("output = %q, want a JSON record", buffer.String())
	}

	buffer.Reset()
	logger, err = NewLogger(&buffer, FormatAuto, slog.LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger auto: %v", err)
	}
	logger.Info("piped")
	if !strings.HasPrefix(buffer.String(), "{") {
		t.Errorf("auto format on a buffer = %q, want JSON", buffer.String())
	}

	buffer.Reset()
	logger, err = NewLogger(&buffer, FormatText, slog.LevelInfo)
	if err != nil {
		t.Fatalf("NewLogger text: %v", err)
	}
	logger.Info("plain")
	if !strings.Contains(buffer.String(), "msg=plain") {
		t.Errorf("text output = %q", buffer.String())
	}

	if _, err := NewLogger(&buffer, "xml", slog.LevelInfo); err == nil {
		t.Error("NewLogger(xml) = nil error, want error")
	}
}
