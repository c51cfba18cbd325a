// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/gorilla/websocket"
)

func TestDecodeResponse(t *testing.T) {
	var got struct {
		Data map[string]any `json:"data"`
	}
	if err := DecodeResponse(strings.NewReader(`{"data":{"addAgents":"[]"}}`), &got); err != nil {
		t.Fatalf("DecodeResponse: %v", err)
	}
	if got.Data["addAgents"] != "[]" {
		t.Errorf("data.addAgents = %v, want []", got.Data["addAgents"])
	}
}

func TestDecodeResponseRejectsInvalidJSON(t *testing.T) {
	var v map[string]any
	if err := DecodeResponse(strings.NewReader(`<html>`), &v); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}

func TestErrorBody(t *testing.T) {
	if got := ErrorBody(strings.NewReader("bad gateway")); got != "bad gateway" {
		t.Errorf("ErrorBody = %q, want %q", got, "bad gateway")
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"eof", io.EOF, true},
		{"wrapped eof", fmt.Errorf("read: %w", io.EOF), true},
		{"closed", net.ErrClosed, true},
		{"reset", &os.SyscallError{Syscall: "read", Err: syscall.ECONNRESET}, true},
		{"normal close", &websocket.CloseError{Code: websocket.CloseNormalClosure}, true},
		{"abnormal close", &websocket.CloseError{Code: websocket.CloseAbnormalClosure}, false},
		{"other", errors.New("boom"), false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := IsExpectedCloseError(test.err); got != test.want {
				t.Errorf("IsExpectedCloseError(%v) = %v, want %v", test.err, got, test.want)
			}
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(fmt.Errorf("read frame: %w", timeoutError{})) {
		t.Error("wrapped timeout not detected")
	}
	if IsTimeout(io.EOF) {
		t.Error("EOF reported as timeout")
	}
}
