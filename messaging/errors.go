// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
)

// ErrMaxRetries is returned by Run when MaxRetries consecutive
// sessions have failed.
var ErrMaxRetries = errors.New("messaging: reconnect attempts exhausted")

// ErrNoAuthToken ends a session whose token source returned "".
var ErrNoAuthToken = errors.New("messaging: no auth token")

// ProtocolError is an error frame from the server or a frame that
// breaks the handshake sequence.
type ProtocolError struct {
	// FrameType is the type of the offending frame.
	FrameType string
	// ErrorType is the server's errorType, when it sent one.
	ErrorType string
	Message   string
}

func (e *ProtocolError) Error() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("messaging: %s frame: %s: %s", e.FrameType, e.ErrorType, e.Message)
	}
	return fmt.Sprintf("messaging: %s frame: %s", e.FrameType, e.Message)
}

// IsProtocolError reports whether err is a *ProtocolError.
func IsProtocolError(err error) bool {
	var protocolErr *ProtocolError
	return errors.As(err, &protocolErr)
}
