// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Subprotocol is the WebSocket subprotocol negotiated on dial.
const Subprotocol = "graphql-ws"

// Frame types of the graphql-ws protocol.
const (
	FrameConnectionInit  = "connection_init"
	FrameConnectionAck   = "connection_ack"
	FrameConnectionError = "connection_error"
	FrameKeepAlive       = "ka"
	FrameStart           = "start"
	FrameStartAck        = "start_ack"
	FrameData            = "data"
	FrameComplete        = "complete"
	FrameStop            = "stop"
	FrameError           = "error"
)

// DefaultConnectionTimeout is the keep-alive interval assumed when
// connection_ack carries no connectionTimeoutMs.
const DefaultConnectionTimeout = 300000 // ms

// frame is one graphql-ws message in either direction.
type frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type ackPayload struct {
	ConnectionTimeoutMs int64 `json:"connectionTimeoutMs"`
}

// Authorization is the header object carried in start frames and, for
// header-auth endpoints, in the connection URL.
type Authorization struct {
	Authorization string `json:"Authorization"`
	Host          string `json:"host"`
}

type startPayload struct {
	// Data is the JSON-encoded {query, variables} request.
	Data       string          `json:"data"`
	Extensions startExtensions `json:"extensions"`
}

type startExtensions struct {
	Authorization Authorization `json:"authorization"`
}

type dataPayload struct {
	Data   map[string]json.RawMessage `json:"data"`
	Errors []serverError              `json:"errors,omitempty"`
}

type serverError struct {
	ErrorType string `json:"errorType"`
	ErrorCode int    `json:"errorCode,omitempty"`
	Message   string `json:"message"`
}

// connectionAckTimeout returns the server keep-alive interval in
// milliseconds from a connection_ack payload.
func connectionAckTimeout(payload json.RawMessage) int64 {
	var ack ackPayload
	if len(payload) > 0 {
		_ = json.Unmarshal(payload, &ack)
	}
	if ack.ConnectionTimeoutMs <= 0 {
		return DefaultConnectionTimeout
	}
	return ack.ConnectionTimeoutMs
}

// newStartFrame builds the start frame for one subscription.
func newStartFrame(id string, sub Subscription, variables map[string]any, auth Authorization) (frame, error) {
	request, err := json.Marshal(map[string]any{
		"query":     sub.Query,
		"variables": variables,
	})
	if err != nil {
		return frame{}, fmt.Errorf("messaging: encoding %s request: %w", sub.Name, err)
	}
	payload, err := json.Marshal(startPayload{
		Data:       string(request),
		Extensions: startExtensions{Authorization: auth},
	})
	if err != nil {
		return frame{}, fmt.Errorf("messaging: encoding %s start payload: %w", sub.Name, err)
	}
	return frame{Type: FrameStart, ID: id, Payload: payload}, nil
}

// protocolError converts an error or connection_error frame.
func protocolError(f frame) *ProtocolError {
	result := &ProtocolError{FrameType: f.Type}
	var body struct {
		Errors    []serverError `json:"errors"`
		ErrorType string        `json:"errorType"`
		Message   string        `json:"message"`
	}
	if err := json.Unmarshal(f.Payload, &body); err != nil || len(f.Payload) == 0 {
		result.Message = strings.TrimSpace(string(f.Payload))
		return result
	}
	if len(body.Errors) > 0 {
		result.ErrorType = body.Errors[0].ErrorType
		messages := make([]string, len(body.Errors))
		for i, e := range body.Errors {
			messages[i] = e.Message
		}
		result.Message = strings.Join(messages, "; ")
		return result
	}
	result.ErrorType = body.ErrorType
	result.Message = body.Message
	return result
}
