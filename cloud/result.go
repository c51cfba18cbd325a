// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package cloud

import "encoding/json"

// Reason classifies why a sync did not reach the cloud.
type Reason string

const (
	// ReasonNone marks a successful result.
	ReasonNone Reason = ""
	// ReasonNoAuthToken: the host had no bearer token.
	ReasonNoAuthToken Reason = "no_auth_token"
	// ReasonUnsupported: the (kind, operation) pair has no root field.
	ReasonUnsupported Reason = "unsupported_operation"
	// ReasonInvalidInput: an item could not be read as a record.
	ReasonInvalidInput Reason = "invalid_input"
	// ReasonRejected: the service answered with an errorType or with
	// failed entries in a structured result.
	ReasonRejected Reason = "rejected"
	// ReasonNullResult: the root field came back null.
	ReasonNullResult Reason = "null_result"
	// ReasonTransport: the request never produced a usable response.
	ReasonTransport Reason = "transport"
	// ReasonQueue: the offline queue could not store the write.
	ReasonQueue Reason = "queue"
)

// SyncResult is the outcome of one sync call.
//
// Exactly one of these holds for every result: Synced (the cloud has
// the write), Cached (the write is in the offline queue), or !Success.
type SyncResult struct {
	Success     bool     `json:"success"`
	Synced      bool     `json:"synced"`
	SyncedCount int      `json:"synced_count"`
	FailedCount int      `json:"failed_count,omitempty"`
	Cached      bool     `json:"cached"`
	TaskID      string   `json:"task_id,omitempty"`
	Errors      []string `json:"errors,omitempty"`
	Warnings    []string `json:"warnings,omitempty"`
	Reason      Reason   `json:"reason,omitempty"`

	// Response is the raw value of the mutation's root field.
	Response json.RawMessage `json:"response,omitempty"`
}

// Retryable reports whether a failed result is worth queueing. A
// missing token, an unsupported operation, or unreadable input fail the
// same way on every attempt.
func (r SyncResult) Retryable() bool {
	if r.Success {
		return false
	}
	switch r.Reason {
	case ReasonRejected, ReasonNullResult, ReasonTransport:
		return true
	}
	return false
}

// Error returns the first error message, or "" for a success.
func (r SyncResult) Error() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0]
}

func failure(reason Reason, messages ...string) SyncResult {
	return SyncResult{Reason: reason, Errors: messages}
}

func synced(count int) SyncResult {
	return SyncResult{Success: true, Synced: true, SyncedCount: count}
}
