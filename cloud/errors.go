// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package cloud

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoAuthToken is returned when the host has no bearer token.
var ErrNoAuthToken = errors.New("No auth token") //nolint:staticcheck // user-visible message

// ErrNullResult is returned when a root field comes back null.
var ErrNullResult = errors.New("cloud returned null")

// Error types produced locally rather than by the service.
const (
	ErrorTypeNetwork         = "NetworkError"
	ErrorTypeTimeout         = "Timeout"
	ErrorTypeHTTP            = "HTTPError"
	ErrorTypeInvalidResponse = "InvalidResponse"
)

// CloudError is a failed call. ErrorType and Message come from the
// service's error body when it sent one; otherwise ErrorType is one of
// the local ErrorType constants.
//
//	var cloudErr *CloudError
//	if errors.As(err, &cloudErr) && cloudErr.ErrorType == "Unauthorized" { ... }
type CloudError struct {
	ErrorType  string `json:"errorType"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	// Err is the underlying transport error, if any.
	Err error `json:"-"`
}

func (e *CloudError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("cloud: %s (%d): %s", e.ErrorType, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("cloud: %s: %s", e.ErrorType, e.Message)
}

func (e *CloudError) Unwrap() error { return e.Err }

// IsCloudError reports whether err is a *CloudError of errorType.
func IsCloudError(err error, errorType string) bool {
	var cloudErr *CloudError
	return errors.As(err, &cloudErr) && cloudErr.ErrorType == errorType
}

// IsTransient reports whether retrying err later could succeed: rate
// limiting, server errors, and failures that never produced an HTTP
// status. Other 4xx responses are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var cloudErr *CloudError
	if !errors.As(err, &cloudErr) {
		return true
	}
	switch {
	case cloudErr.StatusCode == 0:
		return true
	case cloudErr.StatusCode == http.StatusTooManyRequests:
		return true
	case cloudErr.StatusCode >= 500:
		return true
	}
	return false
}
