// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentcloud/agentsync/lib/version"
)

func TestExecuteHeaders(t *testing.T) {
	headers := make(chan http.Header, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
		fmt.Fprint(w, `{"data":{"ping":"pong"}}`)
	}))
	defer server.Close()

	client := NewClient(ClientConfig{})
	response, err := client.Execute(context.Background(), Call{Endpoint: server.URL, Token: "tok", Query: "query { ping }"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(response.Field("ping")) != `"pong"` {
		t.Errorf("ping = %s, want \"pong\"", response.Field("ping"))
	}
	header := <-headers
	gotAuth, gotType, gotAgent := header.Get("Authorization"), header.Get("Content-Type"), header.Get("User-Agent")
	if gotAuth != "tok" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "tok")
	}
	if gotType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotType)
	}
	if gotAgent != version.UserAgent() {
		t.Errorf("User-Agent = %q, want %q", gotAgent, version.UserAgent())
	}
}

func TestExecuteErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantType   string
		wantStatus int
	}{
		{"direct error body", http.StatusBadRequest, `{"errorType":"ValidationError","message":"bad"}`, "ValidationError", 400},
		{"errors list", http.StatusUnauthorized, `{"errors":[{"errorType":"UnauthorizedException","message":"expired"}]}`, "UnauthorizedException", 401},
		{"plain text", http.StatusBadGateway, `<html>bad gateway</html>`, ErrorTypeHTTP, 502},
		{"undecodable success", http.StatusOK, `not json`, ErrorTypeInvalidResponse, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := NewClient(ClientConfig{}).Execute(context.Background(), Call{Endpoint: server.URL, Query: "{}"})
			var cloudErr *CloudError
			if !errors.As(err, &cloudErr) {
				t.Fatalf("error = %v, want *CloudError", err)
			}
			if cloudErr.ErrorType != tt.wantType {
				t.Errorf("ErrorType = %q, want %q", cloudErr.ErrorType, tt.wantType)
			}
			if cloudErr.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", cloudErr.StatusCode, tt.wantStatus)
			}
		})
	}
}

func TestExecuteNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(ClientConfig{}).Execute(context.Background(), Call{Endpoint: url, Query: "{}"})
	if !IsCloudError(err, ErrorTypeNetwork) {
		t.Fatalf("error = %v, want NetworkError", err)
	}
	if !IsTransient(err) {
		t.Error("network error is not transient")
	}
}

func TestExecuteInvalidEndpoint(t *testing.T) {
	_, err := NewClient(ClientConfig{}).Execute(context.Background(), Call{Endpoint: "", Query: "{}"})
	if err == nil || !strings.Contains(err.Error(), "invalid endpoint") {
		t.Errorf("error = %v, want invalid endpoint", err)
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("boom"), true},
		{&CloudError{ErrorType: ErrorTypeTimeout}, true},
		{&CloudError{ErrorType: "Throttled", StatusCode: 429}, true},
		{&CloudError{ErrorType: ErrorTypeHTTP, StatusCode: 503}, true},
		{&CloudError{ErrorType: "ValidationError", StatusCode: 400}, false},
		{&CloudError{ErrorType: "Unauthorized", StatusCode: 401}, false},
		{fmt.Errorf("wrapped: %w", &CloudError{StatusCode: 404}), false},
	}
	for _, tt := range tests {
		if got := IsTransient(tt.err); got != tt.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestSyncResultRetryable(t *testing.T) {
	tests := []struct {
		result SyncResult
		want   bool
	}{
		{synced(1), false},
		{failure(ReasonNoAuthToken), false},
		{failure(ReasonUnsupported), false},
		{failure(ReasonInvalidInput), false},
		{failure(ReasonQueue), false},
		{failure(ReasonRejected), true},
		{failure(ReasonNullResult), true},
		{failure(ReasonTransport), true},
	}
	for _, tt := range tests {
		if got := tt.result.Retryable(); got != tt.want {
			t.Errorf("Retryable(%q) = %v, want %v", tt.result.Reason, got, tt.want)
		}
	}
}
