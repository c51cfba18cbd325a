// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/agentcloud/agentsync/lib/netutil"
	"github.com/agentcloud/agentsync/lib/version"
)

// DefaultTimeout bounds a call that does not set its own timeout.
const DefaultTimeout = 30 * time.Second

// ClientConfig configures a Client.
type ClientConfig struct {
	// HTTPClient performs requests. Defaults to a client with no
	// overall timeout; per-call timeouts come from the context.
	HTTPClient *http.Client

	// Timeout is the default per-call timeout. Zero means
	// DefaultTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// Client executes GraphQL calls.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient returns a Client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{httpClient: httpClient, timeout: timeout, logger: logger}
}

// HTTPClient returns the client's default transport.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

// Call is one GraphQL request.
type Call struct {
	Endpoint  string
	Token     string
	Query     string
	Variables map[string]any
	// Timeout overrides the client default when positive.
	Timeout time.Duration
	// HTTPClient overrides the client's transport for this call.
	HTTPClient *http.Client
}

// Response is a decoded GraphQL response body.
type Response struct {
	Data       map[string]json.RawMessage `json:"data"`
	Errors     []GraphQLError             `json:"errors,omitempty"`
	StatusCode int                        `json:"-"`
}

// GraphQLError is one entry of a response's errors list.
type GraphQLError struct {
	ErrorType string `json:"errorType"`
	Message   string `json:"message"`
	Path      []any  `json:"path,omitempty"`
}

// Field returns the raw value of a root field, or nil when the field is
// absent or JSON null.
func (r *Response) Field(name string) json.RawMessage {
	raw, ok := r.Data[name]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return raw
}

// Execute posts the call and decodes the response. Transport failures
// and non-2xx statuses are returned as *CloudError.
func (c *Client) Execute(ctx context.Context, call Call) (*Response, error) {
	if _, err := url.ParseRequestURI(call.Endpoint); err != nil {
		return nil, fmt.Errorf("cloud: invalid endpoint %q: %w", call.Endpoint, err)
	}
	timeout := call.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body := map[string]any{"query": call.Query}
	if len(call.Variables) > 0 {
		body["variables"] = call.Variables
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("cloud: encoding request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, call.Endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("cloud: creating request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/json")
	request.Header.Set("User-Agent", version.UserAgent())
	if call.Token != "" {
		request.Header.Set("Authorization", call.Token)
	}

	httpClient := c.httpClient
	if call.HTTPClient != nil {
		httpClient = call.HTTPClient
	}
	started := time.Now()
	response, err := httpClient.Do(request)
	if err != nil {
		errorType := ErrorTypeNetwork
		if errors.Is(err, context.DeadlineExceeded) || netutil.IsTimeout(err) {
			errorType = ErrorTypeTimeout
		}
		return nil, &CloudError{ErrorType: errorType, Message: err.Error(), Err: err}
	}
	defer response.Body.Close()

	data, err := netutil.ReadResponse(response.Body)
	if err != nil {
		return nil, &CloudError{ErrorType: ErrorTypeNetwork, Message: "reading response: " + err.Error(), StatusCode: response.StatusCode, Err: err}
	}
	c.logger.Debug("graphql call finished",
		"endpoint", call.Endpoint,
		"status", response.StatusCode,
		"bytes", len(data),
		"elapsed", time.Since(started),
	)

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, decodeErrorBody(response.StatusCode, data)
	}

	var decoded Response
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, &CloudError{
			ErrorType:  ErrorTypeInvalidResponse,
			Message:    fmt.Sprintf("undecodable body: %.200s", data),
			StatusCode: response.StatusCode,
			Err:        err,
		}
	}
	decoded.StatusCode = response.StatusCode
	return &decoded, nil
}

// decodeErrorBody turns a non-2xx body into a CloudError. The service
// sends either {errorType, message} or a GraphQL errors list.
func decodeErrorBody(status int, data []byte) *CloudError {
	var direct CloudError
	if json.Unmarshal(data, &direct) == nil && direct.ErrorType != "" {
		direct.StatusCode = status
		return &direct
	}
	var wrapped Response
	if json.Unmarshal(data, &wrapped) == nil && len(wrapped.Errors) > 0 {
		first := wrapped.Errors[0]
		errorType := first.ErrorType
		if errorType == "" {
			errorType = ErrorTypeHTTP
		}
		return &CloudError{ErrorType: errorType, Message: first.Message, StatusCode: status}
	}
	message := http.StatusText(status)
	if len(data) > 0 {
		message = fmt.Sprintf("%.200s", data)
	}
	return &CloudError{ErrorType: ErrorTypeHTTP, Message: message, StatusCode: status}
}
