// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/agentcloud/agentsync/lib/entity"
	"github.com/agentcloud/agentsync/lib/graphql"
	"github.com/agentcloud/agentsync/lib/wire"
)

// Host is the process that owns login state and endpoints. All methods
// must be safe for concurrent use.
type Host interface {
	// AuthToken returns the current bearer token, or "" when logged out.
	AuthToken() string
	// APIEndpoint returns the GraphQL endpoint URL.
	APIEndpoint() string
	// HTTPClient returns the session used for kind, or nil for the
	// client default.
	HTTPClient(kind entity.Kind) *http.Client
}

// SyncOption adjusts one Sync call.
type SyncOption func(*syncOptions)

type syncOptions struct {
	timeout  time.Duration
	settings map[string]any
}

// WithTimeout overrides the transport timeout for one call.
func WithTimeout(d time.Duration) SyncOption {
	return func(o *syncOptions) { o.timeout = d }
}

// WithSettings attaches a settings argument to the mutation.
func WithSettings(settings map[string]any) SyncOption {
	return func(o *syncOptions) { o.settings = settings }
}

func collectOptions(opts []SyncOption) syncOptions {
	var o syncOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ServiceConfig configures a Service.
type ServiceConfig struct {
	Kind    entity.Kind
	Host    Host
	Client  *Client
	Schemas graphql.SchemaSource
	Builder *graphql.Builder
	Logger  *slog.Logger
}

// Service syncs one entity kind.
type Service struct {
	kind    entity.Kind
	host    Host
	client  *Client
	schemas graphql.SchemaSource
	builder *graphql.Builder
	logger  *slog.Logger
}

// NewService returns a Service for cfg.Kind.
func NewService(cfg ServiceConfig) (*Service, error) {
	if !cfg.Kind.Valid() {
		return nil, fmt.Errorf("cloud: %w: %q", wire.ErrUnknownKind, cfg.Kind)
	}
	if cfg.Host == nil {
		return nil, errors.New("cloud: service needs a host")
	}
	if cfg.Schemas == nil {
		return nil, errors.New("cloud: service needs a schema source")
	}
	client := cfg.Client
	if client == nil {
		client = NewClient(ClientConfig{Logger: cfg.Logger})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	builder := cfg.Builder
	if builder == nil {
		builder = graphql.NewBuilder(cfg.Schemas, nil, logger)
	}
	return &Service{
		kind:    cfg.Kind,
		host:    cfg.Host,
		client:  client,
		schemas: cfg.Schemas,
		builder: builder,
		logger:  logger.With("kind", cfg.Kind),
	}, nil
}

// Kind returns the entity kind the service syncs.
func (s *Service) Kind() entity.Kind { return s.kind }

// Sync writes items to the cloud with op. It never returns an error:
// every failure is described by the result.
func (s *Service) Sync(ctx context.Context, op entity.Operation, items []any, opts ...SyncOption) SyncResult {
	if op == entity.OpQuery {
		return failure(ReasonUnsupported, fmt.Sprintf("%s is read-only; use Load", op))
	}
	if len(items) == 0 {
		return synced(0)
	}
	token := strings.TrimSpace(s.host.AuthToken())
	if token == "" {
		return failure(ReasonNoAuthToken, ErrNoAuthToken.Error())
	}
	root, err := s.builder.Root(s.kind, op)
	if err != nil {
		return failure(ReasonUnsupported, err.Error())
	}
	records, err := entity.AsRecords(items)
	if err != nil {
		return failure(ReasonInvalidInput, err.Error())
	}

	var warnings []string
	if root.Shape == graphql.Objects {
		records, warnings, err = s.toWire(records)
		if err != nil {
			return failure(ReasonUnsupported, err.Error())
		}
	}

	options := collectOptions(opts)
	query, err := s.builder.Render(s.kind, root, records, options.settings)
	if err != nil {
		return failure(ReasonInvalidInput, err.Error())
	}

	result := s.execute(ctx, root, query, options.timeout, len(items))
	result.Warnings = append(warnings, result.Warnings...)
	if result.Success {
		s.logger.Debug("sync succeeded", "op", op, "root", root.Field, "count", result.SyncedCount)
	} else {
		s.logger.Warn("sync failed", "op", op, "root", root.Field, "reason", result.Reason, "error", result.Error())
	}
	return result
}

// AssignIDs returns items as records, each carrying an id in its
// local id field. Items that already have one are only copied. Ids
// assigned here are sent on the first attempt and on every replay.
func (s *Service) AssignIDs(items []any) ([]any, error) {
	schema, err := s.schemas.SchemaFor(s.kind)
	if err != nil {
		return nil, err
	}
	records, err := entity.AsRecords(items)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(records))
	for i, record := range records {
		assigned, ok := schema.AssignID(record)
		if ok {
			s.logger.Debug("assigned id before first attempt", "item", i)
		}
		out[i] = assigned
	}
	return out, nil
}

func (s *Service) toWire(records []entity.Record) ([]entity.Record, []string, error) {
	schema, err := s.schemas.SchemaFor(s.kind)
	if err != nil {
		return nil, nil, err
	}
	var warnings []string
	out := make([]entity.Record, len(records))
	for i, record := range records {
		converted, ws := schema.ToWire(record)
		for _, w := range ws {
			s.logger.Warn("mapping anomaly", "field", w.Field, "error", w.Err)
			warnings = append(warnings, w.String())
		}
		out[i] = converted
	}
	return out, warnings, nil
}

// execute sends query and classifies the response for count items.
func (s *Service) execute(ctx context.Context, root graphql.Root, query string, timeout time.Duration, count int) SyncResult {
	response, err := s.client.Execute(ctx, Call{
		Endpoint:   s.host.APIEndpoint(),
		Token:      strings.TrimSpace(s.host.AuthToken()),
		Query:      query,
		Timeout:    timeout,
		HTTPClient: s.host.HTTPClient(s.kind),
	})
	if err != nil {
		s.logger.Debug("transport failure", "root", root.Field, "error", fmt.Sprintf("%+v", err))
		return transportFailure(err)
	}
	return classify(response, root, count)
}

// transportFailure maps an Execute error. A service-supplied errorType
// on a non-2xx status counts as a rejection.
func transportFailure(err error) SyncResult {
	var cloudErr *CloudError
	if errors.As(err, &cloudErr) && cloudErr.StatusCode > 0 && !localErrorType(cloudErr.ErrorType) {
		return failure(ReasonRejected, cloudErr.Message)
	}
	return failure(ReasonTransport, err.Error())
}

func localErrorType(errorType string) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeHTTP, ErrorTypeInvalidResponse:
		return true
	}
	return false
}

// classify turns a decoded response into a SyncResult.
func classify(response *Response, root graphql.Root, count int) SyncResult {
	raw := response.Field(root.Field)
	if raw == nil {
		if len(response.Errors) > 0 {
			return failure(ReasonRejected, graphQLMessages(response.Errors)...)
		}
		return failure(ReasonNullResult, ErrNullResult.Error())
	}

	value, err := decodeAWSJSON(raw)
	if err != nil {
		return failure(ReasonRejected, fmt.Sprintf("undecodable %s result: %v", root.Field, err))
	}
	if value == nil {
		return failure(ReasonNullResult, ErrNullResult.Error())
	}
	if object, ok := value.(map[string]any); ok {
		if errorType, _ := object["errorType"].(string); errorType != "" {
			message, _ := object["message"].(string)
			if message == "" {
				message = errorType
			}
			result := failure(ReasonRejected, message)
			result.Response = raw
			return result
		}
	}

	result := synced(count)
	result.Response = raw
	if root.Structured {
		if entries, ok := value.([]any); ok {
			failed, messages := structuredFailures(entries)
			if failed > 0 {
				result = failure(ReasonRejected, messages...)
				result.SyncedCount = max(count-failed, 0)
				result.FailedCount = failed
				result.Response = raw
			}
		}
	}
	return result
}

// structuredFailures counts {id, success, error} entries with
// success=false.
func structuredFailures(entries []any) (int, []string) {
	var failed int
	var messages []string
	for _, entry := range entries {
		object, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		if success, ok := object["success"].(bool); !ok || success {
			continue
		}
		failed++
		message, _ := object["error"].(string)
		if message == "" {
			message = "rejected"
		}
		if id, _ := object["id"].(string); id != "" {
			message = id + ": " + message
		}
		messages = append(messages, message)
	}
	return failed, messages
}

func graphQLMessages(errs []GraphQLError) []string {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		message := e.Message
		if e.ErrorType != "" && message == "" {
			message = e.ErrorType
		}
		messages = append(messages, message)
	}
	return messages
}

// decodeAWSJSON decodes a root field value. AWSJSON scalars arrive as
// JSON strings holding JSON; those are decoded twice. A string that is
// not JSON is returned as is.
func decodeAWSJSON(raw json.RawMessage) (any, error) {
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, err
	}
	text, ok := value.(string)
	if !ok {
		return value, nil
	}
	var inner any
	if err := json.Unmarshal([]byte(text), &inner); err != nil {
		return text, nil
	}
	return inner, nil
}

// QueryParams filters a Load.
type QueryParams struct {
	// ByOwnerUser limits results to one owner.
	ByOwnerUser string
	// Phrase is a free-text filter.
	Phrase string
	// Extra holds additional wire-level parameters.
	Extra map[string]any
}

func (p QueryParams) record() entity.Record {
	record := entity.Record{}
	for k, v := range p.Extra {
		record[k] = v
	}
	if p.ByOwnerUser != "" {
		record["byowneruser"] = p.ByOwnerUser
	}
	if p.Phrase != "" {
		record["qphrase"] = p.Phrase
	}
	return record
}

// LoadResult is the local form of a query.
type LoadResult struct {
	Items    []entity.Record `json:"items"`
	Count    int             `json:"count"`
	Warnings []string        `json:"warnings,omitempty"`
}

// Load runs the kind's query and converts each returned record to
// local form.
func (s *Service) Load(ctx context.Context, params QueryParams, opts ...SyncOption) (*LoadResult, error) {
	token := strings.TrimSpace(s.host.AuthToken())
	if token == "" {
		return nil, ErrNoAuthToken
	}
	root, err := s.builder.Root(s.kind, entity.OpQuery)
	if err != nil {
		return nil, err
	}
	query, err := s.builder.Render(s.kind, root, []entity.Record{params.record()}, nil)
	if err != nil {
		return nil, err
	}
	options := collectOptions(opts)
	response, err := s.client.Execute(ctx, Call{
		Endpoint:   s.host.APIEndpoint(),
		Token:      token,
		Query:      query,
		Timeout:    options.timeout,
		HTTPClient: s.host.HTTPClient(s.kind),
	})
	if err != nil {
		return nil, fmt.Errorf("cloud: load %s: %w", s.kind, err)
	}

	raw := response.Field(root.Field)
	if raw == nil {
		if len(response.Errors) > 0 {
			first := response.Errors[0]
			return nil, &CloudError{ErrorType: first.ErrorType, Message: first.Message, StatusCode: response.StatusCode}
		}
		return nil, fmt.Errorf("cloud: load %s: %w", s.kind, ErrNullResult)
	}
	value, err := decodeAWSJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("cloud: load %s: decoding %s: %w", s.kind, root.Field, err)
	}
	if object, ok := value.(map[string]any); ok {
		if errorType, _ := object["errorType"].(string); errorType != "" {
			message, _ := object["message"].(string)
			return nil, &CloudError{ErrorType: errorType, Message: message, StatusCode: response.StatusCode}
		}
	}
	entries, err := s.listEntries(value)
	if err != nil {
		return nil, fmt.Errorf("cloud: load %s: %w", s.kind, err)
	}

	schema, err := s.schemas.SchemaFor(s.kind)
	if err != nil {
		return nil, err
	}
	result := &LoadResult{Items: make([]entity.Record, 0, len(entries))}
	for i, entry := range entries {
		object, ok := entry.(map[string]any)
		if !ok {
			s.logger.Warn("query returned a non-object entry; skipping", "index", i)
			result.Warnings = append(result.Warnings, fmt.Sprintf("entry %d is not an object", i))
			continue
		}
		local, warnings := schema.FromWire(entity.Record(object))
		for _, w := range warnings {
			s.logger.Warn("mapping anomaly", "field", w.Field, "error", w.Err)
			result.Warnings = append(result.Warnings, w.String())
		}
		result.Items = append(result.Items, local)
	}
	result.Count = len(result.Items)
	return result, nil
}

// listEntries accepts a bare list, or an object holding the list under
// "items" or the kind's plural name.
func (s *Service) listEntries(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case map[string]any:
		for _, key := range []string{"items", string(s.kind) + "s"} {
			if list, ok := v[key].([]any); ok {
				return list, nil
			}
		}
		return nil, fmt.Errorf("result object has no items list (keys %v)", sortedKeys(v))
	}
	return nil, fmt.Errorf("result is %T, want a list", value)
}
