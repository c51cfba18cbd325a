// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/agentcloud/agentsync/lib/entity"
	"github.com/agentcloud/agentsync/lib/mapping"
	"github.com/agentcloud/agentsync/lib/wire"
)

const testID = "11111111-2222-4333-8444-555555555555"

type testHost struct {
	token    string
	endpoint string
}

func (h *testHost) AuthToken() string                   { return h.token }
func (h *testHost) APIEndpoint() string                 { return h.endpoint }
func (h *testHost) HTTPClient(entity.Kind) *http.Client { return nil }

// graphQLServer records every request body and answers with respond.
type graphQLServer struct {
	*httptest.Server

	mu      sync.Mutex
	queries []string
	auth    []string
}

func newGraphQLServer(t *testing.T, respond func(query string) (int, string)) *graphQLServer {
	t.Helper()
	s := &graphQLServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query string `json:"query"`
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &body); err != nil {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.queries = append(s.queries, body.Query)
		s.auth = append(s.auth, r.Header.Get("Authorization"))
		s.mu.Unlock()

		status, payload := respond(body.Query)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, payload)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *graphQLServer) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func (s *graphQLServer) Auth() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.auth...)
}

func newTestServices(t *testing.T, host Host) *Services {
	t.Helper()
	registry, err := wire.NewRegistry(wire.RegistryConfig{
		Source: mapping.NewLoader("", nil),
		NewID:  func() string { return testID },
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	services, err := NewServices(ServicesConfig{Host: host, Schemas: registry})
	if err != nil {
		t.Fatalf("NewServices: %v", err)
	}
	return services
}

func respondWith(field, value string) func(string) (int, string) {
	return func(string) (int, string) {
		return http.StatusOK, `{"data":{"` + field + `":` + value + `}}`
	}
}

func TestSyncAddAgent(t *testing.T) {
	server := newGraphQLServer(t, respondWith("addAgents", `"{\"ok\":true}"`))
	services := newTestServices(t, &testHost{token: "tok-1", endpoint: server.URL})

	result := services.Sync(context.Background(), entity.KindAgent, entity.OpAdd, []any{
		map[string]any{"id": "", "name": "a1", "owner": "u@example"},
	})

	if !result.Success || !result.Synced || result.Cached {
		t.Fatalf("result = %+v, want success and synced, not cached", result)
	}
	if result.SyncedCount != 1 {
		t.Errorf("SyncedCount = %d, want 1", result.SyncedCount)
	}
	queries := server.Queries()
	if len(queries) != 1 {
		t.Fatalf("server saw %d requests, want 1", len(queries))
	}
	if !strings.Contains(queries[0], `addAgents(input: [{agid: "`+testID+`"`) {
		t.Errorf("query = %s, want addAgents with generated agid", queries[0])
	}
	if !strings.Contains(queries[0], `name: "a1"`) {
		t.Errorf("query = %s, want name field", queries[0])
	}
	if auth := server.Auth(); auth[0] != "tok-1" {
		t.Errorf("Authorization = %q, want raw token", auth[0])
	}
}

func TestSyncDeleteByLegacyID(t *testing.T) {
	server := newGraphQLServer(t, respondWith("removeAgentSkills", `"{\"removed\":1}"`))
	services := newTestServices(t, &testHost{token: "tok", endpoint: server.URL})

	result := services.Sync(context.Background(), entity.KindSkill, entity.OpDelete, []any{
		entity.Record{"skid": "S-1", "owner": "u", "reason": "cleanup"},
	})
	if !result.Success || !result.Synced {
		t.Fatalf("result = %+v, want success", result)
	}
	if got := server.Queries()[0]; !strings.Contains(got, `removeAgentSkills(input: ["S-1"])`) {
		t.Errorf("query = %s, want id array", got)
	}
}

func TestSyncRelationshipDelete(t *testing.T) {
	server := newGraphQLServer(t, respondWith("removeAgentSkillRelations", `[{"id":"R-1","success":true}]`))
	services := newTestServices(t, &testHost{token: "tok", endpoint: server.URL})

	result := services.Sync(context.Background(), entity.KindAgentSkill, entity.OpDelete, []any{
		entity.Record{"relid": "R-1", "owner": "u", "reason": "unlink"},
	})
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	want := `removeAgentSkillRelations(input: [{oid: "R-1", owner: "u", reason: "unlink"}]) { id success error }`
	if got := server.Queries()[0]; !strings.Contains(got, want) {
		t.Errorf("query = %s, want %s", got, want)
	}
}

func TestSyncNoAuthToken(t *testing.T) {
	server := newGraphQLServer(t, respondWith("addAgents", `"{}"`))
	services := newTestServices(t, &testHost{token: "  ", endpoint: server.URL})

	result := services.Sync(context.Background(), entity.KindAgent, entity.OpAdd, []any{
		map[string]any{"name": "a1"},
	})
	if result.Success {
		t.Fatal("Success = true without a token")
	}
	if len(result.Errors) != 1 || result.Errors[0] != "No auth token" {
		t.Errorf("Errors = %q, want [No auth token]", result.Errors)
	}
	if result.Retryable() {
		t.Error("missing token result is retryable")
	}
	if n := len(server.Queries()); n != 0 {
		t.Errorf("server saw %d requests, want 0", n)
	}
}

func TestSyncEmptyItems(t *testing.T) {
	server := newGraphQLServer(t, respondWith("addAgents", `"{}"`))
	services := newTestServices(t, &testHost{token: "tok", endpoint: server.URL})

	result := services.Sync(context.Background(), entity.KindAgent, entity.OpAdd, nil)
	if !result.Success || !result.Synced || result.Cached || result.SyncedCount != 0 {
		t.Errorf("result = %+v, want success with zero items", result)
	}
	if n := len(server.Queries()); n != 0 {
		t.Errorf("server saw %d requests, want 0", n)
	}
}

func TestSyncUnsupportedOperation(t *testing.T) {
	server := newGraphQLServer(t, respondWith("updateAgentSkillRelations", `"{}"`))
	services := newTestServices(t, &testHost{token: "tok", endpoint: server.URL})

	result := services.Sync(context.Background(), entity.KindAgentSkill, entity.OpUpdate, []any{
		map[string]any{"id": "R-1"},
	})
	if result.Success || result.Reason != ReasonUnsupported {
		t.Errorf("result = %+v, want unsupported_operation", result)
	}
	if result.Retryable() {
		t.Error("unsupported result is retryable")
	}
	if n := len(server.Queries()); n != 0 {
		t.Errorf("server saw %d requests, want 0", n)
	}
}

func TestSyncClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantReason Reason
		wantError  string
	}{
		{
			name:       "null result",
			status:     http.StatusOK,
			body:       `{"data":{"addAgents":null}}`,
			wantReason: ReasonNullResult,
			wantError:  "cloud returned null",
		},
		{
			name:       "missing data",
			status:     http.StatusOK,
			body:       `{}`,
			wantReason: ReasonNullResult,
			wantError:  "cloud returned null",
		},
		{
			name:       "errorType inside AWSJSON",
			status:     http.StatusOK,
			body:       `{"data":{"addAgents":"{\"errorType\":\"ValidationError\",\"message\":\"bad\"}"}}`,
			wantReason: ReasonRejected,
			wantError:  "bad",
		},
		{
			name:       "errorType object",
			status:     http.StatusOK,
			body:       `{"data":{"addAgents":{"errorType":"ValidationError","message":"bad"}}}`,
			wantReason: ReasonRejected,
			wantError:  "bad",
		},
		{
			name:       "graphql errors",
			status:     http.StatusOK,
			body:       `{"data":null,"errors":[{"errorType":"Unauthorized","message":"denied"}]}`,
			wantReason: ReasonRejected,
			wantError:  "denied",
		},
		{
			name:       "non-2xx with error body",
			status:     http.StatusBadRequest,
			body:       `{"errorType":"ValidationError","message":"bad"}`,
			wantReason: ReasonRejected,
			wantError:  "bad",
		},
		{
			name:       "non-2xx without error body",
			status:     http.StatusServiceUnavailable,
			body:       `upstream down`,
			wantReason: ReasonTransport,
			wantError:  "cloud: HTTPError (503): upstream down",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newGraphQLServer(t, func(string) (int, string) { return tt.status, tt.body })
			services := newTestServices(t, &testHost{token: "tok", endpoint: server.URL})

			result := services.Sync(context.Background(), entity.KindAgent, entity.OpAdd, []any{
				map[string]any{"id": "A-1", "name": "a1"},
			})
			if result.Success {
				t.Fatalf("Success = true, want failure")
			}
			if result.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Reason, tt.wantReason)
			}
			if result.Error() != tt.wantError {
				t.Errorf("Error() = %q, want %q", result.Error(), tt.wantError)
			}
			if !result.Retryable() {
				t.Error("Retryable() = false, want true")
			}
		})
	}
}

func TestSyncStructuredPartialFailure(t *testing.T) {
	server := newGraphQLServer(t, respondWith("addAgentSkillRelations",
		`[{"id":"R-1","success":true,"error":null},{"id":"R-2","success":false,"error":"unknown skill"}]`))
	services := newTestServices(t, &testHost{token: "tok", endpoint: server.URL})

	result := services.Sync(context.Background(), entity.KindAgentSkill, entity.OpAdd, []any{
		map[string]any{"id": "R-1", "agent_id": "A", "skill_id": "S-1"},
		map[string]any{"id": "R-2", "agent_id": "A", "skill_id": "S-9"},
	})
	if result.Success {
		t.Fatal("Success = true with a failed entry")
	}
	if result.SyncedCount != 1 || result.FailedCount != 1 {
		t.Errorf("SyncedCount, FailedCount = %d, %d, want 1, 1", result.SyncedCount, result.FailedCount)
	}
	if result.Error() != "R-2: unknown skill" {
		t.Errorf("Error() = %q, want %q", result.Error(), "R-2: unknown skill")
	}
	query := server.Queries()[0]
	if !strings.Contains(query, `{agid: "A", client: "desktop", relid: "R-1", skid: "S-1"}`) {
		t.Errorf("query = %s, want renamed relationship fields", query)
	}
	if !strings.HasSuffix(query, "{ id success error }\n}") {
		t.Errorf("query = %s, want structured selection", query)
	}
}

func TestSyncTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })
	services := newTestServices(t, &testHost{token: "tok", endpoint: server.URL})

	result := services.Sync(context.Background(), entity.KindAgent, entity.OpAdd,
		[]any{map[string]any{"id": "A-1"}}, WithTimeout(50*time.Millisecond))
	if result.Success {
		t.Fatal("Success = true after a timeout")
	}
	if result.Reason != ReasonTransport {
		t.Errorf("Reason = %q, want %q", result.Reason, ReasonTransport)
	}
	if !strings.Contains(result.Error(), ErrorTypeTimeout) {
		t.Errorf("Error() = %q, want a %s error", result.Error(), ErrorTypeTimeout)
	}
}

func TestSyncSettings(t *testing.T) {
	server := newGraphQLServer(t, respondWith("updateAgents", `"{}"`))
	services := newTestServices(t, &testHost{token: "tok", endpoint: server.URL})

	result := services.Sync(context.Background(), entity.KindAgent, entity.OpUpdate,
		[]any{map[string]any{"id": "A-1"}}, WithSettings(map[string]any{"merge": true}))
	if !result.Success {
		t.Fatalf("result = %+v, want success", result)
	}
	if got := server.Queries()[0]; !strings.Contains(got, `settings: "{\"merge\":true}"`) {
		t.Errorf("query = %s, want escaped settings", got)
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"items object in AWSJSON", `"{\"items\":[{\"agid\":\"A-1\",\"desc\":\"d\",\"client\":\"desktop\"}]}"`},
		{"plural key", `{"agents":[{"agid":"A-1","desc":"d","client":"desktop"}]}`},
		{"bare list", `[{"agid":"A-1","desc":"d","client":"desktop"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newGraphQLServer(t, respondWith("queryAgents", tt.body))
			services := newTestServices(t, &testHost{token: "tok", endpoint: server.URL})
			service, err := services.For(entity.KindAgent)
			if err != nil {
				t.Fatalf("For: %v", err)
			}

			result, err := service.Load(context.Background(), QueryParams{ByOwnerUser: "u@example", Phrase: "x"})
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if result.Count != 1 || len(result.Items) != 1 {
				t.Fatalf("Count = %d, items = %d, want 1", result.Count, len(result.Items))
			}
			item := result.Items[0]
			if item["id"] != "A-1" {
				t.Errorf("id = %v, want A-1", item["id"])
			}
			if item["description"] != "d" {
				t.Errorf("description = %v, want d", item["description"])
			}
			if _, present := item["client"]; present {
				t.Error("wire-only required field survived FromWire")
			}
			want := `query MyQuery {` + "\n" + `  queryAgents(qp: {byowneruser: "u@example", qphrase: "x"})`
			if got := server.Queries()[0]; !strings.HasPrefix(got, want) {
				t.Errorf("query = %s, want prefix %s", got, want)
			}
		})
	}
}

func TestLoadErrors(t *testing.T) {
	t.Run("no token", func(t *testing.T) {
		services := newTestServices(t, &testHost{endpoint: "http://127.0.0.1:1"})
		service, _ := services.For(entity.KindAgent)
		if _, err := service.Load(context.Background(), QueryParams{}); !errors.Is(err, ErrNoAuthToken) {
			t.Errorf("Load error = %v, want ErrNoAuthToken", err)
		}
	})
	t.Run("null", func(t *testing.T) {
		server := newGraphQLServer(t, respondWith("queryAgents", `null`))
		services := newTestServices(t, &testHost{token: "tok", endpoint: server.URL})
		service, _ := services.For(entity.KindAgent)
		if _, err := service.Load(context.Background(), QueryParams{}); !errors.Is(err, ErrNullResult) {
			t.Errorf("Load error = %v, want ErrNullResult", err)
		}
	})
	t.Run("errorType", func(t *testing.T) {
		server := newGraphQLServer(t, respondWith("queryAgents", `{"errorType":"Forbidden","message":"no"}`))
		services := newTestServices(t, &testHost{token: "tok", endpoint: server.URL})
		service, _ := services.For(entity.KindAgent)
		_, err := service.Load(context.Background(), QueryParams{})
		if !IsCloudError(err, "Forbidden") {
			t.Errorf("Load error = %v, want Forbidden CloudError", err)
		}
	})
	t.Run("unexpected shape", func(t *testing.T) {
		server := newGraphQLServer(t, respondWith("queryAgents", `{"total":3}`))
		services := newTestServices(t, &testHost{token: "tok", endpoint: server.URL})
		service, _ := services.For(entity.KindAgent)
		if _, err := service.Load(context.Background(), QueryParams{}); err == nil {
			t.Error("Load succeeded on an object without a list")
		}
	})
}

func TestServicesUnknownKind(t *testing.T) {
	services := newTestServices(t, &testHost{token: "tok"})
	if _, err := services.For("spaceship"); !errors.Is(err, wire.ErrUnknownKind) {
		t.Errorf("For error = %v, want ErrUnknownKind", err)
	}
	result := services.Sync(context.Background(), "spaceship", entity.OpAdd, []any{map[string]any{}})
	if result.Success || result.Reason != ReasonUnsupported {
		t.Errorf("result = %+v, want unsupported_operation", result)
	}
}
