// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// RealtimeURL derives the realtime WebSocket endpoint of an AppSync
// GraphQL endpoint: https becomes wss and appsync-api becomes
// appsync-realtime-api. It also returns the GraphQL host, which the
// authorization object names. Endpoints that are not AppSync keep
// their host and only change scheme.
func RealtimeURL(apiEndpoint string) (realtime, apiHost string, err error) {
	u, err := url.Parse(apiEndpoint)
	if err != nil {
		return "", "", fmt.Errorf("messaging: parsing endpoint: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", "", fmt.Errorf("messaging: endpoint %q is not an http(s) URL", apiEndpoint)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("messaging: endpoint %q has no host", apiEndpoint)
	}
	apiHost = u.Host
	u.Host = strings.Replace(u.Host, "appsync-api", "appsync-realtime-api", 1)
	return u.String(), apiHost, nil
}

// headerURL appends the base64 authorization header and an empty
// payload object to a realtime URL.
func headerURL(realtime string, auth Authorization) (string, error) {
	u, err := url.Parse(realtime)
	if err != nil {
		return "", fmt.Errorf("messaging: parsing realtime endpoint: %w", err)
	}
	header, err := json.Marshal(auth)
	if err != nil {
		return "", err
	}
	query := u.Query()
	query.Set("header", base64.StdEncoding.EncodeToString(header))
	query.Set("payload", base64.StdEncoding.EncodeToString([]byte("{}")))
	u.RawQuery = query.Encode()
	return u.String(), nil
}
