// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/agentcloud/agentsync/lib/bearer"
	"github.com/agentcloud/agentsync/lib/config"
	"github.com/agentcloud/agentsync/lib/entity"
)

// envToken overrides cloud.token_file.
const envToken = "AGENTSYNC_TOKEN"

// tokenHost implements cloud.Host from configuration. The token file
// is read on every call, so a token refreshed by another process is
// picked up without a restart.
type tokenHost struct {
	endpoint  string
	tokenFile string
	envToken  string
	logger    *slog.Logger
}

func newTokenHost(cfg *config.Config, envValue string, logger *slog.Logger) *tokenHost {
	return &tokenHost{
		endpoint:  cfg.Cloud.Endpoint,
		tokenFile: cfg.Cloud.TokenFile,
		envToken:  bearer.StripScheme(envValue),
		logger:    logger,
	}
}

func (h *tokenHost) AuthToken() string {
	if h.envToken != "" {
		return h.envToken
	}
	if h.tokenFile == "" {
		return ""
	}
	data, err := os.ReadFile(h.tokenFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger.Warn("reading token file", "path", h.tokenFile, "error", err)
		}
		return ""
	}
	return bearer.StripScheme(string(data))
}

func (h *tokenHost) APIEndpoint() string { return h.endpoint }

// HTTPClient returns nil: every kind shares the cloud client's
// default session.
func (h *tokenHost) HTTPClient(entity.Kind) *http.Client { return nil }
