// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for agentsync
// hosts.
//
// Configuration is loaded from a single file named either by the
// AGENTSYNC_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). [Default] supplies every value first, so a file
// only needs the keys it changes.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${AGENTSYNC_ROOT}, and ${VAR:-default} patterns are
// expanded. The only environment variable that overrides a value is
// AGENTSYNC_TOKEN, and that happens in the host, not here.
//
// This package depends on no other agentsync packages.
package config
