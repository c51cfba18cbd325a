// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the command tree behind the agentsync binary.
//
// A [Command] is either a group of subcommands or a leaf with a Run
// function. [Command.Execute] dispatches on the first positional
// argument, parses the leaf's pflag set, and suggests the closest
// command or flag name on a typo. Leaves that print their own result
// return an [ExitError] to set the exit code without a second message.
//
// [JSONOutput] adds a --json flag to a leaf; [NewLogger] builds the
// slog handler every command logs through.
package cli
