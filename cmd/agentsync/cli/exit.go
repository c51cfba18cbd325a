// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ExitError sets a non-zero exit code without an extra message. The
// command has already written its own output, as "queue drain" does
// when some tasks failed.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d", e.Code)
}

// ExitCode is checked by main to tell a handled exit from an error
// that still needs printing.
func (e *ExitError) ExitCode() int {
	return e.Code
}
