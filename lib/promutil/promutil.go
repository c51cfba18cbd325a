// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package promutil holds small helpers for Prometheus collectors.
package promutil

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Register registers collector with reg. When an equal collector is
// already registered it returns that one instead, so constructors can
// run more than once against the same registry. Any other failure
// panics, as with prometheus.MustRegister.
func Register[C prometheus.Collector](reg prometheus.Registerer, collector C) C {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}
