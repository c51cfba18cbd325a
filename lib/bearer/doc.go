// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package bearer inspects the claims of a bearer token without
// verifying its signature.
//
// The sync core never validates tokens: the cloud does that on every
// request. Hosts still need a few claims locally, namely the account id
// the subscription client subscribes for and the expiry so a stale
// login can be reported before any request is made. [Parse] extracts
// those into [Claims].
package bearer
