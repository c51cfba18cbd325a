// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package cloud talks to the remote catalog service: one HTTPS GraphQL
// endpoint that stores every entity and relationship an owner has
// synced from the desktop.
//
// The package has three layers:
//
//   - Client executes one GraphQL POST with a bearer token and a
//     per-call timeout, returning the decoded response or a
//     *CloudError. It does not interpret the response.
//
//   - Service binds one entity kind to the conversion (lib/wire), the
//     request builder (lib/graphql), and a Client. Sync converts local
//     items, builds the mutation, executes it, and classifies the
//     outcome into a SyncResult. Load runs the kind's query and
//     converts the returned records back to local form.
//
//   - Services is the set of per-kind Services built at startup. It is
//     what the offline sync manager calls.
//
// Credentials and endpoints come from the Host: the process that owns
// login state. The sync core reads the token on every call and never
// stores or refreshes it.
//
// Knowledge entries and avatar resources can be created together with
// files (CreateWithFiles). The service attaches a source manifest to
// each item, and the cloud answers with presigned URLs. Each file is
// then uploaded with a PUT. Upload failures are reported per file and
// never undo the create.
package cloud
