// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging is the realtime subscription client of agentsync.
//
// A [Client] holds one WebSocket to the cloud event bus using the
// graphql-ws subprotocol. Each connection is a session that walks a
// fixed state machine (see [State]): connection_init, connection_ack,
// one start frame per [Subscription], start_ack, and then a steady
// read loop that tracks keep-alives and routes data frames.
//
// Incoming messages are routed to three consumer queues. Chat
// messages go to [Client.Chat]; commands that control a running
// automation (cancel, pause, suspend, resume) go to [Client.RPA];
// everything else, logs and heartbeats included, goes to
// [Client.Monitor]. Queues are bounded; when a consumer falls behind
// new messages are dropped and counted in [Stats].
//
// The session owns its socket. A single goroutine reads, and writes
// after the handshake happen only on the stop path. A read that sees
// nothing for the server's keep-alive interval plus a slack ends the
// session, and [Client.Run] reconnects with exponential backoff until
// MaxRetries consecutive sessions have failed. Context cancellation
// and [Client.Stop] end the loop without an error.
//
// [RealtimeURL] converts an AppSync GraphQL endpoint into its realtime
// WebSocket endpoint; with Config.HeaderAuth set the authorization
// header travels base64-encoded in the URL query as AppSync expects.
package messaging
