// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

// Subscription is one GraphQL subscription started on every session.
type Subscription struct {
	// Name labels the subscription in logs and messages.
	Name string

	// Query is the subscription document. It takes $accountId.
	Query string

	// Field is the key under payload.data holding each event.
	Field string

	// Route picks the consumer queue for a message. Nil uses
	// RouteByType.
	Route func(Message) Route
}

func (s Subscription) route(m Message) Route {
	if s.Route == nil {
		return RouteByType(m)
	}
	return s.Route(m)
}

// OnMessageReceived carries chat, command, log, and heartbeat
// messages for an account.
var OnMessageReceived = Subscription{
	Name:  "onMessageReceived",
	Field: "onMessageReceived",
	Query: `subscription OnMessageReceived($accountId: String!) {
  onMessageReceived(accountId: $accountId) {
    accountId
    msgId
    type
    sender
    content
    createdAt
  }
}`,
}

// OnSceneGenerated carries generated scenes. They are monitor traffic.
var OnSceneGenerated = Subscription{
	Name:  "onSceneGenerated",
	Field: "onSceneGenerated",
	Query: `subscription OnSceneGenerated($accountId: String!) {
  onSceneGenerated(accountId: $accountId) {
    accountId
    sceneId
    agentId
    content
    createdAt
  }
}`,
	Route: func(Message) Route { return RouteMonitor },
}

// DefaultSubscriptions are started when Config.Subscriptions is empty.
func DefaultSubscriptions() []Subscription {
	return []Subscription{OnMessageReceived}
}
