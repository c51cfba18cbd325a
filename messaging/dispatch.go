// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"
)

// Message is one event delivered to a consumer queue.
type Message struct {
	// Subscription is the Name of the subscription that produced it.
	Subscription string `json:"subscription"`

	// Type is the event's type field ("chat", "command", "logs", ...).
	Type string `json:"type,omitempty"`

	// Command is the cmd of a command message, when it has one.
	Command string `json:"cmd,omitempty"`

	// Payload is the event object as received.
	Payload json.RawMessage `json:"payload"`

	ReceivedAt time.Time `json:"received_at"`
}

// Route names a consumer queue.
type Route int

const (
	RouteMonitor Route = iota
	RouteChat
	RouteRPA
)

func (r Route) String() string {
	switch r {
	case RouteChat:
		return "chat"
	case RouteRPA:
		return "rpa"
	default:
		return "monitor"
	}
}

// Message types with a dedicated route.
const (
	TypeChat      = "chat"
	TypeCommand   = "command"
	TypeLogs      = "logs"
	TypeHeartbeat = "heartbeat"
)

// rpaCommands are the commands that control a running automation.
var rpaCommands = map[string]bool{
	"cancel":  true,
	"pause":   true,
	"suspend": true,
	"resume":  true,
}

// RouteByType sends chat messages to the chat queue, automation
// control commands to the RPA queue, and everything else to the
// monitor queue.
func RouteByType(m Message) Route {
	switch {
	case m.Type == TypeChat:
		return RouteChat
	case m.Type == TypeCommand && rpaCommands[m.Command]:
		return RouteRPA
	default:
		return RouteMonitor
	}
}

// parseMessage reads the type and cmd fields of an event. The cmd may
// sit on the event itself or inside its content, which is either an
// object or a JSON string holding one.
func parseMessage(subscription string, raw json.RawMessage, now time.Time) Message {
	m := Message{Subscription: subscription, Payload: raw, ReceivedAt: now}
	var event struct {
		Type    string          `json:"type"`
		Cmd     string          `json:"cmd"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(raw, &event); err != nil {
		return m
	}
	m.Type = event.Type
	m.Command = event.Cmd
	if m.Command == "" {
		m.Command = contentCommand(event.Content)
	}
	return m
}

func contentCommand(content json.RawMessage) string {
	if len(content) == 0 {
		return ""
	}
	var text string
	if json.Unmarshal(content, &text) == nil {
		content = json.RawMessage(text)
	}
	var inner struct {
		Cmd string `json:"cmd"`
	}
	if json.Unmarshal(content, &inner) != nil {
		return ""
	}
	return inner.Cmd
}

// queues holds the three bounded consumer queues.
type queues struct {
	chat    chan Message
	rpa     chan Message
	monitor chan Message

	delivered atomic.Int64
	dropped   atomic.Int64

	logger  *slog.Logger
	metrics *Metrics
}

func newQueues(capacity int, logger *slog.Logger, metrics *Metrics) *queues {
	return &queues{
		chat:    make(chan Message, capacity),
		rpa:     make(chan Message, capacity),
		monitor: make(chan Message, capacity),
		logger:  logger,
		metrics: metrics,
	}
}

func (q *queues) channel(route Route) chan Message {
	switch route {
	case RouteChat:
		return q.chat
	case RouteRPA:
		return q.rpa
	default:
		return q.monitor
	}
}

// deliver enqueues m without blocking the read loop. A full queue
// drops the message.
func (q *queues) deliver(route Route, m Message) {
	select {
	case q.channel(route) <- m:
		q.delivered.Add(1)
		q.metrics.observeMessage(route, "delivered")
	default:
		q.dropped.Add(1)
		q.metrics.observeMessage(route, "dropped")
		q.logger.Warn("consumer queue full, message dropped",
			"queue", route.String(),
			"subscription", m.Subscription,
			"type", m.Type,
		)
	}
}
