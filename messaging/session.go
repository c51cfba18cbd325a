// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agentcloud/agentsync/lib/netutil"
)

// errCompleted ends a session whose subscriptions the server
// completed on its own.
var errCompleted = errors.New("messaging: server completed every subscription")

// session is one connection. Its methods run on the Run goroutine,
// except the stop watcher, which is the only writer once the session
// is steady.
type session struct {
	client      *Client
	conn        *websocket.Conn
	readTimeout time.Duration

	// active maps subscription ids to subscriptions not yet completed.
	active map[string]Subscription
	nextID int
}

// runSession dials and runs one session. subscribed reports whether
// the session reached subscribed before it ended.
func (c *Client) runSession(ctx context.Context) (subscribed bool, err error) {
	c.connectAttempts.Add(1)
	c.metrics.observeConnectAttempt()
	c.setState(StateConnecting)

	token := c.token()
	if token == "" {
		return false, ErrNoAuthToken
	}
	auth := Authorization{Authorization: token, Host: c.apiHost}
	target := c.endpoint
	if c.headerAuth {
		if target, err = headerURL(c.endpoint, auth); err != nil {
			return false, err
		}
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.handshakeTimeout)
	conn, _, err := c.dialer.DialContext(dialCtx, target, nil)
	cancel()
	if err != nil {
		return false, fmt.Errorf("messaging: dial: %w", err)
	}
	defer conn.Close()

	s := &session{
		client: c,
		conn:   conn,
		active: make(map[string]Subscription),
	}
	return s.run(ctx, auth)
}

func (s *session) run(ctx context.Context, auth Authorization) (bool, error) {
	c := s.client

	// Until the session is steady, cancellation closes the socket to
	// unblock the handshake.
	abort := context.AfterFunc(ctx, func() { s.conn.Close() })
	if err := s.handshake(auth); err != nil {
		abort()
		return false, err
	}
	if !abort() {
		return false, ctx.Err()
	}

	c.setState(StateSubscribed)
	c.logger.Info("subscription established",
		"subscriptions", len(s.active),
		"read_timeout", s.readTimeout,
	)
	c.setState(StateSteady)

	sessionDone := make(chan struct{})
	watcherDone := make(chan struct{})
	go s.watchStop(ctx, sessionDone, watcherDone)
	defer func() {
		close(sessionDone)
		<-watcherDone
	}()

	return true, s.steady(ctx)
}

// handshake sends connection_init, waits for connection_ack, then
// starts every subscription and waits for each start_ack.
func (s *session) handshake(auth Authorization) error {
	c := s.client
	if err := s.write(frame{Type: FrameConnectionInit}); err != nil {
		return err
	}
	c.setState(StateInitSent)

	ack, err := s.expect(FrameConnectionAck)
	if err != nil {
		return err
	}
	interval := time.Duration(connectionAckTimeout(ack.Payload)) * time.Millisecond
	s.readTimeout = interval + c.readTimeoutSlack
	c.setKeepAliveInterval(interval)
	c.recordKeepAlive(c.clock.Now(), true)
	c.setState(StateAckReceived)

	c.setState(StateSubscribing)
	variables := map[string]any{"accountId": c.accountID}
	pending := make(map[string]bool, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		s.nextID++
		id := strconv.Itoa(s.nextID)
		start, err := newStartFrame(id, sub, variables, auth)
		if err != nil {
			return err
		}
		if err := s.write(start); err != nil {
			return err
		}
		s.active[id] = sub
		pending[id] = true
	}
	for len(pending) > 0 {
		f, err := s.read(c.handshakeTimeout)
		if err != nil {
			return fmt.Errorf("messaging: waiting for start_ack: %w", err)
		}
		switch f.Type {
		case FrameStartAck:
			delete(pending, f.ID)
		case FrameKeepAlive:
			s.keepAlive()
		case FrameData:
			s.dispatch(f)
		case FrameError, FrameConnectionError:
			return s.protocolFailure(f)
		default:
			c.logger.Debug("ignoring frame during subscribe", "type", f.Type, "id", f.ID)
		}
	}
	return nil
}

// expect reads handshake frames until one of the wanted type arrives.
// Keep-alives are skipped; error frames fail the handshake.
func (s *session) expect(want string) (frame, error) {
	for {
		f, err := s.read(s.client.handshakeTimeout)
		if err != nil {
			return frame{}, fmt.Errorf("messaging: waiting for %s: %w", want, err)
		}
		switch f.Type {
		case want:
			return f, nil
		case FrameKeepAlive:
		case FrameError, FrameConnectionError:
			return frame{}, s.protocolFailure(f)
		default:
			s.client.protocolErrors.Add(1)
			s.client.metrics.observeProtocolError()
			return frame{}, &ProtocolError{FrameType: f.Type, Message: "unexpected frame, want " + want}
		}
	}
}

// steady reads frames until the connection fails, a keep-alive is
// overdue, or the server completes every subscription. After ctx is
// done it returns nil once the stop exchange ends.
func (s *session) steady(ctx context.Context) error {
	c := s.client
	for {
		f, err := s.read(s.readTimeout)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case netutil.IsTimeout(err):
				return fmt.Errorf("messaging: no frame within %s: %w", s.readTimeout, err)
			case netutil.IsExpectedCloseError(err):
				return fmt.Errorf("messaging: connection closed: %w", err)
			default:
				return fmt.Errorf("messaging: read: %w", err)
			}
		}

		switch f.Type {
		case FrameKeepAlive:
			s.keepAlive()
		case FrameData:
			s.dispatch(f)
		case FrameComplete:
			if sub, ok := s.active[f.ID]; ok {
				delete(s.active, f.ID)
				c.logger.Info("subscription complete", "subscription", sub.Name, "id", f.ID)
			}
			if len(s.active) == 0 {
				if ctx.Err() != nil {
					s.closeNormally()
					return nil
				}
				return errCompleted
			}
		case FrameError, FrameConnectionError:
			if ctx.Err() != nil {
				return nil
			}
			return s.protocolFailure(f)
		case FrameStartAck:
		default:
			c.logger.Debug("ignoring frame", "type", f.Type, "id", f.ID)
		}
	}
}

// watchStop is the stop path: when ctx ends it sends stop for every
// subscription and closes the socket if complete frames do not arrive
// within StopTimeout.
func (s *session) watchStop(ctx context.Context, sessionDone <-chan struct{}, watcherDone chan<- struct{}) {
	defer close(watcherDone)
	c := s.client
	select {
	case <-sessionDone:
		return
	case <-ctx.Done():
	}

	c.setState(StateClosing)
	for _, id := range s.startedIDs() {
		if err := s.write(frame{Type: FrameStop, ID: id}); err != nil {
			c.logger.Debug("sending stop failed", "id", id, "error", err)
			s.conn.Close()
			return
		}
	}

	timer := time.NewTimer(c.stopTimeout)
	defer timer.Stop()
	select {
	case <-sessionDone:
	case <-timer.C:
		c.logger.Warn("no complete frame after stop, closing connection", "timeout", c.stopTimeout)
		s.conn.Close()
	}
}

// startedIDs lists every id started on the session. It reads only
// nextID, which is fixed before the stop watcher starts.
func (s *session) startedIDs() []string {
	ids := make([]string, 0, s.nextID)
	for i := 1; i <= s.nextID; i++ {
		ids = append(ids, strconv.Itoa(i))
	}
	return ids
}

func (s *session) keepAlive() {
	c := s.client
	now := c.clock.Now()
	gap := c.recordKeepAlive(now, false)
	if gap > c.keepAliveWarn {
		c.keepAliveWarnings.Add(1)
		c.metrics.observeKeepAliveWarning()
		c.logger.Warn("keep-alive gap exceeded threshold",
			"gap", gap,
			"threshold", c.keepAliveWarn,
		)
	}
}

// dispatch routes the events of a data frame to the consumer queues.
func (s *session) dispatch(f frame) {
	c := s.client
	sub, ok := s.active[f.ID]
	if !ok {
		c.logger.Debug("data for unknown subscription", "id", f.ID)
		return
	}
	var payload dataPayload
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		c.protocolErrors.Add(1)
		c.metrics.observeProtocolError()
		c.logger.Warn("undecodable data frame", "subscription", sub.Name, "error", err)
		return
	}
	if len(payload.Errors) > 0 {
		c.logger.Warn("data frame carries errors",
			"subscription", sub.Name,
			"error_type", payload.Errors[0].ErrorType,
			"error", payload.Errors[0].Message,
		)
	}
	raw, ok := payload.Data[sub.Field]
	if !ok || string(raw) == "null" {
		return
	}
	message := parseMessage(sub.Name, raw, c.clock.Now())
	c.queues.deliver(sub.route(message), message)
}

func (s *session) protocolFailure(f frame) error {
	s.client.protocolErrors.Add(1)
	s.client.metrics.observeProtocolError()
	return protocolError(f)
}

func (s *session) write(f frame) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.client.handshakeTimeout)); err != nil {
		return fmt.Errorf("messaging: write: %w", err)
	}
	if err := s.conn.WriteJSON(f); err != nil {
		return fmt.Errorf("messaging: writing %s: %w", f.Type, err)
	}
	return nil
}

// read reads one frame with a deadline of timeout from now. Socket
// deadlines are wall-clock, so this uses time.Now, not the client
// clock.
func (s *session) read(timeout time.Duration) (frame, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return frame{}, err
	}
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		return frame{}, err
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		s.client.protocolErrors.Add(1)
		s.client.metrics.observeProtocolError()
		return frame{}, &ProtocolError{FrameType: "unknown", Message: "undecodable frame: " + err.Error()}
	}
	return f, nil
}

func (s *session) closeNormally() {
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
}
