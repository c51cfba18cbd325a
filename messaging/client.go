// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"

	"github.com/agentcloud/agentsync/lib/clock"
)

// Defaults applied by NewClient.
const (
	DefaultMaxRetries       = 50
	DefaultBaseBackoff      = time.Second
	DefaultMaxBackoff       = 60 * time.Second
	DefaultKeepAliveWarn    = 90 * time.Second
	DefaultReadTimeoutSlack = 10 * time.Second
	DefaultHandshakeTimeout = 30 * time.Second
	DefaultStopTimeout      = 5 * time.Second
	DefaultQueueCapacity    = 256
)

// State is a session's position in the connection state machine.
type State int32

const (
	StateClosed State = iota
	StateConnecting
	StateInitSent
	StateAckReceived
	StateSubscribing
	StateSubscribed
	StateSteady
	StateClosing
)

var stateNames = [...]string{
	StateClosed:      "closed",
	StateConnecting:  "connecting",
	StateInitSent:    "init_sent",
	StateAckReceived: "ack_received",
	StateSubscribing: "subscribing",
	StateSubscribed:  "subscribed",
	StateSteady:      "steady",
	StateClosing:     "closing",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Connected reports whether the session is subscribed.
func (s State) Connected() bool {
	return s == StateSubscribed || s == StateSteady
}

// Config configures a Client.
type Config struct {
	// Endpoint is the ws:// or wss:// URL of the event bus. Required.
	Endpoint string

	// APIHost is the host named in the authorization object. Empty
	// uses the Endpoint host.
	APIHost string

	// HeaderAuth appends the base64 authorization header to the
	// connection URL.
	HeaderAuth bool

	// AccountID is the $accountId variable of every subscription.
	// Required.
	AccountID string

	// Token returns the current bearer token. It is called once per
	// session. Required.
	Token func() string

	// Subscriptions are started on every session. Empty means
	// DefaultSubscriptions.
	Subscriptions []Subscription

	// MaxRetries bounds consecutive failed sessions.
	MaxRetries int

	// Reconnect delays grow from BaseBackoff, doubling, capped at
	// MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration

	// KeepAliveWarn is the keep-alive gap that logs a warning.
	KeepAliveWarn time.Duration

	// ReadTimeoutSlack is added to the server keep-alive interval to
	// form the steady-state read timeout.
	ReadTimeoutSlack time.Duration

	// HandshakeTimeout bounds the dial and each handshake read.
	HandshakeTimeout time.Duration

	// StopTimeout bounds the wait for complete frames after stop.
	StopTimeout time.Duration

	// QueueCapacity bounds each consumer queue.
	QueueCapacity int

	// Dialer opens connections. Nil uses a dialer with the graphql-ws
	// subprotocol.
	Dialer *websocket.Dialer

	// OnStateChange is called after every transition, never
	// concurrently. It must not block.
	OnStateChange func(State)

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *Metrics
}

// Client maintains a subscription session and its consumer queues.
// The queues outlive sessions: Run may reconnect any number of times
// and consumers keep reading the same channels.
type Client struct {
	endpoint      string
	apiHost       string
	headerAuth    bool
	accountID     string
	token         func() string
	subscriptions []Subscription

	maxRetries       int
	baseBackoff      time.Duration
	maxBackoff       time.Duration
	keepAliveWarn    time.Duration
	readTimeoutSlack time.Duration
	handshakeTimeout time.Duration
	stopTimeout      time.Duration

	dialer        *websocket.Dialer
	onStateChange func(State)
	clock         clock.Clock
	logger        *slog.Logger
	metrics       *Metrics

	queues *queues
	state  atomic.Int32

	connectAttempts   atomic.Int64
	reconnects        atomic.Int64
	keepAliveWarnings atomic.Int64
	protocolErrors    atomic.Int64

	mu                sync.Mutex
	keepAliveInterval time.Duration
	lastKeepAlive     time.Time
	cancel            context.CancelFunc
	done              chan struct{}
	runErr            error
}

// NewClient validates cfg and returns an idle Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("messaging: Config.Endpoint is required")
	}
	endpoint, err := url.Parse(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("messaging: invalid Endpoint %q: %w", cfg.Endpoint, err)
	}
	if endpoint.Scheme != "ws" && endpoint.Scheme != "wss" {
		return nil, fmt.Errorf("messaging: Endpoint %q is not a ws:// or wss:// URL", cfg.Endpoint)
	}
	if cfg.AccountID == "" {
		return nil, errors.New("messaging: Config.AccountID is required")
	}
	if cfg.Token == nil {
		return nil, errors.New("messaging: Config.Token is required")
	}
	for _, sub := range cfg.Subscriptions {
		if sub.Query == "" || sub.Field == "" {
			return nil, fmt.Errorf("messaging: subscription %q needs a Query and a Field", sub.Name)
		}
	}

	c := &Client{
		endpoint:         cfg.Endpoint,
		apiHost:          cfg.APIHost,
		headerAuth:       cfg.HeaderAuth,
		accountID:        cfg.AccountID,
		token:            cfg.Token,
		subscriptions:    cfg.Subscriptions,
		maxRetries:       orDefault(cfg.MaxRetries, DefaultMaxRetries),
		baseBackoff:      orDefault(cfg.BaseBackoff, DefaultBaseBackoff),
		maxBackoff:       orDefault(cfg.MaxBackoff, DefaultMaxBackoff),
		keepAliveWarn:    orDefault(cfg.KeepAliveWarn, DefaultKeepAliveWarn),
		readTimeoutSlack: orDefault(cfg.ReadTimeoutSlack, DefaultReadTimeoutSlack),
		handshakeTimeout: orDefault(cfg.HandshakeTimeout, DefaultHandshakeTimeout),
		stopTimeout:      orDefault(cfg.StopTimeout, DefaultStopTimeout),
		dialer:           cfg.Dialer,
		onStateChange:    cfg.OnStateChange,
		clock:            cfg.Clock,
		logger:           cfg.Logger,
		metrics:          cfg.Metrics,
	}
	if c.apiHost == "" {
		c.apiHost = endpoint.Host
	}
	if len(c.subscriptions) == 0 {
		c.subscriptions = DefaultSubscriptions()
	}
	if c.maxBackoff < c.baseBackoff {
		c.maxBackoff = c.baseBackoff
	}
	if c.dialer == nil {
		c.dialer = &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: c.handshakeTimeout,
			Subprotocols:     []string{Subprotocol},
		}
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	c.queues = newQueues(orDefault(cfg.QueueCapacity, DefaultQueueCapacity), c.logger, c.metrics)
	return c, nil
}

func orDefault[T int | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

// Chat returns the chat consumer queue.
func (c *Client) Chat() <-chan Message { return c.queues.chat }

// RPA returns the automation-control consumer queue.
func (c *Client) RPA() <-chan Message { return c.queues.rpa }

// Monitor returns the queue for logs, heartbeats, and every other
// message type.
func (c *Client) Monitor() <-chan Message { return c.queues.monitor }

// State returns the current session state.
func (c *Client) State() State { return State(c.state.Load()) }

// WANConnected reports whether a session is subscribed.
func (c *Client) WANConnected() bool { return c.State().Connected() }

func (c *Client) setState(s State) {
	if State(c.state.Swap(int32(s))) == s {
		return
	}
	c.metrics.setConnected(s.Connected())
	c.logger.Debug("subscription state", "state", s.String())
	if c.onStateChange != nil {
		c.onStateChange(s)
	}
}

// Run connects and reconnects until ctx is done or MaxRetries
// consecutive sessions fail. Cancellation returns nil; exhaustion
// returns an error wrapping ErrMaxRetries and the last session error.
// The failure count resets whenever a session reaches subscribed.
func (c *Client) Run(ctx context.Context) error {
	delays := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.baseBackoff),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0),
		backoff.WithMaxInterval(c.maxBackoff),
		backoff.WithMaxElapsedTime(0),
	)

	failures := 0
	for {
		subscribed, err := c.runSession(ctx)
		c.setState(StateClosed)
		if ctx.Err() != nil {
			c.logger.Info("subscription stopped")
			return nil
		}
		if subscribed {
			failures = 0
			delays.Reset()
		}
		failures++
		if failures >= c.maxRetries {
			c.logger.Error("subscription reconnect attempts exhausted",
				"attempts", failures,
				"error", err,
			)
			return fmt.Errorf("%w after %d attempts: %w", ErrMaxRetries, failures, err)
		}

		delay := delays.NextBackOff()
		c.reconnects.Add(1)
		c.metrics.observeReconnect()
		if err != nil {
			c.logger.Warn("subscription session ended, reconnecting",
				"error", err,
				"attempt", failures,
				"delay", delay,
			)
		} else {
			c.logger.Info("subscription completed by server, reconnecting", "delay", delay)
		}
		select {
		case <-ctx.Done():
			c.logger.Info("subscription stopped")
			return nil
		case <-c.clock.After(delay):
		}
	}
}

// Start runs the client in a goroutine. It fails if the client is
// already running.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		return errors.New("messaging: client already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel, c.done, c.runErr = cancel, done, nil
	go func() {
		err := c.Run(ctx)
		c.mu.Lock()
		c.runErr = err
		c.mu.Unlock()
		close(done)
	}()
	return nil
}

// Done is closed when a started client has stopped. It is nil before
// Start.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Stop ends a started client: the live session sends stop and drains
// until complete, and no reconnect follows. It returns the Run error,
// which is nil unless retries had already been exhausted.
func (c *Client) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	cancel()
	<-done

	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.runErr
	c.cancel, c.done = nil, nil
	return err
}

// Stats describes the client.
type Stats struct {
	State             string        `json:"state"`
	WANConnected      bool          `json:"wan_connected"`
	ConnectAttempts   int64         `json:"connect_attempts"`
	Reconnects        int64         `json:"reconnects"`
	KeepAliveWarnings int64         `json:"keepalive_warnings"`
	ProtocolErrors    int64         `json:"protocol_errors"`
	Delivered         int64         `json:"delivered"`
	Dropped           int64         `json:"dropped"`
	KeepAliveInterval time.Duration `json:"keepalive_interval"`
	LastKeepAlive     time.Time     `json:"last_keepalive,omitzero"`
}

// Stats returns a snapshot.
func (c *Client) Stats() Stats {
	state := c.State()
	stats := Stats{
		State:             state.String(),
		WANConnected:      state.Connected(),
		ConnectAttempts:   c.connectAttempts.Load(),
		Reconnects:        c.reconnects.Load(),
		KeepAliveWarnings: c.keepAliveWarnings.Load(),
		ProtocolErrors:    c.protocolErrors.Load(),
		Delivered:         c.queues.delivered.Load(),
		Dropped:           c.queues.dropped.Load(),
	}
	c.mu.Lock()
	stats.KeepAliveInterval = c.keepAliveInterval
	stats.LastKeepAlive = c.lastKeepAlive
	c.mu.Unlock()
	return stats
}

// recordKeepAlive stores a keep-alive and reports the gap since the
// previous one. The first keep-alive of a session has no gap.
func (c *Client) recordKeepAlive(now time.Time, first bool) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var gap time.Duration
	if !first && !c.lastKeepAlive.IsZero() {
		gap = now.Sub(c.lastKeepAlive)
	}
	c.lastKeepAlive = now
	return gap
}

func (c *Client) setKeepAliveInterval(interval time.Duration) {
	c.mu.Lock()
	c.keepAliveInterval = interval
	c.mu.Unlock()
}
