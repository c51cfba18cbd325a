// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/pflag"

	"github.com/agentcloud/agentsync/cmd/agentsync/cli"
	"github.com/agentcloud/agentsync/lib/bearer"
	"github.com/agentcloud/agentsync/lib/config"
	"github.com/agentcloud/agentsync/messaging"
)

// event is one line of subscribe output.
type event struct {
	Queue string `json:"queue"`
	messaging.Message
}

func (a *app) subscribeCommand() *cli.Command {
	var (
		global  globalOptions
		account string
	)
	return &cli.Command{
		Name:    "subscribe",
		Summary: "Stream the account's bus events as JSON lines",
		Description: `Subscribe opens the realtime subscription for the account, prints
every chat, RPA, and monitor event as one JSON line, and reconnects
with backoff when the connection drops. It stops on SIGINT or SIGTERM,
or after subscription.max_retries consecutive failed connections.

The account id comes from the token's custom:account_id claim (or its
subject) unless --account is given. The realtime endpoint defaults to
the AppSync realtime host of cloud.endpoint.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("subscribe", pflag.ContinueOnError)
			global.addFlags(flagSet)
			flagSet.StringVar(&account, "account", "", "account id (default from the token)")
			return flagSet
		},
		Run: func(ctx context.Context, _ []string) error {
			e, err := a.open(global, "subscribe")
			if err != nil {
				return err
			}
			token := e.host.AuthToken()
			if token == "" {
				return errors.New("no auth token: set " + envToken + " or write cloud.token_file")
			}
			if account == "" {
				if account, err = accountFromToken(token, time.Now(), e); err != nil {
					return err
				}
			}
			target, err := realtimeTarget(e.config)
			if err != nil {
				return err
			}

			client, err := messaging.NewClient(messaging.Config{
				Endpoint:      target.endpoint,
				APIHost:       target.apiHost,
				HeaderAuth:    target.headerAuth,
				AccountID:     account,
				Token:         e.host.AuthToken,
				MaxRetries:    e.config.Subscription.MaxRetries,
				BaseBackoff:   e.config.Subscription.BaseBackoff,
				MaxBackoff:    e.config.Subscription.MaxBackoff,
				KeepAliveWarn: e.config.Subscription.KeepAliveWarn,
				QueueCapacity: e.config.Subscription.QueueCapacity,
				OnStateChange: func(state messaging.State) {
					e.logger.Debug("subscription state", "state", state.String())
				},
				Logger:  e.logger,
				Metrics: messaging.MustNewMetrics(e.registry),
			})
			if err != nil {
				return err
			}

			stopMetrics, err := e.serveMetrics(ctx)
			if err != nil {
				return err
			}
			defer stopMetrics()

			if err := client.Start(ctx); err != nil {
				return err
			}
			return a.stream(ctx, client)
		},
	}
}

// stream writes events until ctx ends or the client gives up.
func (a *app) stream(ctx context.Context, client *messaging.Client) error {
	for {
		var out event
		select {
		case <-ctx.Done():
			return client.Stop()
		case <-client.Done():
			return client.Stop()
		case out.Message = <-client.Chat():
			out.Queue = messaging.RouteChat.String()
		case out.Message = <-client.RPA():
			out.Queue = messaging.RouteRPA.String()
		case out.Message = <-client.Monitor():
			out.Queue = messaging.RouteMonitor.String()
		}
		if err := cli.WriteJSONLine(a.stdout, out); err != nil {
			_ = client.Stop()
			return err
		}
	}
}

// accountFromToken reads the account id from the token's claims and
// warns when the token has already expired.
func accountFromToken(token string, now time.Time, e *env) (string, error) {
	claims, err := bearer.Parse(token)
	if err != nil {
		return "", fmt.Errorf("reading account id from token (pass --account to skip): %w", err)
	}
	if claims.AccountID == "" {
		return "", errors.New("token has no account id or subject; pass --account")
	}
	if claims.Expired(now) {
		e.logger.Warn("auth token has expired", "expired_at", claims.ExpiresAt, "account", claims.AccountID)
	}
	return claims.AccountID, nil
}

type realtime struct {
	endpoint   string
	apiHost    string
	headerAuth bool
}

// realtimeTarget picks the WebSocket endpoint. A derived AppSync
// endpoint carries its authorization in the URL; an explicit one uses
// the start frame alone.
func realtimeTarget(cfg *config.Config) (realtime, error) {
	if explicit := cfg.Subscription.Endpoint; explicit != "" {
		target := realtime{endpoint: explicit}
		if u, err := url.Parse(cfg.Cloud.Endpoint); err == nil && u.Host != "" {
			target.apiHost = u.Host
		}
		return target, nil
	}
	if cfg.Cloud.Endpoint == "" {
		return realtime{}, errors.New("neither subscription.endpoint nor cloud.endpoint is configured")
	}
	endpoint, apiHost, err := messaging.RealtimeURL(cfg.Cloud.Endpoint)
	if err != nil {
		return realtime{}, err
	}
	return realtime{endpoint: endpoint, apiHost: apiHost, headerAuth: true}, nil
}
