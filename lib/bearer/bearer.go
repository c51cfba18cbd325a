// Copyright 2026 The Agentsync Authors
// SPDX-License-Identifier: Apache-2.0

package bearer

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// AccountIDClaim is the custom claim carrying the platform account id.
const AccountIDClaim = "custom:account_id"

// ErrEmptyToken is returned by Parse for a blank token.
var ErrEmptyToken = errors.New("bearer: empty token")

// Claims are the token fields the host uses.
type Claims struct {
	Subject string `json:"sub,omitempty"`
	Email   string `json:"email,omitempty"`

	// AccountID is custom:account_id, or the subject when the token
	// has no account claim.
	AccountID string `json:"account_id,omitempty"`

	// ExpiresAt is zero when the token has no exp claim.
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// Expired reports whether the token had expired at now. Tokens
// without an expiry never expire.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// StripScheme removes a leading "Bearer " from an Authorization value.
func StripScheme(token string) string {
	token = strings.TrimSpace(token)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}

// Parse decodes the claims of token. The signature is not checked.
func Parse(token string) (Claims, error) {
	token = StripScheme(token)
	if token == "" {
		return Claims{}, ErrEmptyToken
	}

	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("bearer: %w", err)
	}
	mapClaims := parsed.Claims.(gojwt.MapClaims)

	var claims Claims
	if subject, err := mapClaims.GetSubject(); err == nil {
		claims.Subject = subject
	}
	if email, ok := mapClaims["email"].(string); ok {
		claims.Email = email
	}
	claims.AccountID = claims.Subject
	if accountID, ok := mapClaims[AccountIDClaim].(string); ok && accountID != "" {
		claims.AccountID = accountID
	}
	expiresAt, err := mapClaims.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("bearer: exp claim: %w", err)
	}
	if expiresAt != nil {
		claims.ExpiresAt = expiresAt.Time.UTC()
	}
	return claims, nil
}
