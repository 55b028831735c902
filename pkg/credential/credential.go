package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrExpired      = fmt.Errorf("%w: credential expired", ErrUnauthorized)
)

// Credential is the opaque bearer token the calendar store is called with. The pipeline never
// refreshes it.
type Credential struct {
	AccessToken string
	// ExpiresAt is zero when the expiry is unknown.
	ExpiresAt time.Time
}

func (c Credential) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Check returns ErrUnauthorized for a missing token and ErrExpired for an expired one.
func (c Credential) Check(now time.Time) error {
	if c.AccessToken == "" {
		return ErrUnauthorized
	}
	if c.IsExpired(now) {
		return ErrExpired
	}
	return nil
}

// Provider finds the credential of an inbound request.
type Provider interface {
	Credential(ctx context.Context, r *http.Request) (Credential, error)
}

// Message is the user-facing text for an authorization failure.
func Message(err error) string {
	if errors.Is(err, ErrExpired) {
		return "Authentication expired, please sign in again"
	}
	return "Unauthorized"
}

type contextKey string

const credentialKey contextKey = "credential"

func WithCredential(ctx context.Context, c Credential) context.Context {
	return context.WithValue(ctx, credentialKey, c)
}

// Current returns the credential attached to ctx. Returns ErrUnauthorized if none is present.
func Current(ctx context.Context) (Credential, error) {
	c, ok := ctx.Value(credentialKey).(Credential)
	if !ok {
		log.Trace("credential not found in context")
		return Credential{}, ErrUnauthorized
	}
	return c, nil
}
