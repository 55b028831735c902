package credential

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const ExpiresAtHeader = "X-Token-Expires-At"

// HeaderProvider reads an "Authorization: Bearer" header. The optional X-Token-Expires-At header
// holds the expiry as RFC 3339 or unix seconds; an expiry that cannot be read is refused.
type HeaderProvider struct{}

func NewHeaderProvider() HeaderProvider {
	return HeaderProvider{}
}

func (HeaderProvider) Credential(_ context.Context, r *http.Request) (Credential, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		log.Debug("request has no bearer token")
		return Credential{}, ErrUnauthorized
	}

	c := Credential{AccessToken: strings.TrimSpace(token)}
	if raw := strings.TrimSpace(r.Header.Get(ExpiresAtHeader)); raw != "" {
		expiresAt, err := parseExpiry(raw)
		if err != nil {
			log.Debugf("rejecting unreadable %s header %q: %v", ExpiresAtHeader, raw, err)
			return Credential{}, ErrUnauthorized
		}
		c.ExpiresAt = expiresAt
	}
	return c, nil
}

func parseExpiry(raw string) (time.Time, error) {
	if seconds, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(seconds, 0), nil
	}
	return time.Parse(time.RFC3339, raw)
}
