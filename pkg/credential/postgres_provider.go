package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

const UserIdHeader = "X-User-Id"

// PostgresProvider looks up the token stored for the user named in the X-User-Id header.
type PostgresProvider struct {
	repo Repository
}

func NewPostgresProvider(repo Repository) *PostgresProvider {
	return &PostgresProvider{repo: repo}
}

func (p *PostgresProvider) Credential(ctx context.Context, r *http.Request) (Credential, error) {
	userId := strings.TrimSpace(r.Header.Get(UserIdHeader))
	if userId == "" {
		log.Debug("request has no user id")
		return Credential{}, ErrUnauthorized
	}

	stored, err := p.repo.Get(ctx, userId)
	if errors.Is(err, ErrNotStored) {
		return Credential{}, ErrUnauthorized
	}
	if err != nil {
		return Credential{}, fmt.Errorf("failed to load credential: %w", err)
	}
	return Credential{AccessToken: stored.AccessToken, ExpiresAt: stored.Expiry}, nil
}
