package credential

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

var ErrNotStored = errors.New("no credential stored")

// StoredCredential is the row written by the sign-in service after an OAuth exchange.
type StoredCredential struct {
	UserId       string
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

type Repository interface {
	Save(ctx context.Context, c StoredCredential) error
	Get(ctx context.Context, userId string) (StoredCredential, error)
	Delete(ctx context.Context, userId string) error
}

type RepositoryImpl struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *RepositoryImpl {
	return &RepositoryImpl{db: db}
}

func (r *RepositoryImpl) Save(ctx context.Context, c StoredCredential) error {
	query := `INSERT INTO calendar_credentials (user_id, access_token, refresh_token, expiry, updated_at)
				VALUES ($1, $2, $3, $4, now())
				ON CONFLICT (user_id) DO UPDATE
				SET access_token = EXCLUDED.access_token, refresh_token = EXCLUDED.refresh_token,
					expiry = EXCLUDED.expiry, updated_at = now()`
	var expiry *int64
	if !c.Expiry.IsZero() {
		unix := c.Expiry.Unix()
		expiry = &unix
	}
	_, err := r.db.Exec(ctx, query, c.UserId, c.AccessToken, c.RefreshToken, expiry)
	if err != nil {
		log.Errorf("failed to store credential for user %s: %v", c.UserId, err)
		return err
	}
	return nil
}

func (r *RepositoryImpl) Get(ctx context.Context, userId string) (StoredCredential, error) {
	query := `SELECT user_id, access_token, refresh_token, expiry FROM calendar_credentials WHERE user_id = $1`
	var c StoredCredential
	var expiry *int64
	err := r.db.QueryRow(ctx, query, userId).Scan(&c.UserId, &c.AccessToken, &c.RefreshToken, &expiry)
	if errors.Is(err, pgx.ErrNoRows) {
		log.Debugf("no credential stored for user %s", userId)
		return StoredCredential{}, ErrNotStored
	} else if err != nil {
		log.Errorf("failed to get credential for user %s: %v", userId, err)
		return StoredCredential{}, err
	}
	if expiry != nil {
		c.Expiry = time.Unix(*expiry, 0)
	}
	return c, nil
}

func (r *RepositoryImpl) Delete(ctx context.Context, userId string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM calendar_credentials WHERE user_id = $1`, userId)
	if err != nil {
		log.Errorf("failed to delete credential for user %s: %v", userId, err)
		return err
	}
	return nil
}
