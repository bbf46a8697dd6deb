package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rai/storefront-triggers/modules/notifications/domain"
)

// ProfileSchema creates the user_profiles table when it does not exist.
const ProfileSchema = `
CREATE TABLE IF NOT EXISTS user_profiles (
	user_id      TEXT PRIMARY KEY,
	email        TEXT,
	display_name TEXT
);
`

// PostgresProfileStore reads contact details from user_profiles.
type PostgresProfileStore struct {
	pool *pgxpool.Pool
}

func NewPostgresProfileStore(pool *pgxpool.Pool) *PostgresProfileStore {
	return &PostgresProfileStore{pool: pool}
}

// Migrate applies ProfileSchema.
func (s *PostgresProfileStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, ProfileSchema); err != nil {
		return fmt.Errorf("failed to migrate profile schema: %w", err)
	}
	return nil
}

func (s *PostgresProfileStore) Name() string { return ProfileSourceName }

func (s *PostgresProfileStore) LookupEmail(ctx context.Context, userID string) (string, bool, error) {
	var email *string
	err := s.pool.QueryRow(ctx, `SELECT email FROM user_profiles WHERE user_id = $1`, userID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read user profile: %w", err)
	}
	if email == nil || *email == "" {
		return "", false, nil
	}
	return *email, true, nil
}

var _ domain.EmailLookup = (*PostgresProfileStore)(nil)
