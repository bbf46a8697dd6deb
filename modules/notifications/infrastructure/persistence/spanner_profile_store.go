// Package persistence implements the user-profile email lookups.
package persistence

import (
	"context"
	"fmt"

	"cloud.google.com/go/spanner"
	"google.golang.org/grpc/codes"

	"github.com/rai/storefront-triggers/modules/notifications/domain"
)

// ProfileSourceName identifies the user-profile store in logs.
const ProfileSourceName = "user-profiles"

// SpannerProfileDDL creates the UserProfiles table.
var SpannerProfileDDL = []string{
	`CREATE TABLE IF NOT EXISTS UserProfiles (
		UserID STRING(MAX) NOT NULL,
		Email STRING(MAX),
		DisplayName STRING(MAX),
	) PRIMARY KEY (UserID)`,
}

// SpannerProfileStore reads contact details from the UserProfiles table.
type SpannerProfileStore struct {
	client *spanner.Client
}

func NewSpannerProfileStore(client *spanner.Client) *SpannerProfileStore {
	return &SpannerProfileStore{client: client}
}

func (s *SpannerProfileStore) Name() string { return ProfileSourceName }

func (s *SpannerProfileStore) LookupEmail(ctx context.Context, userID string) (string, bool, error) {
	row, err := s.client.Single().ReadRow(ctx, "UserProfiles", spanner.Key{userID}, []string{"Email"})
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read user profile: %w", err)
	}

	var email spanner.NullString
	if err := row.Columns(&email); err != nil {
		return "", false, fmt.Errorf("failed to scan user profile: %w", err)
	}
	if !email.Valid || email.StringVal == "" {
		return "", false, nil
	}
	return email.StringVal, true, nil
}

var _ domain.EmailLookup = (*SpannerProfileStore)(nil)
