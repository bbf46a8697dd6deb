// Package firebase adapts Firebase Authentication as the identity provider
// consulted first when resolving a purchaser's email address.
package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
)

// AuthClient is the subset of *auth.Client used for lookups.
type AuthClient interface {
	GetUser(ctx context.Context, uid string) (*auth.UserRecord, error)
}

// NewAuthClient initializes a Firebase app with application default credentials.
func NewAuthClient(ctx context.Context, projectID string) (*auth.Client, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase auth client: %w", err)
	}
	return client, nil
}

// IdentityProvider looks up a user's email in Firebase Authentication.
type IdentityProvider struct {
	client AuthClient
}

func NewIdentityProvider(client AuthClient) *IdentityProvider {
	return &IdentityProvider{client: client}
}

func (p *IdentityProvider) Name() string { return "identity-provider" }

// LookupEmail returns the account email, or found=false when the user does not
// exist or has no email on record.
func (p *IdentityProvider) LookupEmail(ctx context.Context, userID string) (string, bool, error) {
	record, err := p.client.GetUser(ctx, userID)
	if err != nil {
		if auth.IsUserNotFound(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("getting auth user %s: %w", userID, err)
	}
	if record == nil || record.UserInfo == nil || record.Email == "" {
		return "", false, nil
	}
	return record.Email, true, nil
}
