// Package domain models the order confirmation email and how its recipient is found.
package domain

import (
	"context"
	"errors"
	"fmt"
)

// EmailLookup is one source of a user's email address.
type EmailLookup interface {
	// Name identifies the source in logs.
	Name() string
	// LookupEmail reports found=false when the source has no address for userID.
	LookupEmail(ctx context.Context, userID string) (email string, found bool, err error)
}

// ProfileRecorder keeps the address of a newly registered user for later lookups.
type ProfileRecorder interface {
	RecordEmail(ctx context.Context, userID, email string) error
}

// RecipientResolver consults lookups in order and returns the first address found.
// A failing source is recorded and the next one is tried.
type RecipientResolver struct {
	lookups []EmailLookup
}

func NewRecipientResolver(lookups ...EmailLookup) *RecipientResolver {
	return &RecipientResolver{lookups: lookups}
}

// Resolve returns ErrRecipientUnresolvable, joined with any source errors,
// when no source yields an address.
func (r *RecipientResolver) Resolve(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: order has no user", ErrRecipientUnresolvable)
	}

	var errs []error
	for _, lookup := range r.lookups {
		email, found, err := lookup.LookupEmail(ctx, userID)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", lookup.Name(), err))
			continue
		}
		if found && email != "" {
			return email, nil
		}
	}

	err := fmt.Errorf("%w: user %s", ErrRecipientUnresolvable, userID)
	if len(errs) > 0 {
		return "", errors.Join(append([]error{err}, errs...)...)
	}
	return "", err
}
