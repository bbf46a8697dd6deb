package persistence

import (
	"context"
	"sync"

	"github.com/rai/storefront-triggers/modules/notifications/domain"
)

// InMemoryProfileStore keeps user emails in memory. It is filled from
// user-created events when it backs the memory driver.
type InMemoryProfileStore struct {
	mu     sync.RWMutex
	emails map[string]string
}

func NewInMemoryProfileStore() *InMemoryProfileStore {
	return &InMemoryProfileStore{emails: make(map[string]string)}
}

// RecordEmail stores the email of userID, replacing any previous address.
func (s *InMemoryProfileStore) RecordEmail(ctx context.Context, userID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails[userID] = email
	return nil
}

func (s *InMemoryProfileStore) Name() string { return ProfileSourceName }

func (s *InMemoryProfileStore) LookupEmail(ctx context.Context, userID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email, ok := s.emails[userID]
	if !ok || email == "" {
		return "", false, nil
	}
	return email, true, nil
}

var (
	_ domain.EmailLookup     = (*InMemoryProfileStore)(nil)
	_ domain.ProfileRecorder = (*InMemoryProfileStore)(nil)
)
