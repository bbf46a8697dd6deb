package contracts

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rai/storefront-triggers/modules/shared/events"
)

// Identity-provider event types.
const (
	UserCreatedEventType events.EventType = "users.UserCreated"
)

// UserRecord is the identity-provider record attached to a user-created notification.
type UserRecord struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UserCreatedEvent is the public contract for identity-provider user creation.
type UserCreatedEvent struct {
	events.BaseEvent
	UserID string      `json:"user_id"`
	User   *UserRecord `json:"user"`
}

func NewUserCreatedEvent(user UserRecord) UserCreatedEvent {
	return UserCreatedEvent{
		BaseEvent: events.NewBaseEvent(UserCreatedEventType, user.UID),
		UserID:    user.UID,
		User:      &user,
	}
}

// DecodeUserCreated decodes a change-feed envelope into a UserCreatedEvent.
func DecodeUserCreated(payload []byte) (events.Event, error) {
	env, err := decodeEnvelope(payload, UserCreatedEventType)
	if err != nil {
		return nil, err
	}

	var user *UserRecord
	if env.hasData() {
		user = &UserRecord{}
		if err := json.Unmarshal(env.Data, user); err != nil {
			return nil, fmt.Errorf("decoding user record: %w", err)
		}
	}

	userID := env.DocumentID
	if userID == "" && user != nil {
		userID = user.UID
	}

	return UserCreatedEvent{
		BaseEvent: env.baseEvent(userID),
		UserID:    userID,
		User:      user,
	}, nil
}
