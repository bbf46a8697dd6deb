package eventhandlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rai/storefront-triggers/modules/notifications/domain"
	"github.com/rai/storefront-triggers/modules/shared/events"
	"github.com/rai/storefront-triggers/modules/shared/events/contracts"
)

// UserCreatedHandler records the address of a new user so order confirmations can find it.
type UserCreatedHandler struct {
	recorder domain.ProfileRecorder
	logger   *slog.Logger
}

func NewUserCreatedHandler(recorder domain.ProfileRecorder, logger *slog.Logger) *UserCreatedHandler {
	return &UserCreatedHandler{
		recorder: recorder,
		logger:   logger,
	}
}

func (h *UserCreatedHandler) Handle(ctx context.Context, event events.Event) error {
	userCreated, ok := event.(contracts.UserCreatedEvent)
	if !ok {
		return fmt.Errorf("%w: %T", contracts.ErrUnexpectedEventType, event)
	}

	if userCreated.User == nil || userCreated.UserID == "" || userCreated.User.Email == "" {
		h.logger.Debug("user created without address, nothing to record", slog.String("user_id", userCreated.UserID))
		return nil
	}

	if err := h.recorder.RecordEmail(ctx, userCreated.UserID, userCreated.User.Email); err != nil {
		h.logger.Error("failed to record user email", slog.String("user_id", userCreated.UserID), slog.Any("error", err))
	}
	return nil
}
