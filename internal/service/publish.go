package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/events"
)

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, eventType events.EventType, actor *domain.User, orgID string, payload any) {
	if dispatcher == nil {
		return
	}
	_ = dispatcher.Publish(ctx, events.Event{
		ID:             uuid.NewString(),
		Type:           eventType,
		OrganizationID: orgID,
		ActorID:        actor.ID,
		ActorRole:      actor.Role,
		Timestamp:      time.Now().UTC(),
		Payload:        payload,
	})
}
