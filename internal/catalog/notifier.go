package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/enums"
	"github.com/angelmondragon/catalog-backend/pkg/outbox"
)

// Event is one lifecycle notification produced by the rule engine.
type Event struct {
	Type          enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *Actor
	Payload       any
}

// Notifier receives lifecycle events. tx is the transaction of the operation
// that produced the event; implementations may ignore it.
type Notifier interface {
	Publish(ctx context.Context, tx *gorm.DB, event Event) error
}

// OutboxNotifier stores events in outbox_events inside the caller transaction.
type OutboxNotifier struct {
	outbox *outbox.Service
}

func NewOutboxNotifier(svc *outbox.Service) *OutboxNotifier {
	return &OutboxNotifier{outbox: svc}
}

func (n *OutboxNotifier) Publish(ctx context.Context, tx *gorm.DB, event Event) error {
	var actor *outbox.ActorRef
	if event.Actor != nil && event.Actor.UserID != uuid.Nil {
		actor = &outbox.ActorRef{UserID: event.Actor.UserID, Role: string(event.Actor.Role)}
	}
	return n.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     event.Type,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Actor:         actor,
		Data:          event.Payload,
	})
}
