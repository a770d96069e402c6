package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	"github.com/angelmondragon/catalog-backend/pkg/outbox"
	"github.com/angelmondragon/catalog-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to the aggregates it may be emitted for,
// its topic and its payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateTypes []enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

func (d EventDescriptor) accepts(aggregate enums.OutboxAggregateType) bool {
	for _, candidate := range d.AggregateTypes {
		if candidate == aggregate {
			return true
		}
	}
	return false
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.ProductTopic == "" {
		return nil, fmt.Errorf("product topic is required")
	}
	if cfg.ActivityTopic == "" {
		return nil, fmt.Errorf("activity topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	anyProduct := []enums.OutboxAggregateType{enums.AggregateProduct, enums.AggregateMasterProduct}
	masterOnly := []enums.OutboxAggregateType{enums.AggregateMasterProduct}

	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventProductCreated,
			AggregateTypes: anyProduct,
			Topic:          cfg.ProductTopic,
			PayloadFactory: func() interface{} { return &payloads.ProductChangedEvent{} },
		},
		{
			EventType:      enums.EventProductUpdated,
			AggregateTypes: anyProduct,
			Topic:          cfg.ProductTopic,
			PayloadFactory: func() interface{} { return &payloads.ProductChangedEvent{} },
		},
		{
			EventType:      enums.EventProductDeleted,
			AggregateTypes: []enums.OutboxAggregateType{enums.AggregateProduct},
			Topic:          cfg.ProductTopic,
			PayloadFactory: func() interface{} { return &payloads.ProductDeletedEvent{} },
		},
		{
			EventType:      enums.EventMasterDeleted,
			AggregateTypes: masterOnly,
			Topic:          cfg.ProductTopic,
			PayloadFactory: func() interface{} { return &payloads.MasterDeletedEvent{} },
		},
		{
			EventType:      enums.EventProductsBulkRenamed,
			AggregateTypes: masterOnly,
			Topic:          cfg.ProductTopic,
			PayloadFactory: func() interface{} { return &payloads.ProductsBulkRenamedEvent{} },
		},
	} {
		reg.register(desc)
	}
	reg.register(EventDescriptor{
		EventType:      enums.EventActivityRecorded,
		AggregateTypes: anyProduct,
		Topic:          cfg.ActivityTopic,
		PayloadFactory: func() interface{} { return &payloads.ActivityRecordedEvent{} },
	})

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if !desc.accepts(event.AggregateType) {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate %s not allowed for %s", event.AggregateType, event.EventType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}

	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", event.EventType))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
