// Package consumers applies offer and review aggregates pushed by the shop and
// review services onto catalog products.
package consumers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/angelmondragon/catalog-backend/pkg/metrics"
)

type idempotencyChecker interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, messageID string) (bool, error)
	Delete(ctx context.Context, consumer, messageID string) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// errMalformed marks a message that can never be applied.
var errMalformed = errors.New("malformed message")

// applyFunc writes one decoded message and returns the number of rows touched.
type applyFunc func(ctx context.Context, data json.RawMessage) (int64, error)

// consumer is the receive loop shared by the offers and reviews consumers.
type consumer struct {
	name         string
	subscription receiver
	manager      idempotencyChecker
	metrics      *metrics.ConsumerMetrics
	logg         *logger.Logger
	apply        applyFunc
	now          func() time.Time
}

func newConsumer(name string, subscription receiver, manager idempotencyChecker, m *metrics.ConsumerMetrics, logg *logger.Logger, apply applyFunc) (*consumer, error) {
	if subscription == nil {
		return nil, fmt.Errorf("%s subscription is required", name)
	}
	if manager == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &consumer{
		name:         name,
		subscription: subscription,
		manager:      manager,
		metrics:      m,
		logg:         logg,
		apply:        apply,
		now:          time.Now,
	}, nil
}

// Run processes messages until the context is canceled or the subscription errors.
func (c *consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.process(ctx, msg.ID, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// process handles one message and reports whether it should be acked.
// Missing products, constraint conflicts and malformed payloads are acked;
// other store failures are nacked so Pub/Sub redelivers.
func (c *consumer) process(ctx context.Context, messageID string, body []byte) bool {
	started := c.now()
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"consumer":   c.name,
		"message_id": messageID,
	})

	data, err := unwrapEnvelope(body)
	if err != nil {
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "dropping malformed message")
		c.observe(metrics.OutcomeMalformed, started)
		return true
	}

	already, err := c.manager.CheckAndMarkProcessed(ctx, c.name, messageID)
	if err != nil {
		// The write is a plain overwrite, so a failed check falls through to apply.
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "idempotency check failed")
	} else if already {
		c.logg.Info(logCtx, "message already processed")
		c.observe(metrics.OutcomeDuplicate, started)
		return true
	}

	rows, err := c.apply(logCtx, data)
	switch {
	case errors.Is(err, errMalformed):
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "dropping malformed message")
		c.observe(metrics.OutcomeMalformed, started)
		return true
	case err != nil && (db.IsUniqueViolation(err, "") || db.IsForeignKeyViolation(err)):
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "constraint conflict, message skipped")
		c.observe(metrics.OutcomeSkipped, started)
		return true
	case err != nil:
		c.logg.Error(logCtx, "failed to apply message", err)
		if delErr := c.manager.Delete(ctx, c.name, messageID); delErr != nil {
			c.logg.Warn(c.logg.WithField(logCtx, "error", delErr.Error()), "failed to release idempotency key")
		}
		c.observe(metrics.OutcomeRetried, started)
		return false
	case rows == 0:
		c.logg.Warn(logCtx, "product not found, message skipped")
		c.observe(metrics.OutcomeSkipped, started)
		return true
	}

	c.logg.Info(logCtx, "message applied")
	c.observe(metrics.OutcomeApplied, started)
	return true
}

func (c *consumer) observe(outcome string, started time.Time) {
	c.metrics.Observe(c.name, outcome, c.now().Sub(started))
}

// unwrapEnvelope accepts either the bare object or an outbox style envelope
// whose data field carries it.
func unwrapEnvelope(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: body is not a json object", errMalformed)
	}
	var probe struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	if inner := bytes.TrimSpace(probe.Data); len(inner) > 0 && inner[0] == '{' {
		return inner, nil
	}
	return trimmed, nil
}

func decodeMessage(data json.RawMessage, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}
