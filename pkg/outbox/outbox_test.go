package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/internal/testdb"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	"github.com/angelmondragon/catalog-backend/pkg/outbox"
	"github.com/angelmondragon/catalog-backend/pkg/outbox/payloads"
)

func TestEmitStoresEnvelopeKeyedByRowID(t *testing.T) {
	conn := testdb.Open(t)
	repo := outbox.NewRepository(conn)
	svc := outbox.NewService(repo, nil)

	productID := uuid.New()
	actor := &outbox.ActorRef{UserID: uuid.New(), Role: "content_manager"}
	err := svc.Emit(context.Background(), conn, outbox.DomainEvent{
		EventType:     enums.EventProductDeleted,
		AggregateType: enums.AggregateProduct,
		AggregateID:   productID,
		Actor:         actor,
		Data:          payloads.ProductDeletedEvent{ProductID: productID},
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, rows[0].ID.String(), envelope.EventID)
	require.Equal(t, 1, envelope.Version)
	require.NotNil(t, envelope.Actor)
	require.Equal(t, "content_manager", envelope.Actor.Role)

	var data payloads.ProductDeletedEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	require.Equal(t, productID, data.ProductID)
}

func TestEmitRejectsUnknownEventAndMissingTx(t *testing.T) {
	conn := testdb.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)

	err := svc.Emit(context.Background(), nil, outbox.DomainEvent{EventType: enums.EventProductDeleted})
	require.Error(t, err)

	err = svc.Emit(context.Background(), conn, outbox.DomainEvent{EventType: "order_created"})
	require.Error(t, err)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := testdb.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)

	boom := errors.New("boom")
	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventMasterDeleted,
			AggregateType: enums.AggregateMasterProduct,
			AggregateID:   uuid.New(),
			Data:          payloads.MasterDeletedEvent{MasterID: uuid.New()},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := testdb.Open(t)
	repo := outbox.NewRepository(conn)

	first := seedRow(t, conn, repo)
	second := seedRow(t, conn, repo)
	parked := seedRow(t, conn, repo)

	require.NoError(t, repo.MarkTerminalTx(conn, parked, errors.New("bad payload"), 10))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkPublishedTx(conn, first))
	require.NoError(t, repo.MarkFailedTx(conn, second, errors.New("pubsub unavailable")))

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, second, rows[0].ID)
	require.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	require.Equal(t, "pubsub unavailable", *rows[0].LastError)

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 1)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestRepositoryDeletePublishedBefore(t *testing.T) {
	conn := testdb.Open(t)
	repo := outbox.NewRepository(conn)

	published := seedRow(t, conn, repo)
	pending := seedRow(t, conn, repo)
	require.NoError(t, repo.MarkPublishedTx(conn, published))

	deleted, err := repo.DeletePublishedBefore(context.Background(), nil, time.Now().UTC().Add(time.Hour), 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, conn.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, pending, remaining[0].ID)
}

func TestDLQRepositoryTruncatesAndLists(t *testing.T) {
	conn := testdb.Open(t)
	dlq := outbox.NewDLQRepository(conn)

	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	msg := string(long)
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       uuid.New(),
		EventType:     enums.EventProductCreated,
		AggregateType: enums.AggregateProduct,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
		ErrorMessage:  &msg,
	}))

	rows, err := dlq.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, *rows[0].ErrorMessage, 1024)
}

func seedRow(t *testing.T, conn *gorm.DB, repo *outbox.Repository) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, repo.Insert(conn, models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventProductUpdated,
		AggregateType: enums.AggregateProduct,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1,"data":{}}`),
	}))
	return id
}
