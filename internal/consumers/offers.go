package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/angelmondragon/catalog-backend/pkg/metrics"
)

const offersConsumerName = "offers"

type offersWriter interface {
	ApplyOffers(ctx context.Context, productID uuid.UUID, count int, minPrice, oldPrice decimal.NullDecimal) (int64, error)
}

// OfferMessage is the offer aggregate of one product as computed by the shop
// service. It overwrites the stored values.
type OfferMessage struct {
	ProductID uuid.UUID           `json:"product_id"`
	Count     int                 `json:"count"`
	Price     decimal.NullDecimal `json:"price"`
	OldPrice  decimal.NullDecimal `json:"old_price"`
}

func (m OfferMessage) validate() error {
	if m.ProductID == uuid.Nil {
		return errors.New("product_id is required")
	}
	if m.Count < 0 {
		return errors.New("count must be non-negative")
	}
	if m.Price.Valid && m.Price.Decimal.IsNegative() {
		return errors.New("price must be non-negative")
	}
	if m.OldPrice.Valid && m.OldPrice.Decimal.IsNegative() {
		return errors.New("old_price must be non-negative")
	}
	return nil
}

type OffersConsumer struct {
	*consumer
	repo offersWriter
}

func NewOffersConsumer(repo offersWriter, subscription receiver, manager idempotencyChecker, m *metrics.ConsumerMetrics, logg *logger.Logger) (*OffersConsumer, error) {
	if repo == nil {
		return nil, errors.New("product repository is required")
	}
	oc := &OffersConsumer{repo: repo}
	base, err := newConsumer(offersConsumerName, subscription, manager, m, logg, oc.apply)
	if err != nil {
		return nil, err
	}
	oc.consumer = base
	return oc, nil
}

func (c *OffersConsumer) apply(ctx context.Context, data json.RawMessage) (int64, error) {
	var msg OfferMessage
	if err := decodeMessage(data, &msg); err != nil {
		return 0, err
	}
	if err := msg.validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", errMalformed, err)
	}
	c.logg.Debug(c.logg.WithProductID(ctx, msg.ProductID.String()), "applying offers")
	return c.repo.ApplyOffers(ctx, msg.ProductID, msg.Count, msg.Price, msg.OldPrice)
}
