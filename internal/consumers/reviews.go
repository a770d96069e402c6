package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/angelmondragon/catalog-backend/pkg/metrics"
)

const reviewsConsumerName = "reviews"

type reviewsWriter interface {
	ApplyReviews(ctx context.Context, productID uuid.UUID, count int, rating *float64) (int64, error)
}

// ReviewMessage carries the review aggregate of one product.
type ReviewMessage struct {
	ProductID    uuid.UUID `json:"product_id"`
	ReviewsCount int       `json:"reviews_count"`
	Rating       *float64  `json:"rating"`
}

func (m ReviewMessage) validate() error {
	if m.ProductID == uuid.Nil {
		return errors.New("product_id is required")
	}
	if m.ReviewsCount < 0 {
		return errors.New("reviews_count must be non-negative")
	}
	if m.Rating != nil && (*m.Rating < 0 || *m.Rating > 5) {
		return errors.New("rating must be between 0 and 5")
	}
	return nil
}

type ReviewsConsumer struct {
	*consumer
	repo reviewsWriter
}

func NewReviewsConsumer(repo reviewsWriter, subscription receiver, manager idempotencyChecker, m *metrics.ConsumerMetrics, logg *logger.Logger) (*ReviewsConsumer, error) {
	if repo == nil {
		return nil, errors.New("product repository is required")
	}
	rc := &ReviewsConsumer{repo: repo}
	base, err := newConsumer(reviewsConsumerName, subscription, manager, m, logg, rc.apply)
	if err != nil {
		return nil, err
	}
	rc.consumer = base
	return rc, nil
}

func (c *ReviewsConsumer) apply(ctx context.Context, data json.RawMessage) (int64, error) {
	var msg ReviewMessage
	if err := decodeMessage(data, &msg); err != nil {
		return 0, err
	}
	if err := msg.validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", errMalformed, err)
	}
	c.logg.Debug(c.logg.WithProductID(ctx, msg.ProductID.String()), "applying reviews")
	return c.repo.ApplyReviews(ctx, msg.ProductID, msg.ReviewsCount, msg.Rating)
}
