package payloads

import (
	"github.com/google/uuid"

	dbtypes "github.com/angelmondragon/catalog-backend/pkg/db/types"
)

// ProductChangedEvent is emitted for product_created and product_updated. For a
// master MasterID is nil and VariantName is empty.
type ProductChangedEvent struct {
	ProductID   uuid.UUID          `json:"product_id"`
	MasterID    *uuid.UUID         `json:"master_id"`
	CommonName  string             `json:"common_name"`
	VariantName *string            `json:"variant_name"`
	Slug        string             `json:"slug"`
	BrandID     *uuid.UUID         `json:"brand_id"`
	CategoryID  *uuid.UUID         `json:"category_id"`
	MainPhoto   *dbtypes.Photo     `json:"main_photo"`
	Photos      dbtypes.PhotoList  `json:"photos"`
	VideoURLs   dbtypes.StringList `json:"video_urls"`
	Description *string            `json:"description"`
	IsVisible   bool               `json:"is_visible"`
}

type ProductDeletedEvent struct {
	ProductID uuid.UUID `json:"product_id"`
}

type MasterDeletedEvent struct {
	MasterID uuid.UUID `json:"master_id"`
}

// ProductsBulkRenamedEvent announces that every variant slug under the master
// had MasterProductSlug replaced with NewSlug.
type ProductsBulkRenamedEvent struct {
	MasterID          uuid.UUID `json:"master_id"`
	MasterProductSlug string    `json:"master_product_slug"`
	NewSlug           string    `json:"new_slug"`
	CommonName        string    `json:"common_name"`
}

// ActivityRecordedEvent is the audit trail entry for a catalog mutation.
type ActivityRecordedEvent struct {
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	ActorID    *uuid.UUID     `json:"actor_id,omitempty"`
	Changes    map[string]any `json:"changes,omitempty"`
}
