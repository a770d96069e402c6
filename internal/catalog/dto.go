package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/catalog-backend/pkg/db/types"
)

// RefDTO is a reference to an externally owned row.
type RefDTO struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type FeatureValueDTO struct {
	ID    uuid.UUID `json:"id"`
	Value string    `json:"value"`
}

// FeatureDTO groups the selected values of one visible feature.
type FeatureDTO struct {
	ID            uuid.UUID         `json:"id"`
	Name          string            `json:"name"`
	IsMultichoice bool              `json:"is_multichoice"`
	Values        []FeatureValueDTO `json:"values"`
}

// MasterDetail is the read model of a master product.
type MasterDetail struct {
	ID                uuid.UUID          `json:"id"`
	CommonName        string             `json:"common_name"`
	Slug              string             `json:"slug"`
	Brand             *RefDTO            `json:"brand"`
	Category          *RefDTO            `json:"category"`
	Description       *string            `json:"description"`
	MainPhoto         *dbtypes.Photo     `json:"main_photo"`
	MiniaturePhoto    *dbtypes.Photo     `json:"miniature_photo"`
	Photos            dbtypes.PhotoList  `json:"photos"`
	VideoURLs         dbtypes.StringList `json:"video_urls"`
	IsVisible         bool               `json:"is_visible"`
	IsNew             bool               `json:"is_new"`
	OffersCount       int                `json:"offers_count"`
	VariationFeatures []RefDTO           `json:"variation_features"`
	Features          []FeatureDTO       `json:"features"`
	Variations        []VariantListItem  `json:"variations"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// VariantDetail is the read model of a variant.
type VariantDetail struct {
	ID             uuid.UUID           `json:"id"`
	MasterID       uuid.UUID           `json:"master_id"`
	MasterSlug     string              `json:"master_slug"`
	CommonName     string              `json:"common_name"`
	VariantName    *string             `json:"variant_name"`
	Slug           string              `json:"slug"`
	Color          *RefDTO             `json:"color"`
	BrandID        *uuid.UUID          `json:"brand_id"`
	CategoryID     *uuid.UUID          `json:"category_id"`
	Description    *string             `json:"description"`
	MainPhoto      *dbtypes.Photo      `json:"main_photo"`
	MiniaturePhoto *dbtypes.Photo      `json:"miniature_photo"`
	Photos         dbtypes.PhotoList   `json:"photos"`
	VideoURLs      dbtypes.StringList  `json:"video_urls"`
	IsVisible      bool                `json:"is_visible"`
	IsNew          bool                `json:"is_new"`
	OffersCount    int                 `json:"offers_count"`
	OffersMinPrice decimal.NullDecimal `json:"offers_min_price"`
	OffersOldPrice decimal.NullDecimal `json:"offers_old_price"`
	ReviewsCount   int                 `json:"reviews_count"`
	Rating         *float64            `json:"rating"`
	Features       []FeatureDTO        `json:"features"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// MasterListItem is one row of the master list.
type MasterListItem struct {
	ID             uuid.UUID      `json:"id"`
	CommonName     string         `json:"common_name"`
	Slug           string         `json:"slug"`
	Brand          *RefDTO        `json:"brand"`
	Category       *RefDTO        `json:"category"`
	MainPhoto      *dbtypes.Photo `json:"main_photo"`
	MiniaturePhoto *dbtypes.Photo `json:"miniature_photo"`
	IsVisible      bool           `json:"is_visible"`
	IsNew          bool           `json:"is_new"`
	OffersCount    int            `json:"offers_count"`
	VariantsCount  int            `json:"variants_count"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// VariantListItem is one row of a variant list.
type VariantListItem struct {
	ID             uuid.UUID           `json:"id"`
	MasterID       uuid.UUID           `json:"master_id"`
	CommonName     string              `json:"common_name"`
	VariantName    *string             `json:"variant_name"`
	Slug           string              `json:"slug"`
	ColorName      *string             `json:"color_name"`
	MainPhoto      *dbtypes.Photo      `json:"main_photo"`
	MiniaturePhoto *dbtypes.Photo      `json:"miniature_photo"`
	IsVisible      bool                `json:"is_visible"`
	IsNew          bool                `json:"is_new"`
	OffersCount    int                 `json:"offers_count"`
	OffersMinPrice decimal.NullDecimal `json:"offers_min_price"`
	OffersOldPrice decimal.NullDecimal `json:"offers_old_price"`
	ReviewsCount   int                 `json:"reviews_count"`
	Rating         *float64            `json:"rating"`
	CreatedAt      time.Time           `json:"created_at"`
}

// VisibilityResult is returned by the unified visibility toggle.
type VisibilityResult struct {
	ID        uuid.UUID `json:"id"`
	IsMaster  bool      `json:"is_master"`
	IsVisible bool      `json:"is_visible"`
	Changed   bool      `json:"changed"`
}

// NameCheckResult answers a duplicate-name lookup. Name holds the stored value
// of the matching row.
type NameCheckResult struct {
	IsDuplicated bool    `json:"is_duplicated"`
	Name         *string `json:"name,omitempty"`
}

// FeatureUsage reports whether some variant of a master selects the feature.
type FeatureUsage struct {
	FeatureID     uuid.UUID `json:"feature_id"`
	IsFeatureUsed bool      `json:"is_feature_used"`
}

func groupFeatures(rows []featureValueRow) []FeatureDTO {
	out := []FeatureDTO{}
	index := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		pos, ok := index[row.FeatureID]
		if !ok {
			out = append(out, FeatureDTO{
				ID:            row.FeatureID,
				Name:          row.FeatureName,
				IsMultichoice: row.IsMultichoice,
				Values:        []FeatureValueDTO{},
			})
			pos = len(out) - 1
			index[row.FeatureID] = pos
		}
		out[pos].Values = append(out[pos].Values, FeatureValueDTO{ID: row.ValueID, Value: row.Value})
	}
	return out
}

func photoOrNil(p *dbtypes.Photo) *dbtypes.Photo {
	if p.IsZero() {
		return nil
	}
	return p
}

func isNew(createdAt, now time.Time, window time.Duration) bool {
	if window <= 0 || createdAt.IsZero() {
		return false
	}
	return now.Sub(createdAt) <= window
}

func newVariantListItem(p models.Product, colorName *string, now time.Time, window time.Duration) VariantListItem {
	item := VariantListItem{
		ID:             p.ID,
		CommonName:     p.CommonName,
		VariantName:    p.VariantName,
		Slug:           p.Slug,
		ColorName:      colorName,
		MainPhoto:      photoOrNil(p.MainPhoto),
		MiniaturePhoto: photoOrNil(p.MiniaturePhoto),
		IsVisible:      p.IsVisible,
		IsNew:          isNew(p.CreatedAt, now, window),
		OffersCount:    p.OffersCount,
		OffersMinPrice: p.OffersMinPrice,
		OffersOldPrice: p.OffersOldPrice,
		ReviewsCount:   p.ReviewsCount,
		Rating:         p.Rating,
		CreatedAt:      p.CreatedAt,
	}
	if p.MasterID != nil {
		item.MasterID = *p.MasterID
	}
	return item
}

func (r masterListRecord) toItem(now time.Time, window time.Duration) MasterListItem {
	item := MasterListItem{
		ID:             r.ID,
		CommonName:     r.CommonName,
		Slug:           r.Slug,
		MainPhoto:      photoOrNil(r.MainPhoto),
		MiniaturePhoto: photoOrNil(r.MiniaturePhoto),
		IsVisible:      r.IsVisible,
		IsNew:          isNew(r.CreatedAt, now, window),
		OffersCount:    r.OffersCount,
		VariantsCount:  r.VariantsCount,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.BrandID != nil && r.BrandName != nil {
		item.Brand = &RefDTO{ID: *r.BrandID, Name: *r.BrandName}
	}
	if r.CategoryID != nil && r.CategoryName != nil {
		item.Category = &RefDTO{ID: *r.CategoryID, Name: *r.CategoryName}
	}
	return item
}
