package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/catalog-backend/pkg/db/types"
)

// Product is one catalog row. A row with a nil MasterID is a master product;
// any other row is a variant of the master it points at.
type Product struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	MasterID       *uuid.UUID          `gorm:"column:master_id;type:uuid"`
	CommonName     string              `gorm:"column:common_name;not null"`
	VariantName    *string             `gorm:"column:variant_name"`
	Slug           string              `gorm:"column:slug;not null;uniqueIndex:products_slug_key"`
	ColorID        *uuid.UUID          `gorm:"column:color_id;type:uuid"`
	BrandID        *uuid.UUID          `gorm:"column:brand_id;type:uuid"`
	CategoryID     *uuid.UUID          `gorm:"column:category_id;type:uuid"`
	Description    *string             `gorm:"column:description"`
	MainPhoto      *dbtypes.Photo      `gorm:"column:main_photo;type:jsonb"`
	MiniaturePhoto *dbtypes.Photo      `gorm:"column:miniature_photo;type:jsonb"`
	Photos         dbtypes.PhotoList   `gorm:"column:photos;type:jsonb;not null;default:'[]'"`
	VideoURLs      dbtypes.StringList  `gorm:"column:video_urls;type:jsonb;not null;default:'[]'"`
	IsVisible      bool                `gorm:"column:is_visible;not null;default:false"`
	OffersCount    int                 `gorm:"column:offers_count;not null;default:0"`
	OffersMinPrice decimal.NullDecimal `gorm:"column:offers_min_price;type:numeric(20,4)"`
	OffersOldPrice decimal.NullDecimal `gorm:"column:offers_old_price;type:numeric(20,4)"`
	ReviewsCount   int                 `gorm:"column:reviews_count;not null;default:0"`
	Rating         *float64            `gorm:"column:rating"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsMaster reports whether the row plays the master role.
func (p Product) IsMaster() bool {
	return p.MasterID == nil
}

// ProductVariationFeature links a master to a feature its variants differ on.
type ProductVariationFeature struct {
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;primaryKey"`
	FeatureID uuid.UUID `gorm:"column:feature_id;type:uuid;primaryKey"`
}

func (ProductVariationFeature) TableName() string { return "product_variation_features" }

// ProductFeature groups the selected values of one feature on one product.
type ProductFeature struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	FeatureID uuid.UUID `gorm:"column:feature_id;type:uuid;not null"`
}

func (ProductFeature) TableName() string { return "product_features" }

func (f *ProductFeature) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

type ProductFeatureValue struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductFeatureID uuid.UUID `gorm:"column:product_feature_id;type:uuid;not null"`
	FeatureValueID   uuid.UUID `gorm:"column:feature_value_id;type:uuid;not null"`
}

func (ProductFeatureValue) TableName() string { return "product_feature_values" }

func (v *ProductFeatureValue) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
