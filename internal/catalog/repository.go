package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/catalog-backend/pkg/db/types"
	"github.com/angelmondragon/catalog-backend/pkg/pagination"
)

// Repository holds the catalog queries. Role predicates used throughout:
//
//	master:  products.master_id IS NULL
//	variant: products.master_id IS NOT NULL
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindProductByID loads a product of either role.
func (r *Repository) FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindMasterByID loads a row matching id AND master_id IS NULL.
func (r *Repository) FindMasterByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("master_id IS NULL").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindMasterBySlug loads a row matching slug AND master_id IS NULL.
func (r *Repository) FindMasterBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("master_id IS NULL AND slug = ?", slug).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindVariantByID loads a row matching id AND master_id IS NOT NULL.
func (r *Repository) FindVariantByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("master_id IS NOT NULL").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindVariantBySlug loads a row matching slug AND master_id IS NOT NULL.
func (r *Repository) FindVariantBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("master_id IS NOT NULL AND slug = ?", slug).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// SlugExists reports whether any product other than excludeID owns slug.
func (r *Repository) SlugExists(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Product{}).Where("slug = ?", slug)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindMasterByCommonName matches LOWER(common_name) = LOWER(name) among masters.
func (r *Repository) FindMasterByCommonName(ctx context.Context, name string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("master_id IS NULL AND LOWER(common_name) = LOWER(?)", name).
		Order("created_at ASC").
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindVariantByName matches LOWER(variant_name) = LOWER(name) among the
// variants of masterID.
func (r *Repository) FindVariantByName(ctx context.Context, masterID uuid.UUID, name string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("master_id = ? AND LOWER(variant_name) = LOWER(?)", masterID, name).
		Order("created_at ASC").
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// CountVariantsWithOffers counts variants of masterID with offers_count > 0.
func (r *Repository) CountVariantsWithOffers(ctx context.Context, masterID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("master_id = ? AND offers_count > 0", masterID).
		Count(&count).Error
	return count, err
}

// ListVariantsOfMaster returns every variant of masterID ordered by creation.
func (r *Repository) ListVariantsOfMaster(ctx context.Context, masterID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("master_id = ?", masterID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// ListProductsByIDs returns the products with the given ids in no particular order.
func (r *Repository) ListProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// CreateProduct inserts a new product row.
func (r *Repository) CreateProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// SaveProduct writes every column of the product row.
func (r *Repository) SaveProduct(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// SetVisible flips is_visible on one row.
func (r *Repository) SetVisible(ctx context.Context, id uuid.UUID, visible bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_visible": visible, "updated_at": time.Now().UTC()}).Error
}

// DeleteProduct removes a product. Variants, features and feature values are
// removed by the ON DELETE CASCADE constraints.
func (r *Repository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{}).Error
}

// HideVisibleVariants sets is_visible = false on every visible variant of
// masterID and returns the ids that were switched.
func (r *Repository) HideVisibleVariants(ctx context.Context, masterID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("master_id = ? AND is_visible = ?", masterID, true).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"is_visible": false, "updated_at": time.Now().UTC()}).Error
	return ids, err
}

// RenameVariants rewrites every variant of masterID: common_name becomes
// commonName and a slug starting with oldPrefix gets that prefix swapped for
// newPrefix. The per-variant suffix is preserved.
func (r *Repository) RenameVariants(ctx context.Context, masterID uuid.UUID, oldPrefix, newPrefix, commonName string) error {
	now := time.Now().UTC()
	if err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("master_id = ?", masterID).
		Updates(map[string]any{"common_name": commonName, "updated_at": now}).Error; err != nil {
		return err
	}
	if oldPrefix == newPrefix || oldPrefix == "" {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("master_id = ? AND SUBSTR(slug, 1, ?) = ?", masterID, len(oldPrefix), oldPrefix).
		Update("slug", gorm.Expr("CAST(? AS TEXT) || SUBSTR(slug, ?)", newPrefix, len(oldPrefix)+1)).Error
}

// UpdateVariantsBrand sets brand_id on every variant of masterID.
func (r *Repository) UpdateVariantsBrand(ctx context.Context, masterID uuid.UUID, brandID *uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("master_id = ?", masterID).
		Updates(map[string]any{"brand_id": brandID, "updated_at": time.Now().UTC()}).Error
}

// ListVariationFeatureIDs returns the variation axes declared by productID.
func (r *Repository) ListVariationFeatureIDs(ctx context.Context, productID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.ProductVariationFeature{}).
		Where("product_id = ?", productID).
		Pluck("feature_id", &ids).Error
	return ids, err
}

// ReplaceVariationFeatures deletes and recreates the variation axes of productID.
func (r *Repository) ReplaceVariationFeatures(ctx context.Context, productID uuid.UUID, featureIDs []uuid.UUID) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductVariationFeature{}).Error; err != nil {
		return err
	}
	if len(featureIDs) == 0 {
		return nil
	}
	rows := make([]models.ProductVariationFeature, 0, len(featureIDs))
	for _, id := range featureIDs {
		rows = append(rows, models.ProductVariationFeature{ProductID: productID, FeatureID: id})
	}
	return tx.Create(&rows).Error
}

// ReplaceProductFeatures deletes every feature selection of productID and
// recreates one product_features row per selection plus one
// product_feature_values row per selected value.
func (r *Repository) ReplaceProductFeatures(ctx context.Context, productID uuid.UUID, selections []FeatureSelection) error {
	tx := r.db.WithContext(ctx)
	if err := tx.
		Where("product_feature_id IN (?)", tx.Model(&models.ProductFeature{}).Select("id").Where("product_id = ?", productID)).
		Delete(&models.ProductFeatureValue{}).Error; err != nil {
		return err
	}
	if err := tx.Where("product_id = ?", productID).Delete(&models.ProductFeature{}).Error; err != nil {
		return err
	}
	for _, sel := range selections {
		feature := models.ProductFeature{ProductID: productID, FeatureID: sel.FeatureID}
		if err := tx.Create(&feature).Error; err != nil {
			return err
		}
		if len(sel.ValueIDs) == 0 {
			continue
		}
		values := make([]models.ProductFeatureValue, 0, len(sel.ValueIDs))
		for _, valueID := range sel.ValueIDs {
			values = append(values, models.ProductFeatureValue{ProductFeatureID: feature.ID, FeatureValueID: valueID})
		}
		if err := tx.Create(&values).Error; err != nil {
			return err
		}
	}
	return nil
}

// FeatureIDsUsedByVariants returns the distinct feature ids among candidates
// that have a product_features row on some variant of masterID.
func (r *Repository) FeatureIDsUsedByVariants(ctx context.Context, masterID uuid.UUID, candidates []uuid.UUID) ([]uuid.UUID, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Table("product_features pf").
		Joins("JOIN products p ON p.id = pf.product_id").
		Where("p.master_id = ? AND pf.feature_id IN ?", masterID, candidates).
		Distinct("pf.feature_id").
		Pluck("pf.feature_id", &ids).Error
	return ids, err
}

// FindFeatures returns the features with the given ids.
func (r *Repository) FindFeatures(ctx context.Context, ids []uuid.UUID) ([]models.Feature, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Feature
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

// FindFeatureValues returns the feature values with the given ids.
func (r *Repository) FindFeatureValues(ctx context.Context, ids []uuid.UUID) ([]models.FeatureValue, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.FeatureValue
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}

func (r *Repository) FindColor(ctx context.Context, id uuid.UUID) (*models.Color, error) {
	var row models.Color
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindBrand(ctx context.Context, id uuid.UUID) (*models.Brand, error) {
	var row models.Brand
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var row models.Category
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// featureValueRow is one selected value of one visible feature of a product.
type featureValueRow struct {
	FeatureID     uuid.UUID
	FeatureName   string
	IsMultichoice bool
	ValueID       uuid.UUID
	Value         string
}

// ListVisibleFeatureValues returns the feature selections of productID whose
// feature has is_visible = true, ordered by feature name then value.
func (r *Repository) ListVisibleFeatureValues(ctx context.Context, productID uuid.UUID) ([]featureValueRow, error) {
	var rows []featureValueRow
	err := r.db.WithContext(ctx).
		Table("product_features pf").
		Select("f.id AS feature_id, f.name AS feature_name, f.is_multichoice, fv.id AS value_id, fv.value").
		Joins("JOIN features f ON f.id = pf.feature_id").
		Joins("JOIN product_feature_values pfv ON pfv.product_feature_id = pf.id").
		Joins("JOIN feature_values fv ON fv.id = pfv.feature_value_id").
		Where("pf.product_id = ? AND f.is_visible = ?", productID, true).
		Order("f.name ASC").
		Order("fv.value ASC").
		Scan(&rows).Error
	return rows, err
}

// ListVariationFeatures returns the features declared as variation axes of productID.
func (r *Repository) ListVariationFeatures(ctx context.Context, productID uuid.UUID) ([]models.Feature, error) {
	var rows []models.Feature
	err := r.db.WithContext(ctx).
		Table("features f").
		Select("f.*").
		Joins("JOIN product_variation_features pvf ON pvf.feature_id = f.id").
		Where("pvf.product_id = ?", productID).
		Order("f.name ASC").
		Scan(&rows).Error
	return rows, err
}

// SumVariantOffers returns SUM(offers_count) over the variants of masterID.
func (r *Repository) SumVariantOffers(ctx context.Context, masterID uuid.UUID) (int, error) {
	var total int
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select("COALESCE(SUM(offers_count), 0)").
		Where("master_id = ?", masterID).
		Scan(&total).Error
	return total, err
}

// ApplyOffers overwrites the offer aggregate of one product and returns the
// number of rows touched.
func (r *Repository) ApplyOffers(ctx context.Context, productID uuid.UUID, count int, minPrice, oldPrice decimal.NullDecimal) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"offers_count":     count,
			"offers_min_price": minPrice,
			"offers_old_price": oldPrice,
			"updated_at":       time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// ApplyReviews overwrites the review aggregate of one product and returns the
// number of rows touched.
func (r *Repository) ApplyReviews(ctx context.Context, productID uuid.UUID, count int, rating *float64) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"reviews_count": count,
			"rating":        rating,
			"updated_at":    time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

type masterListRecord struct {
	ID             uuid.UUID
	CommonName     string
	Slug           string
	IsVisible      bool
	MainPhoto      *dbtypes.Photo
	MiniaturePhoto *dbtypes.Photo
	BrandID        *uuid.UUID
	BrandName      *string
	CategoryID     *uuid.UUID
	CategoryName   *string
	OffersCount    int
	VariantsCount  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

var masterOrderings = map[string]string{
	"common_name":  "p.common_name",
	"category":     "c.name",
	"offers_count": "offers_count",
	"created_at":   "p.created_at",
}

var variantOrderings = map[string]string{
	"common_name":      "common_name",
	"variant_name":     "variant_name",
	"offers_count":     "offers_count",
	"offers_min_price": "offers_min_price",
	"rating":           "rating",
	"created_at":       "created_at",
}

// orderClause resolves an ordering parameter such as "-created_at" against the
// allowed columns. Unknown fields fall back to fallback.
func orderClause(ordering string, allowed map[string]string, fallback string) string {
	ordering = strings.TrimSpace(ordering)
	direction := "ASC"
	if strings.HasPrefix(ordering, "-") {
		direction = "DESC"
		ordering = strings.TrimPrefix(ordering, "-")
	}
	column, ok := allowed[ordering]
	if !ok {
		return fallback
	}
	return column + " " + direction
}

// ListMasters pages over rows with master_id IS NULL. offers_count is the sum
// of the variants' offers_count.
func (r *Repository) ListMasters(ctx context.Context, filters MasterListFilters, window pagination.Window) ([]masterListRecord, error) {
	qb := r.db.WithContext(ctx).
		Table("products p").
		Select(strings.Join([]string{
			"p.id",
			"p.common_name",
			"p.slug",
			"p.is_visible",
			"p.main_photo",
			"p.miniature_photo",
			"p.brand_id",
			"b.name AS brand_name",
			"p.category_id",
			"c.name AS category_name",
			"COALESCE((SELECT SUM(v.offers_count) FROM products v WHERE v.master_id = p.id), 0) AS offers_count",
			"(SELECT COUNT(*) FROM products v WHERE v.master_id = p.id) AS variants_count",
			"p.created_at",
			"p.updated_at",
		}, ", ")).
		Joins("LEFT JOIN brands b ON b.id = p.brand_id").
		Joins("LEFT JOIN categories c ON c.id = p.category_id").
		Where("p.master_id IS NULL")

	if names := lowerAll(filters.CategoryNames); len(names) > 0 {
		qb = qb.Where("LOWER(c.name) IN ?", names)
	}
	if names := lowerAll(filters.BrandNames); len(names) > 0 {
		qb = qb.Where("LOWER(b.name) IN ?", names)
	}
	if filters.IsVisible != nil {
		qb = qb.Where("p.is_visible = ?", *filters.IsVisible)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		qb = qb.Where("LOWER(p.common_name) LIKE ?", "%"+strings.ToLower(search)+"%")
	}

	var records []masterListRecord
	err := qb.
		Order(orderClause(filters.Ordering, masterOrderings, "p.created_at DESC")).
		Order("p.id ASC").
		Offset(window.Offset).
		Limit(window.Limit + 1).
		Scan(&records).Error
	return records, err
}

// ListVisibleVariants pages over rows with master_id IS NOT NULL AND
// is_visible = true, optionally matching search against common_name or
// variant_name.
func (r *Repository) ListVisibleVariants(ctx context.Context, search, ordering string, window pagination.Window) ([]models.Product, error) {
	qb := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("master_id IS NOT NULL AND is_visible = ?", true)
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		qb = qb.Where("(LOWER(common_name) LIKE ? OR LOWER(variant_name) LIKE ?)", pattern, pattern)
	}
	var rows []models.Product
	err := qb.
		Order(orderClause(ordering, variantOrderings, "created_at DESC")).
		Order("id ASC").
		Offset(window.Offset).
		Limit(window.Limit + 1).
		Find(&rows).Error
	return rows, err
}

// ListVariantsWithOffersInCategories pages over variants with
// offers_count > 0 whose category, parent category or grandparent category is
// one of categoryIDs.
func (r *Repository) ListVariantsWithOffersInCategories(ctx context.Context, categoryIDs []uuid.UUID, window pagination.Window) ([]models.Product, error) {
	if len(categoryIDs) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Table("products p").
		Select("p.*").
		Joins("JOIN categories c ON c.id = p.category_id").
		Joins("LEFT JOIN categories pc ON pc.id = c.parent_id").
		Where("p.master_id IS NOT NULL AND p.offers_count > 0").
		Where("(c.id IN ? OR c.parent_id IN ? OR pc.parent_id IN ?)", categoryIDs, categoryIDs, categoryIDs).
		Order("p.offers_count DESC").
		Order("p.id ASC").
		Offset(window.Offset).
		Limit(window.Limit + 1).
		Scan(&rows).Error
	return rows, err
}

// ColorNames maps color ids to names.
func (r *Repository) ColorNames(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Color
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.Name
	}
	return out, nil
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, strings.ToLower(trimmed))
		}
	}
	return out
}
