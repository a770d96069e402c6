package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/db"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/catalog-backend/pkg/db/types"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/angelmondragon/catalog-backend/pkg/pagination"
)

const (
	slugConstraint       = "products_slug_key"
	sqliteSlugConstraint = "products.slug"
	maxDescriptionLength = 1000
)

// Service is the catalog rule engine. Every mutation runs in one transaction;
// a failed rule leaves the store untouched.
type Service interface {
	CreateMaster(ctx context.Context, actor Actor, input CreateMasterInput) (*MasterDetail, error)
	UpdateMaster(ctx context.Context, actor Actor, masterID uuid.UUID, input UpdateMasterInput) (*MasterDetail, error)
	DeleteMaster(ctx context.Context, actor Actor, masterID uuid.UUID) error
	CreateVariant(ctx context.Context, actor Actor, input CreateVariantInput) (*VariantDetail, error)
	UpdateVariant(ctx context.Context, actor Actor, variantID uuid.UUID, input UpdateVariantInput) (*VariantDetail, error)
	DeleteVariant(ctx context.Context, actor Actor, variantID uuid.UUID) error

	SetVisibility(ctx context.Context, actor Actor, productID uuid.UUID, visible bool) (*VisibilityResult, error)
	DeleteProduct(ctx context.Context, actor Actor, productID uuid.UUID) error

	CheckCommonNameDuplicate(ctx context.Context, name string) (*NameCheckResult, error)
	CheckVariantNameDuplicate(ctx context.Context, masterID uuid.UUID, name string) (*NameCheckResult, error)
	GetVariationFeatureUsage(ctx context.Context, masterID uuid.UUID, featureIDs []uuid.UUID) ([]FeatureUsage, error)
	ActiveVariations(ctx context.Context, masterID uuid.UUID, posID string) (json.RawMessage, error)

	GetMaster(ctx context.Context, slugOrID string) (*MasterDetail, error)
	GetVariant(ctx context.Context, slug string) (*VariantDetail, error)
	ListMasters(ctx context.Context, input ListMastersInput) (*pagination.Page[MasterListItem], error)
	ListVariants(ctx context.Context, input ListVariantsInput) (*pagination.Page[VariantListItem], error)
	ListVariantsWithOffers(ctx context.Context, input ListVariantsWithOffersInput) (*pagination.Page[VariantListItem], error)
}

// PhotoResolver turns a CDN photo id into the metadata stored on products.
type PhotoResolver interface {
	Resolve(ctx context.Context, id string) (*dbtypes.Photo, error)
}

// PointOfSaleLookup asks the shop service which variations a point of sale sells.
type PointOfSaleLookup interface {
	ActiveVariations(ctx context.Context, posID, masterID string) (json.RawMessage, error)
}

type service struct {
	repo      *Repository
	dbClient  *db.Client
	notifier  Notifier
	photos    PhotoResolver
	pos       PointOfSaleLookup
	newWindow time.Duration
	logg      *logger.Logger
	now       func() time.Time
}

// NewService constructs the catalog service.
func NewService(repo *Repository, dbClient *db.Client, notifier Notifier, photos PhotoResolver, pos PointOfSaleLookup, cfg config.CatalogConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if photos == nil {
		return nil, fmt.Errorf("photo resolver required")
	}
	if pos == nil {
		return nil, fmt.Errorf("point of sale lookup required")
	}
	return &service{
		repo:      repo,
		dbClient:  dbClient,
		notifier:  notifier,
		photos:    photos,
		pos:       pos,
		newWindow: cfg.NewWindow(),
		logg:      logg,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CheckCommonNameDuplicate(ctx context.Context, name string) (*NameCheckResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "common_name is required")
	}
	match, err := s.repo.FindMasterByCommonName(ctx, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NameCheckResult{IsDuplicated: false}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find master by name")
	}
	stored := match.CommonName
	return &NameCheckResult{IsDuplicated: true, Name: &stored}, nil
}

func (s *service) CheckVariantNameDuplicate(ctx context.Context, masterID uuid.UUID, name string) (*NameCheckResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant_name is required")
	}
	if _, err := s.repo.FindMasterByID(ctx, masterID); err != nil {
		return nil, lookupErr(err, "master product")
	}
	match, err := s.repo.FindVariantByName(ctx, masterID, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &NameCheckResult{IsDuplicated: false}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: find variant by name")
	}
	return &NameCheckResult{IsDuplicated: true, Name: match.VariantName}, nil
}

func (s *service) GetVariationFeatureUsage(ctx context.Context, masterID uuid.UUID, featureIDs []uuid.UUID) ([]FeatureUsage, error) {
	if _, err := s.repo.FindMasterByID(ctx, masterID); err != nil {
		return nil, lookupErr(err, "master product")
	}
	requested := uniqueIDs(featureIDs)
	used, err := s.repo.FeatureIDsUsedByVariants(ctx, masterID, requested)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: feature usage")
	}
	usedSet := toSet(used)
	out := make([]FeatureUsage, 0, len(requested))
	for _, id := range requested {
		_, ok := usedSet[id]
		out = append(out, FeatureUsage{FeatureID: id, IsFeatureUsed: ok})
	}
	return out, nil
}

func (s *service) ActiveVariations(ctx context.Context, masterID uuid.UUID, posID string) (json.RawMessage, error) {
	if _, err := s.repo.FindMasterByID(ctx, masterID); err != nil {
		return nil, lookupErr(err, "master product")
	}
	return s.pos.ActiveVariations(ctx, posID, masterID.String())
}

// GetMaster accepts either the master slug or its id.
func (s *service) GetMaster(ctx context.Context, slugOrID string) (*MasterDetail, error) {
	var (
		master *models.Product
		err    error
	)
	if id, parseErr := uuid.Parse(slugOrID); parseErr == nil {
		master, err = s.repo.FindMasterByID(ctx, id)
	} else {
		master, err = s.repo.FindMasterBySlug(ctx, slugOrID)
	}
	if err != nil {
		return nil, lookupErr(err, "master product")
	}
	return s.masterDetail(ctx, master)
}

func (s *service) GetVariant(ctx context.Context, slug string) (*VariantDetail, error) {
	variant, err := s.repo.FindVariantBySlug(ctx, slug)
	if err != nil {
		return nil, lookupErr(err, "product")
	}
	return s.variantDetail(ctx, variant)
}

func (s *service) ListMasters(ctx context.Context, input ListMastersInput) (*pagination.Page[MasterListItem], error) {
	window, err := pagination.Resolve(input.Pagination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	records, err := s.repo.ListMasters(ctx, input.Filters, window)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list masters")
	}
	now := s.now()
	items := make([]MasterListItem, 0, len(records))
	for _, record := range records {
		items = append(items, record.toItem(now, s.newWindow))
	}
	page := pagination.BuildPage(items, window)
	return &page, nil
}

func (s *service) ListVariants(ctx context.Context, input ListVariantsInput) (*pagination.Page[VariantListItem], error) {
	window, err := pagination.Resolve(input.Pagination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListVisibleVariants(ctx, input.Search, input.Ordering, window)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}
	return s.variantPage(ctx, rows, window)
}

func (s *service) ListVariantsWithOffers(ctx context.Context, input ListVariantsWithOffersInput) (*pagination.Page[VariantListItem], error) {
	categoryIDs := uniqueIDs(input.CategoryIDs)
	if len(categoryIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category_ids is required")
	}
	window, err := pagination.Resolve(input.Pagination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListVariantsWithOffersInCategories(ctx, categoryIDs, window)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products with offers")
	}
	return s.variantPage(ctx, rows, window)
}

func (s *service) variantPage(ctx context.Context, rows []models.Product, window pagination.Window) (*pagination.Page[VariantListItem], error) {
	items, err := s.variantItems(ctx, rows)
	if err != nil {
		return nil, err
	}
	page := pagination.BuildPage(items, window)
	return &page, nil
}

func (s *service) variantItems(ctx context.Context, rows []models.Product) ([]VariantListItem, error) {
	colorIDs := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if row.ColorID != nil {
			colorIDs = append(colorIDs, *row.ColorID)
		}
	}
	colors, err := s.repo.ColorNames(ctx, uniqueIDs(colorIDs))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load colors")
	}
	now := s.now()
	items := make([]VariantListItem, 0, len(rows))
	for _, row := range rows {
		var colorName *string
		if row.ColorID != nil {
			if name, ok := colors[*row.ColorID]; ok {
				colorName = &name
			}
		}
		items = append(items, newVariantListItem(row, colorName, now, s.newWindow))
	}
	return items, nil
}

func (s *service) masterDetail(ctx context.Context, master *models.Product) (*MasterDetail, error) {
	detail := &MasterDetail{
		ID:             master.ID,
		CommonName:     master.CommonName,
		Slug:           master.Slug,
		Description:    master.Description,
		MainPhoto:      photoOrNil(master.MainPhoto),
		MiniaturePhoto: photoOrNil(master.MiniaturePhoto),
		Photos:         nonNilPhotos(master.Photos),
		VideoURLs:      nonNilStrings(master.VideoURLs),
		IsVisible:      master.IsVisible,
		IsNew:          isNew(master.CreatedAt, s.now(), s.newWindow),
		CreatedAt:      master.CreatedAt,
		UpdatedAt:      master.UpdatedAt,
	}
	if master.BrandID != nil {
		brand, err := s.repo.FindBrand(ctx, *master.BrandID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load brand")
		}
		if brand != nil {
			detail.Brand = &RefDTO{ID: brand.ID, Name: brand.Name}
		}
	}
	if master.CategoryID != nil {
		category, err := s.repo.FindCategory(ctx, *master.CategoryID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load category")
		}
		if category != nil {
			detail.Category = &RefDTO{ID: category.ID, Name: category.Name}
		}
	}

	variationFeatures, err := s.repo.ListVariationFeatures(ctx, master.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load variation features")
	}
	detail.VariationFeatures = make([]RefDTO, 0, len(variationFeatures))
	for _, f := range variationFeatures {
		detail.VariationFeatures = append(detail.VariationFeatures, RefDTO{ID: f.ID, Name: f.Name})
	}

	featureRows, err := s.repo.ListVisibleFeatureValues(ctx, master.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load features")
	}
	detail.Features = groupFeatures(featureRows)

	variants, err := s.repo.ListVariantsOfMaster(ctx, master.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load variations")
	}
	detail.Variations, err = s.variantItems(ctx, variants)
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		detail.OffersCount += v.OffersCount
	}
	return detail, nil
}

func (s *service) variantDetail(ctx context.Context, variant *models.Product) (*VariantDetail, error) {
	detail := &VariantDetail{
		ID:             variant.ID,
		CommonName:     variant.CommonName,
		VariantName:    variant.VariantName,
		Slug:           variant.Slug,
		BrandID:        variant.BrandID,
		CategoryID:     variant.CategoryID,
		Description:    variant.Description,
		MainPhoto:      photoOrNil(variant.MainPhoto),
		MiniaturePhoto: photoOrNil(variant.MiniaturePhoto),
		Photos:         nonNilPhotos(variant.Photos),
		VideoURLs:      nonNilStrings(variant.VideoURLs),
		IsVisible:      variant.IsVisible,
		IsNew:          isNew(variant.CreatedAt, s.now(), s.newWindow),
		OffersCount:    variant.OffersCount,
		OffersMinPrice: variant.OffersMinPrice,
		OffersOldPrice: variant.OffersOldPrice,
		ReviewsCount:   variant.ReviewsCount,
		Rating:         variant.Rating,
		CreatedAt:      variant.CreatedAt,
		UpdatedAt:      variant.UpdatedAt,
	}
	if variant.MasterID != nil {
		detail.MasterID = *variant.MasterID
		master, err := s.repo.FindMasterByID(ctx, *variant.MasterID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load master")
		}
		detail.MasterSlug = master.Slug
	}
	if variant.ColorID != nil {
		color, err := s.repo.FindColor(ctx, *variant.ColorID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load color")
		}
		if color != nil {
			detail.Color = &RefDTO{ID: color.ID, Name: color.Name}
		}
	}
	featureRows, err := s.repo.ListVisibleFeatureValues(ctx, variant.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load features")
	}
	detail.Features = groupFeatures(featureRows)
	return detail, nil
}

// lookupErr maps a failed primary lookup to NotFound or Dependency.
func lookupErr(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load "+what)
}

// storeErr maps a write failure. A slug unique violation is a Conflict.
func storeErr(err error, msg string) error {
	if isSlugConflict(err) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "slug already in use")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: "+msg)
}

func isSlugConflict(err error) bool {
	return db.IsUniqueViolation(err, slugConstraint) || db.IsUniqueViolation(err, sqliteSlugConstraint)
}

// txErr normalizes the error returned by WithTx.
func txErr(err error, op string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return storeErr(err, op)
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	out := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func nonNilPhotos(list dbtypes.PhotoList) dbtypes.PhotoList {
	if list == nil {
		return dbtypes.PhotoList{}
	}
	return list
}

func nonNilStrings(list dbtypes.StringList) dbtypes.StringList {
	if list == nil {
		return dbtypes.StringList{}
	}
	return list
}
