package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
)

// transitionMaster moves master to the requested visibility in memory. Hiding
// is refused while any variant has offers; otherwise every visible variant is
// hidden and announced. The caller persists the master row.
func (s *service) transitionMaster(ctx context.Context, tx *gorm.DB, repo *Repository, actor Actor, master *models.Product, visible bool) error {
	if master.IsVisible == visible {
		return nil
	}
	if !master.IsMaster() {
		return pkgerrors.New(pkgerrors.CodeValidation, "product is not a master product")
	}
	if !visible {
		withOffers, err := repo.CountVariantsWithOffers(ctx, master.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count variants with offers")
		}
		if withOffers > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "master product has variants with offers").
				WithDetails(map[string]any{"variants_with_offers": withOffers})
		}
		hidden, err := repo.HideVisibleVariants(ctx, master.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: hide variants")
		}
		if len(hidden) > 0 {
			variants, err := repo.ListProductsByIDs(ctx, hidden)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load hidden variants")
			}
			for i := range variants {
				if err := s.publishProduct(ctx, tx, actor, enums.EventProductUpdated, &variants[i]); err != nil {
					return err
				}
			}
		}
	}
	master.IsVisible = visible
	return nil
}

// transitionVariant moves variant to the requested visibility in memory.
// Showing a variant forces its master visible. The caller persists the
// variant row.
func (s *service) transitionVariant(ctx context.Context, tx *gorm.DB, repo *Repository, actor Actor, variant *models.Product, visible bool) error {
	if variant.IsVisible == visible {
		return nil
	}
	if variant.IsMaster() {
		return pkgerrors.New(pkgerrors.CodeValidation, "product is not a variant")
	}
	if !visible && variant.OffersCount > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product has offers").
			WithDetails(map[string]any{"offers_count": variant.OffersCount})
	}
	if visible {
		if err := s.revealMaster(ctx, tx, repo, actor, *variant.MasterID); err != nil {
			return err
		}
	}
	variant.IsVisible = visible
	return nil
}

// revealMaster makes a hidden master visible and announces it.
func (s *service) revealMaster(ctx context.Context, tx *gorm.DB, repo *Repository, actor Actor, masterID uuid.UUID) error {
	master, err := repo.FindMasterByID(ctx, masterID)
	if err != nil {
		return lookupErr(err, "master product")
	}
	if master.IsVisible {
		return nil
	}
	if err := repo.SetVisible(ctx, master.ID, true); err != nil {
		return storeErr(err, "show master product")
	}
	master.IsVisible = true
	return s.publishProduct(ctx, tx, actor, enums.EventProductUpdated, master)
}

func (s *service) setMasterVisibility(ctx context.Context, actor Actor, masterID uuid.UUID, visible bool) (*VisibilityResult, error) {
	product, err := s.repo.FindProductByID(ctx, masterID)
	if err != nil {
		return nil, lookupErr(err, "master product")
	}
	if !product.IsMaster() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not a master product")
	}
	return s.applyVisibility(ctx, actor, product, visible)
}

func (s *service) setVariantVisibility(ctx context.Context, actor Actor, variantID uuid.UUID, visible bool) (*VisibilityResult, error) {
	product, err := s.repo.FindProductByID(ctx, variantID)
	if err != nil {
		return nil, lookupErr(err, "product")
	}
	if product.IsMaster() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not a variant")
	}
	return s.applyVisibility(ctx, actor, product, visible)
}

// SetVisibility dispatches on the role of the row.
func (s *service) SetVisibility(ctx context.Context, actor Actor, productID uuid.UUID, visible bool) (*VisibilityResult, error) {
	product, err := s.repo.FindProductByID(ctx, productID)
	if err != nil {
		return nil, lookupErr(err, "product")
	}
	return s.applyVisibility(ctx, actor, product, visible)
}

func (s *service) applyVisibility(ctx context.Context, actor Actor, product *models.Product, visible bool) (*VisibilityResult, error) {
	result := &VisibilityResult{ID: product.ID, IsMaster: product.IsMaster(), IsVisible: visible}
	if product.IsVisible == visible {
		return result, nil
	}

	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		row, err := txRepo.FindProductByID(ctx, product.ID)
		if err != nil {
			return lookupErr(err, "product")
		}
		if row.IsVisible == visible {
			return nil
		}
		if row.IsMaster() {
			err = s.transitionMaster(ctx, tx, txRepo, actor, row, visible)
		} else {
			err = s.transitionVariant(ctx, tx, txRepo, actor, row, visible)
		}
		if err != nil {
			return err
		}
		if err := txRepo.SetVisible(ctx, row.ID, visible); err != nil {
			return storeErr(err, "set visibility")
		}
		result.Changed = true
		if err := s.publishProduct(ctx, tx, actor, enums.EventProductUpdated, row); err != nil {
			return err
		}
		return s.recordActivity(ctx, tx, actor, enums.ActivityUpdate, row, map[string]any{"is_visible": visible})
	})
	if err != nil {
		return nil, txErr(err, "set visibility")
	}
	if result.Changed {
		s.logInfo(ctx, product.ID, "visibility changed")
	}
	return result, nil
}
