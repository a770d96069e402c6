package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/outbox/payloads"
)

func (s *service) CreateMaster(ctx context.Context, actor Actor, input CreateMasterInput) (*MasterDetail, error) {
	name, slug, err := checkCommonName(input.CommonName)
	if err != nil {
		return nil, err
	}
	if err := checkDescription(input.Description); err != nil {
		return nil, err
	}
	if err := s.checkBrand(ctx, input.BrandID); err != nil {
		return nil, err
	}
	if err := s.checkCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}
	features, err := s.checkFeatures(ctx, input.Features)
	if err != nil {
		return nil, err
	}
	variation, err := s.checkVariationFeatures(ctx, input.VariationFeatureIDs, features.FeatureIDs)
	if err != nil {
		return nil, err
	}
	media, err := s.resolveMedia(ctx, input.Media)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSlugFree(ctx, slug, nil); err != nil {
		return nil, err
	}

	master := &models.Product{
		CommonName:  name,
		Slug:        slug,
		BrandID:     input.BrandID,
		CategoryID:  input.CategoryID,
		Description: trimmedOrNil(input.Description),
		IsVisible:   input.IsVisible,
	}
	media.applyTo(master)

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.CreateProduct(ctx, master); err != nil {
			return storeErr(err, "create master product")
		}
		if err := txRepo.ReplaceVariationFeatures(ctx, master.ID, variation); err != nil {
			return storeErr(err, "store variation features")
		}
		if err := txRepo.ReplaceProductFeatures(ctx, master.ID, features.Selections); err != nil {
			return storeErr(err, "store product features")
		}
		if err := s.publishProduct(ctx, tx, actor, enums.EventProductCreated, master); err != nil {
			return err
		}
		return s.recordActivity(ctx, tx, actor, enums.ActivityCreate, master, map[string]any{
			"common_name": master.CommonName,
			"slug":        master.Slug,
		})
	})
	if err != nil {
		return nil, txErr(err, "create master product")
	}

	s.logInfo(ctx, master.ID, "master product created")
	return s.reloadMaster(ctx, master.ID)
}

func (s *service) UpdateMaster(ctx context.Context, actor Actor, masterID uuid.UUID, input UpdateMasterInput) (*MasterDetail, error) {
	current, err := s.repo.FindProductByID(ctx, masterID)
	if err != nil {
		return nil, lookupErr(err, "master product")
	}
	if !current.IsMaster() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "master product not found")
	}

	name, slug, err := checkCommonName(input.CommonName)
	if err != nil {
		return nil, err
	}
	if err := checkDescription(input.Description); err != nil {
		return nil, err
	}
	if err := s.checkBrand(ctx, input.BrandID); err != nil {
		return nil, err
	}
	features, err := s.checkFeatures(ctx, input.Features)
	if err != nil {
		return nil, err
	}
	variation, err := s.checkVariationFeatures(ctx, input.VariationFeatureIDs, features.FeatureIDs)
	if err != nil {
		return nil, err
	}
	currentVariation, err := s.repo.ListVariationFeatureIDs(ctx, masterID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load variation features")
	}
	variationChanged := !sameIDSet(currentVariation, variation)
	if variationChanged {
		removed := missingFrom(currentVariation, variation)
		used, err := s.repo.FeatureIDsUsedByVariants(ctx, masterID, removed)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: feature usage")
		}
		if len(used) > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variation features are used by variants").
				WithDetails(map[string]any{"feature_ids": used})
		}
	}
	media, err := s.resolveMedia(ctx, input.Media)
	if err != nil {
		return nil, err
	}
	if slug != current.Slug {
		if err := s.ensureSlugFree(ctx, slug, &current.ID); err != nil {
			return nil, err
		}
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		master, err := txRepo.FindMasterByID(ctx, masterID)
		if err != nil {
			return lookupErr(err, "master product")
		}
		oldName, oldSlug, wasVisible := master.CommonName, master.Slug, master.IsVisible
		brandChanged := !sameUUIDPtr(master.BrandID, input.BrandID)
		changes := map[string]any{}

		if oldName != name {
			changes["common_name"] = name
		}
		if oldSlug != slug {
			changes["slug"] = slug
		}
		if brandChanged {
			changes["brand_id"] = input.BrandID
		}
		if variationChanged {
			changes["variation_feature_ids"] = variation
		}

		master.CommonName = name
		master.Slug = slug
		master.BrandID = input.BrandID
		master.Description = trimmedOrNil(input.Description)
		media.applyTo(master)
		if err := txRepo.SaveProduct(ctx, master); err != nil {
			return storeErr(err, "update master product")
		}

		// Variants are renamed and rebranded before the visibility cascade
		// announces them.
		if oldName != name {
			if err := txRepo.RenameVariants(ctx, master.ID, oldSlug, slug, name); err != nil {
				return storeErr(err, "rename variants")
			}
			if err := s.notify(ctx, tx, Event{
				Type:          enums.EventProductsBulkRenamed,
				AggregateType: enums.AggregateMasterProduct,
				AggregateID:   master.ID,
				Actor:         &actor,
				Payload: payloads.ProductsBulkRenamedEvent{
					MasterID:          master.ID,
					MasterProductSlug: oldSlug,
					NewSlug:           slug,
					CommonName:        name,
				},
			}); err != nil {
				return err
			}
		}
		if brandChanged {
			if err := txRepo.UpdateVariantsBrand(ctx, master.ID, input.BrandID); err != nil {
				return storeErr(err, "cascade brand")
			}
		}

		if err := s.transitionMaster(ctx, tx, txRepo, actor, master, input.IsVisible); err != nil {
			return err
		}
		if master.IsVisible != wasVisible {
			if err := txRepo.SetVisible(ctx, master.ID, master.IsVisible); err != nil {
				return storeErr(err, "set visibility")
			}
		}
		if variationChanged {
			if err := txRepo.ReplaceVariationFeatures(ctx, master.ID, variation); err != nil {
				return storeErr(err, "store variation features")
			}
		}
		if err := txRepo.ReplaceProductFeatures(ctx, master.ID, features.Selections); err != nil {
			return storeErr(err, "store product features")
		}
		if err := s.publishProduct(ctx, tx, actor, enums.EventProductUpdated, master); err != nil {
			return err
		}
		return s.recordActivity(ctx, tx, actor, enums.ActivityUpdate, master, changes)
	})
	if err != nil {
		return nil, txErr(err, "update master product")
	}

	s.logInfo(ctx, masterID, "master product updated")
	return s.reloadMaster(ctx, masterID)
}

func (s *service) CreateVariant(ctx context.Context, actor Actor, input CreateVariantInput) (*VariantDetail, error) {
	master, err := s.repo.FindMasterByID(ctx, input.MasterID)
	if err != nil {
		return nil, lookupErr(err, "master product")
	}
	color, err := s.colorName(ctx, input.ColorID)
	if err != nil {
		return nil, err
	}
	features, err := s.checkFeatures(ctx, input.Features)
	if err != nil {
		return nil, err
	}
	slug := GenerateVariantSlug(master.CommonName, color, features.ValueNames)
	if err := s.ensureSlugFree(ctx, slug, nil); err != nil {
		return nil, err
	}
	media, err := s.resolveMedia(ctx, input.Media)
	if err != nil {
		return nil, err
	}

	variant := &models.Product{
		MasterID:    &master.ID,
		CommonName:  master.CommonName,
		VariantName: trimmedOrNil(input.VariantName),
		Slug:        slug,
		ColorID:     input.ColorID,
		BrandID:     master.BrandID,
		CategoryID:  master.CategoryID,
		Description: master.Description,
		IsVisible:   input.IsVisible,
	}
	media.applyTo(variant)

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.CreateProduct(ctx, variant); err != nil {
			return storeErr(err, "create product")
		}
		if err := txRepo.ReplaceProductFeatures(ctx, variant.ID, features.Selections); err != nil {
			return storeErr(err, "store product features")
		}
		if variant.IsVisible {
			if err := s.revealMaster(ctx, tx, txRepo, actor, master.ID); err != nil {
				return err
			}
		}
		if err := s.publishProduct(ctx, tx, actor, enums.EventProductCreated, variant); err != nil {
			return err
		}
		return s.recordActivity(ctx, tx, actor, enums.ActivityCreate, variant, map[string]any{
			"slug": variant.Slug,
		})
	})
	if err != nil {
		return nil, txErr(err, "create product")
	}

	s.logInfo(ctx, variant.ID, "product created")
	return s.reloadVariant(ctx, variant.ID)
}

func (s *service) UpdateVariant(ctx context.Context, actor Actor, variantID uuid.UUID, input UpdateVariantInput) (*VariantDetail, error) {
	current, err := s.repo.FindVariantByID(ctx, variantID)
	if err != nil {
		return nil, lookupErr(err, "product")
	}
	master, err := s.repo.FindMasterByID(ctx, *current.MasterID)
	if err != nil {
		return nil, lookupErr(err, "master product")
	}
	color, err := s.colorName(ctx, input.ColorID)
	if err != nil {
		return nil, err
	}
	features, err := s.checkFeatures(ctx, input.Features)
	if err != nil {
		return nil, err
	}
	slug := GenerateVariantSlug(master.CommonName, color, features.ValueNames)
	if slug != current.Slug {
		if err := s.ensureSlugFree(ctx, slug, &current.ID); err != nil {
			return nil, err
		}
	}
	media, err := s.resolveMedia(ctx, input.Media)
	if err != nil {
		return nil, err
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		variant, err := txRepo.FindVariantByID(ctx, variantID)
		if err != nil {
			return lookupErr(err, "product")
		}
		changes := map[string]any{}
		if variant.Slug != slug {
			changes["slug"] = slug
		}
		if variant.IsVisible != input.IsVisible {
			changes["is_visible"] = input.IsVisible
		}
		if err := s.transitionVariant(ctx, tx, txRepo, actor, variant, input.IsVisible); err != nil {
			return err
		}

		variant.VariantName = trimmedOrNil(input.VariantName)
		variant.ColorID = input.ColorID
		variant.Slug = slug
		media.applyTo(variant)
		if err := txRepo.SaveProduct(ctx, variant); err != nil {
			return storeErr(err, "update product")
		}
		if err := txRepo.ReplaceProductFeatures(ctx, variant.ID, features.Selections); err != nil {
			return storeErr(err, "store product features")
		}
		if err := s.publishProduct(ctx, tx, actor, enums.EventProductUpdated, variant); err != nil {
			return err
		}
		return s.recordActivity(ctx, tx, actor, enums.ActivityUpdate, variant, changes)
	})
	if err != nil {
		return nil, txErr(err, "update product")
	}

	s.logInfo(ctx, variantID, "product updated")
	return s.reloadVariant(ctx, variantID)
}

func (s *service) DeleteMaster(ctx context.Context, actor Actor, masterID uuid.UUID) error {
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		master, err := txRepo.FindMasterByID(ctx, masterID)
		if err != nil {
			return lookupErr(err, "master product")
		}
		withOffers, err := txRepo.CountVariantsWithOffers(ctx, master.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: count variants with offers")
		}
		if withOffers > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "master product has variants with offers").
				WithDetails(map[string]any{"variants_with_offers": withOffers})
		}
		if err := txRepo.DeleteProduct(ctx, master.ID); err != nil {
			return storeErr(err, "delete master product")
		}
		if err := s.notify(ctx, tx, Event{
			Type:          enums.EventMasterDeleted,
			AggregateType: enums.AggregateMasterProduct,
			AggregateID:   master.ID,
			Actor:         &actor,
			Payload:       payloads.MasterDeletedEvent{MasterID: master.ID},
		}); err != nil {
			return err
		}
		return s.recordActivity(ctx, tx, actor, enums.ActivityDelete, master, nil)
	})
	if err != nil {
		return txErr(err, "delete master product")
	}
	s.logInfo(ctx, masterID, "master product deleted")
	return nil
}

func (s *service) DeleteVariant(ctx context.Context, actor Actor, variantID uuid.UUID) error {
	err := s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		variant, err := txRepo.FindVariantByID(ctx, variantID)
		if err != nil {
			return lookupErr(err, "product")
		}
		if variant.OffersCount > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "product has offers").
				WithDetails(map[string]any{"offers_count": variant.OffersCount})
		}
		if err := txRepo.DeleteProduct(ctx, variant.ID); err != nil {
			return storeErr(err, "delete product")
		}
		if err := s.notify(ctx, tx, Event{
			Type:          enums.EventProductDeleted,
			AggregateType: enums.AggregateProduct,
			AggregateID:   variant.ID,
			Actor:         &actor,
			Payload:       payloads.ProductDeletedEvent{ProductID: variant.ID},
		}); err != nil {
			return err
		}
		return s.recordActivity(ctx, tx, actor, enums.ActivityDelete, variant, nil)
	})
	if err != nil {
		return txErr(err, "delete product")
	}
	s.logInfo(ctx, variantID, "product deleted")
	return nil
}

// DeleteProduct dispatches on the role of the row.
func (s *service) DeleteProduct(ctx context.Context, actor Actor, productID uuid.UUID) error {
	product, err := s.repo.FindProductByID(ctx, productID)
	if err != nil {
		return lookupErr(err, "product")
	}
	if product.IsMaster() {
		return s.DeleteMaster(ctx, actor, productID)
	}
	return s.DeleteVariant(ctx, actor, productID)
}

func (s *service) reloadMaster(ctx context.Context, id uuid.UUID) (*MasterDetail, error) {
	master, err := s.repo.FindMasterByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "master product")
	}
	return s.masterDetail(ctx, master)
}

func (s *service) reloadVariant(ctx context.Context, id uuid.UUID) (*VariantDetail, error) {
	variant, err := s.repo.FindVariantByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, "product")
	}
	return s.variantDetail(ctx, variant)
}

// publishProduct emits product_created or product_updated with the full row.
func (s *service) publishProduct(ctx context.Context, tx *gorm.DB, actor Actor, eventType enums.OutboxEventType, p *models.Product) error {
	return s.notify(ctx, tx, Event{
		Type:          eventType,
		AggregateType: aggregateOf(p),
		AggregateID:   p.ID,
		Actor:         &actor,
		Payload: payloads.ProductChangedEvent{
			ProductID:   p.ID,
			MasterID:    p.MasterID,
			CommonName:  p.CommonName,
			VariantName: p.VariantName,
			Slug:        p.Slug,
			BrandID:     p.BrandID,
			CategoryID:  p.CategoryID,
			MainPhoto:   photoOrNil(p.MainPhoto),
			Photos:      nonNilPhotos(p.Photos),
			VideoURLs:   nonNilStrings(p.VideoURLs),
			Description: p.Description,
			IsVisible:   p.IsVisible,
		},
	})
}

func (s *service) recordActivity(ctx context.Context, tx *gorm.DB, actor Actor, action enums.ActivityAction, p *models.Product, changes map[string]any) error {
	entity := enums.ProductRoleVariant
	if p.IsMaster() {
		entity = enums.ProductRoleMaster
	}
	var actorID *uuid.UUID
	if actor.UserID != uuid.Nil {
		id := actor.UserID
		actorID = &id
	}
	if len(changes) == 0 {
		changes = nil
	}
	return s.notify(ctx, tx, Event{
		Type:          enums.EventActivityRecorded,
		AggregateType: aggregateOf(p),
		AggregateID:   p.ID,
		Actor:         &actor,
		Payload: payloads.ActivityRecordedEvent{
			Action:     string(action),
			EntityType: string(entity),
			EntityID:   p.ID,
			ActorID:    actorID,
			Changes:    changes,
		},
	})
}

// notify hands the event to the notifier. A failure aborts the surrounding
// transaction.
func (s *service) notify(ctx context.Context, tx *gorm.DB, event Event) error {
	if err := s.notifier.Publish(ctx, tx, event); err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "notify "+string(event.Type))
	}
	return nil
}

func aggregateOf(p *models.Product) enums.OutboxAggregateType {
	if p.IsMaster() {
		return enums.AggregateMasterProduct
	}
	return enums.AggregateProduct
}

func (s *service) logInfo(ctx context.Context, productID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Info(s.logg.WithProductID(ctx, productID.String()), msg)
}
