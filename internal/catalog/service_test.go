package catalog

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/outbox/payloads"
)

func TestCreateMasterPersistsFeaturesAndEmits(t *testing.T) {
	f := newFixture(t)
	brandID := f.brand("Acme")
	categoryID := f.category("Tablets", nil, 0)
	storageID, _ := f.feature("Storage", true, false, "128 GB", "256 GB")
	screenID, screenValues := f.feature("Screen", false, false, "11 inch")

	out, err := f.svc.CreateMaster(f.ctx, f.actor, CreateMasterInput{
		CommonName:          "  Galaxy Tab ",
		BrandID:             &brandID,
		CategoryID:          &categoryID,
		Description:         ptr("A tablet"),
		Media:               MediaInput{MainPhotoID: ptr("p1"), PhotoIDs: []string{"p2", "p3"}, VideoURLs: []string{"https://video.test/1"}},
		VariationFeatureIDs: []uuid.UUID{storageID},
		Features:            []FeatureSelection{{FeatureID: screenID, ValueIDs: screenValues}},
		IsVisible:           true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Galaxy Tab", out.CommonName)
	assert.Equal(t, "galaxy-tab", out.Slug)
	require.NotNil(t, out.Brand)
	assert.Equal(t, "Acme", out.Brand.Name)
	require.NotNil(t, out.Category)
	assert.Equal(t, "Tablets", out.Category.Name)
	require.NotNil(t, out.MainPhoto)
	assert.Equal(t, "p1", out.MainPhoto.ID)
	assert.Len(t, out.Photos, 2)
	assert.Equal(t, []RefDTO{{ID: storageID, Name: "Storage"}}, out.VariationFeatures)
	require.Len(t, out.Features, 1)
	assert.Equal(t, "11 inch", out.Features[0].Values[0].Value)
	assert.True(t, out.IsNew)

	created := f.notifier.ofType(enums.EventProductCreated)
	require.Len(t, created, 1)
	assert.Equal(t, enums.AggregateMasterProduct, created[0].AggregateType)
	payload, ok := created[0].Payload.(payloads.ProductChangedEvent)
	require.True(t, ok)
	assert.Nil(t, payload.MasterID)
	assert.Equal(t, "galaxy-tab", payload.Slug)

	activity := f.notifier.ofType(enums.EventActivityRecorded)
	require.Len(t, activity, 1)
	entry := activity[0].Payload.(payloads.ActivityRecordedEvent)
	assert.Equal(t, "create", entry.Action)
	assert.Equal(t, "master_product", entry.EntityType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, f.actor.UserID, *entry.ActorID)
}

func TestCreateMasterRejectsDuplicateSlug(t *testing.T) {
	f := newFixture(t)
	f.master("Galaxy Tab", false)
	f.notifier.reset()

	_, err := f.svc.CreateMaster(f.ctx, f.actor, CreateMasterInput{CommonName: "galaxy  tab"})
	requireCode(t, err, pkgerrors.CodeConflict)
	assert.Zero(t, f.notifier.count())
}

func TestCreateMasterValidation(t *testing.T) {
	f := newFixture(t)
	plainID, plainValues := f.feature("Weight", false, false, "1 kg", "2 kg")
	otherID, otherValues := f.feature("Material", false, true, "Steel")

	cases := []struct {
		name  string
		input CreateMasterInput
		code  pkgerrors.Code
	}{
		{name: "blank name", input: CreateMasterInput{CommonName: "   "}, code: pkgerrors.CodeValidation},
		{name: "punctuation only", input: CreateMasterInput{CommonName: "!!!"}, code: pkgerrors.CodeValidation},
		{name: "missing brand", input: CreateMasterInput{CommonName: "A", BrandID: ptr(uuid.New())}, code: pkgerrors.CodeValidation},
		{name: "missing category", input: CreateMasterInput{CommonName: "A", CategoryID: ptr(uuid.New())}, code: pkgerrors.CodeValidation},
		{name: "foreign value", input: CreateMasterInput{CommonName: "A", Features: []FeatureSelection{{FeatureID: plainID, ValueIDs: otherValues}}}, code: pkgerrors.CodeValidation},
		{name: "single choice", input: CreateMasterInput{CommonName: "A", Features: []FeatureSelection{{FeatureID: plainID, ValueIDs: plainValues}}}, code: pkgerrors.CodeValidation},
		{name: "empty values", input: CreateMasterInput{CommonName: "A", Features: []FeatureSelection{{FeatureID: otherID}}}, code: pkgerrors.CodeValidation},
		{name: "not a variation", input: CreateMasterInput{CommonName: "A", VariationFeatureIDs: []uuid.UUID{plainID}}, code: pkgerrors.CodeValidation},
		{name: "unknown variation", input: CreateMasterInput{CommonName: "A", VariationFeatureIDs: []uuid.UUID{uuid.New()}}, code: pkgerrors.CodeValidation},
		{name: "cdn failure", input: CreateMasterInput{CommonName: "A", Media: MediaInput{MainPhotoID: ptr("missing")}}, code: pkgerrors.CodeFailedDependency},
		{name: "duplicate photos", input: CreateMasterInput{CommonName: "A", Media: MediaInput{PhotoIDs: []string{"p1", "p1"}}}, code: pkgerrors.CodeValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.CreateMaster(f.ctx, f.actor, tc.input)
			requireCode(t, err, tc.code)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Product{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.notifier.count())
}

func TestCreateMasterRejectsVariationOverlap(t *testing.T) {
	f := newFixture(t)
	storageID, storageValues := f.feature("Storage", true, false, "128 GB")

	_, err := f.svc.CreateMaster(f.ctx, f.actor, CreateMasterInput{
		CommonName:          "Tablet",
		VariationFeatureIDs: []uuid.UUID{storageID},
		Features:            []FeatureSelection{{FeatureID: storageID, ValueIDs: storageValues}},
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateVariantInheritsFromMaster(t *testing.T) {
	f := newFixture(t)
	brandID := f.brand("Acme")
	categoryID := f.category("Tablets", nil, 0)
	colorID := f.color("Black")
	storageID, storageValues := f.feature("Storage", true, false, "128 GB")

	master, err := f.svc.CreateMaster(f.ctx, f.actor, CreateMasterInput{
		CommonName:          "Galaxy Tab",
		BrandID:             &brandID,
		CategoryID:          &categoryID,
		Description:         ptr("A tablet"),
		VariationFeatureIDs: []uuid.UUID{storageID},
		IsVisible:           true,
	})
	require.NoError(t, err)

	out, err := f.svc.CreateVariant(f.ctx, f.actor, CreateVariantInput{
		MasterID:    master.ID,
		VariantName: ptr(" Black 128 "),
		ColorID:     &colorID,
		Features:    []FeatureSelection{{FeatureID: storageID, ValueIDs: storageValues}},
		IsVisible:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, "galaxy-tab-black-128-gb", out.Slug)
	assert.Equal(t, master.ID, out.MasterID)
	assert.Equal(t, "galaxy-tab", out.MasterSlug)
	assert.Equal(t, "Galaxy Tab", out.CommonName)
	require.NotNil(t, out.VariantName)
	assert.Equal(t, "Black 128", *out.VariantName)
	require.NotNil(t, out.Color)
	assert.Equal(t, "Black", out.Color.Name)
	assert.Equal(t, &brandID, out.BrandID)
	assert.Equal(t, &categoryID, out.CategoryID)
	require.NotNil(t, out.Description)
	assert.Equal(t, "A tablet", *out.Description)
	require.Len(t, out.Features, 1)
}

func TestCreateVariantRejectsForeignValue(t *testing.T) {
	f := newFixture(t)
	storageID, _ := f.feature("Storage", true, false, "128 GB")
	_, colorValues := f.feature("Finish", true, false, "Matte")
	master := f.master("Galaxy Tab", true, storageID)
	f.notifier.reset()

	_, err := f.svc.CreateVariant(f.ctx, f.actor, CreateVariantInput{
		MasterID: master.ID,
		Features: []FeatureSelection{{FeatureID: storageID, ValueIDs: colorValues}},
	})
	requireCode(t, err, pkgerrors.CodeValidation)

	var count int64
	require.NoError(t, f.db.Model(&models.Product{}).Where("master_id IS NOT NULL").Count(&count).Error)
	assert.Zero(t, count)
	assert.Zero(t, f.notifier.count())
}

func TestCreateVariantErrors(t *testing.T) {
	f := newFixture(t)
	red := f.color("Red")
	master := f.master("Kettle", true)
	variant := f.variant(master.ID, &red, false)

	_, err := f.svc.CreateVariant(f.ctx, f.actor, CreateVariantInput{MasterID: uuid.New()})
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.CreateVariant(f.ctx, f.actor, CreateVariantInput{MasterID: variant.ID})
	requireCode(t, err, pkgerrors.CodeNotFound)

	_, err = f.svc.CreateVariant(f.ctx, f.actor, CreateVariantInput{MasterID: master.ID})
	requireCode(t, err, pkgerrors.CodeConflict)

	_, err = f.svc.CreateVariant(f.ctx, f.actor, CreateVariantInput{MasterID: master.ID, ColorID: ptr(uuid.New())})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateVisibleVariantShowsHiddenMaster(t *testing.T) {
	f := newFixture(t)
	colorID := f.color("Red")
	master := f.master("Kettle", false)
	f.notifier.reset()

	variant := f.variant(master.ID, &colorID, true)

	assert.True(t, f.product(variant.ID).IsVisible)
	assert.True(t, f.product(master.ID).IsVisible)

	updated := f.notifier.ofType(enums.EventProductUpdated)
	require.Len(t, updated, 1)
	assert.Equal(t, master.ID, updated[0].AggregateID)
	assert.Len(t, f.notifier.ofType(enums.EventProductCreated), 1)
}

func TestVariantShowForcesMasterVisible(t *testing.T) {
	f := newFixture(t)
	colorID := f.color("Red")
	master := f.master("Kettle", false)
	variant := f.variant(master.ID, &colorID, false)
	f.notifier.reset()

	res, err := f.svc.setVariantVisibility(f.ctx, f.actor, variant.ID, true)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.False(t, res.IsMaster)

	assert.True(t, f.product(variant.ID).IsVisible)
	assert.True(t, f.product(master.ID).IsVisible)
	updated := f.notifier.ofType(enums.EventProductUpdated)
	require.Len(t, updated, 2)
	assert.ElementsMatch(t, []uuid.UUID{master.ID, variant.ID}, []uuid.UUID{updated[0].AggregateID, updated[1].AggregateID})
}

func TestMasterHideBlockedByOffers(t *testing.T) {
	f := newFixture(t)
	red, blue := f.color("Red"), f.color("Blue")
	master := f.master("Kettle", true)
	withOffers := f.variant(master.ID, &red, true)
	plain := f.variant(master.ID, &blue, true)
	f.setOffers(withOffers.ID, 3)
	f.notifier.reset()

	_, err := f.svc.setMasterVisibility(f.ctx, f.actor, master.ID, false)
	requireCode(t, err, pkgerrors.CodeValidation)

	assert.True(t, f.product(master.ID).IsVisible)
	assert.True(t, f.product(withOffers.ID).IsVisible)
	assert.True(t, f.product(plain.ID).IsVisible)
	assert.Zero(t, f.notifier.count())
}

func TestMasterHideCascadesToVariants(t *testing.T) {
	f := newFixture(t)
	red, blue, green := f.color("Red"), f.color("Blue"), f.color("Green")
	master := f.master("Kettle", true)
	a := f.variant(master.ID, &red, true)
	b := f.variant(master.ID, &blue, true)
	hidden := f.variant(master.ID, &green, false)
	f.notifier.reset()

	res, err := f.svc.SetVisibility(f.ctx, f.actor, master.ID, false)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.IsMaster)

	assert.False(t, f.product(master.ID).IsVisible)
	assert.False(t, f.product(a.ID).IsVisible)
	assert.False(t, f.product(b.ID).IsVisible)
	assert.False(t, f.product(hidden.ID).IsVisible)

	var ids []uuid.UUID
	for _, e := range f.notifier.ofType(enums.EventProductUpdated) {
		ids = append(ids, e.AggregateID)
	}
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID, master.ID}, ids)
}

func TestVisibilityNoop(t *testing.T) {
	f := newFixture(t)
	red := f.color("Red")
	master := f.master("Kettle", true)
	variant := f.variant(master.ID, &red, true)
	before := f.product(variant.ID)
	f.notifier.reset()

	res, err := f.svc.SetVisibility(f.ctx, f.actor, variant.ID, true)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	res, err = f.svc.setMasterVisibility(f.ctx, f.actor, master.ID, true)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	assert.Zero(t, f.notifier.count())
	after := f.product(variant.ID)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestVariantHideBlockedByOffers(t *testing.T) {
	f := newFixture(t)
	red := f.color("Red")
	master := f.master("Kettle", true)
	variant := f.variant(master.ID, &red, true)
	f.setOffers(variant.ID, 1)

	_, err := f.svc.setVariantVisibility(f.ctx, f.actor, variant.ID, false)
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.True(t, f.product(variant.ID).IsVisible)
}

func TestVisibilityRoleMismatch(t *testing.T) {
	f := newFixture(t)
	red := f.color("Red")
	master := f.master("Kettle", true)
	variant := f.variant(master.ID, &red, true)

	_, err := f.svc.setMasterVisibility(f.ctx, f.actor, variant.ID, false)
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = f.svc.setVariantVisibility(f.ctx, f.actor, master.ID, false)
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = f.svc.SetVisibility(f.ctx, f.actor, uuid.New(), false)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestDeleteBlockedByOffers(t *testing.T) {
	f := newFixture(t)
	red := f.color("Red")
	master := f.master("Kettle", true)
	variant := f.variant(master.ID, &red, true)
	f.setOffers(variant.ID, 2)
	f.notifier.reset()

	requireCode(t, f.svc.DeleteVariant(f.ctx, f.actor, variant.ID), pkgerrors.CodeValidation)
	requireCode(t, f.svc.DeleteMaster(f.ctx, f.actor, master.ID), pkgerrors.CodeValidation)
	requireCode(t, f.svc.DeleteProduct(f.ctx, f.actor, master.ID), pkgerrors.CodeValidation)
	assert.Zero(t, f.notifier.count())

	f.setOffers(variant.ID, 0)
	require.NoError(t, f.svc.DeleteProduct(f.ctx, f.actor, variant.ID))
	deleted := f.notifier.ofType(enums.EventProductDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, payloads.ProductDeletedEvent{ProductID: variant.ID}, deleted[0].Payload)

	require.NoError(t, f.svc.DeleteProduct(f.ctx, f.actor, master.ID))
	masterDeleted := f.notifier.ofType(enums.EventMasterDeleted)
	require.Len(t, masterDeleted, 1)
	assert.Equal(t, payloads.MasterDeletedEvent{MasterID: master.ID}, masterDeleted[0].Payload)

	var count int64
	require.NoError(t, f.db.Model(&models.Product{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteMasterCascades(t *testing.T) {
	f := newFixture(t)
	storageID, storageValues := f.feature("Storage", true, false, "128 GB")
	master := f.master("Galaxy Tab", true, storageID)
	f.variant(master.ID, nil, true, FeatureSelection{FeatureID: storageID, ValueIDs: storageValues})

	require.NoError(t, f.svc.DeleteMaster(f.ctx, f.actor, master.ID))

	for _, table := range []string{"products", "product_features", "product_feature_values", "product_variation_features"} {
		var count int64
		require.NoError(t, f.db.Table(table).Count(&count).Error)
		assert.Zero(t, count, table)
	}
	requireCode(t, f.svc.DeleteMaster(f.ctx, f.actor, master.ID), pkgerrors.CodeNotFound)
}

func TestRenameMasterRewritesVariantSlugs(t *testing.T) {
	f := newFixture(t)
	black, white := f.color("Black"), f.color("White")
	storageID, storageValues := f.feature("Storage", true, false, "128 GB", "256 GB")
	master := f.master("Galaxy Tab", true, storageID)
	a := f.variant(master.ID, &black, true, FeatureSelection{FeatureID: storageID, ValueIDs: storageValues[:1]})
	b := f.variant(master.ID, &white, true, FeatureSelection{FeatureID: storageID, ValueIDs: storageValues[1:]})
	f.notifier.reset()

	out, err := f.svc.UpdateMaster(f.ctx, f.actor, master.ID, UpdateMasterInput{
		CommonName:          "Galaxy Tab S9",
		VariationFeatureIDs: []uuid.UUID{storageID},
		IsVisible:           true,
	})
	require.NoError(t, err)
	assert.Equal(t, "galaxy-tab-s9", out.Slug)

	va, vb := f.product(a.ID), f.product(b.ID)
	assert.Equal(t, "galaxy-tab-s9-black-128-gb", va.Slug)
	assert.Equal(t, "galaxy-tab-s9-white-256-gb", vb.Slug)
	assert.Equal(t, "Galaxy Tab S9", va.CommonName)
	assert.Equal(t, "Galaxy Tab S9", vb.CommonName)

	renamed := f.notifier.ofType(enums.EventProductsBulkRenamed)
	require.Len(t, renamed, 1)
	assert.Equal(t, payloads.ProductsBulkRenamedEvent{
		MasterID:          master.ID,
		MasterProductSlug: "galaxy-tab",
		NewSlug:           "galaxy-tab-s9",
		CommonName:        "Galaxy Tab S9",
	}, renamed[0].Payload)
	assert.Len(t, f.notifier.ofType(enums.EventProductUpdated), 1)
}

func TestUpdateMasterRenameConflict(t *testing.T) {
	f := newFixture(t)
	f.master("Kettle Pro", false)
	master := f.master("Kettle", false)

	_, err := f.svc.UpdateMaster(f.ctx, f.actor, master.ID, UpdateMasterInput{CommonName: "Kettle PRO"})
	requireCode(t, err, pkgerrors.CodeConflict)
	assert.Equal(t, "kettle", f.product(master.ID).Slug)
}

func TestUpdateMasterRejectsRemovingUsedVariation(t *testing.T) {
	f := newFixture(t)
	storageID, storageValues := f.feature("Storage", true, false, "128 GB")
	finishID, _ := f.feature("Finish", true, false, "Matte")
	master := f.master("Galaxy Tab", true, storageID, finishID)
	f.variant(master.ID, nil, true, FeatureSelection{FeatureID: storageID, ValueIDs: storageValues})
	f.notifier.reset()

	_, err := f.svc.UpdateMaster(f.ctx, f.actor, master.ID, UpdateMasterInput{
		CommonName:          "Galaxy Tab",
		VariationFeatureIDs: []uuid.UUID{finishID},
		IsVisible:           true,
	})
	requireCode(t, err, pkgerrors.CodeValidation)
	ids, err := f.repo.ListVariationFeatureIDs(f.ctx, master.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{storageID, finishID}, ids)
	assert.Zero(t, f.notifier.count())

	_, err = f.svc.UpdateMaster(f.ctx, f.actor, master.ID, UpdateMasterInput{
		CommonName:          "Galaxy Tab",
		VariationFeatureIDs: []uuid.UUID{storageID},
		IsVisible:           true,
	})
	require.NoError(t, err)
	ids, err = f.repo.ListVariationFeatureIDs(f.ctx, master.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{storageID}, ids)
}

func TestUpdateMasterCascadesBrandAndHides(t *testing.T) {
	f := newFixture(t)
	oldBrand, newBrand := f.brand("Old"), f.brand("New")
	master, err := f.svc.CreateMaster(f.ctx, f.actor, CreateMasterInput{CommonName: "Kettle", BrandID: &oldBrand, IsVisible: true})
	require.NoError(t, err)
	variant := f.variant(master.ID, ptr(f.color("Red")), true)
	f.notifier.reset()

	out, err := f.svc.UpdateMaster(f.ctx, f.actor, master.ID, UpdateMasterInput{CommonName: "Kettle", BrandID: &newBrand, IsVisible: false})
	require.NoError(t, err)
	assert.False(t, out.IsVisible)

	row := f.product(variant.ID)
	assert.Equal(t, &newBrand, row.BrandID)
	assert.False(t, row.IsVisible)
	assert.Empty(t, f.notifier.ofType(enums.EventProductsBulkRenamed))

	activity := f.notifier.ofType(enums.EventActivityRecorded)
	require.Len(t, activity, 1)
	changes := activity[0].Payload.(payloads.ActivityRecordedEvent).Changes
	assert.Contains(t, changes, "brand_id")
}

func TestUpdateMasterCaseOnlyRenameAnnouncesVariants(t *testing.T) {
	f := newFixture(t)
	master := f.master("Galaxy Tab", true)
	variant := f.variant(master.ID, ptr(f.color("Black")), true)
	f.notifier.reset()

	out, err := f.svc.UpdateMaster(f.ctx, f.actor, master.ID, UpdateMasterInput{CommonName: "GALAXY TAB", IsVisible: true})
	require.NoError(t, err)
	assert.Equal(t, "galaxy-tab", out.Slug)

	row := f.product(variant.ID)
	assert.Equal(t, "GALAXY TAB", row.CommonName)
	assert.Equal(t, "galaxy-tab-black", row.Slug)

	renamed := f.notifier.ofType(enums.EventProductsBulkRenamed)
	require.Len(t, renamed, 1)
	assert.Equal(t, payloads.ProductsBulkRenamedEvent{
		MasterID:          master.ID,
		MasterProductSlug: "galaxy-tab",
		NewSlug:           "galaxy-tab",
		CommonName:        "GALAXY TAB",
	}, renamed[0].Payload)
}

func TestUpdateMasterRejectsVariationOverlap(t *testing.T) {
	f := newFixture(t)
	storageID, _ := f.feature("Storage", true, false, "128 GB")
	screenID, screenValues := f.feature("Screen", true, false, "11 inch")
	master, err := f.svc.CreateMaster(f.ctx, f.actor, CreateMasterInput{
		CommonName:          "Tablet",
		VariationFeatureIDs: []uuid.UUID{storageID},
		Features:            []FeatureSelection{{FeatureID: screenID, ValueIDs: screenValues}},
		IsVisible:           true,
	})
	require.NoError(t, err)
	f.notifier.reset()

	countFeatures := func() int64 {
		var n int64
		require.NoError(t, f.db.Model(&models.ProductFeature{}).Where("product_id = ?", master.ID).Count(&n).Error)
		return n
	}
	before := countFeatures()

	_, err = f.svc.UpdateMaster(f.ctx, f.actor, master.ID, UpdateMasterInput{
		CommonName:          "Tablet",
		VariationFeatureIDs: []uuid.UUID{storageID, screenID},
		Features:            []FeatureSelection{{FeatureID: screenID, ValueIDs: screenValues}},
		IsVisible:           true,
	})
	requireCode(t, err, pkgerrors.CodeValidation)
	var typed *pkgerrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, map[string]any{"feature_ids": []uuid.UUID{screenID}}, typed.Details())

	assert.Equal(t, before, countFeatures())
	ids, err := f.repo.ListVariationFeatureIDs(f.ctx, master.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{storageID}, ids)
	assert.Zero(t, f.notifier.count())
}

func TestUpdateMasterHideAfterRenameCarriesNewNames(t *testing.T) {
	f := newFixture(t)
	master := f.master("Kettle", true)
	variant := f.variant(master.ID, ptr(f.color("Red")), true)
	f.notifier.reset()

	out, err := f.svc.UpdateMaster(f.ctx, f.actor, master.ID, UpdateMasterInput{CommonName: "Kettle Max", IsVisible: false})
	require.NoError(t, err)
	assert.False(t, out.IsVisible)
	assert.False(t, f.product(master.ID).IsVisible)

	var variantEvents []payloads.ProductChangedEvent
	for _, e := range f.notifier.ofType(enums.EventProductUpdated) {
		if e.AggregateID == variant.ID {
			variantEvents = append(variantEvents, e.Payload.(payloads.ProductChangedEvent))
		}
	}
	require.Len(t, variantEvents, 1)
	assert.Equal(t, "kettle-max-red", variantEvents[0].Slug)
	assert.Equal(t, "Kettle Max", variantEvents[0].CommonName)
	assert.False(t, variantEvents[0].IsVisible)
}

func TestUpdateVariantRegeneratesSlug(t *testing.T) {
	f := newFixture(t)
	black, white := f.color("Black"), f.color("White")
	sizeID, sizeValues := f.feature("Size", true, false, "1 L", "2 L")
	master := f.master("Kettle", true, sizeID)
	a := f.variant(master.ID, &black, true)
	f.variant(master.ID, &white, true)
	f.notifier.reset()

	out, err := f.svc.UpdateVariant(f.ctx, f.actor, a.ID, UpdateVariantInput{ColorID: &white, IsVisible: true})
	requireCode(t, err, pkgerrors.CodeConflict)
	assert.Nil(t, out)
	assert.Equal(t, "kettle-black", f.product(a.ID).Slug)

	out, err = f.svc.UpdateVariant(f.ctx, f.actor, a.ID, UpdateVariantInput{
		ColorID:     &black,
		VariantName: ptr("Large"),
		Features:    []FeatureSelection{{FeatureID: sizeID, ValueIDs: sizeValues[1:]}},
		IsVisible:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "kettle-black-2-l", out.Slug)
	require.NotNil(t, out.VariantName)
	assert.Equal(t, "Large", *out.VariantName)
	require.Len(t, out.Features, 1)
	assert.Equal(t, "2 L", out.Features[0].Values[0].Value)

	updated := f.notifier.ofType(enums.EventProductUpdated)
	require.Len(t, updated, 1)
	assert.Equal(t, a.ID, updated[0].AggregateID)
}

func TestUpdateVariantHideBlockedByOffers(t *testing.T) {
	f := newFixture(t)
	black := f.color("Black")
	master := f.master("Kettle", true)
	variant := f.variant(master.ID, &black, true)
	f.setOffers(variant.ID, 4)

	_, err := f.svc.UpdateVariant(f.ctx, f.actor, variant.ID, UpdateVariantInput{ColorID: &black, IsVisible: false})
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.True(t, f.product(variant.ID).IsVisible)
}

func TestNameDuplicateChecksIgnoreCase(t *testing.T) {
	f := newFixture(t)
	black := f.color("Black")
	master := f.master("Test Name", false)
	variant, err := f.svc.CreateVariant(f.ctx, f.actor, CreateVariantInput{MasterID: master.ID, ColorID: &black, VariantName: ptr("Night Edition")})
	require.NoError(t, err)

	for _, name := range []string{"Test Name", "TEST NAME", " test name "} {
		res, err := f.svc.CheckCommonNameDuplicate(f.ctx, name)
		require.NoError(t, err)
		assert.True(t, res.IsDuplicated, name)
		require.NotNil(t, res.Name)
		assert.Equal(t, "Test Name", *res.Name)
	}
	res, err := f.svc.CheckCommonNameDuplicate(f.ctx, "Test")
	require.NoError(t, err)
	assert.False(t, res.IsDuplicated)

	res, err = f.svc.CheckVariantNameDuplicate(f.ctx, master.ID, "night EDITION")
	require.NoError(t, err)
	assert.True(t, res.IsDuplicated)
	assert.Equal(t, variant.VariantName, res.Name)

	other := f.master("Other", false)
	res, err = f.svc.CheckVariantNameDuplicate(f.ctx, other.ID, "Night Edition")
	require.NoError(t, err)
	assert.False(t, res.IsDuplicated)

	_, err = f.svc.CheckCommonNameDuplicate(f.ctx, "  ")
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = f.svc.CheckVariantNameDuplicate(f.ctx, uuid.New(), "x")
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestVariationFeatureUsage(t *testing.T) {
	f := newFixture(t)
	storageID, storageValues := f.feature("Storage", true, false, "128 GB")
	finishID, _ := f.feature("Finish", true, false, "Matte")
	master := f.master("Galaxy Tab", true, storageID, finishID)
	f.variant(master.ID, nil, true, FeatureSelection{FeatureID: storageID, ValueIDs: storageValues})

	usage, err := f.svc.GetVariationFeatureUsage(f.ctx, master.ID, []uuid.UUID{storageID, finishID, storageID})
	require.NoError(t, err)
	assert.Equal(t, []FeatureUsage{
		{FeatureID: storageID, IsFeatureUsed: true},
		{FeatureID: finishID, IsFeatureUsed: false},
	}, usage)

	_, err = f.svc.GetVariationFeatureUsage(f.ctx, uuid.New(), []uuid.UUID{storageID})
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestGetMasterBySlugOrID(t *testing.T) {
	f := newFixture(t)
	red, blue := f.color("Red"), f.color("Blue")
	master := f.master("Kettle", true)
	a := f.variant(master.ID, &red, true)
	f.variant(master.ID, &blue, true)
	f.setOffers(a.ID, 5)

	bySlug, err := f.svc.GetMaster(f.ctx, "kettle")
	require.NoError(t, err)
	byID, err := f.svc.GetMaster(f.ctx, master.ID.String())
	require.NoError(t, err)
	assert.Equal(t, bySlug.ID, byID.ID)
	assert.Equal(t, 5, bySlug.OffersCount)
	assert.Len(t, bySlug.Variations, 2)

	_, err = f.svc.GetMaster(f.ctx, "kettle-red")
	requireCode(t, err, pkgerrors.CodeNotFound)
	_, err = f.svc.GetVariant(f.ctx, "kettle")
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestIsNewWindow(t *testing.T) {
	f := newFixture(t)
	master := f.master("Kettle", true)

	f.freeze(time.Now().UTC().Add(31 * 24 * time.Hour))
	out, err := f.svc.GetMaster(f.ctx, master.Slug)
	require.NoError(t, err)
	assert.False(t, out.IsNew)
}

func TestActiveVariations(t *testing.T) {
	f := newFixture(t)
	master := f.master("Kettle", true)
	f.svc.pos = stubPointOfSale{body: []byte(`[{"id":"a"}]`)}

	raw, err := f.svc.ActiveVariations(f.ctx, master.ID, "pos-1")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"a"}]`, string(raw))

	f.svc.pos = stubPointOfSale{err: pkgerrors.New(pkgerrors.CodeFailedDependency, "point of sale unavailable")}
	_, err = f.svc.ActiveVariations(f.ctx, master.ID, "pos-1")
	requireCode(t, err, pkgerrors.CodeFailedDependency)
}

func TestNotifierFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.notifier.failOn = enums.EventActivityRecorded

	_, err := f.svc.CreateMaster(f.ctx, f.actor, CreateMasterInput{CommonName: "Kettle"})
	requireCode(t, err, pkgerrors.CodeDependency)

	var count int64
	require.NoError(t, f.db.Model(&models.Product{}).Count(&count).Error)
	assert.Zero(t, count)
}
