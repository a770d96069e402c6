package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/catalog-backend/pkg/db/types"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
)

// checkedFeatures is a feature payload that passed validation. ValueNames
// follows the supplied order of selections and values.
type checkedFeatures struct {
	Selections []FeatureSelection
	FeatureIDs []uuid.UUID
	ValueNames []string
}

// checkFeatures verifies every (feature, value) pair: the feature exists, the
// value exists and value.feature_id equals the feature. A feature that is not
// multichoice takes exactly one value.
func (s *service) checkFeatures(ctx context.Context, selections []FeatureSelection) (*checkedFeatures, error) {
	out := &checkedFeatures{}
	if len(selections) == 0 {
		return out, nil
	}

	seenFeatures := make(map[uuid.UUID]struct{}, len(selections))
	var valueIDs []uuid.UUID
	for _, sel := range selections {
		if sel.FeatureID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "feature id is required")
		}
		if _, dup := seenFeatures[sel.FeatureID]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "feature selected more than once").
				WithDetails(map[string]any{"feature_id": sel.FeatureID})
		}
		seenFeatures[sel.FeatureID] = struct{}{}
		if len(sel.ValueIDs) == 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "feature requires at least one value").
				WithDetails(map[string]any{"feature_id": sel.FeatureID})
		}
		if len(uniqueIDs(sel.ValueIDs)) != len(sel.ValueIDs) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "feature value selected more than once").
				WithDetails(map[string]any{"feature_id": sel.FeatureID})
		}
		out.FeatureIDs = append(out.FeatureIDs, sel.FeatureID)
		valueIDs = append(valueIDs, sel.ValueIDs...)
	}

	features, err := s.repo.FindFeatures(ctx, out.FeatureIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load features")
	}
	featureByID := make(map[uuid.UUID]models.Feature, len(features))
	for _, f := range features {
		featureByID[f.ID] = f
	}

	values, err := s.repo.FindFeatureValues(ctx, valueIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load feature values")
	}
	valueByID := make(map[uuid.UUID]models.FeatureValue, len(values))
	for _, v := range values {
		valueByID[v.ID] = v
	}

	for _, sel := range selections {
		feature, ok := featureByID[sel.FeatureID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "feature not found").
				WithDetails(map[string]any{"feature_id": sel.FeatureID})
		}
		if !feature.IsMultichoice && len(sel.ValueIDs) > 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "feature accepts a single value").
				WithDetails(map[string]any{"feature_id": sel.FeatureID})
		}
		for _, valueID := range sel.ValueIDs {
			value, ok := valueByID[valueID]
			if !ok {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "feature value not found").
					WithDetails(map[string]any{"feature_id": sel.FeatureID, "value_id": valueID})
			}
			if value.FeatureID != sel.FeatureID {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "feature value does not belong to feature").
					WithDetails(map[string]any{"feature_id": sel.FeatureID, "value_id": valueID})
			}
			out.ValueNames = append(out.ValueNames, value.Value)
		}
		out.Selections = append(out.Selections, FeatureSelection{
			FeatureID: sel.FeatureID,
			ValueIDs:  append([]uuid.UUID(nil), sel.ValueIDs...),
		})
	}
	return out, nil
}

// checkVariationFeatures verifies that every variation axis exists, is flagged
// as a variation feature and is not also a fixed attribute in ownFeatures.
func (s *service) checkVariationFeatures(ctx context.Context, ids []uuid.UUID, ownFeatures []uuid.UUID) ([]uuid.UUID, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return ids, nil
	}
	features, err := s.repo.FindFeatures(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load variation features")
	}
	found := make(map[uuid.UUID]models.Feature, len(features))
	for _, f := range features {
		found[f.ID] = f
	}
	var missing, notVariation []uuid.UUID
	for _, id := range ids {
		f, ok := found[id]
		switch {
		case !ok:
			missing = append(missing, id)
		case !f.IsVariation:
			notVariation = append(notVariation, id)
		}
	}
	if len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variation feature not found").
			WithDetails(map[string]any{"feature_ids": missing})
	}
	if len(notVariation) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "feature cannot be used as a variation").
			WithDetails(map[string]any{"feature_ids": notVariation})
	}

	own := toSet(ownFeatures)
	var overlap []uuid.UUID
	for _, id := range ids {
		if _, ok := own[id]; ok {
			overlap = append(overlap, id)
		}
	}
	if len(overlap) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variation features overlap product features").
			WithDetails(map[string]any{"feature_ids": overlap})
	}
	return ids, nil
}

func (s *service) checkBrand(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.repo.FindBrand(ctx, *id); err != nil {
		return referenceErr(err, "brand", *id)
	}
	return nil
}

func (s *service) checkCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.repo.FindCategory(ctx, *id); err != nil {
		return referenceErr(err, "category", *id)
	}
	return nil
}

// colorName returns the name of the referenced color, or "" when none is set.
func (s *service) colorName(ctx context.Context, id *uuid.UUID) (string, error) {
	if id == nil {
		return "", nil
	}
	color, err := s.repo.FindColor(ctx, *id)
	if err != nil {
		return "", referenceErr(err, "color", *id)
	}
	return color.Name, nil
}

// referenceErr reports a body reference to a missing row as Validation.
func referenceErr(err error, what string, id uuid.UUID) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeValidation, what+" not found").
			WithDetails(map[string]any{what + "_id": id})
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load "+what)
}

func checkDescription(description *string) error {
	if description != nil && len([]rune(*description)) > maxDescriptionLength {
		return pkgerrors.New(pkgerrors.CodeValidation, "description is too long").
			WithDetails(map[string]any{"max_length": maxDescriptionLength})
	}
	return nil
}

func checkCommonName(name string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "common_name is required")
	}
	slug := GenerateMasterSlug(name)
	if slug == "" {
		return "", "", pkgerrors.New(pkgerrors.CodeValidation, "common_name must contain letters or digits")
	}
	return name, slug, nil
}

// ensureSlugFree fails with Conflict when another product owns slug.
func (s *service) ensureSlugFree(ctx context.Context, slug string, excludeID *uuid.UUID) error {
	taken, err := s.repo.SlugExists(ctx, slug, excludeID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check slug")
	}
	if taken {
		return pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
	}
	return nil
}

type resolvedMedia struct {
	MainPhoto      *dbtypes.Photo
	MiniaturePhoto *dbtypes.Photo
	Photos         dbtypes.PhotoList
	VideoURLs      dbtypes.StringList
}

// resolveMedia looks every photo id up on the CDN. It runs before the
// transaction opens so no upstream call holds a database connection.
func (s *service) resolveMedia(ctx context.Context, in MediaInput) (*resolvedMedia, error) {
	out := &resolvedMedia{Photos: dbtypes.PhotoList{}, VideoURLs: dbtypes.StringList{}}
	var err error
	if id := trimmedPtr(in.MainPhotoID); id != "" {
		if out.MainPhoto, err = s.photos.Resolve(ctx, id); err != nil {
			return nil, err
		}
	}
	if id := trimmedPtr(in.MiniaturePhotoID); id != "" {
		if out.MiniaturePhoto, err = s.photos.Resolve(ctx, id); err != nil {
			return nil, err
		}
	}
	seen := make(map[string]struct{}, len(in.PhotoIDs))
	for _, raw := range in.PhotoIDs {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate photo ids").
				WithDetails(map[string]any{"photo_id": id})
		}
		seen[id] = struct{}{}
		photo, err := s.photos.Resolve(ctx, id)
		if err != nil {
			return nil, err
		}
		out.Photos = append(out.Photos, *photo)
	}
	for _, raw := range in.VideoURLs {
		if url := strings.TrimSpace(raw); url != "" {
			out.VideoURLs = append(out.VideoURLs, url)
		}
	}
	return out, nil
}

func (m *resolvedMedia) applyTo(p *models.Product) {
	p.MainPhoto = m.MainPhoto
	p.MiniaturePhoto = m.MiniaturePhoto
	p.Photos = m.Photos
	p.VideoURLs = m.VideoURLs
}

func trimmedPtr(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

func sameIDSet(a, b []uuid.UUID) bool {
	setA, setB := toSet(a), toSet(b)
	if len(setA) != len(setB) {
		return false
	}
	for id := range setA {
		if _, ok := setB[id]; !ok {
			return false
		}
	}
	return true
}

// missingFrom returns the ids of from that are absent in keep.
func missingFrom(from, keep []uuid.UUID) []uuid.UUID {
	keepSet := toSet(keep)
	var out []uuid.UUID
	for _, id := range from {
		if _, ok := keepSet[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func sameUUIDPtr(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
