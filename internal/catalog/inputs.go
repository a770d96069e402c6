package catalog

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/catalog-backend/pkg/enums"
	"github.com/angelmondragon/catalog-backend/pkg/pagination"
)

// Actor is the authenticated user behind a mutation. It is copied onto every
// emitted event.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// FeatureSelection is the set of values chosen for one feature. Several values
// are only allowed for multichoice features.
type FeatureSelection struct {
	FeatureID uuid.UUID
	ValueIDs  []uuid.UUID
}

// MediaInput references photos by their CDN id.
type MediaInput struct {
	MainPhotoID      *string
	MiniaturePhotoID *string
	PhotoIDs         []string
	VideoURLs        []string
}

type CreateMasterInput struct {
	CommonName          string
	BrandID             *uuid.UUID
	CategoryID          *uuid.UUID
	Description         *string
	Media               MediaInput
	VariationFeatureIDs []uuid.UUID
	Features            []FeatureSelection
	IsVisible           bool
}

// UpdateMasterInput replaces every editable field of a master.
type UpdateMasterInput struct {
	CommonName          string
	BrandID             *uuid.UUID
	Description         *string
	Media               MediaInput
	VariationFeatureIDs []uuid.UUID
	Features            []FeatureSelection
	IsVisible           bool
}

type CreateVariantInput struct {
	MasterID    uuid.UUID
	VariantName *string
	ColorID     *uuid.UUID
	Media       MediaInput
	Features    []FeatureSelection
	IsVisible   bool
}

// UpdateVariantInput replaces every editable field of a variant.
type UpdateVariantInput struct {
	VariantName *string
	ColorID     *uuid.UUID
	Media       MediaInput
	Features    []FeatureSelection
	IsVisible   bool
}

// MasterListFilters narrows the master list. Empty fields do not filter.
type MasterListFilters struct {
	CategoryNames []string
	BrandNames    []string
	IsVisible     *bool
	Search        string
	Ordering      string
}

type ListMastersInput struct {
	Filters    MasterListFilters
	Pagination pagination.Params
}

type ListVariantsInput struct {
	Search     string
	Ordering   string
	Pagination pagination.Params
}

type ListVariantsWithOffersInput struct {
	CategoryIDs []uuid.UUID
	Pagination  pagination.Params
}
