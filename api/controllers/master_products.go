package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/catalog-backend/api/responses"
	"github.com/angelmondragon/catalog-backend/api/validators"
	"github.com/angelmondragon/catalog-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

type checkNameRequest struct {
	CommonName string `json:"common_name" validate:"required"`
}

type masterRequest struct {
	CommonName          string           `json:"common_name" validate:"required,max=255"`
	BrandID             *uuid.UUID       `json:"brand_id,omitempty"`
	CategoryID          *uuid.UUID       `json:"category_id,omitempty"`
	Description         *string          `json:"description,omitempty"`
	Media               mediaRequest     `json:"media"`
	VariationFeatureIDs []uuid.UUID      `json:"variation_feature_ids,omitempty"`
	Features            []featureRequest `json:"features,omitempty" validate:"omitempty,dive"`
	IsVisible           *bool            `json:"is_visible,omitempty"`
}

func (req masterRequest) toCreateInput() catalog.CreateMasterInput {
	return catalog.CreateMasterInput{
		CommonName:          req.CommonName,
		BrandID:             req.BrandID,
		CategoryID:          req.CategoryID,
		Description:         req.Description,
		Media:               req.Media.toInput(),
		VariationFeatureIDs: req.VariationFeatureIDs,
		Features:            toSelections(req.Features),
		IsVisible:           boolOr(req.IsVisible, false),
	}
}

func (req masterRequest) toUpdateInput() (catalog.UpdateMasterInput, error) {
	if req.CategoryID != nil {
		return catalog.UpdateMasterInput{}, pkgerrors.New(pkgerrors.CodeValidation, "category cannot be changed")
	}
	return catalog.UpdateMasterInput{
		CommonName:          req.CommonName,
		BrandID:             req.BrandID,
		Description:         req.Description,
		Media:               req.Media.toInput(),
		VariationFeatureIDs: req.VariationFeatureIDs,
		Features:            toSelections(req.Features),
		IsVisible:           boolOr(req.IsVisible, false),
	}, nil
}

func MasterCheckName(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body checkNameRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CheckCommonNameDuplicate(r.Context(), body.CommonName)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func MasterList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		visible, err := validators.ParseQueryBool(r, "is_visible")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		result, err := svc.ListMasters(r.Context(), catalog.ListMastersInput{
			Filters: catalog.MasterListFilters{
				CategoryNames: validators.ParseQueryList(r, "category_names"),
				BrandNames:    validators.ParseQueryList(r, "brand_names"),
				IsVisible:     visible,
				Search:        strings.TrimSpace(query.Get("search")),
				Ordering:      strings.TrimSpace(query.Get("ordering")),
			},
			Pagination: page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func MasterCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body masterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		master, err := svc.CreateMaster(r.Context(), actor, body.toCreateInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, master)
	}
}

// MasterGet accepts either the master slug or its id.
func MasterGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		master, err := svc.GetMaster(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, master)
	}
}

func MasterUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		masterID, err := validators.ParseUUIDParam(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body masterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := body.toUpdateInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		master, err := svc.UpdateMaster(r.Context(), actor, masterID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, master)
	}
}

func MasterCheckVariantName(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		masterID, err := validators.ParseUUIDParam(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CheckVariantNameDuplicate(r.Context(), masterID, r.URL.Query().Get("variant_name"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func MasterVariationFeatureUsage(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		masterID, err := validators.ParseUUIDParam(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		featureIDs, err := validators.ParseQueryUUIDs(r, "variation_feature_ids")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		usage, err := svc.GetVariationFeatureUsage(r.Context(), masterID, featureIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, usage)
	}
}

// MasterActiveVariations relays the shop service's answer unchanged.
func MasterActiveVariations(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		masterID, err := validators.ParseUUIDParam(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		body, err := svc.ActiveVariations(r.Context(), masterID, chi.URLParam(r, "posID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, body)
	}
}
