package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/catalog-backend/api/responses"
	"github.com/angelmondragon/catalog-backend/api/validators"
	"github.com/angelmondragon/catalog-backend/internal/catalog"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

type createVariantRequest struct {
	MasterID    uuid.UUID        `json:"master_product_id" validate:"required"`
	VariantName *string          `json:"variant_name,omitempty" validate:"omitempty,max=255"`
	ColorID     *uuid.UUID       `json:"color_id,omitempty"`
	Media       mediaRequest     `json:"media"`
	Features    []featureRequest `json:"features,omitempty" validate:"omitempty,dive"`
	IsVisible   *bool            `json:"is_visible,omitempty"`
}

type updateVariantRequest struct {
	VariantName *string          `json:"variant_name,omitempty" validate:"omitempty,max=255"`
	ColorID     *uuid.UUID       `json:"color_id,omitempty"`
	Media       mediaRequest     `json:"media"`
	Features    []featureRequest `json:"features,omitempty" validate:"omitempty,dive"`
	IsVisible   *bool            `json:"is_visible,omitempty"`
}

func VariantList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		result, err := svc.ListVariants(r.Context(), catalog.ListVariantsInput{
			Search:     strings.TrimSpace(query.Get("search")),
			Ordering:   strings.TrimSpace(query.Get("ordering")),
			Pagination: page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func VariantsWithOffers(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		categoryIDs, err := validators.ParseQueryUUIDs(r, "category_ids")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ListVariantsWithOffers(r.Context(), catalog.ListVariantsWithOffersInput{
			CategoryIDs: categoryIDs,
			Pagination:  page,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func VariantCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createVariantRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variant, err := svc.CreateVariant(r.Context(), actor, catalog.CreateVariantInput{
			MasterID:    body.MasterID,
			VariantName: body.VariantName,
			ColorID:     body.ColorID,
			Media:       body.Media.toInput(),
			Features:    toSelections(body.Features),
			IsVisible:   boolOr(body.IsVisible, false),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, variant)
	}
}

func VariantUpdate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variantID, err := validators.ParseUUIDParam(chi.URLParam(r, "id"), "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateVariantRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variant, err := svc.UpdateVariant(r.Context(), actor, variantID, catalog.UpdateVariantInput{
			VariantName: body.VariantName,
			ColorID:     body.ColorID,
			Media:       body.Media.toInput(),
			Features:    toSelections(body.Features),
			IsVisible:   boolOr(body.IsVisible, false),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, variant)
	}
}

// VariantGet reads the variant slug from the {id} segment shared with
// VariantUpdate.
func VariantGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variant, err := svc.GetVariant(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, variant)
	}
}
