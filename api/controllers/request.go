package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/catalog-backend/api/middleware"
	"github.com/angelmondragon/catalog-backend/api/validators"
	"github.com/angelmondragon/catalog-backend/internal/catalog"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/pagination"
)

type featureRequest struct {
	FeatureID uuid.UUID   `json:"feature_id" validate:"required"`
	ValueIDs  []uuid.UUID `json:"value_ids" validate:"required,min=1"`
}

type mediaRequest struct {
	MainPhotoID      *string  `json:"main_photo,omitempty"`
	MiniaturePhotoID *string  `json:"miniature_photo,omitempty"`
	PhotoIDs         []string `json:"photos,omitempty"`
	VideoURLs        []string `json:"video_urls,omitempty" validate:"omitempty,dive,url"`
}

func (m mediaRequest) toInput() catalog.MediaInput {
	return catalog.MediaInput{
		MainPhotoID:      m.MainPhotoID,
		MiniaturePhotoID: m.MiniaturePhotoID,
		PhotoIDs:         m.PhotoIDs,
		VideoURLs:        m.VideoURLs,
	}
}

func toSelections(features []featureRequest) []catalog.FeatureSelection {
	if len(features) == 0 {
		return nil
	}
	out := make([]catalog.FeatureSelection, 0, len(features))
	for _, f := range features {
		out = append(out, catalog.FeatureSelection{FeatureID: f.FeatureID, ValueIDs: f.ValueIDs})
	}
	return out
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

// actorFromRequest builds the actor seeded by the auth middleware.
func actorFromRequest(r *http.Request) (catalog.Actor, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return catalog.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return catalog.Actor{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return catalog.Actor{UserID: userID, Role: enums.UserRole(middleware.RoleFromContext(r.Context()))}, nil
}

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}
