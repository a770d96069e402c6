package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/catalog-backend/api/middleware"
	"github.com/angelmondragon/catalog-backend/internal/catalog"
	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/catalog-backend/pkg/errors"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
	"github.com/angelmondragon/catalog-backend/pkg/pagination"
)

// stubCatalog records the last call and returns err when set.
type stubCatalog struct {
	catalog.Service
	err error

	actor        catalog.Actor
	createMaster catalog.CreateMasterInput
	updateMaster catalog.UpdateMasterInput
	listMasters  catalog.ListMastersInput
	withOffers   catalog.ListVariantsWithOffersInput
	productID    uuid.UUID
	visible      bool
	deleted      bool
}

func (s *stubCatalog) CreateMaster(_ context.Context, actor catalog.Actor, input catalog.CreateMasterInput) (*catalog.MasterDetail, error) {
	s.actor, s.createMaster = actor, input
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.MasterDetail{ID: uuid.New(), CommonName: input.CommonName}, nil
}

func (s *stubCatalog) UpdateMaster(_ context.Context, actor catalog.Actor, id uuid.UUID, input catalog.UpdateMasterInput) (*catalog.MasterDetail, error) {
	s.actor, s.productID, s.updateMaster = actor, id, input
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.MasterDetail{ID: id, CommonName: input.CommonName}, nil
}

func (s *stubCatalog) ListMasters(_ context.Context, input catalog.ListMastersInput) (*pagination.Page[catalog.MasterListItem], error) {
	s.listMasters = input
	return &pagination.Page[catalog.MasterListItem]{Items: []catalog.MasterListItem{}}, s.err
}

func (s *stubCatalog) ListVariantsWithOffers(_ context.Context, input catalog.ListVariantsWithOffersInput) (*pagination.Page[catalog.VariantListItem], error) {
	s.withOffers = input
	return &pagination.Page[catalog.VariantListItem]{Items: []catalog.VariantListItem{}}, s.err
}

func (s *stubCatalog) SetVisibility(_ context.Context, actor catalog.Actor, id uuid.UUID, visible bool) (*catalog.VisibilityResult, error) {
	s.actor, s.productID, s.visible = actor, id, visible
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.VisibilityResult{ID: id, IsVisible: visible, Changed: true}, nil
}

func (s *stubCatalog) DeleteProduct(_ context.Context, actor catalog.Actor, id uuid.UUID) error {
	s.actor, s.productID, s.deleted = actor, id, true
	return s.err
}

func (s *stubCatalog) CheckCommonNameDuplicate(_ context.Context, name string) (*catalog.NameCheckResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &catalog.NameCheckResult{IsDuplicated: true, Name: &name}, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
}

func serve(h http.HandlerFunc, method, target, body string, userID *uuid.UUID, params map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	ctx := req.Context()
	if userID != nil {
		ctx = middleware.WithUserID(ctx, userID.String())
		ctx = middleware.WithRole(ctx, string(enums.RoleContentManager))
	}
	routeCtx := chi.NewRouteContext()
	for k, v := range params {
		routeCtx.URLParams.Add(k, v)
	}
	ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Error.Code
}

func TestMasterCreate(t *testing.T) {
	userID := uuid.New()
	brandID, featureID, valueID := uuid.New(), uuid.New(), uuid.New()

	t.Run("success", func(t *testing.T) {
		svc := &stubCatalog{}
		body := `{"common_name":"Kettle","brand_id":"` + brandID.String() + `","is_visible":true,
			"media":{"main_photo":"p1","video_urls":["https://video.test/1"]},
			"features":[{"feature_id":"` + featureID.String() + `","value_ids":["` + valueID.String() + `"]}]}`
		rec := serve(MasterCreate(svc, testLogger()), http.MethodPost, "/api/v1/master_products", body, &userID, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, userID, svc.actor.UserID)
		assert.Equal(t, enums.RoleContentManager, svc.actor.Role)
		assert.Equal(t, "Kettle", svc.createMaster.CommonName)
		assert.True(t, svc.createMaster.IsVisible)
		require.NotNil(t, svc.createMaster.BrandID)
		assert.Equal(t, brandID, *svc.createMaster.BrandID)
		require.Len(t, svc.createMaster.Features, 1)
		assert.Equal(t, []uuid.UUID{valueID}, svc.createMaster.Features[0].ValueIDs)
		require.NotNil(t, svc.createMaster.Media.MainPhotoID)
		assert.Equal(t, "p1", *svc.createMaster.Media.MainPhotoID)
	})

	t.Run("missing user", func(t *testing.T) {
		rec := serve(MasterCreate(&stubCatalog{}, testLogger()), http.MethodPost, "/", `{"common_name":"Kettle"}`, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		for _, body := range []string{`{}`, `{"common_name":"K","media":{"video_urls":["nope"]}}`, `{"common_name":"K","features":[{"feature_id":"` + featureID.String() + `","value_ids":[]}]}`} {
			rec := serve(MasterCreate(&stubCatalog{}, testLogger()), http.MethodPost, "/", body, &userID, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("slug conflict", func(t *testing.T) {
		svc := &stubCatalog{err: pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")}
		rec := serve(MasterCreate(svc, testLogger()), http.MethodPost, "/", `{"common_name":"Kettle"}`, &userID, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, string(pkgerrors.CodeConflict), decodeError(t, rec))
	})
}

func TestMasterUpdate(t *testing.T) {
	userID := uuid.New()
	masterID := uuid.New()

	rec := serve(MasterUpdate(&stubCatalog{}, testLogger()), http.MethodPut, "/", `{"common_name":"Kettle"}`, &userID, map[string]string{"id": "kettle"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(MasterUpdate(&stubCatalog{}, testLogger()), http.MethodPut, "/", `{"common_name":"Kettle","category_id":"`+uuid.NewString()+`"}`, &userID, map[string]string{"id": masterID.String()})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc := &stubCatalog{}
	rec = serve(MasterUpdate(svc, testLogger()), http.MethodPut, "/", `{"common_name":"Kettle Pro"}`, &userID, map[string]string{"id": masterID.String()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, masterID, svc.productID)
	assert.Equal(t, "Kettle Pro", svc.updateMaster.CommonName)
	assert.False(t, svc.updateMaster.IsVisible)
}

func TestMasterListParsesFilters(t *testing.T) {
	svc := &stubCatalog{}
	rec := serve(MasterList(svc, testLogger()), http.MethodGet,
		"/api/v1/master_products?category_names=Kitchen,Garden&brand_names=Acme&is_visible=false&search=%20kettle%20&ordering=-offers_count&limit=10&cursor=abc",
		"", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	filters := svc.listMasters.Filters
	assert.Equal(t, []string{"Kitchen", "Garden"}, filters.CategoryNames)
	assert.Equal(t, []string{"Acme"}, filters.BrandNames)
	require.NotNil(t, filters.IsVisible)
	assert.False(t, *filters.IsVisible)
	assert.Equal(t, "kettle", filters.Search)
	assert.Equal(t, "-offers_count", filters.Ordering)
	assert.Equal(t, 10, svc.listMasters.Pagination.Limit)
	assert.Equal(t, "abc", svc.listMasters.Pagination.Cursor)

	rec = serve(MasterList(svc, testLogger()), http.MethodGet, "/?limit=1000", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMasterCheckName(t *testing.T) {
	rec := serve(MasterCheckName(&stubCatalog{}, testLogger()), http.MethodPost, "/", `{"common_name":"kettle"}`, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"is_duplicated":true`)
}

func TestVariantsWithOffersParsesCategories(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	svc := &stubCatalog{}
	rec := serve(VariantsWithOffers(svc, testLogger()), http.MethodGet, "/?category_ids="+first.String()+","+second.String(), "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uuid.UUID{first, second}, svc.withOffers.CategoryIDs)

	rec = serve(VariantsWithOffers(svc, testLogger()), http.MethodGet, "/?category_ids=nope", "", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnifiedSetVisibility(t *testing.T) {
	userID, productID := uuid.New(), uuid.New()
	params := map[string]string{"id": productID.String()}

	rec := serve(UnifiedSetVisibility(&stubCatalog{}, testLogger()), http.MethodPatch, "/", `{}`, &userID, params)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	svc := &stubCatalog{}
	rec = serve(UnifiedSetVisibility(svc, testLogger()), http.MethodPatch, "/", `{"is_visible":false}`, &userID, params)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, productID, svc.productID)
	assert.False(t, svc.visible)

	blocked := &stubCatalog{err: pkgerrors.New(pkgerrors.CodeValidation, "master product has variants with offers")}
	rec = serve(UnifiedSetVisibility(blocked, testLogger()), http.MethodPatch, "/", `{"is_visible":false}`, &userID, params)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnifiedDelete(t *testing.T) {
	userID, productID := uuid.New(), uuid.New()
	params := map[string]string{"id": productID.String()}

	svc := &stubCatalog{}
	rec := serve(UnifiedDelete(svc, testLogger()), http.MethodDelete, "/", "", &userID, params)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, svc.deleted)

	missing := &stubCatalog{err: pkgerrors.New(pkgerrors.CodeNotFound, "product not found")}
	rec = serve(UnifiedDelete(missing, testLogger()), http.MethodDelete, "/", "", &userID, params)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(UnifiedDelete(svc, testLogger()), http.MethodDelete, "/", "", &userID, map[string]string{"id": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := serve(HealthReady(cfg, testLogger(), map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{}}), http.MethodGet, "/", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(HealthReady(cfg, testLogger(), map[string]Pinger{"db": stubPinger{}, "redis": stubPinger{err: errors.New("down")}}), http.MethodGet, "/", "", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type stubDLQ struct{ limit int }

func (s *stubDLQ) List(_ context.Context, limit int) ([]models.OutboxDLQ, error) {
	s.limit = limit
	return []models.OutboxDLQ{{ID: uuid.New(), EventType: enums.EventProductCreated, ErrorReason: enums.OutboxDLQReasonMaxAttempts}}, nil
}

func TestAdminOutboxDLQ(t *testing.T) {
	repo := &stubDLQ{}
	rec := serve(AdminOutboxDLQ(repo, testLogger()), http.MethodGet, "/?limit=5", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, repo.limit)
	assert.Contains(t, rec.Body.String(), `"event_type":"product_created"`)
}
