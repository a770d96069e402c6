package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/catalog-backend/api/controllers"
	"github.com/angelmondragon/catalog-backend/api/middleware"
	"github.com/angelmondragon/catalog-backend/internal/catalog"
	"github.com/angelmondragon/catalog-backend/pkg/config"
	"github.com/angelmondragon/catalog-backend/pkg/db/models"
	"github.com/angelmondragon/catalog-backend/pkg/enums"
	"github.com/angelmondragon/catalog-backend/pkg/logger"
)

type dlqLister interface {
	List(ctx context.Context, limit int) ([]models.OutboxDLQ, error)
}

// Deps carries everything the router hands to controllers.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Catalog  catalog.Service
	DLQ      dlqLister
	Ready    map[string]controllers.Pinger
	Gatherer prometheus.Gatherer
}

func NewRouter(deps Deps) http.Handler {
	cfg, logg, svc := deps.Config, deps.Logger, deps.Catalog

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Ready))
	})
	r.Method(http.MethodGet, "/metrics", controllers.Metrics(deps.Gatherer))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		editor := middleware.RequireCatalogEditor(logg)

		r.Route("/master_products", func(r chi.Router) {
			r.Get("/", controllers.MasterList(svc, logg))
			r.With(editor).Post("/", controllers.MasterCreate(svc, logg))
			r.Post("/check-name", controllers.MasterCheckName(svc, logg))
			r.Get("/{id}", controllers.MasterGet(svc, logg))
			r.With(editor).Put("/{id}", controllers.MasterUpdate(svc, logg))
			r.Get("/{id}/check-variant_name", controllers.MasterCheckVariantName(svc, logg))
			r.Get("/{id}/check-variation_features-usage", controllers.MasterVariationFeatureUsage(svc, logg))
			r.Get("/{id}/point_of_sale/{posID}/active_variations", controllers.MasterActiveVariations(svc, logg))
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.VariantList(svc, logg))
			r.Get("/with_offers", controllers.VariantsWithOffers(svc, logg))
			r.With(editor).Post("/", controllers.VariantCreate(svc, logg))
			r.With(editor).Put("/{id}", controllers.VariantUpdate(svc, logg))
			r.Get("/{id}", controllers.VariantGet(svc, logg))
		})

		r.Route("/unified_products", func(r chi.Router) {
			r.Use(editor)
			r.Patch("/{id}", controllers.UnifiedSetVisibility(svc, logg))
			r.Delete("/{id}", controllers.UnifiedDelete(svc, logg))
		})

		if deps.DLQ != nil {
			r.With(middleware.RequireRole(enums.RoleSuperAdmin, logg)).
				Get("/admin/outbox/dlq", controllers.AdminOutboxDLQ(deps.DLQ, logg))
		}
	})

	return r
}
