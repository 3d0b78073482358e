package routes

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rewear/rewear-backend/api/controllers"
	"github.com/rewear/rewear-backend/api/middleware"
	"github.com/rewear/rewear-backend/internal/auth"
	"github.com/rewear/rewear-backend/internal/items"
	"github.com/rewear/rewear-backend/internal/moderation"
	"github.com/rewear/rewear-backend/internal/swaps"
	"github.com/rewear/rewear-backend/internal/users"
	"github.com/rewear/rewear-backend/pkg/auth/session"
	"github.com/rewear/rewear-backend/pkg/config"
	"github.com/rewear/rewear-backend/pkg/enums"
	"github.com/rewear/rewear-backend/pkg/logger"
	"github.com/rewear/rewear-backend/pkg/metrics"
	pkgredis "github.com/rewear/rewear-backend/pkg/redis"
)

// cacheStore is the Redis surface the HTTP layer needs. A nil store disables
// idempotency replay and auth rate limiting.
type cacheStore interface {
	pkgredis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	RateLimitKey(scope string) string
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	gatherer prometheus.Gatherer,
	httpMetrics *metrics.HTTPMetrics,
	dbP controllers.Pinger,
	cache cacheStore,
	sessions session.AccessSessionChecker,
	authService auth.Service,
	registerService auth.RegisterService,
	userService users.Service,
	itemService items.Service,
	moderationService moderation.Service,
	swapService swaps.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, httpMetrics),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	readiness := map[string]controllers.Pinger{"db": dbP}
	if cache != nil {
		readiness["redis"] = cache
	}

	loginLimit := middleware.AuthRateLimit(middleware.LoginRateLimitPolicy(cfg.AuthRateLimit), cache, logg)
	registerLimit := middleware.AuthRateLimit(middleware.RegisterRateLimitPolicy(cfg.AuthRateLimit), cache, logg)
	requireAuth := middleware.Auth(cfg.JWT, sessions, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))
	}

	uploadsPrefix := "/" + strings.Trim(cfg.Media.PublicPrefix, "/")
	if uploadsPrefix == "/" {
		uploadsPrefix = "/uploads"
	}
	r.Handle(uploadsPrefix+"/*", uploads(uploadsPrefix, cfg.Media.UploadDir))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimit).Post("/login", controllers.AuthLogin(authService, logg))
			r.With(registerLimit).Post("/register", controllers.AuthRegister(registerService, logg))
			r.With(requireAuth).Post("/logout", controllers.AuthLogout(authService, logg))
		})

		r.Get("/items", controllers.ItemList(itemService, logg))
		r.Get("/items/{id}", controllers.ItemGet(itemService, logg))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.Idempotency(cache, logg))

			r.Post("/items", controllers.ItemCreate(itemService, cfg.Media, logg))
			r.Post("/swaps", controllers.SwapCreate(swapService, logg))
			r.Put("/swaps/{id}/status", controllers.SwapUpdateStatus(swapService, logg))

			r.Route("/user", func(r chi.Router) {
				r.Get("/profile", controllers.UserProfile(userService, logg))
				r.Get("/items", controllers.ItemsMine(itemService, logg))
				r.Get("/swaps", controllers.SwapListMine(swapService, logg))
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
			r.Get("/pending-items", controllers.AdminPendingItems(moderationService, logg))
			r.Put("/items/{id}/status", controllers.AdminItemStatus(moderationService, logg))
			r.Delete("/items/{id}", controllers.AdminItemDelete(moderationService, logg))
		})
	})

	return r
}

// uploads serves stored images. Directory listings are not exposed.
func uploads(prefix, dir string) http.Handler {
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}
