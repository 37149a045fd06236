package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/ecofinds/internal/auth"
	"github.com/hitoshi/ecofinds/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通を確認する依存先。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionResolver   middleware.SessionResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	RequestLogger     func(next http.Handler) http.Handler // nilの場合はリクエストログを出力しない

	// 認証
	AuthService  AuthServiceInterface
	CookieConfig auth.CookieConfig

	// 商品
	ProductService ProductServiceInterface

	// カート
	CartService CartServiceInterface
	CartEvents  http.Handler // GET /api/cart/events（WebSocket）

	// メトリクス
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → CORS → SecurityHeaders → Session → RequestLogger → CSRF → RateLimit(General)
//
// /health と /metrics はミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.CookieConfig)
	productHandler := NewProductHandler(deps.ProductService)
	cartHandler := NewCartHandler(deps.CartService)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver))
		if deps.RequestLogger != nil {
			r.Use(deps.RequestLogger)
		}
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		// --- 認証不要のルート ---
		r.Route("/api/auth", func(r chi.Router) {
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/register", authHandler.Register)
			r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.With(middleware.RequireAuth).Get("/me", authHandler.Me)
		})

		r.Get("/api/categories", productHandler.ListCategories)

		r.Route("/api/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Get("/{id}", productHandler.GetProduct)

			// --- 認証が必要なルート ---
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Post("/", productHandler.CreateProduct)
				r.Put("/{id}", productHandler.UpdateProduct)
				r.Delete("/{id}", productHandler.DeleteProduct)
			})
		})

		r.Route("/api/cart", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/", cartHandler.GetCart)
			r.Post("/add", cartHandler.AddToCart)
			r.Post("/remove", cartHandler.RemoveFromCart)
			r.Post("/update", cartHandler.UpdateCart)
			r.Post("/merge", cartHandler.MergeCart)
			if deps.CartEvents != nil {
				r.Method(http.MethodGet, "/events", deps.CartEvents)
			}
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
