package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/ecofinds/internal/auth"
	"github.com/hitoshi/ecofinds/internal/middleware"
	"github.com/hitoshi/ecofinds/internal/model"
)

// --- ルーターテスト用モック ---

type tokenResolver map[string]*model.User

func (r tokenResolver) ResolveSession(_ context.Context, token string) *model.User {
	return r[token]
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(context.Context) error {
	return m.err
}

func newTestRouter(t *testing.T, deps *RouterDeps) http.Handler {
	t.Helper()
	if deps.SessionResolver == nil {
		deps.SessionResolver = tokenResolver{"valid-token": testUser()}
	}
	if deps.RateLimiter == nil {
		rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
		t.Cleanup(rl.Stop)
		deps.RateLimiter = rl
	}
	if deps.AuthService == nil {
		deps.AuthService = &mockAuthService{}
	}
	if deps.ProductService == nil {
		deps.ProductService = &mockProductService{}
	}
	if deps.CartService == nil {
		deps.CartService = &mockCartService{}
	}
	deps.CORSAllowedOrigin = "http://localhost:3000"
	return NewRouter(deps)
}

// --- テスト ---

func TestRouter_Health(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		router := newTestRouter(t, &RouterDeps{HealthChecker: &mockHealthChecker{}})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("db down", func(t *testing.T) {
		router := newTestRouter(t, &RouterDeps{HealthChecker: &mockHealthChecker{err: errors.New("down")}})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
		}
	})
}

func TestRouter_PublicCatalogRoutes(t *testing.T) {
	svc := &mockProductService{
		categoriesFn: func(context.Context) ([]model.Category, error) {
			return []model.Category{{Name: "Books"}}, nil
		},
	}
	router := newTestRouter(t, &RouterDeps{ProductService: svc})

	for _, path := range []string{"/api/categories", "/api/products"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, w.Code, http.StatusOK)
		}
	}
}

func TestRouter_ProtectedRoutesRequireSession(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/cart"},
		{http.MethodPost, "/api/cart/add"},
		{http.MethodPost, "/api/cart/merge"},
		{http.MethodPost, "/api/products"},
		{http.MethodPut, "/api/products/p1"},
		{http.MethodDelete, "/api/products/p1"},
		{http.MethodGet, "/api/auth/me"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, jsonRequest(tt.method, tt.path, `{}`))
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			var body middleware.ErrorResponseBody
			json.NewDecoder(w.Body).Decode(&body)
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestRouter_BearerTokenReachesCart(t *testing.T) {
	var gotUser string
	svc := &mockCartService{
		getFn: func(_ context.Context, userID string) (*model.Cart, error) {
			gotUser = userID
			return &model.Cart{UserID: userID}, nil
		},
	}
	router := newTestRouter(t, &RouterDeps{CartService: svc})

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotUser != "user-1" {
		t.Errorf("user = %q, want user-1", gotUser)
	}
}

func TestRouter_CookieSessionWriteRequiresCSRF(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{})

	// CSRFトークン取得
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("csrf-token status = %d, want %d", w.Code, http.StatusOK)
	}
	var csrfCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "csrf_token" {
			csrfCookie = c
		}
	}
	if csrfCookie == nil {
		t.Fatal("expected csrf_token cookie")
	}

	session := &http.Cookie{Name: auth.SessionCookieName, Value: "valid-token"}

	req := jsonRequest(http.MethodPost, "/api/cart/add", `{"productId":"p1"}`)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("without token: status = %d, want %d", w.Code, http.StatusForbidden)
	}

	req = jsonRequest(http.MethodPost, "/api/cart/remove", `{"productId":"p1"}`)
	req.AddCookie(session)
	req.AddCookie(csrfCookie)
	req.Header.Set("X-CSRF-Token", csrfCookie.Value)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("with token: status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

func TestRouter_LoginRateLimited(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:  100,
		GeneralBurst: 100,
		LoginRate:    0.01,
		LoginBurst:   1,
	})
	t.Cleanup(rl.Stop)

	svc := &mockAuthService{
		loginFn: func(context.Context, string, string) (*model.Session, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	router := newTestRouter(t, &RouterDeps{RateLimiter: rl, AuthService: svc})

	body := `{"email":"alice@example.com","password":"wrong"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/auth/login", body))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("first attempt status = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/auth/login", body))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second attempt status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRouter_CartEventsMounted(t *testing.T) {
	events := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router := newTestRouter(t, &RouterDeps{CartEvents: events})

	req := httptest.NewRequest(http.MethodGet, "/api/cart/events", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTeapot)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/cart/events", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRouter_MetricsOutsideChain(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("# metrics"))
	})
	router := newTestRouter(t, &RouterDeps{MetricsHandler: metrics})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Body.String(), "# metrics") {
		t.Errorf("status = %d, body = %q", w.Code, w.Body.String())
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("metrics should not pass through CORS middleware")
	}
}
