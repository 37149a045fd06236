package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/ecofinds/internal/auth"
	"github.com/hitoshi/ecofinds/internal/middleware"
	"github.com/hitoshi/ecofinds/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*model.Session, error)
	loginFn    func(ctx context.Context, email, password string) (*model.Session, error)
	logoutFn   func(ctx context.Context, token string) error
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*model.Session, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, token string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, token)
	}
	return nil
}

func (m *mockAuthService) TokenTTL() time.Duration {
	return 24 * time.Hour
}

func testSession(user *model.User) *model.Session {
	return &model.Session{Token: "signed-token", User: user}
}

func testUser() *model.User {
	return &model.User{
		ID:           "user-1",
		Email:        "alice@example.com",
		PasswordHash: "$2a$10$secret",
		Name:         "Alice",
		Location:     "Tokyo",
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func sessionCookieFrom(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

// --- テスト ---

func TestAuthHandler_Register_Success(t *testing.T) {
	var got auth.RegisterInput
	svc := &mockAuthService{
		registerFn: func(_ context.Context, in auth.RegisterInput) (*model.Session, error) {
			got = in
			return testSession(testUser()), nil
		},
	}
	h := NewAuthHandler(svc, auth.CookieConfig{})

	w := httptest.NewRecorder()
	h.Register(w, jsonRequest(http.MethodPost, "/api/auth/register",
		`{"email":"alice@example.com","password":"secret1","name":"Alice","location":"Tokyo"}`))

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if got.Email != "alice@example.com" || got.Name != "Alice" || got.Location != "Tokyo" {
		t.Errorf("service input = %+v", got)
	}

	cookie := sessionCookieFrom(w.Result())
	if cookie == nil {
		t.Fatal("expected session cookie")
	}
	if cookie.Value != "signed-token" || !cookie.HttpOnly {
		t.Errorf("cookie = %+v, want HttpOnly with token", cookie)
	}

	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if body["success"] != true || body["token"] != "signed-token" {
		t.Errorf("body = %v", body)
	}
	user, _ := body["user"].(map[string]any)
	if user["email"] != "alice@example.com" {
		t.Errorf("user.email = %v", user["email"])
	}
	if _, ok := user["passwordHash"]; ok {
		t.Error("password hash must not be exposed")
	}
	if strings.Contains(w.Body.String(), "$2a$") {
		t.Error("response must not contain the password hash")
	}
}

func TestAuthHandler_Register_Validation(t *testing.T) {
	called := false
	svc := &mockAuthService{
		registerFn: func(context.Context, auth.RegisterInput) (*model.Session, error) {
			called = true
			return nil, nil
		},
	}
	h := NewAuthHandler(svc, auth.CookieConfig{})

	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"empty body", ``, "Request body is required"},
		{"malformed", `{"email":`, "Invalid request body"},
		{"missing name", `{"email":"a@example.com","password":"secret1"}`, "Missing required fields"},
		{"bad email", `{"email":"not-an-email","password":"secret1","name":"A"}`, "Invalid email address"},
		{"short password", `{"email":"a@example.com","password":"123","name":"A"}`, "password must be at least 6"},
		{"unknown field", `{"email":"a@example.com","password":"secret1","name":"A","admin":true}`, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			h.Register(w, jsonRequest(http.MethodPost, "/api/auth/register", tt.body))

			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			body := decodeErrorBody(t, w)
			if body.Code != model.ErrCodeInvalidRequest {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidRequest)
			}
			if body.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", body.Error, tt.wantMsg)
			}
		})
	}
	if called {
		t.Error("service must not be called for invalid input")
	}
}

func TestAuthHandler_Register_EmailTaken(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(context.Context, auth.RegisterInput) (*model.Session, error) {
			return nil, model.NewEmailTakenError()
		},
	}
	h := NewAuthHandler(svc, auth.CookieConfig{})

	w := httptest.NewRecorder()
	h.Register(w, jsonRequest(http.MethodPost, "/api/auth/register",
		`{"email":"alice@example.com","password":"secret1","name":"Alice"}`))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeEmailTaken {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeEmailTaken)
	}
	if sessionCookieFrom(w.Result()) != nil {
		t.Error("no cookie should be set on failure")
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(_ context.Context, email, password string) (*model.Session, error) {
			if email != "alice@example.com" || password != "secret1" {
				t.Errorf("login args = %q, %q", email, password)
			}
			return testSession(testUser()), nil
		},
	}
	h := NewAuthHandler(svc, auth.CookieConfig{Secure: true})

	w := httptest.NewRecorder()
	h.Login(w, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"secret1"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	cookie := sessionCookieFrom(w.Result())
	if cookie == nil || !cookie.Secure {
		t.Errorf("cookie = %+v, want secure session cookie", cookie)
	}
	if cookie != nil && cookie.MaxAge != int((24 * time.Hour).Seconds()) {
		t.Errorf("MaxAge = %d, want token TTL", cookie.MaxAge)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(context.Context, string, string) (*model.Session, error) {
			return nil, model.NewInvalidCredentialsError()
		},
	}
	h := NewAuthHandler(svc, auth.CookieConfig{})

	w := httptest.NewRecorder()
	h.Login(w, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"wrong"}`))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	body := decodeErrorBody(t, w)
	if body.Code != model.ErrCodeInvalidCredentials || body.Error != "Invalid email or password" {
		t.Errorf("body = %+v", body)
	}
}

func TestAuthHandler_Login_InternalErrorHidesDetail(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(context.Context, string, string) (*model.Session, error) {
			return nil, errors.New("pq: connection refused to 10.0.0.5")
		},
	}
	h := NewAuthHandler(svc, auth.CookieConfig{})

	w := httptest.NewRecorder()
	h.Login(w, jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"alice@example.com","password":"secret1"}`))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "10.0.0.5") {
		t.Error("internal error detail must not leak")
	}
}

func TestAuthHandler_Logout_RevokesTokenAndClearsCookie(t *testing.T) {
	var revoked string
	svc := &mockAuthService{
		logoutFn: func(_ context.Context, token string) error {
			revoked = token
			return nil
		},
	}
	h := NewAuthHandler(svc, auth.CookieConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "signed-token"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if revoked != "signed-token" {
		t.Errorf("revoked = %q, want signed-token", revoked)
	}
	cookie := sessionCookieFrom(w.Result())
	if cookie == nil || cookie.MaxAge >= 0 {
		t.Errorf("cookie = %+v, want expired cookie", cookie)
	}
	var body map[string]bool
	json.NewDecoder(w.Body).Decode(&body)
	if !body["ok"] {
		t.Errorf("body = %v, want ok:true", body)
	}
}

func TestAuthHandler_Logout_WithoutToken(t *testing.T) {
	called := false
	svc := &mockAuthService{
		logoutFn: func(context.Context, string) error {
			called = true
			return nil
		},
	}
	h := NewAuthHandler(svc, auth.CookieConfig{})

	w := httptest.NewRecorder()
	h.Logout(w, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if called {
		t.Error("logout should not be called without a token")
	}
}

func TestAuthHandler_Logout_RevokeFailure(t *testing.T) {
	svc := &mockAuthService{
		logoutFn: func(context.Context, string) error {
			return errors.New("redis down")
		},
	}
	h := NewAuthHandler(svc, auth.CookieConfig{})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "signed-token"})
	w := httptest.NewRecorder()
	h.Logout(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	c := sessionCookieFrom(w.Result())
	if c == nil {
		t.Fatal("session cookie should be cleared even when revocation fails")
	}
	if c.MaxAge >= 0 || c.Value != "" {
		t.Errorf("cookie = %+v, want cleared", c)
	}
	var body map[string]bool
	json.NewDecoder(w.Body).Decode(&body)
	if !body["ok"] {
		t.Errorf("body = %v, want ok=true", body)
	}
}

func TestAuthHandler_Me(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, auth.CookieConfig{})

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
		req = req.WithContext(middleware.ContextWithUser(req.Context(), testUser()))
		w := httptest.NewRecorder()
		h.Me(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]any
		json.NewDecoder(w.Body).Decode(&body)
		if body["id"] != "user-1" || body["name"] != "Alice" {
			t.Errorf("body = %v", body)
		}
		if body["joinedAt"] != "2025-01-01T00:00:00Z" {
			t.Errorf("joinedAt = %v", body["joinedAt"])
		}
	})

	t.Run("anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.Me(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}
