package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSessionCookie_Attributes(t *testing.T) {
	c := NewSessionCookie("tok", 7*24*time.Hour, CookieConfig{Secure: true, Domain: "example.com"})

	if c.Name != SessionCookieName || c.Value != "tok" {
		t.Errorf("cookie = %s=%s", c.Name, c.Value)
	}
	if c.MaxAge != 604800 {
		t.Errorf("MaxAge = %d, want 604800", c.MaxAge)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Errorf("unexpected attributes: %+v", c)
	}
}

func TestClearSessionCookie(t *testing.T) {
	c := ClearSessionCookie(CookieConfig{})
	if c.MaxAge >= 0 || c.Value != "" {
		t.Errorf("clear cookie = %+v", c)
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		header     string
		wantToken  string
		wantCookie bool
	}{
		{"none", "", "", "", false},
		{"cookie", "c-tok", "", "c-tok", true},
		{"bearer", "", "Bearer b-tok", "b-tok", false},
		{"lowercase bearer", "", "bearer b-tok", "b-tok", false},
		{"cookie wins", "c-tok", "Bearer b-tok", "c-tok", true},
		{"basic ignored", "", "Basic abc", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.cookie})
			}
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			token, fromCookie := TokenFromRequest(r)
			if token != tt.wantToken || fromCookie != tt.wantCookie {
				t.Errorf("TokenFromRequest = %q, %v; want %q, %v", token, fromCookie, tt.wantToken, tt.wantCookie)
			}
		})
	}
}
