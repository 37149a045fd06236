package auth

import (
	"net/http"
	"strings"
	"time"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "ecofinds-auth"

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Domain string
	Secure bool
}

// NewSessionCookie はトークンを格納するHttpOnly Cookieを生成する。
func NewSessionCookie(token string, ttl time.Duration, cfg CookieConfig) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearSessionCookie はセッションCookieを削除するためのCookieを生成する。
func ClearSessionCookie(cfg CookieConfig) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// TokenFromRequest はリクエストからセッショントークンを取り出す。
// Cookieを優先し、無ければ Authorization: Bearer ヘッダーを参照する。
// fromCookieはトークンがCookie由来かどうかを示す。
func TokenFromRequest(r *http.Request) (token string, fromCookie bool) {
	if c, err := r.Cookie(SessionCookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):]), false
	}
	return "", false
}
