package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/ecofinds/internal/model"
)

// DefaultTokenTTL はセッショントークンの既定有効期間（7日）。
const DefaultTokenTTL = 7 * 24 * time.Hour

// ErrEmptySecret は署名鍵が空の場合に返される。
var ErrEmptySecret = errors.New("token secret must not be empty")

// tokenClaims はJWTのペイロード。
type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenSigner はHS256によるセッショントークンの署名と検証を行う。
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenSigner はTokenSignerを生成する。ttlが0以下の場合はDefaultTokenTTLを使用する。
func NewTokenSigner(secret string, ttl time.Duration) (*TokenSigner, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenSigner{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL はトークンの有効期間を返す。
func (s *TokenSigner) TTL() time.Duration {
	return s.ttl
}

// Sign はsubject（ユーザーID）とemailを埋め込んだトークンを発行する。
// iat/nbfは発行時刻、expはiat+TTL、jtiはランダムなUUIDとなる。
func (s *TokenSigner) Sign(subject, email string) (string, *model.SessionClaims, error) {
	issuedAt := s.now().Truncate(time.Second)
	expiresAt := issuedAt.Add(s.ttl)

	claims := tokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return token, &model.SessionClaims{
		TokenID:   claims.ID,
		Subject:   subject,
		Email:     email,
		IssuedAt:  issuedAt,
		NotBefore: issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify はトークンの署名と有効期間を検証し、クレームを返す。
// HS256以外のアルゴリズム、exp欠落、nbf前、期限切れ、subjectやjtiの欠落は
// すべて (nil, false) となる。
func (s *TokenSigner) Verify(token string) (*model.SessionClaims, bool) {
	if token == "" {
		return nil, false
	}

	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, false
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, false
	}

	out := &model.SessionClaims{
		TokenID:   claims.ID,
		Subject:   claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.NotBefore != nil {
		out.NotBefore = claims.NotBefore.Time
	}
	return out, true
}
