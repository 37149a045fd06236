// Package auth はログイン・登録・ログアウトとセッショントークンの解決を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/ecofinds/internal/credential"
	"github.com/hitoshi/ecofinds/internal/metrics"
	"github.com/hitoshi/ecofinds/internal/model"
	"github.com/hitoshi/ecofinds/internal/repository"
)

// RegisterInput はアカウント登録の入力値。
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Location string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users       repository.UserRepository
	revocations repository.RevocationStore
	hasher      *credential.PasswordHasher
	signer      *credential.TokenSigner
	metrics     metrics.MetricsCollector
	now         func() time.Time
}

// NewService はServiceを生成する。metricsがnilの場合は記録しない。
func NewService(
	users repository.UserRepository,
	revocations repository.RevocationStore,
	hasher *credential.PasswordHasher,
	signer *credential.TokenSigner,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		users:       users,
		revocations: revocations,
		hasher:      hasher,
		signer:      signer,
		metrics:     collector,
		now:         time.Now,
	}
}

// TokenTTL はセッショントークンの有効期間を返す。Cookieの有効期間に使用する。
func (s *Service) TokenTTL() time.Duration {
	return s.signer.TTL()
}

// Login はメールアドレスとパスワードを検証し、セッションを発行する。
// メールアドレス未登録とパスワード不一致は同一のInvalidCredentialsエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		s.metrics.RecordAuth("login", metrics.ResultFailure)
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if user == nil {
		// 未登録でもbcrypt比較1回分の時間を消費する
		s.hasher.VerifyDummy(password)
		s.metrics.RecordAuth("login", metrics.ResultFailure)
		return nil, model.NewInvalidCredentialsError()
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.metrics.RecordAuth("login", metrics.ResultFailure)
		slog.Info("login rejected", slog.String("user_id", user.ID))
		return nil, model.NewInvalidCredentialsError()
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuth("login", metrics.ResultSuccess)
	slog.Info("user logged in", slog.String("user_id", user.ID))
	return session, nil
}

// Register は新規アカウントを作成し、セッションを発行する。
// メールアドレスが既に使用されている場合はEmailTakenエラーを返す。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Session, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, model.NewValidationError("Missing required fields")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		s.metrics.RecordAuth("register", metrics.ResultFailure)
		return nil, model.NewEmailTakenError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Location:     strings.TrimSpace(in.Location),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		// 事前チェック後に同一メールアドレスが登録された場合
		if errors.Is(err, repository.ErrEmailTaken) {
			s.metrics.RecordAuth("register", metrics.ResultFailure)
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	session, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAuth("register", metrics.ResultSuccess)
	slog.Info("user registered", slog.String("user_id", user.ID))
	return session, nil
}

// ResolveSession はトークンから現在のユーザーを解決する。
// トークンの欠落・署名不正・期限切れ・失効済み・ユーザー不在のいずれもnilを返し、
// エラーは返さない。
func (s *Service) ResolveSession(ctx context.Context, token string) *model.User {
	claims, ok := s.signer.Verify(token)
	if !ok {
		return nil
	}

	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
		if err != nil {
			slog.Error("failed to check token revocation",
				slog.String("error", err.Error()),
			)
			return nil
		}
		if revoked {
			return nil
		}
	}

	user, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		slog.Error("failed to load session user",
			slog.String("user_id", claims.Subject),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return user
}

// Logout はトークンを失効リストに登録する。
// 検証できないトークンは失効させるものが無いため何もしない。
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, ok := s.signer.Verify(token)
	if !ok {
		return nil
	}
	if s.revocations == nil {
		return nil
	}

	if err := s.revocations.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		s.metrics.RecordAuth("logout", metrics.ResultFailure)
		return fmt.Errorf("failed to revoke token: %w", err)
	}

	s.metrics.RecordAuth("logout", metrics.ResultSuccess)
	s.metrics.RecordTokenRevoked()
	slog.Info("user logged out", slog.String("user_id", claims.Subject))
	return nil
}

func (s *Service) issue(user *model.User) (*model.Session, error) {
	token, claims, err := s.signer.Sign(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to issue session token: %w", err)
	}
	return &model.Session{Token: token, Claims: *claims, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
