package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PostgresRevocationStore はrevoked_tokensテーブルを使用した失効リスト。
// 期限切れの行はcleanupジョブが定期的に削除する。
type PostgresRevocationStore struct {
	db *sql.DB
}

// NewPostgresRevocationStore はPostgresRevocationStoreを生成する。
func NewPostgresRevocationStore(db *sql.DB) *PostgresRevocationStore {
	return &PostgresRevocationStore{db: db}
}

// Revoke はトークンIDを失効リストに追加する。既に登録済みの場合は何もしない。
func (s *PostgresRevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if !isUUID(tokenID) {
		return fmt.Errorf("invalid token id: %q", tokenID)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens (jti, expires_at) VALUES ($1, $2)
		 ON CONFLICT (jti) DO NOTHING`,
		tokenID, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked はトークンIDが失効済みかを返す。
func (s *PostgresRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if !isUUID(tokenID) {
		return false, nil
	}
	var revoked bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = $1 AND expires_at > now())`,
		tokenID,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return revoked, nil
}

// redisRevokedKeyPrefix はRedis上の失効キーの接頭辞。
const redisRevokedKeyPrefix = "ecofinds:revoked:"

// RedisRevocationStore はRedisのキー有効期限を利用した失効リスト。
// トークンの残り有効期間をTTLとして設定するため、掃除は不要。
type RedisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore はRedisRevocationStoreを生成する。
func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

// NewRedisClient はREDIS_URL形式の接続文字列からクライアントを生成する。
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Revoke はトークンIDを残り有効期間のTTL付きで登録する。
// 既に期限切れのトークンは登録しない。
func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, redisRevokedKeyPrefix+tokenID, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token in redis: %w", err)
	}
	return nil
}

// IsRevoked はトークンIDが失効済みかを返す。
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, redisRevokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check revoked token in redis: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var (
	_ RevocationStore = (*PostgresRevocationStore)(nil)
	_ RevocationStore = (*RedisRevocationStore)(nil)
)
