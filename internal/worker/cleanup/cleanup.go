// Package cleanup は期限切れの失効トークンを削除するジョブを提供する。
// 失効リストはトークンの有効期限まで保持すれば十分なため、
// expires_atを過ぎた行を定期的に削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/ecofinds/internal/metrics"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CleanupJob は期限切れの失効トークンの削除ジョブ。
// 冪等であり、同時に複数のワーカーから実行しても結果は変わらない。
type CleanupJob struct {
	db      Executor
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewCleanupJob は新しいCleanupJobを生成する。collectorがnilの場合は記録しない。
func NewCleanupJob(db Executor, logger *slog.Logger, collector metrics.MetricsCollector) *CleanupJob {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &CleanupJob{
		db:      db,
		logger:  logger,
		metrics: collector,
	}
}

// Run はexpires_atを過ぎた失効トークンを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	result, err := j.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= now()`)
	if err != nil {
		j.logger.Error("failed to purge revoked tokens",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to purge revoked tokens: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("failed to read purged row count",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to read purged row count: %w", err)
	}

	j.metrics.RecordRevocationsPurged(deletedCount)

	j.logger.Info("revoked token purge completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。失敗はログに記録して次回に持ち越す。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CleanupJob) runOnce(ctx context.Context) {
	if err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Warn("cleanup job will retry on next tick", slog.String("error", err.Error()))
	}
}
