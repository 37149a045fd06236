package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/ecofinds/internal/auth"
	"github.com/hitoshi/ecofinds/internal/cart"
	"github.com/hitoshi/ecofinds/internal/config"
	"github.com/hitoshi/ecofinds/internal/credential"
	"github.com/hitoshi/ecofinds/internal/database"
	"github.com/hitoshi/ecofinds/internal/handler"
	"github.com/hitoshi/ecofinds/internal/logger"
	"github.com/hitoshi/ecofinds/internal/metrics"
	"github.com/hitoshi/ecofinds/internal/middleware"
	"github.com/hitoshi/ecofinds/internal/product"
	"github.com/hitoshi/ecofinds/internal/repository"
	"github.com/hitoshi/ecofinds/internal/security"
	"github.com/hitoshi/ecofinds/internal/websocket"
	"github.com/hitoshi/ecofinds/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.SetLevel(cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	// cart はクライアント側の操作のため、サーバー設定を要求しない。
	// wはコマンド出力に使い、ログは標準エラーへ出力する。
	if cmd == CommandCart {
		logger.SetupDefault(os.Stderr)
		cfg := config.LoadClient()
		logger.SetLevel(cfg.LogLevel)
		return runCart(context.Background(), w, cfg, args[1:])
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newRevocationStore はREDIS_URLが設定されていればRedis、なければPostgreSQLの失効リストを返す。
// closeは終了時に呼び出す。
func newRevocationStore(cfg *config.Config, db *sql.DB) (store repository.RevocationStore, closeFn func(), err error) {
	if cfg.RedisURL == "" {
		return repository.NewPostgresRevocationStore(db), func() {}, nil
	}

	client, err := repository.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("using redis revocation store")
	return repository.NewRedisRevocationStore(client), func() { client.Close() }, nil
}

// newMetrics は専用レジストリにCollectorを登録する。
func newMetrics() (*metrics.Collector, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.NewCollector(reg), reg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	productRepo := repository.NewPostgresProductRepo(db)
	categoryRepo := repository.NewPostgresCategoryRepo(db)
	cartRepo := repository.NewPostgresCartRepo(db)

	revocations, closeRevocations, err := newRevocationStore(cfg, db)
	if err != nil {
		return err
	}
	defer closeRevocations()

	// 3. メトリクス
	collector, registry := newMetrics()

	// 4. 認証情報
	hasher := credential.NewPasswordHasher(cfg.BcryptCost)
	signer, err := credential.NewTokenSigner(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to create token signer: %w", err)
	}

	// 5. ドメインサービスの初期化
	authService := auth.NewService(userRepo, revocations, hasher, signer, collector)

	ssrfGuard := security.NewSSRFGuard()
	var prober security.ImageProber
	if cfg.ImageProbeEnabled {
		prober = security.NewImageProber(ssrfGuard.NewSafeClient(cfg.ImageProbeTimeout))
	}
	productService := product.NewService(
		productRepo, categoryRepo, security.NewListingSanitizer(), ssrfGuard, prober,
	)

	hub := websocket.NewHub(collector)
	ledger := cart.NewLedger(cartRepo, productRepo, hub, collector)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		SessionResolver:   authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RequestLogger: middleware.NewLoggingMiddleware(slog.Default(), collector),

		AuthService: authService,
		CookieConfig: auth.CookieConfig{
			Domain: cfg.CookieDomain,
			Secure: cfg.CookieSecure,
		},

		ProductService: productService,

		CartService: ledger,
		CartEvents: websocket.HandleCartEvents(hub, func(r *http.Request) string {
			userID, _ := middleware.UserIDFromContext(r.Context())
			return userID
		}, originPatterns(cfg.CORSAllowedOrigin)),

		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// originPatterns はCORS許可オリジンからWebSocketのOriginパターン（ホスト部）を作る。
func originPatterns(allowedOrigin string) []string {
	u, err := url.Parse(allowedOrigin)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}

// runWorker はワーカーモードで起動する。
// 期限切れの失効トークンを定期的に削除する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector, _ := newMetrics()
	job := cleanup.NewCleanupJob(db, slog.Default(), collector)

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.RevocationCleanupInterval),
	)

	job.Start(ctx, cfg.RevocationCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// 引数なしで全ての未適用マイグレーションを適用し、"down"で全て巻き戻す。
func runMigrate(cfg *config.Config, args []string) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if len(args) > 0 && args[0] == "down" {
		if err := database.RollbackMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back")
		return nil
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
