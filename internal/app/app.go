package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/warnman/internal/bot"
	"github.com/hitoshi/warnman/internal/config"
	"github.com/hitoshi/warnman/internal/database"
	"github.com/hitoshi/warnman/internal/handler"
	"github.com/hitoshi/warnman/internal/logger"
	"github.com/hitoshi/warnman/internal/metrics"
	"github.com/hitoshi/warnman/internal/middleware"
	"github.com/hitoshi/warnman/internal/repository"
	"github.com/hitoshi/warnman/internal/warn"
	"github.com/hitoshi/warnman/internal/warnid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// fallbackHost はローカルIPを検出できなかった場合のバインド先。
const fallbackHost = "127.0.0.1"

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envと環境変数から設定を読み込む
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでログを再構成する
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		slog.Warn("invalid LOG_LEVEL, falling back to info", slog.String("error", err.Error()))
	}
	logger.SetupDefault(w, level)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("database_driver", cfg.DatabaseDriver),
		slog.String("port", cfg.ServerPort),
		slog.Bool("bot_enabled", cfg.BotEnabled()),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, nil)
	}
}

// serve はマイグレーションを適用し、HTTP APIと（トークンがあれば）Discord Botを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
// readyが指定された場合はリッスン開始後にバインドしたアドレスを渡して呼ぶ。
func serve(ctx context.Context, cfg *config.Config, ready func(addr string)) error {
	// 1. マイグレーション
	if err := runMigrate(cfg); err != nil {
		return err
	}

	// 2. DB接続
	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established", slog.String("driver", cfg.DatabaseDriver))

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "warnman"),
	)
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービス
	repo, err := newWarnRepository(cfg.DatabaseDriver, db)
	if err != nil {
		return err
	}
	service := warn.NewService(repo, warnid.NewGenerator(cfg.WarnIDMaxAttempts), collector)

	// 5. ルーター
	httpLimiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitGeneral))
	defer httpLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       httpLimiter,
		Metrics:           collector,
		WarnService:       service,
		Pinger:            db,
		Gatherer:          registry,
	})

	// 6. Discord Bot
	var b *bot.Bot
	if cfg.BotEnabled() {
		botLimiter := middleware.NewRateLimiter(middleware.PerMinute(cfg.RateLimitBot))
		defer botLimiter.Stop()

		b, err = bot.New(bot.Config{Token: cfg.DiscordBotToken, GuildID: cfg.DiscordGuildID}, service, botLimiter, collector)
		if err != nil {
			return err
		}
	} else {
		slog.Info("DISCORD_BOT_TOKEN is not set, Discord bot disabled")
	}

	// 7. リッスン開始
	addr := net.JoinHostPort(resolveHost(cfg.ServerHost), cfg.ServerPort)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("API server starting", slog.String("addr", listener.Addr().String()))
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down API server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		slog.Info("API server stopped gracefully")
		return nil
	})

	if b != nil {
		g.Go(func() error {
			if err := b.Start(gctx); err != nil {
				return fmt.Errorf("failed to start Discord bot: %w", err)
			}
			<-gctx.Done()
			slog.Info("shutting down Discord bot...")
			if err := b.Stop(); err != nil {
				return fmt.Errorf("discord session close failed: %w", err)
			}
			return nil
		})
	}

	if ready != nil {
		ready(listener.Addr().String())
	}

	return g.Wait()
}

// newWarnRepository はドライバーに対応するリポジトリを生成する。
func newWarnRepository(driver string, db *sql.DB) (repository.WarnRepository, error) {
	switch driver {
	case database.DriverSQLite:
		return repository.NewSQLiteWarnRepo(db), nil
	case database.DriverPostgres:
		return repository.NewPostgresWarnRepo(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("driver", cfg.DatabaseDriver),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseDriver, cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseDriver, cfg.DatabaseURL); err != nil {
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

// resolveHost はSERVER_HOSTの値からバインド先ホストを決める。
// "auto" の場合は外向きのローカルIPを検出する。
func resolveHost(host string) string {
	if host != config.AutoHost {
		return host
	}
	ip := detectLocalIP()
	slog.Info("detected local IP", slog.String("ip", ip))
	return ip
}

// detectLocalIP は外部宛てUDPソケットのローカルアドレスからIPを求める。
// UDPのDialは実際には送信しない。検出できなければfallbackHostを返す。
func detectLocalIP() string {
	conn, err := net.DialTimeout("udp", "8.8.8.8:80", 2*time.Second)
	if err != nil {
		return fallbackHost
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil || addr.IP.IsUnspecified() {
		return fallbackHost
	}
	return addr.IP.String()
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
// SQLiteのファイルパスはそのまま返す。
func maskDatabaseURL(driver, raw string) string {
	if driver == database.DriverSQLite {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
