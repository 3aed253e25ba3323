package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"
	_ "modernc.org/sqlite"

	"gymdesk/internal/adapters/email"
	web "gymdesk/internal/adapters/http"
	"gymdesk/internal/adapters/http/middleware"
	"gymdesk/internal/adapters/http/perf"
	"gymdesk/internal/adapters/metrics"
	"gymdesk/internal/adapters/remote"
	"gymdesk/internal/adapters/storage"
	emailLogStore "gymdesk/internal/adapters/storage/emaillog"
	memberStore "gymdesk/internal/adapters/storage/member"
	"gymdesk/internal/adapters/storage/rediskv"
	"gymdesk/internal/adapters/tracing"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/config"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slog.SetDefault(newLogger(cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Stdout {
		shutdown, err := tracing.Init("gymdesk", version, os.Stdout)
		if err != nil {
			log.Fatalf("failed to init tracing: %v", err)
		}
		defer shutdown(context.Background())
	}

	collector := perf.NewCollector(perf.DefaultRingSize)
	m := metrics.New()
	onFallback := m.FallbackHook(collector)

	kv, closeKV, err := openKV(ctx, cfg.Store, collector)
	if err != nil {
		log.Fatalf("failed to open local store: %v", err)
	}
	defer closeKV()

	client := remote.New(remoteConfig(cfg.Remote), collector)

	localMembers := memberStore.NewLocalStore(kv)
	members := memberStore.NewFallbackStore(memberStore.NewRemoteStore(client), localMembers, onFallback)
	localLogs := emailLogStore.NewLocalStore(kv)
	logs := emailLogStore.NewFallbackStore(emailLogStore.NewRemoteStore(client), localLogs, onFallback)

	sender, err := newSender(ctx, cfg.Email)
	if err != nil {
		log.Fatalf("failed to configure email: %v", err)
	}

	reminders := orchestrators.SendRemindersDeps{
		Trigger:     client,
		Members:     members,
		EmailLogs:   logs,
		Sender:      sender,
		Renderer:    email.NewRenderer(nil),
		GymName:     cfg.Email.GymName,
		FrontendURL: cfg.Email.FrontendURL,
		Now:         time.Now,
		OnFallback:  onFallback,
		OnComplete: func(emailType string, res orchestrators.SendRemindersResult) {
			m.RecordReminders(emailType, res.Remote, res.Sent, res.Failed, res.Skipped)
		},
	}

	schedCfg := orchestrators.DefaultReminderSchedulerConfig()
	schedCfg.Enabled = cfg.Reminders.Enabled
	schedCfg.Interval = cfg.Reminders.Interval()
	if len(cfg.Reminders.Types) > 0 {
		schedCfg.Types = cfg.Reminders.Types
	}
	stopScheduler := orchestrators.StartReminderScheduler(ctx, reminders, schedCfg)
	defer stopScheduler()

	opts := web.Options{
		CSRFKey:            cfg.Server.CSRFKeyBytes(),
		SecureCookies:      cfg.Server.IsProduction(),
		CORSOrigins:        cfg.Server.CORSOrigins,
		RateLimitPerSecond: cfg.Server.RateLimit,
	}
	if cfg.Auth.Enabled() {
		opts.Verifier = middleware.NewTokenVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	} else {
		slog.Warn("auth_disabled", "detail", "set auth.jwt_secret to require bearer tokens")
	}

	handler := web.NewRouter(&web.App{
		Members:      members,
		LocalMembers: localMembers,
		EmailLogs:    logs,
		Stats:        client,
		Uploader:     client,
		Portal:       client,
		Reminders:    reminders,
		Metrics:      m,
		OnFallback:   onFallback,
	}, collector, opts)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("server_starting", "version", version, "addr", cfg.Server.Addr,
			"env", cfg.Server.Env, "store", cfg.Store.Driver, "remote", cfg.Remote.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("server_stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server_shutdown_failed", "error", err)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

// openKV opens the local fallback store and returns its close function.
func openKV(ctx context.Context, cfg config.StoreConfig, collector *perf.Collector) (storage.KV, func(), error) {
	if cfg.Driver == "redis" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("redis unreachable: %w", err)
		}
		return rediskv.New(rdb, cfg.RedisPrefix), func() { rdb.Close() }, nil
	}

	// WAL mode and busy timeout per connection
	dsn := cfg.SQLitePath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("database unreachable: %w", err)
	}
	if err := storage.InitDB(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	slog.Info("database_ready", "path", cfg.SQLitePath, "schema", storage.LatestSchemaVersion())
	return storage.NewSQLiteKV(storage.NewTimedDB(db, collector)), func() { db.Close() }, nil
}

func remoteConfig(cfg config.RemoteConfig) remote.Config {
	rc := remote.Config{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout(), Token: cfg.Token}
	if cfg.ClientID != "" {
		rc.OAuth2 = &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
	}
	return rc
}

func newSender(ctx context.Context, cfg config.EmailConfig) (email.Sender, error) {
	switch cfg.Provider {
	case "resend":
		slog.Info("email_sender_configured", "provider", "resend")
		return email.NewResendSender(cfg.ResendKey, cfg.From, cfg.ReplyTo), nil
	case "ses":
		s, err := email.NewSESSender(ctx, email.SESConfig{
			Region:    cfg.SESRegion,
			AccessKey: cfg.SESAccessKey,
			SecretKey: cfg.SESSecretKey,
			From:      cfg.From,
			ReplyTo:   cfg.ReplyTo,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("email_sender_configured", "provider", "ses", "region", cfg.SESRegion)
		return s, nil
	default:
		slog.Warn("email_sender_configured", "provider", "noop", "detail", "reminder emails are logged, not delivered")
		return email.NewNoopSender(), nil
	}
}
