// Package app wires configuration, storage and the HTTP server together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avnova/sqyros/internal/assist"
	"github.com/avnova/sqyros/internal/config"
	"github.com/avnova/sqyros/internal/db"
	"github.com/avnova/sqyros/internal/digest"
	sqyroshttp "github.com/avnova/sqyros/internal/http"
	"github.com/avnova/sqyros/internal/llm"
	"github.com/avnova/sqyros/internal/logging"
	"github.com/avnova/sqyros/internal/quota"
	"github.com/avnova/sqyros/internal/security"
	"github.com/avnova/sqyros/internal/settings"
	"github.com/avnova/sqyros/internal/usage"
	"github.com/avnova/sqyros/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// LoadConfig resolves and loads the configuration file named by cfg.
func LoadConfig(cfg config.AppConfig) (*config.Config, error) {
	return config.Load(config.ResolveConfigPath(cfg.ConfigPath))
}

// OpenDatabase opens the configured database with its pool limits.
func OpenDatabase(cfg *config.Config) (*gorm.DB, error) {
	return db.OpenWithPool(cfg.Database.DSN, db.Pool{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	appCfg, err := LoadConfig(cfg)
	if err != nil {
		return err
	}
	conn, err := OpenDatabase(appCfg)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn.WithContext(ctx)); errMigrate != nil {
		return errMigrate
	}
	log.Info("migrations applied")
	return nil
}

// RunServer boots the HTTP server and background jobs, and blocks until ctx is done.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	appCfg, err := LoadConfig(cfg)
	if err != nil {
		return err
	}
	closer, err := logging.Setup(appCfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	if errValidate := appCfg.Validate(); errValidate != nil {
		return errValidate
	}

	conn, err := OpenDatabase(appCfg)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.Refresh(ctx, conn); errRefresh != nil {
		log.WithError(errRefresh).Warn("initial settings refresh failed")
	}

	client, err := llm.NewClient(appCfg.LLM.Provider, llm.ProviderConfig{
		APIKey:     appCfg.LLM.APIKey,
		BaseURL:    appCfg.LLM.BaseURL,
		Timeout:    appCfg.LLM.Timeout,
		MaxRetries: appCfg.LLM.MaxRetries,
	})
	if err != nil {
		return err
	}

	counter, closeCounter, err := buildCounter(ctx, appCfg, conn)
	if err != nil {
		return err
	}
	defer closeCounter()

	recorder := usage.NewRecorder(usage.NewLedger(conn), appCfg.Usage.QueueSize)
	defer recorder.Close()

	svc := assist.NewService(assist.Deps{
		DB:           conn,
		LLM:          client,
		Quota:        quota.NewChecker(counter, appCfg.Quota.Policy),
		Recorder:     recorder,
		Models:       appCfg.LLM.Models,
		Rates:        appCfg.Pricing,
		HistoryTurns: appCfg.Usage.HistoryTurns,
	})

	scheduler, err := buildScheduler(ctx, appCfg, conn)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	gin.SetMode(gin.ReleaseMode)
	engine := sqyroshttp.NewEngine(conn, svc, security.NewVerifier(appCfg.Auth.JWTSecret, appCfg.Auth.Issuer))
	srv := &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("sqyros listening on %s (provider=%s fast=%s advanced=%s, quota backend=%s, api key=%s)",
			srv.Addr, appCfg.LLM.Provider, appCfg.LLM.Models.Fast, appCfg.LLM.Models.Advanced, appCfg.Quota.Backend, util.HideAPIKey(appCfg.LLM.APIKey))
		if errServe := srv.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
		close(errCh)
	}()

	select {
	case errServe := <-errCh:
		return errServe
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.Server.ShutdownTimeout)
	defer cancel()
	log.Info("shutting down")
	if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("shutdown: %w", errShutdown)
	}
	return nil
}

// buildCounter returns the quota counter for the configured backend.
func buildCounter(ctx context.Context, cfg *config.Config, conn *gorm.DB) (quota.Counter, func(), error) {
	ledgerCounter := quota.NewGormCounter(conn)
	if cfg.Quota.Backend != config.QuotaBackendRedis {
		return ledgerCounter, func() {}, nil
	}

	opts := &redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	if cfg.Redis.URL != "" {
		parsed, errParse := redis.ParseURL(cfg.Redis.URL)
		if errParse != nil {
			return nil, nil, fmt.Errorf("redis: parse url: %w", errParse)
		}
		opts = parsed
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if errPing := client.Ping(pingCtx).Err(); errPing != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis: ping: %w", errPing)
	}
	return quota.NewRedisCounter(client, ledgerCounter), func() { _ = client.Close() }, nil
}

// buildScheduler registers retention, settings refresh and, when configured, the usage digest.
func buildScheduler(ctx context.Context, cfg *config.Config, conn *gorm.DB) (*cron.Cron, error) {
	scheduler := cron.New(cron.WithLocation(time.UTC))

	cleaner := usage.NewRetentionCleaner(conn, cfg.Usage.RetentionDays)
	if errRegister := cleaner.Register(ctx, scheduler, cfg.Usage.CleanupSchedule); errRegister != nil {
		return nil, fmt.Errorf("schedule retention cleaner: %w", errRegister)
	}

	refreshSpec := cfg.Usage.SettingsRefreshSchedule
	if refreshSpec == "" {
		refreshSpec = "@every 1m"
	}
	if _, errAdd := scheduler.AddFunc(refreshSpec, func() {
		if errRefresh := settings.Refresh(ctx, conn); errRefresh != nil {
			log.WithError(errRefresh).Warn("settings refresh failed")
		}
	}); errAdd != nil {
		return nil, fmt.Errorf("schedule settings refresh: %w", errAdd)
	}

	if cfg.Digest.Enabled() {
		client := digest.NewSlackClient(cfg.Digest.SlackBotToken, cfg.Digest.APIURL)
		notifier := digest.NewNotifier(usage.NewLedger(conn), client, cfg.Digest.Channel)
		if errRegister := notifier.Register(ctx, scheduler, cfg.Digest.Schedule); errRegister != nil {
			return nil, fmt.Errorf("schedule usage digest: %w", errRegister)
		}
	}
	return scheduler, nil
}
