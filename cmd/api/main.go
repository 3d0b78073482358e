package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/rewear/rewear-backend/api/routes"
	"github.com/rewear/rewear-backend/internal/auth"
	"github.com/rewear/rewear-backend/internal/items"
	"github.com/rewear/rewear-backend/internal/moderation"
	"github.com/rewear/rewear-backend/internal/swaps"
	"github.com/rewear/rewear-backend/internal/users"
	"github.com/rewear/rewear-backend/pkg/auth/session"
	"github.com/rewear/rewear-backend/pkg/config"
	"github.com/rewear/rewear-backend/pkg/db"
	"github.com/rewear/rewear-backend/pkg/imaging"
	"github.com/rewear/rewear-backend/pkg/logger"
	"github.com/rewear/rewear-backend/pkg/metrics"
	"github.com/rewear/rewear-backend/pkg/migrate"
	"github.com/rewear/rewear-backend/pkg/redis"
	"github.com/rewear/rewear-backend/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, dbClient.Close())
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, redisClient.Close())
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	userRepo := users.NewRepository(dbClient.DB())
	platformAdminID, err := auth.EnsurePlatformAdmin(ctx, auth.PlatformAdminParams{
		Users:    userRepo,
		Admin:    cfg.PlatformAdmin,
		Password: cfg.Password,
		Seed:     cfg.FeatureFlags.SeedPlatformAdmin,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	disk, err := storage.NewDisk(cfg.Media.UploadDir)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
	})
	if err != nil {
		return err
	}

	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		TxRunner:       dbClient,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		StartingPoints: cfg.Swap.StartingPoints,
	})
	if err != nil {
		return err
	}

	userService, err := users.NewService(userRepo)
	if err != nil {
		return err
	}

	itemRepo := items.NewRepository(dbClient.DB())
	itemService, err := items.NewService(items.ServiceParams{
		Repo:      itemRepo,
		Processor: imaging.NewProcessor(cfg.Media),
		Store:     disk,
		Media:     cfg.Media,
		Logger:    logg,
	})
	if err != nil {
		return err
	}

	moderationService, err := moderation.NewService(moderation.ServiceParams{
		Repo:     itemRepo,
		TxRunner: dbClient,
		Images:   disk,
		URLs:     items.URLMapper{Prefix: cfg.Media.PublicPrefix},
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	swapService, err := swaps.NewService(swaps.ServiceParams{
		DB:             dbClient.DB(),
		TxRunner:       dbClient,
		Fees:           swaps.NewFeeSchedule(cfg.Swap),
		PlatformUserID: platformAdminID,
		Metrics:        metrics.NewSwapMetrics(registry),
		Logger:         logg,
	})
	if err != nil {
		return err
	}

	addr := ":" + cfg.App.Port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			registry,
			metrics.NewHTTPMetrics(registry),
			dbClient,
			redisClient,
			sessionManager,
			authService,
			registerService,
			userService,
			itemService,
			moderationService,
			swapService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"db":       dbClient.Dialect(),
		"admin_id": platformAdminID.String(),
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

