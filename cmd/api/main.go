package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/ArowuTest/clinic-membership-backend/api/routes"
	"github.com/ArowuTest/clinic-membership-backend/internal/config"
	"github.com/ArowuTest/clinic-membership-backend/internal/handlers"
	"github.com/ArowuTest/clinic-membership-backend/internal/jobs"
	"github.com/ArowuTest/clinic-membership-backend/internal/logger"
	"github.com/ArowuTest/clinic-membership-backend/internal/middleware"
	"github.com/ArowuTest/clinic-membership-backend/internal/repositories"
	"github.com/ArowuTest/clinic-membership-backend/internal/repositories/memory"
	mongorepo "github.com/ArowuTest/clinic-membership-backend/internal/repositories/mongodb"
	"github.com/ArowuTest/clinic-membership-backend/internal/services"
	"github.com/ArowuTest/clinic-membership-backend/internal/utils"
	"github.com/ArowuTest/clinic-membership-backend/pkg/jwt"
	mongodb "github.com/ArowuTest/clinic-membership-backend/pkg/mongodb"
	"github.com/ArowuTest/clinic-membership-backend/pkg/ratelimit"
	"github.com/ArowuTest/clinic-membership-backend/pkg/smsgateway"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// storage bundles the repositories behind whichever backend is configured
type storage struct {
	users         repositories.UserRepository
	otps          repositories.OTPRepository
	packages      repositories.PackageRepository
	subscriptions repositories.SubscriptionRepository
	pinger        handlers.Pinger
	close         func(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server exited with error", zap.Error(err))
	}
	zlog.Info("server exiting")
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg, zlog)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.close(closeCtx); err != nil {
			zlog.Error("error closing storage", zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []services.Option{
		services.WithLogger(zlog),
		services.WithMetrics(services.NewMetrics(reg)),
	}

	gateway, err := smsgateway.New(smsgateway.Options{
		Provider:   cfg.SMS.Provider,
		AccountSID: cfg.SMS.AccountSID,
		AuthToken:  cfg.SMS.AuthToken,
		FromNumber: cfg.SMS.FromNumber,
		BaseURL:    cfg.SMS.BaseURL,
		APIKey:     cfg.SMS.APIKey,
		Timeout:    cfg.SMS.Timeout,
	}, logger.WithComponent(zlog, "sms"))
	switch {
	case errors.Is(err, smsgateway.ErrNotConfigured):
		zlog.Warn("no SMS provider configured, OTP delivery is unavailable")
		gateway = nil
	case err != nil:
		return err
	}

	limiter, closeRedis := openLimiter(cfg, zlog)
	defer closeRedis()

	tokens := jwt.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.ExpiresIn)
	phones := utils.NewPhoneNormalizer()

	authService := services.NewAuthService(store.users, store.otps, gateway, tokens, limiter, phones, services.OTPSettings{
		Length:    cfg.OTP.Length,
		TTL:       cfg.OTP.TTL,
		HashCost:  cfg.OTP.HashCost,
		BrandName: cfg.OTP.BrandName,
	}, opts...)
	userService := services.NewUserService(store.users, phones, opts...)
	packageService := services.NewPackageService(store.users, store.packages, store.subscriptions, opts...)
	expiryService := services.NewExpiryService(store.subscriptions, store.otps, opts...)

	if err := handlers.RegisterValidators(phones); err != nil {
		return err
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := routes.SetupRouter(routes.HandlerDependencies{
		AuthHandler:    handlers.NewAuthHandler(authService, zlog),
		UserHandler:    handlers.NewUserHandler(userService, authService, zlog),
		PackageHandler: handlers.NewPackageHandler(packageService, zlog),
		HealthHandler:  handlers.NewHealthHandler(store.pinger, cfg.Version, zlog),
		Tokens:         tokens,
		Users:          authService,
		Logger:         zlog,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		HTTPMetrics:    middleware.NewHTTPMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zlog.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		zlog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Jobs.Enabled {
		scheduler, err := jobs.NewScheduler(expiryService, cfg.Jobs, logger.WithComponent(zlog, "jobs"))
		if err != nil {
			return err
		}
		g.Go(func() error { return scheduler.Run(gctx) })
	}

	return g.Wait()
}

func openStorage(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (*storage, error) {
	if cfg.MongoDB.InMemory {
		zlog.Warn("using in-memory storage, data is lost on restart")
		mem := memory.NewStore()
		return &storage{
			users:         mem.Users(),
			otps:          mem.OTPs(),
			packages:      mem.Packages(),
			subscriptions: mem.Subscriptions(),
			close:         func(context.Context) error { return nil },
		}, nil
	}

	client, err := mongodb.NewClient(cfg.MongoDB.URI, cfg.MongoDB.Timeout)
	if err != nil {
		return nil, err
	}
	db := client.Database(cfg.MongoDB.Database)

	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := mongorepo.EnsureIndexes(indexCtx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	zlog.Info("connected to MongoDB", zap.String("database", cfg.MongoDB.Database))

	timeout := cfg.MongoDB.Timeout
	return &storage{
		users:         mongorepo.NewUserRepository(db, timeout),
		otps:          mongorepo.NewOTPRepository(db, timeout),
		packages:      mongorepo.NewPackageRepository(db, timeout),
		subscriptions: mongorepo.NewSubscriptionRepository(db, timeout, cfg.MongoDB.Transactions),
		pinger:        client,
		close:         client.Disconnect,
	}, nil
}

// openLimiter returns the Redis-backed OTP throttle, or nil when disabled
func openLimiter(cfg *config.Config, zlog *zap.Logger) (services.OTPLimiter, func()) {
	if !cfg.RateLimit.Enabled || cfg.Redis.Addr == "" {
		zlog.Info("OTP rate limiting disabled")
		return nil, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	limiter := ratelimit.NewLimiter(client, "otp", cfg.RateLimit.Window, cfg.RateLimit.MaxInWindow, cfg.RateLimit.Cooldown, cfg.RateLimit.BlockFor)
	return limiter, func() {
		if err := client.Close(); err != nil {
			zlog.Warn("error closing redis client", zap.Error(err))
		}
	}
}
