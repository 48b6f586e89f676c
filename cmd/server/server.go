package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"task-manager/internal/auth"
	"task-manager/internal/config"
	apphttp "task-manager/internal/http"
	"task-manager/internal/ratelimit"
	"task-manager/internal/repository"
	mongorepo "task-manager/internal/repository/mongo"
	"task-manager/internal/repository/sqlite"
	"task-manager/internal/service"
	"task-manager/internal/storage"
)

func serve(parent context.Context, env, file string) error {
	cfg, err := config.Load(env, file)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	users, tasks, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := users.Init(ctx); err != nil {
		return fmt.Errorf("init user repository: %w", err)
	}
	if err := tasks.Init(ctx); err != nil {
		return fmt.Errorf("init task repository: %w", err)
	}

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup storage: %w", err)
	}

	limits, err := buildRateLimits(cfg)
	if err != nil {
		return fmt.Errorf("rate limits: %w", err)
	}

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	userService := service.NewUserService(users, tokens, service.WithHashCost(cfg.Auth.BcryptCost))
	taskService := service.NewTaskService(tasks)
	exportService := service.NewExportService(tasks, storageSvc, service.ExportConfig{
		Bucket: cfg.Export.Bucket,
		Prefix: cfg.Export.Prefix,
		URLTTL: cfg.Export.URLTTL,
	})

	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := apphttp.NewRouter(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}
	handler := apphttp.NewHandler(userService, taskService, exportService, limits, logger)
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"addr": cfg.Server.Addr, "env": cfg.Env}).Info("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
	return nil
}

func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	if cfg.Log.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// openStore connects the configured backend and returns its repositories plus a
// function releasing the connection.
func openStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repository.UserRepository, repository.TaskRepository, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open database: %w", err)
		}
		logger.Infof("using sqlite database %s", cfg.Database.Path)
		closeDB := func() {
			if err := db.Close(); err != nil {
				logger.Warnf("close database: %v", err)
			}
		}
		return sqlite.NewUserRepository(db), sqlite.NewTaskRepository(db), closeDB, nil

	default:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongorepo.Connect(connectCtx, cfg.Database.URI)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		db := client.Database(cfg.Database.Name)
		logger.Infof("using mongo database %s", cfg.Database.Name)
		disconnect := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(ctx); err != nil {
				logger.Warnf("disconnect mongo: %v", err)
			}
		}
		return mongorepo.NewUserRepository(db), mongorepo.NewTaskRepository(db), disconnect, nil
	}
}

// buildStorage returns nil when no export bucket is configured; exports are then disabled.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Export.Bucket == "" {
		logger.Info("export bucket not configured, task export disabled")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Export.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Export.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Export.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("using s3 bucket %s (region %s)", cfg.Export.Bucket, cfg.Export.Region)
	return storage.NewS3Service(client), nil
}

func buildRateLimits(cfg config.Config) (apphttp.RateLimits, error) {
	if !cfg.RateLimit.Enabled {
		return apphttp.RateLimits{}, nil
	}

	build := func(name, budget string) (*ratelimit.Limiter, error) {
		rules, err := ratelimit.ParseRules(budget)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if len(rules) == 0 {
			return nil, nil
		}
		return ratelimit.New(rules...), nil
	}

	var (
		limits apphttp.RateLimits
		err    error
	)
	if limits.Default, err = build("default", cfg.RateLimit.Default); err != nil {
		return limits, err
	}
	if limits.Register, err = build("register", cfg.RateLimit.Register); err != nil {
		return limits, err
	}
	if limits.Login, err = build("login", cfg.RateLimit.Login); err != nil {
		return limits, err
	}
	return limits, nil
}
