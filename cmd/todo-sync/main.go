package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"github.com/jaekwang-park/todo-sync/internal/cognito"
	"github.com/jaekwang-park/todo-sync/internal/config"
	todohttp "github.com/jaekwang-park/todo-sync/internal/http"
	"github.com/jaekwang-park/todo-sync/internal/http/handler"
	"github.com/jaekwang-park/todo-sync/internal/middleware"
	"github.com/jaekwang-park/todo-sync/internal/repository"
	"github.com/jaekwang-park/todo-sync/internal/service"
	"github.com/jaekwang-park/todo-sync/internal/storage"
	"github.com/jaekwang-park/todo-sync/internal/store"
	"github.com/jaekwang-park/todo-sync/internal/syncer"
)

func main() {
	// Initial logger at info level; reconfigured after config load
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(context.Background()); err != nil {
		slog.Error("application failed", "error", err)
		os.Exit(1)
	}
}

// identity is the anonymous backend session: Cognito when a pool is
// configured, a process-local stand-in otherwise.
type identity interface {
	Establish(ctx context.Context) (string, error)
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.ParseLogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("config loaded",
		"env", cfg.AppEnv,
		"port", cfg.ServerPort,
		"auth_dev_mode", cfg.AuthDevMode,
		"log_level", cfg.LogLevel,
		"bucket", cfg.AWS.S3Bucket,
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database connection
	db, err := repository.NewDB(cfg.DB.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}
	logger.Info("database connected")

	// AWS: anonymous identity and blob store credentials
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("failed to load aws config: %w", err)
	}

	var session identity
	switch {
	case cfg.AWS.IdentityPoolID != "":
		cognitoSession := cognito.NewAWSSession(awsCfg, cfg.AWS.IdentityPoolID)
		session = cognitoSession
		if cfg.AWS.S3AccessKey == "" {
			awsCfg.Credentials = aws.NewCredentialsCache(cognitoSession)
		}
		logger.Info("cognito identity pool configured", "region", cfg.AWS.Region)
	default:
		session = cognito.NewLocalSession()
		logger.Warn("COGNITO_IDENTITY_POOL_ID not set: using a local session")
	}
	if cfg.AWS.S3AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentialsProvider(cfg.AWS.S3AccessKey, cfg.AWS.S3SecretKey, "")
	}

	records := repository.NewPostgresItem(db)
	blobs := storage.NewS3Client(awsCfg, cfg.AWS.S3Bucket, cfg.AWS.S3Endpoint, cfg.AWS.PresignTTL)

	// Local store and synchronizer
	items := store.New(logger.With("component", "store"))
	synchronizer := syncer.New(items, records, blobs, syncer.Options{
		OpTimeout:   cfg.Sync.OpTimeout,
		MaxAttempts: cfg.Sync.MaxAttempts,
		BaseBackoff: cfg.Sync.BaseBackoff,
		MaxBackoff:  cfg.Sync.MaxBackoff,
		Concurrency: cfg.Sync.Concurrency,
	}, logger.With("component", "syncer"))

	// Services
	itemSvc := service.NewItemService(items, records, blobs, session, logger.With("component", "items"))

	bootCtx, cancelBoot := context.WithTimeout(ctx, 30*time.Second)
	if err := itemSvc.Bootstrap(bootCtx); err != nil {
		// Start with an empty list; the next restart fetches again.
		logger.Error("initial fetch failed", "error", err)
	}
	cancelBoot()

	secret := cfg.SessionSecret
	if secret == "" {
		secret, err = randomSecret()
		if err != nil {
			return err
		}
		logger.Warn("SESSION_SECRET not set: tokens will not survive a restart")
	}
	sessionSvc := service.NewSessionService(session, secret, cfg.SessionTTL)

	// Auth middleware
	auth, err := middleware.NewAuth(middleware.AuthConfig{
		DevMode:  cfg.AuthDevMode,
		Verifier: sessionSvc,
	})
	if err != nil {
		return fmt.Errorf("failed to create auth middleware: %w", err)
	}

	syncCtx, cancelSync := context.WithCancel(context.Background())
	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		synchronizer.Run(syncCtx)
	}()

	// HTTP Server
	srv := todohttp.NewServer(cfg.ServerPort, logger, todohttp.Deps{
		Items:    itemSvc,
		Sessions: sessionSvc,
		Sync:     synchronizer,
		HealthChecks: []handler.HealthCheck{
			{Name: "database", Check: db.PingContext},
		},
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}, auth)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	logger.Info("server starting", "port", cfg.ServerPort)

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		cancelSync()
		<-syncDone
		return err
	}

	// Push what is still pending before stopping the synchronizer.
	synchronizer.Flush(shutdownCtx)
	cancelSync()
	<-syncDone

	logger.Info("server stopped gracefully", "sync", synchronizer.Status())
	return nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
