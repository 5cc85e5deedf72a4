package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-auth-webhook/internal/config"
	"go-auth-webhook/internal/database"
	"go-auth-webhook/internal/handler"
	"go-auth-webhook/internal/logger"
	"go-auth-webhook/internal/password"
	"go-auth-webhook/internal/repository"
	"go-auth-webhook/internal/router"
	"go-auth-webhook/internal/service"
	"go-auth-webhook/internal/token"
)

var newLogger = logger.New

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, logFile, err := newLogger(os.Stdout, logger.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(log)

	issuer, verifier, err := newTokenPair(cfg)
	if err != nil {
		closeQuietly(logFile)
		return nil, fmt.Errorf("failed to load signing keys: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		closeQuietly(logFile)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DBAutoMigrate {
		if err := db.Migrate(context.Background()); err != nil {
			db.Close()
			closeQuietly(logFile)
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}
	}

	userRepo := repository.NewUserRepository(db.Pool)
	codec := password.NewCodec(password.Options{
		Iterations:    cfg.PasswordIterations,
		MaxConcurrent: cfg.KDFMaxConcurrent,
	})
	authService := service.NewAuthService(userRepo, codec, issuer, verifier, cfg.SignupIssueToken)

	appRouter := router.New(router.Options{
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}, router.Handlers{
		Auth:   handler.NewAuthHandler(authService),
		User:   handler.NewUserHandler(authService),
		Health: handler.NewHealthHandler(db),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		cleanupFuncs: []func(){
			db.Close,
			func() { closeQuietly(logFile) },
		},
	}, nil
}

func newTokenPair(cfg *config.Config) (*token.Issuer, *token.Verifier, error) {
	privateKey, err := token.LoadPrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		return nil, nil, err
	}

	publicKey := &privateKey.PublicKey
	if cfg.JWTPublicKey != "" {
		publicKey, err = token.LoadPublicKey(cfg.JWTPublicKey)
		if err != nil {
			return nil, nil, err
		}
		if !publicKey.Equal(&privateKey.PublicKey) {
			return nil, nil, errors.New("JWT_PUBLIC_KEY does not match JWT_PRIVATE_KEY")
		}
	}

	tokenCfg := token.Config{
		Namespace: cfg.JWTClaimsNamespace,
		TTL:       cfg.JWTTTL,
		KeyID:     cfg.JWTKeyID,
	}

	issuer, err := token.NewIssuer(tokenCfg, privateKey)
	if err != nil {
		return nil, nil, err
	}
	verifier, err := token.NewVerifier(tokenCfg, publicKey)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("signing keys loaded", "kid", verifier.KeySet().Keys[0].Kid, "namespace", cfg.JWTClaimsNamespace)
	return issuer, verifier, nil
}

func closeQuietly(c io.Closer) {
	if err := c.Close(); err != nil {
		slog.Warn("close failed", "error", err)
	}
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
