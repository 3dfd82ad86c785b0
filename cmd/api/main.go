package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-api-authcore/internal/application/auth"
	"github.com/go-api-authcore/internal/application/otp"
	"github.com/go-api-authcore/internal/application/provisioning"
	"github.com/go-api-authcore/internal/application/recovery"
	"github.com/go-api-authcore/internal/application/role"
	"github.com/go-api-authcore/internal/application/token"
	"github.com/go-api-authcore/internal/config"
	"github.com/go-api-authcore/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-api-authcore/internal/infrastructure/jwt"
	"github.com/go-api-authcore/internal/infrastructure/smtp"
	"github.com/go-api-authcore/internal/infrastructure/sns"
	"github.com/go-api-authcore/internal/pkg/logging"
	"github.com/go-api-authcore/internal/pkg/secret"
	transporthttp "github.com/go-api-authcore/internal/transport/http"
	appmiddleware "github.com/go-api-authcore/internal/transport/http/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"
)

var version = "dev"

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	logger := logging.New(logging.Config{
		Service: "authcore",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	if err := run(cfg, logger); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Bootstrap DynamoDB tables (creates them if they don't exist) and seed catalogs.
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	principals := dynamo.NewPrincipalRepo(dynamoClient, cfg.DynamoTables.Principals, cfg.DynamoTables.Uniques)
	otpCodes := dynamo.NewOTPRepo(dynamoClient, cfg.DynamoTables.OTPCodes)
	roles := dynamo.NewRoleRepo(dynamoClient, cfg.DynamoTables.Roles)
	assignments := dynamo.NewRoleAssignmentRepo(dynamoClient, cfg.DynamoTables.RoleAssignments)
	identifiers := dynamo.NewIdentifierRepo(dynamoClient, cfg.DynamoTables.ExternalIdentifiers)
	accountTypes := dynamo.NewAccountTypeRepo(dynamoClient, cfg.DynamoTables.AccountTypes)
	counters := dynamo.NewCounterRepo(dynamoClient, cfg.DynamoTables.Counters)

	if err := dynamo.Seed(ctx, accountTypes, roles); err != nil {
		return fmt.Errorf("seed catalogs: %w", err)
	}

	key, err := cfg.SigningKey()
	if err != nil {
		return err
	}
	jwtProvider, err := jwtinfra.NewProvider(key, cfg.JWTExpiry, jwtinfra.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	otpDeps := otp.ServiceDeps{
		Store:           otpCodes,
		Mailer:          smtp.NewMailer(cfg),
		DeliveryTimeout: cfg.DeliveryTimeout,
	}
	// SMS is optional; phone contacts fail delivery without it.
	if sender, err := sns.NewSender(cfg); err == nil {
		otpDeps.SMS = sender
	} else {
		slog.Warn("SNS sender not available", "err", err)
	}
	otpSvc := otp.NewService(otpDeps)

	tokenSvc := token.NewService(token.ServiceDeps{Roles: assignments, Provider: jwtProvider})
	authSvc := auth.NewService(auth.ServiceDeps{
		Principals:   principals,
		AccountTypes: accountTypes,
		Secrets:      secret.Bcrypt{},
		OTP:          otpSvc,
		Tokens:       tokenSvc,
	})
	provisioningSvc := provisioning.NewService(provisioning.ServiceDeps{
		Principals:  principals,
		IDs:         counters,
		Hasher:      secret.Bcrypt{},
		Roles:       roles,
		Assignments: assignments,
		Identifiers: identifiers,
	})
	roleSvc := role.NewService(role.ServiceDeps{
		Catalog:     roles,
		Assignments: assignments,
		Principals:  principals,
	})

	recoverySvc := recovery.NewService(recovery.ServiceDeps{
		Principals: principals,
		Secrets:    secret.Bcrypt{},
		OTP:        otpSvc,
	})

	sweeper := otp.NewSweeper(otpSvc, logger, otp.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	// 5 requests/second, burst of 10 per client IP on the login and OTP endpoints.
	limiter := appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	defer limiter.Stop()

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Auth:         authSvc,
		Provisioning: provisioningSvc,
		Roles:        roleSvc,
		Recovery:     recoverySvc,
		Verifier:     jwtProvider,
		Limiter:      limiter,
		Version:      version,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
