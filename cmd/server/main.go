package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc/health"

	grpcapi "municipal-library-backend/internal/api/grpc"
	httpapi "municipal-library-backend/internal/api/http"
	"municipal-library-backend/internal/config"
	"municipal-library-backend/internal/logger"
	"municipal-library-backend/internal/repository/postgres"
	"municipal-library-backend/internal/security"
	"municipal-library-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Municipal Library Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress(), "grpc_port", cfg.Server.GRPCPort)
	logger.Info("Database configuration", "driver", cfg.Database.Driver, "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	logger.Info("Audit configuration", "mode", cfg.Audit.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	db, err := postgres.Open(ctx, cfg.Database.Driver, cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}
	}

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Security
	tokenManager := security.NewTokenManager(
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.AccessTokenExpiry)*time.Minute,
		time.Duration(cfg.JWT.RefreshTokenExpiry)*time.Minute,
	)

	// Initialize Email Service
	emailSvc, err := service.NewEmailServiceFromConfig(cfg.Email)
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}
	logger.Info("Email configuration", "provider", cfg.Email.Provider)

	// Initialize Services
	recorder := service.NewAuditRecorder(cfg.AuditMode(), nil)
	svcs := httpapi.Services{
		Loans:     service.NewLoanService(store, store.LoanRepository, recorder, cfg.LoanPolicy(), service.WithEmailService(emailSvc)),
		Items:     service.NewItemService(store, store.ItemRepository, recorder),
		Sanctions: service.NewSanctionService(store, store.SanctionRepository, recorder),
		Audit:     service.NewAuditService(store.AuditQueryRepository),
		Auth:      service.NewAuthService(store.UserRepository, tokenManager),
	}

	// Set up gRPC health server
	if cfg.Server.GRPCPort > 0 {
		lis, err := net.Listen("tcp", cfg.GetGRPCAddress())
		if err != nil {
			logger.Error("Failed to listen", "error", err, "address", cfg.GetGRPCAddress())
			log.Fatalf("Failed to listen: %v", err)
		}
		hs := health.NewServer()
		grpcServer := grpcapi.NewServer(tokenManager, hs)
		go grpcapi.WatchDatabase(ctx, hs, store, 10*time.Second)
		go func() {
			logger.Info("gRPC health server listening", "address", cfg.GetGRPCAddress())
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("Failed to serve gRPC", "error", err)
			}
		}()
		defer grpcServer.GracefulStop()
	}

	// Set up HTTP server
	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           httpapi.NewRouter(svcs, tokenManager, store),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}
	logger.Info("Server stopped. Goodbye!")
}
