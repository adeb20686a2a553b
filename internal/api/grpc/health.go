package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"municipal-library-backend/internal/api/grpc/interceptor"
	"municipal-library-backend/internal/logger"
	"municipal-library-backend/internal/security"
)

// LedgerServiceName is the health service name clients probe for readiness.
const LedgerServiceName = "library.ledger"

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewServer builds the gRPC server exposing health checks and reflection.
func NewServer(tokenManager security.TokenManager, hs *health.Server) *grpc.Server {
	authInterceptor := interceptor.NewAuthInterceptor(tokenManager)
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(authInterceptor.Unary(), interceptor.UnaryLogging()),
		grpc.ChainStreamInterceptor(authInterceptor.Stream()),
	)
	healthpb.RegisterHealthServer(s, hs)

	// Register reflection service for grpcurl
	reflection.Register(s)
	return s
}

// WatchDatabase flips the ledger health status with database reachability
// until ctx is cancelled.
func WatchDatabase(ctx context.Context, hs *health.Server, db Pinger, interval time.Duration) {
	check := func() {
		pingCtx, cancel := context.WithTimeout(ctx, interval/2)
		defer cancel()
		st := healthpb.HealthCheckResponse_SERVING
		if err := db.Ping(pingCtx); err != nil {
			logger.Warn("Database ping failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus(LedgerServiceName, st)
		hs.SetServingStatus("", st)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-ticker.C:
			check()
		}
	}
}
