package interceptor

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"municipal-library-backend/internal/logger"
)

// UnaryLogging logs one line per unary RPC. It runs after auth so the
// injected user id is available.
func UnaryLogging() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		var userID *int32
		if id, ok := UserIDFromContext(ctx); ok {
			userID = &id
		}
		log := logger.WithActor(userID, "", "")
		code := status.Code(err)
		if err != nil {
			log.Warn("gRPC request failed", "method", info.FullMethod, "code", code.String(), "duration_ms", time.Since(start).Milliseconds(), "error", err)
		} else {
			log.Debug("gRPC request", "method", info.FullMethod, "code", code.String(), "duration_ms", time.Since(start).Milliseconds())
		}
		return resp, err
	}
}
