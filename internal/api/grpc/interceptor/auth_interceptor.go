package interceptor

import (
	"context"
	"strconv"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"municipal-library-backend/internal/config"
	"municipal-library-backend/internal/domain"
	"municipal-library-backend/internal/security"
)

const (
	userIDKey = "user-id"
	roleKey   = "user-role"
)

type AuthInterceptor struct {
	tokenManager security.TokenManager
}

func NewAuthInterceptor(tm security.TokenManager) *AuthInterceptor {
	return &AuthInterceptor{tokenManager: tm}
}

// Unary returns a server interceptor function to authenticate and authorize unary RPCs
func (i *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		newCtx, err := i.authorize(ctx, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(newCtx, req)
	}
}

// Stream applies the same checks to streaming RPCs such as Health/Watch and reflection.
func (i *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if _, err := i.authorize(ss.Context(), info.FullMethod); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func (i *AuthInterceptor) authorize(ctx context.Context, method string) (context.Context, error) {
	level := config.GetSecurityLevel(method)

	// Public endpoint - skip auth
	if level == config.SecurityPublic {
		return ctx, nil
	}

	token, err := i.extractToken(ctx)
	if err != nil {
		return nil, err
	}

	claims, err := i.tokenManager.ValidateToken(token)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
	}

	if err := i.checkSecurityLevel(level, claims); err != nil {
		return nil, err
	}

	// Copy and Set so a client-supplied "user-id" header is never trusted.
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		md = metadata.New(nil)
	} else {
		md = md.Copy()
	}
	md.Set(userIDKey, strconv.Itoa(int(claims.UserID)))
	md.Set(roleKey, string(claims.Role))
	return metadata.NewIncomingContext(ctx, md), nil
}

func (i *AuthInterceptor) extractToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "metadata is not provided")
	}

	authHeader := md["authorization"]
	if len(authHeader) == 0 {
		return "", status.Error(codes.Unauthenticated, "authorization token is not provided")
	}

	token := authHeader[0]
	// Remove Bearer prefix if present
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		token = token[7:]
	}

	return token, nil
}

func (i *AuthInterceptor) checkSecurityLevel(level config.SecurityLevel, claims *security.UserClaims) error {
	if level == config.SecurityRefresh {
		if claims.Type != security.TokenTypeRefresh {
			return status.Error(codes.PermissionDenied, "refresh token required")
		}
		return nil
	}
	if claims.Type != security.TokenTypeAccess {
		return status.Error(codes.PermissionDenied, "access token required")
	}
	switch level {
	case config.SecurityStaff:
		if !claims.Role.IsStaff() {
			return status.Error(codes.PermissionDenied, "staff role required")
		}
	case config.SecurityAdmin:
		if claims.Role != domain.UserRoleAdmin {
			return status.Error(codes.PermissionDenied, "admin role required")
		}
	}
	return nil
}

// UserIDFromContext returns the user id injected by the auth interceptor.
func UserIDFromContext(ctx context.Context) (int32, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return 0, false
	}
	ids := md.Get(userIDKey)
	if len(ids) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(ids[0], 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(id), true
}
