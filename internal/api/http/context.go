package http

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"municipal-library-backend/internal/domain"
)

type ctxKey string

const actorCtxKey ctxKey = "actor"

// WithActor stores the acting user for handlers downstream.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorCtxKey, actor)
}

// ActorFromContext returns the actor set by the auth middleware, or an
// anonymous actor when none was set.
func ActorFromContext(ctx context.Context) domain.Actor {
	if actor, ok := ctx.Value(actorCtxKey).(domain.Actor); ok {
		return actor
	}
	return domain.Actor{}
}

// clientIP prefers the first X-Forwarded-For hop set by the reverse proxy.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}
