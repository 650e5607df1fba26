package middleware

import (
	"context"
	"net/http"
	"strings"

	"payrolld/internal/auth"
	"payrolld/internal/transport/http/api"
)

type ctxKey string

const ctxKeyActor ctxKey = "actor"

// Identity resolves bearer claims into the request context. Requests
// without a usable token pass through anonymous; RequireActor gates the
// routes that need one.
func Identity(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, parts[1])
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyActor, auth.ActorContext{
				AccountID: claims.AccountID,
				TenantID:  claims.TenantID,
				Role:      claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetActor(ctx context.Context) (auth.ActorContext, bool) {
	actor, ok := ctx.Value(ctxKeyActor).(auth.ActorContext)
	return actor, ok
}

func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		if !ok || actor.TenantID == "" {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}
