package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// Claims is the bearer token payload.
type Claims struct {
	UserID   string `json:"uid"`
	TenantID string `json:"tid"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken signs an HS256 token. Used by tests and the demo loader.
func GenerateToken(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken verifies an HS256 token.
func ParseToken(secret, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == "" || claims.TenantID == "" {
		return nil, errors.New("token without user or tenant")
	}
	return claims, nil
}

type ctxKey int

const ctxKeyActor ctxKey = iota

// ActorFrom returns the actor resolved by the Actor middleware.
func ActorFrom(ctx context.Context) (leave.Actor, bool) {
	a, ok := ctx.Value(ctxKeyActor).(leave.Actor)
	return a, ok
}

// WithActor stores an actor in ctx.
func WithActor(ctx context.Context, a leave.Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, a)
}

// ActorMiddleware resolves the calling identity. A bearer token is verified
// when secret is set; otherwise, and only when allowHeaders is true, the
// X-User-ID, X-Tenant-ID and X-Role headers are trusted. Requests without
// an identity pass through and are refused by the handlers that need one.
func ActorMiddleware(secret string, allowHeaders bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if authHeader := r.Header.Get("Authorization"); authHeader != "" && secret != "" {
				parts := strings.Split(authHeader, " ")
				if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
					writeError(w, http.StatusUnauthorized, "Malformed authorization header", nil)
					return
				}
				claims, err := ParseToken(secret, parts[1])
				if err != nil {
					writeError(w, http.StatusUnauthorized, "Invalid token", err)
					return
				}
				actor := leave.Actor{
					UserID:   generic.UserID(claims.UserID),
					TenantID: generic.TenantID(claims.TenantID),
					Role:     parseRole(claims.Role),
				}
				next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
				return
			}
			if allowHeaders {
				if uid := r.Header.Get("X-User-ID"); uid != "" {
					actor := leave.Actor{
						UserID:   generic.UserID(uid),
						TenantID: generic.TenantID(r.Header.Get("X-Tenant-ID")),
						Role:     parseRole(r.Header.Get("X-Role")),
					}
					next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseRole(s string) leave.Role {
	if strings.EqualFold(s, string(leave.RoleAdmin)) {
		return leave.RoleAdmin
	}
	return leave.RoleMember
}
