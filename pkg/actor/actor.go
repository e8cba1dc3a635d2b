// Package actor is the boundary to the external credential/role store.
// The core never owns identity: the auth system issues signed tokens
// carrying the actor's ID, role, and entity scope, and this package
// verifies them and puts the resolved Actor on the request context.
package actor

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/djiba142/Pharmacie-sub000/pkg/config"
	"github.com/djiba142/Pharmacie-sub000/pkg/errors"
	"github.com/djiba142/Pharmacie-sub000/pkg/httputil"
	"github.com/djiba142/Pharmacie-sub000/pkg/roles"
)

// Actor represents the staff member performing an action.
type Actor struct {
	// ID is the unique identifier of the actor (staff ID in the auth system)
	ID string `json:"id"`

	// Role is the actor's role from the closed role set
	Role roles.Role `json:"role"`

	// EntityID is the organizational entity the actor belongs to
	EntityID string `json:"entity_id"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	return fmt.Sprintf("%s (%s)", a.ID, a.Role)
}

// contextKey is the type for context keys to avoid collisions
type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns nil if no actor is present (e.g., system operations).
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return nil
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok {
		return nil
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// Claims are the token claims issued by the external auth system.
type Claims struct {
	Role     string `json:"role"`
	EntityID string `json:"entity_id"`
	jwt.RegisteredClaims
}

// Resolver verifies bearer tokens and resolves the acting staff member.
type Resolver struct {
	secret []byte
	issuer string
}

// NewResolver creates a resolver for tokens signed by the external auth system.
func NewResolver(cfg *config.AuthConfig) *Resolver {
	return &Resolver{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
	}
}

// Resolve verifies the token string and returns the Actor it describes.
func (r *Resolver) Resolve(tokenString string) (*Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	}, jwt.WithIssuer(r.issuer))
	if err != nil || !token.Valid {
		return nil, errors.Unauthorized("invalid or expired token")
	}

	role := roles.Role(claims.Role)
	if !roles.Valid(role) {
		return nil, errors.Forbidden("unknown role: " + claims.Role)
	}
	if claims.Subject == "" || claims.EntityID == "" {
		return nil, errors.Unauthorized("token is missing actor identity")
	}

	return &Actor{
		ID:       claims.Subject,
		Role:     role,
		EntityID: claims.EntityID,
	}, nil
}

// Middleware extracts the bearer token, resolves the Actor and attaches it
// to the request context. Requests without a valid actor are rejected.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		header := req.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			httputil.Error(w, errors.Unauthorized("missing bearer token"))
			return
		}

		a, err := r.Resolve(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			httputil.Error(w, err)
			return
		}

		next.ServeHTTP(w, req.WithContext(WithActor(req.Context(), a)))
	})
}
