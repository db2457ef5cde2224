package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"

	"github.com/reelgen/reelgen/src/internal/config"
	"github.com/reelgen/reelgen/src/internal/domain"
	"github.com/reelgen/reelgen/src/internal/ports"
)

type contextKey string

const userIDKey contextKey = "userID"

// AuthMiddleware optionally verifies OIDC bearer tokens and provisions
// users from token claims on first sight. When no provider is configured
// the platform falls back to its open email-signup flow and requests pass
// through untouched.
type AuthMiddleware struct {
	Verifier *oidc.IDTokenVerifier
	UserRepo ports.UserRepository
}

func NewAuthMiddleware(userRepo ports.UserRepository, oidcCfg config.OIDCConfig) *AuthMiddleware {
	if oidcCfg.ProviderURL == "" {
		return &AuthMiddleware{UserRepo: userRepo}
	}

	ctx := context.Background()
	provider, err := oidc.NewProvider(ctx, oidcCfg.ProviderURL)
	if err != nil {
		// Don't crash, just log error and fail later if auth is used
		log.Printf("Failed to query OIDC provider: %v", err)
		return &AuthMiddleware{UserRepo: userRepo}
	}

	// For Access Tokens, we often need to skip ClientID check as 'aud' might not match client_id
	oidcConfig := &oidc.Config{
		ClientID:          oidcCfg.ClientID,
		SkipClientIDCheck: true,
	}

	return &AuthMiddleware{
		Verifier: provider.Verifier(oidcConfig),
		UserRepo: userRepo,
	}
}

// Middleware verifies a bearer token when one is presented, rejecting
// invalid tokens and attaching the verified user to the request context.
// Requests without a token pass through.
func (m *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if m.Verifier == nil || authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid Authorization header format", http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		idToken, err := m.Verifier.Verify(ctx, parts[1])
		if err != nil {
			log.Printf("Token verification failed: %v", err)
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		var claims struct {
			Sub   string `json:"sub"`
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			http.Error(w, "Invalid token claims", http.StatusUnauthorized)
			return
		}

		user, err := m.provision(ctx, claims.Sub, claims.Email)
		if err != nil {
			log.Printf("Failed to provision user %s: %v", claims.Sub, err)
			http.Error(w, "User provisioning failed", http.StatusInternalServerError)
			return
		}

		ctx = context.WithValue(ctx, userIDKey, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// provision upserts the token's user, keyed by email so OIDC logins and
// the open signup flow converge on the same row.
func (m *AuthMiddleware) provision(ctx context.Context, sub, email string) (*domain.User, error) {
	if email == "" {
		email = sub
	}

	user, err := m.UserRepo.GetByEmail(ctx, email)
	if err != nil {
		user = &domain.User{
			ID:        uuid.NewString(),
			Email:     email,
			CreatedAt: time.Now(),
			LastLogin: time.Now(),
		}
		if err := m.UserRepo.Save(ctx, user); err != nil {
			return nil, err
		}
		log.Printf("Provisioned new user: %s (%s)", user.ID, user.Email)
		return user, nil
	}

	user.LastLogin = time.Now()
	if err := m.UserRepo.Save(ctx, user); err != nil {
		log.Printf("Failed to update last login for %s: %v", user.ID, err)
	}
	return user, nil
}

// GetUserID returns the authenticated user's ID, if any.
func GetUserID(ctx context.Context) string {
	id, ok := ctx.Value(userIDKey).(string)
	if !ok {
		return ""
	}
	return id
}
