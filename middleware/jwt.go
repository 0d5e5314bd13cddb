package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"p9e.in/fixport/models"
)

// SessionCookie is the fallback token carrier for the magic-link
// callback flow, where the browser lands without an Authorization
// header.
const SessionCookie = "fixport_session"

// Claims are the custom payload in the JWT. SessionID ties the token
// to a revocable row, so sign-out works even on copies of the token.
type Claims struct {
	UserID      string `json:"userId"`
	SessionID   string `json:"sessionId"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	CompanySlug string `json:"companySlug"`
	jwt.RegisteredClaims
}

// unexported type prevents collisions in context
type ctxKey int

const (
	userClaimsKey ctxKey = iota
	companyKey
)

// SessionChecker is the slice of the store the gate needs to verify a
// token's backing session is still alive.
type SessionChecker interface {
	SessionByID(ctx context.Context, id uuid.UUID) (*models.Session, error)
}

// Auth validates bearer tokens and guards protected routes.
type Auth struct {
	secret   []byte
	sessions SessionChecker
}

func NewAuth(secret string, sessions SessionChecker) *Auth {
	return &Auth{secret: []byte(secret), sessions: sessions}
}

// GenerateToken creates a signed JWT valid for 24 h, bound to sessionID.
func (a *Auth) GenerateToken(user *models.User, companySlug string, sessionID uuid.UUID) (string, error) {
	claims := Claims{
		UserID:      user.ID.String(),
		SessionID:   sessionID.String(),
		Name:        user.Name,
		Email:       user.Email,
		CompanySlug: companySlug,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ParseToken validates a raw token string and its backing session.
func (a *Auth) ParseToken(ctx context.Context, tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, errors.New("invalid session id")
	}
	sess, err := a.sessions.SessionByID(ctx, sessionID)
	if err != nil {
		return nil, errors.New("session not found")
	}
	if !sess.Active(time.Now()) {
		return nil, errors.New("session revoked")
	}
	return claims, nil
}

// Middleware rejects requests without a live session. Absence of a
// principal is a redirect condition for the browser, so the 401 body
// carries the sign-in location.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			if c, err := r.Cookie(SessionCookie); err == nil {
				tokenStr = c.Value
			}
		}
		if tokenStr == "" {
			w.Header().Set("Location", "/login")
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		claims, err := a.ParseToken(r.Context(), tokenStr)
		if err != nil {
			w.Header().Set("Location", "/login")
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// WithClaims returns a context carrying the principal. The middleware
// uses it; tests use it to stand in for the middleware.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, userClaimsKey, c)
}

// GetClaims pulls the *Claims out of the request context (or nil).
func GetClaims(r *http.Request) *Claims {
	if c, ok := r.Context().Value(userClaimsKey).(*Claims); ok {
		return c
	}
	return nil
}

// GetUserID returns the authenticated user's ID, or uuid.Nil.
func GetUserID(r *http.Request) uuid.UUID {
	if c := GetClaims(r); c != nil {
		if id, err := uuid.Parse(c.UserID); err == nil {
			return id
		}
	}
	return uuid.Nil
}
