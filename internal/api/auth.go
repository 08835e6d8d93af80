package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/apperr"
)

// Claims carry the learner identity. Subject is the user id.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 learner tokens.
type Tokens struct {
	secret []byte
	issuer string
}

func NewTokens(secret, issuer string) (*Tokens, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &Tokens{secret: []byte(secret), issuer: issuer}, nil
}

// Issue mints a token for userID valid for ttl.
func (t *Tokens) Issue(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies raw and returns its claims.
func (t *Tokens) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return nil, apperr.Unauthorized("invalid token")
	}
	if !token.Valid || claims.Subject == "" {
		return nil, apperr.Unauthorized("invalid token")
	}
	if t.issuer != "" && !claims.VerifyIssuer(t.issuer, true) {
		return nil, apperr.Unauthorized("unexpected token issuer")
	}
	return claims, nil
}

// User is the authenticated learner of a request.
type User struct {
	ID    string
	Email string
}

type userKey struct{}

func withUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFrom returns the learner set by the auth middleware.
func UserFrom(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userKey{}).(User)
	return u, ok
}

// bearer reads the token from the Authorization header, or from the token
// query parameter for WebSocket upgrades where browsers cannot set headers.
func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}

// authenticate rejects requests without a valid token before any handler
// runs.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearer(r)
		if raw == "" {
			s.writeError(w, r, apperr.Unauthorized("missing token"))
			return
		}
		claims, err := s.tokens.Parse(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := withUser(r.Context(), User{ID: claims.Subject, Email: claims.Email})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
