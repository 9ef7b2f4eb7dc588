package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultSessionTTL is used by IssueSessionToken when ttl is not positive.
const DefaultSessionTTL = 24 * time.Hour

// SessionResolver yields the authenticated user behind a request.
type SessionResolver interface {
	Resolve(r *http.Request) (*User, error)
}

// SessionClaims are the JWT claims of a session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// JWTSessionResolver accepts HS256 bearer tokens signed with Secret.
type JWTSessionResolver struct {
	Secret string
}

// IssueSessionToken signs a session token for user.
func IssueSessionToken(user User, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("%w: session secret is not set", ErrServerMisconfigured)
	}
	if user.ID == "" {
		return "", fmt.Errorf("issue session token: empty user id")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Name: user.Name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}
	return signed, nil
}

// ParseSessionToken validates a session token and returns its user.
func ParseSessionToken(tokenString, secret string) (*User, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: session secret is not set", ErrServerMisconfigured)
	}
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid session token", ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrUnauthorized)
	}
	return &User{ID: claims.Subject, Name: claims.Name}, nil
}

func (j JWTSessionResolver) Resolve(r *http.Request) (*User, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: missing bearer token", ErrUnauthorized)
	}
	return ParseSessionToken(strings.TrimSpace(token), j.Secret)
}
