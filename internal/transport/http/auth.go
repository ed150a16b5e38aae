package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"live-quiz-service/internal/domain"
)

// InstructorHeader carries a trusted instructor id when no JWT secret is configured.
const InstructorHeader = "X-Instructor-Id"

// Claims is the token body: sub identifies the user, role grants instructor operations.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator turns a request into a domain.Actor.
type Authenticator struct {
	secret []byte
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret)}
}

// Actor resolves the caller. Missing or invalid credentials yield an anonymous participant.
func (a *Authenticator) Actor(r *http.Request) domain.Actor {
	if len(a.secret) == 0 {
		if id := strings.TrimSpace(r.Header.Get(InstructorHeader)); id != "" {
			return domain.Actor{ID: id, Instructor: true}
		}
		return domain.Actor{}
	}
	raw := bearerToken(r)
	if raw == "" {
		return domain.Actor{}
	}
	claims, err := a.parse(raw)
	if err != nil {
		return domain.Actor{}
	}
	return domain.Actor{ID: claims.Subject, Instructor: isInstructorRole(claims.Role)}
}

func (a *Authenticator) parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// IssueToken signs an HS256 token for subject with role, valid for ttl.
func IssueToken(secret, subject, role string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt secret not configured")
	}
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	// Browsers cannot set headers on websocket upgrades.
	return r.URL.Query().Get("token")
}

func isInstructorRole(role string) bool {
	switch strings.ToLower(role) {
	case string(domain.RoleInstructor), "admin":
		return true
	}
	return false
}
