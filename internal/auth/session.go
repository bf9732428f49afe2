// Package auth provides credential hashing, session tokens, the email
// verification token generator, and the request middleware that enforces
// authentication and the verification state machine.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const sessionIssuer = "knowledgebase"

// SessionService issues and validates the signed session tokens stored in
// the browser's HttpOnly cookie.
//
// The token is a stateless HS256 JWT whose subject is the internal user
// ID. The server re-reads the user row on every request, so revoking
// admin rights or deleting the account takes effect immediately even
// though the token itself stays valid until expiry.
type SessionService struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionService creates a SessionService with the given HMAC secret.
// The secret should be at least 32 bytes of random data in production.
func NewSessionService(secret string, ttl time.Duration) (*SessionService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SessionService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL returns the configured session lifetime, used to set cookie expiry.
func (s *SessionService) TTL() time.Duration {
	return s.ttl
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// Issue creates and signs a session token for the given user ID.
func (s *SessionService) Issue(userID int64) (string, error) {
	now := time.Now()

	c := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			Issuer:    sessionIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing session token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a session token and returns the user ID
// from the subject claim.
//
// Restricting the accepted algorithms to HS256 prevents algorithm
// confusion attacks; expiry and issuer are checked by the jwt library.
func (s *SessionService) Validate(tokenStr string) (int64, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&sessionClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, fmt.Errorf("auth: session expired")
		}
		return 0, fmt.Errorf("auth: invalid session token: %w", err)
	}

	c, ok := token.Claims.(*sessionClaims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("auth: invalid session claims")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return 0, fmt.Errorf("auth: session token has no valid subject")
	}

	return userID, nil
}
