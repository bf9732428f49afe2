package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/knowledgebase/internal/apperror"
	"github.com/sakif/knowledgebase/internal/model"
)

const verificationIssuer = "knowledgebase-verify"

// VerificationService issues and validates the time-bound, single-purpose
// tokens embedded in email verification links.
//
// The outer token is urlsafe base64 of "email:innerToken". The inner token
// is an HS256 JWT, but signed with a key derived from the user's mutable
// state (id, password hash, join timestamp, email) rather than the raw
// server secret. That binding means an outstanding link dies automatically
// the moment the account's email or credential changes — without storing
// anything server-side.
type VerificationService struct {
	secret []byte
	ttl    time.Duration
}

// NewVerificationService creates a VerificationService. ttl is the expiry
// window for issued links.
func NewVerificationService(secret string, ttl time.Duration) (*VerificationService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: verification secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &VerificationService{secret: []byte(secret), ttl: ttl}, nil
}

// DecodedToken is the result of splitting an outer verification token.
type DecodedToken struct {
	Email string
	Token string // inner signed token, passed to Check
}

// stateKey derives the per-user signing key. The join timestamp is
// truncated to whole seconds so tokens stay valid across stores that drop
// sub-second precision.
func (v *VerificationService) stateKey(user *model.User) []byte {
	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d:%s:%d:%s",
		user.ID,
		user.PasswordHash,
		user.DateJoined.UTC().Truncate(time.Second).Unix(),
		user.Email,
	)
	return mac.Sum(nil)
}

// Issue creates a verification token for the user.
//
// The issued-at claim is truncated to the minute, so issuing twice for the
// same unchanged user within the same window yields tokens that both
// validate — the signature depends on a coarse timestamp bucket, not
// wall-clock nanoseconds.
func (v *VerificationService) Issue(user *model.User) (string, error) {
	bucket := time.Now().Truncate(time.Minute)

	c := jwt.RegisteredClaims{
		Subject:   user.Email,
		IssuedAt:  jwt.NewNumericDate(bucket),
		ExpiresAt: jwt.NewNumericDate(bucket.Add(v.ttl)),
		Issuer:    verificationIssuer,
	}

	inner, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.stateKey(user))
	if err != nil {
		return "", fmt.Errorf("auth: signing verification token: %w", err)
	}

	data := user.Email + ":" + inner
	return base64.RawURLEncoding.EncodeToString([]byte(data)), nil
}

// Decode splits an outer token into the embedded email and inner token.
//
// It fails closed: malformed base64, a missing delimiter, or an empty
// email all return apperror.ErrInvalidToken. The inner token is NOT
// verified here — the caller must look up the user by email and call
// Check, because the signing key depends on that user's state.
func (v *VerificationService) Decode(outer string) (DecodedToken, error) {
	raw, err := base64.RawURLEncoding.DecodeString(outer)
	if err != nil {
		// Tolerate padded tokens from older links.
		raw, err = base64.URLEncoding.DecodeString(outer)
		if err != nil {
			return DecodedToken{}, apperror.InvalidToken("the token could not be decoded properly or is in an invalid format")
		}
	}

	email, inner, found := strings.Cut(string(raw), ":")
	if !found || email == "" || inner == "" {
		return DecodedToken{}, apperror.InvalidToken("the token could not be decoded properly or is in an invalid format")
	}

	return DecodedToken{Email: email, Token: inner}, nil
}

// Check reports whether the inner token is valid for the given user: the
// signature matches the user's current state, the expiry window has not
// passed, and the embedded subject is the user's email.
func (v *VerificationService) Check(user *model.User, inner string) bool {
	token, err := jwt.ParseWithClaims(
		inner,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return v.stateKey(user), nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(verificationIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return false
	}

	c, ok := token.Claims.(*jwt.RegisteredClaims)
	return ok && c.Subject == user.Email
}
