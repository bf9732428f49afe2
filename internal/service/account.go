// Package service contains the business logic layer: it validates,
// enforces the access rules, and orchestrates repositories and
// collaborators. It knows nothing about HTTP.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sakif/knowledgebase/internal/apperror"
	"github.com/sakif/knowledgebase/internal/auth"
	"github.com/sakif/knowledgebase/internal/mail"
	"github.com/sakif/knowledgebase/internal/model"
	"github.com/sakif/knowledgebase/internal/repository"
)

const MinPasswordLength = 8

var (
	nameRx  = regexp.MustCompile(`^[A-Za-z]+$`)
	emailRx = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// AccountService handles sign-up, credential checks, the email
// verification flow, and self-service account edits.
type AccountService struct {
	users          repository.UserRepository
	passwords      *auth.PasswordService
	verification   *auth.VerificationService
	mailer         mail.Sender
	siteURL        string
	resendCooldown time.Duration
	logger         *slog.Logger
}

// NewAccountService wires the account workflows. siteURL is the external
// base URL used to compose verification links; resendCooldown is the
// minimum gap between verification emails for one account.
func NewAccountService(
	users repository.UserRepository,
	passwords *auth.PasswordService,
	verification *auth.VerificationService,
	mailer mail.Sender,
	siteURL string,
	resendCooldown time.Duration,
	logger *slog.Logger,
) *AccountService {
	if resendCooldown <= 0 {
		resendCooldown = 15 * time.Minute
	}
	return &AccountService{
		users:          users,
		passwords:      passwords,
		verification:   verification,
		mailer:         mailer,
		siteURL:        strings.TrimRight(siteURL, "/"),
		resendCooldown: resendCooldown,
		logger:         logger,
	}
}

func validateName(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperror.ValidationFailed(field, fmt.Sprintf("please enter your %s", strings.ReplaceAll(field, "_", " ")))
	}
	if !nameRx.MatchString(value) {
		return "", apperror.ValidationFailed(field, "name can only contain letters")
	}
	return value, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperror.ValidationFailed("email", "please enter your email address")
	}
	if !emailRx.MatchString(email) {
		return "", apperror.ValidationFailed("email", "enter a valid email address")
	}
	return email, nil
}

// SignUp registers a new, unverified account and dispatches the first
// verification email.
//
// The very first account ever created is promoted to admin — the one-time
// bootstrap rule, applied here and nowhere else. It does NOT imply
// verification; the two flags are independent.
func (s *AccountService) SignUp(ctx context.Context, email, firstName, lastName, password string) (*model.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	firstName, err = validateName("first_name", firstName)
	if err != nil {
		return nil, err
	}
	lastName, err = validateName("last_name", lastName)
	if err != nil {
		return nil, err
	}
	if len(password) < MinPasswordLength {
		return nil, apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
	}

	// Every user joins the "all users" group in the same transaction as
	// the insert — an explicit registration step, not a hidden save hook.
	if err := s.users.CreateUser(ctx, user, model.AllUsersGroupID); err != nil {
		return nil, err
	}

	if user.ID == 1 {
		user.IsAdmin = true
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("promoting first user: %w", err)
		}
		s.logger.Info("first registered user promoted to admin", slog.Int64("id", user.ID))
	}

	// A failed send must not lose the freshly created account — the user
	// can always request a new link from the re-verify page.
	if err := s.sendVerificationEmail(ctx, user); err != nil {
		s.logger.Warn("sign-up verification email failed",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("user signed up", slog.Int64("id", user.ID), slog.String("email", user.Email))
	return user, nil
}

// Authenticate checks an email/password pair and returns the matching
// user. Failures are indistinguishable between "no such account" and
// "wrong password" so the endpoint cannot be used to enumerate emails.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}
	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}
	return user, nil
}

// RequestVerificationEmail re-sends the verification link, refusing with
// ErrTooSoon inside the resend cooldown window. On success the
// last-sent timestamp is stamped, which is what arms the cooldown.
func (s *AccountService) RequestVerificationEmail(ctx context.Context, user *model.User) error {
	if user.IsVerified {
		return apperror.Conflict("account", user.Email)
	}
	if user.LastVerificationEmailSent != nil {
		elapsed := time.Since(*user.LastVerificationEmailSent)
		if elapsed < s.resendCooldown {
			return apperror.TooSoon(fmt.Sprintf(
				"a verification email was sent recently; try again in %s",
				(s.resendCooldown - elapsed).Round(time.Minute)))
		}
	}
	return s.sendVerificationEmail(ctx, user)
}

func (s *AccountService) sendVerificationEmail(ctx context.Context, user *model.User) error {
	token, err := s.verification.Issue(user)
	if err != nil {
		return fmt.Errorf("issuing verification token: %w", err)
	}

	link := fmt.Sprintf("%s/verify/%s", s.siteURL, token)
	body := fmt.Sprintf(
		"Hi %s,\n\nPlease verify your email by clicking the link below:\n%s\n\nThank you!",
		user.FirstName, link)

	if err := s.mailer.Send(user.Email, "Verify Your Email", body); err != nil {
		return err
	}

	now := time.Now().UTC()
	user.LastVerificationEmailSent = &now
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("stamping verification email time: %w", err)
	}

	s.logger.Info("verification email sent", slog.String("email", user.Email))
	return nil
}

// Verify consumes a verification link token. It resolves the user from
// the email embedded in the token, so it works before sign-in.
//
// Returns ErrInvalidToken for anything that doesn't check out — including
// an unknown email, so the endpoint doesn't reveal which addresses have
// accounts. An already-verified account returns ErrConflict so the
// boundary can say so instead of reporting failure.
func (s *AccountService) Verify(ctx context.Context, outerToken string) (*model.User, error) {
	decoded, err := s.verification.Decode(outerToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, decoded.Email)
	if err != nil {
		return nil, apperror.InvalidToken("verification link is invalid or expired")
	}

	if user.IsVerified {
		return user, apperror.Conflict("account", user.Email)
	}

	if !s.verification.Check(user, decoded.Token) {
		return nil, apperror.InvalidToken("verification link is invalid or expired")
	}

	user.IsVerified = true
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("marking user verified: %w", err)
	}

	s.logger.Info("email verified", slog.Int64("id", user.ID), slog.String("email", user.Email))
	return user, nil
}

// UpdateAccount edits the caller's own profile fields.
func (s *AccountService) UpdateAccount(ctx context.Context, user *model.User, firstName, lastName, email string) (*model.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	firstName, err = validateName("first_name", firstName)
	if err != nil {
		return nil, err
	}
	lastName, err = validateName("last_name", lastName)
	if err != nil {
		return nil, err
	}

	user.Email = email
	user.FirstName = firstName
	user.LastName = lastName

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword sets a new password after checking the current one.
// Outstanding verification links die as a side effect, because the
// verification token's signing key covers the password hash.
func (s *AccountService) ChangePassword(ctx context.Context, user *model.User, current, newPassword string) error {
	if err := s.passwords.Verify(user.PasswordHash, current); err != nil {
		return apperror.ValidationFailed("current_password", "current password is incorrect")
	}
	if len(newPassword) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user.PasswordHash = hash
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return err
	}

	s.logger.Info("password changed", slog.Int64("id", user.ID))
	return nil
}
