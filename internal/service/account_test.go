package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/knowledgebase/internal/apperror"
	"github.com/sakif/knowledgebase/internal/auth"
	"github.com/sakif/knowledgebase/internal/model"
	"github.com/sakif/knowledgebase/internal/repository/sqlite"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// captureSender records outgoing mail instead of delivering it.
type captureSender struct {
	to      []string
	bodies  []string
	failAll bool
}

func (c *captureSender) Send(to, subject, body string) error {
	if c.failAll {
		return errors.New("smtp down")
	}
	c.to = append(c.to, to)
	c.bodies = append(c.bodies, body)
	return nil
}

// lastToken pulls the verification token out of the most recent email:
// the link line is "<siteURL>/verify/<token>".
func (c *captureSender) lastToken(t *testing.T) string {
	t.Helper()
	if len(c.bodies) == 0 {
		t.Fatal("no email was sent")
	}
	body := c.bodies[len(c.bodies)-1]
	idx := strings.Index(body, "/verify/")
	if idx < 0 {
		t.Fatalf("email has no verification link:\n%s", body)
	}
	rest := body[idx+len("/verify/"):]
	if end := strings.IndexAny(rest, "\n \t"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAccountService(t *testing.T) (*AccountService, *sqlite.DB, *captureSender) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	verification, err := auth.NewVerificationService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("failed to create verification service: %v", err)
	}

	mailer := &captureSender{}
	svc := NewAccountService(
		db,
		auth.NewPasswordServiceForTest(bcrypt.MinCost),
		verification,
		mailer,
		"http://localhost:8080",
		15*time.Minute,
		testLogger(),
	)
	return svc, db, mailer
}

func TestSignUpFirstUserBecomesAdmin(t *testing.T) {
	svc, db, mailer := newAccountService(t)

	first, err := svc.SignUp(context.Background(), "alice@example.com", "Alice", "Smith", "password123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if !first.IsAdmin {
		t.Error("first user should be admin")
	}
	if first.IsVerified {
		t.Error("admin bootstrap must not imply verification")
	}

	second, err := svc.SignUp(context.Background(), "bob@example.com", "Bob", "Jones", "password123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if second.IsAdmin {
		t.Error("second user should not be admin")
	}

	// Both users are enrolled in the "all users" group.
	for _, u := range []*model.User{first, second} {
		ids, err := db.GroupIDsOf(context.Background(), u.ID)
		if err != nil {
			t.Fatalf("GroupIDsOf() error = %v", err)
		}
		if len(ids) != 1 || ids[0] != model.AllUsersGroupID {
			t.Errorf("user %d groups = %v, want [1]", u.ID, ids)
		}
	}

	if len(mailer.to) != 2 {
		t.Errorf("sent %d verification emails, want 2", len(mailer.to))
	}
}

func TestSignUpValidation(t *testing.T) {
	svc, _, _ := newAccountService(t)

	tests := []struct {
		name                               string
		email, first, last, password       string
	}{
		{"empty email", "", "Alice", "Smith", "password123"},
		{"malformed email", "not-an-email", "Alice", "Smith", "password123"},
		{"empty first name", "a@b.com", "", "Smith", "password123"},
		{"numeric name", "a@b.com", "Alice2", "Smith", "password123"},
		{"short password", "a@b.com", "Alice", "Smith", "short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUp(context.Background(), tt.email, tt.first, tt.last, tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("SignUp() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	svc, _, _ := newAccountService(t)

	if _, err := svc.SignUp(context.Background(), "dup@example.com", "Alice", "Smith", "password123"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	_, err := svc.SignUp(context.Background(), "DUP@example.com", "Bob", "Jones", "password123")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("SignUp() duplicate error = %v, want ErrValidation", err)
	}
}

func TestSignUpSurvivesMailFailure(t *testing.T) {
	svc, _, mailer := newAccountService(t)
	mailer.failAll = true

	user, err := svc.SignUp(context.Background(), "alice@example.com", "Alice", "Smith", "password123")
	if err != nil {
		t.Fatalf("SignUp() must not fail when the email cannot be sent: %v", err)
	}
	if user.LastVerificationEmailSent != nil {
		t.Error("failed send must not arm the resend cooldown")
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newAccountService(t)
	if _, err := svc.SignUp(context.Background(), "alice@example.com", "Alice", "Smith", "password123"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	user, err := svc.Authenticate(context.Background(), "alice@example.com", "password123")
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Errorf("Authenticate() returned %q", user.Email)
	}

	// Wrong password and unknown account must be indistinguishable.
	_, errWrong := svc.Authenticate(context.Background(), "alice@example.com", "wrong-password")
	_, errUnknown := svc.Authenticate(context.Background(), "nobody@example.com", "password123")
	for _, err := range []error{errWrong, errUnknown} {
		if !errors.Is(err, apperror.ErrUnauthorized) {
			t.Errorf("Authenticate() error = %v, want ErrUnauthorized", err)
		}
	}
}

func TestVerifyFlow(t *testing.T) {
	svc, db, mailer := newAccountService(t)
	signedUp, err := svc.SignUp(context.Background(), "alice@example.com", "Alice", "Smith", "password123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	token := mailer.lastToken(t)

	user, err := svc.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !user.IsVerified {
		t.Error("Verify() did not set IsVerified")
	}

	stored, err := db.GetUserByID(context.Background(), signedUp.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if !stored.IsVerified {
		t.Error("verification was not persisted")
	}

	// A second use of the link reports the conflict, not a failure.
	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("second Verify() error = %v, want ErrConflict", err)
	}
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	svc, _, _ := newAccountService(t)

	for _, token := range []string{"", "garbage", "bm8tY29sb24"} {
		if _, err := svc.Verify(context.Background(), token); !errors.Is(err, apperror.ErrInvalidToken) {
			t.Errorf("Verify(%q) error = %v, want ErrInvalidToken", token, err)
		}
	}
}

func TestVerifyLinkDiesAfterPasswordChange(t *testing.T) {
	svc, _, mailer := newAccountService(t)
	user, err := svc.SignUp(context.Background(), "alice@example.com", "Alice", "Smith", "password123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	token := mailer.lastToken(t)

	if err := svc.ChangePassword(context.Background(), user, "password123", "newpassword456"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}

	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, apperror.ErrInvalidToken) {
		t.Errorf("Verify() after password change error = %v, want ErrInvalidToken", err)
	}
}

func TestRequestVerificationEmailCooldown(t *testing.T) {
	svc, db, mailer := newAccountService(t)
	user, err := svc.SignUp(context.Background(), "alice@example.com", "Alice", "Smith", "password123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	// The sign-up email just armed the cooldown.
	if err := svc.RequestVerificationEmail(context.Background(), user); !errors.Is(err, apperror.ErrTooSoon) {
		t.Fatalf("RequestVerificationEmail() within cooldown error = %v, want ErrTooSoon", err)
	}

	// Age the last-sent stamp past the window and try again.
	past := time.Now().UTC().Add(-16 * time.Minute)
	user.LastVerificationEmailSent = &past
	if err := db.UpdateUser(context.Background(), user); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	if err := svc.RequestVerificationEmail(context.Background(), user); err != nil {
		t.Fatalf("RequestVerificationEmail() after cooldown error = %v", err)
	}
	if len(mailer.to) != 2 {
		t.Errorf("sent %d emails, want 2", len(mailer.to))
	}
}

func TestRequestVerificationEmailAlreadyVerified(t *testing.T) {
	svc, _, mailer := newAccountService(t)
	user, err := svc.SignUp(context.Background(), "alice@example.com", "Alice", "Smith", "password123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	if _, err := svc.Verify(context.Background(), mailer.lastToken(t)); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	user.IsVerified = true

	if err := svc.RequestVerificationEmail(context.Background(), user); !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("RequestVerificationEmail() error = %v, want ErrConflict", err)
	}
}

func TestUpdateAccount(t *testing.T) {
	svc, db, _ := newAccountService(t)
	user, err := svc.SignUp(context.Background(), "alice@example.com", "Alice", "Smith", "password123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	if _, err := svc.UpdateAccount(context.Background(), user, "Alicia", "Jones", "ALICIA@example.com"); err != nil {
		t.Fatalf("UpdateAccount() error = %v", err)
	}

	stored, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if stored.FirstName != "Alicia" || stored.LastName != "Jones" || stored.Email != "alicia@example.com" {
		t.Errorf("UpdateAccount() persisted %+v", stored)
	}
}

func TestChangePasswordRequiresCurrent(t *testing.T) {
	svc, _, _ := newAccountService(t)
	user, err := svc.SignUp(context.Background(), "alice@example.com", "Alice", "Smith", "password123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	err = svc.ChangePassword(context.Background(), user, "wrong-current", "newpassword456")
	if !errors.Is(err, apperror.ErrValidation) {
		t.Fatalf("ChangePassword() error = %v, want ErrValidation", err)
	}

	if err := svc.ChangePassword(context.Background(), user, "password123", "newpassword456"); err != nil {
		t.Fatalf("ChangePassword() error = %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "alice@example.com", "newpassword456"); err != nil {
		t.Errorf("Authenticate() with new password: %v", err)
	}
}
