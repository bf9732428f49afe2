package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/knowledgebase/internal/apperror"
	"github.com/sakif/knowledgebase/internal/auth"
	"github.com/sakif/knowledgebase/internal/model"
	"github.com/sakif/knowledgebase/internal/service"
)

// AuthHandler serves sign-up, sign-in, sign-out and the email
// verification endpoints.
type AuthHandler struct {
	accounts *service.AccountService
	sessions *auth.SessionService
	logger   *slog.Logger
}

func NewAuthHandler(accounts *service.AccountService, sessions *auth.SessionService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{accounts: accounts, sessions: sessions, logger: logger}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON request body")
	}
	return nil
}

// setSessionCookie stores the session token the way the browser expects:
// HttpOnly so scripts can't read it, SameSite=Lax so cross-site POSTs
// don't carry it.
func setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// signIn issues a session token and sets the cookie for the given user.
func (h *AuthHandler) signIn(w http.ResponseWriter, user *model.User) error {
	token, err := h.sessions.Issue(user.ID)
	if err != nil {
		return err
	}
	setSessionCookie(w, token, int(h.sessions.TTL().Seconds()))
	return nil
}

// HandleShowSignUp answers GET /sign-up. A signed-in caller is bounced
// to the dashboard instead of seeing the form.
func (h *AuthHandler) HandleShowSignUp(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r.Context()); ok {
		redirect(w, "/dashboard", "you are already signed in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"page": "sign-up"})
}

type signUpRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Password  string `json:"password"`
}

// HandleSignUp answers POST /sign-up: creates the account, signs the new
// user in, and sends them onward. The account starts unverified, so the
// verification gate will steer them to /re-verify until they click the
// emailed link.
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.accounts.SignUp(r.Context(), req.Email, req.FirstName, req.LastName, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.signIn(w, user); err != nil {
		h.logger.Error("failed to issue session after sign-up", slog.String("error", err.Error()))
		redirect(w, "/sign-in", "account created; please sign in")
		return
	}

	redirect(w, "/dashboard", "account created; check your email for a verification link")
}

// HandleShowSignIn answers GET /sign-in.
func (h *AuthHandler) HandleShowSignIn(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.CurrentUser(r.Context()); ok {
		redirect(w, "/dashboard", "you are already signed in")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"page": "sign-in"})
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignIn answers POST /sign-in.
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.accounts.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.signIn(w, user); err != nil {
		h.logger.Error("failed to issue session", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	h.logger.Info("user signed in", slog.Int64("id", user.ID))
	redirect(w, "/dashboard", "signed in")
}

// HandleSignOut answers POST /sign-out. The session is stateless, so
// signing out just deletes the cookie; the token dies at its expiry.
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	redirect(w, "/sign-in", "signed out")
}

// HandleVerify answers GET /verify/{token} — the link from the
// verification email. It works with or without a session, because the
// token itself identifies the account.
func (h *AuthHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	user, err := h.accounts.Verify(r.Context(), token)
	switch {
	case err == nil:
		redirect(w, "/dashboard", "your email has been verified")
	case user != nil && errors.Is(err, apperror.ErrConflict):
		redirect(w, "/dashboard", "your email was already verified")
	case errors.Is(err, apperror.ErrInvalidToken):
		redirect(w, "/re-verify", "that verification link is invalid or expired; request a new one")
	default:
		writeError(w, err)
	}
}

// HandleShowReVerify answers GET /re-verify — the holding page for
// unverified accounts.
func (h *AuthHandler) HandleShowReVerify(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"page":        "re-verify",
		"email":       user.Email,
		"is_verified": user.IsVerified,
	})
}

// HandleReVerify answers POST /re-verify: re-sends the verification
// email, subject to the resend cooldown.
func (h *AuthHandler) HandleReVerify(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r.Context())

	if err := h.accounts.RequestVerificationEmail(r.Context(), user); err != nil {
		writeError(w, err)
		return
	}
	redirect(w, "/re-verify", "verification email sent; check your inbox")
}
