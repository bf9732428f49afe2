package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/knowledgebase/internal/auth"
	"github.com/sakif/knowledgebase/internal/service"
)

// AccountHandler serves the self-service account pages.
type AccountHandler struct {
	accounts *service.AccountService
	logger   *slog.Logger
}

func NewAccountHandler(accounts *service.AccountService, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{accounts: accounts, logger: logger}
}

// HandleShowAccount answers GET /account with the caller's own profile.
func (h *AccountHandler) HandleShowAccount(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"page": "account",
		"user": user,
	})
}

type accountUpdateRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// HandleUpdateAccount answers POST /account: edits the caller's profile.
func (h *AccountHandler) HandleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r.Context())

	var req accountUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.accounts.UpdateAccount(r.Context(), user, req.FirstName, req.LastName, req.Email); err != nil {
		writeError(w, err)
		return
	}

	redirect(w, "/account", "account updated")
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// HandleChangePassword answers POST /account/password.
func (h *AccountHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r.Context())

	var req passwordChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.accounts.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	redirect(w, "/account", "password changed")
}
