package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/knowledgebase/internal/apperror"
	"github.com/sakif/knowledgebase/internal/auth"
	"github.com/sakif/knowledgebase/internal/service"
)

// AdminHandler serves the admin console. The routes are mounted behind
// RequireAdmin, so a non-admin never reaches these methods.
type AdminHandler struct {
	admin  *service.AdminService
	logger *slog.Logger
}

func NewAdminHandler(admin *service.AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger}
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.ValidationFailed("id", "invalid id")
	}
	return id, nil
}

// HandleDashboard answers GET /admin with the console totals.
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.admin.DashboardStats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page":  "admin",
		"stats": stats,
	})
}

// HandleListUsers answers GET /admin/users.
func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.admin.ListUsers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// HandleGetUser answers GET /admin/users/{id}.
func (h *AdminHandler) HandleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, groupIDs, err := h.admin.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":      user,
		"group_ids": groupIDs,
	})
}

// HandleDeleteUser answers POST /admin/users/{id}/delete.
func (h *AdminHandler) HandleDeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.admin.DeleteUser(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}
	redirect(w, "/admin/users", "user deleted")
}

// HandleToggleAdmin answers POST /admin/users/{id}/toggle-admin.
func (h *AdminHandler) HandleToggleAdmin(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.CurrentUser(r.Context())

	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.admin.ToggleAdmin(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}

	msg := "admin access revoked"
	if user.IsAdmin {
		msg = "admin access granted"
	}
	redirect(w, "/admin/users/"+strconv.FormatInt(id, 10), msg)
}

// HandleListGroups answers GET /admin/groups.
func (h *AdminHandler) HandleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.admin.ListGroups(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

type groupRequest struct {
	Name      string  `json:"name"`
	MemberIDs []int64 `json:"member_ids"`
}

// HandleCreateGroup answers POST /admin/groups.
func (h *AdminHandler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	group, err := h.admin.CreateGroup(r.Context(), req.Name, req.MemberIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	redirect(w, "/admin/groups/"+strconv.FormatInt(group.ID, 10), "group created")
}

// HandleGetGroup answers GET /admin/groups/{id}.
func (h *AdminHandler) HandleGetGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	group, err := h.admin.GetGroup(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group": group})
}

// HandleUpdateGroup answers POST /admin/groups/{id}.
func (h *AdminHandler) HandleUpdateGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req groupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.admin.UpdateGroup(r.Context(), id, req.Name, req.MemberIDs); err != nil {
		writeError(w, err)
		return
	}
	redirect(w, "/admin/groups/"+strconv.FormatInt(id, 10), "group updated")
}

// HandleDeleteGroup answers POST /admin/groups/{id}/delete.
func (h *AdminHandler) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.admin.DeleteGroup(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	redirect(w, "/admin/groups", "group deleted")
}
