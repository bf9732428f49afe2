package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/knowledgebase/internal/auth"
	"github.com/sakif/knowledgebase/internal/service"
)

// ArticleHandler serves the dashboard and the article CRUD endpoints.
// Every route behind it is gated: the middleware guarantees a signed-in,
// verified user in the context.
type ArticleHandler struct {
	articles *service.ArticleService
	logger   *slog.Logger
}

func NewArticleHandler(articles *service.ArticleService, logger *slog.Logger) *ArticleHandler {
	return &ArticleHandler{articles: articles, logger: logger}
}

// HandleDashboard answers GET /dashboard. Query params: search= for a
// substring match over title and content, sort_latest= for a sort key
// (modified_date, -modified_date, title, -title, created_date,
// -created_date; default newest-modified first). Search wins over sort.
func (h *ArticleHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r.Context())

	q := r.URL.Query()
	articles, err := h.articles.ListVisible(r.Context(), user, q.Get("search"), q.Get("sort_latest"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"articles": articles,
		"user":     user,
	})
}

// HandleShowNew answers GET /articles/new with the data the creation
// form needs: the full group list for the grant pickers.
func (h *ArticleHandler) HandleShowNew(w http.ResponseWriter, r *http.Request) {
	groups, err := h.articles.Groups(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"page":   "article-new",
		"groups": groups,
	})
}

type articleRequest struct {
	Title        string  `json:"title"`
	Content      string  `json:"content"`
	ViewGroupIDs []int64 `json:"view_group_ids"`
	EditGroupIDs []int64 `json:"edit_group_ids"`
}

// HandleCreate answers POST /articles.
func (h *ArticleHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r.Context())

	var req articleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	article, err := h.articles.Create(r.Context(), user, req.Title, req.Content, req.ViewGroupIDs, req.EditGroupIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	redirect(w, "/articles/"+article.Slug, "article created")
}

// HandleGet answers GET /articles/{slug}. The caller's permission rides
// along so the page can show or hide the edit controls.
func (h *ArticleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r.Context())
	slug := chi.URLParam(r, "slug")

	article, perm, err := h.articles.Get(r.Context(), user, slug)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"article":    article,
		"permission": perm.String(),
		"can_edit":   perm.CanEdit(),
	})
}

// HandleShowEdit answers GET /articles/{slug}/edit: the article plus the
// group list, for the edit form. It applies the same permission ladder
// as a save would, so a viewer can't load the form in the first place.
func (h *ArticleHandler) HandleShowEdit(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r.Context())
	slug := chi.URLParam(r, "slug")

	article, perm, err := h.articles.Get(r.Context(), user, slug)
	if err != nil {
		writeError(w, err)
		return
	}
	if !perm.CanEdit() {
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error:   "forbidden",
			Message: "you do not have permission to edit this article",
		})
		return
	}

	groups, err := h.articles.Groups(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"page":    "article-edit",
		"article": article,
		"groups":  groups,
	})
}

// HandleUpdate answers POST /articles/{slug}/edit.
func (h *ArticleHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r.Context())
	slug := chi.URLParam(r, "slug")

	var req articleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	article, err := h.articles.Update(r.Context(), user, slug, req.Title, req.Content, req.ViewGroupIDs, req.EditGroupIDs)
	if err != nil {
		writeError(w, err)
		return
	}

	redirect(w, "/articles/"+article.Slug, "article updated")
}

// HandleDelete answers POST /articles/{slug}/delete.
func (h *ArticleHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.CurrentUser(r.Context())
	slug := chi.URLParam(r, "slug")

	if err := h.articles.Delete(r.Context(), user, slug); err != nil {
		writeError(w, err)
		return
	}

	redirect(w, "/dashboard", "article deleted")
}
