package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/sakif/knowledgebase/internal/model"
)

// SessionCookieName is the HttpOnly cookie carrying the session token.
const SessionCookieName = "session"

// contextKey is an unexported type for context keys in this package, so
// no other package can read or shadow the stored user.
type contextKey string

const userKey contextKey = "user"

// UserLoader is the slice of the user repository the middleware needs.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// WithUser resolves the session cookie into a *model.User and stores it in
// the request context. Missing or invalid sessions are not an error — the
// request simply continues anonymously and downstream middleware decides
// whether that is acceptable.
//
// The user row is loaded fresh on every request. Sessions are stateless
// tokens, so this read is what makes admin-flag changes, verification and
// account deletion take effect immediately.
func WithUser(sessions *SessionService, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := sessions.Validate(cookie.Value)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				// Deleted account with a live cookie — treat as anonymous.
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CurrentUser retrieves the authenticated user from the request context.
// Returns (nil, false) for anonymous requests.
func CurrentUser(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// RequireUser redirects anonymous requests to the sign-in page.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r.Context()); !ok {
			http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireVerified enforces the verification state machine: an
// authenticated but unverified user may only reach the allow-listed paths
// (the verify link, the re-verify page and sign-out); every other request
// short-circuits into a redirect to the re-verify page.
//
// The allow-list is an explicit parameter — one pipeline stage, no
// dispatch-time magic. Entries match the path exactly or as a prefix, so
// "/verify" covers "/verify/{token}".
func RequireVerified(allowed ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := CurrentUser(r.Context())
			if !ok || user.IsVerified {
				next.ServeHTTP(w, r)
				return
			}

			for _, p := range allowed {
				if r.URL.Path == p || strings.HasPrefix(r.URL.Path, p+"/") {
					next.ServeHTTP(w, r)
					return
				}
			}

			http.Redirect(w, r, "/re-verify", http.StatusSeeOther)
		})
	}
}

// RequireAdmin gates the admin console. Anonymous users are sent to
// sign-in; authenticated non-admins get an explicit 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := CurrentUser(r.Context())
		if !ok {
			http.Redirect(w, r, "/sign-in", http.StatusSeeOther)
			return
		}
		if !user.IsAdmin {
			http.Error(w, `{"error":"forbidden","message":"admin access required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
