package auth

import (
	"crypto/subtle"
	"net/http"

	"github.com/rs/xid"
)

// CSRFCookieName holds the double-submit CSRF token. The cookie is NOT
// HttpOnly: the front end reads it and echoes it back in the csrf_token
// form field (or X-CSRF-Token header), which is the whole point of the
// double-submit scheme — a cross-site attacker can make the browser send
// the cookie but cannot read it to forge the matching field.
const CSRFCookieName = "csrf_token"

// CSRF is a double-submit-cookie middleware. Safe methods ensure a token
// cookie exists; state-changing methods must echo the cookie value in the
// csrf_token form field or the X-CSRF-Token header, otherwise 403.
func CSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			if _, err := r.Cookie(CSRFCookieName); err != nil {
				http.SetCookie(w, &http.Cookie{
					Name:     CSRFCookieName,
					Value:    xid.New().String(),
					Path:     "/",
					SameSite: http.SameSiteLaxMode,
				})
			}
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(CSRFCookieName)
		if err != nil || cookie.Value == "" {
			http.Error(w, `{"error":"forbidden","message":"missing CSRF token"}`, http.StatusForbidden)
			return
		}

		sent := r.Header.Get("X-CSRF-Token")
		if sent == "" {
			sent = r.PostFormValue("csrf_token")
		}
		if subtle.ConstantTimeCompare([]byte(sent), []byte(cookie.Value)) != 1 {
			http.Error(w, `{"error":"forbidden","message":"invalid CSRF token"}`, http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
