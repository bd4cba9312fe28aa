// Package identity resolves who is chatting and which browser they chat from.
package identity

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	// UISessionCookieName carries the per-browser chat state key.
	UISessionCookieName = "memchat_ui_session"
	uiSessionMaxAge     = 30 * 24 * time.Hour
)

type contextKey int

const (
	uiSessionIDKey contextKey = iota
)

// UISessionIDFromContext extracts the browser's chat state key from the
// request context.
func UISessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(uiSessionIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUISessionID returns a context carrying id.
func WithUISessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, uiSessionIDKey, id)
}

func isValidUISessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func setUISessionCookie(w http.ResponseWriter, id string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     UISessionCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(uiSessionMaxAge.Seconds()),
		Expires:  time.Now().Add(uiSessionMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

func getOrCreateUISessionID(w http.ResponseWriter, r *http.Request, isDev bool) string {
	if c, err := r.Cookie(UISessionCookieName); err == nil && isValidUISessionID(c.Value) {
		setUISessionCookie(w, c.Value, isDev)
		return c.Value
	}

	id := uuid.NewString()
	setUISessionCookie(w, id, isDev)
	return id
}

// Middleware assigns every browser a stable UI session id via cookie.
func Middleware(isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := getOrCreateUISessionID(w, r, isDev)
			next.ServeHTTP(w, r.WithContext(WithUISessionID(r.Context(), id)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
