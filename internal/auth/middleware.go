package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/nafis/campus-hub/internal/apperror"
	"github.com/nafis/campus-hub/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// "user", ANY package that knows the string can read or shadow your value.
// A package-private type prevents collisions: only THIS package can create a
// key of type contextKey, so only this package can read or write identities
// in the context.
type contextKey string

const userKey contextKey = "user"

// IdentityResolver resolves an opaque credential to a full User snapshot.
//
// Defined here as an interface (implemented by service.IdentityService) so
// the middleware doesn't import the service package. The contract matters
// more than the implementation:
//
//   - missing/expired/invalid credential → (nil, nil): ANONYMOUS, not an error
//   - credential or user store unreachable → error wrapping apperror.ErrAuthContext
//
// "Not logged in" and "the identity infrastructure is down" are different
// situations and must never be conflated.
type IdentityResolver interface {
	Resolve(ctx context.Context, credential string) (*model.User, error)
}

// ResolveIdentity is middleware that resolves the request's credential (the
// JWT cookie) into a *model.User stored in the request context, replacing
// any notion of process-wide "current user" state.
//
// It never blocks the request for a missing or invalid credential — the
// request simply proceeds anonymously and handlers (or RequireUser below)
// decide what anonymity means for them. Only an unreachable identity store
// fails the request, with 503.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new http.Handler that
// wraps it. Chi applies them in a chain: req → M1 → M2 → Handler.
func ResolveIdentity(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := resolver.Resolve(r.Context(), credentialFromRequest(r))
			if err != nil {
				// Infrastructure failure — the one case that is NOT "anonymous".
				if errors.Is(err, apperror.ErrAuthContext) {
					http.Error(w, `{"error":"auth_unavailable","message":"identity service unavailable"}`, http.StatusServiceUnavailable)
					return
				}
				http.Error(w, `{"error":"internal_error","message":"An internal error occurred"}`, http.StatusInternalServerError)
				return
			}

			if user != nil {
				r = r.WithContext(context.WithValue(r.Context(), userKey, user))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser is middleware that rejects anonymous requests with 401.
// Mount it after ResolveIdentity on routes that need an authenticated user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			http.Error(w, `{"error":"unauthorized","message":"valid authentication required"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// UserFromContext retrieves the resolved user from the request context.
//
// Returns (nil, false) if the request is anonymous. The returned value is
// the snapshot taken by ResolveIdentity at the top of the request — every
// check in the request sees the same user state, so concurrent writes to
// the user record can't make authorization decisions flip mid-request.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}

// credentialFromRequest extracts the opaque credential from the request.
//
// COOKIE FLOW:
// 1. Set-Cookie: token=<jwt>; HttpOnly; SameSite=Lax (set on login)
// 2. Browser automatically sends Cookie: token=<jwt> on subsequent requests
// 3. We hand the raw value to the resolver — an empty string means anonymous
func credentialFromRequest(r *http.Request) string {
	cookie, err := r.Cookie("token")
	if err != nil {
		// http.ErrNoCookie — not an error, just anonymous
		return ""
	}
	return cookie.Value
}
