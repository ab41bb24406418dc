package middlewarex

import (
	"net/http"

	"cardbridge/pkg/contextx"
)

const headerNameUserID = "X-User-Id"

// UserID pulls the authenticated user id from the request header and
// puts it into the context. Authentication itself happens upstream at
// the gateway, the service trusts the header.
func UserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(headerNameUserID)

		ctx := r.Context()
		if userID != "" {
			ctx = contextx.WithUserID(ctx, contextx.UserID(userID))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
