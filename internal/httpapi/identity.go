package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/safar/marketplace-orders/internal/logging"
	"go.uber.org/zap"
)

// UserHeader carries the caller's opaque id, set by the upstream gateway
// once the session has been authenticated.
const UserHeader = "X-User-ID"

type userKey struct{}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			respondError(w, r, http.StatusUnauthorized, "unauthenticated", "missing "+UserHeader+" header")
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, userID)
		ctx = logging.IntoContext(ctx, logging.FromContext(ctx).With(zap.String("user_id", userID)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}
