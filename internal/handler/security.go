package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/digigoods/internal/auth"
)

const bearerPrefix = "Bearer "

// RequireAuth rejects requests without a valid bearer token and stores the
// token's user in the request context.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			writeError(w, r, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		userID, err := h.tokens.Verify(strings.TrimSpace(header[len(bearerPrefix):]))
		if err != nil {
			zctx.From(r.Context()).Debug("Rejected bearer token", zap.Error(err))
			writeError(w, r, http.StatusUnauthorized, msgUnauthorized)
			return
		}

		ctx := auth.WithUserID(r.Context(), userID)
		ctx = zctx.With(ctx, zap.Int64("auth_user_id", userID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// principal returns the authenticated user. Only valid behind RequireAuth.
func principal(r *http.Request) int64 {
	id, _ := auth.UserID(r.Context())
	return id
}
