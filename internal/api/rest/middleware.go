package rest

import (
	"net/http"
	"strings"

	"github.com/louisbranch/stylematch/internal/auth"
	apperrors "github.com/louisbranch/stylematch/internal/platform/errors"
	"github.com/louisbranch/stylematch/internal/platform/requestctx"
)

// AuthMiddleware validates guest tokens and attaches the user id to the
// request context.
type AuthMiddleware struct {
	tokens *auth.Service
}

// NewAuthMiddleware creates the guest auth middleware.
func NewAuthMiddleware(tokens *auth.Service) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireUser rejects requests without a valid bearer token. WebSocket
// clients may pass the token as a query parameter instead.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			writeError(w, apperrors.New(apperrors.CodeAuthRequired, "missing authorization"))
			return
		}

		userID, err := m.tokens.Validate(token)
		if err != nil {
			writeError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(requestctx.WithUserID(r.Context(), userID)))
	})
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
