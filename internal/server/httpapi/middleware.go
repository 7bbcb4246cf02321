package httpapi

import (
	"context"
	"net/http"
	"strings"
)

type ctxKey string

const accountIDKey ctxKey = "accountID"

const bearerPrefix = "bearer "

// requireAccessToken rejects requests without a valid bearer access token and
// stores the token subject in the request context.
func (s *Server) requireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeUnauthorized(w)
			return
		}

		claims, err := s.verifier.Parse(token)
		if err != nil {
			s.logger.Debug(r.Context(), "access token rejected", "error", err)
			writeUnauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), accountIDKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) string {
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

func accountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey).(string)
	return id, ok && id != ""
}
