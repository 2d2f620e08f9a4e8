package middleware

import (
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"

	apperrors "smartparking/pkg/errors"
	"smartparking/pkg/logger"
	"smartparking/pkg/session"
)

// Authenticate resolves the bearer token, when present, into session claims
// on the request context. Requests without a token continue anonymously; a
// token that does not verify is rejected.
func Authenticate(sessions *session.Manager, log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				reject(w, log, r, apperrors.Unauthorized("Malformed authorization header"))
				return
			}

			claims, err := sessions.Parse(strings.TrimSpace(token))
			if err != nil {
				log.Debug("Session token rejected",
					"request_id", GetRequestID(r.Context()),
					"error", err,
				)
				reject(w, log, r, apperrors.Unauthorized("Invalid or expired session"))
				return
			}

			next.ServeHTTP(w, r.WithContext(session.WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAuth answers 401 for anonymous callers, or 403 when roles are given
// and the caller holds none of them.
func RequireAuth(log *logger.Logger, next httprouter.Handle, roles ...string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		claims := session.FromContext(r.Context())
		if claims == nil {
			reject(w, log, r, apperrors.Unauthorized("Login required"))
			return
		}
		if len(roles) > 0 && !hasRole(claims.Role, roles) {
			reject(w, log, r, apperrors.Forbidden("Insufficient permissions"))
			return
		}
		next(w, r, ps)
	}
}

func hasRole(role string, allowed []string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}
