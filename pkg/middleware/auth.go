package middleware

import (
	"context"
	"net/http"
	"strings"

	apperrors "ecovolt/pkg/errors"
	httputil "ecovolt/pkg/http"
	"ecovolt/pkg/logger"
	"ecovolt/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const principalKey contextKey = "principal"

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*model.Principal, error)
}

func WithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFrom(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*model.Principal)
	return p, ok && p != nil
}

// RequireAuth rejects requests without a valid bearer token and stores the
// caller in the request context.
func RequireAuth(validator TokenValidator, log *logger.Logger) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				_ = httputil.WriteError(w, apperrors.Unauthorized("Missing bearer token"))
				return
			}

			principal, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				log.Debug("Rejected bearer token",
					"request_id", requestIDFrom(r),
					"path", r.URL.Path,
					"error", err,
				)
				if writeErr := httputil.WriteError(w, err); writeErr != nil {
					log.Error("failed to write error response", "handler", "RequireAuth", "operation", "WriteError", "error", writeErr)
				}
				return
			}

			next(w, r.WithContext(WithPrincipal(r.Context(), principal)), ps)
		}
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
