package httpmw

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/loft-algerie/messaging/internal/i18n"
	"github.com/loft-algerie/messaging/internal/security"
	"github.com/loft-algerie/messaging/pkg/errs"
	"github.com/loft-algerie/messaging/pkg/httputil"
	"github.com/loft-algerie/messaging/pkg/logger"

	"github.com/gorilla/websocket"
)

type ctxKey string

const (
	ctxKeyIdentity ctxKey = "identity"
	ctxKeyService  ctxKey = "service"
)

// Auth resolves the caller from a Bearer header, the session cookie or, for
// WebSocket upgrades only, the access_token query parameter.
func Auth(verifier security.TokenVerifier, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r, cookieName)
			if token == "" {
				unauthorized(w, r)
				return
			}

			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, errs.ErrUpstream) {
					logger.FromContext(r.Context()).Error("token verification failed", slog.Any("err", err))
					httputil.Error(w, http.StatusBadGateway, "auth backend unavailable",
						i18n.T(i18n.FromContext(r.Context()), i18n.KeyInternal))
					return
				}
				logger.FromContext(r.Context()).Debug("token rejected", slog.Any("err", err))
				unauthorized(w, r)
				return
			}

			ctx := WithIdentity(r.Context(), id)
			ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(slog.String("user_id", id.UserID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ServiceKey admits privileged callers presenting the backend service-role key as a
// Bearer token or apikey header.
func ServiceKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := bearer(r)
			if presented == "" {
				presented = r.Header.Get("apikey")
			}
			if !security.KeyMatches(presented, key) {
				unauthorized(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyService, true)))
		})
	}
}

func tokenFromRequest(r *http.Request, cookieName string) string {
	if t := bearer(r); t != "" {
		return t
	}
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return strings.TrimSpace(c.Value)
		}
	}
	if websocket.IsWebSocketUpgrade(r) {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	return ""
}

func bearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	httputil.Error(w, http.StatusUnauthorized, "unauthorized",
		i18n.T(i18n.FromContext(r.Context()), i18n.KeyUnauthorized))
}

func WithIdentity(ctx context.Context, id *security.Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func IdentityFromCtx(ctx context.Context) *security.Identity {
	id, _ := ctx.Value(ctxKeyIdentity).(*security.Identity)
	return id
}

func UserIDFromCtx(ctx context.Context) string {
	if id := IdentityFromCtx(ctx); id != nil {
		return id.UserID
	}
	return ""
}

// IsService reports whether the request was admitted by ServiceKey.
func IsService(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyService).(bool)
	return v
}
