package http

import (
	"context"
	"net/http"
	"time"

	"github.com/loft-algerie/messaging/internal/i18n"
	"github.com/loft-algerie/messaging/internal/security"
	httpmw "github.com/loft-algerie/messaging/internal/transport/http/middleware"
	"github.com/loft-algerie/messaging/internal/transport/ws"
	"github.com/loft-algerie/messaging/pkg/httputil"

	"github.com/go-chi/chi/v5"
	middlewareChi "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Check is a readiness check of one dependency.
type Check func(ctx context.Context) error

type RouterOptions struct {
	Verifier       security.TokenVerifier
	SessionCookie  string
	ServiceRoleKey string
	AllowedOrigins []string
	RequestTimeout time.Duration
	LocaleCookie   string
	DefaultLocale  i18n.Locale
	DebugBodies    bool
	Ready          map[string]Check
}

func NewRouter(h *Handler, wsServer *ws.Server, opts RouterOptions) http.Handler {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(httputil.MiddlewareRequestID)
	r.Use(middlewareChi.RealIP)
	r.Use(httpmw.WithRequestLoggerCtx)
	r.Use(httpmw.RequestLogger)
	r.Use(middlewareChi.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "apikey", httputil.HeaderRequestID},
			ExposedHeaders:   []string{httputil.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(httpmw.Locale(opts.LocaleCookie, opts.DefaultLocale))
	if opts.DebugBodies {
		r.Use(httputil.MiddlewareBodyLogging)
	}

	auth := httpmw.Auth(opts.Verifier, opts.SessionCookie)

	// WS endpoint: no request timeout
	r.With(auth).Get("/ws/conversations/{id}", wsServer.HandleWS)

	r.Group(func(pr chi.Router) {
		pr.Use(auth)
		pr.Use(middlewareChi.Timeout(opts.RequestTimeout))

		pr.Post("/api/conversations", h.CreateConversation)
		pr.Get("/api/conversations", h.ListConversations)
		pr.Post("/api/conversations/create", h.CreateConversation)
		pr.Post("/api/conversations/send-message", h.SendMessage)
		pr.Post("/api/conversations/mark-read", h.MarkRead)
		pr.Get("/api/conversations/unread-by-conversation", h.UnreadByConversation)
		pr.Get("/api/conversations/{id}", h.GetConversation)
		pr.Get("/api/conversations/{id}/messages", h.ListMessages)
		pr.Post("/api/conversations/{id}/mark-read", h.MarkConversationRead)

		pr.Get("/api/notifications", h.ListNotifications)
		pr.Get("/api/notifications/unread-count", h.NotificationsUnreadCount)
		pr.Post("/api/notifications/mark-all-read", h.MarkAllNotificationsRead)
		pr.Post("/api/notifications/{id}/read", h.MarkNotificationRead)
		pr.Delete("/api/notifications/{id}", h.DeleteNotification)

		pr.Get("/api/users/search", h.SearchUsers)
	})

	// privileged callers (backend jobs, other services)
	r.Group(func(sr chi.Router) {
		sr.Use(httpmw.ServiceKey(opts.ServiceRoleKey))
		sr.Use(middlewareChi.Timeout(opts.RequestTimeout))

		sr.Post("/api/notifications", h.CreateNotification)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", readiness(opts.Ready))
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func readiness(checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		status := http.StatusOK
		report := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report[name] = err.Error()
				continue
			}
			report[name] = "ok"
		}
		httputil.JSON(w, status, report)
	}
}
