package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loft-algerie/messaging/config"
	"github.com/loft-algerie/messaging/internal/i18n"
	"github.com/loft-algerie/messaging/internal/pg"
	"github.com/loft-algerie/messaging/internal/postgres"
	"github.com/loft-algerie/messaging/internal/realtime"
	"github.com/loft-algerie/messaging/internal/security"
	"github.com/loft-algerie/messaging/internal/service"
	grpcx "github.com/loft-algerie/messaging/internal/transport/grpc"
	httpx "github.com/loft-algerie/messaging/internal/transport/http"
	"github.com/loft-algerie/messaging/internal/transport/ws"
	"github.com/loft-algerie/messaging/pkg/logger"

	"google.golang.org/grpc"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.ParseEnv(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		Level:     logger.ParseLevel(cfg.Logging.Level),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting messaging",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- postgres ---
	pool, err := pg.NewPool(ctx, pg.Config{
		DSN:               cfg.Postgres.DSN,
		MaxConns:          cfg.Postgres.MaxConns,
		MinConns:          cfg.Postgres.MinConns,
		MaxConnLifetime:   cfg.Postgres.MaxConnLifetime,
		MaxConnIdleTime:   cfg.Postgres.MaxConnIdleTime,
		HealthCheckPeriod: cfg.Postgres.HealthCheckPeriod,
		ApplicationName:   cfg.Postgres.ApplicationName,
	})
	if err != nil {
		slog.Error("postgres", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	// --- repos ---
	convRepo := postgres.NewConversationRepository(pool)
	partRepo := postgres.NewParticipantRepository(pool)
	msgRepo := postgres.NewMessageRepository(pool)
	notifRepo := postgres.NewNotificationRepository(pool)
	userRepo := postgres.NewUserRepository(pool)

	// --- realtime ---
	hub := ws.NewHub()
	ready := map[string]httpx.Check{
		"postgres": func(ctx context.Context) error { return pg.Ping(ctx, pool) },
	}
	if cfg.Redis.URL != "" {
		bridge, err := realtime.NewRedisBridge(ctx, cfg.Redis.URL, cfg.Redis.Channel)
		if err != nil {
			slog.Error("redis", "err", err)
			os.Exit(1)
		}
		defer func() { _ = bridge.Close() }()

		hub.SetFanout(bridge)
		ready["redis"] = bridge.Ping
		go func() {
			if err := bridge.Run(ctx, hub); err != nil {
				slog.Error("redis bridge stopped", "err", err)
			}
		}()
		slog.Info("realtime fan-out via redis", "channel", cfg.Redis.Channel)
	}

	// --- services ---
	notifySvc := service.NewNotificationService(notifRepo)
	convSvc := service.NewConversationService(convRepo, partRepo, userRepo, notifySvc)
	chatSvc := service.NewChatService(msgRepo, partRepo, convRepo, hub, service.ChatOptions{
		MaxMessageLength: cfg.Chat.MaxMessageLength,
		DefaultPageSize:  cfg.Chat.DefaultPageSize,
		MaxPageSize:      cfg.Chat.MaxPageSize,
	})
	readSvc := service.NewReadStateService(partRepo, msgRepo, hub)
	userSvc := service.NewUserService(userRepo, cfg.Chat.SearchLimit)

	if !notifySvc.Available(ctx) {
		slog.Warn("notifications table not found, notifications are disabled")
	}

	// --- auth ---
	var verifier security.TokenVerifier
	if cfg.Backend.JWTSecret != "" {
		verifier = security.NewJWTVerifier(cfg.Backend.JWTSecret, cfg.Backend.ClockSkew)
	} else {
		verifier = security.NewRemoteVerifier(cfg.Backend.URL, cfg.Backend.AnonKey, cfg.Backend.Timeout)
		slog.Info("verifying tokens against the backend", "url", cfg.Backend.URL)
	}

	// --- HTTP ---
	wsServer := ws.NewServer(hub, convSvc, chatSvc, readSvc, ws.Options{
		PingEvery:      cfg.Realtime.PingEvery,
		WriteTimeout:   cfg.Realtime.WriteTimeout,
		SendBuffer:     cfg.Realtime.SendBuffer,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})
	defaultLocale, ok := i18n.Parse(cfg.I18n.DefaultLocale)
	if !ok {
		defaultLocale = i18n.Default
	}
	handler := httpx.NewHandler(convSvc, chatSvc, readSvc, notifySvc, userSvc)
	router := httpx.NewRouter(handler, wsServer, httpx.RouterOptions{
		Verifier:       verifier,
		SessionCookie:  cfg.Backend.SessionCookie,
		ServiceRoleKey: cfg.Backend.ServiceRoleKey,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		LocaleCookie:   cfg.I18n.Cookie,
		DefaultLocale:  defaultLocale,
		DebugBodies:    cfg.Logging.Debug,
		Ready:          ready,
	})
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// --- run servers ---
	errCh := make(chan error, 2)

	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GRPC.Addr != "" {
		deps := make(map[string]grpcx.Dependency, len(ready))
		for name, check := range ready {
			deps[name] = grpcx.Dependency(check)
		}
		health := grpcx.NewHealth(deps, 10*time.Second)
		grpcServer = grpcx.NewServer(health, cfg.HTTP.RequestTimeout)
		go health.Run(ctx)

		go func() {
			lis, err := net.Listen("tcp", cfg.GRPC.Addr)
			if err != nil {
				errCh <- err
				return
			}
			slog.Info("grpc listen", "addr", cfg.GRPC.Addr)
			if err := grpcServer.Serve(lis); err != nil {
				errCh <- err
			}
		}()
	}

	// --- graceful shutdown ---
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal")
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}
	stop()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	if err := httpSrv.Shutdown(ctxShutdown); err != nil {
		slog.Warn("http shutdown", "err", err)
	}
	notifySvc.Wait()
	slog.Info("stopped")
}
