// Package server собирает все компоненты в работающий HTTPS сервер:
// терминация TLS, роутинг, middleware, статика клиента и аккуратное
// выключение в обратном порядке запуска
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/iudanet/dndserver/internal/crypto"
	"github.com/iudanet/dndserver/internal/server/bootstrap"
	"github.com/iudanet/dndserver/internal/server/config"
	"github.com/iudanet/dndserver/internal/server/handlers"
	"github.com/iudanet/dndserver/internal/server/middleware"
	"github.com/iudanet/dndserver/internal/server/revoke"
	"github.com/iudanet/dndserver/internal/server/session"
	"github.com/iudanet/dndserver/internal/server/storage/sqlite"
)

const (
	// shutdownTimeout - сколько ждем завершения in-flight запросов
	shutdownTimeout = 15 * time.Second

	// Лимит на login endpoint: попыток с одного IP за окно
	loginRateLimit  = 10
	loginRateWindow = time.Minute
)

// Server владеет всеми компонентами процесса.
// Никаких package-level синглтонов: все зависимости создаются в New
// и передаются явно, teardown в Close строго в обратном порядке
type Server struct {
	logger   *slog.Logger
	cfg      *config.Config
	storage  *sqlite.Storage
	denylist *revoke.Denylist
	codec    *session.Codec
	hasher   *crypto.Hasher
	limiter  *middleware.RateLimiter
	handler  http.Handler
	tlsCert  tls.Certificate
	version  string
}

// New создает Server: открывает базу, поднимает denylist, готовит
// ключ сессий, прогоняет bootstrap root-учетки и собирает роутер.
// Ошибка на любом шаге фатальна - сервер не начнет слушать
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*Server, error) {
	// TLS материал проверяем первым: без него нет смысла трогать базу
	tlsCert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("invalid TLS certificate material: %w", err)
	}

	store, err := sqlite.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	denylist, err := revoke.Open(cfg.DenylistPath, revoke.DefaultSweepInterval, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open denylist: %w", err)
	}

	key, err := cfg.SessionKey()
	if err != nil {
		denylist.Close()
		store.Close()
		return nil, err
	}
	if key == nil {
		// Свежий ключ на каждый старт: перезапуск разлогинивает всех
		if key, err = session.GenerateKey(); err != nil {
			denylist.Close()
			store.Close()
			return nil, err
		}
		logger.Info("session key generated, sessions will not survive restart")
	}

	codec, err := session.NewCodec(key)
	if err != nil {
		denylist.Close()
		store.Close()
		return nil, fmt.Errorf("failed to create session codec: %w", err)
	}

	hasher := crypto.NewHasher(0)

	// Bootstrap до начала приема соединений: если root-учетку
	// невозможно обеспечить, процесс не стартует
	loader := bootstrap.NewLoader(store, hasher, logger)
	if err := loader.Run(ctx, cfg.RootCredPath); err != nil {
		denylist.Close()
		store.Close()
		return nil, fmt.Errorf("bootstrap failed: %w", err)
	}

	s := &Server{
		logger:   logger,
		cfg:      cfg,
		storage:  store,
		denylist: denylist,
		codec:    codec,
		hasher:   hasher,
		limiter:  middleware.NewRateLimiter(loginRateLimit, loginRateWindow, logger),
		tlsCert:  tlsCert,
		version:  version,
	}

	if err := s.buildRouter(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// buildRouter собирает mux с маршрутами и middleware
func (s *Server) buildRouter() error {
	authHandler, err := handlers.NewAuthHandler(
		s.logger, s.storage, s.hasher, s.codec, s.denylist, s.cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to create auth handler: %w", err)
	}
	versionHandler := handlers.NewVersionHandler(s.logger, "dndserver", s.version)
	healthHandler := handlers.NewHealthHandler(s.logger, s.storage.DB())
	sessionAuth := middleware.NewSessionAuth(s.logger, s.codec, s.denylist, s.storage)

	mux := http.NewServeMux()

	// Аутентификация
	mux.Handle("POST /api/v1/auth/login", s.limiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /api/v1/auth/logout", authHandler.Logout)
	mux.Handle("GET /api/v1/auth/session", sessionAuth.RequireAuth(http.HandlerFunc(authHandler.Session)))

	// Открытые служебные endpoints
	mux.HandleFunc("GET /api/v1/version", versionHandler.Version)
	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)

	// Остальные application маршруты закрыты аутентификацией
	mux.Handle("/api/", sessionAuth.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})))

	// Статика клиента открыта; идентичность, если есть, едет в контексте
	mux.Handle("/", sessionAuth.OptionalAuth(http.FileServer(http.Dir(s.cfg.StaticDir))))

	// Общая цепочка: recovery снаружи, затем логирование
	var handler http.Handler = mux
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.Recovery(s.logger)(handler)

	s.handler = handler
	return nil
}

// Handler возвращает корневой http.Handler сервера
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run слушает cfg.Addr по TLS и обслуживает запросы до отмены ctx,
// после чего дает in-flight запросам дозавершиться
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.handler,
		TLSConfig: &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{s.tlsCert},
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	errC := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", s.cfg.Addr))
		// Сертификаты уже в TLSConfig, пути не нужны
		errC <- httpServer.ListenAndServeTLS("", "")
	}()

	select {
	case err := <-errC:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down, draining in-flight requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

// Close освобождает ресурсы в обратном порядке создания
func (s *Server) Close() error {
	var errs []error

	if s.limiter != nil {
		s.limiter.Stop()
	}
	if s.denylist != nil {
		if err := s.denylist.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close denylist: %w", err))
		}
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
		}
	}

	return errors.Join(errs...)
}
