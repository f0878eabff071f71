package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/AlekseyZapadovnikov/msg-stats/conf"
	"github.com/AlekseyZapadovnikov/msg-stats/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	Address string
	server  *http.Server

	router        *chi.Mux
	reportService ReportService
	health        HealthChecker
	limiter       *RateLimiter
}

// New конструирует HTTP-сервер на базе chi и регистрирует все маршруты.
func New(cfg conf.HttpServConf, rl conf.RateLimitConf, reports ReportService, health HealthChecker) *Server {
	servAdres := cfg.GetAddress()
	mux := chi.NewMux()
	srv := &Server{
		Address:       servAdres,
		router:        mux,
		reportService: reports,
		health:        health,
		limiter:       NewRateLimiter(rl.RequestsPerSecond, rl.Burst, rl.Idle()),
	}
	srv.server = &http.Server{
		Addr:              servAdres,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.setupRoutes(cfg.BaseURL, rl.TrustProxy)

	return srv
}

// Start запускает HTTP-сервер и блокирует поток до остановки.
func (s *Server) Start() error {
	slog.Info("server starting", "address", s.server.Addr)
	return s.server.ListenAndServe()
}

// setupRoutes настраивает middleware и HTTP-маршруты.
// Заголовки X-Forwarded-For и X-Real-IP учитываются только при trustProxy.
func (s *Server) setupRoutes(baseURL string, trustProxy bool) {
	s.router.Use(middleware.RequestID)
	if trustProxy {
		s.router.Use(middleware.RealIP)
	}
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)

	// Простейший health-check с проверкой базы.
	s.router.Get("/health", s.handleHealth)

	routes := func(r chi.Router) {
		r.Use(s.limiter.Middleware)

		// Маршруты статистики сообщений.
		r.Get("/messages/groups/today", s.handleTodayGroupCounts)
		r.Get("/messages/groups", s.handleGroupCounts)
		r.Get("/messages/daily", s.handleDailyCounts)
	}

	if baseURL == "" || baseURL == "/" {
		s.router.Group(routes)
		return
	}
	s.router.Route(baseURL, routes)
}

// Shutdown останавливает HTTP-сервер с таймаутом на корректное завершение.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// ---------- утилитарные функции ----------

// writeJSON сериализует структуру в JSON-ответ с нужным статусом.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

// mapDomainError переводит доменные ошибки в HTTP-статусы и коды ответа.
func mapDomainError(err error) (status int, code, msg string) {
	if err == nil {
		return http.StatusOK, "", ""
	}

	switch {
	case errors.Is(err, domain.ErrInvalidDate):
		return http.StatusBadRequest, "INVALID_DATE", err.Error()
	case errors.Is(err, domain.ErrInvalidRange):
		return http.StatusBadRequest, "INVALID_RANGE", err.Error()
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT", err.Error()
	case errors.Is(err, domain.ErrQuery):
		slog.Error("report query failed", "err", err.Error())
		return http.StatusInternalServerError, "QUERY_FAILED", "failed to query message statistics"
	default:
		slog.Warn("unmapped domain error", "err", err.Error())
		return http.StatusInternalServerError, "INTERNAL_ERROR", err.Error()
	}
}
