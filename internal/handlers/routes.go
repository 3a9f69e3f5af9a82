package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	mw "seekite/internal/middleware"
)

type RouterConfig struct {
	Logger *slog.Logger
	Store  Pinger
	// Auth endpoints allow AuthBurst requests, then AuthPerMinute per minute.
	AuthPerMinute int
	AuthBurst     int
}

func (h *Handler) Router(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.CleanPath)

	if cfg.AuthPerMinute <= 0 {
		cfg.AuthPerMinute = 10
	}
	if cfg.AuthBurst <= 0 {
		cfg.AuthBurst = 5
	}
	authLimiter := mw.RateLimitByIP(rate.Every(time.Minute/time.Duration(cfg.AuthPerMinute)), cfg.AuthBurst)

	// Public API
	r.Get("/api/health", Health(cfg.Store))
	r.Get("/api/auth/check", h.CheckName)
	r.With(authLimiter).Post("/api/auth/signup", h.Signup)
	r.With(authLimiter).Post("/api/auth/login", h.Login)
	r.Post("/api/auth/logout", h.Logout)

	// Authenticated API
	r.Group(func(r chi.Router) {
		r.Use(mw.Auth(h.auth, h.svc))

		r.Get("/api/auth/me", h.Me)
		r.Delete("/api/auth/withdraw", h.Withdraw)

		r.Get("/api/members", h.ListMembers)

		r.Get("/api/topics", h.ListTopics)
		r.Post("/api/topics", h.CreateTopic)
		r.Get("/api/topics/{id}", h.GetTopic)
		r.Delete("/api/topics/{id}", h.DeleteTopic)
		r.Post("/api/topics/{id}/read", h.MarkRead)
		r.Get("/api/topics/{id}/unread", h.UnreadCount)
		r.Get("/api/topics/{id}/messages", h.ListMessages)
		r.Post("/api/topics/{id}/messages", h.PostMessage)

		r.Post("/api/messages/{id}/reactions", h.ToggleReaction)
	})

	return r
}
