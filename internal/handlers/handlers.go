package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"seekite/internal/auth"
	mw "seekite/internal/middleware"
	"seekite/internal/service"
)

type Handler struct {
	svc           *service.Service
	auth          *auth.Service
	log           *slog.Logger
	secureCookies bool
}

func New(svc *service.Service, authSvc *auth.Service, logger *slog.Logger, secureCookies bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, auth: authSvc, log: logger, secureCookies: secureCookies}
}

// --- Response helpers ---

func respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func ok(w http.ResponseWriter, data interface{}) {
	respond(w, http.StatusOK, data)
}

func created(w http.ResponseWriter, data interface{}) {
	respond(w, http.StatusCreated, data)
}

func errResp(w http.ResponseWriter, status int, code service.Kind, msg string) {
	respond(w, status, map[string]string{"error": msg, "code": string(code)})
}

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error. Storage failures are logged and reported
// without their cause.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	de := service.AsDomainError(err)
	status := statusFor(de.Kind)
	if status == http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
		errResp(w, status, service.KindStorage, "server error")
		return
	}
	errResp(w, status, de.Kind, de.Message)
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	return nil
}

func caller(r *http.Request) auth.Caller {
	claims := mw.GetClaims(r)
	if claims == nil {
		return auth.Caller{}
	}
	return claims.Caller()
}

func (h *Handler) setTokenCookie(w http.ResponseWriter, r *http.Request, token string) {
	// Secure only over HTTPS, otherwise browsers drop the cookie on plain HTTP.
	isSecure := h.secureCookies || r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
	http.SetCookie(w, &http.Cookie{
		Name:     mw.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.auth.TTL().Seconds()),
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearTokenCookie(w http.ResponseWriter, r *http.Request) {
	isSecure := h.secureCookies || r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
	http.SetCookie(w, &http.Cookie{
		Name:     mw.TokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   isSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
