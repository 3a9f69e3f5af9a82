package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"seekite/internal/auth"
)

type contextKey string

const CallerClaimsKey contextKey = "caller_claims"

// TokenCookie is the cookie carrying the session token.
const TokenCookie = "seekite_token"

// TokenFromRequest reads the session token from the cookie or a Bearer header.
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// MemberChecker confirms the member named by a token still exists.
type MemberChecker interface {
	MemberExists(ctx context.Context, memberID string) (bool, error)
}

// Auth resolves the caller from the cookie or bearer token. When members is
// non-nil, tokens of withdrawn members are rejected too.
func Auth(svc *auth.Service, members MemberChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := svc.ResolveCaller(r.Context(), TokenFromRequest(r))
			if err != nil {
				if !errors.Is(err, auth.ErrUnauthenticated) {
					slog.ErrorContext(r.Context(), "resolve caller", "err", err)
					writeJSONError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "server error")
					return
				}
				writeJSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "unauthorized")
				return
			}
			if members != nil {
				exists, err := members.MemberExists(r.Context(), claims.MemberID)
				if err != nil {
					slog.ErrorContext(r.Context(), "look up member", "err", err)
					writeJSONError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "server error")
					return
				}
				if !exists {
					writeJSONError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "unauthorized")
					return
				}
			}
			ctx := context.WithValue(r.Context(), CallerClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClaims(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(CallerClaimsKey).(*auth.Claims)
	return claims
}

func writeJSONError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `","code":"` + code + `"}`))
}

// --- Per-IP rate limiter ---

type ipRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	r        rate.Limit
	b        int
}

// RateLimitByIP allows b requests in a burst and r per second after that,
// tracked per remote IP.
func RateLimitByIP(r rate.Limit, b int) func(http.Handler) http.Handler {
	rl := &ipRateLimiter{
		limiters: make(map[string]*rate.Limiter),
		r:        r,
		b:        b,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ip := req.RemoteAddr
			if h, _, err := net.SplitHostPort(ip); err == nil {
				ip = h
			}
			if !rl.get(ip).Allow() {
				writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}

func (rl *ipRateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if l, ok := rl.limiters[ip]; ok {
		return l
	}
	l := rate.NewLimiter(rl.r, rl.b)
	rl.limiters[ip] = l
	return l
}

// RequestLogger logs one structured line per request.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(r.Context(), level, "request",
				slog.String("request_id", chimw.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}
