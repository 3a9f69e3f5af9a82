package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is satisfied by *db.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.ListMembers(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, map[string]interface{}{"members": members})
}

// Health reports whether the store answers within two seconds.
func Health(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.PingContext(ctx); err != nil {
			respond(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		ok(w, map[string]string{"status": "ok"})
	}
}
