package handlers

import (
	"net/http"

	mw "seekite/internal/middleware"
	"seekite/internal/service"
)

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		PIN   string `json:"pin"`
		Color string `json:"color"`
	}
	if err := decode(w, r, &req); err != nil {
		errResp(w, http.StatusBadRequest, service.KindValidation, "invalid request")
		return
	}

	sess, err := h.svc.Signup(r.Context(), req.Name, req.PIN, req.Color)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.setTokenCookie(w, r, sess.Token)
	created(w, sess)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
		PIN  string `json:"pin"`
	}
	if err := decode(w, r, &req); err != nil {
		errResp(w, http.StatusBadRequest, service.KindValidation, "invalid request")
		return
	}

	sess, err := h.svc.Login(r.Context(), req.Name, req.PIN)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.setTokenCookie(w, r, sess.Token)
	ok(w, sess)
}

// Logout revokes whatever valid token the request carries. It succeeds even
// without one so clients can always clear their cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if claims, err := h.auth.ResolveCaller(r.Context(), mw.TokenFromRequest(r)); err == nil {
		if err := h.auth.Revoke(r.Context(), claims); err != nil {
			h.log.WarnContext(r.Context(), "revoke token", "err", err)
		}
	}
	h.clearTokenCookie(w, r)
	ok(w, map[string]bool{"success": true})
}

func (h *Handler) CheckName(w http.ResponseWriter, r *http.Request) {
	exists, err := h.svc.CheckName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, map[string]bool{"exists": exists})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Me(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, map[string]interface{}{"member": m})
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Withdraw(r.Context(), caller(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.auth.Revoke(r.Context(), mw.GetClaims(r)); err != nil {
		h.log.WarnContext(r.Context(), "revoke token after withdrawal", "err", err)
	}
	h.clearTokenCookie(w, r)
	ok(w, map[string]bool{"success": true})
}
