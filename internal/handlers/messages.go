package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"seekite/internal/db"
	"seekite/internal/service"
)

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.ListMessages(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, map[string]interface{}{"messages": msgs})
}

func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content   string  `json:"content"`
		ReplyToID *string `json:"reply_to_id"`
	}
	if err := decode(w, r, &req); err != nil {
		errResp(w, http.StatusBadRequest, service.KindValidation, "invalid request")
		return
	}

	msg, err := h.svc.PostMessage(r.Context(), caller(r), chi.URLParam(r, "id"), req.Content, req.ReplyToID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	created(w, map[string]interface{}{"message": msg})
}

// ToggleReaction answers 201 with the new reaction when added and 200 with
// the type when removed.
func (h *Handler) ToggleReaction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type string `json:"type"`
	}
	if err := decode(w, r, &req); err != nil {
		errResp(w, http.StatusBadRequest, service.KindValidation, "invalid request")
		return
	}

	res, err := h.svc.ToggleReaction(r.Context(), caller(r), chi.URLParam(r, "id"), req.Type)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if res.Action == db.ActionAdded {
		created(w, map[string]interface{}{"action": res.Action, "reaction": res.Reaction})
		return
	}
	ok(w, map[string]interface{}{"action": res.Action, "type": res.Type})
}
