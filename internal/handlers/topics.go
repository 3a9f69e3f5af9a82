package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"seekite/internal/service"
)

func (h *Handler) ListTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.svc.ListTopics(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, map[string]interface{}{"topics": topics})
}

func (h *Handler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	var req service.TopicInput
	if err := decode(w, r, &req); err != nil {
		errResp(w, http.StatusBadRequest, service.KindValidation, "invalid request")
		return
	}
	topic, err := h.svc.CreateTopic(r.Context(), caller(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	created(w, map[string]interface{}{"topic": topic})
}

func (h *Handler) GetTopic(w http.ResponseWriter, r *http.Request) {
	topic, err := h.svc.GetTopic(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, map[string]interface{}{"topic": topic})
}

func (h *Handler) DeleteTopic(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTopic(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, map[string]bool{"success": true})
}

func (h *Handler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkRead(r.Context(), caller(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, map[string]bool{"success": true})
}

func (h *Handler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UnreadCount(r.Context(), caller(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok(w, map[string]int{"unread_count": n})
}
