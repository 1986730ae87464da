package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rfp-studio/engine/internal/api/types"
	"github.com/rfp-studio/engine/internal/models"
	"github.com/rfp-studio/engine/internal/services"
)

type NotificationsHandler struct {
	svc services.NotificationService
}

func NewNotificationsHandler(svc services.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{svc: svc}
}

// Routes registers read-all ahead of {id} so it is never taken for an id.
func (h *NotificationsHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/read-all", h.MarkAllRead)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
}

func (h *NotificationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req types.NotificationCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	n, err := h.svc.CreateAs(r.Context(), u, &services.CreateNotificationInput{
		UserID:          uuid.MustParse(req.UserID),
		Type:            models.NotificationType(req.Type),
		Title:           req.Title,
		Message:         req.Message,
		Data:            req.Data,
		SendImmediately: req.SendImmediately,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: n})
}

func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	filters := &services.NotificationFilters{Page: page}
	if raw := r.URL.Query().Get("is_read"); raw != "" {
		read, err := strconv.ParseBool(raw)
		if err != nil {
			writeErrorStr(w, http.StatusBadRequest, "invalid is_read")
			return
		}
		filters.IsRead = &read
	}

	items, total, err := h.svc.List(r.Context(), u, filters)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, items, filters.Page, total)
}

func (h *NotificationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	n, err := h.svc.Get(r.Context(), u, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: n})
}

func (h *NotificationsHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req types.NotificationUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	n, err := h.svc.Update(r.Context(), u, id, &services.UpdateNotificationInput{IsRead: req.IsRead, IsSent: req.IsSent})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: n})
}

func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	modified, err := h.svc.MarkAllRead(r.Context(), u)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: map[string]int64{"modified": modified}})
}
