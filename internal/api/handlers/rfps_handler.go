package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rfp-studio/engine/internal/api/types"
	"github.com/rfp-studio/engine/internal/models"
	"github.com/rfp-studio/engine/internal/services"
	"github.com/rfp-studio/engine/pkg/utils"
)

// RFPsHandler serves RFPs and the responses filed against them.
type RFPsHandler struct {
	svc services.RFPService
}

func NewRFPsHandler(svc services.RFPService) *RFPsHandler {
	return &RFPsHandler{svc: svc}
}

func (h *RFPsHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Put("/{id}", h.Update)
	r.Get("/{id}/responses", h.ListResponses)
	r.Post("/{id}/responses", h.SubmitResponse)
	r.Put("/{id}/responses/{supplier_id}", h.UpdateResponseStatus)
}

func (h *RFPsHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	filters := &services.RFPFilters{
		Category: optionalStringQuery(r, "category"),
		Page:     page,
	}
	if s := optionalStringQuery(r, "status"); s != nil {
		status := models.RFPStatus(*s)
		if !status.Valid() {
			writeErrorStr(w, http.StatusBadRequest, "invalid status")
			return
		}
		filters.Status = &status
	}

	items, total, err := h.svc.ListRFPs(r.Context(), u, filters)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, items, filters.Page, total)
}

func (h *RFPsHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req types.RFPCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	rfp, err := h.svc.CreateRFP(r.Context(), u, &services.CreateRFPInput{
		Title:        req.Title,
		Description:  req.Description,
		Requirements: req.Requirements,
		Deadline:     req.Deadline,
		Category:     req.Category,
		Tags:         req.Tags,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: rfp})
}

func (h *RFPsHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	rfp, err := h.svc.GetRFP(r.Context(), u, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: rfp})
}

func (h *RFPsHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req types.RFPUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input := &services.UpdateRFPInput{
		Title:        req.Title,
		Description:  req.Description,
		Requirements: req.Requirements,
		Deadline:     req.Deadline,
		Category:     req.Category,
		Tags:         req.Tags,
	}
	if req.Status != nil {
		status := models.RFPStatus(*req.Status)
		input.Status = &status
	}

	rfp, err := h.svc.UpdateRFP(r.Context(), u, id, input)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: rfp})
}

func (h *RFPsHandler) SubmitResponse(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	var req types.ResponseCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.svc.SubmitResponse(r.Context(), u, id, req.Content)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: resp})
}

func (h *RFPsHandler) ListResponses(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	items, err := h.svc.ListResponses(r.Context(), u, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, items, utils.Page{Limit: len(items)}, int64(len(items)))
}

func (h *RFPsHandler) UpdateResponseStatus(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}
	supplierID, ok := uuidParam(w, r, "supplier_id")
	if !ok {
		return
	}
	var req types.ResponseStatusUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.svc.UpdateResponseStatus(r.Context(), u, id, supplierID, &services.UpdateResponseStatusInput{
		Status:   models.ResponseStatus(req.Status),
		Feedback: req.Feedback,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: resp})
}
