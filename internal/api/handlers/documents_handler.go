package handlers

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rfp-studio/engine/internal/api/types"
	"github.com/rfp-studio/engine/internal/services"
	"github.com/rfp-studio/engine/pkg/logger"
	"go.uber.org/zap"
)

// multipartOverhead leaves room for form fields and boundaries around the file part.
const multipartOverhead = 1 << 20

type DocumentsHandler struct {
	svc      services.DocumentService
	maxBytes int64
}

func NewDocumentsHandler(svc services.DocumentService, maxUploadBytes int64) *DocumentsHandler {
	return &DocumentsHandler{svc: svc, maxBytes: maxUploadBytes}
}

func (h *DocumentsHandler) Routes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/upload", h.Upload)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/download", h.Download)
}

func (h *DocumentsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorStr(w, http.StatusBadRequest, "file exceeds maximum upload size")
			return
		}
		writeErrorStr(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.L().Warn("remove multipart temp files failed", zap.Error(err))
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	input := &services.UploadDocumentInput{
		File:             file,
		OriginalFilename: header.Filename,
		ContentType:      header.Header.Get("Content-Type"),
	}
	if raw := r.FormValue("rfp_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeErrorStr(w, http.StatusBadRequest, "invalid rfp_id")
			return
		}
		input.RFPID = &id
	}
	if raw := r.FormValue("response_id"); raw != "" {
		input.ResponseID = &raw
	}
	if raw := r.FormValue("is_public"); raw != "" {
		public, err := strconv.ParseBool(raw)
		if err != nil {
			writeErrorStr(w, http.StatusBadRequest, "invalid is_public")
			return
		}
		input.IsPublic = public
	}

	doc, err := h.svc.Upload(r.Context(), u, input)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, types.APIResponse{Success: true, Data: doc})
}

func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	rfpID, err := optionalUUIDQuery(r, "rfp_id")
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, err.Error())
		return
	}
	page, ok := pageFromQuery(w, r)
	if !ok {
		return
	}
	filters := &services.DocumentFilters{
		RFPID:      rfpID,
		ResponseID: optionalStringQuery(r, "response_id"),
		Page:       page,
	}

	items, total, err := h.svc.List(r.Context(), u, filters)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeList(w, items, filters.Page, total)
}

func (h *DocumentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	doc, err := h.svc.Get(r.Context(), u, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.APIResponse{Success: true, Data: doc})
}

func (h *DocumentsHandler) Download(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id")
	if !ok {
		return
	}

	doc, content, err := h.svc.Open(r.Context(), u, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.OriginalFilename}))
	http.ServeContent(w, r, doc.OriginalFilename, doc.UpdatedAt, content)
}
