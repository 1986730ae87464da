package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rfp-studio/engine/internal/api/middleware"
	"github.com/rfp-studio/engine/internal/api/types"
	"github.com/rfp-studio/engine/internal/api/validators"
	"github.com/rfp-studio/engine/internal/models"
	appErr "github.com/rfp-studio/engine/pkg/errors"
	"github.com/rfp-studio/engine/pkg/logger"
	"github.com/rfp-studio/engine/pkg/utils"
	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, types.APIResponse{Success: false, Error: types.FromAppError(err)})
}

func writeErrorStr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, types.APIResponse{Success: false, Error: &types.APIError{Code: string(appErr.CodeInvalid), Message: msg}})
}

// writeAppError derives the status from the error code. Internal errors are logged
// with their cause and reported without it.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := types.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.L().Error("request failed",
			zap.String("id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, status, err)
}

func writeList(w http.ResponseWriter, data any, page utils.Page, total int64) {
	writeJSON(w, http.StatusOK, types.APIResponse{
		Success: true,
		Data:    data,
		Meta:    &types.Meta{Skip: page.Skip, Limit: page.Limit, Total: total},
	})
}

// decodeJSON reads a bounded JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := validators.New().Struct(dst); err != nil {
		writeErrorStr(w, http.StatusBadRequest, validators.Message(err))
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// currentUser returns the user stored by the auth middleware.
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	u := middleware.GetUser(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, appErr.New(appErr.CodeUnauthorized, "not authenticated"))
		return nil, false
	}
	return u, true
}

// pageFromQuery writes a 400 and reports false when skip or limit is out of range.
func pageFromQuery(w http.ResponseWriter, r *http.Request) (utils.Page, bool) {
	q := r.URL.Query()
	p, err := utils.ParsePage(q.Get("skip"), q.Get("limit"))
	if err != nil {
		writeErrorStr(w, http.StatusBadRequest, err.Error())
		return utils.Page{}, false
	}
	return p, true
}

func optionalUUIDQuery(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, errors.New("invalid " + name)
	}
	return &id, nil
}

func optionalStringQuery(r *http.Request, name string) *string {
	if v := r.URL.Query().Get(name); v != "" {
		return &v
	}
	return nil
}
