package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rfp-studio/engine/internal/api/types"
	"github.com/rfp-studio/engine/internal/models"
	"github.com/rfp-studio/engine/internal/services"
	appErr "github.com/rfp-studio/engine/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) types.APIResponse {
	t.Helper()
	var body types.APIResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func rfpRouter(u *models.User, svc services.RFPService) http.Handler {
	return routerAs(u, func(r chi.Router) {
		r.Route("/api/rfps", NewRFPsHandler(svc).Routes)
	})
}

func TestRFPsHandler_Create(t *testing.T) {
	buyer := &models.User{ID: uuid.New(), Role: models.RoleBuyer, IsActive: true}

	t.Run("created", func(t *testing.T) {
		svc := &mockRFPService{}
		svc.On("CreateRFP", mock.Anything, buyer, mock.MatchedBy(func(in *services.CreateRFPInput) bool {
			return in.Title == "Laptops" && in.Description == "200 units" && len(in.Tags) == 1
		})).Return(&models.RFP{ID: uuid.New(), Title: "Laptops", Status: models.RFPStatusDraft}, nil).Once()

		rr := do(rfpRouter(buyer, svc), http.MethodPost, "/api/rfps", `{"title":"Laptops","description":"200 units","tags":["it"]}`)
		require.Equal(t, http.StatusCreated, rr.Code)
		body := decodeBody(t, rr)
		require.True(t, body.Success)
		svc.AssertExpectations(t)
	})

	t.Run("validation failure", func(t *testing.T) {
		svc := &mockRFPService{}
		rr := do(rfpRouter(buyer, svc), http.MethodPost, "/api/rfps", `{"description":"no title"}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
		body := decodeBody(t, rr)
		require.Contains(t, body.Error.Message, "title")
		svc.AssertNotCalled(t, "CreateRFP", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("malformed json", func(t *testing.T) {
		rr := do(rfpRouter(buyer, &mockRFPService{}), http.MethodPost, "/api/rfps", `{"title":`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rr := do(rfpRouter(nil, &mockRFPService{}), http.MethodPost, "/api/rfps", `{"title":"x","description":"y"}`)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestRFPsHandler_ErrorMapping(t *testing.T) {
	buyer := &models.User{ID: uuid.New(), Role: models.RoleBuyer, IsActive: true}
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"forbidden", appErr.New(appErr.CodeForbidden, "not enough permissions"), http.StatusForbidden, "forbidden"},
		{"not found", appErr.New(appErr.CodeNotFound, "rfp not found"), http.StatusNotFound, "not_found"},
		{"conflict", appErr.New(appErr.CodeConflict, "modified concurrently"), http.StatusConflict, "conflict"},
		{"invalid state", appErr.New(appErr.CodeInvalidState, "cannot change rfp status"), http.StatusConflict, "invalid_state"},
		{"invalid", appErr.New(appErr.CodeInvalid, "invalid rfp status"), http.StatusBadRequest, "invalid"},
		{"unexpected", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id := uuid.New()
			svc := &mockRFPService{}
			svc.On("UpdateRFP", mock.Anything, buyer, id, mock.Anything).Return(nil, tc.err).Once()

			rr := do(rfpRouter(buyer, svc), http.MethodPut, "/api/rfps/"+id.String(), `{"status":"Published"}`)
			require.Equal(t, tc.status, rr.Code)
			body := decodeBody(t, rr)
			require.False(t, body.Success)
			require.Equal(t, tc.code, body.Error.Code)
			require.NotContains(t, body.Error.Message, "pq:")
		})
	}
}

func TestRFPsHandler_UpdatePassesStatus(t *testing.T) {
	buyer := &models.User{ID: uuid.New(), Role: models.RoleBuyer, IsActive: true}
	id := uuid.New()
	svc := &mockRFPService{}
	svc.On("UpdateRFP", mock.Anything, buyer, id, mock.MatchedBy(func(in *services.UpdateRFPInput) bool {
		return in.Status != nil && *in.Status == models.RFPStatusUnderReview && in.Title == nil
	})).Return(&models.RFP{ID: id, Status: models.RFPStatusUnderReview}, nil).Once()

	rr := do(rfpRouter(buyer, svc), http.MethodPut, "/api/rfps/"+id.String(), `{"status":"Under Review"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)

	rr = do(rfpRouter(buyer, svc), http.MethodPut, "/api/rfps/"+id.String(), `{"status":"Archived"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(rfpRouter(buyer, svc), http.MethodPut, "/api/rfps/not-a-uuid", `{"title":"x"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRFPsHandler_Responses(t *testing.T) {
	buyer := &models.User{ID: uuid.New(), Role: models.RoleBuyer, IsActive: true}
	supplier := &models.User{ID: uuid.New(), Role: models.RoleSupplier, IsActive: true}
	rfpID := uuid.New()

	t.Run("submit", func(t *testing.T) {
		svc := &mockRFPService{}
		svc.On("SubmitResponse", mock.Anything, supplier, rfpID, map[string]any{"price": float64(1200)}).
			Return(&models.Response{ID: models.ResponseID(rfpID, supplier.ID), Status: models.ResponseStatusSubmitted}, nil).Once()

		rr := do(rfpRouter(supplier, svc), http.MethodPost, "/api/rfps/"+rfpID.String()+"/responses", `{"content":{"price":1200}}`)
		require.Equal(t, http.StatusCreated, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("duplicate submit", func(t *testing.T) {
		svc := &mockRFPService{}
		svc.On("SubmitResponse", mock.Anything, supplier, rfpID, mock.Anything).
			Return(nil, appErr.New(appErr.CodeConflict, "you have already submitted a response to this rfp")).Once()

		rr := do(rfpRouter(supplier, svc), http.MethodPost, "/api/rfps/"+rfpID.String()+"/responses", `{"content":{}}`)
		require.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("review", func(t *testing.T) {
		svc := &mockRFPService{}
		svc.On("UpdateResponseStatus", mock.Anything, buyer, rfpID, supplier.ID, mock.MatchedBy(func(in *services.UpdateResponseStatusInput) bool {
			return in.Status == models.ResponseStatusApproved && in.Feedback != nil && *in.Feedback == "ok"
		})).Return(&models.Response{Status: models.ResponseStatusApproved}, nil).Once()

		rr := do(rfpRouter(buyer, svc), http.MethodPut, "/api/rfps/"+rfpID.String()+"/responses/"+supplier.ID.String(), `{"status":"Approved","feedback":"ok"}`)
		require.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("list", func(t *testing.T) {
		svc := &mockRFPService{}
		svc.On("ListResponses", mock.Anything, buyer, rfpID).Return([]models.Response{{SupplierID: supplier.ID}}, nil).Once()

		rr := do(rfpRouter(buyer, svc), http.MethodGet, "/api/rfps/"+rfpID.String()+"/responses", "")
		require.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		require.Equal(t, int64(1), body.Meta.Total)
	})
}

func TestRFPsHandler_ListPaging(t *testing.T) {
	supplier := &models.User{ID: uuid.New(), Role: models.RoleSupplier, IsActive: true}
	svc := &mockRFPService{}
	svc.On("ListRFPs", mock.Anything, supplier, mock.MatchedBy(func(f *services.RFPFilters) bool {
		return f.Page.Skip == 20 && f.Page.Limit == 50 && f.Category != nil && *f.Category == "it"
	})).Return([]models.RFP{}, int64(42), nil).Once()

	rr := do(rfpRouter(supplier, svc), http.MethodGet, "/api/rfps?skip=20&limit=50&category=it", "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	require.Equal(t, 20, body.Meta.Skip)
	require.Equal(t, 50, body.Meta.Limit)
	require.Equal(t, int64(42), body.Meta.Total)
}

func TestRFPsHandler_ListRejectsBadQuery(t *testing.T) {
	buyer := &models.User{ID: uuid.New(), Role: models.RoleBuyer, IsActive: true}
	for name, target := range map[string]string{
		"unknown status": "/api/rfps?status=Bogus",
		"limit too big":  "/api/rfps?limit=500",
		"negative skip":  "/api/rfps?skip=-1",
		"zero limit":     "/api/rfps?limit=0",
	} {
		t.Run(name, func(t *testing.T) {
			svc := &mockRFPService{}
			rr := do(rfpRouter(buyer, svc), http.MethodGet, target, "")
			require.Equal(t, http.StatusBadRequest, rr.Code)
			require.False(t, decodeBody(t, rr).Success)
			svc.AssertNotCalled(t, "ListRFPs", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRFPsHandler_ListStatusFilter(t *testing.T) {
	buyer := &models.User{ID: uuid.New(), Role: models.RoleBuyer, IsActive: true}
	svc := &mockRFPService{}
	svc.On("ListRFPs", mock.Anything, buyer, mock.MatchedBy(func(f *services.RFPFilters) bool {
		return f.Status != nil && *f.Status == models.RFPStatusUnderReview
	})).Return([]models.RFP{}, int64(0), nil).Once()

	rr := do(rfpRouter(buyer, svc), http.MethodGet, "/api/rfps?status=Under+Review", "")
	require.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestNotificationsHandler_Routes(t *testing.T) {
	user := &models.User{ID: uuid.New(), Role: models.RoleSupplier, IsActive: true}
	router := func(svc services.NotificationService) http.Handler {
		return routerAs(user, func(r chi.Router) {
			r.Route("/api/notifications", NewNotificationsHandler(svc).Routes)
		})
	}

	t.Run("read-all is not an id", func(t *testing.T) {
		svc := &mockNotificationService{}
		svc.On("MarkAllRead", mock.Anything, user).Return(int64(4), nil).Once()

		rr := do(router(svc), http.MethodPut, "/api/notifications/read-all", "")
		require.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		require.Equal(t, map[string]any{"modified": float64(4)}, body.Data)
		svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("update by id", func(t *testing.T) {
		id := uuid.New()
		svc := &mockNotificationService{}
		svc.On("Update", mock.Anything, user, id, mock.MatchedBy(func(in *services.UpdateNotificationInput) bool {
			return in.IsRead != nil && *in.IsRead && in.IsSent == nil
		})).Return(&models.Notification{ID: id, IsRead: true}, nil).Once()

		rr := do(router(svc), http.MethodPut, "/api/notifications/"+id.String(), `{"is_read":true}`)
		require.Equal(t, http.StatusOK, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("list filters unread", func(t *testing.T) {
		svc := &mockNotificationService{}
		svc.On("List", mock.Anything, user, mock.MatchedBy(func(f *services.NotificationFilters) bool {
			return f.IsRead != nil && !*f.IsRead
		})).Return([]models.Notification{}, int64(0), nil).Once()

		rr := do(router(svc), http.MethodGet, "/api/notifications?is_read=false", "")
		require.Equal(t, http.StatusOK, rr.Code)

		rr = do(router(svc), http.MethodGet, "/api/notifications?is_read=maybe", "")
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("create for someone else", func(t *testing.T) {
		target := uuid.New()
		svc := &mockNotificationService{}
		svc.On("CreateAs", mock.Anything, user, mock.MatchedBy(func(in *services.CreateNotificationInput) bool {
			return in.UserID == target && in.Type == models.NotificationInApp
		})).Return(nil, appErr.New(appErr.CodeForbidden, "not enough permissions")).Once()

		rr := do(router(svc), http.MethodPost, "/api/notifications",
			`{"user_id":"`+target.String()+`","type":"in_app","title":"hi","message":"there"}`)
		require.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestDocumentsHandler_Download(t *testing.T) {
	user := &models.User{ID: uuid.New(), Role: models.RoleSupplier, IsActive: true}
	id := uuid.New()
	doc := &models.Document{ID: id, OriginalFilename: "quote final.pdf", ContentType: "application/pdf", UpdatedAt: time.Now()}
	svc := &mockDocumentService{}
	svc.On("Open", mock.Anything, user, id).Return(doc, nopSeekCloser{bytes.NewReader([]byte("%PDF"))}, nil).Once()

	h := routerAs(user, func(r chi.Router) {
		r.Route("/api/documents", NewDocumentsHandler(svc, 1<<20).Routes)
	})
	rr := do(h, http.MethodGet, "/api/documents/"+id.String()+"/download", "")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	require.Equal(t, `attachment; filename="quote final.pdf"`, rr.Header().Get("Content-Disposition"))
	require.Equal(t, "%PDF", rr.Body.String())
}

func TestDocumentsHandler_Upload(t *testing.T) {
	user := &models.User{ID: uuid.New(), Role: models.RoleBuyer, IsActive: true}
	rfpID := uuid.New()

	form := func(fields map[string]string, withFile bool) (*bytes.Buffer, string) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		for k, v := range fields {
			_ = mw.WriteField(k, v)
		}
		if withFile {
			fw, _ := mw.CreateFormFile("file", "specs.txt")
			_, _ = fw.Write([]byte("line items"))
		}
		_ = mw.Close()
		return &buf, mw.FormDataContentType()
	}
	send := func(svc services.DocumentService, body *bytes.Buffer, ct string) *httptest.ResponseRecorder {
		h := routerAs(user, func(r chi.Router) {
			r.Route("/api/documents", NewDocumentsHandler(svc, 1<<20).Routes)
		})
		req := httptest.NewRequest(http.MethodPost, "/api/documents/upload", body)
		req.Header.Set("Content-Type", ct)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	t.Run("stores the file", func(t *testing.T) {
		svc := &mockDocumentService{}
		svc.On("Upload", mock.Anything, user, mock.MatchedBy(func(in *services.UploadDocumentInput) bool {
			return in.OriginalFilename == "specs.txt" && in.RFPID != nil && *in.RFPID == rfpID && in.IsPublic
		})).Return(&models.Document{ID: uuid.New(), OriginalFilename: "specs.txt"}, nil).Once()

		body, ct := form(map[string]string{"rfp_id": rfpID.String(), "is_public": "true"}, true)
		rr := send(svc, body, ct)
		require.Equal(t, http.StatusCreated, rr.Code)
		svc.AssertExpectations(t)
	})

	t.Run("missing file", func(t *testing.T) {
		body, ct := form(map[string]string{"rfp_id": rfpID.String()}, false)
		rr := send(&mockDocumentService{}, body, ct)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("bad rfp id", func(t *testing.T) {
		body, ct := form(map[string]string{"rfp_id": "nope"}, true)
		rr := send(&mockDocumentService{}, body, ct)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAuthHandler(t *testing.T) {
	routes := func(svc services.AuthService, u *models.User) http.Handler {
		h := NewAuthHandler(svc)
		return routerAs(u, func(r chi.Router) {
			r.Post("/api/users/register", h.Register)
			r.Post("/api/users/login", h.Login)
			r.Get("/api/users/me", h.Me)
			r.Put("/api/users/me", h.UpdateMe)
		})
	}

	t.Run("register", func(t *testing.T) {
		svc := &mockAuthService{}
		svc.On("Register", mock.Anything, mock.MatchedBy(func(in *services.RegisterInput) bool {
			return in.Email == "a@example.com" && in.Role == models.RoleSupplier
		})).Return(&models.User{ID: uuid.New(), Email: "a@example.com", PasswordHash: "secret-hash"}, nil).Once()

		rr := do(routes(svc, nil), http.MethodPost, "/api/users/register",
			`{"email":"a@example.com","username":"alice","password":"password1","role":"Supplier"}`)
		require.Equal(t, http.StatusCreated, rr.Code)
		require.NotContains(t, rr.Body.String(), "secret-hash")
	})

	t.Run("register rejects unknown role", func(t *testing.T) {
		rr := do(routes(&mockAuthService{}, nil), http.MethodPost, "/api/users/register",
			`{"email":"a@example.com","username":"alice","password":"password1","role":"Admin"}`)
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("login failure", func(t *testing.T) {
		svc := &mockAuthService{}
		svc.On("Login", mock.Anything, "a@example.com", "wrong-pass").Return(nil, appErr.New(appErr.CodeUnauthorized, "invalid credentials")).Once()

		rr := do(routes(svc, nil), http.MethodPost, "/api/users/login", `{"email":"a@example.com","password":"wrong-pass"}`)
		require.Equal(t, http.StatusUnauthorized, rr.Code)
		require.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
	})

	t.Run("me", func(t *testing.T) {
		u := &models.User{ID: uuid.New(), Email: "me@example.com", Role: models.RoleBuyer, IsActive: true}
		rr := do(routes(&mockAuthService{}, u), http.MethodGet, "/api/users/me", "")
		require.Equal(t, http.StatusOK, rr.Code)
		require.Contains(t, rr.Body.String(), "me@example.com")
	})
}
