package handlers

import (
	"context"
	"io"
	"net/http"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rfp-studio/engine/internal/api/middleware"
	"github.com/rfp-studio/engine/internal/models"
	"github.com/rfp-studio/engine/internal/services"
	"github.com/rfp-studio/engine/pkg/logger"
	"github.com/stretchr/testify/mock"
)

func TestMain(m *testing.M) {
	_, err := logger.Init("info", "json")
	if err != nil {
		panic("failed to init logger: " + err.Error())
	}
	os.Exit(m.Run())
}

// routerAs mounts routes behind a stand-in for the auth middleware.
func routerAs(u *models.User, mount func(r chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if u != nil {
				req = req.WithContext(middleware.WithUser(req.Context(), u))
			}
			next.ServeHTTP(w, req)
		})
	})
	mount(r)
	return r
}

type mockRFPService struct {
	mock.Mock
}

var _ services.RFPService = (*mockRFPService)(nil)

func (m *mockRFPService) CreateRFP(ctx context.Context, actor *models.User, input *services.CreateRFPInput) (*models.RFP, error) {
	args := m.Called(ctx, actor, input)
	if v := args.Get(0); v != nil {
		return v.(*models.RFP), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRFPService) ListRFPs(ctx context.Context, actor *models.User, filters *services.RFPFilters) ([]models.RFP, int64, error) {
	args := m.Called(ctx, actor, filters)
	if v := args.Get(0); v != nil {
		return v.([]models.RFP), args.Get(1).(int64), args.Error(2)
	}
	return nil, 0, args.Error(2)
}

func (m *mockRFPService) GetRFP(ctx context.Context, actor *models.User, rfpID uuid.UUID) (*models.RFP, error) {
	args := m.Called(ctx, actor, rfpID)
	if v := args.Get(0); v != nil {
		return v.(*models.RFP), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRFPService) UpdateRFP(ctx context.Context, actor *models.User, rfpID uuid.UUID, input *services.UpdateRFPInput) (*models.RFP, error) {
	args := m.Called(ctx, actor, rfpID, input)
	if v := args.Get(0); v != nil {
		return v.(*models.RFP), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRFPService) SubmitResponse(ctx context.Context, actor *models.User, rfpID uuid.UUID, content map[string]any) (*models.Response, error) {
	args := m.Called(ctx, actor, rfpID, content)
	if v := args.Get(0); v != nil {
		return v.(*models.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRFPService) ListResponses(ctx context.Context, actor *models.User, rfpID uuid.UUID) ([]models.Response, error) {
	args := m.Called(ctx, actor, rfpID)
	if v := args.Get(0); v != nil {
		return v.([]models.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRFPService) UpdateResponseStatus(ctx context.Context, actor *models.User, rfpID, supplierID uuid.UUID, input *services.UpdateResponseStatusInput) (*models.Response, error) {
	args := m.Called(ctx, actor, rfpID, supplierID, input)
	if v := args.Get(0); v != nil {
		return v.(*models.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockNotificationService struct {
	mock.Mock
}

var _ services.NotificationService = (*mockNotificationService)(nil)

func (m *mockNotificationService) Create(ctx context.Context, input *services.CreateNotificationInput) (*models.Notification, error) {
	args := m.Called(ctx, input)
	if v := args.Get(0); v != nil {
		return v.(*models.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationService) CreateAs(ctx context.Context, actor *models.User, input *services.CreateNotificationInput) (*models.Notification, error) {
	args := m.Called(ctx, actor, input)
	if v := args.Get(0); v != nil {
		return v.(*models.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationService) Send(ctx context.Context, notificationID uuid.UUID) bool {
	args := m.Called(ctx, notificationID)
	return args.Bool(0)
}

func (m *mockNotificationService) Get(ctx context.Context, actor *models.User, notificationID uuid.UUID) (*models.Notification, error) {
	args := m.Called(ctx, actor, notificationID)
	if v := args.Get(0); v != nil {
		return v.(*models.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationService) List(ctx context.Context, actor *models.User, filters *services.NotificationFilters) ([]models.Notification, int64, error) {
	args := m.Called(ctx, actor, filters)
	if v := args.Get(0); v != nil {
		return v.([]models.Notification), args.Get(1).(int64), args.Error(2)
	}
	return nil, 0, args.Error(2)
}

func (m *mockNotificationService) Update(ctx context.Context, actor *models.User, notificationID uuid.UUID, input *services.UpdateNotificationInput) (*models.Notification, error) {
	args := m.Called(ctx, actor, notificationID, input)
	if v := args.Get(0); v != nil {
		return v.(*models.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationService) MarkRead(ctx context.Context, actor *models.User, notificationID uuid.UUID) (*models.Notification, error) {
	args := m.Called(ctx, actor, notificationID)
	if v := args.Get(0); v != nil {
		return v.(*models.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationService) MarkAllRead(ctx context.Context, actor *models.User) (int64, error) {
	args := m.Called(ctx, actor)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockNotificationService) FanOutNewRFP(ctx context.Context, rfp *models.RFP) (*services.FanOutResult, error) {
	args := m.Called(ctx, rfp)
	if v := args.Get(0); v != nil {
		return v.(*services.FanOutResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockNotificationService) NotifyResponseSubmitted(ctx context.Context, rfp *models.RFP, supplierID uuid.UUID) error {
	args := m.Called(ctx, rfp, supplierID)
	return args.Error(0)
}

func (m *mockNotificationService) NotifyResponseStatusChanged(ctx context.Context, rfp *models.RFP, supplierID uuid.UUID, status models.ResponseStatus) error {
	args := m.Called(ctx, rfp, supplierID, status)
	return args.Error(0)
}

type mockDocumentService struct {
	mock.Mock
}

var _ services.DocumentService = (*mockDocumentService)(nil)

func (m *mockDocumentService) Upload(ctx context.Context, actor *models.User, input *services.UploadDocumentInput) (*models.Document, error) {
	args := m.Called(ctx, actor, input)
	if v := args.Get(0); v != nil {
		return v.(*models.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDocumentService) List(ctx context.Context, actor *models.User, filters *services.DocumentFilters) ([]models.Document, int64, error) {
	args := m.Called(ctx, actor, filters)
	if v := args.Get(0); v != nil {
		return v.([]models.Document), args.Get(1).(int64), args.Error(2)
	}
	return nil, 0, args.Error(2)
}

func (m *mockDocumentService) Get(ctx context.Context, actor *models.User, documentID uuid.UUID) (*models.Document, error) {
	args := m.Called(ctx, actor, documentID)
	if v := args.Get(0); v != nil {
		return v.(*models.Document), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDocumentService) Open(ctx context.Context, actor *models.User, documentID uuid.UUID) (*models.Document, io.ReadSeekCloser, error) {
	args := m.Called(ctx, actor, documentID)
	if v := args.Get(0); v != nil {
		return v.(*models.Document), args.Get(1).(io.ReadSeekCloser), args.Error(2)
	}
	return nil, nil, args.Error(2)
}

type mockAuthService struct {
	mock.Mock
}

var _ services.AuthService = (*mockAuthService)(nil)

func (m *mockAuthService) Register(ctx context.Context, input *services.RegisterInput) (*models.User, error) {
	args := m.Called(ctx, input)
	if v := args.Get(0); v != nil {
		return v.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*services.LoginResult, error) {
	args := m.Called(ctx, email, password)
	if v := args.Get(0); v != nil {
		return v.(*services.LoginResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthService) UpdateProfile(ctx context.Context, actor *models.User, input *services.UpdateProfileInput) (*models.User, error) {
	args := m.Called(ctx, actor, input)
	if v := args.Get(0); v != nil {
		return v.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

type nopSeekCloser struct {
	io.ReadSeeker
}

func (nopSeekCloser) Close() error { return nil }
