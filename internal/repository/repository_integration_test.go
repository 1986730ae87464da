package repository

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/rfp-studio/engine/internal/models"
	"github.com/rfp-studio/engine/pkg/database"
	"github.com/rfp-studio/engine/pkg/logger"
	"github.com/rfp-studio/engine/pkg/utils"
)

// setupTestDB starts a postgres container and migrates the schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}
	if _, err := logger.Init("info", "json"); err != nil {
		t.Fatalf("init logger: %v", err)
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("rfp_test"),
		postgres.WithUsername("rfp"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.OpenPostgres(ctx, dsn, "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.RFP{}, &models.Document{}, &models.Notification{}))
	return db
}

func seedUser(t *testing.T, repo UserRepository, role models.Role) *models.User {
	t.Helper()
	u := &models.User{
		Email:        uuid.NewString() + "@example.com",
		Username:     "user",
		PasswordHash: "x",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestRepositoriesIntegration(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	users := NewUserRepository(db)
	rfps := NewRFPRepository(db)
	docs := NewDocumentRepository(db)
	notifs := NewNotificationRepository(db)

	buyer := seedUser(t, users, models.RoleBuyer)
	supplier := seedUser(t, users, models.RoleSupplier)

	t.Run("user lookup by email", func(t *testing.T) {
		var got models.User
		require.NoError(t, users.GetByEmail(ctx, buyer.Email, &got))
		require.Equal(t, buyer.ID, got.ID)
	})

	deadline := time.Now().Add(72 * time.Hour).UTC()
	rfp := &models.RFP{
		BuyerID:  buyer.ID,
		Title:    "Office chairs",
		Deadline: &deadline,
		Status:   models.RFPStatusDraft,
	}
	require.NoError(t, rfps.Create(ctx, rfp))

	t.Run("update fields is conditional on status", func(t *testing.T) {
		ok, err := rfps.UpdateFields(ctx, rfp.ID, models.RFPStatusPublished, map[string]any{"title": "stale"})
		require.NoError(t, err)
		require.False(t, ok)

		ok, err = rfps.UpdateFields(ctx, rfp.ID, models.RFPStatusDraft, map[string]any{
			"status":       models.RFPStatusPublished,
			"published_at": time.Now().UTC(),
		})
		require.NoError(t, err)
		require.True(t, ok)
	})

	resp := models.Response{
		ID:         models.ResponseID(rfp.ID, supplier.ID),
		RFPID:      rfp.ID,
		SupplierID: supplier.ID,
		Content:    map[string]any{"price": 4200},
		Status:     models.ResponseStatusSubmitted,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	t.Run("append response once per supplier", func(t *testing.T) {
		ok, err := rfps.AppendResponse(ctx, rfp.ID, resp)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = rfps.AppendResponse(ctx, rfp.ID, resp)
		require.NoError(t, err)
		require.False(t, ok)

		var got models.RFP
		require.NoError(t, rfps.GetByID(ctx, rfp.ID, &got))
		require.Len(t, got.Responses, 1)
		require.Equal(t, supplier.ID, got.Responses[0].SupplierID)
	})

	t.Run("mutate responses under lock", func(t *testing.T) {
		updated, err := rfps.MutateResponses(ctx, rfp.ID, func(r *models.RFP) (bool, error) {
			r.Responses[0].Status = models.ResponseStatusApproved
			r.UpdatedAt = time.Now().UTC()
			return true, nil
		})
		require.NoError(t, err)
		require.Equal(t, models.ResponseStatusApproved, updated.Responses[0].Status)

		var got models.RFP
		require.NoError(t, rfps.GetByID(ctx, rfp.ID, &got))
		require.Equal(t, models.ResponseStatusApproved, got.Responses[0].Status)
	})

	t.Run("list filters by status", func(t *testing.T) {
		status := models.RFPStatusPublished
		out, total, err := rfps.List(ctx, RFPQuery{Status: &status, Page: utils.NewPage(0, 10)})
		require.NoError(t, err)
		require.EqualValues(t, 1, total)
		require.Len(t, out, 1)
	})

	t.Run("documents visible to supplier", func(t *testing.T) {
		private := &models.Document{Filename: uuid.NewString(), OriginalFilename: "a.pdf", FilePath: "a", FileSize: 1, UserID: buyer.ID, RFPID: &rfp.ID}
		public := &models.Document{Filename: uuid.NewString(), OriginalFilename: "b.pdf", FilePath: "b", FileSize: 1, UserID: buyer.ID, RFPID: &rfp.ID, IsPublic: true}
		own := &models.Document{Filename: uuid.NewString(), OriginalFilename: "c.pdf", FilePath: "c", FileSize: 1, UserID: supplier.ID, RFPID: &rfp.ID}
		for _, d := range []*models.Document{private, public, own} {
			require.NoError(t, docs.Create(ctx, d))
		}
		require.NoError(t, rfps.AppendAttachment(ctx, rfp.ID, public.ID))

		out, total, err := docs.List(ctx, DocumentQuery{RFPID: &rfp.ID, VisibleTo: &supplier.ID, Page: utils.NewPage(0, 10)})
		require.NoError(t, err)
		require.EqualValues(t, 2, total)
		ids := []uuid.UUID{out[0].ID, out[1].ID}
		require.ElementsMatch(t, []uuid.UUID{public.ID, own.ID}, ids)

		var got models.RFP
		require.NoError(t, rfps.GetByID(ctx, rfp.ID, &got))
		require.Contains(t, []uuid.UUID(got.Attachments), public.ID)
	})

	t.Run("document with long client metadata", func(t *testing.T) {
		d := &models.Document{
			Filename:         uuid.NewString(),
			OriginalFilename: "report." + strings.Repeat("x", 40),
			FilePath:         "d",
			FileSize:         1,
			FileType:         strings.Repeat("x", 40),
			ContentType:      "application/" + strings.Repeat("v", 300),
			UserID:           buyer.ID,
		}
		require.NoError(t, docs.Create(ctx, d))
	})

	t.Run("notifications mark read", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			require.NoError(t, notifs.Create(ctx, &models.Notification{
				UserID: supplier.ID, Type: models.NotificationInApp, Title: "t", Message: "m",
			}))
		}
		unread := false
		_, total, err := notifs.ListByUser(ctx, supplier.ID, &unread, utils.NewPage(0, 10))
		require.NoError(t, err)
		require.EqualValues(t, 2, total)

		n, err := notifs.MarkAllRead(ctx, supplier.ID, time.Now().UTC())
		require.NoError(t, err)
		require.EqualValues(t, 2, n)

		n, err = notifs.MarkAllRead(ctx, supplier.ID, time.Now().UTC())
		require.NoError(t, err)
		require.Zero(t, n)
	})
}
