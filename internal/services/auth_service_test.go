package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rfp-studio/engine/internal/models"
	appErr "github.com/rfp-studio/engine/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-0123456789"

func TestAuthService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active unverified user", func(t *testing.T) {
		users := &mockUserRepository{}
		users.On("GetByEmail", mock.Anything, "new@example.com", mock.Anything).Return(appErr.New(appErr.CodeNotFound, "user not found"), nil).Once()
		users.On("Create", mock.Anything, mock.MatchedBy(func(u *models.User) bool {
			return u.Email == "new@example.com" && u.IsActive && !u.IsVerified &&
				bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("s3cret-pass")) == nil
		})).Return(nil).Once()
		svc := NewAuthService(users, NewTokenService([]byte(testSecret), time.Hour), &mockUserResolver{})

		u, err := svc.Register(ctx, &RegisterInput{
			Email:    "  New@Example.com ",
			Username: "newbie",
			Password: "s3cret-pass",
			Role:     models.RoleSupplier,
		})
		require.NoError(t, err)
		require.Equal(t, models.RoleSupplier, u.Role)
		users.AssertExpectations(t)
	})

	t.Run("duplicate email", func(t *testing.T) {
		users := &mockUserRepository{}
		users.On("GetByEmail", mock.Anything, "taken@example.com", mock.Anything).Return(nil, &models.User{ID: uuid.New()}).Once()
		svc := NewAuthService(users, NewTokenService([]byte(testSecret), time.Hour), &mockUserResolver{})

		_, err := svc.Register(ctx, &RegisterInput{Email: "taken@example.com", Password: "longenough", Role: models.RoleBuyer})
		require.True(t, appErr.IsCode(err, appErr.CodeConflict))
		users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("unknown role", func(t *testing.T) {
		svc := NewAuthService(&mockUserRepository{}, NewTokenService([]byte(testSecret), time.Hour), &mockUserResolver{})
		_, err := svc.Register(ctx, &RegisterInput{Email: "a@example.com", Password: "longenough", Role: "Admin"})
		require.True(t, appErr.IsCode(err, appErr.CodeInvalid))
	})
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{ID: uuid.New(), Email: "buyer@example.com", PasswordHash: string(hash), Role: models.RoleBuyer, IsActive: true}
	tokens := NewTokenService([]byte(testSecret), time.Hour)

	t.Run("issues a token for the user", func(t *testing.T) {
		users := &mockUserRepository{}
		users.On("GetByEmail", mock.Anything, "buyer@example.com", mock.Anything).Return(nil, user).Once()
		svc := NewAuthService(users, tokens, &mockUserResolver{})

		res, err := svc.Login(ctx, "Buyer@example.com", "correct-horse")
		require.NoError(t, err)
		require.Equal(t, "bearer", res.TokenType)
		sub, err := tokens.Parse(res.AccessToken)
		require.NoError(t, err)
		require.Equal(t, user.ID, sub)
	})

	t.Run("wrong password", func(t *testing.T) {
		users := &mockUserRepository{}
		users.On("GetByEmail", mock.Anything, "buyer@example.com", mock.Anything).Return(nil, user).Once()
		svc := NewAuthService(users, tokens, &mockUserResolver{})

		_, err := svc.Login(ctx, "buyer@example.com", "wrong")
		require.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))
	})

	t.Run("unknown email", func(t *testing.T) {
		users := &mockUserRepository{}
		users.On("GetByEmail", mock.Anything, "nobody@example.com", mock.Anything).Return(appErr.New(appErr.CodeNotFound, "user not found"), nil).Once()
		svc := NewAuthService(users, tokens, &mockUserResolver{})

		_, err := svc.Login(ctx, "nobody@example.com", "x")
		require.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))
	})

	t.Run("inactive user", func(t *testing.T) {
		inactive := *user
		inactive.IsActive = false
		users := &mockUserRepository{}
		users.On("GetByEmail", mock.Anything, "buyer@example.com", mock.Anything).Return(nil, &inactive).Once()
		svc := NewAuthService(users, tokens, &mockUserResolver{})

		_, err := svc.Login(ctx, "buyer@example.com", "correct-horse")
		require.True(t, appErr.IsCode(err, appErr.CodeForbidden))
	})
}

func TestAuthService_UpdateProfile(t *testing.T) {
	user := newBuyer()
	users := &mockUserRepository{}
	resolver := &mockUserResolver{}
	users.On("UpdateProfile", mock.Anything, user.ID, mock.MatchedBy(func(f map[string]any) bool {
		return f["company_name"] == "Acme Holdings" && len(f) == 2
	})).Return(nil).Once()
	resolver.On("Forget", user.ID).Return().Once()
	svc := NewAuthService(users, NewTokenService([]byte(testSecret), time.Hour), resolver)

	company := "Acme Holdings"
	out, err := svc.UpdateProfile(context.Background(), user, &UpdateProfileInput{CompanyName: &company})
	require.NoError(t, err)
	require.Equal(t, "Acme Holdings", out.CompanyName)
	require.Equal(t, "Acme", user.CompanyName)
	mock.AssertExpectationsForObjects(t, users, resolver)
}

func TestTokenService(t *testing.T) {
	user := newSupplier()

	t.Run("expired", func(t *testing.T) {
		svc := &tokenService{secret: []byte(testSecret), ttl: time.Minute, now: func() time.Time { return time.Now().Add(-time.Hour) }}
		token, _, err := svc.Issue(user)
		require.NoError(t, err)

		_, err = NewTokenService([]byte(testSecret), time.Minute).Parse(token)
		require.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _, err := NewTokenService([]byte("another-secret-0123456"), time.Hour).Issue(user)
		require.NoError(t, err)

		_, err = NewTokenService([]byte(testSecret), time.Hour).Parse(token)
		require.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := NewTokenService([]byte(testSecret), time.Hour).Parse("not-a-jwt")
		require.True(t, appErr.IsCode(err, appErr.CodeUnauthorized))
	})
}

func TestUserResolver_CachesUntilForgotten(t *testing.T) {
	ctx := context.Background()
	user := newBuyer()
	users := &mockUserRepository{}
	users.On("GetByID", mock.Anything, user.ID, mock.Anything).Return(nil, user).Twice()
	r := NewUserResolver(users, 16, time.Minute)

	first, err := r.Resolve(ctx, user.ID)
	require.NoError(t, err)
	first.CompanyName = "mutated"

	second, err := r.Resolve(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Acme", second.CompanyName)
	users.AssertNumberOfCalls(t, "GetByID", 1)

	r.Forget(user.ID)
	_, err = r.Resolve(ctx, user.ID)
	require.NoError(t, err)
	users.AssertNumberOfCalls(t, "GetByID", 2)
}
