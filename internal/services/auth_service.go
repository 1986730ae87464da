package services

import (
	"context"
	"strings"
	"time"

	"github.com/rfp-studio/engine/internal/models"
	"github.com/rfp-studio/engine/internal/repository"
	appErr "github.com/rfp-studio/engine/pkg/errors"
	"github.com/rfp-studio/engine/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	Register(ctx context.Context, input *RegisterInput) (*models.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	UpdateProfile(ctx context.Context, actor *models.User, input *UpdateProfileInput) (*models.User, error)
}

type RegisterInput struct {
	Email       string
	Username    string
	Password    string
	FirstName   string
	LastName    string
	CompanyName string
	Role        models.Role
}

type UpdateProfileInput struct {
	FirstName   *string
	LastName    *string
	CompanyName *string
}

type LoginResult struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
}

type authService struct {
	userRepo repository.UserRepository
	tokens   TokenService
	resolver UserResolver
}

func NewAuthService(userRepo repository.UserRepository, tokens TokenService, resolver UserResolver) AuthService {
	return &authService{userRepo: userRepo, tokens: tokens, resolver: resolver}
}

var _ AuthService = (*authService)(nil)

func (s *authService) Register(ctx context.Context, input *RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	logger.L().Info("register user", zap.String("email", email), zap.String("role", string(input.Role)))

	if !input.Role.Valid() {
		return nil, appErr.New(appErr.CodeInvalid, "role must be either 'Buyer' or 'Supplier'")
	}
	if len(input.Password) < 8 {
		return nil, appErr.New(appErr.CodeInvalid, "password must be at least 8 characters long")
	}

	var existing models.User
	err := s.userRepo.GetByEmail(ctx, email, &existing)
	if err == nil {
		return nil, appErr.New(appErr.CodeConflict, "user with this email already exists")
	}
	if !appErr.IsCode(err, appErr.CodeNotFound) {
		return nil, err
	}

	ph, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "hash password failed")
	}

	u := &models.User{
		Email:        email,
		Username:     input.Username,
		PasswordHash: string(ph),
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		CompanyName:  input.CompanyName,
		Role:         input.Role,
		IsActive:     true,
		IsVerified:   false,
	}
	if err := s.userRepo.Create(ctx, u); err != nil {
		if appErr.IsCode(err, appErr.CodeConflict) {
			return nil, appErr.New(appErr.CodeConflict, "user with this email already exists")
		}
		return nil, err
	}

	logger.L().Info("user registered", zap.String("user_id", u.ID.String()))
	return u, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	logger.L().Info("login attempt", zap.String("email", email))

	var u models.User
	if err := s.userRepo.GetByEmail(ctx, email, &u); err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.New(appErr.CodeUnauthorized, "invalid credentials")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, appErr.New(appErr.CodeUnauthorized, "invalid credentials")
	}
	if !u.IsActive {
		return nil, appErr.New(appErr.CodeForbidden, "inactive user")
	}

	token, exp, err := s.tokens.Issue(&u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: token, TokenType: "bearer", ExpiresAt: exp, User: &u}, nil
}

func (s *authService) UpdateProfile(ctx context.Context, actor *models.User, input *UpdateProfileInput) (*models.User, error) {
	logger.L().Info("update profile", zap.String("user_id", actor.ID.String()))

	fields := map[string]any{}
	updated := *actor
	if input.FirstName != nil {
		fields["first_name"] = *input.FirstName
		updated.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		fields["last_name"] = *input.LastName
		updated.LastName = *input.LastName
	}
	if input.CompanyName != nil {
		fields["company_name"] = *input.CompanyName
		updated.CompanyName = *input.CompanyName
	}
	if len(fields) == 0 {
		return &updated, nil
	}

	updated.UpdatedAt = time.Now().UTC()
	fields["updated_at"] = updated.UpdatedAt
	if err := s.userRepo.UpdateProfile(ctx, actor.ID, fields); err != nil {
		return nil, err
	}
	s.resolver.Forget(actor.ID)
	return &updated, nil
}
