package services

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rfp-studio/engine/internal/models"
	appErr "github.com/rfp-studio/engine/pkg/errors"
)

// TokenService issues and validates HS256 bearer tokens bound to a user id.
type TokenService interface {
	Issue(user *models.User) (string, time.Time, error)
	Parse(token string) (uuid.UUID, error)
}

type tokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret []byte, ttl time.Duration) TokenService {
	return &tokenService{secret: secret, ttl: ttl, now: time.Now}
}

var _ TokenService = (*tokenService)(nil)

func (s *tokenService) Issue(user *models.User) (string, time.Time, error) {
	exp := s.now().Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": string(user.Role),
		"iat":  s.now().Unix(),
		"exp":  exp.Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, appErr.Wrap(err, appErr.CodeInternal, "sign token failed")
	}
	return signed, exp, nil
}

func (s *tokenService) Parse(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return uuid.Nil, appErr.Wrap(err, appErr.CodeUnauthorized, "could not validate credentials")
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return uuid.Nil, appErr.Wrap(err, appErr.CodeUnauthorized, "could not validate credentials")
	}
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, appErr.Wrap(err, appErr.CodeUnauthorized, "could not validate credentials")
	}
	return id, nil
}
