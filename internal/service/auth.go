package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"bookrecorder/internal/config"
	"bookrecorder/internal/model"
)

// AuthService issues access tokens. Tokens are stateless; logout clears the cookie.
type AuthService struct {
	config *config.Config
	now    func() time.Time
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{config: cfg, now: time.Now}
}

// Login builds the login response for an authenticated user.
func (s *AuthService) Login(user *model.User) (*model.LoginResponse, error) {
	token, err := s.GenerateAccessToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}
	return &model.LoginResponse{
		User:        user,
		Progress:    userProgress(user),
		AccessToken: token,
		ExpiresIn:   s.config.AccessTokenMaxAge,
	}, nil
}

// GenerateAccessToken signs an HS256 token carrying user_id.
func (s *AuthService) GenerateAccessToken(userID int64) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"jti":     uuid.NewString(),
		"exp":     now.Add(time.Duration(s.config.AccessTokenMaxAge) * time.Second).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// AccessTokenMaxAge is the token lifetime in seconds, also used for the cookie.
func (s *AuthService) AccessTokenMaxAge() int {
	return s.config.AccessTokenMaxAge
}
