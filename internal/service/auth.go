package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/utafrali/furnishop/internal/domain"
	apperrors "github.com/utafrali/furnishop/pkg/errors"
)

// TokenIssuer signs admin access tokens.
type TokenIssuer interface {
	GenerateAccessToken(subject, email, role string) (string, error)
}

// LoginInput holds the admin credentials.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthService checks the configured admin credentials and issues tokens.
type AuthService struct {
	adminEmail   string
	passwordHash []byte
	tokens       TokenIssuer
	tokenTTL     int64
	logger       *slog.Logger
}

// NewAuthService creates an auth service for the single configured admin.
// passwordHash is a bcrypt hash; tokenTTLSeconds is reported to clients.
func NewAuthService(adminEmail, passwordHash string, tokens TokenIssuer, tokenTTLSeconds int64, logger *slog.Logger) *AuthService {
	return &AuthService{
		adminEmail:   strings.ToLower(strings.TrimSpace(adminEmail)),
		passwordHash: []byte(passwordHash),
		tokens:       tokens,
		tokenTTL:     tokenTTLSeconds,
		logger:       logger,
	}
}

// Login returns an access token when email and password match the admin.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.TokenPair, error) {
	if input.Email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}
	if input.Password == "" {
		return nil, apperrors.InvalidInput("password is required")
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.adminEmail)) == 1

	// The hash is checked even for an unknown email so both paths take as long.
	passwordErr := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(input.Password))
	if !emailOK || passwordErr != nil {
		s.logger.WarnContext(ctx, "admin login rejected", slog.String("email", email))
		return nil, apperrors.Unauthorized("invalid email or password")
	}

	token, err := s.tokens.GenerateAccessToken(domain.RoleAdmin, email, domain.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	s.logger.InfoContext(ctx, "admin logged in", slog.String("email", email))

	return &domain.TokenPair{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   s.tokenTTL,
	}, nil
}
