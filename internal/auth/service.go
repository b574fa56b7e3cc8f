package auth

import (
	"context"
	"errors"
	"strings"

	"coinfolio/internal/database"

	"github.com/rs/zerolog"
)

// Service implements registration, login and token refresh on top of the
// user repository.
type Service struct {
	repo      *database.Repository
	jwt       *JWTManager
	passwords *PasswordManager
	logger    zerolog.Logger
}

// NewService creates a new authentication service
func NewService(repo *database.Repository, jwtManager *JWTManager, passwords *PasswordManager, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		jwt:       jwtManager,
		passwords: passwords,
		logger:    logger.With().Str("component", "auth").Logger(),
	}
}

// GetJWTManager returns the JWT manager so transports can mount middleware
func (s *Service) GetJWTManager() *JWTManager {
	return s.jwt
}

// Register creates a new user account and returns a logged-in session
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if req.Role != database.RoleTrader && req.Role != database.RoleInvestor {
		return nil, ErrInvalidRole
	}

	if err := s.passwords.ValidatePasswordStrength(req.Password); err != nil {
		return nil, AuthError{Code: ErrWeakPassword.Code, Message: err.Error()}
	}

	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, database.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &database.User{
		Email:        email,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(req.DisplayName),
		Role:         req.Role,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("user registered")

	return s.sessionFor(user)
}

// Login authenticates a user by email and password
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			// Same error as a bad password so probing cannot enumerate accounts
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.passwords.VerifyPassword(req.Password, user.PasswordHash) {
		s.logger.Warn().Str("user_id", user.ID).Msg("failed login attempt")
		return nil, ErrInvalidCredentials
	}

	return s.sessionFor(user)
}

// Refresh exchanges a valid refresh token for a new token pair
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	return s.jwt.GenerateTokenPair(claimsFor(user))
}

// CurrentUser loads the account behind a set of claims
func (s *Service) CurrentUser(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	resp := userResponse(user)
	return &resp, nil
}

func (s *Service) sessionFor(user *database.User) (*LoginResponse, error) {
	pair, err := s.jwt.GenerateTokenPair(claimsFor(user))
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		User:         userResponse(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

func claimsFor(user *database.User) UserClaims {
	return UserClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}
}

func userResponse(user *database.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        user.Role,
		CreatedAt:   user.CreatedAt,
	}
}
