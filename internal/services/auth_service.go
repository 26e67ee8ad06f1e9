package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calebmorton/inkwell/internal/auth"
	"github.com/calebmorton/inkwell/internal/models"
	"github.com/calebmorton/inkwell/internal/ratelimit"
	pkgauth "github.com/calebmorton/inkwell/pkg/auth"
	pkglogger "github.com/calebmorton/inkwell/pkg/logger"
)

// UserRepository defines the persistence operations auth flows need
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, userID string) error
}

// VerificationSender issues verification emails; split out so registration
// tests don't need the full verification service.
type VerificationSender interface {
	SendVerificationEmail(ctx context.Context, userID, email string) error
}

// AuthServiceConfig carries the per-operation rate limit policies.
type AuthServiceConfig struct {
	LoginPolicy    ratelimit.Policy
	RegisterPolicy ratelimit.Policy
}

// AuthService handles login, registration and token refresh
type AuthService struct {
	repo         UserRepository
	tm           *auth.TokenManager
	limiter      *ratelimit.Limiter
	timing       *auth.TimingDelay
	verification VerificationSender
	config       AuthServiceConfig
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	repo UserRepository,
	tm *auth.TokenManager,
	limiter *ratelimit.Limiter,
	timing *auth.TimingDelay,
	verification VerificationSender,
	config AuthServiceConfig,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AuthService {
	return &AuthService{
		repo:         repo,
		tm:           tm,
		limiter:      limiter,
		timing:       timing,
		verification: verification,
		config:       config,
		logger:       logger,
		auditLogger:  auditLogger,
	}
}

// UserResponse represents a user in the HTTP response
type UserResponse struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	EmailVerified bool   `json:"email_verified"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}

// AuthResponse represents the response from auth operations
type AuthResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	User         *UserResponse `json:"user"`
}

// Login authenticates a user and returns a token pair. identifier is the
// opaque client identity used for rate limiting; every failure counts
// against it and a success clears its counters.
func (s *AuthService) Login(ctx context.Context, email, password, identifier string) (*AuthResponse, error) {
	start := time.Now()

	if result := s.limiter.Check(ctx, identifier, s.config.LoginPolicy); !result.Allowed {
		s.auditLogger.LogLockout(identifier, "login", result.RetryAfter)
		return nil, &models.RateLimitError{RetryAfter: result.RetryAfter}
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, s.failLogin(ctx, start, identifier, "", "invalid_credentials")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Same failure path as a wrong password: the response must
			// not reveal whether the account exists
			return nil, s.failLogin(ctx, start, identifier, "", "invalid_credentials")
		}
		s.logger.Error("failed to get user by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, s.failLogin(ctx, start, identifier, user.ID, "invalid_credentials")
	}

	if err := validateAccountState(user); err != nil {
		s.logger.Info("login blocked due to account state",
			slog.String("user_id", user.ID),
			slog.String("status", user.Status))
		s.recordFailure(ctx, start, identifier, user.ID, "account_blocked")
		return nil, err
	}

	if !user.EmailVerified {
		s.recordFailure(ctx, start, identifier, user.ID, "email_not_verified")
		return nil, models.ErrEmailNotVerified
	}

	s.limiter.RecordAttempt(ctx, identifier, s.config.LoginPolicy, true)

	accessToken, refreshToken, err := s.generateTokenPair(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("user_id", user.ID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		UserID:    user.ID,
		Success:   true,
	})

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userModelToResponse(user),
	}, nil
}

// failLogin counts the failure, equalizes response time, and returns the
// generic unauthorized error. If this failure crossed the lockout
// threshold, the caller gets the rate-limit error instead.
func (s *AuthService) failLogin(ctx context.Context, start time.Time, identifier, userID, reason string) error {
	result := s.recordFailure(ctx, start, identifier, userID, reason)
	if !result.Allowed {
		s.auditLogger.LogLockout(identifier, "login", result.RetryAfter)
		return &models.RateLimitError{RetryAfter: result.RetryAfter}
	}
	return models.ErrUnauthorized
}

func (s *AuthService) recordFailure(ctx context.Context, start time.Time, identifier, userID, reason string) ratelimit.Result {
	result := s.limiter.RecordAttempt(ctx, identifier, s.config.LoginPolicy, false)
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType:     "login_failed",
		UserID:        userID,
		FailureReason: reason,
		Success:       false,
	})
	s.timing.Wait(start, false)
	return result
}

// Register creates a new account and sends a verification email.
// Every registration attempt counts against the identifier's quota,
// successful ones included: the register policy caps account creation
// per client, not just failures.
func (s *AuthService) Register(ctx context.Context, email, password, name, role, identifier string) (*UserResponse, error) {
	if result := s.limiter.Check(ctx, identifier, s.config.RegisterPolicy); !result.Allowed {
		s.auditLogger.LogLockout(identifier, "register", result.RetryAfter)
		return nil, &models.RateLimitError{RetryAfter: result.RetryAfter}
	}
	s.limiter.RecordAttempt(ctx, identifier, s.config.RegisterPolicy, false)

	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" {
		return nil, fmt.Errorf("email is required: %w", models.ErrBadRequest)
	}
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", models.ErrBadRequest)
	}
	if role == "" {
		role = models.RoleStudent
	}
	if !models.ValidRole(role) {
		return nil, fmt.Errorf("unknown role %q: %w", role, models.ErrBadRequest)
	}

	if policy := pkgauth.ValidatePassword(password); !policy.Valid {
		return nil, &models.WeakPasswordError{Violations: policy.Errors}
	}

	_, err := s.repo.GetByEmail(ctx, email)
	if err == nil {
		s.logger.Info("registration failed: user already exists")
		return nil, models.ErrConflict
	}
	if !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to check if user exists", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hashedPassword, err := pkgauth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         name,
		Role:         role,
	}

	createdUser, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	// Verification email failures must not lose the account; the user
	// can request a resend
	if err := s.verification.SendVerificationEmail(ctx, createdUser.ID, createdUser.Email); err != nil {
		s.logger.Error("failed to send verification email",
			slog.String("user_id", createdUser.ID),
			slog.Any("error", err))
	}

	s.logger.Info("user registered",
		slog.String("user_id", createdUser.ID),
		slog.String("role", createdUser.Role))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "register_success",
		UserID:    createdUser.ID,
		Success:   true,
	})

	return userModelToResponse(createdUser), nil
}

// RefreshToken exchanges a valid refresh token for a new token pair
func (s *AuthService) RefreshToken(ctx context.Context, refreshTokenString string) (*AuthResponse, error) {
	if refreshTokenString = strings.TrimSpace(refreshTokenString); refreshTokenString == "" {
		return nil, models.ErrUnauthorized
	}

	claims, err := s.tm.ValidateToken(refreshTokenString)
	if err != nil {
		s.logger.Info("refresh token validation failed", slog.Any("error", err))
		return nil, models.ErrUnauthorized
	}

	if claims.Type != "refresh" {
		s.logger.Warn("refresh attempt with non-refresh token", slog.String("user_id", claims.UserID))
		return nil, models.ErrUnauthorized
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to get user for token refresh",
			slog.String("user_id", claims.UserID),
			slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := validateAccountState(user); err != nil {
		s.logger.Info("token refresh blocked due to account state",
			slog.String("user_id", user.ID),
			slog.String("status", user.Status))
		return nil, models.ErrUnauthorized
	}

	// A password change kills every token issued before it
	if auth.IssuedBeforePasswordChange(claims, user) {
		s.logger.Info("token refresh blocked: issued before password change",
			slog.String("user_id", user.ID))
		return nil, models.ErrUnauthorized
	}

	accessToken, refreshToken, err := s.generateTokenPair(user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("token refreshed", slog.String("user_id", user.ID))

	return &AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userModelToResponse(user),
	}, nil
}

// Logout records the sign-out for the audit trail. Access tokens stay
// valid until expiry; a password change is the invalidation lever.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.tm.ValidateToken(accessToken)
	if err != nil {
		return models.ErrUnauthorized
	}

	s.logger.Info("user logged out", slog.String("user_id", claims.UserID))
	s.auditLogger.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "logout",
		UserID:    claims.UserID,
		Success:   true,
	})
	return nil
}

func (s *AuthService) generateTokenPair(user *models.User) (string, string, error) {
	accessToken, err := s.tm.GenerateAccessToken(user)
	if err != nil {
		s.logger.Error("failed to generate access token", slog.String("user_id", user.ID), slog.Any("error", err))
		return "", "", models.ErrInternalServer
	}

	refreshToken, err := s.tm.GenerateRefreshToken(user)
	if err != nil {
		s.logger.Error("failed to generate refresh token", slog.String("user_id", user.ID), slog.Any("error", err))
		return "", "", models.ErrInternalServer
	}

	return accessToken, refreshToken, nil
}

// validateAccountState checks if the account may authenticate
func validateAccountState(user *models.User) error {
	switch user.Status {
	case models.StatusDisabled:
		return models.ErrAccountDisabled
	case models.StatusSuspended:
		return models.ErrAccountSuspended
	case models.StatusActive:
		return nil
	default:
		return fmt.Errorf("unknown account status: %s", user.Status)
	}
}

// UserResponseFromModel converts a user model to the response DTO for
// callers outside this package.
func UserResponseFromModel(user *models.User) *UserResponse {
	return userModelToResponse(user)
}

// userModelToResponse converts a user model to the response DTO
func userModelToResponse(user *models.User) *UserResponse {
	return &UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		Name:          user.Name,
		Role:          user.Role,
		EmailVerified: user.EmailVerified,
		CreatedAt:     user.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     user.UpdatedAt.Format(time.RFC3339),
	}
}
