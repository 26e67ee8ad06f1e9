package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/calebmorton/inkwell/internal/models"
	"github.com/calebmorton/inkwell/internal/ratelimit"
	pkgauth "github.com/calebmorton/inkwell/pkg/auth"
	pkglogger "github.com/calebmorton/inkwell/pkg/logger"
)

// PasswordResetRepository defines the persistence operations for reset tokens
type PasswordResetRepository interface {
	Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	MarkAsUsed(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// PasswordResetService handles the forgot-password flow
type PasswordResetService struct {
	resetRepo    PasswordResetRepository
	userRepo     UserRepository
	emailService EmailService
	limiter      *ratelimit.Limiter
	policy       ratelimit.Policy
	logger       *slog.Logger
	auditLogger  *pkglogger.AuditLogger
}

// NewPasswordResetService creates a new PasswordResetService
func NewPasswordResetService(
	resetRepo PasswordResetRepository,
	userRepo UserRepository,
	emailService EmailService,
	limiter *ratelimit.Limiter,
	policy ratelimit.Policy,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *PasswordResetService {
	return &PasswordResetService{
		resetRepo:    resetRepo,
		userRepo:     userRepo,
		emailService: emailService,
		limiter:      limiter,
		policy:       policy,
		logger:       logger,
		auditLogger:  auditLogger,
	}
}

// RequestReset issues a reset token and mails it. The response is
// identical whether or not the address has an account; only the rate
// limit error is surfaced. Every request consumes quota.
func (s *PasswordResetService) RequestReset(ctx context.Context, email, identifier string) error {
	if result := s.limiter.Check(ctx, identifier, s.policy); !result.Allowed {
		s.auditLogger.LogLockout(identifier, "password_reset", result.RetryAfter)
		return &models.RateLimitError{RetryAfter: result.RetryAfter}
	}
	s.limiter.RecordAttempt(ctx, identifier, s.policy, false)

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown address")
			return nil
		}
		s.logger.Error("failed to look up user for password reset", slog.Any("error", err))
		// Swallowed: a storage hiccup must look the same as an unknown
		// address from the outside
		return nil
	}

	token, err := pkgauth.GeneratePasswordResetToken()
	if err != nil {
		s.logger.Error("failed to generate reset token", slog.Any("error", err))
		return nil
	}

	// Create supersedes any outstanding token for the account
	if _, err := s.resetRepo.Create(ctx, user.ID, token.HashedToken, token.ExpiresAt); err != nil {
		s.logger.Error("failed to store reset token",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil
	}

	if err := s.emailService.SendPasswordResetEmail(ctx, user.Email, token.Token, token.ExpiresAt); err != nil {
		s.logger.Error("failed to send reset email",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
		return nil
	}

	s.logger.Info("password reset email sent", slog.String("user_id", user.ID))
	s.auditLogger.LogPasswordReset(pkglogger.AuditEvent{
		EventType: "password_reset_requested",
		UserID:    user.ID,
		Success:   true,
	})
	return nil
}

// ConfirmReset consumes a reset token and installs the new password.
// Unknown, expired and already-used tokens all fail the same way.
func (s *PasswordResetService) ConfirmReset(ctx context.Context, plainToken, newPassword string) error {
	if plainToken == "" {
		return models.ErrUnauthorized
	}

	token, err := s.resetRepo.GetByTokenHash(ctx, pkgauth.HashToken(plainToken))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("reset token not found")
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to retrieve reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !token.IsValid() {
		s.logger.Info("reset token rejected",
			slog.String("token_id", token.ID),
			slog.Bool("used", token.IsUsed()),
			slog.Bool("expired", token.IsExpired()))
		s.auditLogger.LogPasswordReset(pkglogger.AuditEvent{
			EventType:     "password_reset_failed",
			UserID:        token.UserID,
			FailureReason: "invalid_token",
			Success:       false,
		})
		return models.ErrUnauthorized
	}

	if policy := pkgauth.ValidatePassword(newPassword); !policy.Valid {
		return &models.WeakPasswordError{Violations: policy.Errors}
	}

	hashedPassword, err := pkgauth.HashPassword(newPassword)
	if err != nil {
		s.logger.Error("failed to hash new password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	// Consume before updating: a token that raced two confirmations
	// must only succeed once
	if err := s.resetRepo.MarkAsUsed(ctx, token.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthorized
		}
		s.logger.Error("failed to consume reset token",
			slog.String("token_id", token.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	// UpdatePassword stamps password_changed_at, killing outstanding JWTs
	if err := s.userRepo.UpdatePassword(ctx, token.UserID, hashedPassword); err != nil {
		s.logger.Error("failed to update password",
			slog.String("user_id", token.UserID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.resetRepo.DeleteByUserID(ctx, token.UserID); err != nil {
		s.logger.Error("failed to clear reset tokens",
			slog.String("user_id", token.UserID),
			slog.Any("error", err))
	}

	s.logger.Info("password reset completed", slog.String("user_id", token.UserID))
	s.auditLogger.LogPasswordReset(pkglogger.AuditEvent{
		EventType: "password_reset_completed",
		UserID:    token.UserID,
		Success:   true,
	})
	return nil
}
