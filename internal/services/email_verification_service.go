package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/calebmorton/inkwell/internal/models"
	pkgauth "github.com/calebmorton/inkwell/pkg/auth"
)

// EmailVerificationRepository defines the persistence operations for
// verification tokens
type EmailVerificationRepository interface {
	Create(ctx context.Context, userID, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error)
	GetPendingByEmail(ctx context.Context, email string) (*models.EmailVerificationToken, error)
	MarkAsUsed(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// EmailVerificationService handles email verification business logic
type EmailVerificationService struct {
	verificationRepo EmailVerificationRepository
	userRepo         UserRepository
	emailService     EmailService
	logger           *slog.Logger
	resendCooldown   time.Duration
}

// NewEmailVerificationService creates a new EmailVerificationService
func NewEmailVerificationService(
	verificationRepo EmailVerificationRepository,
	userRepo UserRepository,
	emailService EmailService,
	logger *slog.Logger,
) *EmailVerificationService {
	return &EmailVerificationService{
		verificationRepo: verificationRepo,
		userRepo:         userRepo,
		emailService:     emailService,
		logger:           logger,
		resendCooldown:   20 * time.Minute,
	}
}

// SendVerificationEmail issues a fresh token and mails the link
func (s *EmailVerificationService) SendVerificationEmail(ctx context.Context, userID, email string) error {
	token, err := pkgauth.GenerateEmailVerificationToken()
	if err != nil {
		s.logger.Error("failed to generate verification token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if _, err := s.verificationRepo.Create(ctx, userID, token.HashedToken, email, token.ExpiresAt); err != nil {
		s.logger.Error("failed to store verification token",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.emailService.SendVerificationEmail(ctx, email, token.Token, token.ExpiresAt); err != nil {
		s.logger.Error("failed to send verification email",
			slog.String("user_id", userID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.logger.Info("verification email sent", slog.String("user_id", userID))
	return nil
}

// VerifyEmail consumes a token and marks the account's email verified.
// Returns the verified user's ID.
func (s *EmailVerificationService) VerifyEmail(ctx context.Context, plainToken string) (string, error) {
	if plainToken == "" {
		return "", models.ErrUnauthorized
	}

	token, err := s.verificationRepo.GetByTokenHash(ctx, pkgauth.HashToken(plainToken))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("verification token not found")
			return "", models.ErrUnauthorized
		}
		s.logger.Error("failed to retrieve verification token", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if !token.IsValid() {
		s.logger.Info("verification token rejected",
			slog.String("token_id", token.ID),
			slog.Bool("used", token.IsUsed()),
			slog.Bool("expired", token.IsExpired()))
		return "", models.ErrUnauthorized
	}

	if err := s.verificationRepo.MarkAsUsed(ctx, token.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrUnauthorized
		}
		s.logger.Error("failed to consume verification token",
			slog.String("token_id", token.ID),
			slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if err := s.userRepo.MarkEmailVerified(ctx, token.UserID); err != nil {
		s.logger.Error("failed to mark email verified",
			slog.String("user_id", token.UserID),
			slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	s.logger.Info("email verified", slog.String("user_id", token.UserID))
	return token.UserID, nil
}

// ResendVerification re-sends the verification link. The response never
// reveals whether the address exists; a recent pending token enforces a
// cooldown instead of mailing again.
func (s *EmailVerificationService) ResendVerification(ctx context.Context, email string) error {
	existing, err := s.verificationRepo.GetPendingByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.Error("failed to check pending verification tokens", slog.Any("error", err))
		}
		// Unknown address or already verified: silently succeed
		return nil
	}

	if since := time.Since(existing.CreatedAt); since < s.resendCooldown {
		s.logger.Info("verification resend within cooldown",
			slog.Duration("since_last_send", since))
		return nil
	}

	if err := s.verificationRepo.DeleteByUserID(ctx, existing.UserID); err != nil {
		s.logger.Error("failed to delete stale verification tokens",
			slog.String("user_id", existing.UserID),
			slog.Any("error", err))
	}

	return s.SendVerificationEmail(ctx, existing.UserID, email)
}

// GetStatus reports whether the user's email is verified
func (s *EmailVerificationService) GetStatus(ctx context.Context, userID string) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.EmailVerified, nil
}
