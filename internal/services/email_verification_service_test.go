package services

import (
	"context"
	"testing"
	"time"

	"github.com/calebmorton/inkwell/internal/models"
	pkgauth "github.com/calebmorton/inkwell/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newVerificationService(repo *MockEmailVerificationRepository, users *MockUserRepository) (*EmailVerificationService, *MockEmailService) {
	emails := &MockEmailService{}
	service := NewEmailVerificationService(repo, users, emails, discardLogger())
	return service, emails
}

func TestSendVerificationEmailStoresDigestOnly(t *testing.T) {
	var storedHash string
	var mailedToken string

	repo := &MockEmailVerificationRepository{
		CreateFunc: func(ctx context.Context, userID, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error) {
			storedHash = tokenHash
			return NewTestVerificationToken("verify_1", userID, email, tokenHash, expiresAt), nil
		},
	}
	service, emails := newVerificationService(repo, &MockUserRepository{})
	emails.SendVerificationEmailFunc = func(ctx context.Context, email, token string, expiresAt time.Time) error {
		mailedToken = token
		return nil
	}

	err := service.SendVerificationEmail(context.Background(), "user_1", "maria@example.com")
	require.NoError(t, err)

	require.NotEmpty(t, mailedToken)
	assert.NotEqual(t, mailedToken, storedHash)
	assert.Equal(t, pkgauth.HashToken(mailedToken), storedHash)
}

func TestVerifyEmailMarksUserVerified(t *testing.T) {
	token, err := pkgauth.GenerateEmailVerificationToken()
	require.NoError(t, err)

	stored := NewTestVerificationToken("verify_1", "user_1", "maria@example.com", token.HashedToken, token.ExpiresAt)

	var consumed, marked bool
	repo := &MockEmailVerificationRepository{
		GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error) {
			if tokenHash == stored.TokenHash {
				return stored, nil
			}
			return nil, models.ErrNotFound
		},
		MarkAsUsedFunc: func(ctx context.Context, id string) error {
			consumed = true
			return nil
		},
	}
	users := &MockUserRepository{
		MarkEmailVerifiedFunc: func(ctx context.Context, userID string) error {
			marked = userID == "user_1"
			return nil
		},
	}
	service, _ := newVerificationService(repo, users)

	userID, err := service.VerifyEmail(context.Background(), token.Token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", userID)
	assert.True(t, consumed)
	assert.True(t, marked)
}

func TestVerifyEmailRejectsBadTokens(t *testing.T) {
	token, err := pkgauth.GenerateEmailVerificationToken()
	require.NoError(t, err)

	used := time.Now()
	tests := []struct {
		name   string
		stored *models.EmailVerificationToken
	}{
		{"unknown", nil},
		{"expired", NewTestVerificationToken("verify_1", "user_1", "x@example.com", token.HashedToken, time.Now().Add(-time.Minute))},
		{"consumed", func() *models.EmailVerificationToken {
			tok := NewTestVerificationToken("verify_1", "user_1", "x@example.com", token.HashedToken, token.ExpiresAt)
			tok.UsedAt = &used
			return tok
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockEmailVerificationRepository{
				GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error) {
					if tt.stored == nil {
						return nil, models.ErrNotFound
					}
					return tt.stored, nil
				},
			}
			service, _ := newVerificationService(repo, &MockUserRepository{})

			_, err := service.VerifyEmail(context.Background(), token.Token)
			assert.ErrorIs(t, err, models.ErrUnauthorized)
		})
	}
}

func TestResendVerificationHonorsCooldown(t *testing.T) {
	pending := NewTestVerificationToken("verify_1", "user_1", "maria@example.com", "hash", time.Now().Add(24*time.Hour))
	pending.CreatedAt = time.Now().Add(-5 * time.Minute)

	repo := &MockEmailVerificationRepository{
		GetPendingByEmailFunc: func(ctx context.Context, email string) (*models.EmailVerificationToken, error) {
			return pending, nil
		},
	}
	service, emails := newVerificationService(repo, &MockUserRepository{})

	err := service.ResendVerification(context.Background(), pending.Email)
	assert.NoError(t, err)
	assert.Empty(t, emails.SentVerifications)
}

func TestResendVerificationAfterCooldown(t *testing.T) {
	pending := NewTestVerificationToken("verify_1", "user_1", "maria@example.com", "hash", time.Now().Add(24*time.Hour))
	pending.CreatedAt = time.Now().Add(-time.Hour)

	repo := &MockEmailVerificationRepository{
		GetPendingByEmailFunc: func(ctx context.Context, email string) (*models.EmailVerificationToken, error) {
			return pending, nil
		},
	}
	service, emails := newVerificationService(repo, &MockUserRepository{})

	err := service.ResendVerification(context.Background(), pending.Email)
	require.NoError(t, err)
	assert.Equal(t, []string{pending.Email}, emails.SentVerifications)
}

func TestResendVerificationUnknownAddressIsSilent(t *testing.T) {
	service, emails := newVerificationService(&MockEmailVerificationRepository{}, &MockUserRepository{})

	err := service.ResendVerification(context.Background(), "nobody@example.com")
	assert.NoError(t, err)
	assert.Empty(t, emails.SentVerifications)
}
