package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/calebmorton/inkwell/internal/database"
	"github.com/calebmorton/inkwell/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EmailVerificationRepository handles email verification token persistence
type EmailVerificationRepository struct {
	pool *pgxpool.Pool
}

func NewEmailVerificationRepository(db *database.DB) *EmailVerificationRepository {
	return &EmailVerificationRepository{pool: db.Pool}
}

func scanVerificationTokenRow(scanner rowScanner) (*models.EmailVerificationToken, error) {
	var token models.EmailVerificationToken
	var usedAt *time.Time

	err := scanner.Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.Email,
		&token.ExpiresAt, &usedAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	token.UsedAt = usedAt
	return &token, nil
}

func (r *EmailVerificationRepository) Create(ctx context.Context, userID, tokenHash, email string, expiresAt time.Time) (*models.EmailVerificationToken, error) {
	query := `
		INSERT INTO email_verification_tokens (id, user_id, token_hash, email, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, token_hash, email, expires_at, used_at, created_at
	`

	token, err := scanVerificationTokenRow(r.pool.QueryRow(ctx, query, uuid.New().String(), userID, tokenHash, email, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create email verification token: %w", err)
	}
	return token, nil
}

func (r *EmailVerificationRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.EmailVerificationToken, error) {
	query := `
		SELECT id, user_id, token_hash, email, expires_at, used_at, created_at
		FROM email_verification_tokens
		WHERE token_hash = $1
	`
	return scanVerificationTokenRow(r.pool.QueryRow(ctx, query, tokenHash))
}

// GetPendingByEmail returns the newest unconsumed token for an address,
// used to enforce the resend cooldown.
func (r *EmailVerificationRepository) GetPendingByEmail(ctx context.Context, email string) (*models.EmailVerificationToken, error) {
	query := `
		SELECT id, user_id, token_hash, email, expires_at, used_at, created_at
		FROM email_verification_tokens
		WHERE email = $1 AND used_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanVerificationTokenRow(r.pool.QueryRow(ctx, query, email))
}

func (r *EmailVerificationRepository) MarkAsUsed(ctx context.Context, id string) error {
	query := `UPDATE email_verification_tokens SET used_at = now() WHERE id = $1 AND used_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark verification token used: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *EmailVerificationRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM email_verification_tokens WHERE user_id = $1`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete verification tokens: %w", database.MapPostgresError(err))
	}
	return nil
}

func (r *EmailVerificationRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM email_verification_tokens WHERE expires_at < now()`

	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup verification tokens: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected(), nil
}
