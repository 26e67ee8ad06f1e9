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

// PasswordResetRepository handles password reset token persistence.
// Only token digests are stored; the plaintext lives in the outbound
// email alone.
type PasswordResetRepository struct {
	pool *pgxpool.Pool
}

func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{pool: db.Pool}
}

func scanResetTokenRow(scanner rowScanner) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	var usedAt *time.Time

	err := scanner.Scan(
		&token.ID, &token.UserID, &token.TokenHash,
		&token.ExpiresAt, &usedAt, &token.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	token.UsedAt = usedAt
	return &token, nil
}

// Create stores a new reset token digest, superseding any outstanding
// token for the same account.
func (r *PasswordResetRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.PasswordResetToken, error) {
	// A new issuance invalidates the previous link
	if err := r.DeleteByUserID(ctx, userID); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, token_hash, expires_at, used_at, created_at
	`

	token, err := scanResetTokenRow(r.pool.QueryRow(ctx, query, uuid.New().String(), userID, tokenHash, expiresAt))
	if err != nil {
		return nil, fmt.Errorf("failed to create password reset token: %w", err)
	}
	return token, nil
}

func (r *PasswordResetRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1
	`
	return scanResetTokenRow(r.pool.QueryRow(ctx, query, tokenHash))
}

// MarkAsUsed consumes a token. Single-use: a consumed token never
// verifies again.
func (r *PasswordResetRepository) MarkAsUsed(ctx context.Context, id string) error {
	query := `UPDATE password_reset_tokens SET used_at = now() WHERE id = $1 AND used_at IS NULL`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark reset token used: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *PasswordResetRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM password_reset_tokens WHERE user_id = $1`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to delete reset tokens: %w", database.MapPostgresError(err))
	}
	return nil
}

// CleanupExpired removes tokens past their expiry. Run by the
// background sweeper.
func (r *PasswordResetRepository) CleanupExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM password_reset_tokens WHERE expires_at < now()`

	tag, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup reset tokens: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected(), nil
}
