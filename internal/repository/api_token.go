package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"eduflow-backend/internal/domain"
)

type APITokenRepository struct {
	db *sql.DB
}

func NewAPITokenRepository(db *sql.DB) *APITokenRepository {
	return &APITokenRepository{db: db}
}

// FindByPlainToken resolves a bearer token of the form "<id>|<secret>" (or a
// bare secret) against the stored sha256 hash.
func (r *APITokenRepository) FindByPlainToken(ctx context.Context, plainToken string) (*domain.APIToken, error) {
	plainToken = strings.TrimSpace(plainToken)
	if plainToken == "" {
		return nil, errors.New("empty token")
	}

	tokenPart := plainToken
	var tokenID *int64
	if idx := strings.Index(plainToken, "|"); idx > 0 {
		var id int64
		if _, err := fmt.Sscanf(plainToken[:idx], "%d", &id); err == nil {
			tokenID = &id
			tokenPart = plainToken[idx+1:]
		}
	}

	sum := sha256.Sum256([]byte(tokenPart))
	hash := fmt.Sprintf("%x", sum)

	var tok domain.APIToken
	if tokenID != nil {
		err := r.db.QueryRowContext(ctx, `
			SELECT id, token, user_id, abilities, expires_at
			FROM personal_access_tokens
			WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)`,
			*tokenID, time.Now(),
		).Scan(&tok.ID, &tok.TokenHash, &tok.UserID, &tok.Abilities, &tok.ExpiresAt)
		if err == nil && tok.TokenHash == hash {
			return &tok, nil
		}
	}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, token, user_id, abilities, expires_at
		FROM personal_access_tokens
		WHERE token = $1 AND (expires_at IS NULL OR expires_at > $2)
		ORDER BY created_at DESC
		LIMIT 1`,
		hash, time.Now(),
	).Scan(&tok.ID, &tok.TokenHash, &tok.UserID, &tok.Abilities, &tok.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.New("token not found")
	}
	if err != nil {
		return nil, err
	}
	return &tok, nil
}
