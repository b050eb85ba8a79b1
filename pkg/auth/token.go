package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// TokenPrefix identifies folio tokens
	TokenPrefix = "folio_"
	// TokenLength is the number of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// ErrInvalidToken is returned for unknown, revoked, expired or malformed tokens.
var ErrInvalidToken = errors.New("invalid token")

// TokenGenerator generates and hashes API tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new API token.
// Format: folio_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullToken := TokenPrefix + encoded

	return fullToken, tg.HashToken(fullToken), TokenPrefix + encoded[:8], nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// TokenStore persists API tokens in the api_tokens table.
type TokenStore struct {
	db        *sql.DB
	generator *TokenGenerator
	clock     clockwork.Clock
}

// NewTokenStore creates a token store
func NewTokenStore(db *sql.DB, clock clockwork.Clock) *TokenStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &TokenStore{db: db, generator: NewTokenGenerator(), clock: clock}
}

// Create issues a token for userID. The plaintext token is returned once and
// never stored. A zero ttl means the token does not expire.
func (s *TokenStore) Create(ctx context.Context, userID int64, name string, ttl time.Duration) (*APIToken, string, error) {
	token, hash, prefix, err := s.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.clock.Now().UTC()
	apiToken := &APIToken{
		UserID:      userID,
		TokenHash:   hash,
		TokenPrefix: prefix,
		Name:        name,
		CreatedAt:   now,
	}
	var expires sql.NullTime
	if ttl > 0 {
		exp := now.Add(ttl)
		apiToken.ExpiresAt = &exp
		expires = sql.NullTime{Time: exp, Valid: true}
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, userID, hash, prefix, name, expires, now).Scan(&apiToken.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return apiToken, token, nil
}

// Validate resolves a plaintext token to its record and stamps last_used_at.
func (s *TokenStore) Validate(ctx context.Context, token string) (*APIToken, error) {
	if err := s.generator.ValidateTokenFormat(token); err != nil {
		return nil, ErrInvalidToken
	}

	var (
		t         APIToken
		expiresAt sql.NullTime
		lastUsed  sql.NullTime
		revokedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, token_prefix, name, expires_at, last_used_at, created_at, revoked_at
		FROM api_tokens
		WHERE token_hash = $1
	`, s.generator.HashToken(token)).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.TokenPrefix, &t.Name,
		&expiresAt, &lastUsed, &t.CreatedAt, &revokedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	now := s.clock.Now().UTC()
	if revokedAt.Valid {
		return nil, ErrInvalidToken
	}
	if expiresAt.Valid {
		if !now.Before(expiresAt.Time) {
			return nil, ErrInvalidToken
		}
		t.ExpiresAt = &expiresAt.Time
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE api_tokens SET last_used_at = $1 WHERE id = $2`, now, t.ID); err != nil {
		return nil, fmt.Errorf("failed to update token usage: %w", err)
	}
	t.LastUsedAt = &now

	return &t, nil
}

// Revoke marks a token revoked. Only the owning user may revoke it.
func (s *TokenStore) Revoke(ctx context.Context, userID, tokenID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE api_tokens SET revoked_at = $1
		WHERE id = $2 AND user_id = $3 AND revoked_at IS NULL
	`, s.clock.Now().UTC(), tokenID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	if n == 0 {
		return ErrInvalidToken
	}
	return nil
}

// DeleteExpired removes tokens that expired before now and returns how many
// were deleted.
func (s *TokenStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < $1
	`, s.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	return res.RowsAffected()
}
