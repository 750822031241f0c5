// Package apikey validates SHA-256-hashed API keys stored in PostgreSQL.
// Each key carries a role that decides whether its holder may receive
// unredacted output.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/Adithya-Monish-Kumar-K/mediscrub/pkg/postgres"
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

// Schema creates the api_keys table.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS api_keys (
		id         BIGSERIAL PRIMARY KEY,
		key_hash   TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		role       TEXT NOT NULL DEFAULT 'front_desk',
		rate_limit INTEGER NOT NULL DEFAULT 60,
		is_active  BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ
	)`,
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var keyColumns = []string{"id", "name", "role", "rate_limit", "is_active", "created_at", "expires_at"}

// KeyInfo holds metadata about a validated API key.
type KeyInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Role      Role       `json:"role"`
	RateLimit int        `json:"rate_limit"`
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Validator validates API keys against the api_keys table.
type Validator struct {
	db     *postgres.Client
	logger *slog.Logger
}

func NewValidator(db *postgres.Client) *Validator {
	return &Validator{
		db:     db,
		logger: slog.Default().With("component", "apikey-validator"),
	}
}

// Migrate creates the schema if needed.
func (v *Validator) Migrate(ctx context.Context) error {
	return v.db.Migrate(ctx, Schema...)
}

// Validate checks a raw API key. It returns ErrInvalidKey for unknown or
// revoked keys and ErrExpiredKey for expired ones.
func (v *Validator) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	query, args, err := psql.Select(keyColumns...).From("api_keys").
		Where(sq.Eq{"key_hash": HashKey(rawKey), "is_active": true}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building key query: %w", err)
	}
	info, err := scanKey(v.db.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	if info.ExpiresAt != nil && info.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpiredKey
	}
	return info, nil
}

// CreateKey stores the hash of a fresh key and returns the raw key, which
// cannot be retrieved again.
func (v *Validator) CreateKey(ctx context.Context, name string, role Role, rateLimit int, expiresAt *time.Time) (string, error) {
	rawKey, err := generateRawKey()
	if err != nil {
		return "", err
	}
	var expiry sql.NullTime
	if expiresAt != nil {
		expiry = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	query, args, err := psql.Insert("api_keys").
		Columns("key_hash", "name", "role", "rate_limit", "expires_at").
		Values(HashKey(rawKey), name, string(role), rateLimit, expiry).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("building insert: %w", err)
	}
	if _, err := v.db.DB.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("creating api key: %w", err)
	}
	v.logger.Info("api key created", "name", name, "role", role, "rate_limit", rateLimit)
	return rawKey, nil
}

// RevokeKey deactivates a key.
func (v *Validator) RevokeKey(ctx context.Context, rawKey string) error {
	query, args, err := psql.Update("api_keys").
		Set("is_active", false).
		Where(sq.Eq{"key_hash": HashKey(rawKey)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building revoke: %w", err)
	}
	result, err := v.db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrInvalidKey
	}
	v.logger.Info("api key revoked")
	return nil
}

// ListKeys returns active keys without their hashes.
func (v *Validator) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	query, args, err := psql.Select(keyColumns...).From("api_keys").
		Where(sq.Eq{"is_active": true}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building list: %w", err)
	}
	rows, err := v.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	var keys []KeyInfo
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		keys = append(keys, *k)
	}
	return keys, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKey(row rowScanner) (*KeyInfo, error) {
	var (
		info      KeyInfo
		role      string
		expiresAt sql.NullTime
	)
	if err := row.Scan(&info.ID, &info.Name, &role, &info.RateLimit, &info.IsActive, &info.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	parsed, err := ParseRole(role)
	if err != nil {
		// Unknown roles are treated as the least privileged.
		parsed = RoleFrontDesk
	}
	info.Role = parsed
	if expiresAt.Valid {
		info.ExpiresAt = &expiresAt.Time
	}
	return &info, nil
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateRawKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return "ms_" + hex.EncodeToString(b), nil
}
