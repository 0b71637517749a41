package login

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"clamflow/frontend/shared/apperr"
	"clamflow/infrastructure/argon"
	"clamflow/infrastructure/rbac"
	"clamflow/infrastructure/sqlite"
	"clamflow/models"
)

// ErrInvalidCredentials hides whether the username or the password was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

func findOperatorByUsername(ctx context.Context, tx bun.Tx, username string) (models.Operator, error) {
	var op models.Operator
	err := tx.NewSelect().
		Model(&op).
		Where("LOWER(username) = ?", strings.ToLower(strings.TrimSpace(username))).
		Limit(1).
		Scan(ctx)
	return op, err
}

func authenticateOperator(ctx context.Context, db *sqlite.DB, username, password string) (models.Operator, error) {
	var op models.Operator
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var err error
		op, err = findOperatorByUsername(ctx, tx, username)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return models.Operator{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Operator{}, fmt.Errorf("load operator: %w", err)
	}

	ok, err := argon.Verify(password, op.PasswordHash)
	if err != nil {
		return models.Operator{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return models.Operator{}, ErrInvalidCredentials
	}
	return op, nil
}

func persistSession(ctx context.Context, db *sqlite.DB, s models.Session) error {
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&models.Session{
			ID:         s.ID,
			OperatorID: s.OperatorID,
			ExpiresAt:  s.ExpiresAt,
			CreatedAt:  s.CreatedAt,
		}).Exec(ctx)
		return err
	})
}

func DeleteSessionByToken(ctx context.Context, db *sqlite.DB, token string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewDelete().Model((*models.Session)(nil)).Where("id = ?", token).Exec(ctx)
		return err
	})
}

// LoadSessionByToken returns sql.ErrNoRows for unknown or expired tokens.
func LoadSessionByToken(ctx context.Context, db *sqlite.DB, token string) (models.Session, error) {
	var s models.Session
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model(&s).
			Relation("Operator").
			Where("s.id = ?", token).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return models.Session{}, err
	}
	if s.Expired() {
		_ = DeleteSessionByToken(ctx, db, token)
		return models.Session{}, sql.ErrNoRows
	}
	if s.Operator == nil {
		return models.Session{}, sql.ErrNoRows
	}
	s.Roles = []string{s.Operator.Role}
	return s, nil
}

// UpsertOperator creates or re-keys an operator account.
func UpsertOperator(ctx context.Context, db *sqlite.DB, username, role, rawPassword string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return apperr.Invalid("username is required", "username")
	}
	if !rbac.ValidRole(role) {
		return apperr.Invalid(fmt.Sprintf("unknown role %q", role), "role")
	}
	if err := ValidatePasswordPolicy(rawPassword); err != nil {
		return err
	}
	hash, err := argon.Hash(rawPassword, argon.DefaultParams)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	return db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&models.Operator{
				Username:     username,
				PasswordHash: hash,
				Role:         role,
				CreatedAt:    now,
				UpdatedAt:    now,
			}).
			On("CONFLICT (username) DO UPDATE").
			Set("password_hash = EXCLUDED.password_hash").
			Set("role = EXCLUDED.role").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
}

// ListOperators returns accounts without password hashes.
func ListOperators(ctx context.Context, db *sqlite.DB) ([]models.Operator, error) {
	var ops []models.Operator
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().
			Model(&ops).
			Column("id", "username", "role", "created_at", "updated_at").
			OrderExpr("username ASC").
			Scan(ctx)
	})
	return ops, err
}
