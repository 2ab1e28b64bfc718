/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/kentakayama/pts-over-http/internal/domain"
	"github.com/kentakayama/pts-over-http/internal/domain/model"
	"github.com/kentakayama/pts-over-http/internal/domain/service"
)

var _ service.AIKRepository = (*AIKRepository)(nil)

type AIKRepository struct {
	db *sql.DB
}

// NewAIKRepository creates a new instance of AIKRepository.
func NewAIKRepository(db *sql.DB) *AIKRepository {
	return &AIKRepository{db: db}
}

const aikColumns = `id, kid, kind, encoded, public_key, noskip, created_at, revoked_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAIK(row rowScanner) (*model.AIK, error) {
	var a model.AIK
	var revokedAtUnix sql.NullInt64
	if err := row.Scan(&a.ID, &a.KID, &a.Kind, &a.Encoded, &a.PublicKey, &a.Noskip, &a.CreatedAt, &revokedAtUnix); err != nil {
		return nil, err
	}
	if revokedAtUnix.Valid {
		t := time.Unix(revokedAtUnix.Int64, 0).UTC()
		a.RevokedAt = &t
	}
	return &a, nil
}

func (r *AIKRepository) GetAll(ctx context.Context) ([]model.AIK, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+aikColumns+` FROM aiks ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var aiks []model.AIK
	for rows.Next() {
		a, err := scanAIK(rows)
		if err != nil {
			return nil, err
		}
		aiks = append(aiks, *a)
	}
	return aiks, rows.Err()
}

// FindByKID returns a non-revoked AIK.
func (r *AIKRepository) FindByKID(ctx context.Context, kid []byte) (*model.AIK, error) {
	a, err := r.FindByKIDIgnoreRevoked(ctx, kid)
	if err != nil {
		return nil, err
	}
	if a.RevokedAt != nil {
		return nil, domain.ErrRevoked
	}
	return a, nil
}

func (r *AIKRepository) FindByKIDIgnoreRevoked(ctx context.Context, kid []byte) (*model.AIK, error) {
	const query = `SELECT ` + aikColumns + ` FROM aiks WHERE kid = ? LIMIT 1`
	a, err := scanAIK(r.db.QueryRowContext(ctx, query, kid))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (r *AIKRepository) Create(ctx context.Context, a *model.AIK) (int64, error) {
	const query = `
		INSERT INTO aiks (kid, kind, encoded, public_key, noskip, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query, a.KID, a.Kind, a.Encoded, a.PublicKey, a.Noskip, a.CreatedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, domain.ErrAlreadyExists
		}
		return 0, err
	}
	return result.LastInsertId()
}

// RevokeByKID marks an AIK as revoked by setting revoked_at to the current Unix timestamp.
func (r *AIKRepository) RevokeByKID(ctx context.Context, kid []byte) error {
	const query = `
		UPDATE aiks
		SET revoked_at = ?
		WHERE kid = ? AND revoked_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC().Unix(), kid)
	if err != nil {
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
