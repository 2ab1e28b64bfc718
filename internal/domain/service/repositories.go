/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package service

import (
	"context"

	"github.com/kentakayama/pts-over-http/internal/domain/model"
)

// AIKRepository defines the interface for collected AIK persistence.
type AIKRepository interface {
	Create(ctx context.Context, a *model.AIK) (int64, error)
	FindByKID(ctx context.Context, kid []byte) (*model.AIK, error)
	FindByKIDIgnoreRevoked(ctx context.Context, kid []byte) (*model.AIK, error)
	GetAll(ctx context.Context) ([]model.AIK, error)
	RevokeByKID(ctx context.Context, kid []byte) error
}
