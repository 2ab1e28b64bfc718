/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package domain

import "errors"

var (
	ErrNotFound      = errors.New("item not found")
	ErrRevoked       = errors.New("item revoked")
	ErrAlreadyExists = errors.New("item already exists")
)
