/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package collector

import "errors"

var (
	ErrInvalidRequest = errors.New("invalid segment request")
	ErrUnknownSession = errors.New("unknown reassembly session")
	ErrAttrTooLarge   = errors.New("attribute exceeds maximum length")
	ErrAttrFailed     = errors.New("attestation identity key attribute rejected")
)
