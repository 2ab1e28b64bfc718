/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cred

import "errors"

var (
	ErrUnsupportedKind     = errors.New("unsupported credential kind")
	ErrUnsupportedEncoding = errors.New("unsupported credential encoding")
	ErrUnsupportedFormat   = errors.New("unsupported blob format")
	ErrEmptyBlob           = errors.New("empty credential blob")
	ErrUnexpectedPEMType   = errors.New("unexpected PEM block type")
	ErrParse               = errors.New("failed to parse credential")
	ErrReleased            = errors.New("credential already released")
)
