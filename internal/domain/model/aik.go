/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package model

import "time"

// AIK is a collected Attestation Identity Key.
type AIK struct {
	ID        int64
	KID       []byte // COSE Key Thumbprint (SHA-256)
	Kind      string // "x509" or "trusted-pubkey"
	Encoded   []byte // certificate DER, or SPKI DER for a naked key
	PublicKey []byte // COSE_Key, nil if not expressible
	Noskip    bool
	CreatedAt time.Time
	RevokedAt *time.Time // NULL if not revoked
}
