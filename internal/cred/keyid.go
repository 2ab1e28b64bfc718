/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cred

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/veraison/go-cose"
)

// KeyID identifies an AIK by the COSE Key thumbprint of its public key.
// Keys go-cose cannot express (e.g. RSA) fall back to the SHA-256 digest of
// the PKIX SubjectPublicKeyInfo.
func KeyID(c Certificate) ([]byte, error) {
	pub := c.PublicKey()
	if pub == nil {
		return nil, ErrReleased
	}

	if key, err := cose.NewKeyFromPublic(pub); err == nil {
		if kid, err := key.Thumbprint(crypto.SHA256); err == nil {
			return kid, nil
		}
	}

	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	sum := sha256.Sum256(der)
	return sum[:], nil
}

// COSEKey returns the CBOR encoded COSE_Key of the AIK public key.
func COSEKey(c Certificate) ([]byte, error) {
	pub := c.PublicKey()
	if pub == nil {
		return nil, ErrReleased
	}
	key, err := cose.NewKeyFromPublic(pub)
	if err != nil {
		return nil, err
	}
	return cbor.Marshal(key)
}
