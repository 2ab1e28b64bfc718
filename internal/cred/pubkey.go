/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cred

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"
)

// TrustedPubkey is a naked AIK public key trusted without a certificate.
type TrustedPubkey struct {
	ref refCount

	mu  sync.RWMutex
	key crypto.PublicKey
}

func NewTrustedPubkey(key crypto.PublicKey) *TrustedPubkey {
	k := &TrustedPubkey{key: key}
	k.ref.init()
	return k
}

func (k *TrustedPubkey) Kind() Kind {
	return KindTrustedPubkey
}

func (k *TrustedPubkey) PublicKey() crypto.PublicKey {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.key
}

func (k *TrustedPubkey) Encoding(enc Encoding) ([]byte, error) {
	key := k.PublicKey()
	if key == nil {
		return nil, ErrReleased
	}
	switch enc {
	case EncodingPubkeySPKIDER, EncodingPubkeyPEM:
		return encodePublicKey(key, enc)
	default:
		return nil, fmt.Errorf("%w: %v for %v", ErrUnsupportedEncoding, enc, KindTrustedPubkey)
	}
}

func (k *TrustedPubkey) GetRef() Certificate {
	k.ref.get()
	return k
}

func (k *TrustedPubkey) Destroy() {
	if k.ref.put() {
		k.mu.Lock()
		k.key = nil
		k.mu.Unlock()
	}
}

func encodePublicKey(key crypto.PublicKey, enc Encoding) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	if enc == EncodingPubkeyPEM {
		return pem.EncodeToMemory(&pem.Block{Type: pemTypePublicKey, Bytes: der}), nil
	}
	return der, nil
}
