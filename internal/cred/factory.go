/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cred

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// Factory is the default Builder.
//
// A BlobPEM input without any PEM armor is parsed as raw DER, so attribute
// values produced by peers that send DER (including this module's own
// encoder) are accepted on the receive path.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Create(kind Kind, format BlobFormat, blob []byte) (Certificate, error) {
	if len(blob) == 0 {
		return nil, ErrEmptyBlob
	}

	der, pemType, err := unarmor(format, blob)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindX509:
		if pemType != "" && pemType != pemTypeCertificate {
			return nil, fmt.Errorf("%w: %q", ErrUnexpectedPEMType, pemType)
		}
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
		return NewX509(cert), nil
	case KindTrustedPubkey:
		return trustedPubkeyFromDER(der, pemType)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedKind, kind)
	}
}

func unarmor(format BlobFormat, blob []byte) ([]byte, string, error) {
	switch format {
	case BlobDER:
		return blob, "", nil
	case BlobPEM:
		block, _ := pem.Decode(blob)
		if block == nil {
			return blob, "", nil
		}
		return block.Bytes, block.Type, nil
	default:
		return nil, "", fmt.Errorf("%w: %d", ErrUnsupportedFormat, int(format))
	}
}

// trustedPubkeyFromDER accepts a PKIX SubjectPublicKeyInfo, or a certificate
// whose public key is then trusted on its own.
func trustedPubkeyFromDER(der []byte, pemType string) (Certificate, error) {
	switch pemType {
	case "", pemTypePublicKey:
		if key, err := x509.ParsePKIXPublicKey(der); err == nil {
			return NewTrustedPubkey(key), nil
		} else if pemType == pemTypePublicKey {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
		fallthrough
	case pemTypeCertificate:
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrParse, err)
		}
		return NewTrustedPubkey(cert.PublicKey), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnexpectedPEMType, pemType)
	}
}

// LoadFile reads a PEM or DER credential of the given kind from disk.
func LoadFile(b Builder, kind Kind, path string) (Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credential %s: %w", path, err)
	}
	return b.Create(kind, BlobPEM, data)
}
