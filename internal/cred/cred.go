/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package cred models the certificates and naked public keys carried in
// Attestation Identity Key attributes, and the service constructing them
// from received blobs.
package cred

import (
	"crypto"
	"fmt"
)

type Kind int

const (
	KindX509          Kind = 1
	KindTrustedPubkey Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindX509:
		return "x509"
	case KindTrustedPubkey:
		return "trusted-pubkey"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "x509":
		return KindX509, nil
	case "trusted-pubkey":
		return KindTrustedPubkey, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
}

type Encoding int

const (
	EncodingCertDER Encoding = iota + 1
	EncodingCertPEM
	EncodingPubkeySPKIDER
	EncodingPubkeyPEM
)

func (e Encoding) String() string {
	switch e {
	case EncodingCertDER:
		return "cert-der"
	case EncodingCertPEM:
		return "cert-pem"
	case EncodingPubkeySPKIDER:
		return "pubkey-spki-der"
	case EncodingPubkeyPEM:
		return "pubkey-pem"
	default:
		return fmt.Sprintf("unknown(%d)", int(e))
	}
}

// BlobFormat tells the Builder how a blob handed to Create is armored.
type BlobFormat int

const (
	BlobPEM BlobFormat = iota + 1
	BlobDER
)

// Certificate is a reference counted credential. GetRef and Destroy may be
// called concurrently by independent holders.
type Certificate interface {
	Kind() Kind
	Encoding(enc Encoding) ([]byte, error)
	PublicKey() crypto.PublicKey
	GetRef() Certificate
	Destroy()
}

// Builder is the credential-construction service.
type Builder interface {
	Create(kind Kind, format BlobFormat, blob []byte) (Certificate, error)
}
