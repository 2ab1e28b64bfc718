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
	"sync/atomic"
)

const (
	pemTypeCertificate = "CERTIFICATE"
	pemTypePublicKey   = "PUBLIC KEY"
)

// X509 wraps a parsed X.509 AIK certificate.
type X509 struct {
	ref  refCount
	cert atomic.Pointer[x509.Certificate]
}

func NewX509(cert *x509.Certificate) *X509 {
	c := &X509{}
	c.ref.init()
	c.cert.Store(cert)
	return c
}

func (c *X509) Kind() Kind {
	return KindX509
}

// Certificate returns the wrapped certificate, nil once released.
func (c *X509) Certificate() *x509.Certificate {
	return c.cert.Load()
}

func (c *X509) PublicKey() crypto.PublicKey {
	cert := c.cert.Load()
	if cert == nil {
		return nil
	}
	return cert.PublicKey
}

func (c *X509) Encoding(enc Encoding) ([]byte, error) {
	cert := c.cert.Load()
	if cert == nil {
		return nil, ErrReleased
	}
	switch enc {
	case EncodingCertDER:
		return append([]byte(nil), cert.Raw...), nil
	case EncodingCertPEM:
		return pem.EncodeToMemory(&pem.Block{Type: pemTypeCertificate, Bytes: cert.Raw}), nil
	case EncodingPubkeySPKIDER, EncodingPubkeyPEM:
		return encodePublicKey(cert.PublicKey, enc)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedEncoding, enc)
	}
}

func (c *X509) GetRef() Certificate {
	c.ref.get()
	return c
}

func (c *X509) Destroy() {
	if c.ref.put() {
		c.cert.Store(nil)
	}
}
