/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package pts

import (
	"bytes"
	"io"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/kentakayama/pts-over-http/internal/bio"
	"github.com/kentakayama/pts-over-http/internal/cred"
)

// Attestation Identity Key, section 3.13 of the PTS Protocol: Binding to
// TNC IF-M Specification
//
//	 0                   1                   2                   3
//	 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|     Flags     |  Attestation Identity Key (Variable Length)   ~
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//	|           Attestation Identity Key (Variable Length)          ~
//	+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
const aikMinSize = 4

type AIKFlags uint8

const (
	AIKFlagsNone     AIKFlags = 0
	AIKFlagsNakedKey AIKFlags = 1 << 7
)

func (f AIKFlags) NakedKey() bool {
	return f&AIKFlagsNakedKey != 0
}

// AIK is the Attestation Identity Key attribute.
type AIK interface {
	Attribute
	// AIK returns the held certificate or naked key, nil until a received
	// value has been processed successfully.
	AIK() cred.Certificate
}

type aikAttr struct {
	typ    PenType
	length int
	value  []byte
	noskip bool
	aik    cred.Certificate
	ref    atomic.Int32

	creds cred.Builder
	log   logrus.FieldLogger
}

// NewAIK creates an AIK attribute to be sent, holding its own reference to aik.
func NewAIK(aik cred.Certificate, logger logrus.FieldLogger) AIK {
	a := newAIKAttr(logger)
	if aik != nil {
		a.aik = aik.GetRef()
	}
	return a
}

// NewAIKFromData creates an AIK attribute from a received value of the
// announced total length. More data may follow through AddSegment.
func NewAIKFromData(length int, data []byte, creds cred.Builder, logger logrus.FieldLogger) AIK {
	a := newAIKAttr(logger)
	a.length = length
	a.value = bytes.Clone(data)
	a.creds = creds
	return a
}

func newAIKAttr(logger logrus.FieldLogger) *aikAttr {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	a := &aikAttr{
		typ: PenType{Vendor: PenTCG, Type: TCGPtsAIK},
	}
	a.log = logger.WithField("attr_type", a.typ.String())
	a.ref.Store(1)
	return a
}

func (a *aikAttr) Type() PenType {
	return a.typ
}

func (a *aikAttr) Value() []byte {
	return a.value
}

func (a *aikAttr) NoskipFlag() bool {
	return a.noskip
}

func (a *aikAttr) SetNoskipFlag(noskip bool) {
	a.noskip = noskip
}

func (a *aikAttr) Build() {
	if len(a.value) > 0 {
		return
	}

	flags := AIKFlagsNone
	var blob []byte
	if a.aik == nil {
		a.log.Warn("encoding of Attestation Identity Key failed: no key")
	} else {
		encoding := cred.EncodingCertDER
		if a.aik.Kind() == cred.KindTrustedPubkey {
			flags |= AIKFlagsNakedKey
			encoding = cred.EncodingPubkeySPKIDER
		}
		var err error
		blob, err = a.aik.Encoding(encoding)
		if err != nil {
			a.log.WithError(err).Warn("encoding of Attestation Identity Key failed")
			blob = nil
		}
	}

	w := bio.NewWriter(aikMinSize)
	w.WriteUint8(uint8(flags))
	w.WriteData(blob)
	a.value = w.ExtractBuf()
	a.length = len(a.value)
}

func (a *aikAttr) Process() (uint32, Status) {
	if len(a.value) < a.length {
		return 0, StatusNeedMore
	}
	if len(a.value) < aikMinSize {
		a.log.WithField("length", len(a.value)).Warn("insufficient data for Attestation Identity Key")
		return 0, StatusFailed
	}

	r := bio.NewReader(a.value)
	f, _ := r.ReadUint8()
	blob := r.ReadRemaining()

	flags := AIKFlags(f)
	kind := cred.KindX509
	if flags.NakedKey() {
		kind = cred.KindTrustedPubkey
	}

	if a.creds == nil {
		a.log.Warn("parsing of Attestation Identity Key failed: no credential builder")
		return 0, StatusFailed
	}
	aik, err := a.creds.Create(kind, cred.BlobPEM, blob)
	if err != nil {
		a.log.WithError(err).WithField("kind", kind.String()).Warn("parsing of Attestation Identity Key failed")
		return 0, StatusFailed
	}
	if a.aik != nil {
		a.aik.Destroy()
	}
	a.aik = aik
	return 0, StatusSuccess
}

func (a *aikAttr) AddSegment(segment []byte) {
	a.value = append(a.value, segment...)
}

func (a *aikAttr) GetRef() Attribute {
	a.ref.Add(1)
	return a
}

func (a *aikAttr) Destroy() {
	if a.ref.Add(-1) != 0 {
		return
	}
	if a.aik != nil {
		a.aik.Destroy()
		a.aik = nil
	}
	a.value = nil
}

func (a *aikAttr) AIK() cred.Certificate {
	return a.aik
}
