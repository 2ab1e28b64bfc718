/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package pts implements PA-TNC attributes of the TCG Platform Trust
// Service (PTS) protocol binding to IF-M.
package pts

import "fmt"

// PEN is an IANA Private Enterprise Number (24 bits on the wire).
type PEN uint32

const (
	PenIETF PEN = 0x000000
	PenTCG  PEN = 0x005597
)

func (p PEN) String() string {
	switch p {
	case PenIETF:
		return "IETF"
	case PenTCG:
		return "TCG"
	default:
		return fmt.Sprintf("PEN(0x%06x)", uint32(p))
	}
}

// TCG PTS attribute types
const (
	TCGPtsGetAIK uint32 = 0x0000000D
	TCGPtsAIK    uint32 = 0x0000000E
)

// PenType is the vendor-scoped attribute type.
type PenType struct {
	Vendor PEN
	Type   uint32
}

func (t PenType) String() string {
	return fmt.Sprintf("%s/0x%08x", t.Vendor, t.Type)
}

type Status int

const (
	StatusSuccess Status = iota
	StatusNeedMore
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNeedMore:
		return "need-more"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Attribute is the contract shared by all PA-TNC attributes.
//
// Build, Process and AddSegment are driven by a single owner at a time.
// GetRef and Destroy are safe for concurrent use by independent holders;
// the attribute is released when the last holder calls Destroy.
type Attribute interface {
	Type() PenType
	// Value returns the encoded or received attribute value. The slice is
	// owned by the attribute and must not be modified.
	Value() []byte
	NoskipFlag() bool
	SetNoskipFlag(noskip bool)
	// Build encodes the attribute value. It is a no-op once a value exists.
	Build()
	// Process parses the received value. offset points at the offending
	// byte on failure.
	Process() (offset uint32, status Status)
	AddSegment(segment []byte)
	GetRef() Attribute
	Destroy()
}
