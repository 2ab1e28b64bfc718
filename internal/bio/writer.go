/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

// Package bio provides the byte cursors used to compose and parse PA-TNC
// attribute values.
package bio

import "golang.org/x/crypto/cryptobyte"

// Writer appends fields to a growing buffer.
type Writer struct {
	b *cryptobyte.Builder
}

// NewWriter returns a Writer with an initial capacity of bufsize bytes.
func NewWriter(bufsize int) *Writer {
	return &Writer{b: cryptobyte.NewBuilder(make([]byte, 0, max(bufsize, 0)))}
}

func (w *Writer) WriteUint8(v uint8) {
	w.b.AddUint8(v)
}

func (w *Writer) WriteData(data []byte) {
	w.b.AddBytes(data)
}

// ExtractBuf hands over the written bytes and resets the Writer.
func (w *Writer) ExtractBuf() []byte {
	// only fixed-size and raw fields are added, so Bytes cannot fail
	buf, _ := w.b.Bytes()
	w.b = cryptobyte.NewBuilder(nil)
	return buf
}
