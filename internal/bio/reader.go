/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package bio

import "golang.org/x/crypto/cryptobyte"

// Reader consumes fields from a byte slice. A read that does not fit in the
// remaining data returns false and leaves the cursor untouched.
type Reader struct {
	s cryptobyte.String
}

func NewReader(data []byte) *Reader {
	return &Reader{s: cryptobyte.String(data)}
}

func (r *Reader) ReadUint8() (uint8, bool) {
	var v uint8
	ok := r.s.ReadUint8(&v)
	return v, ok
}

// ReadRemaining consumes and returns all unread bytes. The returned slice
// aliases the underlying buffer.
func (r *Reader) ReadRemaining() []byte {
	var v []byte
	r.s.ReadBytes(&v, len(r.s))
	return v
}
