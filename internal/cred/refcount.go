/*
 * Copyright (c) 2025 SECOM CO., LTD. All Rights reserved.
 *
 * SPDX-License-Identifier: BSD-2-Clause
 */

package cred

import "sync/atomic"

type refCount struct {
	n atomic.Int32
}

func (r *refCount) init() {
	r.n.Store(1)
}

func (r *refCount) get() {
	r.n.Add(1)
}

// put reports whether the last reference was dropped.
func (r *refCount) put() bool {
	return r.n.Add(-1) == 0
}
