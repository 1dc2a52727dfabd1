// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package refcount

import "sync/atomic"

// Instances counts the live objects of every type that reports to it. Used for
// leak detection; it carries no ownership semantics.
var Instances = &InstanceCounter{}

// InstanceCounter tracks a number of live instances.
type InstanceCounter struct {
	n atomic.Int64
}

// Add records a constructed instance.
func (c *InstanceCounter) Add() {
	c.n.Add(1)
}

// Done records a destroyed instance.
func (c *InstanceCounter) Done() {
	c.n.Add(-1)
}

// Count returns the number of live instances.
func (c *InstanceCounter) Count() int64 {
	return c.n.Load()
}
