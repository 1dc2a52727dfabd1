// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

// Package refcount provides thread-safe intrusive reference counting for
// objects whose lifetime is shared between goroutines.
//
// The count of a new object starts at 0, so it must be retained (usually by
// wrapping it in a Retained) right after construction.
package refcount

import (
	"sync/atomic"
)

// RefCounted is implemented by every struct that embeds Base.
type RefCounted interface {
	refBase() *Base
}

// Object is a RefCounted that can be compared against its zero value, in
// practice a pointer to a struct embedding Base.
type Object interface {
	RefCounted
	comparable
}

// Finalizer is implemented by RefCounted objects that release resources when
// their last reference goes away.
type Finalizer interface {
	Finalize()
}

// Base is the intrusive reference count. Embed it by value.
type Base struct {
	refs atomic.Int32
}

func (b *Base) refBase() *Base { return b }

// RefCount returns the current reference count.
func (b *Base) RefCount() int32 {
	return b.refs.Load()
}

// Retain increments the reference count of obj and returns it. Does nothing
// given a nil object.
func Retain[T Object](obj T) T {
	var zero T
	if obj == zero {
		return obj
	}
	obj.refBase().refs.Add(1)

	return obj
}

// Release decrements the reference count of obj, finalizing it when the count
// drops to zero or below. Does nothing given a nil object.
//
// Releasing an object more times than it was retained is a caller bug and
// finalizes it again.
func Release[T Object](obj T) {
	var zero T
	if obj == zero {
		return
	}
	if obj.refBase().refs.Add(-1) > 0 {
		return
	}
	if f, ok := any(obj).(Finalizer); ok {
		f.Finalize()
	}
}
