// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package refcount

// Retained is an owning handle that holds one reference to a RefCounted
// object. The zero value is an empty handle.
//
// Go has no copy constructors or destructors, so every ownership transition
// is explicit: Clone for a copy, Move for a transfer, Release when done.
type Retained[T Object] struct {
	ref   T
	valid bool
}

// NewRetained retains obj and returns a handle owning that reference.
func NewRetained[T Object](obj T) Retained[T] {
	var zero T
	if obj == zero {
		return Retained[T]{}
	}

	return Retained[T]{ref: Retain(obj), valid: true}
}

// Get returns the held object, or the zero T for an empty handle.
func (r Retained[T]) Get() T {
	return r.ref
}

// IsNil reports whether the handle is empty.
func (r Retained[T]) IsNil() bool {
	return !r.valid
}

// Clone returns a new handle sharing the object, retaining it once more.
func (r Retained[T]) Clone() Retained[T] {
	if !r.valid {
		return Retained[T]{}
	}

	return NewRetained(r.ref)
}

// Assign makes the handle hold obj. The new object is retained before the old
// one is released, so assigning the object already held is safe.
func (r *Retained[T]) Assign(obj T) {
	var zero T
	valid := obj != zero
	if valid {
		Retain(obj)
	}
	if r.valid {
		Release(r.ref)
	}
	r.ref, r.valid = obj, valid
}

// Move transfers ownership to the returned handle and leaves r empty. The
// reference count is not touched.
func (r *Retained[T]) Move() Retained[T] {
	moved := *r
	*r = Retained[T]{}

	return moved
}

// Release drops the held reference and empties the handle. Releasing an empty
// handle is a no-op.
func (r *Retained[T]) Release() {
	if !r.valid {
		return
	}
	obj := r.ref
	*r = Retained[T]{}
	Release(obj)
}
