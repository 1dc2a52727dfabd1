// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package socket

import (
	"sync/atomic"

	"github.com/wangtaoking1/sockbridge/errors"
	"github.com/wangtaoking1/sockbridge/log"
)

// Registry holds the active socket factory. The table is replaced as a whole,
// so readers always see either the old or the new complete table.
type Registry struct {
	active     atomic.Pointer[Factory]
	newDefault func() Factory
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithDefaultFactory sets the constructor of the factory installed by
// EnsureInitialized when nothing was registered. Passing nil disables the
// default.
func WithDefaultFactory(fn func() Factory) RegistryOption {
	return func(r *Registry) {
		r.newDefault = fn
	}
}

// NewRegistry returns an empty registry whose default is the gorilla dialer.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		newDefault: func() Factory {
			return NewDialerFactory(NewDialerOptions())
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register validates f and makes it the active factory. An invalid factory is
// rejected and the active one is left in place. The last valid call wins.
func (r *Registry) Register(f Factory) error {
	if err := ValidateFactory(f); err != nil {
		log.Warnw("Rejected socket factory registration", "error", err)
		return err
	}
	r.active.Store(&f)
	log.Debug("Socket factory registered")

	return nil
}

// Factory returns the active factory, nil if none was registered or
// installed yet.
func (r *Registry) Factory() *Factory {
	return r.active.Load()
}

// EnsureInitialized returns the active factory, installing the default one
// on first use.
func (r *Registry) EnsureInitialized() (*Factory, error) {
	if f := r.active.Load(); f != nil {
		return f, nil
	}
	if r.newDefault == nil {
		return nil, ErrNoFactory
	}

	def := r.newDefault()
	if err := ValidateFactory(def); err != nil {
		return nil, errors.WithMessage(err, "default factory")
	}
	if r.active.CompareAndSwap(nil, &def) {
		log.Debug("Installed default socket factory")
	}

	return r.active.Load(), nil
}

// DefaultRegistry is the process-wide registry used by NewProvider(nil).
var DefaultRegistry = NewRegistry()

// RegisterFactory registers f with DefaultRegistry.
func RegisterFactory(f Factory) error {
	return DefaultRegistry.Register(f)
}

// RegisteredFactory returns the active factory of DefaultRegistry, installing
// the default one on first use.
func RegisteredFactory() (*Factory, error) {
	return DefaultRegistry.EnsureInitialized()
}
