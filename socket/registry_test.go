// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package socket

import (
	"testing"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangtaoking1/sockbridge/errors"
	"github.com/wangtaoking1/sockbridge/websocket"
)

func noopFactory(name string) Factory {
	return Factory{
		Open:             func(*Socket, Address, websocket.Options) {},
		Write:            func(*Socket, []byte) {},
		CompletedReceive: func(*Socket, int) {},
		Close:            func(*Socket, int, string) {},
		Context:          name,
	}
}

func TestValidateFactory(t *testing.T) {
	assert.NoError(t, ValidateFactory(noopFactory("ok")))

	err := ValidateFactory(Factory{})
	assert.True(t, errors.Is(err, ErrInvalidFactory))
	assert.Contains(t, err.Error(), "open, write, completedReceive, close")
}

func TestRegistry_RejectedKeepsPrevious(t *testing.T) {
	incomplete := map[string]func(f *Factory){
		"open":             func(f *Factory) { f.Open = nil },
		"write":            func(f *Factory) { f.Write = nil },
		"completedReceive": func(f *Factory) { f.CompletedReceive = nil },
		"close":            func(f *Factory) { f.Close = nil },
	}
	for slot, strip := range incomplete {
		t.Run(slot, func(t *testing.T) {
			r := NewRegistry()
			require.NoError(t, r.Register(noopFactory("previous")))

			f := noopFactory("broken")
			strip(&f)
			err := r.Register(f)
			assert.True(t, errors.Is(err, ErrInvalidFactory))
			assert.Contains(t, err.Error(), slot)
			assert.Equal(t, "previous", r.Factory().Context)
		})
	}
}

func TestRegistry_RejectedKeepsLazyDefault(t *testing.T) {
	r := NewRegistry(WithDefaultFactory(func() Factory { return noopFactory("default") }))
	assert.Nil(t, r.Factory())

	assert.Error(t, r.Register(Factory{}))
	f, err := r.EnsureInitialized()
	require.NoError(t, err)
	assert.Equal(t, "default", f.Context)
	assert.Same(t, f, r.Factory())
}

func TestRegistry_LastValidWins(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(noopFactory("a")))
	require.NoError(t, r.Register(noopFactory("b")))

	f, err := r.EnsureInitialized()
	require.NoError(t, err)
	assert.Equal(t, "b", f.Context)
}

func TestRegistry_NoDefault(t *testing.T) {
	r := NewRegistry(WithDefaultFactory(nil))
	_, err := r.EnsureInitialized()
	assert.True(t, errors.Is(err, ErrNoFactory))

	r = NewRegistry(WithDefaultFactory(func() Factory { return Factory{} }))
	_, err = r.EnsureInitialized()
	assert.True(t, errors.Is(err, ErrInvalidFactory))
	assert.Nil(t, r.Factory())
}

func TestRegistry_DefaultIsDialer(t *testing.T) {
	f, err := NewRegistry().EnsureInitialized()
	require.NoError(t, err)
	assert.IsType(t, &DialerOptions{}, f.Context)
}

func TestDefaultRegistry(t *testing.T) {
	assert.Error(t, RegisterFactory(Factory{Open: noopFactory("").Open}))

	f, err := RegisteredFactory()
	require.NoError(t, err)
	assert.NotNil(t, f)
	assert.Same(t, f, DefaultRegistry.Factory())
}

func TestRegistry_ConcurrentSwap(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(noopFactory("a")))

	var wg conc.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Go(func() {
			for j := 0; j < 500; j++ {
				name := "a"
				if j%2 == 0 {
					name = "b"
				}
				_ = r.Register(noopFactory(name))
				_ = r.Register(Factory{})
			}
		})
		wg.Go(func() {
			for j := 0; j < 500; j++ {
				f := r.Factory()
				if assert.NoError(t, ValidateFactory(*f)) {
					assert.Contains(t, []any{"a", "b"}, f.Context)
				}
			}
		})
	}
	wg.Wait()
}
