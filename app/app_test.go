// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package app

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wangtaoking1/sockbridge/errors"
)

type testOptions struct {
	Interval  time.Duration
	Name      string
	completed bool
}

func (o *testOptions) Flags() (fss NamedFlagSets) {
	fs := fss.FlagSet("generic")
	fs.DurationVarP(&o.Interval, "interval", "i", o.Interval, "sync interval")
	fss.FlagSet("naming").StringVar(&o.Name, "name_of", o.Name, "the name")

	return fss
}

func (o *testOptions) Validate() []error {
	var errs []error
	if o.Interval > 30*time.Second {
		errs = append(errs, errors.New("interval must not bigger than 30s"))
	}

	return errs
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func newTestApp(opts *testOptions, run RunFunc, extra ...Option) App {
	return NewApp("testctl", "test ctl", append([]Option{
		WithOptions(opts),
		WithSilence(),
		WithNoConfig(),
		WithDefaultValidArgs(),
		WithRunFunc(run),
	}, extra...)...)
}

func TestApp_RunParsesOptions(t *testing.T) {
	opts := &testOptions{Interval: 5 * time.Second}
	var ran string
	a := newTestApp(opts, func(name string) error {
		ran = name
		return nil
	})

	cmd := a.Command()
	cmd.SetArgs([]string{"--interval=10s", "--name_of=bridge"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "testctl", ran)
	assert.Equal(t, 10*time.Second, opts.Interval)
	assert.Equal(t, "bridge", opts.Name)
	assert.True(t, opts.completed)
}

func TestApp_ValidationFails(t *testing.T) {
	opts := &testOptions{}
	a := newTestApp(opts, func(string) error {
		t.Fatal("run must not be called")
		return nil
	})

	cmd := a.Command()
	cmd.SetArgs([]string{"--interval=1m"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interval must not bigger than 30s")
}

func TestApp_RejectsArgs(t *testing.T) {
	a := newTestApp(&testOptions{}, func(string) error { return nil })

	cmd := a.Command()
	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}

func TestApp_SubCommand(t *testing.T) {
	subOpts := &testOptions{}
	var ran bool
	sub := NewCommand("dial", "dial a peer",
		WithCmdOptions(subOpts),
		WithCmdDescription("dial a peer and exit"),
		WithCmdRunFunc(func(name string) error {
			ran = name == "dial"
			return nil
		}),
	)
	a := newTestApp(&testOptions{}, func(string) error { return nil }, WithCommands(sub))

	cmd := a.Command()
	cmd.SetArgs([]string{"dial", "-i", "2s"})
	require.NoError(t, cmd.Execute())
	assert.True(t, ran)
	assert.Equal(t, 2*time.Second, subOpts.Interval)

	cmd.SetArgs([]string{"dial", "-i", "2m"})
	assert.Error(t, cmd.Execute())
}

func TestApp_Help(t *testing.T) {
	a := newTestApp(&testOptions{}, func(string) error { return nil })

	var out bytes.Buffer
	cmd := a.Command()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--help"})
	require.NoError(t, cmd.Execute())

	help := out.String()
	assert.Contains(t, help, "Usage:")
	assert.Contains(t, help, "Generic flags:")
	assert.Contains(t, help, "Naming flags:")
	assert.Contains(t, help, "Global flags:")
	assert.Less(t, strings.Index(help, "Generic flags:"), strings.Index(help, "Naming flags:"))
}

func TestNamedFlagSets(t *testing.T) {
	var fss NamedFlagSets
	a := fss.FlagSet("a")
	fss.FlagSet("b")
	assert.Same(t, a, fss.FlagSet("a"))
	assert.Equal(t, []string{"a", "b"}, fss.Order)

	a.String("key", "v", "a key")
	var out bytes.Buffer
	PrintSections(&out, fss, 0)
	assert.Contains(t, out.String(), "A flags:")
	assert.Contains(t, out.String(), "--key")
	assert.NotContains(t, out.String(), "B flags:")
}

func TestTerminalSize_NotTerminal(t *testing.T) {
	_, _, err := TerminalSize(&bytes.Buffer{})
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	info := Version()
	assert.Equal(t, GitVersion, info.GitVersion)

	var decoded VersionInfo
	require.NoError(t, json.Unmarshal([]byte(info.ToJSON()), &decoded))
	assert.Equal(t, info, decoded)
	assert.Contains(t, info.String(), "platform:")
}

func TestApp_VersionCommand(t *testing.T) {
	a := newTestApp(&testOptions{}, func(string) error { return nil })

	var out bytes.Buffer
	cmd := a.Command()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version", "-o", "json"})
	require.NoError(t, cmd.Execute())

	var decoded VersionInfo
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(out.Bytes()), &decoded))
	assert.Equal(t, Version(), decoded)

	out.Reset()
	cmd.SetArgs([]string{"version", "-o", ""})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "gitVersion:")

	cmd.SetArgs([]string{"version", "-o", "yaml"})
	assert.Error(t, cmd.Execute())
}

func TestApp_NoVersion(t *testing.T) {
	a := newTestApp(&testOptions{}, func(string) error { return nil }, WithNoVersion())
	for _, c := range a.Command().Commands() {
		assert.NotEqual(t, "version", c.Name())
	}
}

func TestFormatExecName(t *testing.T) {
	assert.Equal(t, "sockbridge", FormatExecName("sockbridge"))
}
