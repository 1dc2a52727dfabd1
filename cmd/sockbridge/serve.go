// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wangtaoking1/sockbridge/app"
	"github.com/wangtaoking1/sockbridge/errors"
	"github.com/wangtaoking1/sockbridge/log"
	"github.com/wangtaoking1/sockbridge/server"
	"github.com/wangtaoking1/sockbridge/shutdown"
	"github.com/wangtaoking1/sockbridge/shutdown/trigger/posixsignal"
	"github.com/wangtaoking1/sockbridge/socket"
	"github.com/wangtaoking1/sockbridge/websocket"
)

type serveOptions struct {
	Config          string        `json:"-"                mapstructure:"-"`
	Upstreams       []string      `json:"upstreams"        mapstructure:"upstreams"`
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`

	Log       *log.Options                `json:"log"       mapstructure:"log"`
	Server    *server.Options             `json:"server"    mapstructure:"server"`
	Socket    *socket.DialerOptions       `json:"socket"    mapstructure:"socket"`
	Scheduler *websocket.SchedulerOptions `json:"scheduler" mapstructure:"scheduler"`
}

func newServeOptions() *serveOptions {
	return &serveOptions{
		ShutdownTimeout: 15 * time.Second,
		Log:             log.NewOptions(),
		Server:          server.NewOptions(),
		Socket:          socket.NewDialerOptions(),
		Scheduler:       websocket.NewSchedulerOptions(),
	}
}

func (o *serveOptions) Flags() (fss app.NamedFlagSets) {
	fs := fss.FlagSet("serve")
	fs.StringVarP(&o.Config, "config", "c", o.Config, "Read configuration from specified `FILE`, "+
		"support JSON, TOML, YAML, HCL, or Java properties formats.")
	fs.StringSliceVar(&o.Upstreams, "upstreams", o.Upstreams, ""+
		"WebSocket URLs kept open through the socket provider and listed on /debug/sockets.")
	fs.DurationVar(&o.ShutdownTimeout, "shutdown-timeout", o.ShutdownTimeout,
		"How long every shutdown stage may take.")

	o.Log.AddFlags(fss.FlagSet("log"))
	o.Server.AddFlags(fss.FlagSet("server"))
	o.Socket.AddFlags(fss.FlagSet("socket"))
	o.Scheduler.AddFlags(fss.FlagSet("scheduler"))

	return fss
}

// Complete loads the configuration file, if any, over the flag values.
func (o *serveOptions) Complete() error {
	if o.Config == "" {
		return nil
	}
	v := viper.New()
	v.SetConfigFile(o.Config)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read configuration file %s", o.Config)
	}

	return errors.Wrap(v.Unmarshal(o), "decode configuration")
}

func (o *serveOptions) Validate() []error {
	var errs []error
	errs = append(errs, o.Log.Validate()...)
	errs = append(errs, o.Server.Validate()...)
	errs = append(errs, o.Socket.Validate()...)
	errs = append(errs, o.Scheduler.Validate()...)
	for _, u := range o.Upstreams {
		if _, err := websocket.ParseAddress(u); err != nil {
			errs = append(errs, fmt.Errorf("--upstreams %q: %w", u, err))
		}
	}

	return errs
}

func (o *serveOptions) String() string {
	data, _ := json.Marshal(o)
	return string(data)
}

func newServeCommand() app.Command {
	opts := newServeOptions()

	return app.NewCommand("serve", "Run the echo and diagnostics server",
		app.WithCmdDescription("Run the HTTP server with the /ws echo endpoint, /healthz and "+
			"/debug/sockets, keeping the configured upstream sockets open."),
		app.WithCmdOptions(opts),
		app.WithCmdValidArgs(cobra.NoArgs),
		app.WithCmdRunFunc(func(string) error {
			return runServe(opts)
		}),
	)
}

func runServe(opts *serveOptions) error {
	log.Init(opts.Log)
	defer log.Flush()

	scheduler, err := websocket.NewScheduler(opts.Scheduler)
	if err != nil {
		return err
	}
	defer scheduler.Release()

	registry := socket.NewRegistry(socket.WithDefaultFactory(func() socket.Factory {
		return socket.NewDialerFactory(opts.Socket)
	}))
	provider := socket.NewProvider(registry, socket.WithScheduler(scheduler))

	for _, u := range opts.Upstreams {
		if err := openUpstream(provider, u); err != nil {
			return err
		}
	}

	apiServer := server.New(opts.Server, provider)

	gs := shutdown.NewWithOptions([]shutdown.Trigger{posixsignal.New()}, shutdown.WithTimeout(opts.ShutdownTimeout))
	gs.AddStage(shutdown.CallbackFunc(func(string) error {
		provider.CloseAll(websocket.CloseGoingAway, "shutdown")
		return nil
	}))
	gs.AddStage(shutdown.CallbackFunc(func(string) error {
		apiServer.Close()
		return nil
	}))
	if err := gs.Start(); err != nil {
		return err
	}

	log.Infow("Serving", "address", opts.Server.HTTP.Address(), "upstreams", len(opts.Upstreams))

	return apiServer.Run()
}

// openUpstream opens a socket which logs what the peer sends.
func openUpstream(provider *socket.Provider, url string) error {
	addr, err := websocket.ParseAddress(url)
	if err != nil {
		return err
	}
	ref, err := provider.CreateWebSocket(addr, nil)
	if err != nil {
		return errors.WithMessagef(err, "open upstream %s", url)
	}
	// the binding keeps the WebSocket alive until it closes
	defer ref.Release()

	logger := log.With("upstream", url)
	ref.Get().SetDelegate(websocket.DelegateFuncs{
		Connect: func(*websocket.WebSocket) { logger.Info("Upstream connected") },
		Message: func(ws *websocket.WebSocket, data []byte) {
			logger.Debugw("Upstream message", "bytes", len(data))
			ws.ReceiveComplete(len(data))
		},
		Close: func(_ *websocket.WebSocket, status websocket.CloseStatus) {
			logger.Infow("Upstream closed", "status", status.String())
		},
	})
	ref.Get().Connect()

	return nil
}
