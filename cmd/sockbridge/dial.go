// Copyright 2025 Tao Wang <wangtaoking1@qq.com>. All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/wangtaoking1/sockbridge/app"
	"github.com/wangtaoking1/sockbridge/errors"
	"github.com/wangtaoking1/sockbridge/log"
	"github.com/wangtaoking1/sockbridge/socket"
	"github.com/wangtaoking1/sockbridge/socket/coderws"
	"github.com/wangtaoking1/sockbridge/websocket"
)

const (
	driverGorilla = "gorilla"
	driverCoder   = "coder"
)

type dialOptions struct {
	URL       string
	Message   string
	Count     int
	Driver    string
	Protocols string
	Timeout   time.Duration

	Log    *log.Options
	Socket *socket.DialerOptions
}

func newDialOptions() *dialOptions {
	logOpts := log.NewOptions()
	logOpts.Level = "warn"

	return &dialOptions{
		Message: "PING",
		Count:   1,
		Driver:  driverGorilla,
		Timeout: 30 * time.Second,
		Log:     logOpts,
		Socket:  socket.NewDialerOptions(),
	}
}

func (o *dialOptions) Flags() (fss app.NamedFlagSets) {
	fs := fss.FlagSet("dial")
	fs.StringVar(&o.URL, "url", o.URL, "WebSocket `URL` to dial, like ws://127.0.0.1:8080/ws.")
	fs.StringVarP(&o.Message, "message", "m", o.Message, "Message sent to the peer.")
	fs.IntVarP(&o.Count, "count", "n", o.Count, "How many times the message is sent.")
	fs.StringVar(&o.Driver, "driver", o.Driver, "Socket factory, gorilla or coder.")
	fs.StringVar(&o.Protocols, "protocols", o.Protocols, "Comma separated WebSocket sub-protocols.")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Give up when the exchange takes longer.")

	o.Log.AddFlags(fss.FlagSet("log"))
	o.Socket.AddFlags(fss.FlagSet("socket"))

	return fss
}

func (o *dialOptions) Validate() []error {
	var errs []error
	if _, err := websocket.ParseAddress(o.URL); err != nil {
		errs = append(errs, fmt.Errorf("--url %q: %w", o.URL, err))
	}
	if o.Count < 0 {
		errs = append(errs, fmt.Errorf("--count %v cannot be negative", o.Count))
	}
	if o.Driver != driverGorilla && o.Driver != driverCoder {
		errs = append(errs, fmt.Errorf("--driver %q must be %s or %s", o.Driver, driverGorilla, driverCoder))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("--timeout must be positive"))
	}
	errs = append(errs, o.Log.Validate()...)
	errs = append(errs, o.Socket.Validate()...)

	return errs
}

func (o *dialOptions) factory() socket.Factory {
	if o.Driver == driverCoder {
		return coderws.NewFactory(o.Socket)
	}

	return socket.NewDialerFactory(o.Socket)
}

func newDialCommand() app.Command {
	opts := newDialOptions()

	return app.NewCommand("dial", "Exchange messages with a WebSocket peer",
		app.WithCmdDescription("Open a socket through the selected factory, send the message "+
			"count times, wait for as many replies, close and print what happened."),
		app.WithCmdOptions(opts),
		app.WithCmdValidArgs(cobra.NoArgs),
		app.WithCmdRunFunc(func(string) error {
			log.Init(opts.Log)
			defer log.Flush()

			ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
			defer cancel()

			return runDial(ctx, opts, os.Stdout)
		}),
	)
}

type dialEvent struct {
	at     time.Duration
	event  string
	detail string
}

type dialSession struct {
	start  time.Time
	opts   *dialOptions
	closed chan websocket.CloseStatus

	mu       sync.Mutex
	events   []dialEvent
	received int
}

func (d *dialSession) add(event, detail string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, dialEvent{at: time.Since(d.start), event: event, detail: detail})
}

func (d *dialSession) delegate() websocket.Delegate {
	return websocket.DelegateFuncs{
		Connect: func(ws *websocket.WebSocket) {
			d.add("connected", ws.Address().URL())
			if d.opts.Count == 0 {
				ws.Close(websocket.CloseNormal, "done")
				return
			}
			for i := 0; i < d.opts.Count; i++ {
				ws.Send([]byte(d.opts.Message))
				d.add("sent", d.opts.Message)
			}
		},
		Message: func(ws *websocket.WebSocket, data []byte) {
			d.add("received", string(data))
			ws.ReceiveComplete(len(data))

			d.mu.Lock()
			d.received++
			done := d.received == d.opts.Count
			d.mu.Unlock()
			if done {
				ws.Close(websocket.CloseNormal, "done")
			}
		},
		Close: func(_ *websocket.WebSocket, status websocket.CloseStatus) {
			d.add("closed", status.String())
			d.closed <- status
		},
	}
}

func runDial(ctx context.Context, opts *dialOptions, out io.Writer) error {
	addr, err := websocket.ParseAddress(opts.URL)
	if err != nil {
		return err
	}

	registry := socket.NewRegistry(socket.WithDefaultFactory(nil))
	if err := registry.Register(opts.factory()); err != nil {
		return err
	}
	provider := socket.NewProvider(registry)

	options := websocket.Options{}
	if opts.Protocols != "" {
		options[websocket.OptionProtocols] = opts.Protocols
	}
	ref, err := provider.CreateWebSocket(addr, options)
	if err != nil {
		return err
	}
	defer ref.Release()

	session := &dialSession{
		start:  time.Now(),
		opts:   opts,
		closed: make(chan websocket.CloseStatus, 1),
	}
	ref.Get().SetDelegate(session.delegate())
	ref.Get().Connect()

	var (
		status   websocket.CloseStatus
		timedOut bool
	)
	select {
	case status = <-session.closed:
	case <-ctx.Done():
		timedOut = true
		ref.Get().Close(websocket.CloseGoingAway, "timeout")
		select {
		case status = <-session.closed:
		case <-time.After(opts.Socket.CloseTimeout + time.Second):
			session.print(out)
			return errors.Wrap(ctx.Err(), "socket did not close")
		}
	}

	session.print(out)
	if timedOut {
		return errors.Wrap(ctx.Err(), "exchange timed out")
	}
	if !status.IsNormal() {
		return errors.Errorf("connection closed with %s", status)
	}

	return nil
}

func (d *dialSession) print(out io.Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	table := uitable.New()
	table.MaxColWidth = 60
	table.Wrap = true
	table.AddRow("TIME", "EVENT", "DETAIL")
	for _, e := range d.events {
		event := e.event
		switch e.event {
		case "closed":
			event = color.RedString(e.event)
		case "connected":
			event = color.GreenString(e.event)
		}
		table.AddRow(e.at.Round(time.Microsecond).String(), event, e.detail)
	}

	_, _ = fmt.Fprintln(out, table)
}
