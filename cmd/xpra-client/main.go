// Copyright © 2025 xpra-client contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/xpra-client/main.go
// Summary: Terminal xpra client entry point.
// Usage: Run `xpra-client -addr host:port` from an interactive terminal.

package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"

	"github.com/zorodc/xpra-client/client"
	"github.com/zorodc/xpra-client/config"
	"github.com/zorodc/xpra-client/store"
	"github.com/zorodc/xpra-client/window"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := flag.NewFlagSet("xpra-client", flag.ContinueOnError)
	addr := fs.String("addr", "", "Server address host:port (overrides config)")
	configPath := fs.String("config", "", "Config file (default: user config dir)")
	statePath := fs.String("state", "", "Geometry database (overrides config)")
	noState := fs.Bool("no-state", false, "Do not persist window geometry")
	logPath := fs.String("log", "", "Append logs to a file instead of stderr")

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("stdin is not a terminal")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Address = *addr
	}
	if *statePath != "" {
		cfg.StatePath = *statePath
	}

	// The screen takes over the terminal; logs must go elsewhere.
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		log.SetOutput(f)
	} else {
		log.SetOutput(nullWriter{})
	}

	var geo *store.Store
	if !*noState {
		dbPath, err := cfg.DatabasePath()
		if err == nil {
			if geo, err = store.Open(dbPath); err != nil {
				log.Printf("main: geometry store disabled: %v", err)
			}
		}
		if geo != nil {
			defer geo.Close()
		}
	}

	conn, err := net.Dial("tcp", cfg.Address)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", cfg.Address, err)
	}
	defer conn.Close()

	wm, err := window.New()
	if err != nil {
		return fmt.Errorf("initialize terminal: %w", err)
	}
	defer wm.Close()

	c := client.New(conn, wm, client.Options{
		MaxPayload:  cfg.MaxPayload,
		Compression: cfg.Compression,
		Geometry:    geo,
	})
	if err := c.Hello(); err != nil {
		return fmt.Errorf("hello: %w", err)
	}

	if interval := time.Duration(cfg.PingInterval); interval > 0 {
		go pingWatchdog(c, conn, interval)
	}
	go inputLoop(c, wm, conn)
	return c.Run()
}

// pingWatchdog closes the connection when the server stops pinging, which
// unblocks the read loop on a connection that died without a FIN.
func pingWatchdog(c *client.Client, conn net.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		if time.Since(c.LastPing()) > 2*interval {
			log.Printf("main: no ping from server in %v, closing", 2*interval)
			conn.Close()
			return
		}
	}
}

// inputLoop feeds terminal events to the session until the user quits
// with Ctrl-Q, which closes the connection and unblocks Run.
func inputLoop(c *client.Client, wm *window.Manager, conn net.Conn) {
	for ev := range wm.Events() {
		switch {
		case ev.Key != nil:
			if ev.Key.Ev.Key() == tcell.KeyCtrlQ {
				conn.Close()
				return
			}
			if err := c.Key(ev.Key.Ev); err != nil {
				log.Printf("main: key: %v", err)
			}
		case ev.Button != nil:
			b := ev.Button
			if b.Pressed {
				if err := c.FocusWindow(b.ID); err != nil {
					log.Printf("main: focus: %v", err)
				}
			}
			if err := c.Button(b.ID, b.Button, b.Pressed, b.X, b.Y); err != nil {
				log.Printf("main: button: %v", err)
			}
		case ev.Motion != nil:
			if err := c.PointerMove(ev.Motion.ID, ev.Motion.X, ev.Motion.Y); err != nil {
				log.Printf("main: pointer: %v", err)
			}
		}
	}
}

// nullWriter drops log output when no log file is given, keeping stray
// writes off the tcell screen.
type nullWriter struct{}

func (nullWriter) Write(p []byte) (int, error) { return len(p), nil }
