// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Cannasol Technologies

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/pkg/config"
	"github.com/Cannasol-Tech/multi-sonicator-io-sub006/pkg/sonics"
)

var wsListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the controller on a serial port or WebSocket listener",
	Long: `Run the controller loop: Modbus RTU slave on one side, four sonicator
channels on the other.

With --port the register map is served over the serial link. With
--ws-listen the same RTU frames are carried in binary WebSocket messages
instead, which is convenient for bench setups without a physical bus.

Without hardware attached the channels run against a simulated front end.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&wsListen, "ws-listen", "", "Listen address for WebSocket transport (e.g. :8092)")
	rootCmd.AddCommand(serveCmd)
}

// buildParams merges the YAML config with flag overrides.
func buildParams() (sonics.Params, config.ControllerConfig, error) {
	cfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return sonics.Params{}, config.ControllerConfig{}, err
		}
		cfg = loaded
	}
	config.Normalize(cfg)
	if err := config.Validate(cfg); err != nil {
		return sonics.Params{}, config.ControllerConfig{}, fmt.Errorf("config validation failed: %w", err)
	}

	cc := cfg.Controller
	if portName != "" {
		cc.Serial.Port = portName
	}
	if baudRate != 0 {
		cc.Serial.Baud = baudRate
	}
	if slaveID != 0 {
		cc.SlaveID = slaveID
	}

	params := sonics.Params{
		SlaveID:      cc.SlaveID,
		TickInterval: time.Duration(cc.Timing.TickMs) * time.Millisecond,
		CommTimeout:  time.Duration(cc.Timing.CommTimeoutMs) * time.Millisecond,
		Watchdog:     time.Duration(cc.Timing.WatchdogMs) * time.Millisecond,
		ConfirmTicks: cc.Timing.StartConfirmTicks,
		InhibitMask:  cc.InhibitMask(),
		SnapshotPath: cc.Snapshot,
	}
	return params, cc, nil
}

// openLink picks the transport: WebSocket listener when requested,
// otherwise the serial port.
func openLink(cc config.ControllerConfig) (Connection, string, error) {
	if wsListen != "" {
		link := newWSLink()
		go func() {
			if err := http.ListenAndServe(wsListen, link); err != nil {
				log.Fatalf("websocket listener failed: %v", err)
			}
		}()
		return link, fmt.Sprintf("ws %s", wsListen), nil
	}
	if cc.Serial.Port == "" {
		return nil, "", errors.New("no transport: provide --port or --ws-listen")
	}
	conn, err := OpenSerialConnection(cc.Serial.Port, cc.Serial.Baud)
	if err != nil {
		return nil, "", err
	}
	return conn, fmt.Sprintf("%s @ %d 8N1", cc.Serial.Port, cc.Serial.Baud), nil
}

func runServe(cmd *cobra.Command, args []string) error {
	params, cc, err := buildParams()
	if err != nil {
		return err
	}

	link, info, err := openLink(cc)
	if err != nil {
		return err
	}
	defer link.Close()

	ctrl := sonics.NewController(params, sonics.NewSimIO(), link)

	log.Printf("controller up: slave %d on %s, tick %s", params.SlaveID, info, params.TickInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ctrl.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Printf("controller stopped")
	return nil
}

// wsLink serves RTU frame bytes to one WebSocket client at a time. Reads
// block until a client is connected; writes while disconnected are
// dropped, matching a silent serial bus. current is atomic because reads
// and writes come from different goroutines.
type wsLink struct {
	upgrader websocket.Upgrader
	incoming chan *WebSocketConnection
	current  atomic.Pointer[WebSocketConnection]
}

func newWSLink() *wsLink {
	return &wsLink{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		incoming: make(chan *WebSocketConnection, 1),
	}
}

func (w *wsLink) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}
	select {
	case w.incoming <- NewWebSocketConnection(conn):
		log.Printf("websocket client connected: %s", r.RemoteAddr)
	default:
		// One client at a time.
		conn.Close()
	}
}

func (w *wsLink) Read(p []byte) (int, error) {
	for {
		conn := w.current.Load()
		if conn == nil {
			conn = <-w.incoming
			w.current.Store(conn)
		}
		n, err := conn.Read(p)
		if err != nil {
			log.Printf("websocket client gone: %v", err)
			w.current.Store(nil)
			continue
		}
		return n, nil
	}
}

func (w *wsLink) Write(p []byte) (int, error) {
	conn := w.current.Load()
	if conn == nil {
		return len(p), nil
	}
	return conn.Write(p)
}

func (w *wsLink) Close() error {
	if conn := w.current.Load(); conn != nil {
		return conn.Close()
	}
	return nil
}
