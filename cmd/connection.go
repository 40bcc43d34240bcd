// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Cannasol Technologies

package cmd

import (
	"fmt"
	"io"

	"github.com/gorilla/websocket"
	"go.bug.st/serial"
)

// Connection provides a common interface for moving raw frame bytes over
// serial or WebSocket transports.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = fmt.Errorf("websocket connection closed")

// WebSocketConnection wraps a WebSocket connection for byte-level reading.
// Each binary message carries a run of raw frame bytes.
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    bool
}

// NewWebSocketConnection wraps an accepted or dialed WebSocket connection.
func NewWebSocketConnection(conn *websocket.Conn) *WebSocketConnection {
	return &WebSocketConnection{conn: conn}
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed {
		return 0, ErrConnectionClosed
	}

	// Serve buffered data first
	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}

		// Only binary messages carry frame bytes
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		w.bufOffset = 0
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port at 8N1 with the given baud rate.
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}
