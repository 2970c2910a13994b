// Package network backs Vela's Base `Net` module: plain HTTP requests plus a
// small WebSocket connection registry, adapted from the teacher's
// internal/network.NetworkModule (WebSocketConn/connection-map-plus-mutex
// shape) trimmed to the client side — a scientific-computing Base library
// has no use for the teacher's server/listener and raw-socket-scan methods.
package network

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Module is the process-wide HTTP client plus WebSocket connection table.
type Module struct {
	client *http.Client
	mu     sync.Mutex
	wsConn map[string]*websocket.Conn
}

func NewModule() *Module {
	return &Module{
		client: &http.Client{Timeout: 30 * time.Second},
		wsConn: map[string]*websocket.Conn{},
	}
}

// HTTPGet performs a GET and returns the response body as a string.
func (m *Module) HTTPGet(url string) (string, int, error) {
	resp, err := m.client.Get(url)
	if err != nil {
		return "", 0, fmt.Errorf("network: get %s: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("network: read body: %w", err)
	}
	return string(body), resp.StatusCode, nil
}

// HTTPPost performs a POST with a plain string body.
func (m *Module) HTTPPost(url, contentType, body string) (string, int, error) {
	resp, err := m.client.Post(url, contentType, strings.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("network: post %s: %w", url, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, fmt.Errorf("network: read body: %w", err)
	}
	return string(respBody), resp.StatusCode, nil
}

// WSConnect dials a WebSocket endpoint and registers the connection under id.
func (m *Module) WSConnect(id, url string) error {
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("network: websocket dial %s: %w", url, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.wsConn[id]; ok {
		old.Close()
	}
	m.wsConn[id] = conn
	return nil
}

// WSSend writes a text frame to the connection registered under id.
func (m *Module) WSSend(id, message string) error {
	m.mu.Lock()
	conn, ok := m.wsConn[id]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("network: no websocket connection %q", id)
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(message))
}

// WSClose closes and forgets the connection registered under id.
func (m *Module) WSClose(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.wsConn[id]
	if !ok {
		return fmt.Errorf("network: no websocket connection %q", id)
	}
	delete(m.wsConn, id)
	return conn.Close()
}
