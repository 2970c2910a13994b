package network

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"
)

func TestHTTPGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello from server"))
	}))
	defer srv.Close()

	m := NewModule()
	body, status, err := m.HTTPGet(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", status)
	}
	if body != "hello from server" {
		t.Fatalf("got body %q", body)
	}
}

func TestHTTPPost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		w.Write(b)
	}))
	defer srv.Close()

	m := NewModule()
	body, status, err := m.HTTPPost(srv.URL, "text/plain", "ping")
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("expected status 200, got %d", status)
	}
	if body != "ping" {
		t.Fatalf("got body %q", body)
	}
}

func TestWebSocketRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		received <- string(msg)
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	m := NewModule()
	if err := m.WSConnect("conn1", wsURL); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := m.WSSend("conn1", "ping"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := <-received; got != "ping" {
		t.Fatalf("server received %q, want %q", got, "ping")
	}
	if err := m.WSClose("conn1"); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestWSSendUnknownConnection(t *testing.T) {
	m := NewModule()
	if err := m.WSSend("missing", "hi"); err == nil {
		t.Fatal("expected an error for an unregistered connection id")
	}
}
