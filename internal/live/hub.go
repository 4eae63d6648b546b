package live

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeTimeout bounds one broadcast write; slower listeners are dropped.
const writeTimeout = 2 * time.Second

// Hub fans catalog events out to every connected listener, over raw TCP
// (newline-delimited JSON) or WebSocket.
type Hub struct {
	mu       sync.Mutex
	tcpConns map[net.Conn]struct{}
	wsConns  map[*websocket.Conn]struct{}
}

type Stats struct {
	TCPClients int `json:"tcp_clients"`
	WSClients  int `json:"ws_clients"`
}

func NewHub() *Hub {
	return &Hub{
		tcpConns: make(map[net.Conn]struct{}),
		wsConns:  make(map[*websocket.Conn]struct{}),
	}
}

func (h *Hub) Add(conn net.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tcpConns[conn] = struct{}{}
}

func (h *Hub) Remove(conn net.Conn) {
	h.mu.Lock()
	delete(h.tcpConns, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) AddWS(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.wsConns[ws] = struct{}{}
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.wsConns, ws)
	h.mu.Unlock()
	_ = ws.Close()
}

// BroadcastJSON marshals v once and sends it to every listener as one
// newline-terminated line. Listeners whose write fails or times out are
// closed and dropped.
func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	line := append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.tcpConns {
		_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := c.Write(line); err != nil {
			_ = c.Close()
			delete(h.tcpConns, c)
		}
	}
	for ws := range h.wsConns {
		_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := ws.WriteMessage(websocket.TextMessage, line); err != nil {
			_ = ws.Close()
			delete(h.wsConns, ws)
		}
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		TCPClients: len(h.tcpConns),
		WSClients:  len(h.wsConns),
	}
}

// Welcome greets a new TCP listener with the current client count.
func (h *Hub) Welcome(conn net.Conn) {
	_, _ = conn.Write(h.welcome("tcp"))
}

// WelcomeWS greets a new WebSocket listener.
func (h *Hub) WelcomeWS(ws *websocket.Conn) {
	_ = ws.WriteMessage(websocket.TextMessage, h.welcome("websocket"))
}

func (h *Hub) welcome(transport string) []byte {
	h.mu.Lock()
	clients := len(h.tcpConns) + len(h.wsConns)
	h.mu.Unlock()

	b, _ := json.Marshal(map[string]any{
		"type":      "welcome",
		"transport": transport,
		"clients":   clients,
	})
	return append(b, '\n')
}
