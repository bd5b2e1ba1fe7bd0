package tracker

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

// Time allowed to write a message to a peer
const writeWait = 10 * time.Second

// Monitor serves live training statistics over websockets. Each
// tracked episode is pushed as a JSON message to every connected
// client, so a browser can chart a run while it trains.
type Monitor struct {
	server   *http.Server
	listener net.Listener

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
	history []EpisodeStats
	closed  bool
}

// NewMonitor starts a monitor listening on addr (e.g. ":8077"). New
// clients receive the episode history so far, then live updates.
func NewMonitor(addr string) (*Monitor, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("newmonitor: could not listen on %v: %v",
			addr, err)
	}

	m := &Monitor{
		listener: listener,
		clients:  make(map[*websocket.Conn]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.serveWs)
	m.server = &http.Server{Handler: mux}

	go func() {
		if err := m.server.Serve(listener); err != http.ErrServerClosed {
			log.Printf("monitor: server stopped: %v", err)
		}
	}()

	return m, nil
}

// Addr returns the address the monitor is listening on
func (m *Monitor) Addr() string { return m.listener.Addr().String() }

func (m *Monitor) serveWs(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("monitor: upgrade failed: %v", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		ws.Close()
		return
	}

	// Catch the new client up before it joins the live broadcast
	for _, stats := range m.history {
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(stats); err != nil {
			ws.Close()
			return
		}
	}
	m.clients[ws] = true
}

// Track broadcasts one episode to every connected client
func (m *Monitor) Track(stats EpisodeStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, stats)
	for ws := range m.clients {
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(stats); err != nil {
			ws.Close()
			delete(m.clients, ws)
		}
	}
	return nil
}

// Flush is a no-op; episodes are broadcast as they arrive
func (m *Monitor) Flush(episode int) error { return nil }

// Close disconnects all clients and stops the server
func (m *Monitor) Close() error {
	m.mu.Lock()
	m.closed = true
	for ws := range m.clients {
		ws.Close()
		delete(m.clients, ws)
	}
	m.mu.Unlock()

	return m.server.Close()
}
