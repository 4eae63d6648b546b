package live

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"
	"time"
)

func TestBroadcastJSONDeliversNewlineDelimitedEvents(t *testing.T) {
	hub := NewHub()
	server, client := net.Pipe()
	defer client.Close()

	hub.Add(server)

	lines := make(chan string, 1)
	go func() {
		sc := bufio.NewScanner(client)
		if sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	hub.BroadcastJSON(CatalogEvent{
		Type:       EventCardLike,
		Card:       "000042",
		LikesCount: 7,
		At:         time.Now().UTC(),
	})

	select {
	case line := <-lines:
		var ev CatalogEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("unmarshal %q: %v", line, err)
		}
		if ev.Type != EventCardLike || ev.Card != "000042" || ev.LikesCount != 7 {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast line received")
	}
}

func TestBroadcastPrunesDeadClients(t *testing.T) {
	hub := NewHub()
	server, client := net.Pipe()
	hub.Add(server)
	client.Close()
	server.Close()

	if got := hub.Stats().TCPClients; got != 1 {
		t.Fatalf("TCPClients before broadcast = %d, want 1", got)
	}

	hub.BroadcastJSON(CatalogEvent{Type: EventCardUnlike, Card: "000001"})

	if got := hub.Stats().TCPClients; got != 0 {
		t.Errorf("TCPClients after broadcast to dead conn = %d, want 0", got)
	}
}

func TestServerAcceptsAndWelcomes(t *testing.T) {
	hub := NewHub()
	srv := NewServer("127.0.0.1:0", hub)
	defer srv.Close()

	go srv.Run()

	var addr net.Addr
	for i := 0; i < 100; i++ {
		if addr = srv.ListenAddr(); addr != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if addr == nil {
		t.Fatal("server never started listening")
	}

	conn, err := net.Dial("tcp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	sc := bufio.NewScanner(conn)
	if !sc.Scan() {
		t.Fatalf("no welcome line: %v", sc.Err())
	}

	var welcome map[string]any
	if err := json.Unmarshal(sc.Bytes(), &welcome); err != nil {
		t.Fatalf("welcome not json: %v", err)
	}
	if welcome["type"] != "welcome" {
		t.Errorf("welcome type = %v", welcome["type"])
	}
}

func TestServerCloseStopsRun(t *testing.T) {
	hub := NewHub()
	srv := NewServer("127.0.0.1:0", hub)

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	for i := 0; i < 100; i++ {
		if srv.ListenAddr() != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v after Close, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
