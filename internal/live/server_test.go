package live

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	server := NewServer(&Config{
		Addr:   "127.0.0.1:0",
		Logger: log.New(io.Discard, "", 0),
	})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

func dial(t *testing.T, ctx context.Context, server *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

type fakeResult struct {
	TotalCount int      `json:"total_count"`
	Titles     []string `json:"titles"`
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Addr: "127.0.0.1:0", Logger: log.New(io.Discard, "", 0)})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if server.Addr() == "127.0.0.1:0" {
		t.Errorf("Addr() = %q, want the bound port", server.Addr())
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	server := NewServer(nil)
	if err := server.Stop(); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
}

func TestNewClientGetsReady(t *testing.T) {
	server := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	if msg := readMessage(t, ctx, conn); msg.Type != MessageTypeReady {
		t.Errorf("first message type = %s, want %s", msg.Type, MessageTypeReady)
	}
	if count := server.ClientCount(); count != 1 {
		t.Errorf("ClientCount() = %d, want 1", count)
	}
}

func TestMultipleClients(t *testing.T) {
	server := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const numClients = 3
	clients := make([]*websocket.Conn, numClients)
	for i := range clients {
		clients[i] = dial(t, ctx, server)
		readMessage(t, ctx, clients[i])
	}
	if count := server.ClientCount(); count != numClients {
		t.Fatalf("ClientCount() = %d, want %d", count, numClients)
	}

	if err := server.Publish(MessageTypeResult, fakeResult{TotalCount: 2}); err != nil {
		t.Fatal(err)
	}
	for i, conn := range clients {
		msg := readMessage(t, ctx, conn)
		if msg.Type != MessageTypeResult {
			t.Errorf("client %d got %s, want %s", i, msg.Type, MessageTypeResult)
		}
	}
}

func TestPublishResult(t *testing.T) {
	server := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn)

	want := fakeResult{TotalCount: 2, Titles: []string{"water plants", "call mom"}}
	if err := server.Publish(MessageTypeResult, want); err != nil {
		t.Fatal(err)
	}

	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeResult {
		t.Fatalf("type = %s, want %s", msg.Type, MessageTypeResult)
	}
	var got fakeResult
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.TotalCount != 2 || len(got.Titles) != 2 || got.Titles[1] != "call mom" {
		t.Errorf("payload = %+v, want %+v", got, want)
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp not set")
	}
}

func TestLateClientGetsLatestResult(t *testing.T) {
	server := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first := dial(t, ctx, server)
	readMessage(t, ctx, first)

	if err := server.Publish(MessageTypeResult, fakeResult{TotalCount: 7}); err != nil {
		t.Fatal(err)
	}
	// Once the first client has it, the snapshot is stored.
	readMessage(t, ctx, first)

	late := dial(t, ctx, server)
	msg := readMessage(t, ctx, late)
	if msg.Type != MessageTypeResult {
		t.Fatalf("late client first message = %s, want %s", msg.Type, MessageTypeResult)
	}
	var got fakeResult
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.TotalCount != 7 {
		t.Errorf("TotalCount = %d, want 7", got.TotalCount)
	}
}

func TestErrorDoesNotReplaceSnapshot(t *testing.T) {
	server := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dial(t, ctx, server)
	readMessage(t, ctx, conn)

	if err := server.Publish(MessageTypeResult, fakeResult{TotalCount: 1}); err != nil {
		t.Fatal(err)
	}
	readMessage(t, ctx, conn)

	server.PublishError(errors.New("tasks dir vanished"))
	msg := readMessage(t, ctx, conn)
	if msg.Type != MessageTypeError {
		t.Fatalf("type = %s, want %s", msg.Type, MessageTypeError)
	}
	var data ErrorData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Error != "tasks dir vanished" {
		t.Errorf("error = %q", data.Error)
	}

	var snap Message
	if err := json.Unmarshal(server.snapshot(), &snap); err != nil {
		t.Fatal(err)
	}
	if snap.Type != MessageTypeResult {
		t.Errorf("snapshot type = %s, want %s", snap.Type, MessageTypeResult)
	}
}

func TestLatestEndpoint(t *testing.T) {
	server := startServer(t)
	url := "http://" + server.Addr() + "/result"

	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status before publish = %d, want 204", resp.StatusCode)
	}

	if err := server.Publish(MessageTypeResult, fakeResult{TotalCount: 3}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(url)
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			var msg Message
			if err := json.Unmarshal(body, &msg); err != nil {
				t.Fatal(err)
			}
			if msg.Type != MessageTypeResult {
				t.Errorf("type = %s, want %s", msg.Type, MessageTypeResult)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("no result after publish, last status %d", resp.StatusCode)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestHealth(t *testing.T) {
	server := startServer(t)

	resp, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Clients != 0 {
		t.Errorf("health = %+v", body)
	}
}
