package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clerkbot/activity-clerk/internal/domain"
)

func TestStreamURL(t *testing.T) {
	tests := []struct {
		in, want string
		wantErr  bool
	}{
		{in: "http://localhost:8080", want: "ws://localhost:8080/v1/stream"},
		{in: "https://bot.example.org/", want: "wss://bot.example.org/v1/stream"},
		{in: "ws://localhost:8080/v1/stream", want: "ws://localhost:8080/v1/stream"},
		{in: "ftp://localhost", wantErr: true},
	}
	for _, tt := range tests {
		got, err := streamURL(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("streamURL(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("streamURL(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestSubscriberReceivesSummaries(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/stream" {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		data, _ := json.Marshal(domain.CycleSummary{RunID: "run-1", Proceedings: 2})
		conn.WriteMessage(websocket.TextMessage, data)
		// Hold the connection open until the client goes away.
		conn.ReadMessage()
	}))
	defer srv.Close()

	var logs bytes.Buffer
	got := make(chan domain.CycleSummary, 1)
	sub, err := NewSubscriber(srv.URL, func(s domain.CycleSummary) { got <- s }, slog.New(slog.NewTextHandler(&logs, nil)))
	if err != nil {
		t.Fatalf("NewSubscriber: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sub.Start(ctx) }()

	select {
	case s := <-got:
		if s.RunID != "run-1" || s.Proceedings != 2 {
			t.Fatalf("unexpected summary %+v", s)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no summary received")
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Start returned %v, want context.Canceled", err)
		}
		if strings.Contains(logs.String(), "reconnecting") {
			t.Fatalf("shutdown logged as a connection error:\n%s", logs.String())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
