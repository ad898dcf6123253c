package notify

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"
)

func TestNewPublisherRequiresChannel(t *testing.T) {
	_, err := NewPublisher(context.Background(), Options{Addr: "127.0.0.1:6379"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatal("expected an error without a channel")
	}
}

func TestNewPublisherFailsWhenUnreachable(t *testing.T) {
	// Reserve a port and release it so nothing is listening there.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = NewPublisher(ctx, Options{Addr: addr, Channel: "cycles"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err == nil {
		t.Fatal("expected a connection error")
	}
}
