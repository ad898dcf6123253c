// Package watch follows the cycle event stream of a running bot.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/clerkbot/activity-clerk/internal/domain"
)

// Handler is called once per received cycle summary.
type Handler func(domain.CycleSummary)

// Subscriber connects to a bot's /v1/stream endpoint and hands every cycle
// summary to a handler.
type Subscriber struct {
	url       string
	handle    Handler
	logger    *slog.Logger
	reconnect time.Duration
}

// NewSubscriber creates a subscriber for the bot at baseURL, which may be
// an http(s) or ws(s) URL with or without the stream path.
func NewSubscriber(baseURL string, handle Handler, logger *slog.Logger) (*Subscriber, error) {
	wsURL, err := streamURL(baseURL)
	if err != nil {
		return nil, err
	}
	return &Subscriber{
		url:       wsURL,
		handle:    handle,
		logger:    logger,
		reconnect: 5 * time.Second,
	}, nil
}

func streamURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse stream url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported stream url scheme %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/v1/stream") {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/v1/stream"
	}
	return u.String(), nil
}

// Start connects to the stream and processes summaries until the context
// is cancelled. It reconnects after connection errors.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Error("stream connection error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.reconnect):
				}
			}
		}
	}
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	s.logger.Info("connecting to stream", "url", s.url)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.logger.Info("connected to stream")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read message: %w", err)
		}

		var summary domain.CycleSummary
		if err := json.Unmarshal(message, &summary); err != nil {
			s.logger.Error("failed to parse cycle summary", "error", err)
			continue
		}
		s.handle(summary)
	}
}
