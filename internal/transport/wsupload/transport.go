package wsupload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Config controls the websocket append transport.
type Config struct {
	EndpointBase string
	Header       http.Header
}

type ack struct {
	OK    bool   `json:"ok"`
	Bytes int64  `json:"bytes"`
	Error string `json:"error"`
}

// Transport streams chunks over one websocket per destination. Each chunk is a
// binary message answered by a JSON ack from the sink.
type Transport struct {
	cfg    Config
	log    *slog.Logger
	dialer *websocket.Dialer

	mu          sync.Mutex
	conn        *websocket.Conn
	destination string
}

func New(cfg Config, log *slog.Logger) *Transport {
	return &Transport{cfg: cfg, log: log, dialer: websocket.DefaultDialer}
}

// Deliver sends data and waits for the sink to acknowledge it. A failed
// delivery drops the connection so the next chunk redials.
func (t *Transport) Deliver(ctx context.Context, destinationName string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	conn, err := t.connFor(ctx, destinationName)
	if err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, func() {
		now := time.Now()
		_ = conn.SetWriteDeadline(now)
		_ = conn.SetReadDeadline(now)
	})
	defer stop()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetWriteDeadline(time.Time{})
		_ = conn.SetReadDeadline(time.Time{})
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		t.dropLocked()
		return fmt.Errorf("send chunk: %w", err)
	}

	var reply ack
	if err := conn.ReadJSON(&reply); err != nil {
		t.dropLocked()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("await chunk ack: %w", ctxErr)
		}
		return fmt.Errorf("await chunk ack: %w", err)
	}
	if !reply.OK {
		message := strings.TrimSpace(reply.Error)
		if message == "" {
			message = "sink rejected chunk"
		}
		return errors.New(message)
	}
	return nil
}

// Close shuts the open connection, if any.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.dropLocked()
	return nil
}

func (t *Transport) connFor(ctx context.Context, destinationName string) (*websocket.Conn, error) {
	if t.conn != nil && t.destination == destinationName {
		return t.conn, nil
	}
	t.dropLocked()

	wsURL, err := buildStreamURL(t.cfg.EndpointBase, destinationName)
	if err != nil {
		return nil, err
	}
	conn, _, err := t.dialer.DialContext(ctx, wsURL, t.cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("connect upload stream: %w", err)
	}
	t.log.Debug("upload stream connected", slog.String("destination", destinationName))
	t.conn = conn
	t.destination = destinationName
	return conn, nil
}

func (t *Transport) dropLocked() {
	if t.conn != nil {
		_ = t.conn.Close()
	}
	t.conn = nil
	t.destination = ""
}

func buildStreamURL(base, destinationName string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return "", errors.New("upload stream endpoint is not configured")
	}
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	streamURL, err := url.Parse(base + "/" + url.PathEscape(destinationName))
	if err != nil {
		return "", fmt.Errorf("invalid upload stream URL: %w", err)
	}
	return streamURL.String(), nil
}
