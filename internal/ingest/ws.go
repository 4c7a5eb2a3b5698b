package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Consumer reads decoded events from the upstream decoder's websocket feed
// and hands each one, already classified, to the handler. It reconnects
// forever until the context is cancelled, replaying every recorded
// subscription after each successful dial.
type Consumer struct {
	url            string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *zap.Logger

	mu   sync.Mutex
	subs [][]byte
}

func NewConsumer(url string, reconnectDelay, pingInterval time.Duration, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{url: url, reconnectDelay: reconnectDelay, pingInterval: pingInterval, log: log}
}

// Subscribe records a payload to send after every successful dial. Feeds that
// push everything unsolicited need none.
func (c *Consumer) Subscribe(payload []byte) {
	if len(payload) == 0 {
		return
	}
	c.mu.Lock()
	c.subs = append(c.subs, payload)
	c.mu.Unlock()
}

func (c *Consumer) Run(ctx context.Context, handler func(Envelope)) error {
	for {
		err := c.consumeOnce(ctx, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logDisconnect(err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.reconnectDelay):
		}
	}
}

func (c *Consumer) consumeOnce(ctx context.Context, handler func(Envelope)) error {
	conn, _, err := websocket.Dial(ctx, c.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	if err := c.resubscribe(ctx, conn); err != nil {
		return err
	}

	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)
		c.pingLoop(pingCtx, conn)
	}()
	defer func() { <-pingDone }()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if handler != nil {
			handler(Decode(json.RawMessage(data)))
		}
	}
}

func (c *Consumer) resubscribe(ctx context.Context, conn *websocket.Conn) error {
	c.mu.Lock()
	subs := make([][]byte, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()
	for _, payload := range subs {
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			return err
		}
	}
	return nil
}

func (c *Consumer) pingLoop(ctx context.Context, conn *websocket.Conn) {
	if c.pingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				return
			}
		}
	}
}

func (c *Consumer) logDisconnect(err error) {
	if err == nil {
		return
	}
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		c.log.Info("ingest feed closed", zap.Error(err))
		return
	}
	c.log.Warn("ingest feed disconnected", zap.Error(err))
}
