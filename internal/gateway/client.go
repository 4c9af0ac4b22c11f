package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/MrWong99/vesper/pkg/audio"
)

type outbound struct {
	typ  websocket.MessageType
	data []byte
}

// client is one connected device.
type client struct {
	id        string
	conn      *websocket.Conn
	send      chan outbound
	done      chan struct{}
	connected time.Time
	gone      atomic.Bool

	mu     sync.Mutex
	format audio.Format
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:        uuid.NewString(),
		conn:      conn,
		send:      make(chan outbound, sendBuffer),
		done:      make(chan struct{}),
		connected: time.Now(),
		format:    audio.Format{SampleRate: DefaultSampleRate, Channels: 1},
	}
}

func (c *client) setFormat(rate, channels int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rate > 0 {
		c.format.SampleRate = rate
	}
	if channels > 0 {
		c.format.Channels = channels
	}
}

func (c *client) frame(data []byte) audio.Frame {
	c.mu.Lock()
	f := c.format
	c.mu.Unlock()
	return audio.Frame{
		Data:       data,
		SampleRate: f.SampleRate,
		Channels:   f.Channels,
		Timestamp:  time.Since(c.connected),
	}
}

// enqueue queues m without blocking. Messages for a device that is not
// keeping up are dropped.
func (c *client) enqueue(m outbound) bool {
	if c.gone.Load() {
		return false
	}
	select {
	case c.send <- m:
		return true
	default:
		return false
	}
}

// enqueueWait queues m, waiting for room until ctx is done or the device
// disconnects.
func (c *client) enqueueWait(ctx context.Context, m outbound) bool {
	if c.gone.Load() {
		return false
	}
	select {
	case c.send <- m:
		return true
	case <-ctx.Done():
		return false
	case <-c.done:
		return false
	}
}

func (c *client) sendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("gateway: encode event", "type", fmt.Sprintf("%T", v), "err", err)
		return
	}
	c.enqueue(outbound{typ: websocket.MessageText, data: data})
}

// writeLoop is the only writer on the connection.
func (c *client) writeLoop(ctx context.Context) {
	defer close(c.done)
	defer c.gone.Store(true)
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, m.typ, m.data)
			cancel()
			if err != nil {
				slog.Debug("gateway: write failed", "device", c.id, "err", err)
				return
			}
		}
	}
}
