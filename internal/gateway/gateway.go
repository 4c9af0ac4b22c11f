// Package gateway connects front-end devices to the assistant over a
// WebSocket.
//
// A device streams microphone PCM as binary frames and receives JSON events
// (notifications, navigation, audio level, interim text, pipeline state) as
// text frames. Synthesized speech is sent back as binary frames bracketed by
// speech_start and speech_end events.
//
// [Hub] is the server side. It is at the same time the assistant's
// [audio.Source] (microphone audio from every device fans out to every open
// stream), its [audio.Sink], its [notify.Sink] and its navigator.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/vesper/internal/intent"
	"github.com/MrWong99/vesper/internal/notify"
	"github.com/MrWong99/vesper/internal/observe"
	"github.com/MrWong99/vesper/pkg/audio"
)

const (
	// DefaultSampleRate is assumed for microphone audio until a device says
	// otherwise in its hello message.
	DefaultSampleRate = 16000

	sendBuffer   = 256
	streamBuffer = 64
	readLimit    = 1 << 20
	writeTimeout = 5 * time.Second
)

// Controller handles the control messages devices send.
type Controller interface {
	SetEnabled(ctx context.Context, on bool) error
	Command(ctx context.Context, text string) (intent.Intent, string)
}

// Option configures a [Hub].
type Option func(*Hub)

// WithController sets the handler for voice toggles and typed commands.
func WithController(c Controller) Option {
	return func(h *Hub) { h.ctl = c }
}

// WithMetrics tracks connected devices on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithOriginPatterns allows cross-origin WebSocket connections from the
// given host patterns.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) { h.origins = patterns }
}

// Hub manages device connections. It is safe for concurrent use.
type Hub struct {
	metrics *observe.Metrics
	origins []string

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	ctl     Controller
	clients map[*client]struct{}
	streams map[*stream]struct{}
	closed  bool
}

// New creates a Hub with no connected devices.
func New(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[*client]struct{}),
		streams: make(map[*stream]struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	h.ctx, h.cancel = context.WithCancel(context.Background())
	return h
}

// SetController replaces the control-message handler. It exists because the
// controller is usually built from the hub itself.
func (h *Hub) SetController(c Controller) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctl = c
}

// Devices returns the number of connected devices.
func (h *Hub) Devices() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every device and closes every microphone stream. Safe to
// call more than once.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	for s := range h.streams {
		close(s.ch)
		delete(h.streams, s)
	}
	h.mu.Unlock()

	h.cancel()
	for _, c := range clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	return nil
}

// ─── Connection handling ─────────────────────────────────────────────────────

// ServeHTTP upgrades the request to a WebSocket and serves the device until
// it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		observe.Logger(r.Context()).Warn("gateway: accept failed", "err", err)
		return
	}
	conn.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.ctx, cancel)
	defer stop()

	c := newClient(conn)
	if !h.addClient(ctx, c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.removeClient(ctx, c)

	ctx = observe.WithDevice(ctx, c.id)
	log := observe.Logger(ctx)
	log.Info("gateway: device connected", "remote", r.RemoteAddr)

	go c.writeLoop(ctx)
	err = h.readLoop(ctx, c)
	cancel()
	<-c.done

	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		log.Info("gateway: device disconnected")
	case errors.Is(err, context.Canceled):
		log.Debug("gateway: device connection cancelled")
	default:
		log.Warn("gateway: device connection lost", "err", err)
	}
	_ = conn.CloseNow()
}

func (h *Hub) addClient(ctx context.Context, c *client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.ActiveDevices.Add(ctx, 1)
	}
	return true
}

func (h *Hub) removeClient(ctx context.Context, c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok && h.metrics != nil {
		h.metrics.ActiveDevices.Add(context.WithoutCancel(ctx), -1)
	}
}

func (h *Hub) readLoop(ctx context.Context, c *client) error {
	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			return err
		}
		switch typ {
		case websocket.MessageBinary:
			h.broadcastFrame(c.frame(data))
		case websocket.MessageText:
			h.handleControl(ctx, c, data)
		}
	}
}

func (h *Hub) handleControl(ctx context.Context, c *client, data []byte) {
	var msg control
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendJSON(errorEvent{Type: TypeError, Error: "invalid control message"})
		return
	}

	h.mu.RLock()
	ctl := h.ctl
	h.mu.RUnlock()

	switch msg.Type {
	case TypeHello:
		c.setFormat(msg.SampleRate, msg.Channels)
	case TypeVoice:
		if ctl == nil {
			c.sendJSON(errorEvent{Type: TypeError, Error: "voice control unavailable"})
			return
		}
		if err := ctl.SetEnabled(h.ctx, msg.Enabled); err != nil {
			observe.Logger(ctx).Warn("gateway: toggle voice", "enabled", msg.Enabled, "err", err)
			c.sendJSON(errorEvent{Type: TypeError, Error: err.Error()})
		}
		h.broadcast(voiceEvent{Type: TypeVoice, Enabled: msg.Enabled})
	case TypeCommand:
		if ctl == nil {
			c.sendJSON(errorEvent{Type: TypeError, Error: "commands unavailable"})
			return
		}
		in, reply := ctl.Command(ctx, msg.Text)
		c.sendJSON(commandResultEvent{Type: TypeCommandResult, Intent: in, Response: reply})
	default:
		c.sendJSON(errorEvent{Type: TypeError, Error: fmt.Sprintf("unknown message type %q", msg.Type)})
	}
}

// ─── audio.Source ────────────────────────────────────────────────────────────

// Open returns a stream that receives microphone audio from every connected
// device. It succeeds while no device is connected; frames start flowing
// once one connects.
func (h *Hub) Open(_ context.Context) (audio.Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("gateway: open stream: %w", audio.ErrClosed)
	}
	s := &stream{hub: h, ch: make(chan audio.Frame, streamBuffer)}
	h.streams[s] = struct{}{}
	return s, nil
}

// broadcastFrame hands f to every open stream, dropping it for consumers
// that are not keeping up.
func (h *Hub) broadcastFrame(f audio.Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.streams {
		select {
		case s.ch <- f:
		default:
		}
	}
}

func (h *Hub) closeStream(s *stream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.streams[s]; !ok {
		return
	}
	delete(h.streams, s)
	close(s.ch)
}

type stream struct {
	hub *Hub
	ch  chan audio.Frame
}

func (s *stream) Frames() <-chan audio.Frame { return s.ch }

func (s *stream) Close() error {
	s.hub.closeStream(s)
	return nil
}

// ─── audio.Sink ──────────────────────────────────────────────────────────────

// Play sends chunks to every connected device. With no device connected the
// audio is discarded. Cancelling ctx ends the utterance early and tells
// devices to stop playback.
func (h *Hub) Play(ctx context.Context, format audio.Format, chunks <-chan []byte) error {
	clients := h.snapshot()
	if len(clients) == 0 {
		audio.Drain(chunks)
		return nil
	}

	start := mustMarshal(speechStartEvent{Type: TypeSpeechStart, SampleRate: format.SampleRate, Channels: format.Channels})
	for _, c := range clients {
		c.enqueue(outbound{typ: websocket.MessageText, data: start})
	}

	for {
		select {
		case <-ctx.Done():
			go audio.Drain(chunks)
			end := mustMarshal(speechEndEvent{Type: TypeSpeechEnd, Cancelled: true})
			for _, c := range clients {
				c.enqueue(outbound{typ: websocket.MessageText, data: end})
			}
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				end := mustMarshal(speechEndEvent{Type: TypeSpeechEnd})
				for _, c := range clients {
					c.enqueue(outbound{typ: websocket.MessageText, data: end})
				}
				return nil
			}
			for _, c := range clients {
				c.enqueueWait(ctx, outbound{typ: websocket.MessageBinary, data: chunk})
			}
		}
	}
}

// ─── Events ──────────────────────────────────────────────────────────────────

// Notify implements [notify.Sink].
func (h *Hub) Notify(_ context.Context, n notify.Notification) {
	h.broadcast(notificationEvent{Type: TypeNotification, Notification: n})
}

// Navigate tells devices to show route.
func (h *Hub) Navigate(_ context.Context, route string) {
	h.broadcast(navigateEvent{Type: TypeNavigate, Route: route})
}

// Level publishes the microphone level in [0, 1].
func (h *Hub) Level(level float64) {
	h.broadcast(levelEvent{Type: TypeLevel, Level: level})
}

// Interim publishes live dictation text. An empty string clears it.
func (h *Hub) Interim(text string) {
	h.broadcast(interimEvent{Type: TypeInterim, Text: text})
}

// State publishes the pipeline state.
func (h *Hub) State(state string) {
	h.broadcast(stateEvent{Type: TypeState, State: state})
}

func (h *Hub) broadcast(v any) {
	data := mustMarshal(v)
	for _, c := range h.snapshot() {
		c.enqueue(outbound{typ: websocket.MessageText, data: data})
	}
}

func (h *Hub) snapshot() []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// mustMarshal encodes event structs, which cannot fail to marshal.
func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("gateway: marshal %T: %v", v, err))
	}
	return data
}
