// Package transport implements the signaling channel: one websocket per
// session, four lifecycle callbacks and a send that never blocks the caller.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrClosed        = errors.New("transport: channel closed")
	ErrNotConnected  = errors.New("transport: channel not connected")
	ErrSendQueueFull = errors.New("transport: send queue full")
)

// Callbacks receives channel lifecycle notifications. OnOpen and OnClose
// fire at most once; OnError and OnMessage any number of times. Callbacks
// run on the channel's goroutines and must not block for long.
type Callbacks struct {
	OnOpen    func()
	OnError   func(err error)
	OnMessage func(data []byte)
	OnClose   func(err error)
}

// Config represents a config.
type Config struct {
	URL              string
	Header           http.Header
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	SendQueue        int
}

type channelState int

const (
	stateIdle channelState = iota
	stateConnecting
	stateOpen
	stateClosed
)

// Channel is a single, non-reconnecting websocket connection.
type Channel struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	callbacks Callbacks
	conn      *websocket.Conn
	state     channelState

	outbox  chan []byte
	done    chan struct{}
	writeMu sync.Mutex
}

// New creates an unconnected channel.
func New(cfg Config, logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendQueue <= 0 {
		cfg.SendQueue = 64
	}
	return &Channel{
		cfg:    cfg,
		logger: logger,
		outbox: make(chan []byte, cfg.SendQueue),
		done:   make(chan struct{}),
	}
}

// AssignCallbacks registers the lifecycle handlers. Call it before Connect.
func (c *Channel) AssignCallbacks(callbacks Callbacks) {
	c.mu.Lock()
	c.callbacks = callbacks
	c.mu.Unlock()
}

// Connect dials the endpoint once. A failed dial reports OnError and then
// OnClose, and the channel stays closed.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return errors.New("transport: connect called twice")
	}
	c.state = stateConnecting
	c.mu.Unlock()

	if c.cfg.URL == "" {
		err := errors.New("transport: endpoint url is empty")
		c.reportError(err)
		c.shutdown(err)
		return err
	}

	c.logger.Info("signaling connecting", zap.String("url", c.cfg.URL))
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		err = fmt.Errorf("transport: dial %s: %w", c.cfg.URL, err)
		c.reportError(err)
		c.shutdown(err)
		return err
	}
	conn.SetPingHandler(func(appData string) error {
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})

	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.state = stateOpen
	onOpen := c.callbacks.OnOpen
	c.mu.Unlock()

	c.logger.Info("signaling connected", zap.String("url", c.cfg.URL))
	if onOpen != nil {
		onOpen()
	}

	go c.writeLoop(conn)
	go c.readLoop(conn)
	return nil
}

// Send serializes message as JSON and queues it for the writer.
func (c *Channel) Send(message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("transport: encode message: %w", err)
	}

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()
	switch state {
	case stateOpen:
	case stateClosed:
		return ErrClosed
	default:
		return ErrNotConnected
	}

	select {
	case <-c.done:
		return ErrClosed
	case c.outbox <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close flushes queued messages and shuts the channel down. OnClose fires
// with a nil error if it has not fired yet.
func (c *Channel) Close() error {
	c.shutdown(nil)
	return nil
}

// Open reports whether the channel is connected.
func (c *Channel) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateOpen
}

// Done is closed once the channel is closed.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

func (c *Channel) writeLoop(conn *websocket.Conn) {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.outbox:
			c.writeMu.Lock()
			if c.cfg.WriteTimeout > 0 {
				_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			}
			err := conn.WriteMessage(websocket.TextMessage, data)
			c.writeMu.Unlock()
			if err != nil {
				if c.isClosed() {
					return
				}
				err = fmt.Errorf("transport: write: %w", err)
				c.reportError(err)
				c.shutdown(err)
				return
			}
		}
	}
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if c.isClosed() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("signaling closed by server", zap.Error(err))
				c.shutdown(nil)
				return
			}
			err = fmt.Errorf("transport: read: %w", err)
			c.reportError(err)
			c.shutdown(err)
			return
		}

		switch msgType {
		case websocket.TextMessage, websocket.BinaryMessage:
			c.mu.Lock()
			onMessage := c.callbacks.OnMessage
			c.mu.Unlock()
			if onMessage != nil {
				onMessage(data)
			}
		}
	}
}

func (c *Channel) shutdown(cause error) {
	c.mu.Lock()
	if c.state == stateClosed {
		c.mu.Unlock()
		return
	}
	c.state = stateClosed
	conn := c.conn
	onClose := c.callbacks.OnClose
	c.mu.Unlock()

	close(c.done)
	if conn != nil {
		c.writeMu.Lock()
		if cause == nil {
			c.flush(conn)
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		_ = conn.Close()
	}

	c.logger.Info("signaling channel closed", zap.Error(cause))
	if onClose != nil {
		onClose(cause)
	}
}

// flush writes whatever is still queued. Callers hold writeMu.
func (c *Channel) flush(conn *websocket.Conn) {
	for {
		select {
		case data := <-c.outbox:
			_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Channel) reportError(err error) {
	c.mu.Lock()
	onError := c.callbacks.OnError
	c.mu.Unlock()
	if onError != nil {
		onError(err)
	}
}

func (c *Channel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateClosed
}
