// Package wsch is a websocket client transport for cursor messages. It
// keeps a connection to a relay open, reconnecting with exponential
// backoff.
package wsch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/dannyswat/vcursor"
)

// ErrNotConnected is returned by Send while no connection is up.
var ErrNotConnected = errors.New("websocket not connected")

const writeTimeout = 10 * time.Second

type Options struct {
	Dialer *websocket.Dialer
	Header http.Header
	Logger *slog.Logger
	// OnConnect runs on the Run goroutine after every successful dial.
	OnConnect func()
	// NewBackOff returns the retry policy for one reconnection round.
	// Defaults to an unbounded exponential backoff.
	NewBackOff func() backoff.BackOff
}

// Client is a vcursor.Channel over a websocket connection. Inbound
// messages are dispatched from the Run goroutine; handlers that touch
// document state must hand the work to the owning event loop.
type Client struct {
	vcursor.Mux

	url    string
	opts   Options
	logger *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	// writeMu serialises writers; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

func New(url string, opts Options) *Client {
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 0
			return b
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{url: url, opts: opts, logger: logger.With("component", "wsch", "url", url)}
}

// Send writes m to the current connection.
func (c *Client) Send(m vcursor.Message) error {
	buf, err := vcursor.EncodeMessage(m)
	if err != nil {
		return err
	}
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, buf); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Connected reports whether a connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run connects and reads until ctx is done, reconnecting whenever the
// connection drops.
func (c *Client) Run(ctx context.Context) error {
	for {
		var conn *websocket.Conn
		err := backoff.RetryNotify(func() error {
			var err error
			conn, _, err = c.opts.Dialer.DialContext(ctx, c.url, c.opts.Header)
			return err
		}, backoff.WithContext(c.opts.NewBackOff(), ctx), func(err error, d time.Duration) {
			c.logger.Warn("dial failed, retrying", "err", err, "in", d)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}

		c.logger.Info("connected")
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		if c.opts.OnConnect != nil {
			c.opts.OnConnect()
		}

		err = c.readLoop(ctx, conn)

		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("connection lost", "err", err)
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	for {
		mt, p, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}
		if mt != websocket.TextMessage {
			continue
		}
		m, err := vcursor.DecodeMessage(p)
		if err != nil {
			c.logger.Warn("dropping undecodable message", "err", err)
			continue
		}
		c.Dispatch(m)
	}
}
