package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dmitrijs2005/kopeck/internal/client/client"
	"github.com/dmitrijs2005/kopeck/internal/logging"
)

// Conn is the subset of *websocket.Conn the channel uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	SetReadDeadline(t time.Time) error
	Close() error
}

// DialFunc opens a connection to the realtime endpoint.
type DialFunc func(ctx context.Context, url string) (Conn, error)

func gorillaDial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Config holds the channel tuning knobs.
type Config struct {
	URL               string
	Topic             string
	HeartbeatInterval time.Duration
	ReadTimeout       time.Duration
	BackoffBase       time.Duration
	ReconnectDelay    time.Duration
	MaxRetries        int
}

func (c Config) withDefaults() Config {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 250 * time.Millisecond
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	return c
}

type state int

const (
	stateUnsubscribed state = iota
	stateSubscribing
	stateSubscribed
)

// Channel keeps one realtime subscription alive. It reconnects with
// exponential backoff after errors and read timeouts, gives up after
// MaxRetries consecutive failures, and comes back on Reconnect or
// SetOnline(true).
type Channel struct {
	cfg    Config
	dial   DialFunc
	after  func(d time.Duration, fn func()) *time.Timer
	tokens client.TokenSource
	log    logging.Logger

	// OnEvent receives every decoded change. OnStatus receives lifecycle
	// transitions. Both must be set before Subscribe.
	OnEvent  func(ctx context.Context, event *Event)
	OnStatus func(status Status)

	mu         sync.Mutex
	state      state
	conn       Conn
	generation int
	attempts   int
	online     bool
	closed     bool
	retryTimer *time.Timer
}

// NewChannel builds a channel over the default websocket dialer.
func NewChannel(cfg Config, tokens client.TokenSource, log logging.Logger) *Channel {
	return &Channel{
		cfg:    cfg.withDefaults(),
		dial:   gorillaDial,
		after:  time.AfterFunc,
		tokens: tokens,
		log:    log,
		online: true,
	}
}

// Subscribe opens the connection and starts the read loop. It returns
// immediately; status is reported through OnStatus.
func (c *Channel) Subscribe(ctx context.Context) {
	c.connect(ctx)
}

// IsSubscribed reports whether the channel is currently live.
func (c *Channel) IsSubscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateSubscribed
}

// Reconnect tears down the current connection and resubscribes after a
// short delay, with a fresh retry budget. Bursts of calls collapse into a
// single attempt.
func (c *Channel) Reconnect(ctx context.Context) {
	c.mu.Lock()
	if c.closed || !c.online {
		c.mu.Unlock()
		return
	}
	c.attempts = 0
	c.teardownLocked()
	c.scheduleLocked(ctx, c.cfg.ReconnectDelay)
	c.mu.Unlock()
}

// SetOnline switches the channel with network availability. Going online
// resets the retry budget and resubscribes; going offline marks the channel
// down and stops retrying, but leaves the socket to self-report closure.
func (c *Channel) SetOnline(ctx context.Context, online bool) {
	c.mu.Lock()
	if c.closed || c.online == online {
		c.mu.Unlock()
		return
	}
	c.online = online
	if online {
		c.attempts = 0
		c.teardownLocked()
		c.scheduleLocked(ctx, c.cfg.ReconnectDelay)
		c.mu.Unlock()
		return
	}
	// Offline only flips the state. The socket stays up and the read loop
	// self-reports a real closure.
	c.state = stateUnsubscribed
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	c.mu.Unlock()
	c.notifyStatus(StatusClosed)
}

// Unsubscribe drops the connection and stops retrying. The channel can be
// resubscribed later, unlike after Close.
func (c *Channel) Unsubscribe() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.teardownLocked()
	c.mu.Unlock()
	c.notifyStatus(StatusClosed)
}

// Close shuts the channel down for good.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.teardownLocked()
	c.mu.Unlock()
	c.notifyStatus(StatusClosed)
}

// teardownLocked invalidates the running loop and drops the connection.
// Callers hold c.mu.
func (c *Channel) teardownLocked() {
	c.generation++
	c.state = stateUnsubscribed
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// scheduleLocked arms the retry timer, replacing any pending one.
// Callers hold c.mu.
func (c *Channel) scheduleLocked(ctx context.Context, delay time.Duration) {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer = c.after(delay, func() {
		c.connect(ctx)
	})
}

func (c *Channel) connect(ctx context.Context) {
	c.mu.Lock()
	if c.closed || !c.online || c.state != stateUnsubscribed {
		c.mu.Unlock()
		return
	}
	c.state = stateSubscribing
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	go c.run(ctx, gen)
}

// run dials, subscribes and reads until the connection breaks or the
// generation is superseded.
func (c *Channel) run(ctx context.Context, gen int) {
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		c.fail(ctx, gen, StatusChannelError, err)
		return
	}

	conn, err := c.dial(ctx, c.cfg.URL)
	if err != nil {
		c.fail(ctx, gen, StatusChannelError, err)
		return
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	sub := &Message{Type: TypeSubscribe, Topic: c.cfg.Topic, Token: token}
	if err := conn.WriteJSON(sub); err != nil {
		c.fail(ctx, gen, StatusChannelError, err)
		return
	}

	done := make(chan struct{})
	defer close(done)
	go c.heartbeatLoop(gen, done)

	for {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			status := StatusChannelError
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				status = StatusTimedOut
			}
			c.fail(ctx, gen, status, err)
			return
		}
		c.handleFrame(ctx, gen, data)
	}
}

func (c *Channel) heartbeatLoop(gen int, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			conn := c.conn
			stale := gen != c.generation
			c.mu.Unlock()
			if stale || conn == nil {
				return
			}
			// A write failure surfaces in the read loop as well.
			conn.WriteJSON(&Message{Type: TypeHeartbeat})
		}
	}
}

func (c *Channel) handleFrame(ctx context.Context, gen int, data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.log.Warn(ctx, "realtime: dropping malformed frame", "error", err)
		return
	}

	switch msg.Type {
	case TypeSubscribed:
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return
		}
		c.state = stateSubscribed
		c.attempts = 0
		c.mu.Unlock()
		c.log.Info(ctx, "realtime: subscribed", "topic", c.cfg.Topic)
		c.notifyStatus(StatusSubscribed)
	case TypeChange:
		var event Event
		if err := msg.UnmarshalPayload(&event); err != nil {
			c.log.Warn(ctx, "realtime: dropping malformed event", "error", err)
			return
		}
		c.dispatch(ctx, &event)
	case TypeHeartbeat:
		// Liveness only, the read deadline was already extended.
	case TypeError:
		c.log.Warn(ctx, "realtime: server error frame", "payload", string(msg.Payload))
	default:
		c.log.Warn(ctx, "realtime: unknown frame type", "type", string(msg.Type))
	}
}

// dispatch hands one event to the handler. A panicking handler loses that
// event only, the read loop keeps going.
func (c *Channel) dispatch(ctx context.Context, event *Event) {
	if c.OnEvent == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.log.Error(ctx, "realtime: event handler panicked", "table", string(event.Table), "panic", r)
		}
	}()
	c.OnEvent(ctx, event)
}

// fail records a broken connection and arms the next retry. Stale
// generations are ignored so a superseded loop cannot double-count.
func (c *Channel) fail(ctx context.Context, gen int, status Status, err error) {
	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.state = stateUnsubscribed
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.attempts++
	attempts := c.attempts
	online := c.online
	c.mu.Unlock()

	c.log.Warn(ctx, "realtime: connection lost", "status", string(status), "attempt", attempts, "error", err)
	c.notifyStatus(status)

	if !online {
		return
	}
	if attempts > c.cfg.MaxRetries {
		c.log.Error(ctx, "realtime: retries exhausted, staying down", "attempts", attempts)
		return
	}

	delay := c.cfg.BackoffBase << (attempts - 1)
	c.mu.Lock()
	if !c.closed && c.online && c.state == stateUnsubscribed {
		c.scheduleLocked(ctx, delay)
	}
	c.mu.Unlock()
}

func (c *Channel) notifyStatus(status Status) {
	if c.OnStatus == nil {
		return
	}
	c.OnStatus(status)
}
