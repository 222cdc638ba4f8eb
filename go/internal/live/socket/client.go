package socket

import (
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ConnState mirrors the lifecycle of the underlying channel.
type ConnState string

const (
	StateConnecting ConnState = "connecting"
	StateOpen       ConnState = "open"
	StateClosing    ConnState = "closing"
	StateClosed     ConnState = "closed"
)

// Config holds connection behavior for one auction-viewing session.
type Config struct {
	// BaseURL is the WebSocket endpoint, e.g. "ws://localhost/ws". Token and
	// auction id are appended as query parameters on connect.
	BaseURL string

	KeepaliveInterval    time.Duration
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	HandshakeTimeout     time.Duration
	WriteTimeout         time.Duration

	// SubscribeOnConnect sends a subscribe frame (room join) after every
	// successful connect. Used by bidder sessions.
	SubscribeOnConnect bool
}

// DefaultConfig returns the production connection settings: 30s keepalive,
// five reconnect attempts at a fixed 3s spacing.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:              baseURL,
		KeepaliveInterval:    30 * time.Second,
		ReconnectDelay:       3 * time.Second,
		MaxReconnectAttempts: 5,
		HandshakeTimeout:     10 * time.Second,
		WriteTimeout:         10 * time.Second,
	}
}

// Client owns one duplex channel per (token, auction id) pair. It handles
// the handshake, keepalive, automatic reconnection, and republishes every
// non-protocol frame to the dispatcher under its own event type. Consumers
// never touch the socket handle; they only observe emitted events.
type Client struct {
	config     Config
	dispatcher *Dispatcher
	clock      clockwork.Clock
	dialer     *websocket.Dialer
	reconnect  *backoff.ConstantBackOff

	mu         sync.Mutex
	writeMu    sync.Mutex
	conn       *websocket.Conn
	state      ConnState
	token      string
	auctionID  string
	generation uint64
	attempts   int
	// intentional marks a caller-initiated close so the close path does not
	// schedule a reconnect.
	intentional    bool
	keepaliveStop  chan struct{}
	reconnectTimer clockwork.Timer
}

// NewClient creates a connection manager publishing into the given
// dispatcher. Pass clockwork.NewRealClock() outside of tests.
func NewClient(config Config, dispatcher *Dispatcher, clock clockwork.Clock) *Client {
	return &Client{
		config:     config,
		dispatcher: dispatcher,
		clock:      clock,
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.HandshakeTimeout,
		},
		reconnect: backoff.NewConstantBackOff(config.ReconnectDelay),
		state:     StateClosed,
	}
}

// Connect opens the channel for the given credentials. Failures surface as
// error events rather than returned errors, so the caller's flow matches
// the asynchronous reconnect path.
func (c *Client) Connect(token, auctionID string) {
	c.mu.Lock()
	c.token = token
	c.auctionID = auctionID
	c.intentional = false
	c.attempts = 0
	c.reconnect.Reset()
	c.mu.Unlock()

	c.dial()
}

// Disconnect closes the channel intentionally and resets session state.
// Idempotent; a server-initiated close arriving afterwards is ignored.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.intentional = true
	c.generation++ // invalidate in-flight read pumps and timers
	c.stopKeepaliveLocked()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.state = StateClosed
	c.token = ""
	c.auctionID = ""
	c.attempts = 0
	c.mu.Unlock()

	if conn == nil {
		return
	}
	deadline := time.Now().Add(c.config.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"), deadline)
	conn.Close()
	log.Info().Msg("auction channel closed by client")
	c.dispatcher.Emit(EventDisconnected, DisconnectedPayload{
		Code:   websocket.CloseNormalClosure,
		Reason: "client disconnect",
	})
}

// Send writes a frame to the channel. Requires an open channel; otherwise
// an error event is emitted and the frame is discarded, never queued.
func (c *Client) Send(frame Frame) {
	c.mu.Lock()
	conn := c.conn
	open := c.state == StateOpen
	c.mu.Unlock()

	if !open || conn == nil {
		log.Warn().Str("type", string(frame.Type)).Msg("cannot send, channel is not open")
		c.dispatcher.Emit(EventError, ErrorPayload{Message: "auction connection is not open"})
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(frame); err != nil {
		log.Error().Err(err).Str("type", string(frame.Type)).Msg("failed to write frame")
		c.dispatcher.Emit(EventError, ErrorPayload{Message: "failed to send message"})
	}
}

// State returns the current channel state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the channel is open.
func (c *Client) IsConnected() bool {
	return c.State() == StateOpen
}

func (c *Client) dial() {
	c.mu.Lock()
	if c.intentional {
		c.mu.Unlock()
		return
	}
	// Reconnection replaces the previous socket, never stacks a second one.
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateConnecting
	c.generation++
	gen := c.generation
	token := c.token
	auctionID := c.auctionID
	c.mu.Unlock()

	addr, err := buildURL(c.config.BaseURL, token, auctionID)

	if err != nil {
		log.Error().Err(err).Msg("invalid auction channel address")
		c.dispatcher.Emit(EventError, ErrorPayload{Message: "failed to open auction connection"})
		c.handleClose(gen, websocket.CloseAbnormalClosure, "invalid address")
		return
	}

	conn, _, err := c.dialer.Dial(addr, nil)
	if err != nil {
		log.Error().Err(err).Str("auction_id", auctionID).Msg("failed to open auction channel")
		c.dispatcher.Emit(EventError, ErrorPayload{Message: "failed to open auction connection"})
		c.handleClose(gen, websocket.CloseAbnormalClosure, err.Error())
		return
	}

	c.mu.Lock()
	if c.intentional || gen != c.generation {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.attempts = 0
	c.reconnect.Reset()
	c.startKeepaliveLocked()
	c.mu.Unlock()

	log.Info().Str("auction_id", auctionID).Msg("auction channel connected")
	go c.readPump(conn, gen)

	c.dispatcher.Emit(EventConnected, ConnectedPayload{AuctionID: auctionID})
	if c.config.SubscribeOnConnect {
		c.sendSubscribe(auctionID)
	}
}

func buildURL(base, token, auctionID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("auction_id", auctionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) sendSubscribe(auctionID string) {
	payload, err := json.Marshal(subscribePayload{AuctionID: auctionID})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode subscribe frame")
		return
	}
	c.Send(Frame{Type: eventSubscribe, Payload: payload})
}

func (c *Client) readPump(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			code := websocket.CloseAbnormalClosure
			if closeErr, ok := err.(*websocket.CloseError); ok {
				code = closeErr.Code
			}
			c.handleClose(gen, code, err.Error())
			return
		}
		c.handleFrame(data)
	}
}

// handleFrame parses one inbound frame. Protocol-level ping/pong never reach
// subscribers; malformed frames are logged and dropped so a bad message
// cannot take the channel down.
func (c *Client) handleFrame(data []byte) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Warn().Err(err).Msg("dropping malformed frame")
		return
	}
	if frame.Type == "" {
		log.Warn().RawJSON("frame", data).Msg("dropping frame without type")
		return
	}

	switch frame.Type {
	case eventPing:
		c.Send(Frame{Type: eventPong})
	case eventPong:
		// Keepalive reply, nothing to surface.
	default:
		log.Debug().Str("type", string(frame.Type)).Msg("received event")
		c.dispatcher.Emit(frame.Type, frame.Payload)
	}
}

// handleClose runs once per socket generation, for both dial failures and
// read-pump termination. Stale generations (a replaced or intentionally
// closed socket) are no-ops.
func (c *Client) handleClose(gen uint64, code int, reason string) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return
	}
	c.stopKeepaliveLocked()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.state = StateClosed
	intentional := c.intentional
	attempts := c.attempts
	maxAttempts := c.config.MaxReconnectAttempts
	c.mu.Unlock()

	log.Info().Int("code", code).Str("reason", reason).Msg("auction channel closed")
	c.dispatcher.Emit(EventDisconnected, DisconnectedPayload{Code: code, Reason: reason})

	if intentional {
		return
	}

	if attempts >= maxAttempts {
		log.Error().Int("attempts", attempts).Msg("reconnect attempts exhausted")
		c.dispatcher.Emit(EventError, ErrorPayload{
			Message: "connection retry limit reached, reload the page to rejoin the auction",
		})
		return
	}

	c.mu.Lock()
	c.attempts++
	attempt := c.attempts
	delay := c.reconnect.NextBackOff()
	c.mu.Unlock()

	log.Info().Int("attempt", attempt).Int("max", maxAttempts).Msg("scheduling reconnect")
	c.dispatcher.Emit(EventReconnecting, ReconnectingPayload{Attempt: attempt, Max: maxAttempts})

	c.mu.Lock()
	c.reconnectTimer = c.clock.AfterFunc(delay, c.dial)
	c.mu.Unlock()
}

func (c *Client) startKeepaliveLocked() {
	c.stopKeepaliveLocked()
	stop := make(chan struct{})
	c.keepaliveStop = stop
	ticker := c.clock.NewTicker(c.config.KeepaliveInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.Chan():
				c.Send(Frame{Type: eventPing})
			}
		}
	}()
}

func (c *Client) stopKeepaliveLocked() {
	if c.keepaliveStop != nil {
		close(c.keepaliveStop)
		c.keepaliveStop = nil
	}
}
