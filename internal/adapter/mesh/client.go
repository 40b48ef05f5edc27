package mesh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/pkg/config"
)

// Client is the display-side mesh connection: a kitchen or queue display
// dials the hub, registers its role and receives typed events. One client
// instance is constructed at startup and shared by everything that
// subscribes, never recreated ad hoc.
type Client struct {
	cfg      config.MeshConfig
	deviceID string
	role     domain.DeviceType
	registry *Registry
	log      *zap.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	state domain.ConnectionState

	cancel context.CancelFunc
}

func NewClient(cfg config.MeshConfig, deviceID string, role domain.DeviceType, log *zap.Logger) *Client {
	return &Client{
		cfg:      cfg,
		deviceID: deviceID,
		role:     role,
		registry: NewRegistry(),
		log:      log,
		state:    domain.ConnectionStateDisconnected,
	}
}

// On subscribes a handler for a message type. The returned id must be
// passed to Off when the subscriber is torn down.
func (c *Client) On(messageType string, h Handler) int {
	return c.registry.On(messageType, h)
}

// Off removes a subscription.
func (c *Client) Off(id int) {
	c.registry.Off(id)
}

// State reports the current connection state.
func (c *Client) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect dials the hub and completes the registration handshake. It
// returns once the client is REGISTERED (or ctx expires), then keeps the
// connection alive in the background, re-registering after drops. Missed
// events during a gap are not replayed.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.dial(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx)
	return nil
}

// Close tears the connection down and stops reconnecting.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.state = domain.ConnectionStateDisconnected
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Send pushes an envelope to the hub, e.g. a kitchen display emitting
// order_ready.
func (c *Client) Send(messageType string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := domain.Envelope{
		MessageType: messageType,
		DeviceType:  c.role,
		Payload:     raw,
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != domain.ConnectionStateRegistered || c.conn == nil {
		return errors.New("mesh client is not registered")
	}
	if c.cfg.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// dial establishes one connection and registers on it.
func (c *Client) dial(ctx context.Context) error {
	c.setState(domain.ConnectionStateConnecting)

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.RegisterTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.HubURL, nil)
	if err != nil {
		c.setState(domain.ConnectionStateDisconnected)
		return fmt.Errorf("failed to dial mesh hub: %w", err)
	}

	if err := c.handshake(conn); err != nil {
		conn.Close()
		c.setState(domain.ConnectionStateDisconnected)
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = domain.ConnectionStateRegistered
	c.mu.Unlock()

	c.log.Info("registered with mesh hub",
		zap.String("hub_url", c.cfg.HubURL),
		zap.String("role", string(c.role)),
	)
	return nil
}

func (c *Client) handshake(conn *websocket.Conn) error {
	regPayload, _ := json.Marshal(domain.RegisterPayload{DeviceID: c.deviceID})
	reg, _ := json.Marshal(domain.Envelope{
		MessageType: domain.MessageTypeRegister,
		DeviceType:  c.role,
		Payload:     regPayload,
	})
	if err := conn.WriteMessage(websocket.TextMessage, reg); err != nil {
		return fmt.Errorf("failed to send register: %w", err)
	}

	timeout := c.cfg.RegisterTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	conn.SetReadDeadline(time.Now().Add(timeout))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("registration not acknowledged: %w", err)
	}
	var ack domain.Envelope
	if err := json.Unmarshal(raw, &ack); err != nil {
		return fmt.Errorf("malformed registration ack: %w", err)
	}
	if ack.MessageType != domain.MessageTypeRegisterAck {
		return fmt.Errorf("expected register_ack, got %s", ack.MessageType)
	}

	conn.SetReadDeadline(time.Time{})
	return nil
}

// run reads frames until the connection dies, then reconnects with capped
// backoff until ctx is cancelled.
func (c *Client) run(ctx context.Context) {
	for {
		c.readLoop(ctx)
		c.setState(domain.ConnectionStateDisconnected)

		if ctx.Err() != nil {
			return
		}

		delay := c.cfg.ReconnectInitial
		if delay == 0 {
			delay = time.Second
		}
		max := c.cfg.ReconnectMax
		if max == 0 {
			max = 30 * time.Second
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}

			if err := c.dial(ctx); err == nil {
				break
			}
			c.log.Warn("mesh reconnect failed, backing off",
				zap.Duration("next_attempt_in", delay),
			)
			delay *= 2
			if delay > max {
				delay = max
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return
	}

	// Keepalive: the hub pings on its interval; answering keeps our
	// registration alive, and a quiet connection past the pong window is
	// treated as dead so the reconnect loop takes over.
	pongWait := 2 * c.cfg.PingInterval
	if pongWait > 0 {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPingHandler(func(appData string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
		})
	}

	for {
		if ctx.Err() != nil {
			return
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("mesh connection lost", zap.Error(err))
			}
			return
		}
		if pongWait > 0 {
			conn.SetReadDeadline(time.Now().Add(pongWait))
		}

		var env domain.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Warn("malformed mesh frame from hub", zap.Error(err))
			continue
		}
		c.registry.Dispatch(env)
	}
}

func (c *Client) setState(s domain.ConnectionState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
