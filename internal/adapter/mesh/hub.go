package mesh

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/pdv-core/internal/domain"
	"github.com/seu-repo/pdv-core/internal/observability/telemetry"
	"github.com/seu-repo/pdv-core/pkg/config"
)

// wsConn is the slice of the websocket connection the hub needs. Both the
// fiber upgrade connection and test fakes satisfy it.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// hubClient is one registered display connection. Frames for the client
// pass through a buffered channel drained by a single write pump, which
// preserves send order per destination.
type hubClient struct {
	deviceID string
	role     domain.DeviceType
	conn     wsConn
	send     chan []byte
}

type inboundFrame struct {
	from *hubClient
	env  domain.Envelope
}

type outboundFrame struct {
	target domain.DeviceType
	env    domain.Envelope
}

// Hub is the POS-side mesh endpoint: it accepts kitchen and queue display
// connections and relays order-lifecycle events between them. One
// goroutine owns the connection set; all mutation goes through channels.
type Hub struct {
	hubID string
	cfg   config.MeshConfig
	log   *zap.Logger

	register   chan *hubClient
	unregister chan *hubClient
	inbound    chan inboundFrame
	outbound   chan outboundFrame
	done       chan struct{}
}

func NewHub(hubID string, cfg config.MeshConfig, log *zap.Logger) *Hub {
	return &Hub{
		hubID:      hubID,
		cfg:        cfg,
		log:        log,
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		inbound:    make(chan inboundFrame, 64),
		outbound:   make(chan outboundFrame, 64),
		done:       make(chan struct{}),
	}
}

// Run owns the connection set until Stop is called.
func (h *Hub) Run() {
	clients := make(map[*hubClient]bool)

	for {
		select {
		case c := <-h.register:
			clients[c] = true
			telemetry.MeshClients.WithLabelValues(string(c.role)).Inc()
			h.log.Info("mesh client registered",
				zap.String("device_id", c.deviceID),
				zap.String("role", string(c.role)),
			)
		case c := <-h.unregister:
			if clients[c] {
				delete(clients, c)
				close(c.send)
				telemetry.MeshClients.WithLabelValues(string(c.role)).Dec()
				h.log.Info("mesh client disconnected",
					zap.String("device_id", c.deviceID),
					zap.String("role", string(c.role)),
				)
			}
		case frame := <-h.inbound:
			h.route(clients, frame)
		case frame := <-h.outbound:
			h.fanOut(clients, frame.target, frame.env)
		case <-h.done:
			for c := range clients {
				close(c.send)
				delete(clients, c)
			}
			return
		}
	}
}

// Stop closes all client connections and ends Run.
func (h *Hub) Stop() {
	close(h.done)
}

// route interprets a frame from a registered client. The hub relays typed
// events without touching payloads; the only translation is order_ready
// from a kitchen display becoming queue_call for queue displays.
func (h *Hub) route(clients map[*hubClient]bool, frame inboundFrame) {
	telemetry.MeshMessages.WithLabelValues(frame.env.MessageType, "in").Inc()

	switch frame.env.MessageType {
	case domain.MessageTypeOrderReady:
		if frame.from.role != domain.DeviceTypeKDS {
			h.log.Warn("order_ready from non-kitchen device ignored",
				zap.String("device_id", frame.from.deviceID),
				zap.String("role", string(frame.from.role)),
			)
			return
		}
		out := domain.Envelope{
			MessageType: domain.MessageTypeQueueCall,
			DeviceType:  domain.DeviceTypePOS,
			Payload:     frame.env.Payload,
		}
		h.fanOut(clients, domain.DeviceTypeQueue, out)
	default:
		h.log.Debug("unhandled mesh message",
			zap.String("message_type", frame.env.MessageType),
			zap.String("device_id", frame.from.deviceID),
		)
	}
}

// fanOut delivers the envelope to every registered client of the target
// role. No listener is a no-op: delivery is best-effort and must never
// fail the order flow.
func (h *Hub) fanOut(clients map[*hubClient]bool, target domain.DeviceType, env domain.Envelope) {
	raw, err := json.Marshal(env)
	if err != nil {
		h.log.Error("failed to encode mesh envelope", zap.Error(err))
		return
	}

	delivered := 0
	for c := range clients {
		if c.role != target {
			continue
		}
		select {
		case c.send <- raw:
			delivered++
		default:
			// Slow consumer: drop the connection rather than stall the hub.
			close(c.send)
			delete(clients, c)
			telemetry.MeshClients.WithLabelValues(string(c.role)).Dec()
			h.log.Warn("mesh client dropped, send buffer full",
				zap.String("device_id", c.deviceID),
			)
		}
	}

	telemetry.MeshMessages.WithLabelValues(env.MessageType, "out").Add(float64(delivered))
	if delivered == 0 {
		h.log.Debug("no mesh listener for broadcast",
			zap.String("message_type", env.MessageType),
			zap.String("target", string(target)),
		)
	}
}

// BroadcastOrder announces a new ticket to kitchen displays.
func (h *Hub) BroadcastOrder(payload domain.OrderCreatedPayload) {
	h.broadcast(domain.MessageTypeOrderCreated, domain.DeviceTypeKDS, payload)
}

// BroadcastToQueue calls a token on queue displays.
func (h *Hub) BroadcastToQueue(payload domain.QueueCallPayload) {
	h.broadcast(domain.MessageTypeQueueCall, domain.DeviceTypeQueue, payload)
}

func (h *Hub) broadcast(messageType string, target domain.DeviceType, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("failed to encode broadcast payload", zap.Error(err))
		return
	}
	env := domain.Envelope{
		MessageType: messageType,
		DeviceType:  domain.DeviceTypePOS,
		Payload:     raw,
	}
	select {
	case h.outbound <- outboundFrame{target: target, env: env}:
	case <-h.done:
	}
}

// Handler upgrades fiber requests on the mesh route.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		h.serveConn(conn)
	})
}

var errBadRegistration = errors.New("first frame must be a register message")

// serveConn performs the registration handshake and runs the connection's
// pumps. It returns when the connection dies.
func (h *Hub) serveConn(conn wsConn) {
	defer conn.Close()

	client, err := h.handshake(conn)
	if err != nil {
		h.log.Warn("mesh registration failed", zap.Error(err))
		return
	}

	select {
	case h.register <- client:
	case <-h.done:
		return
	}

	go client.writePump(h.cfg.WriteTimeout, h.cfg.PingInterval)

	// Keepalive: the write pump pings on an interval, each pong extends
	// the read deadline. A display that stops answering is reaped here
	// instead of holding a dead connection in the set.
	if h.cfg.PingInterval > 0 {
		pongWait := 2 * h.cfg.PingInterval
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
	} else {
		conn.SetReadDeadline(time.Time{})
	}

	// Read pump: same-origin ordering comes from this single loop feeding
	// the hub's inbound channel in arrival order.
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var env domain.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			h.log.Warn("malformed mesh frame",
				zap.String("device_id", client.deviceID),
				zap.Error(err),
			)
			continue
		}
		select {
		case h.inbound <- inboundFrame{from: client, env: env}:
		case <-h.done:
			return
		}
	}

	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// handshake reads the register frame and acknowledges it. Until the ack is
// sent the connection is CONNECTING and receives nothing.
func (h *Hub) handshake(conn wsConn) (*hubClient, error) {
	timeout := h.cfg.RegisterTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	conn.SetReadDeadline(time.Now().Add(timeout))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	var env domain.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if env.MessageType != domain.MessageTypeRegister {
		return nil, errBadRegistration
	}
	switch env.DeviceType {
	case domain.DeviceTypeKDS, domain.DeviceTypeQueue, domain.DeviceTypePOS:
	default:
		return nil, errors.New("unknown device type: " + string(env.DeviceType))
	}

	var reg domain.RegisterPayload
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, &reg); err != nil {
			return nil, err
		}
	}
	if reg.DeviceID == "" {
		return nil, errors.New("register payload missing device_id")
	}

	ackPayload, _ := json.Marshal(domain.RegisterAckPayload{
		DeviceID: reg.DeviceID,
		HubID:    h.hubID,
	})
	ack, _ := json.Marshal(domain.Envelope{
		MessageType: domain.MessageTypeRegisterAck,
		DeviceType:  domain.DeviceTypePOS,
		Payload:     ackPayload,
	})
	if err := conn.WriteMessage(websocket.TextMessage, ack); err != nil {
		return nil, err
	}

	buffer := h.cfg.SendBuffer
	if buffer == 0 {
		buffer = 64
	}
	return &hubClient{
		deviceID: reg.DeviceID,
		role:     env.DeviceType,
		conn:     conn,
		send:     make(chan []byte, buffer),
	}, nil
}

func (c *hubClient) writePump(writeTimeout, pingInterval time.Duration) {
	defer c.conn.Close()

	var ping <-chan time.Time
	if pingInterval > 0 {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if writeTimeout > 0 {
				c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ping:
			if writeTimeout > 0 {
				c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
