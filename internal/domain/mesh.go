package domain

import (
	"encoding/json"
	"time"
)

// DeviceType identifies the role a device plays on the mesh.
type DeviceType string

const (
	DeviceTypePOS   DeviceType = "POS"
	DeviceTypeKDS   DeviceType = "KDS"
	DeviceTypeQueue DeviceType = "QUEUE"
)

// ConnectionState is the lifecycle of one mesh connection. A hub only
// relays messages to and from REGISTERED connections.
type ConnectionState string

const (
	ConnectionStateConnecting   ConnectionState = "CONNECTING"
	ConnectionStateRegistered   ConnectionState = "REGISTERED"
	ConnectionStateDisconnected ConnectionState = "DISCONNECTED"
)

// Mesh wire message types.
const (
	MessageTypeRegister     = "register"
	MessageTypeRegisterAck  = "register_ack"
	MessageTypeOrderCreated = "order_created"
	MessageTypeOrderReady   = "order_ready"
	MessageTypeQueueCall    = "queue_call"
)

// Envelope is the JSON frame exchanged on the mesh. The hub routes on
// message_type and the sender's registered role; payloads pass through
// untouched.
type Envelope struct {
	MessageType string          `json:"message_type"`
	DeviceType  DeviceType      `json:"device_type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// RegisterPayload is the handshake a client sends as its first frame.
type RegisterPayload struct {
	DeviceID string `json:"device_id"`
}

// RegisterAckPayload confirms registration to the client.
type RegisterAckPayload struct {
	DeviceID string `json:"device_id"`
	HubID    string `json:"hub_id"`
}

// OrderCreatedPayload announces a freshly persisted ticket to kitchen
// displays.
type OrderCreatedPayload struct {
	TicketID     string       `json:"ticket_id"`
	TokenNumber  int          `json:"token_number"`
	LocationID   string       `json:"location_id"`
	BusinessDate string       `json:"business_date"`
	Items        []TicketItem `json:"items"`
	CreatedAt    time.Time    `json:"created_at"`
}

// OrderReadyPayload is emitted by a kitchen display when all items of a
// ticket are complete.
type OrderReadyPayload struct {
	TicketID    string    `json:"ticket_id"`
	TokenNumber int       `json:"token_number"`
	ReadyAt     time.Time `json:"ready_at"`
}

// QueueCallPayload tells queue displays to call a token number.
type QueueCallPayload struct {
	TicketID    string    `json:"ticket_id"`
	TokenNumber int       `json:"token_number"`
	CalledAt    time.Time `json:"called_at"`
}
