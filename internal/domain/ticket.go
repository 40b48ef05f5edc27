package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SyncStatus tracks how far a locally created ticket has made it to the
// remote order service.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "PENDING"
	SyncStatusSyncing SyncStatus = "SYNCING"
	SyncStatusSynced  SyncStatus = "SYNCED"
	SyncStatusFailed  SyncStatus = "FAILED"
)

// PaymentMethodSplit is the summary method name used when a ticket was
// settled with more than one payment method.
const PaymentMethodSplit = "SPLIT"

// TicketItem is one sold line on a ticket. Prices are minor currency units.
type TicketItem struct {
	ProductID      string   `json:"product_id"`
	Name           string   `json:"name"`
	Quantity       int      `json:"quantity"`
	UnitPriceCents int64    `json:"unit_price_cents"`
	Modifiers      []string `json:"modifiers,omitempty"`
}

// AppliedCharge is a named extra amount applied to the ticket (service
// charge, card surcharge, delivery fee).
type AppliedCharge struct {
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
}

type TicketItems []TicketItem

type AppliedCharges []AppliedCharge

// Ticket is the durable local record of a completed sale. It is written
// locally before any network call; the sync fields are mutated only by the
// sync engine afterwards.
type Ticket struct {
	ID           string `json:"id" gorm:"primaryKey"`
	LocationID   string `json:"location_id" gorm:"index:idx_tickets_loc_date"`
	BusinessDate string `json:"business_date" gorm:"index:idx_tickets_loc_date"`
	TokenNumber  int    `json:"token_number"`

	Items         TicketItems    `json:"items" gorm:"type:jsonb"`
	Charges       AppliedCharges `json:"charges,omitempty" gorm:"type:jsonb"`
	SubtotalCents int64          `json:"subtotal_cents"`
	TotalCents    int64          `json:"total_cents"`

	// Payment summary folded in from the accumulator at finalization.
	PaymentMethod string `json:"payment_method"`
	TenderedCents int64  `json:"tendered_cents"`
	ChangeCents   int64  `json:"change_cents"`

	SyncStatus   SyncStatus `json:"sync_status" gorm:"index"`
	SyncAttempts int        `json:"sync_attempts"`
	SyncError    string     `json:"sync_error,omitempty"`
	RemoteID     string     `json:"remote_id,omitempty"`

	// SyncingAt stamps the moment a sync pass claimed the ticket. A claim
	// older than the engine's lease is treated as abandoned (the claiming
	// process died mid-pass) and returned to PENDING.
	SyncingAt *time.Time `json:"-"`

	CreatedAt time.Time  `json:"created_at"`
	SyncedAt  *time.Time `json:"synced_at,omitempty"`
}

// QueueToken records one issued queue position. The composite primary key
// makes a duplicate number for the same location and business date a hard
// storage error rather than a silent overwrite.
type QueueToken struct {
	LocationID   string    `json:"location_id" gorm:"primaryKey"`
	BusinessDate string    `json:"business_date" gorm:"primaryKey"`
	TokenNumber  int       `json:"token_number" gorm:"primaryKey;autoIncrement:false"`
	TicketID     string    `json:"ticket_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// SyncStats is the local queue summary shown on the terminal status screen.
type SyncStats struct {
	Pending int64 `json:"pending"`
	Failed  int64 `json:"failed"`
	Synced  int64 `json:"synced"`
}

func (i TicketItems) Value() (driver.Value, error) {
	return json.Marshal(i)
}

func (i *TicketItems) Scan(value interface{}) error {
	return scanJSON(value, i)
}

func (c AppliedCharges) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *AppliedCharges) Scan(value interface{}) error {
	return scanJSON(value, c)
}

func scanJSON(value, dst interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return fmt.Errorf("unsupported column type %T", value)
	}
}
