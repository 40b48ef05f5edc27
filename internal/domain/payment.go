package domain

import (
	"time"
)

// PaymentEntry is one tender applied toward the in-progress checkout. It
// lives only in memory until the ticket is finalized, after which it is
// folded into the ticket's payment summary and discarded.
type PaymentEntry struct {
	ID                string    `json:"id"`
	PaymentMethodID   string    `json:"payment_method_id"`
	PaymentMethodName string    `json:"payment_method_name"`
	AmountCents       int64     `json:"amount_cents"`
	CreatedAt         time.Time `json:"created_at"`
}

// TerminalStatus is the card terminal transaction state.
type TerminalStatus string

const (
	TerminalStatusInitiated  TerminalStatus = "INITIATED"
	TerminalStatusProcessing TerminalStatus = "PROCESSING"
	TerminalStatusApproved   TerminalStatus = "APPROVED"
	TerminalStatusDeclined   TerminalStatus = "DECLINED"
	TerminalStatusCancelled  TerminalStatus = "CANCELLED"
	TerminalStatusError      TerminalStatus = "ERROR"
)

// IsTerminal reports whether the status ends the transaction. Only
// APPROVED ever becomes a payment entry.
func (s TerminalStatus) IsTerminal() bool {
	switch s {
	case TerminalStatusApproved, TerminalStatusDeclined, TerminalStatusCancelled, TerminalStatusError:
		return true
	}
	return false
}

// TerminalTransaction is one attempt to collect a card payment on the
// external terminal device.
type TerminalTransaction struct {
	TransactionID     string         `json:"transaction_id"`
	AmountCents       int64          `json:"amount_cents"`
	Currency          string         `json:"currency"`
	Status            TerminalStatus `json:"status"`
	ProcessorResponse string         `json:"processor_response,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// PaymentProcessor describes a card processor's surcharge terms. The
// surcharge is a pure function of these fields and the base amount.
type PaymentProcessor struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	SurchargeBasisPoints int64  `json:"surcharge_basis_points"`
	SurchargeFlatCents   int64  `json:"surcharge_flat_cents"`
}

// SurchargeResult is the outcome of applying a processor's card surcharge
// to a base amount. Computing it twice for the same inputs always yields
// the same result.
type SurchargeResult struct {
	HasSurcharge       bool  `json:"has_surcharge"`
	SurchargeCents     int64 `json:"surcharge_cents"`
	AdjustedTotalCents int64 `json:"adjusted_total_cents"`
}
