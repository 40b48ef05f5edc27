package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/seu-repo/pdv-core/internal/domain"
)

// BalanceEpsilonCents absorbs rounding: a checkout is settled once the
// remaining balance is at or below this value. The same threshold applies
// everywhere balance is checked.
const BalanceEpsilonCents = int64(1)

var (
	ErrInvalidAmount = errors.New("tender amount must be positive")
	ErrOverTender    = errors.New("tender exceeds remaining balance")
)

// AddPayment appends a tender entry and returns the new entry list. The
// input slice is not mutated.
func AddPayment(entries []domain.PaymentEntry, methodID, methodName string, amountCents int64) ([]domain.PaymentEntry, domain.PaymentEntry, error) {
	if amountCents <= 0 {
		return entries, domain.PaymentEntry{}, ErrInvalidAmount
	}
	entry := domain.PaymentEntry{
		ID:                uuid.NewString(),
		PaymentMethodID:   methodID,
		PaymentMethodName: methodName,
		AmountCents:       amountCents,
		CreatedAt:         time.Now(),
	}
	out := make([]domain.PaymentEntry, 0, len(entries)+1)
	out = append(out, entries...)
	out = append(out, entry)
	return out, entry, nil
}

// RemovePayment deletes the entry with the given id in full. Entries are
// additive only; there is no partial removal.
func RemovePayment(entries []domain.PaymentEntry, id string) []domain.PaymentEntry {
	out := make([]domain.PaymentEntry, 0, len(entries))
	for _, e := range entries {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

// CalculateSurcharge applies the processor's card surcharge to a base
// amount. It is a pure function: identical inputs always produce
// identical output.
func CalculateSurcharge(amountCents int64, p domain.PaymentProcessor) domain.SurchargeResult {
	surcharge := roundBps(amountCents, p.SurchargeBasisPoints) + p.SurchargeFlatCents
	return domain.SurchargeResult{
		HasSurcharge:       surcharge > 0,
		SurchargeCents:     surcharge,
		AdjustedTotalCents: amountCents + surcharge,
	}
}

// Paid sums the applied tenders.
func Paid(entries []domain.PaymentEntry) int64 {
	var sum int64
	for _, e := range entries {
		sum += e.AmountCents
	}
	return sum
}

// RemainingBalance is the surcharge-adjusted total minus all tenders.
// Negative means change is owed.
func RemainingBalance(entries []domain.PaymentEntry, adjustedTotalCents int64) int64 {
	return adjustedTotalCents - Paid(entries)
}

// EligibleForFinalization reports whether the ticket is fully tendered
// within the rounding epsilon.
func EligibleForFinalization(entries []domain.PaymentEntry, adjustedTotalCents int64) bool {
	return RemainingBalance(entries, adjustedTotalCents) <= BalanceEpsilonCents
}

// roundBps computes amount * bps / 10000 rounded half up to the cent.
func roundBps(amountCents, bps int64) int64 {
	if bps <= 0 || amountCents <= 0 {
		return 0
	}
	return (amountCents*bps + 5000) / 10000
}
