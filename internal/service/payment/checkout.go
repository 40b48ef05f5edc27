package payment

import (
	"errors"
	"sync"

	"github.com/seu-repo/pdv-core/internal/domain"
)

var (
	ErrInsufficientTender = errors.New("ticket is not fully tendered")
	ErrEntryNotFound      = errors.New("payment entry not found")
)

// Checkout owns the tender ledger of one in-progress sale. All mutations
// go through its mutex, so concurrent add/remove from UI events cannot
// race. The surcharge is locked when the first card tender is applied:
// later total changes do not retroactively change an applied surcharge.
type Checkout struct {
	mu sync.Mutex

	totalCents int64
	surcharge  *domain.SurchargeResult
	entries    []domain.PaymentEntry
}

func NewCheckout(totalCents int64) *Checkout {
	return &Checkout{totalCents: totalCents}
}

// AdjustedTotal is the ticket total plus the locked surcharge, if any.
func (c *Checkout) AdjustedTotal() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adjustedLocked()
}

func (c *Checkout) adjustedLocked() int64 {
	if c.surcharge != nil {
		return c.totalCents + c.surcharge.SurchargeCents
	}
	return c.totalCents
}

// SetTotal updates the base total, e.g. when an item is added mid-payment.
// A locked surcharge keeps its cents value.
func (c *Checkout) SetTotal(totalCents int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalCents = totalCents
}

// AddTender applies a cash-like tender. Over-tender beyond the epsilon is
// rejected so the entry sum can never knowingly exceed the adjusted total.
func (c *Checkout) AddTender(methodID, methodName string, amountCents int64) (domain.PaymentEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addLocked(methodID, methodName, amountCents, true)
}

// AddCardTender applies an approved card tender, locking the processor's
// surcharge on first use.
func (c *Checkout) AddCardTender(methodID, methodName string, amountCents int64, p domain.PaymentProcessor) (domain.PaymentEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.surcharge == nil {
		res := CalculateSurcharge(c.totalCents, p)
		if res.HasSurcharge {
			c.surcharge = &res
		}
	}
	// Card amounts are exact; cash over-tender (change) does not apply.
	return c.addLocked(methodID, methodName, amountCents, false)
}

func (c *Checkout) addLocked(methodID, methodName string, amountCents int64, allowOver bool) (domain.PaymentEntry, error) {
	if !allowOver {
		remaining := c.adjustedLocked() - Paid(c.entries)
		if amountCents > remaining+BalanceEpsilonCents {
			return domain.PaymentEntry{}, ErrOverTender
		}
	}
	entries, entry, err := AddPayment(c.entries, methodID, methodName, amountCents)
	if err != nil {
		return domain.PaymentEntry{}, err
	}
	c.entries = entries
	return entry, nil
}

// RemoveTender deletes an entry in full. It doubles as the compensating
// action when persisting a tender downstream fails.
func (c *Checkout) RemoveTender(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.entries)
	c.entries = RemovePayment(c.entries, id)
	if len(c.entries) == before {
		return ErrEntryNotFound
	}
	return nil
}

// Entries returns a copy of the current ledger.
func (c *Checkout) Entries() []domain.PaymentEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.PaymentEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Remaining is the outstanding balance against the adjusted total.
func (c *Checkout) Remaining() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.adjustedLocked() - Paid(c.entries)
}

// Eligible reports whether the checkout can be finalized.
func (c *Checkout) Eligible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return EligibleForFinalization(c.entries, c.adjustedLocked())
}

// Finalize folds the ledger into the ticket's payment summary and reports
// the entries spent. The checkout is done afterwards; entries are owned by
// the ticket record from here on.
func (c *Checkout) Finalize(t *domain.Ticket) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	adjusted := c.adjustedLocked()
	if !EligibleForFinalization(c.entries, adjusted) {
		return ErrInsufficientTender
	}

	method := ""
	for _, e := range c.entries {
		switch {
		case method == "":
			method = e.PaymentMethodName
		case method != e.PaymentMethodName:
			method = domain.PaymentMethodSplit
		}
	}

	paid := Paid(c.entries)
	t.PaymentMethod = method
	t.TenderedCents = paid
	if change := paid - adjusted; change > 0 {
		t.ChangeCents = change
	} else {
		t.ChangeCents = 0
	}
	t.TotalCents = adjusted
	if c.surcharge != nil {
		t.Charges = append(t.Charges, domain.AppliedCharge{
			Name:        "Card surcharge",
			AmountCents: c.surcharge.SurchargeCents,
		})
	}

	c.entries = nil
	return nil
}
