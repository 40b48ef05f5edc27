package domain

import (
	"time"
)

// Workday is the local record of one operational day at a location. The
// business date is distinct from the calendar date so a shift spanning
// midnight stays on one workday.
type Workday struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	RemoteID     string     `json:"remote_id,omitempty"`
	LocationID   string     `json:"location_id" gorm:"index"`
	BusinessDate string     `json:"business_date"`
	OpenedBy     string     `json:"opened_by"`
	OpenedAt     time.Time  `json:"opened_at"`
	ClosedAt     *time.Time `json:"closed_at,omitempty"`

	GrossCents  int64 `json:"gross_cents"`
	TicketCount int64 `json:"ticket_count"`
}

// Open reports whether the workday has not yet been closed.
func (w *Workday) Open() bool {
	return w.ClosedAt == nil
}

// BusinessDate maps a wall-clock instant to the operational day. Times
// before the rollover hour still belong to the previous day, so a shift
// closing at 2 AM stays on one date.
func BusinessDate(t time.Time, loc *time.Location, rolloverHour int) string {
	local := t.In(loc)
	if local.Hour() < rolloverHour {
		local = local.AddDate(0, 0, -1)
	}
	return local.Format("2006-01-02")
}
