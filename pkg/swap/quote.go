package swap

import (
	"time"
)

// Quote is a priced, time-bounded offer returned by the engine. Amounts are
// decimal strings exactly as the engine reported them.
type Quote struct {
	SourceTicker string    `json:"source_ticker"`
	TargetTicker string    `json:"target_ticker"`
	SourceAmount string    `json:"source_amount"`
	TargetAmount string    `json:"target_amount"`
	Rate         string    `json:"rate"`
	Fee          string    `json:"fee"`
	OrderUUID    string    `json:"order_uuid"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IsValid reports whether now lies strictly before the expiry instant.
func (q Quote) IsValid(now time.Time) bool {
	return now.Before(q.ExpiresAt)
}

// RemainingSeconds returns the whole seconds left before expiry, rounded up.
// The value is not clamped: it is zero at expiry and negative afterwards.
func (q Quote) RemainingSeconds(now time.Time) int64 {
	d := q.ExpiresAt.Sub(now)
	secs := int64(d / time.Second)
	if d%time.Second > 0 {
		secs++
	}
	return secs
}
