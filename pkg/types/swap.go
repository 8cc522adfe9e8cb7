package types

import (
	"fmt"
	"time"

	"swapflow/pkg/swap"
)

// SwapRequest represents a user's swap command
type SwapRequest struct {
	Amount      string
	SourceToken string
	DestToken   string // empty means the configured target
}

// QuoteDisplay holds formatted quote information for display
type QuoteDisplay struct {
	SourceAmount   string `json:"source_amount"`
	SourceToken    string `json:"source_token"`
	DestAmount     string `json:"dest_amount"`
	DestToken      string `json:"dest_token"`
	Rate           string `json:"rate"`
	Fee            string `json:"fee"`
	OrderUUID      string `json:"order_uuid"`
	ExpiresIn      string `json:"expires_in"`
	Expired        bool   `json:"expired"`
	DepositAddress string `json:"deposit_address,omitempty"`
	DepositMemo    string `json:"deposit_memo,omitempty"`
}

// NewQuoteDisplay formats q as seen at now
func NewQuoteDisplay(q swap.Quote, now time.Time) QuoteDisplay {
	secs := q.RemainingSeconds(now)
	d := QuoteDisplay{
		SourceAmount: q.SourceAmount,
		SourceToken:  q.SourceTicker,
		DestAmount:   q.TargetAmount,
		DestToken:    q.TargetTicker,
		Rate:         q.Rate,
		Fee:          q.Fee,
		OrderUUID:    q.OrderUUID,
		Expired:      !q.IsValid(now),
	}
	if d.Expired {
		d.ExpiresIn = "expired"
	} else {
		d.ExpiresIn = fmt.Sprintf("%ds", secs)
	}
	if d.Rate == "" {
		d.Rate = "n/a"
	}
	if d.Fee == "" || d.Fee == "0" {
		d.Fee = "included"
	}
	return d
}

// SwapStatus is the printable state of a running or finished swap
type SwapStatus struct {
	SwapUUID  string `json:"swap_uuid"`
	Stage     string `json:"stage"`
	Display   string `json:"display"`
	Percent   int    `json:"percent"`
	Elapsed   string `json:"elapsed,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewSwapStatus formats p as seen at now
func NewSwapStatus(p swap.Progress, now time.Time) SwapStatus {
	return SwapStatus{
		SwapUUID:  p.SwapUUID,
		Stage:     p.Stage.String(),
		Display:   p.Stage.DisplayName(),
		Percent:   p.Percent(),
		Elapsed:   p.Elapsed(now).Truncate(time.Second).String(),
		Error:     p.Error,
		Timestamp: p.UpdatedAt.Format("2006-01-02 15:04:05"),
	}
}
