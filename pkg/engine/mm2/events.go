package mm2

import (
	"encoding/json"
	"fmt"
	"strings"

	"swapflow/pkg/swap"
)

type eventKind int

const (
	eventProgress eventKind = iota
	eventFailure
	eventRefundWait
	eventRefunded
	eventFinished
)

type eventInfo struct {
	kind  eventKind
	stage swap.Stage
}

// swapEvents covers the taker and maker event logs reported by my_swap_status.
var swapEvents = map[string]eventInfo{
	"Started":                           {eventProgress, swap.StageInitiating},
	"Negotiated":                        {eventProgress, swap.StageNegotiating},
	"TakerFeeSent":                      {eventProgress, swap.StageSendingFee},
	"TakerFeeValidated":                 {eventProgress, swap.StageSendingFee},
	"MakerPaymentSent":                  {eventProgress, swap.StageWaitingForMakerPayment},
	"MakerPaymentReceived":              {eventProgress, swap.StageWaitingForMakerPayment},
	"MakerPaymentWaitConfirmStarted":    {eventProgress, swap.StageWaitingForMakerPayment},
	"MakerPaymentValidatedAndConfirmed": {eventProgress, swap.StageValidatingMakerPayment},
	"TakerPaymentSent":                  {eventProgress, swap.StageSendingTakerPayment},
	"TakerPaymentReceived":              {eventProgress, swap.StageSendingTakerPayment},
	"TakerPaymentWaitConfirmStarted":    {eventProgress, swap.StageSendingTakerPayment},
	"TakerPaymentValidatedAndConfirmed": {eventProgress, swap.StageSendingTakerPayment},
	"TakerPaymentSpent":                 {eventProgress, swap.StageWaitingForCompletion},
	"TakerPaymentSpendConfirmStarted":   {eventProgress, swap.StageWaitingForCompletion},
	"TakerPaymentSpendConfirmed":        {eventProgress, swap.StageWaitingForCompletion},
	"MakerPaymentSpent":                 {eventProgress, swap.StageWaitingForCompletion},
	"Finished":                          {kind: eventFinished},

	"StartFailed":                    {kind: eventFailure},
	"NegotiateFailed":                {kind: eventFailure},
	"TakerFeeSendFailed":             {kind: eventFailure},
	"TakerFeeValidateFailed":         {kind: eventFailure},
	"MakerPaymentTransactionFailed":  {kind: eventFailure},
	"MakerPaymentDataSendFailed":     {kind: eventFailure},
	"MakerPaymentValidateFailed":     {kind: eventFailure},
	"MakerPaymentWaitConfirmFailed":  {kind: eventFailure},
	"TakerPaymentTransactionFailed":  {kind: eventFailure},
	"TakerPaymentDataSendFailed":     {kind: eventFailure},
	"TakerPaymentValidateFailed":     {kind: eventFailure},
	"TakerPaymentWaitConfirmFailed":  {kind: eventFailure},
	"TakerPaymentWaitForSpendFailed": {kind: eventFailure},
	"TakerPaymentSpendFailed":        {kind: eventFailure},
	"TakerPaymentSpendConfirmFailed": {kind: eventFailure},
	"MakerPaymentSpendFailed":        {kind: eventFailure},
	"TakerPaymentRefundFailed":       {kind: eventFailure},
	"MakerPaymentRefundFailed":       {kind: eventFailure},

	"TakerPaymentWaitRefundStarted": {kind: eventRefundWait},
	"MakerPaymentWaitRefundStarted": {kind: eventRefundWait},
	"TakerPaymentRefundStarted":     {kind: eventRefundWait},
	"MakerPaymentRefundStarted":     {kind: eventRefundWait},

	"TakerPaymentRefunded":       {kind: eventRefunded},
	"TakerPaymentRefundFinished": {kind: eventRefunded},
	"MakerPaymentRefunded":       {kind: eventRefunded},
	"MakerPaymentRefundFinished": {kind: eventRefunded},
}

// StatusFromEvents folds an mm2 event log into a swap status.
//
// A refund event wins over everything else. A failure only becomes Failed
// once mm2 reports Finished: until then mm2 may still be refunding, so the
// last reached stage is reported. Unrecognized events yield
// swap.ErrUnknownStage.
func StatusFromEvents(events []SwapEvent) (swap.Status, error) {
	stage := swap.StageInitiating
	var failure string
	refunded := false
	finished := false

	for _, ev := range events {
		name := ev.Event.Type
		info, ok := swapEvents[name]
		if !ok {
			return swap.Status{}, fmt.Errorf("%w: mm2 event %q", swap.ErrUnknownStage, name)
		}
		switch info.kind {
		case eventProgress:
			if info.stage > stage {
				stage = info.stage
			}
		case eventFailure:
			if failure == "" {
				failure = failureMessage(name, ev.Event.Data)
			}
		case eventRefunded:
			refunded = true
		case eventFinished:
			finished = true
		}
	}

	switch {
	case refunded:
		return swap.Status{Stage: swap.StageRefunded}, nil
	case finished && failure != "":
		return swap.Status{Stage: swap.StageFailed, Error: failure}, nil
	case finished:
		return swap.Status{Stage: swap.StageCompleted}, nil
	default:
		return swap.Status{Stage: stage}, nil
	}
}

// failureMessage prefers the error text mm2 attaches to failure events.
func failureMessage(event string, data json.RawMessage) string {
	var payload struct {
		Error string `json:"error"`
	}
	if len(data) > 0 && json.Unmarshal(data, &payload) == nil {
		if msg := strings.TrimSpace(payload.Error); msg != "" {
			return fmt.Sprintf("%s: %s", event, msg)
		}
	}
	return event
}
