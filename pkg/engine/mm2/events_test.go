package mm2

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapflow/pkg/swap"
)

func events(t *testing.T, raw string) []SwapEvent {
	t.Helper()
	var out []SwapEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func event(types ...string) []SwapEvent {
	out := make([]SwapEvent, len(types))
	for i, typ := range types {
		out[i].Event.Type = typ
	}
	return out
}

func TestStatusFromEvents(t *testing.T) {
	tests := []struct {
		name   string
		events []SwapEvent
		want   swap.Status
	}{
		{"no events yet", nil, swap.Status{Stage: swap.StageInitiating}},
		{"started", event("Started"), swap.Status{Stage: swap.StageInitiating}},
		{"negotiated", event("Started", "Negotiated"), swap.Status{Stage: swap.StageNegotiating}},
		{"waiting for maker", event("Started", "Negotiated", "TakerFeeSent", "MakerPaymentReceived", "MakerPaymentWaitConfirmStarted"),
			swap.Status{Stage: swap.StageWaitingForMakerPayment}},
		{"maker validated", event("Started", "Negotiated", "TakerFeeSent", "MakerPaymentReceived", "MakerPaymentValidatedAndConfirmed"),
			swap.Status{Stage: swap.StageValidatingMakerPayment}},
		{"taker paid", event("Started", "Negotiated", "TakerFeeSent", "MakerPaymentReceived", "MakerPaymentValidatedAndConfirmed", "TakerPaymentSent"),
			swap.Status{Stage: swap.StageSendingTakerPayment}},
		{"spent", event("Started", "Negotiated", "TakerFeeSent", "MakerPaymentReceived", "MakerPaymentValidatedAndConfirmed", "TakerPaymentSent", "TakerPaymentSpent", "MakerPaymentSpent"),
			swap.Status{Stage: swap.StageWaitingForCompletion}},
		{"finished", event("Started", "Negotiated", "TakerFeeSent", "MakerPaymentReceived", "MakerPaymentValidatedAndConfirmed", "TakerPaymentSent", "TakerPaymentSpent", "MakerPaymentSpent", "Finished"),
			swap.Status{Stage: swap.StageCompleted}},
		{"failure before finished keeps stage", event("Started", "Negotiated", "TakerFeeSendFailed"),
			swap.Status{Stage: swap.StageNegotiating}},
		{"failure then finished", event("Started", "Negotiated", "TakerFeeSendFailed", "Finished"),
			swap.Status{Stage: swap.StageFailed, Error: "TakerFeeSendFailed"}},
		{"refund in progress", event("Started", "Negotiated", "TakerFeeSent", "MakerPaymentReceived", "MakerPaymentValidatedAndConfirmed", "TakerPaymentSent", "TakerPaymentWaitForSpendFailed", "TakerPaymentWaitRefundStarted"),
			swap.Status{Stage: swap.StageSendingTakerPayment}},
		{"refunded", event("Started", "Negotiated", "TakerFeeSent", "MakerPaymentReceived", "MakerPaymentValidatedAndConfirmed", "TakerPaymentSent", "TakerPaymentWaitForSpendFailed", "TakerPaymentWaitRefundStarted", "TakerPaymentRefunded", "Finished"),
			swap.Status{Stage: swap.StageRefunded}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := StatusFromEvents(tt.events)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusFromEventsFailureMessage(t *testing.T) {
	evs := events(t, `[
		{"timestamp":1,"event":{"type":"Started","data":{}}},
		{"timestamp":2,"event":{"type":"NegotiateFailed","data":{"error":"counterparty timeout"}}},
		{"timestamp":3,"event":{"type":"Finished"}}
	]`)
	got, err := StatusFromEvents(evs)
	require.NoError(t, err)
	assert.Equal(t, swap.StageFailed, got.Stage)
	assert.Equal(t, "NegotiateFailed: counterparty timeout", got.Error)
}

func TestStatusFromEventsUnknownEvent(t *testing.T) {
	_, err := StatusFromEvents(event("Started", "MakerPaymentTeleported"))
	assert.ErrorIs(t, err, swap.ErrUnknownStage)
	assert.Contains(t, err.Error(), "MakerPaymentTeleported")
}

func TestSwapInfoEventTypes(t *testing.T) {
	info := SwapInfo{Events: event("Started", "Negotiated")}
	assert.Equal(t, []string{"Started", "Negotiated"}, info.EventTypes())
}
