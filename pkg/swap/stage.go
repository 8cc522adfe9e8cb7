package swap

import (
	"fmt"
)

// Stage is one discrete phase of swap execution as reported by the engine.
type Stage int

const (
	StageInitiating Stage = iota
	StageNegotiating
	StageSendingFee
	StageWaitingForMakerPayment
	StageValidatingMakerPayment
	StageSendingTakerPayment
	StageWaitingForCompletion
	StageCompleted
	StageFailed
	StageRefunded
)

var stageNames = map[Stage]string{
	StageInitiating:             "Initiating",
	StageNegotiating:            "Negotiating",
	StageSendingFee:             "SendingFee",
	StageWaitingForMakerPayment: "WaitingForMakerPayment",
	StageValidatingMakerPayment: "ValidatingMakerPayment",
	StageSendingTakerPayment:    "SendingTakerPayment",
	StageWaitingForCompletion:   "WaitingForCompletion",
	StageCompleted:              "Completed",
	StageFailed:                 "Failed",
	StageRefunded:               "Refunded",
}

var stageDisplayNames = map[Stage]string{
	StageInitiating:             "Initiating Swap",
	StageNegotiating:            "Negotiating",
	StageSendingFee:             "Sending Fee",
	StageWaitingForMakerPayment: "Waiting for Payment",
	StageValidatingMakerPayment: "Validating Payment",
	StageSendingTakerPayment:    "Sending Payment",
	StageWaitingForCompletion:   "Completing Swap",
	StageCompleted:              "Completed",
	StageFailed:                 "Failed",
	StageRefunded:               "Refunded",
}

var stagePercents = map[Stage]int{
	StageInitiating:             0,
	StageNegotiating:            10,
	StageSendingFee:             20,
	StageWaitingForMakerPayment: 40,
	StageValidatingMakerPayment: 60,
	StageSendingTakerPayment:    75,
	StageWaitingForCompletion:   90,
	StageCompleted:              100,
	StageFailed:                 0,
	StageRefunded:               0,
}

// Stages lists every stage in protocol order, terminal stages last.
func Stages() []Stage {
	return []Stage{
		StageInitiating,
		StageNegotiating,
		StageSendingFee,
		StageWaitingForMakerPayment,
		StageValidatingMakerPayment,
		StageSendingTakerPayment,
		StageWaitingForCompletion,
		StageCompleted,
		StageFailed,
		StageRefunded,
	}
}

// ParseStage maps a canonical stage identifier to a Stage. Unrecognized
// identifiers yield ErrUnknownStage so protocol drift is never masked.
func ParseStage(raw string) (Stage, error) {
	for stage, name := range stageNames {
		if name == raw {
			return stage, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStage, raw)
}

// String returns the canonical identifier of the stage.
func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// DisplayName returns a human readable label for the stage.
func (s Stage) DisplayName() string {
	if name, ok := stageDisplayNames[s]; ok {
		return name
	}
	return s.String()
}

// Percent returns the progress indicator for the stage. Failed and Refunded
// map to 0: they carry no partial credit.
func (s Stage) Percent() int {
	return stagePercents[s]
}

// IsTerminal reports whether no further transition can leave the stage.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageFailed || s == StageRefunded
}

// IsSuccessful reports whether the swap finished with the target asset delivered.
func (s Stage) IsSuccessful() bool {
	return s == StageCompleted
}

// MarshalText implements encoding.TextMarshaler.
func (s Stage) MarshalText() ([]byte, error) {
	name, ok := stageNames[s]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStage, int(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Stage) UnmarshalText(text []byte) error {
	stage, err := ParseStage(string(text))
	if err != nil {
		return err
	}
	*s = stage
	return nil
}
