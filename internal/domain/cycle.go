package domain

import "time"

// CycleState is the scheduler state machine value.
type CycleState string

const (
	CycleIdle       CycleState = "idle"
	CycleCollecting CycleState = "collecting"
)

// CycleReport counts what one collection cycle produced.
type CycleReport struct {
	Collected     int `json:"collected"`
	Normalized    int `json:"normalized"`
	Relevant      int `json:"relevant"`
	Selected      int `json:"selected"`
	Forwarded     int `json:"forwarded"`
	ForwardFailed int `json:"forwardFailed"`
}

// CycleStatus is the queryable last-cycle status.
type CycleStatus struct {
	State         CycleState  `json:"state"`
	LastStartedAt time.Time   `json:"lastStartedAt,omitempty"`
	LastCycleAt   time.Time   `json:"lastCycleAt,omitempty"`
	LastSuccessAt time.Time   `json:"lastSuccessAt,omitempty"`
	LastError     string      `json:"lastError,omitempty"`
	LastReport    CycleReport `json:"lastReport"`
	Cycles        int         `json:"cycles"`
	Failures      int         `json:"failures"`
	Skipped       int         `json:"skipped"`
}

// ForwardOutcome is the delivery result of one record relayed downstream.
type ForwardOutcome struct {
	RecordID  string
	RemoteID  string
	Attempts  int
	Delivered bool
	Err       error
}
