package driver

import "time"

// PhaseStatus reports whether a phase started or finished.
type PhaseStatus int

const (
	// PhaseStart indicates that a driver phase has begun.
	PhaseStart PhaseStatus = iota
	PhaseEnd
	// PhaseDone and PhaseFailed close a target; Name is empty.
	PhaseDone
	PhaseFailed
)

// PhaseEvent describes a phase boundary of one target.
type PhaseEvent struct {
	Target  string
	Name    string
	Status  PhaseStatus
	Elapsed time.Duration
}

// PhaseObserver receives phase events emitted during Elaborate. It may be
// called from several goroutines when targets run in parallel.
type PhaseObserver func(PhaseEvent)
