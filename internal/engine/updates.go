package engine

import (
	"fmt"

	"davsync/internal/dav"
)

// Log levels attached to sink log lines.
const (
	LogInfo    = "INFO"
	LogWarning = "WARNING"
	LogError   = "ERROR"
)

// Operation phase enumeration
type Phase int

const (
	PhaseConnect Phase = iota
	PhaseEvents
	PhaseContacts
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseConnect:
		return "connect"
	case PhaseEvents:
		return "events"
	case PhaseContacts:
		return "contacts"
	case PhaseDone:
		return "done"
	default:
		return ""
	}
}

func kindPhase(kind dav.Kind) Phase {
	if kind == dav.KindContact {
		return PhaseContacts
	}
	return PhaseEvents
}

// ProgressUpdate is one progress event during a run.
//
// Percent is the engine's per-kind fractional progress, clamped to [0, 99]
// until the kind finishes, at which point a final update reports 100.
type ProgressUpdate struct {
	Phase     Phase
	Kind      dav.Kind
	Processed int // units (collections + items) completed so far
	Total     int // total discovered units for this kind
	Skipped   int // items skipped so far for this kind
	Percent   int
	Message   string
}

// Sink receives progress updates and log lines during a run.
// Ownership of each log line transfers to the sink immediately; the engine
// keeps no history.
type Sink interface {
	Progress(update ProgressUpdate)
	Log(level, message string)
}

// NopSink discards everything. Used when a caller has no reporting surface.
type NopSink struct{}

func (NopSink) Progress(ProgressUpdate) {}
func (NopSink) Log(string, string)      {}

func connectUpdate(endpoint string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseConnect,
		Message: fmt.Sprintf("Connecting to %s...", endpoint),
	}
}

func unitUpdate(kind dav.Kind, processed, total, skipped, percent int) ProgressUpdate {
	return ProgressUpdate{
		Phase:     kindPhase(kind),
		Kind:      kind,
		Processed: processed,
		Total:     total,
		Skipped:   skipped,
		Percent:   percent,
		Message:   fmt.Sprintf("[%s] %d/%d processed, %d skipped", kind, processed, total, skipped),
	}
}

func kindDoneUpdate(kind dav.Kind, processed, total, skipped int) ProgressUpdate {
	return ProgressUpdate{
		Phase:     kindPhase(kind),
		Kind:      kind,
		Processed: processed,
		Total:     total,
		Skipped:   skipped,
		Percent:   100,
		Message:   fmt.Sprintf("Finished %s: %d/%d processed, %d skipped", kind, processed, total, skipped),
	}
}

func runDoneUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   PhaseDone,
		Percent: 100,
		Message: "Migration finished",
	}
}
