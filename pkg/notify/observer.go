package notify

import (
	"time"

	"github.com/orchestra-labs/vesting-batcher/core/vesting"
)

// EventKind identifies a point in the lifecycle of a vesting run.
type EventKind int

const (
	EventRunStarted EventKind = iota
	EventBatchStarted
	EventBatchRetrying
	EventBatchSucceeded
	EventBatchFailed
	EventBatchSizeReduced
	EventWaiting
	EventRunCompleted
)

func (k EventKind) String() string {
	switch k {
	case EventRunStarted:
		return "run_started"
	case EventBatchStarted:
		return "batch_started"
	case EventBatchRetrying:
		return "batch_retrying"
	case EventBatchSucceeded:
		return "batch_succeeded"
	case EventBatchFailed:
		return "batch_failed"
	case EventBatchSizeReduced:
		return "batch_size_reduced"
	case EventWaiting:
		return "waiting"
	case EventRunCompleted:
		return "run_completed"
	default:
		return "unknown"
	}
}

// Event describes one lifecycle point. Only the fields relevant to Kind are set.
type Event struct {
	Kind         EventKind
	Time         time.Time
	RunID        string
	Batch        int
	TotalBatches int
	// BatchSize is the number of records in the batch, or the new size for EventBatchSizeReduced.
	BatchSize     int
	PrevBatchSize int
	Records       int
	Dropped       int
	Code          vesting.StatusCode
	GasPlan       vesting.GasPlan
	Result        *vesting.BatchResult
	Results       []vesting.BatchResult
	Delay         time.Duration
	Err           error
}

// Observer receives advisory lifecycle notifications. Implementations must not block for long
// and must not influence control flow.
type Observer interface {
	Notify(ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev Event)

// Notify implements Observer.
func (f ObserverFunc) Notify(ev Event) {
	f(ev)
}

type nopObserver struct{}

func (nopObserver) Notify(Event) {}

// Nop returns an observer that drops every event.
func Nop() Observer {
	return nopObserver{}
}

type multiObserver []Observer

func (m multiObserver) Notify(ev Event) {
	for _, o := range m {
		o.Notify(ev)
	}
}

// Multi fans events out to every non-nil observer in order.
func Multi(observers ...Observer) Observer {
	var out multiObserver
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	switch len(out) {
	case 0:
		return Nop()
	case 1:
		return out[0]
	}
	return out
}
