package pipeline

import "go.uber.org/zap"

// Event identifies the category of an asynchronous pipeline notification
// (spec §4.9's callback surface: state changes, stats ticks, DSP node
// faults, bitrate changes, and per-packet encoded data).
type Event int

const (
	EventStateChanged Event = iota
	EventStatsUpdated
	EventDSPNodeFault
	EventBitrateChanged
	EventFatalError
	EventEncodedData
)

func (e Event) String() string {
	switch e {
	case EventStateChanged:
		return "state_changed"
	case EventStatsUpdated:
		return "stats_updated"
	case EventDSPNodeFault:
		return "dsp_node_fault"
	case EventBitrateChanged:
		return "bitrate_changed"
	case EventFatalError:
		return "fatal_error"
	case EventEncodedData:
		return "encoded_data"
	default:
		return "unknown"
	}
}

// EncodedFrame is EventEncodedData's Data payload: one produced packet's
// payload, pre-SRTP, on the send thread (spec §4.9/§6's on_encoded_data(bytes,
// size, timestamp)).
type EncodedFrame struct {
	Payload      []byte
	Size         int
	TimestampRTP uint32
}

// BitrateChange is EventBitrateChanged's Data payload (spec §4.6's
// on_bwe_change(old_bps, new_bps, quality_tier)).
type BitrateChange struct {
	OldBPS int
	NewBPS int
	Tier   string
}

// Notification is one queued callback payload; Data's concrete type depends
// on Event (State for EventStateChanged, stats.Snapshot for
// EventStatsUpdated, etc.) and is documented per call site.
type Notification struct {
	Event Event
	Data  interface{}
}

// EventSink receives pipeline notifications. Handle runs on the dispatcher's
// own goroutine, never on the send/receive processing threads, so a slow
// handler cannot stall audio I/O (spec §4.9: "callbacks must never block the
// media threads").
type EventSink interface {
	Handle(n Notification)
}

// EventSinkFunc adapts a plain function to EventSink.
type EventSinkFunc func(Notification)

func (f EventSinkFunc) Handle(n Notification) { f(n) }

// dispatcher is a bounded-queue fan-out from the orchestrator's internal
// state to registered sinks. When the queue is full, the oldest
// notification is dropped (spec §4.9's "never block producers; drop oldest
// under sustained backpressure") and a running count of drops is logged.
type dispatcher struct {
	queue   chan Notification
	sinks   []EventSink
	dropped uint64
	log     *zap.Logger
	done    chan struct{}
}

const defaultDispatchQueueDepth = 256

func newDispatcher(log *zap.Logger) *dispatcher {
	return &dispatcher{
		queue: make(chan Notification, defaultDispatchQueueDepth),
		log:   log,
		done:  make(chan struct{}),
	}
}

func (d *dispatcher) register(sink EventSink) {
	d.sinks = append(d.sinks, sink)
}

func (d *dispatcher) run() {
	for {
		select {
		case n, ok := <-d.queue:
			if !ok {
				return
			}
			for _, s := range d.sinks {
				s.Handle(n)
			}
		case <-d.done:
			return
		}
	}
}

func (d *dispatcher) stop() {
	select {
	case <-d.done:
	default:
		close(d.done)
	}
}

// emit enqueues a notification, dropping the oldest queued item rather than
// blocking if the queue is full.
func (d *dispatcher) emit(n Notification) {
	select {
	case d.queue <- n:
	default:
		select {
		case <-d.queue:
			d.dropped++
			d.log.Warn("dispatcher queue full, dropped oldest notification", zap.Uint64("total_dropped", d.dropped))
		default:
		}
		select {
		case d.queue <- n:
		default:
		}
	}
}
