// Package jitter implements the C7 jitter buffer and its PLC-driving state
// machine (spec §4.7): packets are inserted keyed by extended RTP sequence
// number, and Pop() advances a playout clock that adapts its target delay to
// observed network jitter, issuing Play/Conceal/Skip/Stretch/Silence
// directives to the caller.
package jitter

import (
	"sort"
	"time"
)

// Directive tells the caller what to do for the current playout tick.
type Directive int

const (
	DirectivePlay Directive = iota
	DirectiveConceal
	DirectiveSkip
	DirectiveStretch
	DirectiveSilence
)

func (d Directive) String() string {
	switch d {
	case DirectivePlay:
		return "play"
	case DirectiveConceal:
		return "conceal"
	case DirectiveSkip:
		return "skip"
	case DirectiveStretch:
		return "stretch"
	case DirectiveSilence:
		return "silence"
	default:
		return "unknown"
	}
}

// State is the buffer's playout lifecycle (spec §4.7).
type State int

const (
	StateEmpty State = iota
	StatePrebuffering
	StatePlaying
	StateConcealing
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePrebuffering:
		return "prebuffering"
	case StatePlaying:
		return "playing"
	case StateConcealing:
		return "concealing"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Packet is one jitter-buffer entry; Payload is opaque to this package (the
// caller decodes/conceals it).
type Packet struct {
	SeqExt    uint32
	Timestamp uint32
	Payload   []byte
	Received  time.Time
}

// Config parameterizes delay adaptation and concealment limits.
type Config struct {
	FrameDuration     time.Duration
	InitialDelay      time.Duration
	MinDelay          time.Duration
	MaxDelay          time.Duration
	PLCMaxConsecutive int // max consecutive concealed frames before declaring an outage
}

// Buffer is a bounded ordered store of not-yet-played packets plus the
// playout-clock state machine that drains them.
type Buffer struct {
	cfg Config

	packets map[uint32]Packet // keyed by extended sequence
	nextSeq uint32
	haveNext bool

	targetDelay time.Duration
	state       State

	consecutiveConcealed int
	totalConcealed        uint64
	totalPlayed            uint64
	totalSkipped           uint64
}

// New creates a jitter buffer with the given configuration.
func New(cfg Config) *Buffer {
	if cfg.InitialDelay == 0 {
		cfg.InitialDelay = 60 * time.Millisecond
	}
	return &Buffer{
		cfg:         cfg,
		packets:     make(map[uint32]Packet),
		targetDelay: cfg.InitialDelay,
		state:       StateEmpty,
	}
}

// Insert adds a received packet. Packets at or before the last popped
// sequence are dropped as stale (spec §4.7: "late arrivals behind the
// playout point are discarded, not re-ordered back in").
func (b *Buffer) Insert(p Packet) {
	if b.haveNext && seqLess(p.SeqExt, b.nextSeq) {
		return
	}
	b.packets[p.SeqExt] = p

	if b.state == StateEmpty {
		b.state = StatePrebuffering
	}
}

// Depth returns the number of buffered packets (diagnostic/stats use).
func (b *Buffer) Depth() int { return len(b.packets) }

// State returns the current playout state.
func (b *Buffer) State() State { return b.state }

// bufferedSpan estimates how much playable audio (by packet count ×
// frame duration) sits ahead of the playout point.
func (b *Buffer) bufferedSpan() time.Duration {
	return time.Duration(len(b.packets)) * b.cfg.FrameDuration
}

// Pop advances the playout clock by one frame tick, returning the packet to
// play (if any) and the directive the caller should follow.
func (b *Buffer) Pop() (Packet, Directive) {
	switch b.state {
	case StateEmpty:
		return Packet{}, DirectiveConceal

	case StatePrebuffering:
		if b.bufferedSpan() < b.targetDelay {
			return Packet{}, DirectiveConceal
		}
		b.state = StatePlaying
		fallthrough

	case StatePlaying, StateConcealing, StateDraining:
		// Draining arrives here too: concealing reverts to playing on the
		// next successful pop (spec §4.7), and popPlaying's found-packet
		// branch is exactly that reversion — it resets consecutiveConcealed
		// and sets state back to StatePlaying.
		return b.popPlaying()
	}
	return Packet{}, DirectiveConceal
}

func (b *Buffer) popPlaying() (Packet, Directive) {
	if !b.haveNext {
		seq, ok := b.lowestSeq()
		if !ok {
			return b.conceal()
		}
		b.nextSeq = seq
		b.haveNext = true
	}

	if pkt, ok := b.packets[b.nextSeq]; ok {
		delete(b.packets, b.nextSeq)
		b.nextSeq++
		b.consecutiveConcealed = 0
		b.totalPlayed++
		b.state = StatePlaying
		b.adaptDelay()
		return pkt, DirectivePlay
	}

	// The expected packet hasn't arrived. If a later one already has and the
	// buffer is running deep, skip ahead instead of concealing forever.
	if next, ok := b.lowestSeqAtOrAfter(b.nextSeq); ok && b.bufferedSpan() > b.targetDelay*2 {
		b.totalSkipped += uint64(next - b.nextSeq)
		b.nextSeq = next
		b.state = StatePlaying
		pkt := b.packets[next]
		delete(b.packets, next)
		b.nextSeq++
		b.totalPlayed++
		return pkt, DirectiveSkip
	}

	return b.conceal()
}

func (b *Buffer) conceal() (Packet, Directive) {
	b.consecutiveConcealed++
	b.totalConcealed++
	b.nextSeq++
	if b.consecutiveConcealed > b.cfg.PLCMaxConsecutive {
		// Beyond plc_max_consecutive the caller should stop synthesizing PLC
		// audio and instead fade to silence (spec §4.7); Stretch is reserved
		// for buffer-underrun time-stretch, which this package never emits.
		b.state = StateDraining
		return Packet{}, DirectiveSilence
	}
	b.state = StateConcealing
	return Packet{}, DirectiveConceal
}

// adaptDelay nudges the target delay toward the observed buffer occupancy,
// a simple proportional controller bounded by [MinDelay, MaxDelay] (spec
// §4.7: "target delay tracks jitter without unbounded growth").
func (b *Buffer) adaptDelay() {
	observed := b.bufferedSpan()
	delta := (observed - b.targetDelay) / 16
	b.targetDelay += delta
	if b.targetDelay < b.cfg.MinDelay {
		b.targetDelay = b.cfg.MinDelay
	}
	if b.targetDelay > b.cfg.MaxDelay {
		b.targetDelay = b.cfg.MaxDelay
	}
}

func (b *Buffer) lowestSeq() (uint32, bool) {
	if len(b.packets) == 0 {
		return 0, false
	}
	seqs := make([]uint32, 0, len(b.packets))
	for s := range b.packets {
		seqs = append(seqs, s)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqLess(seqs[i], seqs[j]) })
	return seqs[0], true
}

func (b *Buffer) lowestSeqAtOrAfter(min uint32) (uint32, bool) {
	best := uint32(0)
	found := false
	for s := range b.packets {
		if !seqLess(s, min) && (!found || seqLess(s, best)) {
			best = s
			found = true
		}
	}
	return best, found
}

// seqLess compares extended sequence numbers; since these are already
// unwrapped 32-bit values (rtpsession.Session.extendSequence) simple integer
// comparison is correct without additional wraparound handling.
func seqLess(a, b uint32) bool { return a < b }

// TargetDelay returns the current adapted playout delay.
func (b *Buffer) TargetDelay() time.Duration { return b.targetDelay }

// Counters is a stats snapshot (spec §4.10 feeds these into MOS/Id).
type Counters struct {
	Played, Concealed, Skipped uint64
	TargetDelay                time.Duration
	Depth                      int
}

func (b *Buffer) Snapshot() Counters {
	return Counters{
		Played:      b.totalPlayed,
		Concealed:   b.totalConcealed,
		Skipped:     b.totalSkipped,
		TargetDelay: b.targetDelay,
		Depth:       len(b.packets),
	}
}
