// Package ring implements the frame buffer contract (spec §4.1): a
// single-producer/single-consumer lock-free ring of int16 PCM samples with
// acquire/release ordering on the head/tail indices.
package ring

import "sync/atomic"

// OverflowPolicy controls what Write does when the ring lacks capacity.
type OverflowPolicy int

const (
	// OverflowTruncate is the real-time producer policy: writes beyond
	// capacity are dropped, available_write() bounds the caller instead.
	OverflowTruncate OverflowPolicy = iota
	// OverflowBlock is the file-driven producer policy: Write blocks the
	// caller until capacity frees. Never used from an audio callback thread.
	OverflowBlock
)

// Ring is a fixed-capacity SPSC ring buffer of int16 samples.
//
// head is advanced only by the consumer, tail only by the producer. Both are
// atomics so that a reader observes all writes published before the matching
// tail update (release on write, acquire on read), with no locks.
type Ring struct {
	buf      []int16
	capacity uint64 // power of two
	mask     uint64
	head     atomic.Uint64 // next index to read
	tail     atomic.Uint64 // next index to write
	policy   OverflowPolicy

	notifyWrite chan struct{} // used only by OverflowBlock producers
}

// New creates a ring sized to hold at least capacitySamples samples,
// rounded up to the next power of two for cheap masking.
func New(capacitySamples int, policy OverflowPolicy) *Ring {
	if capacitySamples < 1 {
		capacitySamples = 1
	}
	cap := nextPowerOfTwo(uint64(capacitySamples))
	r := &Ring{
		buf:      make([]int16, cap),
		capacity: cap,
		mask:     cap - 1,
		policy:   policy,
	}
	if policy == OverflowBlock {
		r.notifyWrite = make(chan struct{}, 1)
	}
	return r
}

func nextPowerOfTwo(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	v++
	return v
}

// AvailableRead reports how many samples can currently be read.
func (r *Ring) AvailableRead() int {
	tail := r.tail.Load()
	head := r.head.Load()
	return int(tail - head)
}

// AvailableWrite reports how many samples can currently be written without
// overflowing capacity.
func (r *Ring) AvailableWrite() int {
	return int(r.capacity) - r.AvailableRead()
}

// Write copies samples into the ring, returning the number actually written.
// Under OverflowTruncate it truncates at capacity; under OverflowBlock it
// blocks until enough space is available.
func (r *Ring) Write(samples []int16) int {
	if len(samples) == 0 {
		return 0
	}
	if r.policy == OverflowBlock {
		return r.writeBlocking(samples)
	}
	return r.writeSamples(samples)
}

func (r *Ring) writeSamples(samples []int16) int {
	avail := r.AvailableWrite()
	n := len(samples)
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return 0
	}
	tail := r.tail.Load()
	for i := 0; i < n; i++ {
		r.buf[(tail+uint64(i))&r.mask] = samples[i]
	}
	r.tail.Store(tail + uint64(n)) // release: publishes the writes above
	r.signalWrite()
	return n
}

func (r *Ring) writeBlocking(samples []int16) int {
	written := 0
	for written < len(samples) {
		n := r.writeSamples(samples[written:])
		written += n
		if written < len(samples) {
			<-r.consumerSignal()
		}
	}
	return written
}

func (r *Ring) signalWrite() {
	if r.notifyWrite == nil {
		return
	}
	select {
	case r.notifyWrite <- struct{}{}:
	default:
	}
}

// consumerSignal is a placeholder channel wait used only by the blocking
// writer; Read always signals it so a blocked Write can retry.
func (r *Ring) consumerSignal() <-chan struct{} {
	return r.notifyWrite
}

// Read copies up to len(dst) samples out of the ring, returning the number
// actually read. Fewer than len(dst) indicates underrun; the caller (per
// spec §5) is responsible for substituting a zero frame and counting it.
func (r *Ring) Read(dst []int16) int {
	avail := r.AvailableRead()
	n := len(dst)
	if n > avail {
		n = avail
	}
	if n <= 0 {
		return 0
	}
	head := r.head.Load() // acquire: pairs with tail.Store above
	for i := 0; i < n; i++ {
		dst[i] = r.buf[(head+uint64(i))&r.mask]
	}
	r.head.Store(head + uint64(n))
	r.signalWrite()
	return n
}

// Reset drops all buffered samples, for use only while no reader/writer is
// concurrently active (e.g. during stop()).
func (r *Ring) Reset() {
	r.head.Store(0)
	r.tail.Store(0)
}

// Capacity returns the ring's sample capacity.
func (r *Ring) Capacity() int { return int(r.capacity) }
