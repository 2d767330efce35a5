// Package rtpsession implements the C4 RTP session contract (spec §4.4): per-SSRC
// sequence/timestamp bookkeeping, payload-type mapping, and RFC 3550 jitter
// tracking, built on github.com/pion/rtp for wire marshal/unmarshal.
package rtpsession

import (
	"fmt"
	"time"

	"github.com/pion/rtp"
)

// Session owns one direction's worth of RTP bookkeeping for a fixed SSRC.
// Send and receive state are tracked separately since a duplex pipeline runs
// both directions concurrently on different threads (spec §5).
type Session struct {
	ssrc        uint32
	payloadType uint8
	clockRate   uint32

	// send side
	sendSeq atomic16
	sendTS  uint32
	packetsSent uint64
	bytesSent   uint64

	// receive side
	recvInit       bool
	baseSeq        uint16
	maxSeq         uint16
	cycles         uint32 // rollover counter, incremented each time seq wraps
	lastRecvTS     uint32
	lastArrival    time.Time
	jitter         float64 // RFC 3550 running jitter estimate, in RTP clock units
	packetsLost    uint64
	packetsRecv    uint64
	bytesRecv      uint64
}

// atomic16 avoids importing sync/atomic for a single-threaded-per-direction
// counter; the processing thread is the sole writer on the send side.
type atomic16 struct{ v uint32 }

func (a *atomic16) next() uint16 {
	a.v = (a.v + 1) & 0xFFFF
	return uint16(a.v)
}

// New creates an RTP session for a fixed SSRC/payload type/clock rate.
// Per spec §3, SSRC is fixed for the session lifetime.
func New(ssrc uint32, payloadType uint8, clockRate uint32) *Session {
	return &Session{ssrc: ssrc, payloadType: payloadType, clockRate: clockRate}
}

func (s *Session) SSRC() uint32 { return s.ssrc }

// SetCodecParams updates the payload type and RTP clock rate used for
// subsequently built/parsed packets, without resetting sequence number or
// timestamp state — used for a runtime codec swap (spec §4.9's set_codec),
// which per spec "applies at frame boundaries" but never tears down the RTP
// session itself.
func (s *Session) SetCodecParams(payloadType uint8, clockRate uint32) {
	s.payloadType = payloadType
	s.clockRate = clockRate
}

// BuildPacket assigns the next sequence number and advances the timestamp by
// samplesPerFrame, producing a complete RTP packet for an encoded payload.
func (s *Session) BuildPacket(payload []byte, marker bool, samplesPerFrame uint32) *rtp.Packet {
	seq := s.sendSeq.next()
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			Marker:         marker,
			PayloadType:    s.payloadType,
			SequenceNumber: seq,
			Timestamp:      s.sendTS,
			SSRC:           s.ssrc,
		},
		Payload: payload,
	}
	s.sendTS += samplesPerFrame
	s.packetsSent++
	s.bytesSent += uint64(len(payload))
	return pkt
}

// AdvanceTimestamp skips the send timestamp forward without emitting a
// packet. Nothing in the pipeline package calls it.
func (s *Session) AdvanceTimestamp(samples uint32) {
	s.sendTS += samples
}

// ParsedPacket is the decoded representation handed to the jitter buffer.
type ParsedPacket struct {
	Payload       []byte
	PayloadType   uint8
	SeqExt        uint32 // extended (unwrapped) sequence number
	Timestamp     uint32
	Marker        bool
	ArrivalTime   time.Time
}

// Parse unmarshals an RTP packet, rejecting malformed headers per spec §4.4
// (V != 2, total length < 12, truncated CSRC/extension), reconstructs the
// extended sequence number, and updates receive-side statistics including
// the RFC 3550 jitter estimate.
func (s *Session) Parse(buf []byte, arrival time.Time) (ParsedPacket, error) {
	if len(buf) < 12 {
		return ParsedPacket{}, fmt.Errorf("rtpsession: packet too short: %d bytes", len(buf))
	}
	if (buf[0]>>6)&0x03 != 2 {
		return ParsedPacket{}, fmt.Errorf("rtpsession: unsupported RTP version")
	}

	var pkt rtp.Packet
	if err := pkt.Unmarshal(buf); err != nil {
		return ParsedPacket{}, fmt.Errorf("rtpsession: unmarshal: %w", err)
	}

	seqExt := s.extendSequence(pkt.SequenceNumber)
	s.updateJitter(pkt.Timestamp, arrival)

	s.packetsRecv++
	s.bytesRecv += uint64(len(pkt.Payload))
	s.lastRecvTS = pkt.Timestamp
	s.lastArrival = arrival

	return ParsedPacket{
		Payload:     pkt.Payload,
		PayloadType: pkt.PayloadType,
		SeqExt:      seqExt,
		Timestamp:   pkt.Timestamp,
		Marker:      pkt.Marker,
		ArrivalTime: arrival,
	}, nil
}

// extendSequence reconstructs a monotonically-increasing 32-bit sequence
// from the wrapping 16-bit wire sequence, per RFC 3550 appendix A.1.
func (s *Session) extendSequence(seq uint16) uint32 {
	if !s.recvInit {
		s.recvInit = true
		s.baseSeq = seq
		s.maxSeq = seq
		return uint32(seq)
	}

	delta := int32(seq) - int32(s.maxSeq)
	switch {
	case delta > 0x8000 && s.cycles > 0:
		// A late packet from before the most recent rollover.
		return (s.cycles-1)<<16 | uint32(seq)
	case delta > 0:
		// Forward progress within the current cycle.
		s.maxSeq = seq
	case delta < 0 && -delta > 0x8000:
		// seq appears to be ahead due to wraparound even though it looks smaller.
		s.cycles++
		s.maxSeq = seq
	default:
		if seq < s.baseSeq {
			s.packetsLost++ // stale/duplicate-looking arrival out of the current cycle
		}
		// A late or duplicate packet keeps its own position in the cycle.
		return s.cycles<<16 | uint32(seq)
	}
	return s.cycles<<16 | uint32(s.maxSeq)
}

// updateJitter applies the RFC 3550 smoothing formula J += (|D| - J) / 16.
func (s *Session) updateJitter(timestamp uint32, arrival time.Time) {
	if s.lastArrival.IsZero() {
		return
	}
	arrivalRTPUnits := float64(arrival.Sub(s.lastArrival)) * float64(s.clockRate) / float64(time.Second)
	d := arrivalRTPUnits - (float64(timestamp) - float64(s.lastRecvTS))
	if d < 0 {
		d = -d
	}
	s.jitter += (d - s.jitter) / 16
}

// JitterMs returns the current smoothed jitter estimate in milliseconds.
func (s *Session) JitterMs() float64 {
	if s.clockRate == 0 {
		return 0
	}
	return s.jitter * 1000 / float64(s.clockRate)
}

// Stats is a point-in-time snapshot of session counters (spec §5: "read under
// a snapshot copy; no cross-counter atomicity required").
type Stats struct {
	PacketsSent, BytesSent         uint64
	PacketsReceived, BytesReceived uint64
	PacketsLost                    uint64
	JitterMs                       float64
}

func (s *Session) Snapshot() Stats {
	return Stats{
		PacketsSent:     s.packetsSent,
		BytesSent:       s.bytesSent,
		PacketsReceived: s.packetsRecv,
		BytesReceived:   s.bytesRecv,
		PacketsLost:     s.packetsLost,
		JitterMs:        s.JitterMs(),
	}
}
