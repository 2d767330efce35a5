// Package bwe implements the C6 bandwidth estimator (spec §4.6): an
// additive-increase/multiplicative-decrease controller driven by RTCP
// receiver-report feedback, deliberately hand-rolled rather than reused
// from github.com/pion/interceptor's GCC implementation — see DESIGN.md:
// GCC's delay-gradient control law doesn't match the exact loss-threshold
// AIMD transitions spec §4.6 specifies, and the spec has no delay-based
// signal to feed it (no REMB/transport-cc wiring in scope here).
package bwe

import "time"

// Tier classifies the current estimate for UI/logging purposes (spec §4.6
// table 2). It is derived from the feedback event's loss/RTT/jitter, not
// from where the bitrate estimate sits in its configured range.
type Tier int

const (
	TierBad Tier = iota
	TierPoor
	TierFair
	TierGood
	TierExcellent
)

func (t Tier) String() string {
	switch t {
	case TierBad:
		return "bad"
	case TierPoor:
		return "poor"
	case TierFair:
		return "fair"
	case TierGood:
		return "good"
	case TierExcellent:
		return "excellent"
	default:
		return "unknown"
	}
}

// tierFor classifies call quality per spec §4.6's table: Excellent requires
// loss<1%, RTT<50ms, jitter<20ms; Good loss<3%/RTT<100ms/jitter<40ms; Fair
// loss<10%/RTT<200ms/jitter<80ms; Poor loss<20%/RTT<400ms; anything worse is
// Bad. This classification feeds UX only — it never drives the AIMD law.
func tierFor(lossFraction, rttMs, jitterMs float64) Tier {
	switch {
	case lossFraction < 0.01 && rttMs < 50 && jitterMs < 20:
		return TierExcellent
	case lossFraction < 0.03 && rttMs < 100 && jitterMs < 40:
		return TierGood
	case lossFraction < 0.10 && rttMs < 200 && jitterMs < 80:
		return TierFair
	case lossFraction < 0.20 && rttMs < 400:
		return TierPoor
	default:
		return TierBad
	}
}

// Config parameterizes the estimator per spec §4.6's named constants.
type Config struct {
	MinBitrateBPS         int
	MaxBitrateBPS         int
	InitialBitrateBPS     int
	HoldTime              time.Duration // minimum time between evaluations of the decision rule
	LossThresholdDecrease float64       // loss fraction above which we decrease
	DecreaseFactor        float64       // multiplicative decrease factor
	LossThresholdIncrease float64       // loss fraction below which we may increase
	IncreaseRateBPSPerSec float64       // additive increase rate
	RTTThresholdMs        float64       // RTT above which we decrease, regardless of loss
	FilterAlpha           float64       // first-order smoothing applied to current <- target
}

// DefaultConfig returns the constants named in spec §4.6.
func DefaultConfig() Config {
	return Config{
		MinBitrateBPS:         8000,
		MaxBitrateBPS:         128000,
		InitialBitrateBPS:     64000,
		HoldTime:              time.Second,
		LossThresholdDecrease: 0.10,
		DecreaseFactor:        0.80,
		LossThresholdIncrease: 0.02,
		IncreaseRateBPSPerSec: 4000,
		RTTThresholdMs:        400,
		FilterAlpha:           0.2,
	}
}

// Feedback is one reporting interval's worth of input to the estimator,
// sourced from an ingested RTCP receiver report (spec §4.6: "packets_sent,
// packets_lost, rtt_ms, jitter_ms").
type Feedback struct {
	PacketsSent uint64
	PacketsLost uint64
	RTTMs       float64
	JitterMs    float64
}

// Estimator is a single-threaded AIMD controller; the pipeline orchestrator
// is its sole caller, invoked once per received RTCP receiver report (spec
// §4.6: "updates are event-driven off RR arrival, not polled").
type Estimator struct {
	cfg Config

	target       float64 // AIMD decision output, before smoothing
	current      float64 // current<-target through a first-order filter (α)
	lastDecrease time.Time
	lastUpdate   time.Time
	lastTier     Tier
	onChange     func(oldBPS, newBPS int, tier Tier)
}

// New creates an estimator, initializing target and current to
// cfg.InitialBitrateBPS.
func New(cfg Config) *Estimator {
	return &Estimator{
		cfg:      cfg,
		target:   float64(cfg.InitialBitrateBPS),
		current:  float64(cfg.InitialBitrateBPS),
		lastTier: TierExcellent,
	}
}

// OnBitrateChange registers a callback fired whenever Update moves the
// smoothed estimate to a new integer bps value, carrying both the prior and
// new value plus the quality tier (spec §4.6's on_bwe_change(old_bps,
// new_bps, quality_tier)).
func (e *Estimator) OnBitrateChange(fn func(oldBPS, newBPS int, tier Tier)) {
	e.onChange = fn
}

// Update folds in one feedback event at time now, applying the AIMD
// decision rule to target and then smoothing current toward target with
// FilterAlpha, returning the new smoothed bitrate estimate. An event that
// arrives less than HoldTime after the last evaluated one only refreshes
// Tier; the estimate is returned unchanged.
func (e *Estimator) Update(now time.Time, fb Feedback) int {
	lossFraction := 0.0
	if fb.PacketsSent > 0 {
		lossFraction = float64(fb.PacketsLost) / float64(fb.PacketsSent)
	}
	if lossFraction < 0 {
		lossFraction = 0
	}
	if lossFraction > 1 {
		lossFraction = 1
	}

	tier := tierFor(lossFraction, fb.RTTMs, fb.JitterMs)
	e.lastTier = tier
	if !e.lastUpdate.IsZero() && now.Sub(e.lastUpdate) < e.cfg.HoldTime {
		return int(e.current)
	}

	switch {
	case lossFraction > e.cfg.LossThresholdDecrease || fb.RTTMs > e.cfg.RTTThresholdMs:
		if e.lastDecrease.IsZero() || now.Sub(e.lastDecrease) >= e.cfg.HoldTime {
			e.target *= e.cfg.DecreaseFactor
			e.lastDecrease = now
		}
	case lossFraction < e.cfg.LossThresholdIncrease:
		if !e.lastUpdate.IsZero() {
			elapsed := now.Sub(e.lastUpdate).Seconds()
			if elapsed > 0 {
				e.target += e.cfg.IncreaseRateBPSPerSec * elapsed
			}
		}
	}
	// between the two thresholds, and RTT within bounds: hold steady

	e.target = clamp(e.target, float64(e.cfg.MinBitrateBPS), float64(e.cfg.MaxBitrateBPS))

	prevBPS := int(e.current)
	e.current += e.cfg.FilterAlpha * (e.target - e.current)
	e.current = clamp(e.current, float64(e.cfg.MinBitrateBPS), float64(e.cfg.MaxBitrateBPS))
	e.lastUpdate = now

	newBPS := int(e.current)
	if newBPS != prevBPS && e.onChange != nil {
		e.onChange(prevBPS, newBPS, tier)
	}
	return newBPS
}

// BitrateBPS returns the current smoothed estimate without applying a new sample.
func (e *Estimator) BitrateBPS() int { return int(e.current) }

// Tier classifies the most recent feedback event.
func (e *Estimator) Tier() Tier { return e.lastTier }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
