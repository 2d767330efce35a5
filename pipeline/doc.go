// Package pipeline implements the voice communication pipeline core (spec
// §1): a full-duplex, real-time audio processing graph wiring the frame
// buffer (ring), resampler, codec operator, RTP/SRTP sessions, bandwidth
// estimator, jitter buffer, DSP chain, and transport subpackages into one
// orchestrated lifecycle.
//
// The Orchestrator is the single entry point a host application drives:
// Create a Config, New up an Orchestrator against a transport.Transport,
// Start it, then push captured microphone audio in via WriteCaptureFrame and
// pull decoded playback audio out via ReadPlaybackFrame. Everything else —
// encoding, RTP/SRTP framing, jitter buffering, DSP, and bandwidth
// adaptation — runs on the orchestrator's own goroutines.
package pipeline
