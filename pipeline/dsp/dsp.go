// Package dsp implements the C8 DSP chain (spec §4.8): a pluggable sequence
// of audio processing nodes (AEC, denoise, AGC, VAD on the send side;
// equalizer/compressor/comfort-noise on the receive side) with per-node
// degrade/bypass/fault semantics so one misbehaving stage never blocks the
// rest of the chain.
package dsp

import "fmt"

// NodeStatus reports a node's health after processing a frame.
type NodeStatus int

const (
	NodeOK NodeStatus = iota
	NodeDegraded
	NodeBypassed
	NodeFatal
)

func (s NodeStatus) String() string {
	switch s {
	case NodeOK:
		return "ok"
	case NodeDegraded:
		return "degraded"
	case NodeBypassed:
		return "bypassed"
	case NodeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Node is one stage of the DSP chain. Process mutates frame in place and
// returns its post-processing status; a Fatal status removes the node from
// future processing until Reset is called (spec §4.8: "a faulted node is
// skipped, not retried, until an explicit reset").
type Node interface {
	Name() string
	Process(frame []int16) NodeStatus
	Reset()
}

// Chain runs an ordered list of nodes over each frame, tracking per-node
// bypass state.
type Chain struct {
	nodes    []Node
	bypassed []bool
}

// NewChain builds a chain from nodes in processing order.
func NewChain(nodes ...Node) *Chain {
	return &Chain{nodes: nodes, bypassed: make([]bool, len(nodes))}
}

// Process runs every non-bypassed node over frame in order, returning the
// per-node statuses observed this call.
func (c *Chain) Process(frame []int16) []NodeStatus {
	statuses := make([]NodeStatus, len(c.nodes))
	for i, n := range c.nodes {
		if c.bypassed[i] {
			statuses[i] = NodeBypassed
			continue
		}
		status := n.Process(frame)
		statuses[i] = status
		if status == NodeFatal {
			c.bypassed[i] = true
		}
	}
	return statuses
}

// ResetNode clears a faulted node's bypass state and reinitializes it by
// name; returns an error if no node with that name is in the chain.
func (c *Chain) ResetNode(name string) error {
	for i, n := range c.nodes {
		if n.Name() == name {
			n.Reset()
			c.bypassed[i] = false
			return nil
		}
	}
	return fmt.Errorf("dsp: no node named %q", name)
}

// Bypassed reports whether the named node is currently bypassed.
func (c *Chain) Bypassed(name string) bool {
	for i, n := range c.nodes {
		if n.Name() == name {
			return c.bypassed[i]
		}
	}
	return false
}
