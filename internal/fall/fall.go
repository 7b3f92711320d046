// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fall

import (
	"math"

	"github.com/relabs-tech/motion_engine/internal/imu"
)

// State of the fall detector.
type State int

const (
	Armed State = iota
	Pending
	Detected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Detected:
		return "detected"
	default:
		return "armed"
	}
}

const (
	impactThreshold = 4.0 // g, on |x|+|y| and as ceiling on |z|
	stillXY         = 0.25
	stillZ          = 0.5
	stillSamples    = 7
	settleSeconds   = 1
)

// Detector recognizes an impact followed by stillness. Once a fall is
// detected the detector stays latched until Init.
type Detector struct {
	state        State
	settle       int
	settleLength int
	still        int
}

// New returns a detector whose post-impact settle delay is one second of
// samples at rateHz.
func New(rateHz int) *Detector {
	d := &Detector{settleLength: settleSeconds * rateHz}
	d.Init()
	return d
}

// Init re-arms the detector and clears a latched fall.
func (d *Detector) Init() {
	d.state = Armed
	d.settle = 0
	d.still = 0
}

// State returns the current state.
func (d *Detector) State() State {
	return d.state
}

// Process feeds one high-passed sample and reports whether a fall is
// asserted.
func (d *Detector) Process(s imu.Sample) bool {
	switch d.state {
	case Armed:
		if math.Abs(s.X)+math.Abs(s.Y) > impactThreshold && math.Abs(s.Z) < impactThreshold {
			d.state = Pending
			d.settle = d.settleLength
			d.still = 0
		}

	case Pending:
		if d.settle > 0 {
			d.settle--
			break
		}
		if math.Abs(s.X) < stillXY && math.Abs(s.Y) < stillXY && math.Abs(s.Z) < stillZ {
			d.still++
			if d.still >= stillSamples {
				d.state = Detected
			}
		} else {
			d.state = Armed
			d.still = 0
		}
	}

	return d.state == Detected
}
