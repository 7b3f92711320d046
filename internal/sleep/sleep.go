// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sleep estimates a coarse sleep stage from the rate of small
// movements over one-minute windows.
package sleep

import (
	"github.com/relabs-tech/motion_engine/internal/filter"
	"github.com/relabs-tech/motion_engine/internal/imu"
	"github.com/relabs-tech/motion_engine/internal/peak"
)

// Stage is the sleep stage code reported by the classifier.
type Stage int32

const (
	Wake Stage = iota
	Stage1
	REM
	Stage2
	Stage3
	None
)

var stageNames = [...]string{"wake", "stage1", "rem", "stage2", "stage3", "none"}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

const (
	filterAlpha   = 0.9
	moveThreshold = 0.4 * 0.4 // g²
	moveDuration  = 2
	moveCount     = 1

	windowSeconds = 60
	noneWindows   = 5
	noneLevel     = 0.02 // g², also the lower bound of stage 3
)

// bins are checked in order; the first lower bound the rate reaches wins.
var bins = []struct {
	min   float64
	stage Stage
}{
	{0.5, Wake},
	{0.28, Stage1},
	{0.12, REM},
	{0.06, Stage2},
	{0.02, Stage3},
}

// Classifier counts movement events per window and bins the rate.
type Classifier struct {
	hp   *filter.IIR
	move *peak.Automaton

	window    int
	remaining int
	tally     int
	quiet     int
	stage     Stage
}

// New returns a classifier whose window is one minute of samples at rateHz.
func New(rateHz int) *Classifier {
	c := &Classifier{
		hp:     filter.NewHighPass(3, filterAlpha),
		move:   peak.New(1),
		window: windowSeconds * rateHz,
	}
	c.move.SetThreshold(moveThreshold, peak.ChannelX)
	c.move.SetDuration(moveDuration, peak.ChannelX)
	c.move.SetCount(moveCount, peak.ChannelX)
	c.move.SetTimeout(peak.NoTimeout, peak.ChannelX)
	c.move.SetEnabled(true, peak.ChannelX)

	c.Init()
	return c
}

// Init restarts the window and returns to the None stage.
func (c *Classifier) Init() {
	c.hp.Init()
	c.move.Reset()
	c.remaining = c.window
	c.tally = 0
	c.quiet = 0
	c.stage = None
}

// Stage returns the last confirmed stage.
func (c *Classifier) Stage() Stage {
	return c.stage
}

// Process filters a raw sample and feeds its magnitude².
func (c *Classifier) Process(s imu.Sample) Stage {
	f := c.hp.Apply3(s.Vec())
	return c.ProcessMagnitude(f[0]*f[0] + f[1]*f[1] + f[2]*f[2])
}

// ProcessMagnitude feeds an already filtered magnitude² and returns the
// current stage, which only changes at window boundaries.
func (c *Classifier) ProcessMagnitude(mag2 float64) Stage {
	if c.move.Process([]float64{mag2}) != peak.EventNone {
		c.tally++
	}

	c.remaining--
	if c.remaining > 0 {
		return c.stage
	}

	c.evaluate(float64(c.tally)/windowSeconds, mag2)
	c.tally = 0
	c.remaining = c.window
	return c.stage
}

// evaluate closes a window. The quiet streak follows the boundary
// magnitude² of every window, binned or not; None is only the fallback
// when the rate reaches no bin.
func (c *Classifier) evaluate(rate, mag2 float64) {
	if mag2 < noneLevel {
		c.quiet++
	} else {
		c.quiet = 0
	}

	for _, b := range bins {
		if rate >= b.min {
			c.stage = b.stage
			return
		}
	}

	if c.quiet >= noneWindows {
		c.stage = None
	}
}
