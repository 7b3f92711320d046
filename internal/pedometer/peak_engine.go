// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package pedometer

import (
	"math"

	"github.com/MicahParks/peakdetect"
)

const (
	// z-score detector configuration
	zInfluence = 0.5
	zThreshold = 1.2

	minStepCodes = 0.1 * CodesPerG // smaller peaks are sensor noise

	maxCadenceHz   = 4 // upper bound on steps per second
	runSteps       = 5 // steps within the activity window that count as running
	activityWinSec = 2
)

// PeakEngine is a StepEngine that counts rising edges of a z-score peak
// detector run over the acceleration magnitude.
type PeakEngine struct {
	rate   int
	minGap int

	detector    peakdetect.PeakDetector
	lag         []float64
	initialized bool

	n         int
	prev      peakdetect.Signal
	lastStep  int
	stepTimes []int
	steps     uint32
	activity  Activity
}

// NewPeakEngine returns a step engine tuned for rateHz. The detector looks
// back one second of samples.
func NewPeakEngine(rateHz int) *PeakEngine {
	e := &PeakEngine{
		rate:   rateHz,
		minGap: max(rateHz/maxCadenceHz, 1),
	}
	e.Init()
	return e
}

func (e *PeakEngine) Init() {
	e.detector = peakdetect.NewPeakDetector()
	e.lag = e.lag[:0]
	e.initialized = false
	e.n = 0
	e.prev = peakdetect.SignalNeutral
	e.lastStep = -e.minGap
	e.Reset()
}

func (e *PeakEngine) Reset() {
	e.steps = 0
	e.stepTimes = e.stepTimes[:0]
	e.activity = Stationary
}

func (e *PeakEngine) Steps() uint32 { return e.steps }

func (e *PeakEngine) Activity() Activity { return e.activity }

func (e *PeakEngine) Process(x, y, z int16) {
	fx, fy, fz := float64(x), float64(y), float64(z)
	mag := math.Sqrt(fx*fx + fy*fy + fz*fz)
	e.n++

	if !e.initialized {
		e.lag = append(e.lag, mag)
		if len(e.lag) > e.rate {
			e.lag = e.lag[1:]
		}
		if len(e.lag) == e.rate {
			// rejected windows are retried on the next sample
			if err := e.detector.Initialize(zInfluence, zThreshold, e.lag); err == nil {
				e.initialized = true
			}
		}
		return
	}

	sig := e.detector.Next(mag)
	if sig == peakdetect.SignalPositive && mag >= minStepCodes && e.prev != peakdetect.SignalPositive && e.n-e.lastStep >= e.minGap {
		e.steps++
		e.lastStep = e.n
		e.stepTimes = append(e.stepTimes, e.n)
	}
	e.prev = sig

	e.updateActivity()
}

func (e *PeakEngine) updateActivity() {
	cutoff := e.n - activityWinSec*e.rate
	i := 0
	for i < len(e.stepTimes) && e.stepTimes[i] <= cutoff {
		i++
	}
	e.stepTimes = e.stepTimes[i:]

	switch recent := len(e.stepTimes); {
	case recent == 0:
		e.activity = Stationary
	case recent < runSteps:
		e.activity = Walk
	default:
		e.activity = Run
	}
}
