// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package pedometer feeds accelerometer samples to a step counting engine
// and derives calories from the step rate.
package pedometer

import (
	"math"

	"github.com/relabs-tech/motion_engine/internal/filter"
	"github.com/relabs-tech/motion_engine/internal/imu"
)

// Activity is the coarse activity code reported by a step engine.
type Activity int32

const (
	Stationary Activity = 0
	Walk       Activity = 1
	Run        Activity = 3
)

func (a Activity) String() string {
	switch a {
	case Stationary:
		return "stationary"
	case Walk:
		return "walk"
	case Run:
		return "run"
	default:
		return "unknown"
	}
}

// StepEngine counts steps from accelerometer codes.
type StepEngine interface {
	Init()
	Process(x, y, z int16)
	Steps() uint32
	Activity() Activity
	Reset()
}

const (
	// CodesPerG is the accelerometer sensitivity the step engine expects.
	CodesPerG = 512

	DefaultHeightM  = 1.8
	DefaultWeightKg = 75.0

	filterAlpha     = 0.8
	settleSeconds   = 2
	intervalSeconds = 2
)

// ToCode converts g to a step engine code, saturating at the int16 range.
func ToCode(g float64) int16 {
	v := g*CodesPerG + 0.5
	switch {
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// StrideFraction maps steps per interval to stride length as a fraction of
// body height.
func StrideFraction(steps uint32) float64 {
	switch {
	case steps < 2:
		return 0.2
	case steps == 2:
		return 0.25
	case steps == 3:
		return 1.0 / 3
	case steps == 4:
		return 0.5
	case steps == 5:
		return 1.0 / 1.2
	case steps < 8:
		return 1.0
	default:
		return 1.2
	}
}

// Adapter drives a StepEngine and keeps the calorie estimate.
type Adapter struct {
	engine StepEngine
	hp     *filter.IIR

	settleLength   int
	intervalLength int
	settle         int
	interval       int

	heightM  float64
	weightKg float64

	steps     uint32
	lastSteps uint32
	activity  Activity
	calories  float64
}

// New returns an adapter at rateHz around engine.
func New(engine StepEngine, rateHz int) *Adapter {
	a := &Adapter{
		engine:         engine,
		hp:             filter.NewHighPass(3, filterAlpha),
		settleLength:   settleSeconds * rateHz,
		intervalLength: intervalSeconds * rateHz,
		heightM:        DefaultHeightM,
		weightKg:       DefaultWeightKg,
	}
	a.Init()
	return a
}

// SetParams sets the body measurements used by the calorie model.
func (a *Adapter) SetParams(heightM, weightKg float64) {
	a.heightM = heightM
	a.weightKg = weightKg
}

// Init restarts the filter settle period and clears all counters.
func (a *Adapter) Init() {
	a.hp.Init()
	a.engine.Init()
	a.settle = a.settleLength
	a.interval = a.intervalLength
	a.clear()
}

// Reset zeroes steps, activity and calories and resets the engine.
func (a *Adapter) Reset() {
	a.engine.Reset()
	a.interval = a.intervalLength
	a.clear()
}

func (a *Adapter) clear() {
	a.steps = 0
	a.lastSteps = 0
	a.activity = Stationary
	a.calories = 0
}

func (a *Adapter) Steps() uint32 { return a.steps }

func (a *Adapter) Activity() Activity { return a.activity }

func (a *Adapter) Calories() float64 { return a.calories }

// Process filters one sample and, once the filter has settled, feeds the
// engine and updates the calorie estimate every interval.
func (a *Adapter) Process(s imu.Sample) {
	f := a.hp.Apply3(s.Vec())
	if a.settle > 0 {
		a.settle--
		return
	}

	a.engine.Process(ToCode(f[0]), ToCode(f[1]), ToCode(f[2]))
	a.steps = a.engine.Steps()
	a.activity = a.engine.Activity()

	a.interval--
	if a.interval > 0 {
		return
	}
	a.interval = a.intervalLength

	var delta uint32
	if a.steps > a.lastSteps {
		delta = a.steps - a.lastSteps
	}
	a.lastSteps = a.steps

	if delta == 0 {
		a.calories += a.weightKg / 1800
		return
	}
	stride := StrideFraction(delta) * a.heightM
	a.calories += float64(delta) * stride * a.weightKg / 800
}
