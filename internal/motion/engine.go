// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package motion dispatches accelerometer samples to the enabled motion
// algorithms and reports their results to an EventSink.
//
// Every algorithm keeps its own state and is initialized from scratch when
// it goes from disabled to enabled. Results are edge triggered: an event is
// emitted only when the value differs from the last one emitted for that
// algorithm, with two exceptions. A detected fall is reported on every
// sample while it is latched, and an active sedentary alarm is repeated at
// every snooze interval.
//
// The engine is not safe for concurrent use. Process is meant to be called
// once per sample period from a single goroutine.
package motion

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_engine/internal/fall"
	"github.com/relabs-tech/motion_engine/internal/filter"
	"github.com/relabs-tech/motion_engine/internal/imu"
	"github.com/relabs-tech/motion_engine/internal/orientation"
	"github.com/relabs-tech/motion_engine/internal/peak"
	"github.com/relabs-tech/motion_engine/internal/pedometer"
	"github.com/relabs-tech/motion_engine/internal/sedentary"
	"github.com/relabs-tech/motion_engine/internal/sleep"
)

// ErrNoSink is returned when no event sink has been registered.
var ErrNoSink = errors.New("motion: no event sink registered")

// DefaultRateHz is used when Config.RateHz is not set.
const DefaultRateHz = 25

const (
	fallAlpha  = 0.5
	shakeAlpha = 0.4
)

// Config configures an Engine.
type Config struct {
	RateHz     int
	StepEngine pedometer.StepEngine // defaults to a PeakEngine at RateHz
	Logger     logrus.FieldLogger   // defaults to the logrus standard logger
}

// ShakeParams configures shake gesture detection.
type ShakeParams struct {
	ThresholdG float64          `json:"threshold_g"`
	Duration   int              `json:"duration"`    // samples
	Count      int              `json:"count"`       // excursions per gesture
	TimeoutSec float64          `json:"timeout_sec"` // <= 0 disables the timeout
	Axes       peak.ChannelMask `json:"axes"`
}

// DefaultShakeParams returns the parameters applied until SetShakeParams is
// called.
func DefaultShakeParams() ShakeParams {
	return ShakeParams{
		ThresholdG: 0.8,
		Duration:   2,
		Count:      2,
		Axes:       peak.ChannelXYZ,
	}
}

type pedometerState struct {
	adapter      *pedometer.Adapter
	lastSteps    uint32
	lastCalories int32
	lastActivity pedometer.Activity
}

type fallState struct {
	hp       *filter.IIR
	detector *fall.Detector
	asserted bool
}

type shakeState struct {
	hp        *filter.IIR
	automaton *peak.Automaton
	params    ShakeParams
}

type gestureState struct {
	classifier *orientation.Classifier
	lastRaised bool
	countdown  int
	flipped    bool
}

type sedentaryState struct {
	monitor       *sedentary.Monitor
	minutes       int
	snoozeMinutes int
	lastFlagged   bool
}

type sleepState struct {
	classifier *sleep.Classifier
	lastStage  sleep.Stage
}

// Engine runs the motion algorithms over a sample stream.
type Engine struct {
	rate int
	log  logrus.FieldLogger

	sink     EventSink
	enabled  Algorithm
	timestep uint64

	ped   pedometerState
	fall  fallState
	shake shakeState
	gest  gestureState
	sed   sedentaryState
	sleep sleepState
}

// New creates an engine with every algorithm disabled and no sink.
func New(cfg Config) *Engine {
	rate := cfg.RateHz
	if rate <= 0 {
		rate = DefaultRateHz
	}
	steps := cfg.StepEngine
	if steps == nil {
		steps = pedometer.NewPeakEngine(rate)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Engine{
		rate: rate,
		log:  logger.WithField("component", "motion"),
		ped:  pedometerState{adapter: pedometer.New(steps, rate)},
		fall: fallState{
			hp:       filter.NewHighPass(3, fallAlpha),
			detector: fall.New(rate),
		},
		shake: shakeState{
			hp:        filter.NewHighPass(3, shakeAlpha),
			automaton: peak.New(3),
			params:    DefaultShakeParams(),
		},
		gest: gestureState{classifier: orientation.NewClassifier()},
		sed: sedentaryState{
			monitor:       sedentary.New(rate),
			minutes:       sedentary.DefaultMinutes,
			snoozeMinutes: sedentary.DefaultSnoozeMinutes,
		},
		sleep: sleepState{
			classifier: sleep.New(rate),
			lastStage:  sleep.None,
		},
	}
}

// RateHz returns the sample rate all durations are derived from.
func (e *Engine) RateHz() int {
	return e.rate
}

// Init registers the event sink, disables every algorithm and restarts the
// timestep counter.
func (e *Engine) Init(sink EventSink) error {
	if sink == nil {
		return ErrNoSink
	}
	e.sink = sink
	e.enabled = None
	e.timestep = 0
	return nil
}

// Enabled returns the set of enabled algorithms.
func (e *Engine) Enabled() Algorithm {
	return e.enabled
}

// Timestep returns the number of samples processed since Init.
func (e *Engine) Timestep() uint64 {
	return e.timestep
}

// Enable turns the given algorithms on or off. Algorithms that go from
// disabled to enabled are initialized.
func (e *Engine) Enable(algs Algorithm, on bool) error {
	if e.sink == nil {
		return ErrNoSink
	}
	algs &= AllAlgorithms

	if !on {
		e.enabled &^= algs
		e.log.WithField("algorithms", algs).Debug("disabled")
		return nil
	}

	prev := e.enabled
	rising := algs &^ prev
	e.enabled |= algs
	if rising != None {
		e.initialize(rising, prev)
	}
	return nil
}

func (e *Engine) initialize(rising, prev Algorithm) {
	if rising&pedometerFamily != 0 {
		if prev&pedometerFamily == 0 {
			e.ped.adapter.Init()
		}
		if rising&Pedometer != 0 {
			e.ped.lastSteps = 0
		}
		if rising&Calorie != 0 {
			e.ped.lastCalories = 0
		}
		if rising&Activity != 0 {
			e.ped.lastActivity = pedometer.Stationary
		}
	}

	if rising&Fall != 0 {
		e.fall.hp.Init()
		e.fall.detector.Init()
		e.fall.asserted = false
	}

	if rising&Shake != 0 {
		e.shake.hp.Init()
		e.shake.automaton.Reset()
		e.applyShakeParams()
	}

	if rising&orientationPair != 0 {
		if prev&orientationPair == 0 {
			e.gest.classifier.Init()
		}
		if rising&RaiseHand != 0 {
			e.gest.lastRaised = false
		}
		if rising&Flip != 0 {
			e.gest.countdown = 0
			e.gest.flipped = false
		}
	}

	if rising&Sedentary != 0 {
		e.sed.monitor.SetParams(e.sed.minutes, e.sed.snoozeMinutes)
		e.sed.monitor.Init()
		e.sed.lastFlagged = false
	}

	if rising&SleepStage != 0 {
		e.sleep.classifier.Init()
		e.sleep.lastStage = sleep.None
	}

	e.log.WithFields(logrus.Fields{
		"algorithms": rising,
		"timestep":   e.timestep,
	}).Debug("initialized")
}

// SetCalorieParams sets the body measurements used for calories.
func (e *Engine) SetCalorieParams(heightM, weightKg float64) {
	e.ped.adapter.SetParams(heightM, weightKg)
}

// SetShakeParams replaces the shake parameters. They take effect
// immediately when shake detection is enabled, otherwise on the next enable.
func (e *Engine) SetShakeParams(p ShakeParams) {
	e.shake.params = p
	if e.enabled&Shake != 0 {
		e.applyShakeParams()
	}
}

// ShakeParams returns the current shake parameters.
func (e *Engine) ShakeParams() ShakeParams {
	return e.shake.params
}

func (e *Engine) applyShakeParams() {
	p := e.shake.params
	timeout := peak.NoTimeout
	if p.TimeoutSec > 0 {
		timeout = int(p.TimeoutSec*float64(e.rate) + 0.5)
	}

	a := e.shake.automaton
	a.SetThreshold(p.ThresholdG, peak.ChannelXYZ)
	a.SetDuration(p.Duration, peak.ChannelXYZ)
	a.SetCount(p.Count, peak.ChannelXYZ)
	a.SetTimeout(timeout, peak.ChannelXYZ)
	a.SetEnabled(false, peak.ChannelXYZ)
	a.SetEnabled(true, p.Axes&peak.ChannelXYZ)
}

// SetSedentaryParams sets the alarm period and snooze interval in minutes.
// When sedentary detection is enabled both countdowns restart.
func (e *Engine) SetSedentaryParams(minutes, snoozeMinutes int) {
	e.sed.minutes = minutes
	e.sed.snoozeMinutes = snoozeMinutes
	if e.enabled&Sedentary != 0 {
		e.sed.monitor.SetParams(minutes, snoozeMinutes)
	}
}

// ResetPedometer zeroes steps, activity and calories. The reset itself
// emits nothing.
func (e *Engine) ResetPedometer() {
	e.ped.adapter.Reset()
	e.ped.lastSteps = 0
	e.ped.lastCalories = 0
	e.ped.lastActivity = pedometer.Stationary
}

// State returns the current value of a single algorithm, or its idle value
// when the algorithm is disabled.
func (e *Engine) State(alg Algorithm) int32 {
	if e.enabled&alg == 0 {
		if alg == SleepStage {
			return int32(sleep.None)
		}
		return 0
	}

	switch alg {
	case Pedometer:
		return int32(e.ped.adapter.Steps())
	case Calorie:
		return int32(e.ped.adapter.Calories())
	case Activity:
		return int32(e.ped.adapter.Activity())
	case Fall:
		return boolValue(e.fall.asserted)
	case Shake:
		return int32(e.shake.automaton.Last())
	case RaiseHand:
		return boolValue(e.gest.classifier.Direction() == orientation.ZPos)
	case Flip:
		return boolValue(e.gest.flipped)
	case Sedentary:
		return boolValue(e.sed.monitor.Flagged())
	case SleepStage:
		return int32(e.sleep.classifier.Stage())
	}
	return 0
}

// Direction returns the orientation classifier's current direction. It is
// only updated while raise-hand or flip detection is enabled.
func (e *Engine) Direction() orientation.Direction {
	return e.gest.classifier.Direction()
}

// Process runs one timestep over the enabled algorithms. The order is fixed:
// pedometer family, fall, shake, raise-hand and flip, sedentary, sleep.
func (e *Engine) Process(s imu.Sample) {
	e.timestep++
	if e.sink == nil || e.enabled == None {
		return
	}

	if e.enabled&pedometerFamily != 0 {
		e.processPedometer(s)
	}
	if e.enabled&Fall != 0 {
		e.processFall(s)
	}
	if e.enabled&Shake != 0 {
		e.processShake(s)
	}
	if e.enabled&orientationPair != 0 {
		e.processGestures(s)
	}
	if e.enabled&Sedentary != 0 {
		e.processSedentary(s)
	}
	if e.enabled&SleepStage != 0 {
		e.processSleep(s)
	}
}

func (e *Engine) processPedometer(s imu.Sample) {
	p := &e.ped
	p.adapter.Process(s)

	if e.enabled&Pedometer != 0 {
		if steps := p.adapter.Steps(); steps != p.lastSteps {
			p.lastSteps = steps
			e.sink.Emit(Pedometer, int32(steps))
		}
	}
	if e.enabled&Calorie != 0 {
		if cal := int32(p.adapter.Calories()); cal != p.lastCalories {
			p.lastCalories = cal
			e.sink.Emit(Calorie, cal)
		}
	}
	if e.enabled&Activity != 0 {
		if act := p.adapter.Activity(); act != p.lastActivity {
			p.lastActivity = act
			e.sink.Emit(Activity, int32(act))
		}
	}
}

func (e *Engine) processFall(s imu.Sample) {
	f := e.fall.hp.Apply3(s.Vec())
	e.fall.asserted = e.fall.detector.Process(imu.FromVec(f))
	if e.fall.asserted {
		e.sink.Emit(Fall, 1)
	}
}

func (e *Engine) processShake(s imu.Sample) {
	f := e.shake.hp.Apply3(s.Vec())
	if mask := e.shake.automaton.Process(f[:]); mask != peak.EventNone {
		e.sink.Emit(Shake, int32(mask))
	}
}

func (e *Engine) processGestures(s imu.Sample) {
	g := &e.gest
	dir := g.classifier.Classify(s)

	if e.enabled&RaiseHand != 0 {
		if raised := dir == orientation.ZPos; raised != g.lastRaised {
			g.lastRaised = raised
			e.sink.Emit(RaiseHand, boolValue(raised))
		}
	}

	if e.enabled&Flip != 0 {
		g.flipped = false
		switch {
		case dir == orientation.ZPos:
			g.countdown = e.rate
		case g.countdown > 0:
			g.countdown--
			if dir == orientation.ZNeg {
				g.countdown = 0
				g.flipped = true
				e.sink.Emit(Flip, 1)
			}
		}
	}
}

func (e *Engine) processSedentary(s imu.Sample) {
	flagged, realarm := e.sed.monitor.Process(s)
	if flagged != e.sed.lastFlagged || realarm {
		e.sed.lastFlagged = flagged
		e.sink.Emit(Sedentary, boolValue(flagged))
	}
}

func (e *Engine) processSleep(s imu.Sample) {
	if stage := e.sleep.classifier.Process(s); stage != e.sleep.lastStage {
		e.sleep.lastStage = stage
		e.sink.Emit(SleepStage, int32(stage))
	}
}

func boolValue(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
