// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"strings"

	"github.com/pkg/errors"
)

// Algorithm is a bit set of motion algorithms. A single bit doubles as the
// tag on emitted events.
type Algorithm uint32

const (
	Pedometer Algorithm = 1 << iota
	Calorie
	Activity
	Fall
	Shake
	RaiseHand
	Flip
	Sedentary
	SleepStage

	None          Algorithm = 0
	AllAlgorithms           = Pedometer | Calorie | Activity | Fall | Shake | RaiseHand | Flip | Sedentary | SleepStage

	pedometerFamily = Pedometer | Calorie | Activity
	orientationPair = RaiseHand | Flip
)

var algorithmNames = []struct {
	alg  Algorithm
	name string
}{
	{Pedometer, "pedometer"},
	{Calorie, "calorie"},
	{Activity, "activity"},
	{Fall, "fall"},
	{Shake, "shake"},
	{RaiseHand, "raise_hand"},
	{Flip, "flip"},
	{Sedentary, "sedentary"},
	{SleepStage, "sleep"},
}

// String joins the names of the set bits with '|'.
func (a Algorithm) String() string {
	if a == None {
		return "none"
	}
	var parts []string
	for _, n := range algorithmNames {
		if a&n.alg != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "unknown"
	}
	return strings.Join(parts, "|")
}

// ParseAlgorithms parses a comma separated list of algorithm names. "all"
// selects every algorithm and an empty string selects none.
func ParseAlgorithms(s string) (Algorithm, error) {
	var out Algorithm
	for _, field := range strings.Split(s, ",") {
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		if field == "all" {
			out |= AllAlgorithms
			continue
		}
		found := false
		for _, n := range algorithmNames {
			if n.name == field {
				out |= n.alg
				found = true
				break
			}
		}
		if !found {
			return None, errors.Errorf("unknown algorithm %q", field)
		}
	}
	return out, nil
}

// Each yields the single-bit algorithms set in a, in tag order.
func (a Algorithm) Each(fn func(Algorithm)) {
	for _, n := range algorithmNames {
		if a&n.alg != 0 {
			fn(n.alg)
		}
	}
}

// EventSink receives events synchronously from Engine.Process. It must not
// call back into the engine.
type EventSink interface {
	Emit(alg Algorithm, value int32)
}

// EventSinkFunc adapts a function to an EventSink.
type EventSinkFunc func(alg Algorithm, value int32)

func (f EventSinkFunc) Emit(alg Algorithm, value int32) {
	f(alg, value)
}
