// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"
)

// segment is one stretch of the synthetic day.
type segment struct {
	name    string
	seconds int
	stepHz  float64 // 0 = no cadence
	amp     float64 // g
	faceUp  bool
}

// mockPlan cycles through resting, walking, running and a wrist turn.
var mockPlan = []segment{
	{name: "rest", seconds: 10, faceUp: true},
	{name: "walk", seconds: 30, stepHz: 1.8, amp: 0.5, faceUp: true},
	{name: "run", seconds: 20, stepHz: 2.8, amp: 1.2, faceUp: true},
	{name: "rest", seconds: 5, faceUp: true},
	{name: "flip", seconds: 5},
}

type mockSource struct {
	rateHz int
	n      int
}

// NewMockSource creates a mock sample source that replays a repeating
// rest/walk/run/flip pattern at rateHz. Time advances one sample per call,
// never by wall clock.
func NewMockSource(rateHz int) Source {
	if rateHz <= 0 {
		rateHz = 25
	}
	return &mockSource{rateHz: rateHz}
}

func (m *mockSource) Next() (Sample, error) {
	total := 0
	for _, s := range mockPlan {
		total += s.seconds * m.rateHz
	}

	pos := m.n % total
	m.n++

	for _, s := range mockPlan {
		length := s.seconds * m.rateHz
		if pos >= length {
			pos -= length
			continue
		}
		return s.sample(pos, m.rateHz), nil
	}
	return Sample{Z: 1}, nil
}

func (s segment) sample(pos, rateHz int) Sample {
	t := float64(pos) / float64(rateHz)

	g := 1.0
	if !s.faceUp {
		g = -1.0
	}
	out := Sample{Z: g}
	if s.stepHz > 0 {
		phase := 2 * math.Pi * s.stepHz * t
		out.Z += s.amp * math.Sin(phase)
		out.X += 0.5 * s.amp * math.Sin(phase/2)
		out.Y += 0.2 * s.amp * math.Cos(phase)
	}
	return out
}
