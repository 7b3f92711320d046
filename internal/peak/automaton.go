// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package peak implements the threshold/duration/count/timeout automaton
// shared by shake, sedentary and sleep detection.
//
// Every channel is watched by two lanes, one per polarity. A lane counts an
// excursion beyond the threshold once it has lasted Duration samples, and
// fires once Count such excursions have completed without the lane timing
// out. A channel can be a spatial axis or any scalar, e.g. a squared
// magnitude fed through a single-channel automaton.
package peak

import (
	"math"
)

// NoTimeout disables the lane timeout.
const NoTimeout = math.MaxInt32

// Polarity selects the lane of a channel.
type Polarity int

const (
	Positive Polarity = 0
	Negative Polarity = 1
)

// EventMask is an OR of lane bits. Channel ch, polarity p maps to bit 2*ch+p.
type EventMask uint32

// Lane bits for a three-axis automaton.
const (
	EventNone EventMask = 0
	EventXPos EventMask = 1 << 0
	EventXNeg EventMask = 1 << 1
	EventYPos EventMask = 1 << 2
	EventYNeg EventMask = 1 << 3
	EventZPos EventMask = 1 << 4
	EventZNeg EventMask = 1 << 5
)

// Bit returns the event bit of one lane.
func Bit(ch int, p Polarity) EventMask {
	return 1 << (2*ch + int(p))
}

// ChannelMask selects channels when updating parameters.
type ChannelMask uint32

const (
	ChannelX ChannelMask = 1 << 0
	ChannelY ChannelMask = 1 << 1
	ChannelZ ChannelMask = 1 << 2

	ChannelXYZ = ChannelX | ChannelY | ChannelZ
)

// Params are the per-channel detection parameters.
type Params struct {
	Threshold float64 // same unit as the fed values
	Duration  int     // samples beyond threshold before an excursion counts
	Count     int     // excursions required for an event
	Timeout   int     // samples since the last excursion start before the lane resets
	Enabled   bool
}

type lane struct {
	run     int  // consecutive samples beyond threshold
	count   int  // qualifying excursions so far
	elapsed int  // samples since the current excursion started
	armed   bool // next qualifying run may be counted
}

// Automaton holds parameters and lane state for a fixed number of channels.
type Automaton struct {
	params []Params
	lanes  [][2]lane
	last   EventMask
}

// New returns an automaton over n channels with every channel disabled.
func New(n int) *Automaton {
	return &Automaton{
		params: make([]Params, n),
		lanes:  make([][2]lane, n),
	}
}

// Channels returns the number of channels.
func (a *Automaton) Channels() int {
	return len(a.params)
}

// Reset clears all lane state and the last event. Parameters are kept.
func (a *Automaton) Reset() {
	for ch := range a.lanes {
		a.lanes[ch] = [2]lane{}
	}
	a.last = EventNone
}

// Params returns the parameters of channel ch.
func (a *Automaton) Params(ch int) Params {
	return a.params[ch]
}

func (a *Automaton) update(mask ChannelMask, set func(p *Params)) {
	for ch := range a.params {
		if mask&(1<<ch) != 0 {
			set(&a.params[ch])
		}
	}
}

// SetThreshold sets the threshold of the selected channels.
func (a *Automaton) SetThreshold(th float64, mask ChannelMask) {
	a.update(mask, func(p *Params) { p.Threshold = th })
}

// SetDuration sets the minimum excursion length of the selected channels.
func (a *Automaton) SetDuration(samples int, mask ChannelMask) {
	a.update(mask, func(p *Params) { p.Duration = samples })
}

// SetCount sets the number of excursions required on the selected channels.
func (a *Automaton) SetCount(n int, mask ChannelMask) {
	a.update(mask, func(p *Params) { p.Count = n })
}

// SetTimeout sets the lane timeout of the selected channels.
func (a *Automaton) SetTimeout(samples int, mask ChannelMask) {
	a.update(mask, func(p *Params) { p.Timeout = samples })
}

// SetEnabled turns the selected channels on or off.
func (a *Automaton) SetEnabled(on bool, mask ChannelMask) {
	a.update(mask, func(p *Params) { p.Enabled = on })
}

// Last returns the mask produced by the most recent Process call.
func (a *Automaton) Last() EventMask {
	return a.last
}

// Process feeds one value per channel and returns the lanes that fired.
// values must hold at least Channels() entries.
func (a *Automaton) Process(values []float64) EventMask {
	events := EventNone

	for ch, p := range a.params {
		if !p.Enabled {
			continue
		}
		required := max(p.Count, 1)

		for pol := Positive; pol <= Negative; pol++ {
			l := &a.lanes[ch][pol]

			beyond := values[ch] >= p.Threshold
			if pol == Negative {
				beyond = values[ch] <= -p.Threshold
			}
			if beyond {
				l.run++
			} else {
				l.run = 0
			}

			if l.run == 1 {
				l.armed = true
				l.elapsed = 0
			}

			if l.armed && l.run >= p.Duration {
				l.count++
				l.armed = false
			}

			if l.count >= required && l.run == 0 {
				events |= Bit(ch, pol)
				*l = lane{}
			}

			if l.elapsed >= p.Timeout {
				*l = lane{}
			} else {
				l.elapsed++
			}
		}
	}

	a.last = events
	return events
}
