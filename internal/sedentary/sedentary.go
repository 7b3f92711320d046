// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sedentary raises an alarm after a period without movement and
// repeats it every snooze interval until the wearer moves again.
package sedentary

import (
	"github.com/relabs-tech/motion_engine/internal/filter"
	"github.com/relabs-tech/motion_engine/internal/imu"
	"github.com/relabs-tech/motion_engine/internal/peak"
)

const (
	DefaultMinutes       = 30
	DefaultSnoozeMinutes = 10

	filterAlpha    = 0.9
	moveThreshold  = 0.8 * 0.8 // g²
	moveDuration   = 2
	moveCount      = 40
	moveTimeoutSec = 30
)

// Monitor tracks the time since the last qualifying movement.
type Monitor struct {
	rate int
	hp   *filter.IIR
	move *peak.Automaton

	period int // samples until the alarm
	snooze int // samples between repeated alarms

	countdown  int
	snoozeLeft int
	flagged    bool
}

// New returns a monitor at rateHz with the default durations.
func New(rateHz int) *Monitor {
	m := &Monitor{
		rate: rateHz,
		hp:   filter.NewHighPass(3, filterAlpha),
		move: peak.New(1),
	}
	m.move.SetThreshold(moveThreshold, peak.ChannelX)
	m.move.SetDuration(moveDuration, peak.ChannelX)
	m.move.SetCount(moveCount, peak.ChannelX)
	m.move.SetTimeout(moveTimeoutSec*rateHz, peak.ChannelX)
	m.move.SetEnabled(true, peak.ChannelX)

	m.SetParams(DefaultMinutes, DefaultSnoozeMinutes)
	m.Init()
	return m
}

// SetParams sets the alarm and snooze durations and restarts both countdowns.
func (m *Monitor) SetParams(minutes, snoozeMinutes int) {
	m.period = minutes * 60 * m.rate
	m.snooze = snoozeMinutes * 60 * m.rate
	m.countdown = m.period
	m.snoozeLeft = 0
}

// Init clears the filter, the movement automaton and the alarm.
func (m *Monitor) Init() {
	m.hp.Init()
	m.move.Reset()
	m.countdown = m.period
	m.snoozeLeft = 0
	m.flagged = false
}

// Flagged reports whether the sedentary alarm is active.
func (m *Monitor) Flagged() bool {
	return m.flagged
}

// Process filters a raw sample and feeds its magnitude². It returns the
// alarm state and whether this sample re-fired an already active alarm.
func (m *Monitor) Process(s imu.Sample) (flagged, realarm bool) {
	f := m.hp.Apply3(s.Vec())
	return m.ProcessMagnitude(f[0]*f[0] + f[1]*f[1] + f[2]*f[2])
}

// ProcessMagnitude feeds an already filtered magnitude².
func (m *Monitor) ProcessMagnitude(mag2 float64) (flagged, realarm bool) {
	if m.move.Process([]float64{mag2}) != peak.EventNone {
		m.countdown = m.period
		m.snoozeLeft = 0
		m.flagged = false
		return false, false
	}

	if !m.flagged {
		m.countdown--
		if m.countdown <= 0 {
			m.flagged = true
			m.snoozeLeft = m.snooze
		}
		return m.flagged, false
	}

	m.snoozeLeft--
	if m.snoozeLeft <= 0 {
		m.snoozeLeft = m.snooze
		m.countdown = m.period
		realarm = true
	}
	return true, realarm
}
