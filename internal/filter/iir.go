// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package filter implements the recursive (IIR) filter used to strip the
// gravity component from accelerometer samples before classification.
package filter

import (
	"gonum.org/v1/gonum/floats"
)

// IIR is a multi-channel direct-form recursive filter:
//
//	y[n] = b0*x[n] + b1*x[n-1] + ... + a1*y[n-1] + a2*y[n-2] + ...
//
// Every channel keeps its own history; there are no cross-channel terms.
type IIR struct {
	b []float64 // b0, b1, ..., b(lenB-1)
	a []float64 // a1, a2, ..., a(lenA)

	histX [][]float64 // per channel, newest first, len(b)-1
	histY [][]float64 // per channel, newest first, len(a)

	seedX int // calls left that seed histX with the live input
	seedY int // calls left that seed histY with the live input
}

// New returns a filter over the given number of channels. b holds the
// feed-forward coefficients starting at b0; a holds the feedback
// coefficients starting at a1. The filter is ready to use.
func New(channels int, b, a []float64) *IIR {
	if len(b) == 0 {
		b = []float64{1}
	}
	f := &IIR{
		b:     append([]float64(nil), b...),
		a:     append([]float64(nil), a...),
		histX: make([][]float64, channels),
		histY: make([][]float64, channels),
	}
	for ch := 0; ch < channels; ch++ {
		f.histX[ch] = make([]float64, len(b)-1)
		f.histY[ch] = make([]float64, len(a))
	}
	f.Init()
	return f
}

// NewHighPass returns the first-order high-pass filter used throughout the
// engine: y[n] = alpha*(x[n] - x[n-1]) + alpha*y[n-1].
func NewHighPass(channels int, alpha float64) *IIR {
	return New(channels, []float64{alpha, -alpha}, []float64{alpha})
}

// Init zeroes all history and restarts the warm-up countdowns.
func (f *IIR) Init() {
	for ch := range f.histX {
		clear(f.histX[ch])
		clear(f.histY[ch])
	}
	f.seedX = len(f.b) - 1
	f.seedY = len(f.a)
}

// Channels returns the number of independent channels.
func (f *IIR) Channels() int {
	return len(f.histX)
}

// Apply filters one input vector into out. Both slices must hold at least
// Channels() values.
func (f *IIR) Apply(in, out []float64) {
	n := f.Channels()

	// Seed the newest history slot with live data so the first outputs do
	// not see a step from zero.
	if f.seedX > 0 {
		for ch := 0; ch < n; ch++ {
			if len(f.histX[ch]) > 0 {
				f.histX[ch][0] = in[ch]
			}
		}
		f.seedX--
	}
	if f.seedY > 0 {
		for ch := 0; ch < n; ch++ {
			if len(f.histY[ch]) > 0 {
				f.histY[ch][0] = in[ch]
			}
		}
		f.seedY--
	}

	for ch := 0; ch < n; ch++ {
		hx, hy := f.histX[ch], f.histY[ch]

		y := f.b[0]*in[ch] + floats.Dot(f.b[1:], hx) + floats.Dot(f.a, hy)

		if len(hx) > 0 {
			copy(hx[1:], hx[:len(hx)-1])
			hx[0] = in[ch]
		}
		if len(hy) > 0 {
			copy(hy[1:], hy[:len(hy)-1])
			hy[0] = y
		}
		out[ch] = y
	}
}

// Apply3 filters a three-channel vector.
func (f *IIR) Apply3(in [3]float64) [3]float64 {
	var out [3]float64
	f.Apply(in[:], out[:])
	return out
}
