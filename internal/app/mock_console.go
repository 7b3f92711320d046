// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_engine/internal/config"
	"github.com/relabs-tech/motion_engine/internal/imu"
	"github.com/relabs-tech/motion_engine/internal/motion"
)

// RunMockConsole runs the engine over the synthetic mock source without a
// broker and prints each event to w. With seconds > 0 it replays that much
// synthetic time as fast as possible and returns; otherwise it runs in real
// time forever.
func RunMockConsole(cfg *config.Config, w io.Writer, seconds int) error {
	var engine *motion.Engine
	sink := motion.EventSinkFunc(func(alg motion.Algorithm, value int32) {
		t := float64(engine.Timestep()) / float64(engine.RateHz())
		fmt.Fprintf(w, "[%8.2fs] %-10s %6d  %s\n", t, alg, value, Label(alg, value))
	})

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(cfg.LogLevel)

	engine, err := NewEngine(cfg, sink, logger)
	if err != nil {
		return err
	}

	src := imu.NewMockSource(cfg.SampleRateHz)

	if seconds > 0 {
		for i := 0; i < seconds*cfg.SampleRateHz; i++ {
			s, err := src.Next()
			if err != nil {
				return err
			}
			engine.Process(s)
		}
		return nil
	}

	ticker := time.NewTicker(time.Second / time.Duration(cfg.SampleRateHz))
	defer ticker.Stop()

	for range ticker.C {
		s, err := src.Next()
		if err != nil {
			return err
		}
		engine.Process(s)
	}
	return nil
}
