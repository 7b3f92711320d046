// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_engine/internal/app"
	"github.com/relabs-tech/motion_engine/internal/config"
)

func main() {
	configPath := flag.String("config", "", "optional configuration file")
	seconds := flag.Int("seconds", 0, "replay this many seconds of synthetic motion and exit (0 = real time)")
	flag.Parse()

	log.Println("starting motion-engine (mock console)")

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	if err := app.RunMockConsole(cfg, os.Stdout, *seconds); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
