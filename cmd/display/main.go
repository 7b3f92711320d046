package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_engine/internal/app"
	"github.com/relabs-tech/motion_engine/internal/config"
)

func main() {
	configPath := flag.String("config", "./motion_config.txt", "path to configuration file")
	flag.Parse()

	log.Println("starting motion-engine watch face (SSD1306)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunDisplay(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
