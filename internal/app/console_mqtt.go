package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_engine/internal/config"
)

// printEvent writes one event line.
func printEvent(w io.Writer, payload []byte) error {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return errors.Wrap(err, "event unmarshal error")
	}
	fmt.Fprintf(w, "[EVENT] t=%-8d %-10s %6d  %s\n", ev.Timestep, ev.Algorithm, ev.Value, ev.Label)
	return nil
}

// printState writes one state line.
func printState(w io.Writer, payload []byte) error {
	var st State
	if err := json.Unmarshal(payload, &st); err != nil {
		return errors.Wrap(err, "state unmarshal error")
	}
	fmt.Fprintf(w,
		"[STATE] t=%-8d steps=%d kcal=%d activity=%s dir=%s raise=%t fall=%t sedentary=%t sleep=%s\n",
		st.Timestep, st.Steps, st.Calories, st.Activity, st.Direction,
		st.RaiseHand, st.Fall, st.Sedentary, st.SleepStage,
	)
	return nil
}

func RunConsoleMQTT() error {
	cfg := config.Get()

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDConsole)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	eventsToken := client.Subscribe(cfg.TopicEvents, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := printEvent(os.Stdout, msg.Payload()); err != nil {
			log.Printf("console: %v", err)
		}
	})
	eventsToken.Wait()
	if eventsToken.Error() != nil {
		return eventsToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicEvents)

	stateToken := client.Subscribe(cfg.TopicState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		if err := printState(os.Stdout, msg.Payload()); err != nil {
			log.Printf("console: %v", err)
		}
	})
	stateToken.Wait()
	if stateToken.Error() != nil {
		return stateToken.Error()
	}
	log.Printf("console: subscribed to %s", cfg.TopicState)

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
