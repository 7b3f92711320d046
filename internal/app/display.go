package app

import (
	"encoding/json"
	"fmt"
	"image"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_engine/internal/config"
)

const (
	displayWidth  = 128
	displayHeight = 64
	lineHeight    = 13
)

// DisplayData holds the latest data for the watch face
type DisplayData struct {
	mu sync.RWMutex

	state     State
	haveState bool

	// most recent event, shown for alertHold
	alert     string
	alertTime time.Time
}

// alertHold is how long a gesture or alarm stays on screen.
const alertHold = 3 * time.Second

func (d *DisplayData) setState(st State) {
	d.mu.Lock()
	d.state = st
	d.haveState = true
	d.mu.Unlock()
}

// noteEvent keeps the events a wearer should notice.
func (d *DisplayData) noteEvent(ev Event, now time.Time) {
	var text string
	switch ev.Algorithm {
	case "fall":
		if ev.Value != 0 {
			text = "FALL DETECTED"
		}
	case "shake":
		text = "SHAKE " + ev.Label
	case "flip":
		text = "FLIP"
	case "sedentary":
		if ev.Value != 0 {
			text = "TIME TO MOVE"
		}
	}
	if text == "" {
		return
	}

	d.mu.Lock()
	d.alert = text
	d.alertTime = now
	d.mu.Unlock()
}

// faceLines returns the text of the watch face at now.
func (d *DisplayData) faceLines(now time.Time) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.haveState {
		return []string{"MOTION", "waiting for", "producer..."}
	}

	st := d.state
	lines := []string{
		fmt.Sprintf("STEPS %d", st.Steps),
		fmt.Sprintf("KCAL  %d", st.Calories),
		fmt.Sprintf("%s  %s", st.Activity, st.Direction),
	}

	switch {
	case d.alert != "" && now.Sub(d.alertTime) < alertHold:
		lines = append(lines, d.alert)
	case st.Fall:
		lines = append(lines, "FALL DETECTED")
	case st.Sedentary:
		lines = append(lines, "TIME TO MOVE")
	default:
		lines = append(lines, "SLEEP "+st.SleepStage)
	}
	return lines
}

// renderLines draws up to four lines of text on a blank frame.
func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, displayWidth, displayHeight))

	drawer := font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}

	for i, line := range lines {
		if i >= displayHeight/lineHeight {
			break
		}
		drawer.Dot = fixed.P(0, lineHeight*(i+1)-2)
		drawer.DrawString(line)
	}
	return img
}

func showSplash(dev *ssd1306.Dev) error {
	img := renderLines([]string{"", "  MOTION ENGINE", "   starting..."})
	return dev.Draw(dev.Bounds(), img, image.Point{})
}

func RunDisplay() error {
	cfg := config.Get()

	// Initialize periph
	if _, err := host.Init(); err != nil {
		return errors.Wrap(err, "failed to initialize periph")
	}

	// Open I2C bus
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return errors.Wrap(err, "failed to open I2C bus")
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, cfg.DisplayI2CAddr, &ssd1306.DefaultOpts)
	if err != nil {
		return errors.Wrap(err, "failed to initialize display")
	}
	log.Printf("display: initialized at 0x%02X", cfg.DisplayI2CAddr)

	if err := showSplash(dev); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	// Connect to MQTT
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDDisplay)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	token := client.Subscribe(cfg.TopicState, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var st State
		if err := json.Unmarshal(msg.Payload(), &st); err != nil {
			log.Printf("display: state unmarshal error: %v", err)
			return
		}
		data.setState(st)
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicState)

	token = client.Subscribe(cfg.TopicEvents, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var ev Event
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			log.Printf("display: event unmarshal error: %v", err)
			return
		}
		data.noteEvent(ev, time.Now())
	})
	token.Wait()
	if token.Error() != nil {
		return token.Error()
	}
	log.Printf("display: subscribed to %s", cfg.TopicEvents)

	// Display update loop
	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for now := range ticker.C {
		img := renderLines(data.faceLines(now))
		if err := dev.Draw(dev.Bounds(), img, image.Point{}); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}

	return nil
}
