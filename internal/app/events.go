package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_engine/internal/config"
	"github.com/relabs-tech/motion_engine/internal/motion"
	"github.com/relabs-tech/motion_engine/internal/peak"
	"github.com/relabs-tech/motion_engine/internal/pedometer"
	"github.com/relabs-tech/motion_engine/internal/sleep"
)

// Event is the JSON payload published for every engine event.
type Event struct {
	Session   string    `json:"session"`
	Timestep  uint64    `json:"timestep"`
	Time      time.Time `json:"time"`
	Algorithm string    `json:"algorithm"`
	Tag       uint32    `json:"tag"`
	Value     int32     `json:"value"`
	Label     string    `json:"label"`
}

// State is the periodic snapshot of every algorithm's current value.
type State struct {
	Session    string    `json:"session"`
	Timestep   uint64    `json:"timestep"`
	Time       time.Time `json:"time"`
	Enabled    string    `json:"enabled"`
	Steps      int32     `json:"steps"`
	Calories   int32     `json:"calories"`
	Activity   string    `json:"activity"`
	Fall       bool      `json:"fall"`
	RaiseHand  bool      `json:"raise_hand"`
	Direction  string    `json:"direction"`
	Sedentary  bool      `json:"sedentary"`
	SleepStage string    `json:"sleep_stage"`
}

// newSession returns a fresh id tagging everything one producer run emits.
func newSession() string {
	return uuid.New().String()
}

// Label renders an event value for people.
func Label(alg motion.Algorithm, value int32) string {
	switch alg {
	case motion.Activity:
		return pedometer.Activity(value).String()
	case motion.SleepStage:
		return sleep.Stage(value).String()
	case motion.Shake:
		return shakeLanes(peak.EventMask(value))
	case motion.Fall, motion.RaiseHand, motion.Sedentary, motion.Flip:
		if value != 0 {
			return "yes"
		}
		return "no"
	case motion.Calorie:
		return fmt.Sprintf("%d kcal", value)
	default:
		return fmt.Sprintf("%d", value)
	}
}

func shakeLanes(mask peak.EventMask) string {
	names := []string{"x+", "x-", "y+", "y-", "z+", "z-"}
	var parts []string
	for i, n := range names {
		if mask&(1<<i) != 0 {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, " ")
}

// NewEvent builds the payload for one emitted event.
func NewEvent(session string, timestep uint64, alg motion.Algorithm, value int32) Event {
	return Event{
		Session:   session,
		Timestep:  timestep,
		Time:      time.Now().UTC(),
		Algorithm: alg.String(),
		Tag:       uint32(alg),
		Value:     value,
		Label:     Label(alg, value),
	}
}

// Snapshot reads the current value of every algorithm from the engine.
func Snapshot(session string, e *motion.Engine) State {
	return State{
		Session:    session,
		Timestep:   e.Timestep(),
		Time:       time.Now().UTC(),
		Enabled:    e.Enabled().String(),
		Steps:      e.State(motion.Pedometer),
		Calories:   e.State(motion.Calorie),
		Activity:   pedometer.Activity(e.State(motion.Activity)).String(),
		Fall:       e.State(motion.Fall) != 0,
		RaiseHand:  e.State(motion.RaiseHand) != 0,
		Direction:  e.Direction().String(),
		Sedentary:  e.State(motion.Sedentary) != 0,
		SleepStage: sleep.Stage(e.State(motion.SleepStage)).String(),
	}
}

// NewEngine builds an engine from the configuration, registers sink and
// enables the configured algorithms.
func NewEngine(cfg *config.Config, sink motion.EventSink, logger logrus.FieldLogger) (*motion.Engine, error) {
	e := motion.New(motion.Config{
		RateHz: cfg.SampleRateHz,
		Logger: logger,
	})
	if err := e.Init(sink); err != nil {
		return nil, err
	}

	e.SetCalorieParams(cfg.UserHeightM, cfg.UserWeightKg)
	e.SetShakeParams(cfg.ShakeParams())
	e.SetSedentaryParams(cfg.SedentaryMinutes, cfg.SedentarySnoozeMinutes)

	if err := e.Enable(cfg.Algorithms, true); err != nil {
		return nil, err
	}
	return e, nil
}
