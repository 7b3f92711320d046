package app

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_engine/internal/config"
	"github.com/relabs-tech/motion_engine/internal/imu"
	"github.com/relabs-tech/motion_engine/internal/motion"
	"github.com/relabs-tech/motion_engine/internal/sensors"
)

// mqttSink publishes every engine event as JSON on the events topic.
type mqttSink struct {
	client  mqtt.Client
	topic   string
	session string
	engine  *motion.Engine
	log     log.FieldLogger
}

func (s *mqttSink) Emit(alg motion.Algorithm, value int32) {
	var timestep uint64
	if s.engine != nil {
		timestep = s.engine.Timestep()
	}
	ev := NewEvent(s.session, timestep, alg, value)

	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Errorf("json marshal error (event): %v", err)
		return
	}
	if token := s.client.Publish(s.topic, 0, false, payload); token.Wait() && token.Error() != nil {
		s.log.Errorf("MQTT publish error (%s): %v", s.topic, token.Error())
		return
	}
	s.log.WithFields(log.Fields{
		"algorithm": ev.Algorithm,
		"value":     ev.Value,
		"timestep":  ev.Timestep,
	}).Info(ev.Label)
}

// Producer feeds samples through the engine and publishes its output.
type Producer struct {
	cfg     *config.Config
	client  mqtt.Client
	engine  *motion.Engine
	session string
	log     log.FieldLogger
}

// NewProducer builds the engine for cfg with an MQTT sink on client.
func NewProducer(cfg *config.Config, client mqtt.Client, logger log.FieldLogger) (*Producer, error) {
	session := newSession()
	logger = logger.WithField("session", session)

	sink := &mqttSink{
		client:  client,
		topic:   cfg.TopicEvents,
		session: session,
		log:     logger,
	}
	engine, err := NewEngine(cfg, sink, logger)
	if err != nil {
		return nil, errors.Wrap(err, "engine setup")
	}
	sink.engine = engine

	return &Producer{
		cfg:     cfg,
		client:  client,
		engine:  engine,
		session: session,
		log:     logger,
	}, nil
}

// Engine returns the engine driven by the producer.
func (p *Producer) Engine() *motion.Engine {
	return p.engine
}

// HandleSample runs one sample through the engine.
func (p *Producer) HandleSample(s imu.Sample) {
	p.engine.Process(s)
}

// PublishState publishes a retained snapshot on the state topic.
func (p *Producer) PublishState() error {
	payload, err := json.Marshal(Snapshot(p.session, p.engine))
	if err != nil {
		return errors.Wrap(err, "json marshal error (state)")
	}
	if token := p.client.Publish(p.cfg.TopicState, 0, true, payload); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "MQTT publish error (%s)", p.cfg.TopicState)
	}
	return nil
}

// pump reads src on its own goroutine. Sources that do not block on
// hardware timing are paced at the sample period.
func pump(src imu.Source, paced bool, period time.Duration, samples chan<- imu.Sample, errs chan<- error, done <-chan struct{}) {
	var tick <-chan time.Time
	if paced {
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-tick:
			case <-done:
				return
			}
		}

		s, err := src.Next()
		if err != nil {
			select {
			case errs <- err:
			case <-done:
			}
			return
		}

		select {
		case samples <- s:
		case <-done:
			return
		}
	}
}

func RunMotionProducer() error {
	cfg := config.Get()
	log.SetLevel(cfg.LogLevel)
	log.Printf("starting motion producer (source=%s, rate=%d Hz, algorithms=%s)",
		cfg.SampleSource, cfg.SampleRateHz, cfg.Algorithms)

	src, err := sensors.NewSource(cfg)
	if err != nil {
		return errors.Wrap(err, "sample source")
	}
	if c, ok := src.(interface{ Close() error }); ok {
		defer c.Close()
	}

	// --- connect to MQTT ---
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.MQTTBroker).
		SetClientID(cfg.MQTTClientIDProducer)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return errors.Wrap(token.Error(), "MQTT connect error")
	}
	defer client.Disconnect(250)
	log.Println("connected to MQTT, starting engine loop")

	producer, err := NewProducer(cfg, client, log.StandardLogger())
	if err != nil {
		return err
	}

	period := time.Second / time.Duration(cfg.SampleRateHz)
	paced := cfg.SampleSource != config.SourceSerial

	samples := make(chan imu.Sample, cfg.SampleRateHz)
	errs := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go pump(src, paced, period, samples, errs, done)

	stateTicker := time.NewTicker(time.Duration(cfg.StatePublishInterval) * time.Millisecond)
	defer stateTicker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case s := <-samples:
			producer.HandleSample(s)
		case <-stateTicker.C:
			if err := producer.PublishState(); err != nil {
				log.Warn(err)
			}
		case err := <-errs:
			return errors.Wrap(err, "sample source")
		case <-sigCh:
			log.Println("motion producer: shutting down")
			if err := producer.PublishState(); err != nil {
				log.Warn(err)
			}
			return nil
		}
	}
}
