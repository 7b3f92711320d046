package config

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_engine/internal/motion"
	"github.com/relabs-tech/motion_engine/internal/peak"
)

// Sample sources.
const (
	SourceIMU    = "imu"
	SourceSerial = "serial"
	SourceMock   = "mock"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker           string
	MQTTClientIDProducer string
	MQTTClientIDConsole  string
	MQTTClientIDWeb      string
	MQTTClientIDDisplay  string

	// Topics
	TopicEvents string
	TopicState  string

	// Sample source
	SampleSource string // "imu", "serial" or "mock"
	SampleRateHz int

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string
	// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
	IMUAccelRange byte

	// Static accelerometer offsets in g, subtracted from every sample
	AccelBiasX float64
	AccelBiasY float64
	AccelBiasZ float64

	// Serial sample bridge
	SerialPort     string
	SerialBaudRate int

	// Engine
	Algorithms             motion.Algorithm
	UserHeightM            float64
	UserWeightKg           float64
	ShakeThresholdG        float64
	ShakeDuration          int
	ShakeCount             int
	ShakeTimeoutSec        float64
	ShakeAxes              peak.ChannelMask
	SedentaryMinutes       int
	SedentarySnoozeMinutes int

	// Timing
	StatePublishInterval int // milliseconds

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus         string
	DisplayI2CAddr        uint16
	DisplayUpdateInterval int // milliseconds

	LogLevel logrus.Level
}

var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Default returns the configuration used for keys absent from the file.
func Default() *Config {
	return &Config{
		MQTTBroker:           "tcp://localhost:1883",
		MQTTClientIDProducer: "motion-producer",
		MQTTClientIDConsole:  "motion-console",
		MQTTClientIDWeb:      "motion-web",
		MQTTClientIDDisplay:  "motion-display",

		TopicEvents: "motion/events",
		TopicState:  "motion/state",

		SampleSource: SourceMock,
		SampleRateHz: motion.DefaultRateHz,

		IMUSPIDevice:  "/dev/spidev0.0",
		IMUCSPin:      "8",
		IMUAccelRange: 0,

		SerialPort:     "/dev/ttyUSB0",
		SerialBaudRate: 115200,

		Algorithms:             motion.AllAlgorithms,
		UserHeightM:            1.8,
		UserWeightKg:           75,
		ShakeThresholdG:        0.8,
		ShakeDuration:          2,
		ShakeCount:             2,
		ShakeAxes:              peak.ChannelXYZ,
		SedentaryMinutes:       30,
		SedentarySnoozeMinutes: 10,

		StatePublishInterval: 1000,

		WebServerPort: 8080,

		DisplayI2CBus:         "",
		DisplayI2CAddr:        0x3C,
		DisplayUpdateInterval: 500,

		LogLevel: logrus.InfoLevel,
	}
}

// Load reads the configuration file and returns a Config struct.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open config file")
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default. Blank lines and lines
// starting with '#' are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, errors.Errorf("invalid config line %d: %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, errors.Wrapf(err, "config line %d", lineNum)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseInt(key, value string, lo, hi int) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	if v < lo || v > hi {
		return 0, errors.Errorf("%s must be %d-%d, got %d", key, lo, hi, v)
	}
	return v, nil
}

func parseFloat(key, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s %q", key, value)
	}
	return v, nil
}

func parsePositiveFloat(key, value string) (float64, error) {
	v, err := parseFloat(key, value)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, errors.Errorf("%s must be positive, got %v", key, v)
	}
	return v, nil
}

// ParseAxes parses an axis list such as "xyz" or "x,z".
func ParseAxes(value string) (peak.ChannelMask, error) {
	var mask peak.ChannelMask
	for _, r := range strings.ToLower(value) {
		switch r {
		case 'x':
			mask |= peak.ChannelX
		case 'y':
			mask |= peak.ChannelY
		case 'z':
			mask |= peak.ChannelZ
		case ',', ' ', '|':
		default:
			return 0, errors.Errorf("invalid axis %q", r)
		}
	}
	if mask == 0 {
		return 0, errors.New("at least one axis is required")
	}
	return mask, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error

	switch key {
	// MQTT
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID_PRODUCER":
		c.MQTTClientIDProducer = value
	case "MQTT_CLIENT_ID_CONSOLE":
		c.MQTTClientIDConsole = value
	case "MQTT_CLIENT_ID_WEB":
		c.MQTTClientIDWeb = value
	case "MQTT_CLIENT_ID_DISPLAY":
		c.MQTTClientIDDisplay = value

	// Topics
	case "TOPIC_EVENTS":
		c.TopicEvents = value
	case "TOPIC_STATE":
		c.TopicState = value

	// Sample source
	case "SAMPLE_SOURCE":
		switch value {
		case SourceIMU, SourceSerial, SourceMock:
			c.SampleSource = value
		default:
			return errors.Errorf("SAMPLE_SOURCE must be imu, serial or mock, got %q", value)
		}
	case "SAMPLE_RATE_HZ":
		c.SampleRateHz, err = parseInt(key, value, 1, 1000)

	// IMU Hardware
	case "IMU_SPI_DEVICE":
		c.IMUSPIDevice = value
	case "IMU_CS_PIN":
		c.IMUCSPin = value
	case "IMU_ACCEL_RANGE":
		rangeVal, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "invalid IMU_ACCEL_RANGE %q", value)
		}
		if rangeVal < 0 || rangeVal > 3 {
			return errors.Errorf("IMU_ACCEL_RANGE must be 0-3 (0=±2g, 1=±4g, 2=±8g, 3=±16g), got %d", rangeVal)
		}
		c.IMUAccelRange = byte(rangeVal)
	case "ACCEL_BIAS_X":
		c.AccelBiasX, err = parseFloat(key, value)
	case "ACCEL_BIAS_Y":
		c.AccelBiasY, err = parseFloat(key, value)
	case "ACCEL_BIAS_Z":
		c.AccelBiasZ, err = parseFloat(key, value)

	// Serial
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		rate, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "invalid SERIAL_BAUD_RATE %q", value)
		}
		c.SerialBaudRate = rate

	// Engine
	case "ALGORITHMS":
		algs, err := motion.ParseAlgorithms(value)
		if err != nil {
			return errors.Wrap(err, "invalid ALGORITHMS")
		}
		c.Algorithms = algs
	case "USER_HEIGHT_M":
		c.UserHeightM, err = parsePositiveFloat(key, value)
	case "USER_WEIGHT_KG":
		c.UserWeightKg, err = parsePositiveFloat(key, value)
	case "SHAKE_THRESHOLD_G":
		c.ShakeThresholdG, err = parsePositiveFloat(key, value)
	case "SHAKE_DURATION":
		c.ShakeDuration, err = parseInt(key, value, 1, 1000)
	case "SHAKE_COUNT":
		c.ShakeCount, err = parseInt(key, value, 1, 100)
	case "SHAKE_TIMEOUT_SEC":
		// 0 disables the timeout
		c.ShakeTimeoutSec, err = parseFloat(key, value)
		if err == nil && c.ShakeTimeoutSec < 0 {
			err = errors.Errorf("SHAKE_TIMEOUT_SEC must not be negative, got %v", c.ShakeTimeoutSec)
		}
	case "SHAKE_AXES":
		axes, err := ParseAxes(value)
		if err != nil {
			return errors.Wrap(err, "invalid SHAKE_AXES")
		}
		c.ShakeAxes = axes
	case "SEDENTARY_MINUTES":
		c.SedentaryMinutes, err = parseInt(key, value, 1, 24*60)
	case "SEDENTARY_SNOOZE_MINUTES":
		c.SedentarySnoozeMinutes, err = parseInt(key, value, 1, 24*60)

	// Timing
	case "STATE_PUBLISH_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "invalid STATE_PUBLISH_INTERVAL %q", value)
		}
		c.StatePublishInterval = interval

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = parseInt(key, value, 1, 65535)

	// Display
	case "DISPLAY_I2C_BUS":
		c.DisplayI2CBus = value
	case "DISPLAY_I2C_ADDR":
		addr, err := strconv.ParseUint(value, 0, 16)
		if err != nil {
			return errors.Wrapf(err, "invalid DISPLAY_I2C_ADDR %q", value)
		}
		c.DisplayI2CAddr = uint16(addr)
	case "DISPLAY_UPDATE_INTERVAL":
		interval, err := strconv.Atoi(value)
		if err != nil {
			return errors.Wrapf(err, "invalid DISPLAY_UPDATE_INTERVAL %q", value)
		}
		c.DisplayUpdateInterval = interval

	case "LOG_LEVEL":
		level, err := logrus.ParseLevel(value)
		if err != nil {
			return errors.Wrap(err, "invalid LOG_LEVEL")
		}
		c.LogLevel = level

	default:
		return errors.Errorf("unknown config key: %q", key)
	}

	return err
}

// validate checks that all required fields are set.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return errors.New("MQTT_BROKER is required")
	}
	if c.TopicEvents == "" || c.TopicState == "" {
		return errors.New("TOPIC_EVENTS and TOPIC_STATE are required")
	}
	switch c.SampleSource {
	case SourceIMU:
		if c.IMUSPIDevice == "" {
			return errors.New("IMU_SPI_DEVICE is required for SAMPLE_SOURCE=imu")
		}
	case SourceSerial:
		if c.SerialPort == "" {
			return errors.New("SERIAL_PORT is required for SAMPLE_SOURCE=serial")
		}
		if c.SerialBaudRate <= 0 {
			return errors.New("SERIAL_BAUD_RATE is required for SAMPLE_SOURCE=serial")
		}
	}
	if c.StatePublishInterval <= 0 {
		return errors.New("STATE_PUBLISH_INTERVAL must be positive")
	}
	if c.DisplayUpdateInterval <= 0 {
		return errors.New("DISPLAY_UPDATE_INTERVAL must be positive")
	}
	return nil
}

// ShakeParams returns the shake configuration in engine form.
func (c *Config) ShakeParams() motion.ShakeParams {
	return motion.ShakeParams{
		ThresholdG: c.ShakeThresholdG,
		Duration:   c.ShakeDuration,
		Count:      c.ShakeCount,
		TimeoutSec: c.ShakeTimeoutSec,
		Axes:       c.ShakeAxes,
	}
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
