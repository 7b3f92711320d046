package sensors

import (
	"bufio"
	"io"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
	serial "github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/motion_engine/internal/config"
	"github.com/relabs-tech/motion_engine/internal/imu"
)

// SerialSource reads $PMACC sentences streamed by a sensor board. Other
// NMEA sentences and line noise on the same port are skipped.
type SerialSource struct {
	port   io.ReadCloser
	reader *bufio.Reader
	bias   imu.Bias

	skipped int
}

// NewSerialSource opens SERIAL_PORT at SERIAL_BAUD_RATE.
func NewSerialSource(cfg *config.Config) (*SerialSource, error) {
	serialOpts := serial.OpenOptions{
		PortName:              cfg.SerialPort,
		BaudRate:              uint(cfg.SerialBaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, errors.Wrapf(err, "serial: open %s", cfg.SerialPort)
	}
	log.Printf("serial: port opened on %s at %d baud", serialOpts.PortName, serialOpts.BaudRate)

	bias := imu.Bias{X: cfg.AccelBiasX, Y: cfg.AccelBiasY, Z: cfg.AccelBiasZ}
	return NewSerialSourceFrom(port, bias), nil
}

// NewSerialSourceFrom reads sentences from an already open stream.
func NewSerialSourceFrom(r io.Reader, bias imu.Bias) *SerialSource {
	rc, ok := r.(io.ReadCloser)
	if !ok {
		rc = io.NopCloser(r)
	}
	return &SerialSource{
		port:   rc,
		reader: bufio.NewReader(rc),
		bias:   bias,
	}
}

// Next blocks until the next accelerometer sentence arrives.
func (s *SerialSource) Next() (imu.Sample, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return imu.Sample{}, errors.Wrap(err, "serial: read")
		}

		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, perr := nmea.Parse(line)
		if perr != nil {
			s.skipped++
			log.WithField("line", line).Debugf("serial: NMEA parse error: %v", perr)
			continue
		}

		m, ok := sentence.(MACC)
		if !ok {
			continue
		}
		return imu.Sample{
			X: m.X - s.bias.X,
			Y: m.Y - s.bias.Y,
			Z: m.Z - s.bias.Z,
		}, nil
	}
}

// Skipped returns how many malformed sentences have been dropped.
func (s *SerialSource) Skipped() int {
	return s.skipped
}

// Close closes the underlying port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}
