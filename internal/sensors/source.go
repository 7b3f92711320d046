package sensors

import (
	"github.com/pkg/errors"

	"github.com/relabs-tech/motion_engine/internal/config"
	"github.com/relabs-tech/motion_engine/internal/imu"
)

// NewSource opens the sample source selected by SAMPLE_SOURCE.
func NewSource(cfg *config.Config) (imu.Source, error) {
	switch cfg.SampleSource {
	case config.SourceIMU:
		src, err := NewIMUSource(cfg)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceSerial:
		src, err := NewSerialSource(cfg)
		if err != nil {
			return nil, err
		}
		return src, nil
	case config.SourceMock:
		return imu.NewMockSource(cfg.SampleRateHz), nil
	default:
		return nil, errors.Errorf("unknown sample source %q", cfg.SampleSource)
	}
}
