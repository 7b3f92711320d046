// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_engine/internal/config"
	"github.com/relabs-tech/motion_engine/internal/imu"
)

// accelCodesPerG is the accelerometer sensitivity for each IMU_ACCEL_RANGE
// setting (±2g, ±4g, ±8g, ±16g).
var accelCodesPerG = [4]float64{16384, 8192, 4096, 2048}

// AccelCodesPerG returns the sensitivity of an accelerometer range setting.
func AccelCodesPerG(accelRange byte) float64 {
	if int(accelRange) >= len(accelCodesPerG) {
		return accelCodesPerG[0]
	}
	return accelCodesPerG[accelRange]
}

// IMUSource reads the MPU9250 accelerometer. It implements imu.Source and
// imu.RawSource.
type IMUSource struct {
	imu       *mpu9250.MPU9250
	codesPerG float64
	bias      imu.Bias
}

// NewIMUSource initializes the MPU9250 accelerometer over SPI using the
// IMU_* and ACCEL_BIAS_* settings.
func NewIMUSource(cfg *config.Config) (*IMUSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "IMU: periph host init")
	}

	cs := gpioreg.ByName(cfg.IMUCSPin)
	if cs == nil {
		return nil, errors.Errorf("IMU: CS pin %q not found", cfg.IMUCSPin)
	}

	tr, err := mpu9250.NewSpiTransport(cfg.IMUSPIDevice, cs)
	if err != nil {
		return nil, errors.Wrapf(err, "IMU: SPI transport (%s)", cfg.IMUSPIDevice)
	}

	dev, err := mpu9250.New(tr)
	if err != nil {
		return nil, errors.Wrap(err, "IMU: device creation")
	}

	if err := dev.Init(); err != nil {
		return nil, errors.Wrap(err, "IMU: initialization")
	}

	if err := dev.SetAccelRange(cfg.IMUAccelRange); err != nil {
		return nil, errors.Wrap(err, "IMU: set accel range")
	}
	log.Printf("IMU: accelerometer range set to %d (±%dg)", cfg.IMUAccelRange, []int{2, 4, 8, 16}[cfg.IMUAccelRange])

	if err := dev.Calibrate(); err != nil {
		log.Warnf("IMU: calibration failed: %v", err)
	} else {
		log.Println("IMU: calibration complete")
	}

	return &IMUSource{
		imu:       dev,
		codesPerG: AccelCodesPerG(cfg.IMUAccelRange),
		bias:      imu.Bias{X: cfg.AccelBiasX, Y: cfg.AccelBiasY, Z: cfg.AccelBiasZ},
	}, nil
}

// ReadRaw reads the accelerometer in device codes.
func (s *IMUSource) ReadRaw() (imu.AccelRaw, error) {
	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return imu.AccelRaw{}, errors.Wrap(err, "IMU accel X")
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return imu.AccelRaw{}, errors.Wrap(err, "IMU accel Y")
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return imu.AccelRaw{}, errors.Wrap(err, "IMU accel Z")
	}

	return imu.AccelRaw{
		Source: config.SourceIMU,
		Ax:     ax,
		Ay:     ay,
		Az:     az,
	}, nil
}

// Next reads one sample and converts it to bias corrected g.
func (s *IMUSource) Next() (imu.Sample, error) {
	raw, err := s.ReadRaw()
	if err != nil {
		return imu.Sample{}, err
	}
	return s.bias.Apply(raw, s.codesPerG), nil
}
