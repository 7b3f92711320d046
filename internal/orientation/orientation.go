// Package orientation classifies which principal axis gravity points along.
package orientation

import (
	"math"

	"github.com/relabs-tech/motion_engine/internal/imu"
)

// Direction is the principal axis the gravity vector points along.
type Direction int

const (
	Undetermined Direction = iota
	XPos
	XNeg
	YPos
	YNeg
	ZPos
	ZNeg
)

func (d Direction) String() string {
	switch d {
	case XPos:
		return "x+"
	case XNeg:
		return "x-"
	case YPos:
		return "y+"
	case YNeg:
		return "y-"
	case ZPos:
		return "z+"
	case ZNeg:
		return "z-"
	default:
		return "undetermined"
	}
}

const (
	switchThresholdDeg = 45.0
	hysteresisDeg      = 15.0
)

// Angles describes the gravity vector in degrees.
type Angles struct {
	Tilt    float64 `json:"tilt"`    // from +Z, 0..180
	Azimuth float64 `json:"azimuth"` // from +X within the XY plane, 0..180
}

// ComputeAngles returns the tilt from vertical and the azimuth of the
// horizontal projection:
//
//	tilt    = acos(z / |g|)
//	azimuth = acos(x / |g_xy|)
//
// Angles are NaN when the respective magnitude is zero.
func ComputeAngles(s imu.Sample) Angles {
	gMag := math.Sqrt(s.X*s.X + s.Y*s.Y + s.Z*s.Z)
	xyMag := math.Sqrt(s.X*s.X + s.Y*s.Y)

	return Angles{
		Tilt:    math.Acos(s.Z/gMag) * 180.0 / math.Pi,
		Azimuth: math.Acos(s.X/xyMag) * 180.0 / math.Pi,
	}
}

// thresholds widens the band of the axis currently occupied and narrows the
// others, so a sample near a boundary keeps the previous classification.
func thresholds(prev Direction) (thZ, thX float64) {
	switch prev {
	case ZPos, ZNeg:
		return switchThresholdDeg + hysteresisDeg, switchThresholdDeg
	case YPos, YNeg:
		return switchThresholdDeg - hysteresisDeg, switchThresholdDeg - hysteresisDeg
	case XPos, XNeg:
		return switchThresholdDeg - hysteresisDeg, switchThresholdDeg + hysteresisDeg
	default:
		return switchThresholdDeg, switchThresholdDeg
	}
}

// Classify maps a sample to a direction given the previous one. A zero
// vector carries no direction, so prev is returned unchanged.
func Classify(prev Direction, s imu.Sample) Direction {
	if s.X == 0 && s.Y == 0 && s.Z == 0 {
		return prev
	}

	ang := ComputeAngles(s)
	thZ, thX := thresholds(prev)

	switch {
	case ang.Tilt < thZ || ang.Tilt > 180-thZ:
		if s.Z > 0 {
			return ZPos
		}
		return ZNeg
	case ang.Azimuth < thX || ang.Azimuth > 180-thX:
		if s.X > 0 {
			return XPos
		}
		return XNeg
	default:
		if s.Y > 0 {
			return YPos
		}
		return YNeg
	}
}

// Classifier keeps the previous direction between samples.
type Classifier struct {
	dir Direction
}

// NewClassifier returns a classifier in the undetermined state.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Init forgets the previous direction.
func (c *Classifier) Init() {
	c.dir = Undetermined
}

// Classify updates and returns the current direction.
func (c *Classifier) Classify(s imu.Sample) Direction {
	c.dir = Classify(c.dir, s)
	return c.dir
}

// Direction returns the current direction without updating it.
func (c *Classifier) Direction() Direction {
	return c.dir
}
