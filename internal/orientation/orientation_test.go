package orientation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/motion_engine/internal/imu"
)

func tiltedTowardX(deg float64) imu.Sample {
	r := deg * math.Pi / 180
	return imu.Sample{X: math.Sin(r), Z: math.Cos(r)}
}

func TestPrincipalDirections(t *testing.T) {
	cases := []struct {
		s    imu.Sample
		want Direction
	}{
		{imu.Sample{Z: 1}, ZPos},
		{imu.Sample{Z: -1}, ZNeg},
		{imu.Sample{X: 1}, XPos},
		{imu.Sample{X: -1}, XNeg},
		{imu.Sample{Y: 1}, YPos},
		{imu.Sample{Y: -1}, YNeg},
	}
	for _, tc := range cases {
		t.Run(tc.want.String(), func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(Undetermined, tc.s))
		})
	}
}

func TestHysteresisHoldsZ(t *testing.T) {
	s := tiltedTowardX(50)

	assert.Equal(t, ZPos, Classify(ZPos, s), "inside the widened Z band")
	assert.Equal(t, XPos, Classify(Undetermined, s), "outside the plain 45 degree band")
}

func TestHysteresisHoldsX(t *testing.T) {
	// 40 degrees from vertical: Z when undetermined, X when already on X
	s := tiltedTowardX(40)
	assert.Equal(t, ZPos, Classify(Undetermined, s))
	assert.Equal(t, XPos, Classify(XPos, s))
}

func TestHysteresisYNarrowsBands(t *testing.T) {
	// horizontal, 40 degrees off the X axis toward Y
	r := 40 * math.Pi / 180
	s := imu.Sample{X: math.Cos(r), Y: math.Sin(r)}

	assert.Equal(t, XPos, Classify(Undetermined, s))
	assert.Equal(t, YPos, Classify(YPos, s))
}

func TestZeroVectorKeepsState(t *testing.T) {
	assert.Equal(t, YNeg, Classify(YNeg, imu.Sample{}))
}

func TestClassifierRemembersState(t *testing.T) {
	c := NewClassifier()
	assert.Equal(t, Undetermined, c.Direction())

	assert.Equal(t, ZPos, c.Classify(imu.Sample{Z: 1}))
	assert.Equal(t, ZPos, c.Classify(tiltedTowardX(55)))
	assert.Equal(t, XPos, c.Classify(tiltedTowardX(80)))
	assert.Equal(t, XPos, c.Direction())

	c.Init()
	assert.Equal(t, Undetermined, c.Direction())
}

func TestComputeAngles(t *testing.T) {
	a := ComputeAngles(imu.Sample{X: -1, Z: 1})
	assert.InDelta(t, 45, a.Tilt, 1e-9)
	assert.InDelta(t, 180, a.Azimuth, 1e-9)
}
