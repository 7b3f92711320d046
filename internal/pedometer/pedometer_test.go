package pedometer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_engine/internal/imu"
)

type fakeEngine struct {
	inits, resets int
	processed     [][3]int16
	steps         uint32
	activity      Activity
}

func (f *fakeEngine) Init() { f.inits++ }

func (f *fakeEngine) Process(x, y, z int16) {
	f.processed = append(f.processed, [3]int16{x, y, z})
}

func (f *fakeEngine) Steps() uint32      { return f.steps }
func (f *fakeEngine) Activity() Activity { return f.activity }

func (f *fakeEngine) Reset() {
	f.resets++
	f.steps = 0
	f.activity = Stationary
}

const rate = 5 // settle and interval are both 10 samples

func TestToCode(t *testing.T) {
	assert.Equal(t, int16(512), ToCode(1))
	assert.Equal(t, int16(0), ToCode(0))
	assert.Equal(t, int16(-255), ToCode(-0.5))
	assert.Equal(t, int16(math.MaxInt16), ToCode(100))
	assert.Equal(t, int16(math.MinInt16), ToCode(-100))
}

func TestStrideFraction(t *testing.T) {
	cases := map[uint32]float64{
		0: 0.2, 1: 0.2, 2: 0.25, 3: 1.0 / 3, 4: 0.5,
		5: 1.0 / 1.2, 6: 1.0, 7: 1.0, 8: 1.2, 20: 1.2,
	}
	for steps, want := range cases {
		assert.InDelta(t, want, StrideFraction(steps), 1e-12, "steps=%d", steps)
	}
}

func TestEngineWaitsForFilterToSettle(t *testing.T) {
	f := &fakeEngine{}
	a := New(f, rate)
	require.Equal(t, 1, f.inits)

	for i := 0; i < settleSeconds*rate; i++ {
		a.Process(imu.Sample{Z: 1})
	}
	assert.Empty(t, f.processed)

	a.Process(imu.Sample{Z: 1})
	assert.Len(t, f.processed, 1)
}

func settle(a *Adapter) {
	for i := 0; i < settleSeconds*rate; i++ {
		a.Process(imu.Sample{Z: 1})
	}
}

func TestRestingCalories(t *testing.T) {
	f := &fakeEngine{}
	a := New(f, rate)
	settle(a)

	for i := 0; i < intervalSeconds*rate-1; i++ {
		a.Process(imu.Sample{Z: 1})
	}
	assert.Zero(t, a.Calories())

	a.Process(imu.Sample{Z: 1})
	assert.InDelta(t, DefaultWeightKg/1800, a.Calories(), 1e-12)
}

func TestWalkingCalories(t *testing.T) {
	f := &fakeEngine{}
	a := New(f, rate)
	a.SetParams(1.6, 60)
	settle(a)

	for i := 0; i < intervalSeconds*rate; i++ {
		if i == 3 {
			f.steps = 4
			f.activity = Walk
		}
		a.Process(imu.Sample{Z: 1})
	}

	assert.Equal(t, uint32(4), a.Steps())
	assert.Equal(t, Walk, a.Activity())
	// 4 steps * (0.5 * 1.6 m) * 60 kg / 800
	assert.InDelta(t, 4*0.8*60.0/800, a.Calories(), 1e-12)

	// no new steps in the next interval: resting increment only
	for i := 0; i < intervalSeconds*rate; i++ {
		a.Process(imu.Sample{Z: 1})
	}
	assert.InDelta(t, 4*0.8*60.0/800+60.0/1800, a.Calories(), 1e-12)
}

func TestResetZeroesCounters(t *testing.T) {
	f := &fakeEngine{}
	a := New(f, rate)
	settle(a)
	f.steps = 12
	f.activity = Run
	for i := 0; i < intervalSeconds*rate; i++ {
		a.Process(imu.Sample{Z: 1})
	}
	require.NotZero(t, a.Calories())

	a.Reset()
	assert.Equal(t, 1, f.resets)
	assert.Zero(t, a.Steps())
	assert.Zero(t, a.Calories())
	assert.Equal(t, Stationary, a.Activity())

	// the filter stays settled across a reset
	a.Process(imu.Sample{Z: 1})
	assert.Len(t, f.processed, intervalSeconds*rate+1)
}

func TestActivityNames(t *testing.T) {
	assert.Equal(t, "walk", Walk.String())
	assert.Equal(t, "run", Run.String())
	assert.Equal(t, "stationary", Stationary.String())
	assert.Equal(t, "unknown", Activity(2).String())
}
