package motion

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_engine/internal/imu"
	"github.com/relabs-tech/motion_engine/internal/orientation"
	"github.com/relabs-tech/motion_engine/internal/peak"
	"github.com/relabs-tech/motion_engine/internal/pedometer"
	"github.com/relabs-tech/motion_engine/internal/sleep"
)

type event struct {
	Alg   Algorithm
	Value int32
}

// recorder is an EventSink that keeps every event for later assertions.
type recorder struct {
	events []event
}

func (r *recorder) Emit(alg Algorithm, value int32) {
	r.events = append(r.events, event{alg, value})
}

func (r *recorder) of(alg Algorithm) []int32 {
	var out []int32
	for _, ev := range r.events {
		if ev.Alg == alg {
			out = append(out, ev.Value)
		}
	}
	return out
}

type fakeSteps struct {
	steps    uint32
	activity pedometer.Activity
}

func (f *fakeSteps) Init()                        {}
func (f *fakeSteps) Process(x, y, z int16)        {}
func (f *fakeSteps) Steps() uint32                { return f.steps }
func (f *fakeSteps) Activity() pedometer.Activity { return f.activity }
func (f *fakeSteps) Reset()                       { f.steps, f.activity = 0, pedometer.Stationary }

func newEngine(t *testing.T, rate int, algs Algorithm) (*Engine, *recorder, *fakeSteps) {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	steps := &fakeSteps{}
	e := New(Config{RateHz: rate, StepEngine: steps, Logger: logger})
	rec := &recorder{}
	require.NoError(t, e.Init(rec))
	require.NoError(t, e.Enable(algs, true))
	return e, rec, steps
}

func feed(e *Engine, s imu.Sample, n int) {
	for i := 0; i < n; i++ {
		e.Process(s)
	}
}

func assertEvents(t *testing.T, want []event, rec *recorder) {
	t.Helper()
	if diff := cmp.Diff(want, rec.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

var (
	faceUp   = imu.Sample{Z: 1}
	faceDown = imu.Sample{Z: -1}
	sideways = imu.Sample{X: 1}
)

func TestSinkIsRequired(t *testing.T) {
	e := New(Config{})
	assert.Equal(t, DefaultRateHz, e.RateHz())

	assert.ErrorIs(t, e.Init(nil), ErrNoSink)
	assert.ErrorIs(t, e.Enable(Pedometer, true), ErrNoSink)
	assert.Equal(t, None, e.Enabled())

	// without a sink nothing runs, but time still advances
	e.Process(faceUp)
	assert.Equal(t, uint64(1), e.Timestep())
}

func TestDisabledAlgorithmsReportIdleValues(t *testing.T) {
	e, rec, _ := newEngine(t, 10, None)
	feed(e, faceUp, 20)

	AllAlgorithms.Each(func(alg Algorithm) {
		want := int32(0)
		if alg == SleepStage {
			want = int32(sleep.None)
		}
		assert.Equal(t, want, e.State(alg), alg.String())
	})
	assert.Empty(t, rec.events)
}

func TestRaiseHandIsEdgeTriggered(t *testing.T) {
	e, rec, _ := newEngine(t, 10, RaiseHand)

	feed(e, faceUp, 3)
	feed(e, sideways, 2)
	feed(e, faceUp, 1)

	assertEvents(t, []event{{RaiseHand, 1}, {RaiseHand, 0}, {RaiseHand, 1}}, rec)
	assert.Equal(t, int32(1), e.State(RaiseHand))
}

func TestFlipWithinOneSecond(t *testing.T) {
	const rate = 10
	e, rec, _ := newEngine(t, rate, Flip)

	feed(e, faceUp, 5)
	feed(e, sideways, rate-1)
	e.Process(faceDown)
	assert.Equal(t, int32(1), e.State(Flip))
	assertEvents(t, []event{{Flip, 1}}, rec)

	// holding face down does not fire again
	feed(e, faceDown, 5)
	assert.Equal(t, int32(0), e.State(Flip))
	assert.Len(t, rec.events, 1)

	// too slow
	feed(e, faceUp, 1)
	feed(e, sideways, rate)
	e.Process(faceDown)
	assert.Len(t, rec.events, 1)
}

func TestFallIsReportedWhileLatched(t *testing.T) {
	const rate = 10
	e, rec, _ := newEngine(t, rate, Fall)

	feed(e, faceUp, 30) // let the high-pass settle
	e.Process(imu.Sample{X: 10, Z: 1})
	feed(e, faceUp, rate) // post-impact settle delay
	feed(e, faceUp, 6)
	assert.Empty(t, rec.events)

	feed(e, faceUp, 4)
	assertEvents(t, []event{{Fall, 1}, {Fall, 1}, {Fall, 1}, {Fall, 1}}, rec)
	assert.Equal(t, int32(1), e.State(Fall))

	// re-enabling clears the latch
	require.NoError(t, e.Enable(Fall, false))
	require.NoError(t, e.Enable(Fall, true))
	feed(e, faceUp, 5)
	assert.Len(t, rec.events, 4)
}

func TestShakeGesture(t *testing.T) {
	const rate = 25
	e, rec, _ := newEngine(t, rate, None)
	e.SetShakeParams(ShakeParams{ThresholdG: 0.3, Duration: 1, Count: 2, TimeoutSec: 1.5, Axes: peak.ChannelXYZ})
	require.NoError(t, e.Enable(Shake, true))

	feed(e, faceUp, 2*rate)
	require.Empty(t, rec.events)

	e.Process(imu.Sample{X: 1, Z: 1})
	feed(e, faceUp, 9)
	e.Process(imu.Sample{X: 1, Z: 1})
	require.Empty(t, rec.events)
	e.Process(faceUp)

	assertEvents(t, []event{{Shake, int32(peak.EventXPos)}}, rec)
}

func TestShakeParamsApplyLive(t *testing.T) {
	const rate = 25
	e, rec, _ := newEngine(t, rate, Shake)
	e.SetShakeParams(ShakeParams{ThresholdG: 0.3, Duration: 1, Count: 2, TimeoutSec: 1.5, Axes: peak.ChannelY})

	feed(e, faceUp, 2*rate)
	for i := 0; i < 2; i++ {
		e.Process(imu.Sample{X: 1, Z: 1})
		feed(e, faceUp, 9)
	}
	assert.Empty(t, rec.events, "X is masked out")
	assert.Equal(t, peak.ChannelY, e.ShakeParams().Axes)
}

func TestSedentaryNagsEverySnooze(t *testing.T) {
	e, rec, _ := newEngine(t, 1, None)
	e.SetSedentaryParams(1, 1)
	require.NoError(t, e.Enable(Sedentary, true))

	feed(e, faceUp, 59)
	assert.Empty(t, rec.events)

	feed(e, faceUp, 121)
	assertEvents(t, []event{{Sedentary, 1}, {Sedentary, 1}, {Sedentary, 1}}, rec)
	assert.Equal(t, int32(1), e.State(Sedentary))
}

func TestQuietSleepStaysNone(t *testing.T) {
	e, rec, _ := newEngine(t, 1, SleepStage)
	feed(e, faceUp, 600)
	assert.Empty(t, rec.events)
	assert.Equal(t, int32(sleep.None), e.State(SleepStage))
}

func TestPedometerFamily(t *testing.T) {
	const rate = 5 // settle and calorie interval are 10 samples each
	e, rec, steps := newEngine(t, rate, Pedometer|Calorie|Activity)
	e.SetCalorieParams(1.8, 1800)

	feed(e, faceUp, 2*rate)
	feed(e, faceUp, 2*rate) // resting: one calorie per interval at 1800 kg
	require.Equal(t, []int32{1}, rec.of(Calorie))

	steps.steps = 3
	steps.activity = pedometer.Walk
	feed(e, faceUp, 2*rate)

	// 3 steps * (1/3 * 1.8 m) * 1800 kg / 800 = 4.05
	assertEvents(t, []event{
		{Calorie, 1},
		{Pedometer, 3},
		{Activity, int32(pedometer.Walk)},
		{Calorie, 5},
	}, rec)
	assert.Equal(t, int32(3), e.State(Pedometer))

	rec.events = nil
	steps.steps = 0
	steps.activity = pedometer.Stationary
	e.ResetPedometer()
	e.Process(faceUp)
	assert.Empty(t, rec.events)
	assert.Equal(t, int32(0), e.State(Pedometer))
	assert.Equal(t, int32(0), e.State(Calorie))
}

func TestPedometerResetRestartsEmission(t *testing.T) {
	const rate = 5
	e, rec, steps := newEngine(t, rate, Pedometer|Calorie|Activity)
	e.SetCalorieParams(1.8, 1800)

	feed(e, faceUp, 2*rate)
	steps.steps = 2
	steps.activity = pedometer.Walk
	feed(e, faceUp, 1)
	require.Equal(t, []int32{2}, rec.of(Pedometer))

	steps.steps = 0
	steps.activity = pedometer.Stationary
	e.ResetPedometer()
	rec.events = nil

	// resting calories accrue again from zero after a full interval
	feed(e, faceUp, 2*rate)
	assertEvents(t, []event{{Calorie, 1}}, rec)

	steps.steps = 2
	e.Process(faceUp)
	assertEvents(t, []event{{Calorie, 1}, {Pedometer, 2}}, rec)
}

func TestOnlyEnabledMembersOfPedometerFamilyEmit(t *testing.T) {
	e, rec, steps := newEngine(t, 5, Activity)
	feed(e, faceUp, 10)
	steps.steps = 7
	steps.activity = pedometer.Run
	e.Process(faceUp)

	assertEvents(t, []event{{Activity, int32(pedometer.Run)}}, rec)
	assert.Equal(t, int32(0), e.State(Pedometer))
}

func TestInitializationOnlyOnRisingEdge(t *testing.T) {
	e, rec, _ := newEngine(t, 10, RaiseHand)
	e.Process(faceUp)
	require.Len(t, rec.events, 1)

	// already enabled: no re-init, so no repeated edge
	require.NoError(t, e.Enable(RaiseHand, true))
	e.Process(faceUp)
	assert.Len(t, rec.events, 1)

	require.NoError(t, e.Enable(RaiseHand, false))
	e.Process(faceUp)
	require.NoError(t, e.Enable(RaiseHand, true))
	e.Process(faceUp)
	assertEvents(t, []event{{RaiseHand, 1}, {RaiseHand, 1}}, rec)
}

func TestOrientationSharedByRaiseAndFlip(t *testing.T) {
	e, _, _ := newEngine(t, 10, RaiseHand)
	e.Process(sideways)
	require.Equal(t, orientation.XPos, e.Direction())

	require.NoError(t, e.Enable(Flip, true))
	assert.Equal(t, orientation.XPos, e.Direction(), "classifier kept while raise-hand runs")

	require.NoError(t, e.Enable(RaiseHand|Flip, false))
	require.NoError(t, e.Enable(Flip, true))
	assert.Equal(t, orientation.Undetermined, e.Direction())
}

func TestEnableLogsInitialization(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	e := New(Config{RateHz: 10, StepEngine: &fakeSteps{}, Logger: logger})
	require.NoError(t, e.Init(&recorder{}))

	require.NoError(t, e.Enable(Fall|SleepStage, true))
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "initialized", entry.Message)
	assert.Equal(t, Fall|SleepStage, entry.Data["algorithms"])
}

func TestEventSinkFunc(t *testing.T) {
	var got []event
	e := New(Config{RateHz: 10, StepEngine: &fakeSteps{}})
	require.NoError(t, e.Init(EventSinkFunc(func(alg Algorithm, v int32) {
		got = append(got, event{alg, v})
	})))
	require.NoError(t, e.Enable(RaiseHand, true))
	e.Process(faceUp)
	assert.Equal(t, []event{{RaiseHand, 1}}, got)
}
