package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlgorithmTags(t *testing.T) {
	// tags are part of the event contract
	assert.Equal(t, Algorithm(1), Pedometer)
	assert.Equal(t, Algorithm(8), Fall)
	assert.Equal(t, Algorithm(64), Flip)
	assert.Equal(t, Algorithm(256), SleepStage)
	assert.Equal(t, Algorithm(511), AllAlgorithms)
}

func TestAlgorithmString(t *testing.T) {
	assert.Equal(t, "none", None.String())
	assert.Equal(t, "fall", Fall.String())
	assert.Equal(t, "pedometer|raise_hand|sleep", (Pedometer | RaiseHand | SleepStage).String())
	assert.Equal(t, "unknown", Algorithm(1<<20).String())
}

func TestParseAlgorithms(t *testing.T) {
	got, err := ParseAlgorithms(" pedometer, Fall ,raise_hand,")
	require.NoError(t, err)
	assert.Equal(t, Pedometer|Fall|RaiseHand, got)

	got, err = ParseAlgorithms("all")
	require.NoError(t, err)
	assert.Equal(t, AllAlgorithms, got)

	got, err = ParseAlgorithms("")
	require.NoError(t, err)
	assert.Equal(t, None, got)

	_, err = ParseAlgorithms("pedometer,teleport")
	assert.ErrorContains(t, err, `"teleport"`)
}

func TestEachVisitsSetBitsInOrder(t *testing.T) {
	var seen []Algorithm
	(SleepStage | Calorie | Shake).Each(func(a Algorithm) { seen = append(seen, a) })
	assert.Equal(t, []Algorithm{Calorie, Shake, SleepStage}, seen)
}
