package expreplay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"raceline/timestep"
)

// transition builds a transition whose state components all equal id,
// so samples can be traced back to their insertion.
func transition(id int, features int) timestep.Transition {
	state := make([]float64, features)
	next := make([]float64, features)
	for i := range state {
		state[i] = float64(id)
		next[i] = float64(id) + 0.5
	}
	return timestep.Transition{
		State:     mat.NewVecDense(features, state),
		Action:    id % 7,
		Reward:    float64(id),
		Discount:  0.99,
		NextState: mat.NewVecDense(features, next),
	}
}

func TestNewValidates(t *testing.T) {
	_, err := New(0, 10, 3, 2, 1)
	assert.Error(t, err)

	_, err = New(1, 0, 3, 2, 1)
	assert.Error(t, err)

	_, err = New(1, 4, 3, 8, 1)
	assert.Error(t, err, "batch larger than capacity")
}

func TestRefusesToSampleUntilFilled(t *testing.T) {
	batchSize := 4
	buffer, err := New(batchSize, 16, 3, batchSize, 42)
	require.NoError(t, err)

	_, err = buffer.Sample()
	assert.True(t, IsEmptyBuffer(err))

	for i := 0; i < batchSize-1; i++ {
		require.NoError(t, buffer.Add(transition(i, 3)))
		assert.False(t, buffer.CanSample())

		_, err = buffer.Sample()
		assert.True(t, IsInsufficientSamples(err))
	}

	require.NoError(t, buffer.Add(transition(batchSize-1, 3)))
	assert.True(t, buffer.CanSample())

	batch, err := buffer.Sample()
	require.NoError(t, err)
	assert.Equal(t, batchSize, batch.Size)
}

func TestFifoEviction(t *testing.T) {
	capacity := 8
	buffer, err := New(1, capacity, 2, 1, 42)
	require.NoError(t, err)

	// Insert more than capacity: size stabilizes at capacity and the
	// earliest survivor is the (capacity+1)-th insert
	total := capacity + 5
	for i := 1; i <= total; i++ {
		require.NoError(t, buffer.Add(transition(i, 2)))
		assert.LessOrEqual(t, buffer.Capacity(), capacity)
	}

	assert.Equal(t, capacity, buffer.Capacity())

	oldestID := buffer.rewardCache[buffer.oldest()]
	assert.Equal(t, float64(total-capacity+1), oldestID)
}

func TestSampleContents(t *testing.T) {
	buffer, err := New(1, 4, 3, 2, 7)
	require.NoError(t, err)

	require.NoError(t, buffer.Add(transition(9, 3)))
	require.NoError(t, buffer.Add(transition(9, 3)))

	batch, err := buffer.Sample()
	require.NoError(t, err)

	assert.Equal(t, []float64{9, 9, 9, 9, 9, 9}, batch.States)
	assert.Equal(t, []float64{9.5, 9.5, 9.5, 9.5, 9.5, 9.5}, batch.NextStates)
	assert.Equal(t, []int{2, 2}, batch.Actions)
	assert.Equal(t, []float64{9, 9}, batch.Rewards)
	assert.Equal(t, []float64{0.99, 0.99}, batch.Discounts)
}

func TestAddRejectsWrongFeatureSize(t *testing.T) {
	buffer, err := New(1, 4, 3, 2, 7)
	require.NoError(t, err)

	err = buffer.Add(transition(1, 5))
	assert.Error(t, err)
}
