package deepq

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"raceline/environment"
	"raceline/expreplay"
	"raceline/timestep"
	"raceline/utils/floatutils"
)

// mockEnv is a minimal discrete-action environment for constructing
// agents in tests.
type mockEnv struct {
	features   int
	numActions int
}

func (m *mockEnv) Reset() timestep.TimeStep {
	obs := mat.NewVecDense(m.features, nil)
	return timestep.New(timestep.First, 0, 1.0, obs, 0)
}

func (m *mockEnv) Step(action int) (timestep.TimeStep, bool) {
	obs := mat.NewVecDense(m.features, nil)
	return timestep.New(timestep.Mid, 0, 1.0, obs, 1), false
}

func (m *mockEnv) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(m.features, nil)
	bounds := mat.NewVecDense(m.features, nil)
	return environment.NewSpec(shape, environment.Observation, bounds,
		bounds, environment.Continuous)
}

func (m *mockEnv) ActionSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	lower := mat.NewVecDense(1, []float64{0})
	upper := mat.NewVecDense(1, []float64{float64(m.numActions - 1)})
	return environment.NewSpec(shape, environment.Action, lower, upper,
		environment.Discrete)
}

func testConfig(batchSize int) Config {
	config := DefaultConfig()
	config.Hidden = []int{8, 8}
	config.BatchSize = batchSize
	config.Solver.Batch = batchSize
	return config
}

func newTestAgent(t *testing.T, features, numActions, batchSize int) *DeepQ {
	t.Helper()
	env := &mockEnv{features: features, numActions: numActions}
	agent, err := New(env, testConfig(batchSize), 41)
	require.NoError(t, err)
	t.Cleanup(func() { agent.Close() })
	return agent
}

func randomBatch(features, numActions, size int, seed uint64) *expreplay.Batch {
	rng := rand.New(rand.NewSource(seed))
	batch := &expreplay.Batch{
		States:     make([]float64, size*features),
		Actions:    make([]int, size),
		Rewards:    make([]float64, size),
		Discounts:  make([]float64, size),
		NextStates: make([]float64, size*features),
		Size:       size,
	}
	for i := range batch.States {
		batch.States[i] = rng.Float64()
		batch.NextStates[i] = rng.Float64()
	}
	for i := 0; i < size; i++ {
		batch.Actions[i] = rng.Intn(numActions)
		batch.Rewards[i] = rng.Float64()
		batch.Discounts[i] = 0.99
	}
	return batch
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	env := &mockEnv{features: 4, numActions: 3}

	config := testConfig(8)
	config.Tau = 0
	_, err := New(env, config, 41)
	assert.Error(t, err)

	config = testConfig(8)
	config.Solver.Batch = 16
	_, err = New(env, config, 41)
	assert.Error(t, err)

	config = testConfig(8)
	config.Hidden = nil
	_, err = New(env, config, 41)
	assert.Error(t, err)
}

func TestPredictShapeAndDeterminism(t *testing.T) {
	agent := newTestAgent(t, 4, 3, 8)

	obs := []float64{0.1, -0.2, 0.3, 0.4}
	first, err := agent.Predict(obs)
	require.NoError(t, err)
	assert.Len(t, first, 3)

	second, err := agent.Predict(obs)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = agent.Predict([]float64{1, 2})
	assert.Error(t, err)
}

func TestSelectActionGreedyInEvalMode(t *testing.T) {
	agent := newTestAgent(t, 4, 3, 8)
	agent.Eval()
	require.True(t, agent.IsEval())

	obs := mat.NewVecDense(4, []float64{0.1, -0.2, 0.3, 0.4})
	step := timestep.New(timestep.First, 0, 1.0, obs, 0)

	values, err := agent.Predict([]float64{0.1, -0.2, 0.3, 0.4})
	require.NoError(t, err)
	want := floatutils.ArgMax(values)

	for i := 0; i < 10; i++ {
		action, err := agent.SelectAction(step)
		require.NoError(t, err)
		assert.Equal(t, want, action)
	}
}

func TestSelectActionExploresInTrainMode(t *testing.T) {
	agent := newTestAgent(t, 4, 3, 8)
	agent.Train()
	agent.SetEpsilon(1.0)

	obs := mat.NewVecDense(4, nil)
	step := timestep.New(timestep.First, 0, 1.0, obs, 0)

	seen := make(map[int]bool)
	for i := 0; i < 100; i++ {
		action, err := agent.SelectAction(step)
		require.NoError(t, err)
		require.GreaterOrEqual(t, action, 0)
		require.Less(t, action, 3)
		seen[action] = true
	}
	assert.Len(t, seen, 3)
}

func TestStepReturnsFiniteLoss(t *testing.T) {
	agent := newTestAgent(t, 4, 3, 8)
	batch := randomBatch(4, 3, 8, 7)

	for i := 0; i < 5; i++ {
		loss, err := agent.Step(batch)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(loss))
		assert.False(t, math.IsInf(loss, 0))
		assert.GreaterOrEqual(t, loss, 0.0)
	}
}

func TestStepLossMatchesBootstrapTarget(t *testing.T) {
	features, numActions, batchSize := 4, 3, 8
	agent := newTestAgent(t, features, numActions, batchSize)

	batch := randomBatch(features, numActions, batchSize, 11)
	// A terminal transition in the batch must bootstrap nothing
	batch.Discounts[0] = 0.0

	// Every network starts from the same weights, so the double-Q
	// target reduces to reward + discount*max_a Q(next, a) and the
	// expected first-step loss is computable from Predict alone.
	want := 0.0
	for i := 0; i < batchSize; i++ {
		state := batch.States[i*features : (i+1)*features]
		next := batch.NextStates[i*features : (i+1)*features]

		qs, err := agent.Predict(state)
		require.NoError(t, err)
		qNext, err := agent.Predict(next)
		require.NoError(t, err)

		target := batch.Rewards[i] +
			batch.Discounts[i]*qNext[floatutils.ArgMax(qNext)]
		diff := target - qs[batch.Actions[i]]
		want += diff * diff
	}
	want /= float64(batchSize)

	loss, err := agent.Step(batch)
	require.NoError(t, err)
	assert.InDelta(t, want, loss, 1e-9)
}

func TestStepChangesPredictions(t *testing.T) {
	agent := newTestAgent(t, 4, 3, 8)
	obs := []float64{0.1, -0.2, 0.3, 0.4}

	before, err := agent.Predict(obs)
	require.NoError(t, err)

	batch := randomBatch(4, 3, 8, 7)
	for i := 0; i < 10; i++ {
		_, err := agent.Step(batch)
		require.NoError(t, err)
	}

	after, err := agent.Predict(obs)
	require.NoError(t, err)
	assert.NotEqual(t, before, after)
}

func TestStepRejectsBadBatches(t *testing.T) {
	agent := newTestAgent(t, 4, 3, 8)

	wrongSize := randomBatch(4, 3, 4, 7)
	_, err := agent.Step(wrongSize)
	assert.Error(t, err)

	badAction := randomBatch(4, 3, 8, 7)
	badAction.Actions[3] = 9
	_, err = agent.Step(badAction)
	assert.Error(t, err)
}

func TestLearningRateSchedule(t *testing.T) {
	agent := newTestAgent(t, 4, 3, 8)
	assert.Equal(t, 1e-3, agent.LearningRate())

	require.NoError(t, agent.SetLearningRate(3e-4))
	assert.Equal(t, 3e-4, agent.LearningRate())

	assert.Error(t, agent.SetLearningRate(0))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")
	agent := newTestAgent(t, 4, 3, 8)
	obs := []float64{0.1, -0.2, 0.3, 0.4}

	want, err := agent.Predict(obs)
	require.NoError(t, err)
	require.NoError(t, agent.Save(path))

	// Drift the weights away from the saved snapshot
	batch := randomBatch(4, 3, 8, 7)
	for i := 0; i < 10; i++ {
		_, err := agent.Step(batch)
		require.NoError(t, err)
	}

	require.NoError(t, agent.Load(path))
	got, err := agent.Predict(obs)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-12)
}

func TestLoadRejectsMismatchedArchitecture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")
	agent := newTestAgent(t, 4, 3, 8)
	require.NoError(t, agent.Save(path))

	other := newTestAgent(t, 6, 3, 8)
	assert.Error(t, other.Load(path))
}
