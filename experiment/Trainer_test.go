package experiment

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"

	"raceline/environment"
	"raceline/expreplay"
	"raceline/timestep"
)

// walkEnv is a deterministic environment whose car walks along the x
// axis, optionally standing still to trigger stall detection.
type walkEnv struct {
	episodeLen int
	stationary bool
	finishes   bool

	step int
	pos  r2.Vec
}

func (w *walkEnv) obs() timestep.TimeStep {
	v := mat.NewVecDense(2, []float64{w.pos.X, w.pos.Y})
	t := timestep.New(timestep.Mid, -0.005, 0.99, v, w.step)
	if w.step >= w.episodeLen {
		t.SetEnd()
	}
	if w.step == 0 {
		t = timestep.New(timestep.First, 0, 0.99, v, 0)
	}
	return t
}

func (w *walkEnv) Reset() timestep.TimeStep {
	w.step = 0
	w.pos = r2.Vec{}
	return w.obs()
}

func (w *walkEnv) Step(action int) (timestep.TimeStep, bool) {
	w.step++
	if !w.stationary {
		w.pos.X += 5
	}
	t := w.obs()
	return t, t.Last()
}

func (w *walkEnv) ObservationSpec() environment.Spec {
	shape := mat.NewVecDense(2, nil)
	return environment.NewSpec(shape, environment.Observation, shape,
		shape, environment.Continuous)
}

func (w *walkEnv) ActionSpec() environment.Spec {
	shape := mat.NewVecDense(1, nil)
	return environment.NewSpec(shape, environment.Action, shape,
		mat.NewVecDense(1, []float64{2}), environment.Discrete)
}

func (w *walkEnv) Position() r2.Vec { return w.pos }
func (w *walkEnv) Lap() int         { return 1 }
func (w *walkEnv) Finished() bool   { return w.finishes }
func (w *walkEnv) WallHits() int    { return 0 }
func (w *walkEnv) GrassFrames() int { return 0 }

// recordingAgent counts the trainer's interactions with the agent
type recordingAgent struct {
	gradientSteps int
	saves         []string
	epsilons      []float64
	learningRates []float64
	lr            float64
	eval          bool
}

func (r *recordingAgent) SelectAction(t timestep.TimeStep) (int, error) {
	return 0, nil
}

func (r *recordingAgent) Predict(obs []float64) ([]float64, error) {
	return []float64{0, 0, 0}, nil
}

func (r *recordingAgent) Step(batch *expreplay.Batch) (float64, error) {
	r.gradientSteps++
	return 0.5, nil
}

func (r *recordingAgent) SetLearningRate(lr float64) error {
	r.lr = lr
	r.learningRates = append(r.learningRates, lr)
	return nil
}

func (r *recordingAgent) LearningRate() float64      { return r.lr }
func (r *recordingAgent) SetEpsilon(epsilon float64) { r.epsilons = append(r.epsilons, epsilon) }
func (r *recordingAgent) Eval()                      { r.eval = true }
func (r *recordingAgent) Train()                     { r.eval = false }
func (r *recordingAgent) IsEval() bool               { return r.eval }

func (r *recordingAgent) Save(path string) error {
	r.saves = append(r.saves, path)
	return os.WriteFile(path, []byte("model"), 0o644)
}

func (r *recordingAgent) Load(path string) error { return nil }

func testTrainerConfig(t *testing.T) Config {
	config := DefaultConfig()
	config.MaxEpisodes = 10
	config.MaxSteps = 30
	config.WarmupEpisodes = 5
	config.TrainInterval = 3
	config.MilestoneInterval = 50
	config.Replay.MinCapacity = 4
	config.Replay.BatchSize = 4
	config.Eval.Episodes = 2
	config.Eval.MaxSteps = 30
	config.ModelDir = filepath.Join(t.TempDir(), "models")
	return config
}

func TestWarmupDelaysGradientUpdates(t *testing.T) {
	env := &walkEnv{episodeLen: 30}
	a := &recordingAgent{}
	config := testTrainerConfig(t)
	config.MaxEpisodes = config.WarmupEpisodes - 1

	trainer, err := New(env, a, config)
	require.NoError(t, err)
	require.NoError(t, trainer.Run(context.Background()))
	assert.Zero(t, a.gradientSteps)
}

func TestTrainsEveryIntervalAfterWarmup(t *testing.T) {
	env := &walkEnv{episodeLen: 30}
	a := &recordingAgent{}
	config := testTrainerConfig(t)

	trainer, err := New(env, a, config)
	require.NoError(t, err)
	require.NoError(t, trainer.Run(context.Background()))

	// Training starts on the warmup episode itself: episodes 5..10 of
	// 30 steps, one update per 3 steps
	assert.Equal(t, 6*10, a.gradientSteps)
}

func TestGradientUpdatesStartOnWarmupEpisode(t *testing.T) {
	env := &walkEnv{episodeLen: 30}
	a := &recordingAgent{}
	config := testTrainerConfig(t)
	config.MaxEpisodes = config.WarmupEpisodes

	trainer, err := New(env, a, config)
	require.NoError(t, err)
	require.NoError(t, trainer.Run(context.Background()))
	assert.Equal(t, 10, a.gradientSteps)
}

func TestEpsilonDecaysPerEpisode(t *testing.T) {
	env := &walkEnv{episodeLen: 5}
	a := &recordingAgent{}
	config := testTrainerConfig(t)
	config.MaxEpisodes = 3

	trainer, err := New(env, a, config)
	require.NoError(t, err)
	require.NoError(t, trainer.Run(context.Background()))

	require.Len(t, a.epsilons, 3)
	assert.Equal(t, 1.0, a.epsilons[0])
	assert.InDelta(t, 0.995, a.epsilons[1], 1e-12)
	assert.InDelta(t, 0.995*0.995, a.epsilons[2], 1e-12)
}

func TestEpsilonFloor(t *testing.T) {
	env := &walkEnv{episodeLen: 2}
	a := &recordingAgent{}
	config := testTrainerConfig(t)
	config.MaxEpisodes = 5
	config.Epsilon.Start = 0.01
	config.Epsilon.Decay = 0.5
	config.Epsilon.Min = 0.005

	trainer, err := New(env, a, config)
	require.NoError(t, err)
	require.NoError(t, trainer.Run(context.Background()))

	last := a.epsilons[len(a.epsilons)-1]
	assert.Equal(t, 0.005, last)
}

func TestStallEndsEpisodeEarly(t *testing.T) {
	env := &walkEnv{episodeLen: 1000, stationary: true}
	a := &recordingAgent{}
	config := testTrainerConfig(t)
	config.MaxEpisodes = 1
	config.MaxSteps = 1000
	config.Stall.CheckInterval = 75
	config.Stall.MaxStrikes = 3

	trainer, err := New(env, a, config)
	require.NoError(t, err)

	stats, err := trainer.runEpisode(context.Background(), 1)
	require.NoError(t, err)

	// Three failed checks at 75-step spacing
	assert.Equal(t, 225, stats.Steps)
	// Step penalty accumulates alongside the stall penalty
	assert.InDelta(t, -50.0-0.005*225, stats.Reward, 1e-9)
}

func TestBudgetExhaustionStoresTerminalTransition(t *testing.T) {
	env := &walkEnv{episodeLen: 1000}
	a := &recordingAgent{}
	config := testTrainerConfig(t)
	config.MaxEpisodes = 1
	config.MaxSteps = 1
	config.Replay.MinCapacity = 1
	config.Replay.BatchSize = 1

	trainer, err := New(env, a, config)
	require.NoError(t, err)

	stats, err := trainer.runEpisode(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Steps)

	// The transition that exhausts the step budget must carry a zero
	// discount so the update target does not bootstrap past it
	batch, err := trainer.replay.Sample()
	require.NoError(t, err)
	assert.Equal(t, 0.0, batch.Discounts[0])
}

func TestMovingCarDoesNotStall(t *testing.T) {
	env := &walkEnv{episodeLen: 300}
	a := &recordingAgent{}
	config := testTrainerConfig(t)
	config.MaxEpisodes = 1
	config.MaxSteps = 300

	trainer, err := New(env, a, config)
	require.NoError(t, err)

	stats, err := trainer.runEpisode(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 300, stats.Steps)
}

func TestMilestoneSavesAndSelects(t *testing.T) {
	env := &walkEnv{episodeLen: 10}
	a := &recordingAgent{}
	config := testTrainerConfig(t)
	config.MaxEpisodes = 4
	config.MilestoneInterval = 2

	trainer, err := New(env, a, config)
	require.NoError(t, err)
	require.NoError(t, trainer.Run(context.Background()))

	assert.FileExists(t,
		filepath.Join(config.ModelDir, "model_episode_2.gob"))
	assert.FileExists(t,
		filepath.Join(config.ModelDir, "model_episode_4.gob"))
	// First milestone initializes the best-score model
	assert.FileExists(t, filepath.Join(config.ModelDir, "best_score.gob"))
	// Evaluation restored training mode
	assert.False(t, a.IsEval())
}

func TestLearningRateDropsOnFirstFinish(t *testing.T) {
	env := &walkEnv{episodeLen: 5, finishes: true}
	a := &recordingAgent{}
	config := testTrainerConfig(t)
	config.MaxEpisodes = 1

	trainer, err := New(env, a, config)
	require.NoError(t, err)
	require.NoError(t, trainer.Run(context.Background()))

	// Initial rate at construction, then the first-finish drop
	require.GreaterOrEqual(t, len(a.learningRates), 2)
	assert.Equal(t, 1e-3, a.learningRates[0])
	assert.Equal(t, 3e-4, a.learningRates[1])
}

func TestLearningRateDropsOnStableRate(t *testing.T) {
	env := &walkEnv{episodeLen: 5, finishes: true}
	a := &recordingAgent{}
	config := testTrainerConfig(t)
	config.MaxEpisodes = 25
	config.LearningRate.StableWindow = 20
	config.LearningRate.StableRate = 0.5

	trainer, err := New(env, a, config)
	require.NoError(t, err)
	require.NoError(t, trainer.Run(context.Background()))

	// Initial, first finish, then the stable drop exactly once
	assert.Equal(t, []float64{1e-3, 3e-4, 1e-4}, a.learningRates)
	assert.Equal(t, 1e-4, a.LearningRate())
}

func TestCancellationSavesFinalModel(t *testing.T) {
	env := &walkEnv{episodeLen: 10}
	a := &recordingAgent{}
	config := testTrainerConfig(t)
	config.MaxEpisodes = 0 // unlimited

	trainer, err := New(env, a, config)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, trainer.Run(ctx))
	assert.FileExists(t, filepath.Join(config.ModelDir, FinalModelFile))
}
