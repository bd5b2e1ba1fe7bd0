package eval

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModel(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func readBest(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(data)
}

func newTestSelector(t *testing.T) (*Selector, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSelector(dir, DefaultSelectorConfig())
	require.NoError(t, err)
	return s, dir
}

func TestFirstResultInitializesAllCriteria(t *testing.T) {
	s, dir := newTestSelector(t)
	model := writeModel(t, dir, "model_episode_50.gob", "m50")

	result := Result{
		Episodes:          20,
		Finishes:          3,
		FinishRate:        0.15,
		MeanStepsToFinish: 4000,
		Score:             -20000,
	}
	replaced, err := s.Consider(result, model)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{BestFinishFile, BestStepsFile, BestScoreFile}, replaced)
	assert.Equal(t, "m50", readBest(t, dir, BestFinishFile))
}

func TestStepsCriterionIgnoredWithoutFinishes(t *testing.T) {
	s, dir := newTestSelector(t)
	model := writeModel(t, dir, "model_episode_50.gob", "m50")

	replaced, err := s.Consider(Result{Episodes: 20, Score: -90000}, model)
	require.NoError(t, err)
	assert.ElementsMatch(t,
		[]string{BestFinishFile, BestScoreFile}, replaced)
	_, err = os.Stat(filepath.Join(dir, BestStepsFile))
	assert.True(t, os.IsNotExist(err))
}

func TestFinishMargin(t *testing.T) {
	s, dir := newTestSelector(t)
	first := writeModel(t, dir, "model_episode_50.gob", "m50")
	second := writeModel(t, dir, "model_episode_100.gob", "m100")

	_, err := s.Consider(Result{Episodes: 20, Finishes: 5,
		FinishRate: 0.25, MeanStepsToFinish: 4000, Score: 100000}, first)
	require.NoError(t, err)

	// One extra finish is within the margin
	replaced, err := s.Consider(Result{Episodes: 20, Finishes: 6,
		FinishRate: 0.3, MeanStepsToFinish: 4000, Score: 100000}, second)
	require.NoError(t, err)
	assert.NotContains(t, replaced, BestFinishFile)
	assert.Equal(t, "m50", readBest(t, dir, BestFinishFile))

	// Two extra finishes clear it
	replaced, err = s.Consider(Result{Episodes: 20, Finishes: 7,
		FinishRate: 0.35, MeanStepsToFinish: 4000, Score: 100000}, second)
	require.NoError(t, err)
	assert.Contains(t, replaced, BestFinishFile)
	assert.Equal(t, "m100", readBest(t, dir, BestFinishFile))
}

func TestFinishTieBrokenByRate(t *testing.T) {
	s, dir := newTestSelector(t)
	first := writeModel(t, dir, "model_episode_50.gob", "m50")
	second := writeModel(t, dir, "model_episode_100.gob", "m100")

	_, err := s.Consider(Result{Episodes: 20, Finishes: 5,
		FinishRate: 0.25, MeanStepsToFinish: 4000, Score: 0}, first)
	require.NoError(t, err)

	replaced, err := s.Consider(Result{Episodes: 10, Finishes: 5,
		FinishRate: 0.5, MeanStepsToFinish: 4000, Score: 0}, second)
	require.NoError(t, err)
	assert.Contains(t, replaced, BestFinishFile)
	assert.Equal(t, "m100", readBest(t, dir, BestFinishFile))
}

func TestStepsMargin(t *testing.T) {
	s, dir := newTestSelector(t)
	first := writeModel(t, dir, "model_episode_50.gob", "m50")
	second := writeModel(t, dir, "model_episode_100.gob", "m100")

	_, err := s.Consider(Result{Episodes: 20, Finishes: 5,
		FinishRate: 0.25, MeanStepsToFinish: 4000, Score: 0}, first)
	require.NoError(t, err)

	// 30 fewer steps is within the margin
	replaced, err := s.Consider(Result{Episodes: 20, Finishes: 5,
		FinishRate: 0.25, MeanStepsToFinish: 3970, Score: 0}, second)
	require.NoError(t, err)
	assert.NotContains(t, replaced, BestStepsFile)

	// 50 fewer steps clears it
	replaced, err = s.Consider(Result{Episodes: 20, Finishes: 5,
		FinishRate: 0.25, MeanStepsToFinish: 3950, Score: 0}, second)
	require.NoError(t, err)
	assert.Contains(t, replaced, BestStepsFile)
	assert.Equal(t, "m100", readBest(t, dir, BestStepsFile))
}

func TestScoreMargin(t *testing.T) {
	s, dir := newTestSelector(t)
	first := writeModel(t, dir, "model_episode_50.gob", "m50")
	second := writeModel(t, dir, "model_episode_100.gob", "m100")

	_, err := s.Consider(Result{Episodes: 20, Score: 1000}, first)
	require.NoError(t, err)

	replaced, err := s.Consider(Result{Episodes: 20, Score: 1400}, second)
	require.NoError(t, err)
	assert.NotContains(t, replaced, BestScoreFile)

	replaced, err = s.Consider(Result{Episodes: 20, Score: 1500}, second)
	require.NoError(t, err)
	assert.Contains(t, replaced, BestScoreFile)
	assert.Equal(t, "m100", readBest(t, dir, BestScoreFile))
}
