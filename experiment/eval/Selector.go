package eval

import (
	"fmt"
	"os"
	"path/filepath"
)

// Best-model file names within the selector's directory
const (
	BestFinishFile = "best_finish.gob"
	BestStepsFile  = "best_steps.gob"
	BestScoreFile  = "best_score.gob"
)

// SelectorConfig sets the margin each criterion must improve by before
// its best model is replaced. Margins keep noisy evaluations from
// churning the saved models.
type SelectorConfig struct {
	FinishMargin int     // Additional finishes required
	StepsMargin  float64 // Required drop in mean steps-to-finish
	ScoreMargin  float64 // Required gain in composite score
}

// DefaultSelectorConfig returns the default selection margins
func DefaultSelectorConfig() SelectorConfig {
	return SelectorConfig{
		FinishMargin: 2,
		StepsMargin:  50,
		ScoreMargin:  500,
	}
}

// Selector tracks three best models independently: most finishes (ties
// broken by finish rate), fewest mean steps-to-finish among finishers,
// and highest composite score. Each is persisted to its own file only
// when an evaluation improves on it beyond the configured margin.
type Selector struct {
	config SelectorConfig
	dir    string

	haveFinish bool
	bestFinish int
	bestRate   float64

	haveSteps bool
	bestSteps float64

	haveScore bool
	bestScore float64
}

// NewSelector returns a Selector persisting best models into dir,
// creating the directory if needed
func NewSelector(dir string, config SelectorConfig) (*Selector, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("newselector: could not create model "+
			"directory: %v", err)
	}
	return &Selector{config: config, dir: dir}, nil
}

// Consider offers an evaluation result for the model stored at
// modelPath. It returns the names of the best-model files that were
// replaced.
func (s *Selector) Consider(result Result, modelPath string) ([]string,
	error) {
	var replaced []string

	if s.improvesFinish(result) {
		if err := copyFile(modelPath,
			filepath.Join(s.dir, BestFinishFile)); err != nil {
			return replaced, fmt.Errorf("consider: %v", err)
		}
		s.haveFinish = true
		s.bestFinish = result.Finishes
		s.bestRate = result.FinishRate
		replaced = append(replaced, BestFinishFile)
	}

	if s.improvesSteps(result) {
		if err := copyFile(modelPath,
			filepath.Join(s.dir, BestStepsFile)); err != nil {
			return replaced, fmt.Errorf("consider: %v", err)
		}
		s.haveSteps = true
		s.bestSteps = result.MeanStepsToFinish
		replaced = append(replaced, BestStepsFile)
	}

	if s.improvesScore(result) {
		if err := copyFile(modelPath,
			filepath.Join(s.dir, BestScoreFile)); err != nil {
			return replaced, fmt.Errorf("consider: %v", err)
		}
		s.haveScore = true
		s.bestScore = result.Score
		replaced = append(replaced, BestScoreFile)
	}

	return replaced, nil
}

func (s *Selector) improvesFinish(result Result) bool {
	if !s.haveFinish {
		return true
	}
	if result.Finishes >= s.bestFinish+s.config.FinishMargin {
		return true
	}
	// Same finish count across a different number of episodes can
	// still be a better policy
	return result.Finishes == s.bestFinish && result.FinishRate > s.bestRate
}

func (s *Selector) improvesSteps(result Result) bool {
	if result.Finishes == 0 {
		return false
	}
	if !s.haveSteps {
		return true
	}
	return result.MeanStepsToFinish <= s.bestSteps-s.config.StepsMargin
}

func (s *Selector) improvesScore(result Result) bool {
	if !s.haveScore {
		return true
	}
	return result.Score >= s.bestScore+s.config.ScoreMargin
}

// copyFile copies src to dest through a temporary file so readers
// never see a partially written model
func copyFile(src, dest string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("could not read %v: %v", src, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "model-*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temporary file: %v", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("could not write %v: %v", dest, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("could not close %v: %v", tmp.Name(), err)
	}

	return os.Rename(tmp.Name(), dest)
}
