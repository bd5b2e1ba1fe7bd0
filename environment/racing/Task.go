package racing

// StepInfo packages the auxiliary signals of one simulation step that
// the reward shaping consumes.
type StepInfo struct {
	// Progress is the reduction in distance to the expected
	// checkpoint's midpoint over the step
	Progress float64

	// Speed is the vehicle's scalar speed after the step
	Speed float64

	// DT is the integration timestep
	DT float64

	// HitWall is true when the step ended in a collision
	HitWall bool

	// OnGrass is true when the step started on the high-friction
	// surface
	OnGrass bool

	// Crossings are the checkpoint events of the step
	Crossings Crossings
}

// RewardConfig holds the reward shaping magnitudes. The relative
// structure of the terms is fixed; the magnitudes are tunable policy.
type RewardConfig struct {
	ProgressScale   float64 // per pixel of progress toward the checkpoint
	SpeedBonusScale float64 // per pixel/s of speed, only while progressing
	WallPenalty     float64
	GrassPenalty    float64 // per second on grass
	StepPenalty     float64 // constant time pressure
	IdleSpeed       float64 // |speed| below this counts as idle
	IdleGraceSteps  int     // idle steps tolerated before penalizing
	IdlePenalty     float64 // per idle step past the grace period
	CheckpointBonus float64
	LapBonus        float64
	FinishBonus     float64
	WrongWayPenalty float64
}

// DefaultRewardConfig returns the shaping magnitudes the trainer was
// tuned with.
func DefaultRewardConfig() RewardConfig {
	return RewardConfig{
		ProgressScale:   0.1,
		SpeedBonusScale: 0.0075,
		WallPenalty:     10.0,
		GrassPenalty:    2.0,
		StepPenalty:     0.005,
		IdleSpeed:       8.0,
		IdleGraceSteps:  30,
		IdlePenalty:     0.02,
		CheckpointBonus: 50.0,
		LapBonus:        200.0,
		FinishBonus:     500.0,
		WrongWayPenalty: 10.0,
	}
}

// Task computes the shaped per-step reward of the racing environment.
// It carries the idle counter, whose lifecycle is one episode.
type Task struct {
	cfg       RewardConfig
	idleSteps int
}

// NewTask returns a Task with the given shaping configuration.
func NewTask(cfg RewardConfig) *Task {
	return &Task{cfg: cfg}
}

// Reset clears per-episode task state.
func (t *Task) Reset() {
	t.idleSteps = 0
}

// Reward returns the shaped reward for one step.
func (t *Task) Reward(info StepInfo) float64 {
	reward := info.Progress * t.cfg.ProgressScale

	// Speed is only worth rewarding while it produces progress,
	// otherwise fast wall-grinding pays
	if info.Progress > 0 {
		reward += abs(info.Speed) * info.DT * t.cfg.SpeedBonusScale
	}

	if info.HitWall {
		reward -= t.cfg.WallPenalty
	}
	if info.OnGrass {
		reward -= t.cfg.GrassPenalty * info.DT
	}

	reward -= t.cfg.StepPenalty

	// Escalating idle penalty: near-zero speed with no progress is
	// tolerated for a grace period, then penalized every step
	if abs(info.Speed) < t.cfg.IdleSpeed && info.Progress <= 0 {
		t.idleSteps++
		if t.idleSteps > t.cfg.IdleGraceSteps {
			reward -= t.cfg.IdlePenalty
		}
	} else {
		t.idleSteps = 0
	}

	if info.Crossings.Checkpoint {
		reward += t.cfg.CheckpointBonus
	}
	if info.Crossings.Lap {
		reward += t.cfg.LapBonus
	}
	if info.Crossings.Finished {
		reward += t.cfg.FinishBonus
	}
	if info.Crossings.WrongWay {
		reward -= t.cfg.WrongWayPenalty
	}

	return reward
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
