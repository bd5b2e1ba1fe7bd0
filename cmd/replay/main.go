// Command replay runs the greedy policy of a saved model on a track,
// headlessly, and reports one line per episode.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"raceline/agent/deepq"
	"raceline/environment/racing"
	"raceline/environment/track"
)

func main() {
	var (
		modelPath = flag.String("model", "models/best_score.gob", "model checkpoint to replay")
		trackPath = flag.String("track", "track.png", "track surface map (PNG)")
		episodes  = flag.Int("episodes", 5, "number of episodes to run")
		maxSteps  = flag.Int("max-steps", 7500, "step budget per episode")
		discount  = flag.Float64("discount", 0.99, "discount factor")
		seed      = flag.Int64("seed", 192382, "random seed")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	m, err := track.Load(*trackPath)
	if err != nil {
		log.Fatalf("replay: could not load track: %v", err)
	}

	ring, err := racing.NewRing(racing.DefaultCheckpoints(),
		racing.DefaultTotalLaps)
	if err != nil {
		log.Fatalf("replay: %v", err)
	}
	task := racing.NewTask(racing.DefaultRewardConfig())

	env, err := racing.New(m, ring, task, racing.DefaultPhysics(),
		racing.DefaultStart, racing.DefaultStartAngle, *discount)
	if err != nil {
		log.Fatalf("replay: could not create environment: %v", err)
	}

	a, err := deepq.New(env, deepq.DefaultConfig(), *seed)
	if err != nil {
		log.Fatalf("replay: could not create agent: %v", err)
	}
	defer a.Close()

	if err := a.Load(*modelPath); err != nil {
		log.Fatalf("replay: could not load model: %v", err)
	}
	a.Eval()

	for episode := 1; episode <= *episodes; episode++ {
		if ctx.Err() != nil {
			log.Printf("replay cancelled")
			return
		}

		step := env.Reset()
		var reward float64
		steps := 0
		for !step.Last() && steps < *maxSteps {
			action, err := a.SelectAction(step)
			if err != nil {
				log.Fatalf("replay: %v", err)
			}
			step, _ = env.Step(action)
			reward += step.Reward
			steps++
		}

		outcome := "did not finish"
		if env.Finished() {
			outcome = "finished"
		}
		log.Printf("episode %d: %s  steps %d  reward %.2f  laps %d  "+
			"wall hits %d  grass frames %d", episode, outcome, steps,
			reward, env.Lap(), env.WallHits(), env.GrassFrames())
	}
}
