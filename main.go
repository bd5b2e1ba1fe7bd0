package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"raceline/agent/deepq"
	"raceline/environment/racing"
	"raceline/environment/track"
	"raceline/experiment"
	"raceline/experiment/tracker"
)

// config is the full configuration of a training run, loadable from a
// JSON file with command-line overrides on top
type config struct {
	TrackPath string
	Discount  float64
	Seed      int64

	Agent   deepq.Config
	Trainer experiment.Config

	SQLitePath  string // Empty disables the sqlite tracker
	MonitorAddr string // Empty disables the live monitor
}

func defaultConfig() config {
	return config{
		TrackPath: "track.png",
		Discount:  0.99,
		Seed:      192382,
		Agent:     deepq.DefaultConfig(),
		Trainer:   experiment.DefaultConfig(),
	}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("could not read config: %v", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("could not parse config: %v", err)
	}
	return cfg, nil
}

func main() {
	var (
		configPath  = flag.String("config", "", "JSON configuration file")
		trackPath   = flag.String("track", "", "track surface map (PNG)")
		modelDir    = flag.String("models", "", "model checkpoint directory")
		statsDir    = flag.String("stats", "", "statistics directory")
		episodes    = flag.Int("episodes", -1, "episode budget, 0 trains until interrupted")
		seed        = flag.Int64("seed", -1, "random seed")
		resume      = flag.String("resume", "", "checkpoint to resume training from")
		sqlitePath  = flag.String("db", "", "sqlite database for episode statistics")
		monitorAddr = flag.String("monitor", "", "address for the live statistics monitor")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("raceline: %v", err)
	}

	// Flags override the configuration file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "track":
			cfg.TrackPath = *trackPath
		case "models":
			cfg.Trainer.ModelDir = *modelDir
		case "stats":
			cfg.Trainer.StatsDir = *statsDir
		case "episodes":
			cfg.Trainer.MaxEpisodes = *episodes
		case "seed":
			cfg.Seed = *seed
		case "db":
			cfg.SQLitePath = *sqlitePath
		case "monitor":
			cfg.MonitorAddr = *monitorAddr
		}
	})
	cfg.Trainer.Seed = uint64(cfg.Seed)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	m, err := track.Load(cfg.TrackPath)
	if err != nil {
		log.Fatalf("raceline: could not load track: %v", err)
	}

	ring, err := racing.NewRing(racing.DefaultCheckpoints(),
		racing.DefaultTotalLaps)
	if err != nil {
		log.Fatalf("raceline: %v", err)
	}
	task := racing.NewTask(racing.DefaultRewardConfig())

	env, err := racing.New(m, ring, task, racing.DefaultPhysics(),
		racing.DefaultStart, racing.DefaultStartAngle, cfg.Discount)
	if err != nil {
		log.Fatalf("raceline: could not create environment: %v", err)
	}

	a, err := deepq.New(env, cfg.Agent, cfg.Seed)
	if err != nil {
		log.Fatalf("raceline: could not create agent: %v", err)
	}
	defer a.Close()

	if *resume != "" {
		if err := a.Load(*resume); err != nil {
			log.Fatalf("raceline: could not resume from %v: %v",
				*resume, err)
		}
		// Resumed runs start at the schedule's final rate
		cfg.Trainer.LearningRate.Initial = cfg.Trainer.LearningRate.OnStable
		log.Printf("resumed training from %v at learning rate %.1e",
			*resume, cfg.Trainer.LearningRate.Initial)
	}

	csv, err := tracker.NewCSV(cfg.Trainer.StatsDir)
	if err != nil {
		log.Fatalf("raceline: %v", err)
	}
	trackers := []tracker.Tracker{csv}

	if cfg.SQLitePath != "" {
		sqlite, err := tracker.NewSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("raceline: %v", err)
		}
		log.Printf("recording run %v to %v", sqlite.RunID(),
			cfg.SQLitePath)
		trackers = append(trackers, sqlite)
	}

	if cfg.MonitorAddr != "" {
		monitor, err := tracker.NewMonitor(cfg.MonitorAddr)
		if err != nil {
			log.Fatalf("raceline: %v", err)
		}
		log.Printf("live monitor on ws://%v/ws", monitor.Addr())
		trackers = append(trackers, monitor)
	}

	defer func() {
		for _, t := range trackers {
			t.Close()
		}
	}()

	trainer, err := experiment.New(env, a, cfg.Trainer, trackers...)
	if err != nil {
		log.Fatalf("raceline: could not create trainer: %v", err)
	}

	if err := trainer.Run(ctx); err != nil {
		log.Fatalf("raceline: %v", err)
	}
}
