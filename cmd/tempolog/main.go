package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"tempolog/internal/config"
	"tempolog/internal/jump"
	"tempolog/internal/sim"
	"tempolog/internal/track"
)

func main() {
	var (
		validateOnly bool
		writeSim     bool
		verbose      bool
		configPath   string
	)
	flag.BoolVar(&validateOnly, "validate", false, "Validate the log and exit")
	flag.BoolVar(&writeSim, "sim", false, "Write a synthetic jump log to stdout and exit")
	flag.BoolVar(&verbose, "verbose", false, "Log absorbed lines to stderr")
	flag.StringVar(&configPath, "config", "", "Path to YAML analysis config")
	flag.Parse()

	if writeSim {
		for _, l := range sim.Default().Lines() {
			fmt.Println(l)
		}
		return
	}

	path := flag.Arg(0)
	if path == "" {
		log.Fatalf("usage: tempolog [-validate|-sim] [-config cfg.yaml] <logfile>")
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read log: %v", err)
	}

	cfg := config.Default()
	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatalf("config load failed: %v", err)
		}
	}

	if validateOnly {
		v := track.Validate(buf)
		printValidation(os.Stdout, path, len(buf), v)
		if !v.Valid {
			os.Exit(1)
		}
		return
	}

	var opts []func(*track.Reader)
	if verbose {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		opts = append(opts, track.WithLogger(logger))
	}

	res := track.BuildSeries(buf, opts...)
	if !res.Valid {
		log.Fatalf("parse failed: %s", res.Message)
	}

	ev := jump.Analyze(res.Series, res.SampleRate)
	profile, profileErr := jump.BuildProfile(res.Log.Entries, ev, cfg.ProfileOptions())

	printSummary(os.Stdout, path, len(buf), res, ev, profile, profileErr)
}
