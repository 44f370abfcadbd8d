package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/daniacca/chromasim/internal/logging"
	"github.com/daniacca/chromasim/internal/store"
	"github.com/daniacca/chromasim/internal/tissue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("chromasim-sim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		steps      = fs.Int("steps", 100, "number of steps to run")
		cells      = fs.Int("cells", 100, "initial number of cells")
		seed       = fs.Int64("seed", 0, "random seed (default: time-based)")
		configFile = fs.String("config-file", "", "path to a tissue config JSON file (optional)")
		outFile    = fs.String("out", "", "write the frame history as JSON to this path (optional)")
		dbPath     = fs.String("db", "", "store the run in this SQLite database (optional)")
		runID      = fs.String("run-id", "", "run identifier (default: random)")
		logLevel   = fs.String("log-level", "warn", "log level: debug, info, warn, error")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	seedSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			seedSet = true
		}
	})

	cfg := tissue.DefaultConfig()
	if *configFile != "" {
		loaded, err := tissue.LoadConfigFile(*configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	params := tissue.Params{
		TotalSteps:        *steps,
		InitialPopulation: *cells,
		Config:            cfg,
	}
	if seedSet {
		params.Seed = seed
	}

	logger := logging.NewLoggerTo(*logLevel, stderr)
	sim, err := tissue.NewSimulation(params,
		tissue.WithLogger(logger),
		tissue.WithRunID(tissue.RunID(*runID)),
	)
	if err != nil {
		return fmt.Errorf("creating simulation: %w", err)
	}

	if _, err := sim.Run(ctx); err != nil {
		return err
	}
	history := sim.History()

	if *outFile != "" {
		if err := tissue.SaveHistory(*outFile, history); err != nil {
			return fmt.Errorf("writing frames: %w", err)
		}
	}

	if *dbPath != "" {
		st, err := store.Open(*dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.SaveHistory(ctx, history); err != nil {
			return fmt.Errorf("storing run: %w", err)
		}
	}

	printSummary(stdout, cfg.Name, sim)
	return nil
}

func printSummary(w io.Writer, configName string, sim *tissue.Simulation) {
	frames := sim.Frames()
	initial := 0
	if len(frames) > 0 {
		initial = frames[0].Len()
	}

	fmt.Fprintf(w, "Simulation finished (run=%s, config=%s, seed=%d, steps=%d)\n",
		sim.ID(), configName, sim.Seed(), sim.StepsTaken())
	fmt.Fprintf(w, "Population: %d -> %d\n", initial, sim.Population())
	fmt.Fprintln(w, "Cell type counts:")

	counts := sim.CountByType()
	for _, ct := range tissue.AllCellTypes {
		if n, ok := counts[ct]; ok {
			fmt.Fprintf(w, "  %s: %d\n", ct, n)
		}
	}
}
