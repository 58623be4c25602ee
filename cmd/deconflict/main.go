// cmd/deconflict/main.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// deconflict loads (or generates) a search case, resolves overlapping PV
// placements, and writes the adjusted case back out.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sarplan/deconflict/config"
	"github.com/sarplan/deconflict/deconflict"
	"github.com/sarplan/deconflict/log"
	"github.com/sarplan/deconflict/metrics"
	"github.com/sarplan/deconflict/sar"
	"github.com/sarplan/deconflict/scenario"
	"github.com/sarplan/deconflict/util"

	"github.com/goforj/godump"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	scenarioFilename = flag.String("scenario", "", "scenario file to deconflict (.yaml or .msgpack.zst)")
	generate         = flag.Bool("generate", false, "generate a random scenario instead of loading one")
	seed             = flag.Int64("seed", 1, "random seed for -generate")
	numPVs           = flag.Int("pvs", 4, "number of PVs for -generate")
	numParticles     = flag.Int("particles", 2000, "number of particles for -generate")
	tunablesFilename = flag.String("tunables", "", "YAML file of engine tunables (defaults are used if empty)")
	outFilename      = flag.String("out", "", "write the deconflicted scenario to this file")
	logLevel         = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir           = flag.String("logdir", "", "log file directory")
	metricsFilename  = flag.String("metrics", "", "write Prometheus metrics in text format to this file")
	traceSpans       = flag.Bool("trace", false, "print trace spans to stderr")
	dump             = flag.Bool("dump", false, "dump the full run report to stdout")
	timeout          = flag.Duration("timeout", 0, "abandon the run after this long (0 for no limit)")
	cpuprofile       = flag.String("cpuprofile", "", "write CPU profile to file")
	memprofile       = flag.String("memprofile", "", "write memory profile to this file")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: deconflict [flags] (-scenario <file> | -generate)\n")
	flag.PrintDefaults()
	os.Exit(1)
}

// pvReport summarizes what happened to one PV.
type pvReport struct {
	ID     string
	Kind   string
	Before string
	After  string
	Moved  bool
}

type report struct {
	Run       string
	Scenario  string
	Elapsed   time.Duration
	PVs       []pvReport
	POSBefore float64
	POSAfter  float64
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if (*scenarioFilename == "") == !*generate {
		usage()
	}

	runID := uuid.NewString()
	lg := log.New(*logLevel, *logDir).With("run", runID)
	defer lg.CatchAndReportCrash()

	if err := run(lg, runID); err != nil {
		lg.Errorf("%v", err)
		fmt.Fprintf(os.Stderr, "deconflict: %v\n", err)
		os.Exit(1)
	}
}

func run(lg *log.Logger, runID string) error {
	prof, err := util.StartProfiler(*cpuprofile, *memprofile)
	if err != nil {
		return err
	}
	defer func() {
		if err := prof.Stop(); err != nil {
			lg.Warnf("profiling: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	var spans io.Writer
	if *traceSpans {
		spans = os.Stderr
	}
	shutdown, err := metrics.InitTracing(ctx, spans)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			lg.Warnf("trace shutdown: %v", err)
		}
	}()

	tun := config.Default()
	if *tunablesFilename != "" {
		if tun, err = config.Load(*tunablesFilename); err != nil {
			return err
		}
	}

	var f *scenario.File
	if *generate {
		f = scenario.Generate(*seed, *numPVs, *numParticles)
		lg.Info("generated scenario", "seed", *seed, "pvs", *numPVs, "particles", *numParticles)
	} else if f, err = scenario.Load(*scenarioFilename); err != nil {
		return err
	}

	c, placements, err := f.Build(tun.Stages, deconflict.OverlapFinder{}, lg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.NewCollector(reg)
	if err != nil {
		return err
	}

	start := time.Now()
	out, err := deconflict.New(tun, deconflict.WithMetrics(m)).Run(ctx, c, placements)
	if err != nil {
		return err
	}

	rep := makeReport(c, f, placements, out, time.Since(start))
	rep.Run = runID
	printReport(rep)
	if *dump {
		godump.Dump(rep)
	}

	if *metricsFilename != "" {
		if err := prometheus.WriteToTextfile(*metricsFilename, reg); err != nil {
			return fmt.Errorf("%s: %w", *metricsFilename, err)
		}
	}
	if *outFilename != "" {
		if err := f.WithPlacements(out).Save(*outFilename); err != nil {
			return err
		}
		lg.Info("saved scenario", "path", *outFilename)
	}
	return nil
}

func makeReport(c *sar.Case, f *scenario.File, before, after sar.Placements, elapsed time.Duration) report {
	rep := report{
		Scenario:  f.Name,
		Elapsed:   elapsed,
		POSBefore: c.Evaluator.Evaluate(c.Evaluator.Priors(), before),
		POSAfter:  c.Evaluator.Evaluate(c.Evaluator.Priors(), after),
	}
	for i, pv := range c.PVs.All() {
		rep.PVs = append(rep.PVs, pvReport{
			ID:     string(pv.ID),
			Kind:   pv.Kind.String(),
			Before: before[i].String(),
			After:  after[i].String(),
			Moved:  !before[i].Equal(after[i]),
		})
	}
	return rep
}

func printReport(rep report) {
	name := util.Select(rep.Scenario != "", rep.Scenario, "<unnamed>")
	fmt.Printf("%s: %d PVs deconflicted in %s\n", name, len(rep.PVs), rep.Elapsed.Round(time.Millisecond))
	for _, pv := range rep.PVs {
		if pv.Moved {
			fmt.Printf("  %-12s %-3s %s -> %s\n", pv.ID, pv.Kind, pv.Before, pv.After)
		} else {
			fmt.Printf("  %-12s %-3s %s (unchanged)\n", pv.ID, pv.Kind, pv.Before)
		}
	}
	fmt.Printf("POS %.4f -> %.4f\n", rep.POSBefore, rep.POSAfter)
}
