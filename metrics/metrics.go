// metrics/metrics.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package metrics records Prometheus metrics and OpenTelemetry spans for
// deconfliction runs. A nil *Collector is valid and records nothing.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Bearing trial outcomes.
const (
	OutcomeScored   = "scored"
	OutcomeDropped  = "dropped"
	OutcomeCanceled = "canceled"
)

type Collector struct {
	Runs         *prometheus.CounterVec
	Nests        prometheus.Counter
	Bearings     *prometheus.CounterVec
	Evaluations  prometheus.Histogram
	RunDurations prometheus.Histogram
}

// NewCollector registers the deconfliction metrics against reg, defaulting
// to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	runs, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deconflict_runs_total",
		Help: "Deconfliction calls, labeled by result (changed, unchanged, canceled, error).",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}
	nests, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "deconflict_nests_total",
		Help: "Birds nests solved.",
	}))
	if err != nil {
		return nil, err
	}
	bearings, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deconflict_bearings_total",
		Help: "Bearing trials, labeled by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}
	evals, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "deconflict_accordion_evaluations",
		Help:    "Rectangle evaluations per Accordion optimization.",
		Buckets: prometheus.ExponentialBuckets(8, 2, 10),
	}))
	if err != nil {
		return nil, err
	}
	durations, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "deconflict_run_duration_seconds",
		Help:    "Wall time of deconfliction calls in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}))
	if err != nil {
		return nil, err
	}

	return &Collector{
		Runs:         runs,
		Nests:        nests,
		Bearings:     bearings,
		Evaluations:  evals,
		RunDurations: durations,
	}, nil
}

func (c *Collector) RunFinished(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.Runs.WithLabelValues(result).Inc()
	c.RunDurations.Observe(d.Seconds())
}

func (c *Collector) NestSolved() {
	if c == nil {
		return
	}
	c.Nests.Inc()
}

func (c *Collector) BearingTried(outcome string) {
	if c == nil {
		return
	}
	c.Bearings.WithLabelValues(outcome).Inc()
}

func (c *Collector) AccordionEvaluations(n int) {
	if c == nil {
		return
	}
	c.Evaluations.Observe(float64(n))
}

// register registers col, returning the already-registered collector of
// the same type if there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, col C) (C, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return col, fmt.Errorf("collector already registered with incompatible type: %w", err)
		}
		return col, err
	}
	return col, nil
}
