// metrics/metrics_test.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}

	c.NestSolved()
	c.NestSolved()
	c.BearingTried(OutcomeScored)
	c.BearingTried(OutcomeDropped)
	c.BearingTried(OutcomeScored)
	c.AccordionEvaluations(40)
	c.RunFinished("changed", 20*time.Millisecond)

	if n := testutil.ToFloat64(c.Nests); n != 2 {
		t.Errorf("nests = %v, expected 2", n)
	}
	if n := testutil.ToFloat64(c.Bearings.WithLabelValues(OutcomeScored)); n != 2 {
		t.Errorf("scored bearings = %v, expected 2", n)
	}
	if n := testutil.ToFloat64(c.Runs.WithLabelValues("changed")); n != 1 {
		t.Errorf("runs = %v, expected 1", n)
	}
	if n := testutil.CollectAndCount(c.Evaluations); n != 1 {
		t.Errorf("evaluation histogram series = %d", n)
	}

	// Registering twice hands back the existing collectors.
	c2, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	if testutil.ToFloat64(c2.Nests) != 2 {
		t.Errorf("second collector does not share the registered counter")
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.NestSolved()
	c.BearingTried(OutcomeCanceled)
	c.AccordionEvaluations(1)
	c.RunFinished("canceled", time.Second)
}

func TestStartSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	_, span := StartSpan(context.Background(), "nest", attribute.Int("members", 3))
	span.End()

	spans := rec.Ended()
	if len(spans) != 1 || spans[0].Name() != "nest" {
		t.Fatalf("recorded spans %v", spans)
	}
	found := false
	for _, kv := range spans[0].Attributes() {
		if kv.Key == "members" && kv.Value.AsInt64() == 3 {
			found = true
		}
	}
	if !found {
		t.Errorf("members attribute missing")
	}
}
