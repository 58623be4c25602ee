// util/prof.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
)

// Profiler collects an optional CPU profile over its lifetime and an
// optional heap profile when it is stopped.
type Profiler struct {
	cpu     *os.File
	memPath string
}

// StartProfiler begins profiling. Either path may be empty to skip that
// profile.
func StartProfiler(cpu, mem string) (*Profiler, error) {
	p := &Profiler{memPath: mem}

	if cpu != "" {
		f, err := os.Create(cpu)
		if err != nil {
			return nil, fmt.Errorf("%s: unable to create CPU profile file: %w", cpu, err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("unable to start CPU profile: %w", err)
		}
		p.cpu = f
	}
	return p, nil
}

// Stop finishes the CPU profile and writes the heap profile. It is safe to
// call more than once.
func (p *Profiler) Stop() error {
	if p == nil {
		return nil
	}

	var errs []error
	if p.cpu != nil {
		pprof.StopCPUProfile()
		errs = append(errs, p.cpu.Close())
		p.cpu = nil
	}
	if p.memPath != "" {
		errs = append(errs, writeHeapProfile(p.memPath))
		p.memPath = ""
	}
	return errors.Join(errs...)
}

func writeHeapProfile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%s: unable to create memory profile file: %w", path, err)
	}
	if err := pprof.WriteHeapProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: unable to write memory profile: %w", path, err)
	}
	return f.Close()
}
