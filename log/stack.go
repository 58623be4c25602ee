// log/stack.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package log

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

const maxFrames = 16

// Frame is one entry of a logged call stack.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

func (f Frame) String() string {
	return fmt.Sprintf("%s:%d:%s", f.File, f.Line, f.Function)
}

// Callstack returns up to maxFrames frames of the current goroutine's
// stack, starting skip frames above the caller of Callstack and stopping
// at main.main.
func Callstack(skip int) []Frame {
	var pcs [maxFrames]uintptr
	n := runtime.Callers(2+skip, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := make([]Frame, 0, n)
	for {
		f, more := frames.Next()
		if f.PC == 0 {
			break
		}
		stack = append(stack, Frame{
			File:     filepath.Base(f.File),
			Line:     f.Line,
			Function: shortFunction(f.Function),
		})
		if !more || f.Function == "main.main" {
			break
		}
	}
	return stack
}

func shortFunction(fn string) string {
	fn = strings.TrimPrefix(fn, "github.com/sarplan/deconflict/")
	return strings.TrimPrefix(fn, "main.")
}
