// util/error.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sarplan/deconflict/log"
)

// ErrorLogger accumulates validation errors along with the context of
// what was being validated when each was found, so that validation can
// continue past the first problem. Errors passed to Error stay
// reachable through errors.Is and errors.As on the result of Err.
type ErrorLogger struct {
	context []string // Push/Pop
	errs    []error
}

func (e *ErrorLogger) Push(s string) {
	e.context = append(e.context, s)
}

func (e *ErrorLogger) Pop() {
	e.context = e.context[:len(e.context)-1]
}

func (e *ErrorLogger) ErrorString(format string, args ...any) {
	e.errs = append(e.errs, fmt.Errorf("%s%s", e.where(), fmt.Sprintf(format, args...)))
}

func (e *ErrorLogger) Error(err error) {
	e.errs = append(e.errs, fmt.Errorf("%s%w", e.where(), err))
}

func (e *ErrorLogger) where() string {
	if len(e.context) == 0 {
		return ""
	}
	return strings.Join(e.context, " / ") + ": "
}

func (e *ErrorLogger) HaveErrors() bool {
	return e != nil && len(e.errs) > 0
}

func (e *ErrorLogger) CurrentDepth() int {
	if e == nil {
		return 0
	}
	return len(e.context)
}

// Err returns the accumulated errors joined into one, or nil.
func (e *ErrorLogger) Err() error {
	if !e.HaveErrors() {
		return nil
	}
	return errors.Join(e.errs...)
}

func (e *ErrorLogger) LogErrors(lg *log.Logger) {
	for _, err := range e.errs {
		lg.Error("validation", "error", err)
	}
}

func (e *ErrorLogger) String() string {
	if e == nil {
		return ""
	}
	var sb strings.Builder
	for i, err := range e.errs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}
