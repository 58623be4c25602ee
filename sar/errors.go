// sar/errors.go
// Copyright(c) 2025 sarplan contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sar

import (
	"errors"
)

var (
	ErrDuplicatePV         = errors.New("duplicate PV id")
	ErrEmptyPVID           = errors.New("PV id is empty")
	ErrInvalidTimeWindow   = errors.New("PV time window ends before it starts")
	ErrMissingCollaborator = errors.New("case is missing a collaborator")
	ErrNilPV               = errors.New("nil PV")
	ErrPlacementCount      = errors.New("placement count does not match the PV table")
	ErrUnknownKind         = errors.New("unknown PV kind")
	ErrUnknownPV           = errors.New("unknown PV id")
)
