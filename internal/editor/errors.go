// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package editor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("editor: session closed")

	// ErrUnknownView is returned when a view is not offered by the garment.
	ErrUnknownView = errors.New("editor: view not available for this garment")

	// ErrInvalidName is returned for empty or overlong design names.
	ErrInvalidName = errors.New("editor: name must be 1-200 characters")

	// ErrNotFound is returned by the manager for unknown session ids.
	ErrNotFound = errors.New("editor: session not found")
)

// Trigger names what started a save cycle.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerAuto   Trigger = "auto"
	TriggerInsert Trigger = "insert"
	TriggerFlush  Trigger = "flush"
)

// rank orders triggers when several are coalesced into one cycle. The
// highest ranked trigger decides the retry policy.
func (t Trigger) rank() int {
	switch t {
	case TriggerManual:
		return 3
	case TriggerFlush:
		return 2
	case TriggerInsert:
		return 1
	}
	return 0
}

// retries reports whether a failed cycle is retried on the next debounce
// window. Manual saves surface the failure to the caller instead.
func (t Trigger) retries() bool {
	return t == TriggerAuto || t == TriggerInsert
}

// PersistenceError is returned when a save cycle fails.
type PersistenceError struct {
	Trigger Trigger
	At      time.Time
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save (%s) failed: %v", e.Trigger, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
