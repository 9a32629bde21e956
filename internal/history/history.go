// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package history implements a bounded linear undo/redo stack over
// serialized scene snapshots. One Stack exists per garment view.
//
// The pointer always addresses the entry that matches the current scene.
// Committing a new snapshot discards any entries above the pointer, so
// undoing and then editing abandons the redo branch.
package history

import "bytes"

// DefaultLimit is the number of entries kept when no limit is configured.
const DefaultLimit = 50

// Entry is one committed snapshot. Seq increases monotonically for the
// lifetime of the stack, including across evictions.
type Entry struct {
	Seq      uint64
	Snapshot []byte
}

// Stack is a bounded undo/redo history. It is not safe for concurrent use.
type Stack struct {
	entries []Entry
	pointer int
	limit   int
	nextSeq uint64
}

// New creates a stack whose single entry is initial. A limit below 2 is
// replaced with DefaultLimit.
func New(initial []byte, limit int) *Stack {
	if limit < 2 {
		limit = DefaultLimit
	}
	s := &Stack{limit: limit}
	s.Reset(initial)
	return s
}

// Reset discards all history and starts over with snapshot as the only
// entry.
func (s *Stack) Reset(snapshot []byte) {
	s.entries = []Entry{{Seq: s.nextSeq, Snapshot: bytes.Clone(snapshot)}}
	s.nextSeq++
	s.pointer = 0
}

// Commit appends snapshot above the pointer, discarding redo entries and
// evicting the oldest entry when the limit is exceeded. It returns the new
// entry.
func (s *Stack) Commit(snapshot []byte) Entry {
	s.entries = s.entries[:s.pointer+1]

	e := Entry{Seq: s.nextSeq, Snapshot: bytes.Clone(snapshot)}
	s.nextSeq++
	s.entries = append(s.entries, e)

	if over := len(s.entries) - s.limit; over > 0 {
		s.entries = append([]Entry(nil), s.entries[over:]...)
	}
	s.pointer = len(s.entries) - 1
	return e
}

// Undo moves the pointer one entry back and returns that entry's snapshot.
// At the oldest entry it does nothing and returns ok=false.
func (s *Stack) Undo() ([]byte, bool) {
	if s.pointer == 0 {
		return nil, false
	}
	s.pointer--
	return bytes.Clone(s.entries[s.pointer].Snapshot), true
}

// Redo moves the pointer one entry forward and returns that entry's
// snapshot. At the newest entry it does nothing and returns ok=false.
func (s *Stack) Redo() ([]byte, bool) {
	if s.pointer == len(s.entries)-1 {
		return nil, false
	}
	s.pointer++
	return bytes.Clone(s.entries[s.pointer].Snapshot), true
}

// Current returns the entry under the pointer.
func (s *Stack) Current() Entry {
	e := s.entries[s.pointer]
	e.Snapshot = bytes.Clone(e.Snapshot)
	return e
}

// CanUndo reports whether Undo would move the pointer.
func (s *Stack) CanUndo() bool { return s.pointer > 0 }

// CanRedo reports whether Redo would move the pointer.
func (s *Stack) CanRedo() bool { return s.pointer < len(s.entries)-1 }

// Len returns the number of retained entries.
func (s *Stack) Len() int { return len(s.entries) }
