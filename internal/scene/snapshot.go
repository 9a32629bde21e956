// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package scene

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
)

// FormatVersion is written into every serialized scene.
const FormatVersion = 1

// Snapshot is the JSON form of a scene.
type Snapshot struct {
	Version int      `json:"version"`
	Objects []Object `json:"objects"`
}

// EmptySnapshot is the serialized form of a scene with no objects.
var EmptySnapshot = json.RawMessage(`{"version":1,"objects":[]}`)

// Snapshot returns a detached copy of the scene's state.
func (s *Scene) Snapshot() Snapshot {
	return Snapshot{Version: FormatVersion, Objects: s.Objects()}
}

// Serialize encodes the scene as JSON. Objects are written in z-order.
func (s *Scene) Serialize() ([]byte, error) {
	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("scene serialize: %w", err)
	}
	return data, nil
}

// Deserialize replaces the scene's objects with those in data. Stored
// scenes are trusted to be in bounds and are not re-checked against the
// zone; they are still validated for kind, size and unique ids. On error
// the scene is left unchanged.
func (s *Scene) Deserialize(data []byte) error {
	snap, err := ParseSnapshot(data)
	if err != nil {
		return err
	}
	return s.Load(snap)
}

// Load replaces the scene's objects with a parsed snapshot.
func (s *Scene) Load(snap Snapshot) error {
	objects := slices.Clone(snap.Objects)
	slices.SortStableFunc(objects, func(a, b Object) int { return cmp.Compare(a.Z, b.Z) })

	seen := make(map[string]bool, len(objects))
	for i := range objects {
		if objects[i].ID == "" || seen[objects[i].ID] {
			return fmt.Errorf("%w: missing or duplicate id at position %d", ErrInvalidObject, i)
		}
		seen[objects[i].ID] = true
		if err := normalize(&objects[i]); err != nil {
			return err
		}
		objects[i].Z = i
	}
	if objects == nil {
		objects = []Object{}
	}
	s.objects = objects
	return nil
}

// ParseSnapshot decodes serialized scene JSON. Unknown fields are rejected
// so that a client cannot smuggle state the renderer does not understand.
func ParseSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("scene deserialize: %w", err)
	}
	if snap.Version > FormatVersion {
		return Snapshot{}, fmt.Errorf("scene deserialize: unsupported version %d", snap.Version)
	}
	snap.Version = FormatVersion
	return snap, nil
}
