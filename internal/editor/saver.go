// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"designdrip/internal/models"
)

// DefaultAutosaveQuiet is the debounce window used when none is configured.
const DefaultAutosaveQuiet = 2 * time.Second

// Persister writes a design document and returns the stored version, with
// its id, version and preview URLs filled in.
type Persister interface {
	Persist(ctx context.Context, doc *models.DesignDocument) (*models.DesignDocument, error)
}

// Source is the document a Coordinator saves. Revision increases on every
// edit and must not block. Snapshot returns a detached copy of the document
// and the revision it reflects.
type Source interface {
	Revision() uint64
	Snapshot() (*models.DesignDocument, uint64)
	MarkSaved(saved *models.DesignDocument, rev uint64)
}

// SaveStatus is the save state exposed to the client.
type SaveStatus struct {
	Dirty       bool       `json:"dirty"`
	Saving      bool       `json:"saving"`
	LastError   string     `json:"lastError,omitempty"`
	LastSavedAt *time.Time `json:"lastSavedAt,omitempty"`
}

// cycle is one persistence call. Callers that join a cycle wait on done.
// retry is set when any merged trigger, or a cancelled autosave timer,
// expects a failure to be retried.
type cycle struct {
	trigger Trigger
	retry   bool
	started bool
	skip    bool
	rev     uint64
	done    chan struct{}
	err     error
}

func newCycle(t Trigger) *cycle {
	return &cycle{trigger: t, retry: t.retries(), done: make(chan struct{})}
}

func (c *cycle) join(t Trigger) {
	if t.rank() > c.trigger.rank() {
		c.trigger = t
	}
	c.retry = c.retry || t.retries()
}

// Coordinator serializes the save triggers of one document. At most one
// Persist call is in flight; requests that arrive meanwhile are coalesced
// into a single follow-up cycle that snapshots the latest state and is
// skipped if nothing changed.
type Coordinator struct {
	src     Source
	persist Persister
	quiet   time.Duration
	timeout time.Duration
	logger  *slog.Logger

	mu        sync.Mutex
	current   *cycle
	next      *cycle
	timer     *time.Timer
	timerGen  uint64
	savedRev  uint64
	lastErr   error
	lastSaved time.Time
	closed    bool
}

// NewCoordinator creates a coordinator for src. savedRev is the revision
// already present in storage.
func NewCoordinator(src Source, p Persister, quiet, timeout time.Duration, savedRev uint64, logger *slog.Logger) *Coordinator {
	if quiet <= 0 {
		quiet = DefaultAutosaveQuiet
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		src:      src,
		persist:  p,
		quiet:    quiet,
		timeout:  timeout,
		savedRev: savedRev,
		logger:   logger,
	}
}

// Touch restarts the autosave debounce window. Call it after every edit.
func (c *Coordinator) Touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.armLocked(c.quiet)
}

// Trigger requests a save cycle without waiting for it. External inserts
// use it to save as soon as the inserted asset is in the scene.
func (c *Coordinator) Trigger(t Trigger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	pending := c.stopTimerLocked()
	c.requestLocked(t, pending)
}

// Save runs a manual save and blocks until the cycle carrying the current
// state completes. A failure is returned and not retried automatically.
func (c *Coordinator) Save(ctx context.Context) error {
	return c.wait(ctx, TriggerManual)
}

// Flush saves pending changes and waits. It does nothing when the document
// is clean and no cycle is running.
func (c *Coordinator) Flush(ctx context.Context) error {
	return c.wait(ctx, TriggerFlush)
}

// Close flushes and stops the coordinator. Later triggers are ignored.
func (c *Coordinator) Close(ctx context.Context) error {
	err := c.Flush(ctx)
	c.mu.Lock()
	c.closed = true
	c.stopTimerLocked()
	c.mu.Unlock()
	return err
}

// Status reports whether the document has unsaved changes, whether a save
// is running, and the last failure.
func (c *Coordinator) Status() SaveStatus {
	rev := c.src.Revision()

	c.mu.Lock()
	defer c.mu.Unlock()
	st := SaveStatus{
		Dirty:  rev > c.savedRev,
		Saving: c.current != nil,
	}
	if c.lastErr != nil {
		st.LastError = c.lastErr.Error()
	}
	if !c.lastSaved.IsZero() {
		t := c.lastSaved
		st.LastSavedAt = &t
	}
	return st
}

func (c *Coordinator) wait(ctx context.Context, t Trigger) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if t == TriggerFlush && c.current == nil && c.src.Revision() <= c.savedRev {
		c.mu.Unlock()
		return nil
	}
	pending := c.stopTimerLocked()
	cy := c.requestLocked(t, pending)
	c.mu.Unlock()

	select {
	case <-cy.done:
		return cy.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// requestLocked returns the cycle that will carry the current revision,
// starting one if none is running. pending marks a cancelled autosave timer
// whose retry duty passes to the returned cycle. A manual save never joins
// a cycle that already decided to skip.
func (c *Coordinator) requestLocked(t Trigger, pending bool) *cycle {
	cy := c.cycleForLocked(t)
	cy.retry = cy.retry || pending
	return cy
}

func (c *Coordinator) cycleForLocked(t Trigger) *cycle {
	if cur := c.current; cur != nil {
		reuse := !cur.started || (cur.rev >= c.src.Revision() && !(cur.skip && t == TriggerManual))
		if reuse {
			cur.join(t)
			return cur
		}
		if c.next == nil {
			c.next = newCycle(t)
		} else {
			c.next.join(t)
		}
		return c.next
	}

	cy := newCycle(t)
	c.current = cy
	go c.run(cy)
	return cy
}

func (c *Coordinator) run(cy *cycle) {
	for cy != nil {
		doc, rev := c.src.Snapshot()

		c.mu.Lock()
		cy.started = true
		cy.rev = rev
		skip := rev <= c.savedRev && cy.trigger != TriggerManual
		cy.skip = skip
		c.mu.Unlock()

		var err error
		if !skip {
			err = c.persistOnce(doc, rev, cy.trigger)
		}

		c.mu.Lock()
		if !skip {
			if err != nil {
				c.lastErr = err
				if cy.retry && !c.closed {
					c.armLocked(c.quiet)
				}
			} else {
				c.savedRev = max(c.savedRev, rev)
				c.lastErr = nil
				c.lastSaved = time.Now()
			}
		}
		cy.err = err
		close(cy.done)
		cy = c.next
		c.next = nil
		c.current = cy
		c.mu.Unlock()
	}
}

func (c *Coordinator) persistOnce(doc *models.DesignDocument, rev uint64, t Trigger) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	saved, err := c.persist.Persist(ctx, doc)
	if err != nil {
		c.logger.Error("design save failed", "trigger", t, "design", doc.ID, "error", err)
		return &PersistenceError{Trigger: t, At: time.Now(), Err: err}
	}
	c.src.MarkSaved(saved, rev)
	c.logger.Debug("design saved", "trigger", t, "design", saved.ID, "version", saved.Version)
	return nil
}

func (c *Coordinator) armLocked(d time.Duration) {
	c.stopTimerLocked()
	c.timerGen++
	gen := c.timerGen
	c.timer = time.AfterFunc(d, func() { c.fire(gen) })
}

// stopTimerLocked cancels the autosave timer and reports whether one was
// still pending.
func (c *Coordinator) stopTimerLocked() bool {
	if c.timer == nil {
		return false
	}
	stopped := c.timer.Stop()
	c.timer = nil
	return stopped
}

func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.timerGen {
		return
	}
	c.timer = nil
	c.requestLocked(TriggerAuto, false)
}
