// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package editor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"designdrip/internal/models"
)

// DefaultIdleTimeout is how long an untouched session stays open.
const DefaultIdleTimeout = 30 * time.Minute

// Manager holds the open editing sessions of this process, one per editor
// tab. Idle sessions are flushed and dropped by a background sweeper.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session

	persist Persister
	opts    Options
	idle    time.Duration
	logger  *slog.Logger
	stopCh  chan struct{}
	stopped sync.Once
}

// NewManager creates a manager and starts its idle sweeper, which runs
// every idle/4.
func NewManager(p Persister, opts Options, idle time.Duration, logger *slog.Logger) *Manager {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		sessions: make(map[uuid.UUID]*Session),
		persist:  p,
		opts:     opts,
		idle:     idle,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(idle / 4)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Sweep(context.Background())
			case <-m.stopCh:
				return
			}
		}
	}()

	return m
}

// Open starts a session editing doc on the given garment views.
func (m *Manager) Open(doc *models.DesignDocument, views []models.GarmentView) (*Session, error) {
	s, err := NewSession(doc, views, m.persist, m.opts, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	m.logger.Info("editing session opened", "session", s.ID(), "design", doc.ID)
	return s, nil
}

// Get returns an open session.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close flushes and removes a session. The session is removed even when
// the final save fails; the error is returned so the caller can surface it.
func (m *Manager) Close(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	err := s.Close(ctx)
	if err != nil {
		m.logger.Warn("final save on close failed", "session", id, "error", err)
	}
	return err
}

// Sweep closes sessions idle for longer than the idle timeout and returns
// how many were closed.
func (m *Manager) Sweep(ctx context.Context) int {
	cutoff := time.Now().Add(-m.idle)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.LastUsed().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		if err := s.Close(ctx); err != nil {
			m.logger.Warn("final save of idle session failed", "session", s.ID(), "error", err)
		}
	}
	if len(stale) > 0 {
		m.logger.Info("idle editing sessions closed", "count", len(stale))
	}
	return len(stale)
}

// Shutdown stops the sweeper and closes every session.
func (m *Manager) Shutdown(ctx context.Context) {
	m.stopped.Do(func() { close(m.stopCh) })

	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range all {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Close(ctx); err != nil {
				m.logger.Warn("final save on shutdown failed", "session", s.ID(), "error", err)
			}
		}()
	}
	wg.Wait()
}
