// Package session manages isolated per-build working directories. Each
// build gets its own arena under a common root; nothing is shared between
// builds and no global temp-dir state exists.
package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Manager hands out arenas under one root directory.
type Manager struct {
	root string
	log  *logrus.Entry
}

// Arena is one build's private working area. The creator owns its
// lifecycle and releases it when the build's output is no longer needed.
type Arena struct {
	ID  string
	Dir string
}

// NewManager creates the root directory if needed.
func NewManager(root string, log *logrus.Logger) (*Manager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create work root %s: %w", root, err)
	}
	return &Manager{
		root: root,
		log:  log.WithField("component", "session"),
	}, nil
}

// Create allocates a fresh arena with a unique ID.
func (m *Manager) Create() (*Arena, error) {
	id := uuid.NewString()
	dir := filepath.Join(m.root, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create arena: %w", err)
	}
	return &Arena{ID: id, Dir: dir}, nil
}

// Path returns the location of a named file inside the arena.
func (a *Arena) Path(name string) string {
	return filepath.Join(a.Dir, name)
}

// Release removes the arena and everything in it.
func (a *Arena) Release() error {
	return os.RemoveAll(a.Dir)
}

// Sweep removes arenas that have not been touched for longer than ttl.
// Returns the number of arenas removed.
func (m *Manager) Sweep(ttl time.Duration) int {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		m.log.WithError(err).Warn("sweep: cannot read work root")
		return 0
	}

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.root, e.Name())); err != nil {
			m.log.WithError(err).WithField("arena", e.Name()).Warn("sweep failed")
			continue
		}
		removed++
	}

	if removed > 0 {
		m.log.WithField("removed", removed).Info("swept expired arenas")
	}
	return removed
}

// Run sweeps expired arenas on an interval until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ttl)
		}
	}
}
