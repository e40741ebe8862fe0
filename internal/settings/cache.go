package settings

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Snapshot is an immutable view of the settings at the time of the last
// refresh. Callers must not mutate DisabledTools.
type Snapshot struct {
	Prompt          string
	Model           string
	DisabledTools   map[string]bool
	LastRefreshedAt time.Time
}

// Disabled reports whether a tool name is in the disabled set.
func (s Snapshot) Disabled(tool string) bool {
	return s.DisabledTools[tool]
}

// Cache serves settings reads from memory. It never refreshes on its
// own: callers decide when a reload is worth a database round trip,
// typically once per incoming message.
type Cache struct {
	store *Store

	defaultPrompt string
	defaultModel  string

	mu   sync.RWMutex
	snap Snapshot
}

// NewCache creates a cache over the store and performs an initial
// refresh. The defaults fill in any key the store has no value for.
func NewCache(store *Store, defaultPrompt, defaultModel string) (*Cache, error) {
	c := &Cache{
		store:         store,
		defaultPrompt: defaultPrompt,
		defaultModel:  defaultModel,
	}
	if err := c.Refresh(); err != nil {
		return nil, err
	}
	return c, nil
}

// Current returns the snapshot from the most recent refresh.
func (c *Cache) Current() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Refresh reloads all settings from the store and replaces the
// snapshot. On error the previous snapshot stays in effect.
func (c *Cache) Refresh() error {
	values, err := c.store.All()
	if err != nil {
		return fmt.Errorf("refresh settings: %w", err)
	}

	snap := Snapshot{
		Prompt:          c.defaultPrompt,
		Model:           c.defaultModel,
		DisabledTools:   map[string]bool{},
		LastRefreshedAt: time.Now().UTC(),
	}
	if v := values[KeyPrompt]; v != "" {
		snap.Prompt = v
	}
	if v := values[KeyModel]; v != "" {
		snap.Model = v
	}
	for _, name := range strings.Split(values[KeyDisabledTools], ",") {
		if name = strings.TrimSpace(name); name != "" {
			snap.DisabledTools[name] = true
		}
	}

	c.mu.Lock()
	c.snap = snap
	c.mu.Unlock()
	return nil
}
