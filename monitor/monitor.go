// Package monitor decides which file events deserve embedding work. It
// tracks content hashes, per-path throttling, corpus readiness, and system
// operations so the watcher's raw event stream collapses into real changes.
package monitor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// EmbeddingChecker answers whether a path's stored embedding already
// matches its on-disk content.
type EmbeddingChecker interface {
	HasUpToDateEmbedding(ctx context.Context, relPath string) (bool, error)
}

// PathFilter decides path eligibility.
type PathFilter interface {
	IsEligible(relPath string) bool
}

const (
	hashCacheSize = 4096
	throttleSize  = 1024
)

// Monitor filters file events down to genuine content changes.
type Monitor struct {
	vaultRoot string
	filter    PathFilter
	checker   EmbeddingChecker

	hashCache   *expirable.LRU[string, string]    // path -> last seen content hash
	throttled   *expirable.LRU[string, time.Time] // path -> last embed time
	throttleTTL time.Duration

	mu         sync.Mutex
	sysOps     int
	ready      bool
	readyAt    time.Time
	settle     time.Duration
	suppressed int
}

// NewMonitor builds a monitor. cacheTTL bounds how long seen hashes are
// remembered, throttleTTL is the per-path cool-down after an embed, and
// settle is how long after startup the corpus is considered settling.
func NewMonitor(vaultRoot string, filter PathFilter, checker EmbeddingChecker, cacheTTL, throttleTTL, settle time.Duration) *Monitor {
	return &Monitor{
		vaultRoot:   vaultRoot,
		filter:      filter,
		checker:     checker,
		hashCache:   expirable.NewLRU[string, string](hashCacheSize, nil, cacheTTL),
		throttled:   expirable.NewLRU[string, time.Time](throttleSize, nil, throttleTTL),
		throttleTTL: throttleTTL,
		settle:      settle,
	}
}

// IsEligible reports whether the path should flow through the pipeline at
// all.
func (m *Monitor) IsEligible(relPath string) bool {
	return m.filter.IsEligible(relPath)
}

// ContentChanged reports whether the file's content differs from what the
// monitor last saw. The first sighting of a path consults the store: a file
// whose embedding is already up to date did not change, which keeps restarts
// from re-triggering work. Failures degrade to "changed" so a flaky read or
// store never loses an edit; the worst case is one redundant embed.
func (m *Monitor) ContentChanged(ctx context.Context, relPath string) bool {
	content, err := os.ReadFile(filepath.Join(m.vaultRoot, relPath))
	if err != nil {
		if os.IsNotExist(err) {
			m.hashCache.Remove(relPath)
			return false
		}
		log.Printf("Warning: failed to read %s, assuming changed: %v", relPath, err)
		return true
	}

	hash := hashBytes(content)

	if prev, ok := m.hashCache.Get(relPath); ok {
		m.hashCache.Add(relPath, hash)
		return prev != hash
	}

	// First sighting since startup or cache expiry.
	m.hashCache.Add(relPath, hash)

	upToDate, err := m.checker.HasUpToDateEmbedding(ctx, relPath)
	if err != nil {
		log.Printf("Warning: embedding check failed for %s, assuming changed: %v", relPath, err)
		return true
	}
	return !upToDate
}

// Forget drops any remembered hash for the path. Called on deletes.
func (m *Monitor) Forget(relPath string) {
	m.hashCache.Remove(relPath)
}

// ShouldThrottle reports whether the path was embedded too recently to
// embed again.
func (m *Monitor) ShouldThrottle(relPath string) bool {
	_, ok := m.throttled.Get(relPath)
	return ok
}

// MarkEmbedded starts the path's embed cool-down.
func (m *Monitor) MarkEmbedded(relPath string) {
	m.throttled.Add(relPath, time.Now())
}

// ThrottleRemaining returns how much of the path's embed cool-down is still
// to run, or zero when the path is not throttled.
func (m *Monitor) ThrottleRemaining(relPath string) time.Duration {
	at, ok := m.throttled.Get(relPath)
	if !ok {
		return 0
	}
	remaining := m.throttleTTL - time.Since(at)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// BeginSystemOperation marks the pipeline itself as the author of upcoming
// file activity. Events observed while any system operation is open are
// dropped. The returned release must be called when the operation ends.
func (m *Monitor) BeginSystemOperation() func() {
	m.mu.Lock()
	m.sysOps++
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.sysOps--
			m.mu.Unlock()
		})
	}
}

// InSystemOperation reports whether any system operation is open.
func (m *Monitor) InSystemOperation() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sysOps > 0
}

// MarkCorpusReady starts the settle window. Events arriving before the
// window elapses count as startup noise from the initial scan.
func (m *Monitor) MarkCorpusReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = true
	m.readyAt = time.Now()
}

// CorpusReady reports whether the settle window has elapsed.
func (m *Monitor) CorpusReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready && time.Since(m.readyAt) >= m.settle
}

// NoteSuppressed counts an event dropped during the settle window.
func (m *Monitor) NoteSuppressed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suppressed++
}

// SuppressedCount returns how many events the settle window swallowed.
func (m *Monitor) SuppressedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suppressed
}
