package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/decision-crafters/pinecone-mcp-helper/internal/utils"
)

// StateFileName is written at the repository root and excluded from repomix
const StateFileName = ".repo-ingest-state.json"

// Manager tracks which repository files were ingested and under which ids
type Manager struct {
	repoDir  string
	state    *RepoState
	mu       sync.RWMutex
	dirty    bool
	logger   *utils.Logger
	disabled bool
	seen     sync.Map
}

type ManagerOptions struct {
	RepoDir    string
	Repository string
	Index      string
	Namespace  string
	Logger     *utils.Logger
	Disabled   bool
}

func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		repoDir:  opts.RepoDir,
		logger:   opts.Logger,
		disabled: opts.Disabled,
		state:    NewRepoState(opts.Repository, opts.Index, opts.Namespace),
	}
}

// Load reads the state file. A state recorded for a different index or
// namespace is discarded so the run re-ingests everything.
func (m *Manager) Load(ctx context.Context) error {
	if m.disabled {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.Path())
	if os.IsNotExist(err) {
		return ErrNoState
	}
	if err != nil {
		return err
	}

	var st RepoState
	if err := json.Unmarshal(data, &st); err != nil {
		return ErrCorruptState
	}

	if st.Version != StateVersion {
		if m.logger != nil {
			m.logger.Warn().
				Int("file_version", st.Version).
				Int("expected_version", StateVersion).
				Msg("State version mismatch, will rebuild state")
		}
		return ErrSchemaVersion
	}

	if (m.state.Index != "" && st.Index != m.state.Index) ||
		(m.state.Namespace != "" && st.Namespace != m.state.Namespace) {
		if m.logger != nil {
			m.logger.Info().
				Str("index", st.Index).
				Str("namespace", st.Namespace).
				Msg("State belongs to another index, starting fresh")
		}
		return nil
	}

	if st.Files == nil {
		st.Files = make(map[string]FileState)
	}
	if m.state.Repository != "" {
		st.Repository = m.state.Repository
	}
	m.state = &st
	return nil
}

// Save writes the state file when something changed since the last save
func (m *Manager) Save(ctx context.Context) error {
	if m.disabled {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.dirty {
		return nil
	}

	m.state.LastRun = time.Now()

	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return err
	}

	path := m.Path()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}

	m.dirty = false
	if m.logger != nil {
		m.logger.Debug().
			Int("files", len(m.state.Files)).
			Str("path", path).
			Msg("State saved")
	}
	return nil
}

// ShouldProcess reports whether path is new or its content changed
func (m *Manager) ShouldProcess(path, contentHash string) bool {
	if m.disabled {
		return true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.state.Files[path]
	if !ok {
		return true
	}
	return f.ContentHash != contentHash
}

// Get returns the recorded state for path
func (m *Manager) Get(path string) (FileState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.state.Files[path]
	return f, ok
}

func (m *Manager) Update(path string, f FileState) {
	if m.disabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if f.IngestedAt.IsZero() {
		f.IngestedAt = time.Now()
	}
	m.state.Files[path] = f
	m.dirty = true
}

func (m *Manager) MarkSeen(path string) {
	m.seen.Store(path, true)
}

// Stale lists tracked files that were not marked seen in this run, sorted
func (m *Manager) Stale() []string {
	if m.disabled {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var stale []string
	for path := range m.state.Files {
		if _, ok := m.seen.Load(path); !ok {
			stale = append(stale, path)
		}
	}
	sort.Strings(stale)
	return stale
}

// Remove drops path from the state
func (m *Manager) Remove(path string) {
	if m.disabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.Files[path]; ok {
		delete(m.state.Files, path)
		m.dirty = true
	}
}

// SetCommit records the commit the run ingested
func (m *Manager) SetCommit(commit string) {
	if m.disabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.LastCommit != commit {
		m.state.LastCommit = commit
		m.dirty = true
	}
}

func (m *Manager) LastCommit() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.LastCommit
}

// Stats returns the number of tracked files and how many were not seen
func (m *Manager) Stats() (total, unseen int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total = len(m.state.Files)
	for path := range m.state.Files {
		if _, ok := m.seen.Load(path); !ok {
			unseen++
		}
	}
	return total, unseen
}

// Path returns the state file location
func (m *Manager) Path() string {
	return filepath.Join(m.repoDir, StateFileName)
}
