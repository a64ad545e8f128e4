package state

import "time"

// StateVersion is the schema version for state file migration
const StateVersion = 1

// RepoState is the incremental ingestion state of one repository
type RepoState struct {
	Version    int                  `json:"version"`
	Repository string               `json:"repository"`
	Index      string               `json:"index,omitempty"`
	Namespace  string               `json:"namespace,omitempty"`
	LastCommit string               `json:"last_commit,omitempty"`
	LastRun    time.Time            `json:"last_run"`
	Files      map[string]FileState `json:"files"`
}

// FileState records what was upserted for a single repository file
type FileState struct {
	ContentHash string    `json:"content_hash"`
	VectorIDs   []string  `json:"vector_ids"`
	IngestedAt  time.Time `json:"ingested_at"`
}

// NewRepoState creates an empty state
func NewRepoState(repository, index, namespace string) *RepoState {
	return &RepoState{
		Version:    StateVersion,
		Repository: repository,
		Index:      index,
		Namespace:  namespace,
		LastRun:    time.Now(),
		Files:      make(map[string]FileState),
	}
}

// FileCount returns the number of tracked files
func (s *RepoState) FileCount() int {
	return len(s.Files)
}

// VectorCount returns the number of tracked vector ids
func (s *RepoState) VectorCount() int {
	n := 0
	for _, f := range s.Files {
		n += len(f.VectorIDs)
	}
	return n
}
