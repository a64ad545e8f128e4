package state

import "errors"

// Load returns these when the previous run cannot be reused. Callers treat
// all three as "ingest everything".
var (
	ErrNoState       = errors.New("no ingestion state recorded")
	ErrCorruptState  = errors.New("ingestion state is not valid JSON")
	ErrSchemaVersion = errors.New("ingestion state written by an incompatible version")
)
