package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Independent(t *testing.T) {
	a := New()
	b := New()

	a.ChunksExtracted.WithLabelValues("repository").Add(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(a.ChunksExtracted.WithLabelValues("repository")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ChunksExtracted.WithLabelValues("repository")))
}

func TestURLResult(t *testing.T) {
	m := New()
	m.URLResult(nil)
	m.URLResult(nil)
	m.URLResult(errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.URLsScraped.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.URLsScraped.WithLabelValues("failed")))
}

func TestRunFinished(t *testing.T) {
	m := New()
	m.RunFinished(nil)
	m.RunFinished(errors.New("stage failed"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("failure")))
	assert.Greater(t, testutil.ToFloat64(m.LastRunTimestamp), 0.0)
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.VectorsUpserted.WithLabelValues("demo-code").Add(42)
	m.ValidationRate.WithLabelValues("demo").Set(0.8)
	m.ObserveStage("embed", time.Now().Add(-2*time.Second))

	path := filepath.Join(t.TempDir(), "repo_ingest.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `repo_ingest_vectors_upserted_total{namespace="demo-code"} 42`)
	assert.Contains(t, out, `repo_ingest_validation_success_rate{repository="demo"} 0.8`)
	assert.Contains(t, out, `repo_ingest_stage_duration_seconds_count{stage="embed"} 1`)
}
