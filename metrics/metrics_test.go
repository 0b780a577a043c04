package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := New()
	r.File("class", ResultRelocated, 2*time.Millisecond)
	r.File("class", ResultRelocated, time.Millisecond)
	r.File("source", ResultFailed, time.Millisecond)
	r.Run("dir", time.Unix(1700000000, 0))
	r.Diagnostic("method")

	assert.Equal(t, 2.0, testutil.ToFloat64(r.files.WithLabelValues("class", ResultRelocated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.files.WithLabelValues("source", ResultFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("dir")))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(r.lastRun))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.diagnostics.WithLabelValues("method")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.fileDuration), "one histogram per kind")
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.File("class", ResultCopied, time.Second)
		r.Run("jar", time.Now())
		r.Diagnostic("field")
		assert.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
		assert.Nil(t, r.Registry())
	})
}

func TestWriteTextfile(t *testing.T) {
	r := New()
	r.File("resource", ResultCopied, time.Millisecond)
	path := filepath.Join(t.TempDir(), "semshade.prom")
	require.NoError(t, r.WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `semshade_files_total{kind="resource",result="copied"} 1`)
}
