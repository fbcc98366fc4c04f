package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New()

	m.DocumentUploaded()
	m.IngestionFinished("processed")
	m.IngestionFinished("failed")
	m.IngestionFinished("failed")
	m.ChunksStored(5)
	m.EmbeddingRequest("success")
	m.SearchObserved(120 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.documentsUploaded))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.documentsIngested.WithLabelValues("failed")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.chunksStored))
	assert.Equal(t, 1, testutil.CollectAndCount(m.searchDuration))

	families, err := m.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.DocumentUploaded()
		m.IngestionFinished("processed")
		m.ChunksStored(3)
		m.EmbeddingRequest("error")
		m.SearchObserved(time.Second)
	})
	assert.NotNil(t, m.Handler())
	assert.Nil(t, m.Registry())
}
