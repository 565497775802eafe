package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.genRequestsTotal)
	assert.NotNil(t, collector.genRequestDuration)
	assert.NotNil(t, collector.genCost)
	assert.NotNil(t, collector.pollAttempts)
	assert.NotNil(t, collector.tasksInFlight)
}

func TestCollector_RecordGeneration(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordGeneration("image", "flux", "complete", 12*time.Second, 0.05)
	collector.RecordGeneration("image", "flux", "complete", 8*time.Second, 0.05)
	collector.RecordGeneration("video", "runway", "error", 30*time.Second, 0)

	assert.Equal(t, 2, testutil.CollectAndCount(collector.genRequestsTotal))
	// zero-cost calls must not create a cost series
	assert.Equal(t, 1, testutil.CollectAndCount(collector.genCost))
}

func TestCollector_TaskGauge(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.TaskStarted("video", "runway")
	collector.TaskStarted("video", "runway")
	collector.TaskFinished("video", "runway")

	value := testutil.ToFloat64(collector.tasksInFlight.WithLabelValues("video", "runway"))
	assert.Equal(t, 1.0, value)
}

func TestCollector_RecordPoll(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordPoll("suno", 14)
	assert.Equal(t, 1, testutil.CollectAndCount(collector.pollAttempts))
}

func TestCollector_RecordDBQuery(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBConnections("settings", 4, 2)
	collector.RecordDBQuery("settings", "get_user", 3*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.dbConnectionsIdle.WithLabelValues("settings")))
	assert.Equal(t, 4.0, testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("settings")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.dbQueryDuration))
}
