// internal/metrics/aggregator.go
package metrics

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mwiater/atelier/internal/logging"
)

// Outcome classifies a single recorded call.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeEmpty
	OutcomeFailure
)

// Aggregator collects and manages per-provider call metrics.
type Aggregator struct {
	mutex   sync.Mutex
	metrics map[string]*CallMetrics
}

var (
	instance *Aggregator
	once     sync.Once
)

// GetInstance returns the singleton instance of the Aggregator.
func GetInstance() *Aggregator {
	once.Do(func() {
		instance = NewAggregator()
	})
	return instance
}

// NewAggregator creates and initializes a new Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{metrics: make(map[string]*CallMetrics)}
}

// Record updates the metrics for key with one call's latency and outcome.
func (a *Aggregator) Record(key string, elapsed time.Duration, outcome Outcome) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	m, exists := a.metrics[key]
	if !exists {
		m = &CallMetrics{Key: key}
		a.metrics[key] = m
	}
	m.LastUpdatedUTC = time.Now().UTC()
	m.TotalRequests++
	switch outcome {
	case OutcomeFailure:
		m.Failures++
	case OutcomeEmpty:
		m.EmptyResponses++
	}
	updateRunningStat(&m.LatencyMillis, float64(elapsed.Milliseconds()))
}

// Snapshot returns copies of all metrics ordered by key.
func (a *Aggregator) Snapshot() []CallMetrics {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	out := make([]CallMetrics, 0, len(a.metrics))
	for _, m := range a.metrics {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Save writes the current metrics as indented JSON to path.
func (a *Aggregator) Save(path string) error {
	logging.LogEvent("[METRICS] Saving metrics to %s", path)
	data, err := json.MarshalIndent(a.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// updateRunningStat updates a single running statistic using Welford's online algorithm.
func updateRunningStat(rs *RunningStat, value float64) {
	rs.Count++
	if rs.Count == 1 {
		rs.Min = value
		rs.Max = value
	} else {
		if value < rs.Min {
			rs.Min = value
		}
		if value > rs.Max {
			rs.Max = value
		}
	}

	delta := value - rs.Mean
	rs.Mean += delta / float64(rs.Count)
	delta2 := value - rs.Mean
	rs.M2 += delta * delta2
}
