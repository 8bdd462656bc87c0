package metrics

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const decisionMetricsFileName = "decision_metrics.json"

var latencyBucketUpperBoundsMs = []int64{
	10, 25, 50, 100, 250, 500, 1000, 2000, 5000, 10000, 30000,
}

// Outcome labels recorded per enforcement decision.
const (
	OutcomeAllowed          = "allowed"
	OutcomeDenied           = "denied"
	OutcomeInterceptorBlock = "interceptor_block"
)

// DecisionSnapshot contains aggregated enforcement decision metrics.
type DecisionSnapshot struct {
	UpdatedAt time.Time     `json:"updated_at"`
	Decisions DecisionStats `json:"decisions"`
}

// DecisionStats tracks enforcement decision counts and latency.
type DecisionStats struct {
	Total             int64 `json:"total"`
	Allowed           int64 `json:"allowed"`
	Denied            int64 `json:"denied"`
	InterceptorBlocks int64 `json:"interceptor_blocks"`
	TotalLatencyMs    int64 `json:"total_latency_ms"`
	MaxLatencyMs      int64 `json:"max_latency_ms"`
	LastLatencyMs     int64 `json:"last_latency_ms"`
	P95ProxyLatencyMs int64 `json:"p95_proxy_latency_ms"`
}

// DenyRatio returns (denied+interceptor blocks)/total in [0,1].
func (d DecisionStats) DenyRatio() float64 {
	if d.Total <= 0 {
		return 0
	}
	return float64(d.Denied+d.InterceptorBlocks) / float64(d.Total)
}

// AvgLatencyMs returns average enforcement latency in milliseconds.
func (d DecisionStats) AvgLatencyMs() float64 {
	if d.Total <= 0 {
		return 0
	}
	return float64(d.TotalLatencyMs) / float64(d.Total)
}

// HasData reports whether any decisions were recorded.
func (s DecisionSnapshot) HasData() bool {
	return s.Decisions.Total > 0
}

// DecisionMetrics records and persists enforcement decision metrics.
type DecisionMetrics struct {
	path string

	mu      sync.Mutex
	snap    DecisionSnapshot
	buckets []int64
}

// NewDecisionMetrics creates a metrics recorder rooted at <workspace>/state/decision_metrics.json.
func NewDecisionMetrics(workspacePath string) *DecisionMetrics {
	return &DecisionMetrics{
		path:    decisionMetricsPath(workspacePath),
		buckets: make([]int64, len(latencyBucketUpperBoundsMs)+1),
	}
}

// Snapshot returns the latest in-memory snapshot.
func (m *DecisionMetrics) Snapshot() DecisionSnapshot {
	if m == nil {
		return DecisionSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// RecordDecision updates decision metrics and persists the snapshot.
func (m *DecisionMetrics) RecordDecision(duration time.Duration, outcome string) (DecisionSnapshot, error) {
	if m == nil {
		return DecisionSnapshot{}, nil
	}

	now := time.Now().UTC()
	latencyMs := duration.Milliseconds()
	if latencyMs < 0 {
		latencyMs = 0
	}

	m.mu.Lock()
	m.snap.UpdatedAt = now
	m.snap.Decisions.Total++
	m.snap.Decisions.TotalLatencyMs += latencyMs
	m.snap.Decisions.LastLatencyMs = latencyMs
	if latencyMs > m.snap.Decisions.MaxLatencyMs {
		m.snap.Decisions.MaxLatencyMs = latencyMs
	}
	switch outcome {
	case OutcomeDenied:
		m.snap.Decisions.Denied++
	case OutcomeInterceptorBlock:
		m.snap.Decisions.InterceptorBlocks++
	default:
		m.snap.Decisions.Allowed++
	}

	m.buckets[latencyBucketIndex(latencyMs)]++
	m.snap.Decisions.P95ProxyLatencyMs = p95ProxyFromBuckets(m.buckets, m.snap.Decisions.Total)

	snapshot := m.snap
	m.mu.Unlock()

	return snapshot, persistDecisionSnapshot(m.path, snapshot)
}

// ReadDecisionSnapshot reads the persisted snapshot from workspace state.
// If no file exists yet, it returns a zero-value snapshot and nil error.
func ReadDecisionSnapshot(workspacePath string) (DecisionSnapshot, error) {
	path := decisionMetricsPath(workspacePath)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DecisionSnapshot{}, nil
		}
		return DecisionSnapshot{}, fmt.Errorf("read decision metrics: %w", err)
	}

	var snap DecisionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return DecisionSnapshot{}, fmt.Errorf("decode decision metrics: %w", err)
	}
	return snap, nil
}

func decisionMetricsPath(workspacePath string) string {
	return filepath.Join(workspacePath, "state", decisionMetricsFileName)
}

func persistDecisionSnapshot(path string, snapshot DecisionSnapshot) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create decision metrics dir: %w", err)
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode decision metrics: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, payload, 0o644); err != nil {
		return fmt.Errorf("write decision metrics temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename decision metrics file: %w", err)
	}
	return nil
}

func latencyBucketIndex(latencyMs int64) int {
	for i, upper := range latencyBucketUpperBoundsMs {
		if latencyMs <= upper {
			return i
		}
	}
	return len(latencyBucketUpperBoundsMs)
}

func p95ProxyFromBuckets(buckets []int64, total int64) int64 {
	if total <= 0 {
		return 0
	}
	target := int64(float64(total) * 0.95)
	if target <= 0 {
		target = 1
	}

	var cumulative int64
	for i, count := range buckets {
		cumulative += count
		if cumulative < target {
			continue
		}
		if i >= len(latencyBucketUpperBoundsMs) {
			return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
		}
		return latencyBucketUpperBoundsMs[i]
	}
	return latencyBucketUpperBoundsMs[len(latencyBucketUpperBoundsMs)-1]
}
