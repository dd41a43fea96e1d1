package hunt

import (
	"sync"
	"time"
)

// Metrics tracks scan statistics for one controller.
type Metrics struct {
	mu sync.RWMutex

	Scans        int64
	Detections   int64
	Attacks      int64
	LastScanTime time.Time

	TotalDuration   time.Duration
	MinDuration     time.Duration
	MaxDuration     time.Duration
	AverageDuration time.Duration
}

func NewMetrics() *Metrics {
	return &Metrics{
		MinDuration: time.Duration(1<<63 - 1),
	}
}

// RecordScan records one tick that grabbed a frame.
func (m *Metrics) RecordScan(duration time.Duration, detected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Scans++
	m.LastScanTime = time.Now()
	if detected {
		m.Detections++
	}

	m.TotalDuration += duration
	if duration < m.MinDuration {
		m.MinDuration = duration
	}
	if duration > m.MaxDuration {
		m.MaxDuration = duration
	}
	m.AverageDuration = m.TotalDuration / time.Duration(m.Scans)
}

func (m *Metrics) RecordAttack() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attacks++
}

// Snapshot is a copy safe to read without the lock.
type Snapshot struct {
	Scans, Detections, Attacks int64
	AverageDuration            time.Duration
	MaxDuration                time.Duration
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Scans:           m.Scans,
		Detections:      m.Detections,
		Attacks:         m.Attacks,
		AverageDuration: m.AverageDuration,
		MaxDuration:     m.MaxDuration,
	}
}
