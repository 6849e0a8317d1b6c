package profiling

import (
	"log"
	"runtime"
	"time"
)

// SolveTimer measures one solve on a worker
type SolveTimer struct {
	startTime   time.Time
	startMemory uint64
	workerID    int
	requestID   string
}

// NewSolveTimer starts timing a solve
func NewSolveTimer(workerID int, requestID string) *SolveTimer {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &SolveTimer{
		startTime:   time.Now(),
		startMemory: m.Alloc,
		workerID:    workerID,
		requestID:   requestID,
	}
}

// Finish logs the elapsed time and heap delta and returns the elapsed time.
func (st *SolveTimer) Finish(success bool) time.Duration {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	duration := time.Since(st.startTime)
	memoryDelta := int64(m.Alloc) - int64(st.startMemory)
	status := "✅"
	if !success {
		status = "❌"
	}

	log.Printf("🔍 Worker[%d] %s %s: %.3fms, memory: %+d bytes, goroutines: %d",
		st.workerID, st.requestID, status, float64(duration.Nanoseconds())/1e6, memoryDelta, runtime.NumGoroutine())
	return duration
}

// MemoryLogger logs memory usage at a fixed interval
type MemoryLogger struct {
	interval time.Duration
	stopChan chan struct{}
}

// NewMemoryLogger creates a new memory logger
func NewMemoryLogger(interval time.Duration) *MemoryLogger {
	return &MemoryLogger{
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins logging
func (ml *MemoryLogger) Start() {
	go func() {
		ticker := time.NewTicker(ml.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				LogGCStats()
			case <-ml.stopChan:
				return
			}
		}
	}()
}

// Stop ends logging
func (ml *MemoryLogger) Stop() {
	close(ml.stopChan)
}

// GCStats provides garbage collection statistics
type GCStats struct {
	NumGC        uint32    `json:"gc_runs"`
	PauseTotal   float64   `json:"pause_total_ms"`
	PauseRecent  float64   `json:"pause_recent_us"`
	LastGC       time.Time `json:"last_gc"`
	GCCPUPercent float64   `json:"cpu_percent"`
	AllocMB      float64   `json:"alloc_mb"`
	Goroutines   int       `json:"goroutines"`
}

// GetGCStats returns current garbage collection statistics
func GetGCStats() GCStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	var recentPause time.Duration
	if m.NumGC > 0 {
		recentPause = time.Duration(m.PauseNs[(m.NumGC+255)%256])
	}

	return GCStats{
		NumGC:        m.NumGC,
		PauseTotal:   float64(m.PauseTotalNs) / 1e6,
		PauseRecent:  float64(recentPause.Nanoseconds()) / 1e3,
		LastGC:       time.Unix(0, int64(m.LastGC)),
		GCCPUPercent: m.GCCPUFraction * 100,
		AllocMB:      bToMb(m.Alloc),
		Goroutines:   runtime.NumGoroutine(),
	}
}

// LogGCStats logs garbage collection statistics
func LogGCStats() {
	stats := GetGCStats()
	log.Printf("🗑️  GC: Runs=%d, TotalPause=%.2fms, RecentPause=%.2fμs, CPU=%.2f%%, Alloc=%.2fMB, Goroutines=%d",
		stats.NumGC, stats.PauseTotal, stats.PauseRecent, stats.GCCPUPercent, stats.AllocMB, stats.Goroutines)
}

// ForceGC triggers garbage collection and returns the stats after it
func ForceGC() GCStats {
	before := GetGCStats()
	runtime.GC()
	after := GetGCStats()

	log.Printf("🗑️  Forced GC: %d→%d runs, pause: %.2fμs", before.NumGC, after.NumGC, after.PauseRecent)
	return after
}
