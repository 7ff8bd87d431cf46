package work

import (
	"sync"
	"time"

	"github.com/aristath/lottoscan/internal/events"
	"github.com/aristath/lottoscan/internal/progress"
	"github.com/aristath/lottoscan/internal/scan"
)

// ProgressReporter turns scan progress into run events for the status
// stream.
type ProgressReporter struct {
	eventEmitter EventEmitter
	runID        string
	analysis     string
	now          func() time.Time

	// Throttling to avoid spam
	lastReport time.Time
	mu         sync.Mutex
}

// EventEmitter defines the interface for emitting events
type EventEmitter interface {
	Emit(event string, data any)
}

// Throttle interval for progress events (avoid spam)
const progressThrottleInterval = 100 * time.Millisecond

// NewProgressReporter creates a new progress reporter for a run
func NewProgressReporter(emitter EventEmitter, runID, analysis string) *ProgressReporter {
	return &ProgressReporter{
		eventEmitter: emitter,
		runID:        runID,
		analysis:     analysis,
		now:          time.Now,
	}
}

// Callback returns the scan progress callback feeding this reporter.
func (r *ProgressReporter) Callback() progress.DetailedCallback {
	if r == nil || r.eventEmitter == nil {
		return nil
	}
	return r.Report
}

// Report emits a progress update. Checkpoint failures are always emitted;
// other updates are throttled.
func (r *ProgressReporter) Report(update progress.Update) {
	if r == nil || r.eventEmitter == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	info := &events.ProgressInfo{
		Percent:  update.Percent(),
		Message:  update.Message,
		Phase:    update.Phase,
		SubPhase: update.SubPhase,
		Details:  update.Details,
	}
	if update.Current != nil {
		info.Current = update.Current.String()
	}
	if update.Total != nil {
		info.Total = update.Total.String()
	}

	now := r.now()
	status := "progress"
	data := &events.ScanStatusData{
		RunID:     r.runID,
		Analysis:  r.analysis,
		Progress:  info,
		Timestamp: now,
	}
	if update.Phase == "checkpoint_failed" {
		status = "checkpoint_failed"
		data.Error = update.Message
	} else {
		if now.Sub(r.lastReport) < progressThrottleInterval {
			return
		}
		r.lastReport = now
	}
	data.Status = status

	r.eventEmitter.Emit(string(data.EventType()), data)
}

// emitStarted emits a ScanStarted event
func (r *ProgressReporter) emitStarted() {
	if r == nil || r.eventEmitter == nil {
		return
	}

	r.eventEmitter.Emit(string(events.ScanStarted), &events.ScanStatusData{
		RunID:     r.runID,
		Analysis:  r.analysis,
		Status:    "started",
		Timestamp: r.now(),
	})
}

// emitCompleted emits a ScanCompleted event
func (r *ProgressReporter) emitCompleted(summary scan.Summary, duration time.Duration) {
	if r == nil || r.eventEmitter == nil {
		return
	}

	r.eventEmitter.Emit(string(events.ScanCompleted), &events.ScanStatusData{
		RunID:    r.runID,
		Analysis: r.analysis,
		Status:   "completed",
		Progress: &events.ProgressInfo{
			Current: summary.Processed.String(),
			Total:   summary.Total.String(),
			Phase:   summary.State.String(),
			Details: map[string]interface{}{
				"completed":        summary.Completed,
				"blocks_remaining": summary.Blocks - summary.BlocksComplete,
				"rank_size":        summary.RankSize,
			},
		},
		Duration:  duration.Seconds(),
		Timestamp: r.now(),
	})
}

// emitFailed emits a ScanFailed event
func (r *ProgressReporter) emitFailed(err error, duration time.Duration) {
	if r == nil || r.eventEmitter == nil {
		return
	}

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}

	r.eventEmitter.Emit(string(events.ScanFailed), &events.ScanStatusData{
		RunID:     r.runID,
		Analysis:  r.analysis,
		Status:    "failed",
		Error:     errMsg,
		Duration:  duration.Seconds(),
		Timestamp: r.now(),
	})
}
