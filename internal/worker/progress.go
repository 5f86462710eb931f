package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const barWidth = 30

// Progress tracks and displays bake progress on a single terminal line.
type Progress struct {
	startTime time.Time
	output    io.Writer
	total     int
	completed int
	failed    int
	mu        sync.RWMutex
	enabled   bool
}

// Stats is a snapshot of a Progress.
type Stats struct {
	Completed int
	Total     int
	Failed    int
	Elapsed   time.Duration
	Rate      float64 // bakes per second
}

// ETA estimates the remaining time, or 0 when unknown or done.
func (s Stats) ETA() time.Duration {
	if s.Rate <= 0 || s.Completed >= s.Total {
		return 0
	}
	return time.Duration(float64(s.Total-s.Completed)/s.Rate) * time.Second
}

// NewProgress creates a new progress tracker for total bakes.
func NewProgress(total int, enabled bool) *Progress {
	return &Progress{
		total:     total,
		startTime: time.Now(),
		output:    os.Stderr,
		enabled:   enabled,
	}
}

// Update records the completion of a task.
func (p *Progress) Update(completed, total, failed int) {
	p.mu.Lock()
	p.completed = completed
	p.total = total
	p.failed = failed
	p.mu.Unlock()

	if p.enabled {
		p.Print()
	}
}

// Callback returns a ProgressFunc suitable for use with Pool.Config.
func (p *Progress) Callback() ProgressFunc {
	return p.Update
}

// Stats returns the current counters.
func (p *Progress) Stats() Stats {
	p.mu.RLock()
	s := Stats{Completed: p.completed, Total: p.total, Failed: p.failed}
	startTime := p.startTime
	p.mu.RUnlock()

	s.Elapsed = time.Since(startTime)
	if s.Completed > 0 && s.Elapsed > 0 {
		s.Rate = float64(s.Completed) / s.Elapsed.Seconds()
	}
	return s
}

// Print writes the progress line to output.
func (p *Progress) Print() {
	s := p.Stats()

	filled := 0
	if s.Total > 0 {
		filled = s.Completed * barWidth / s.Total
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	var b strings.Builder
	fmt.Fprintf(&b, "\r[%s] %d/%d bakes", bar, s.Completed, s.Total)
	if s.Failed > 0 {
		fmt.Fprintf(&b, " (%d failed)", s.Failed)
	}
	fmt.Fprintf(&b, " - %.1f bakes/sec", s.Rate)
	if eta := s.ETA(); eta > 0 {
		fmt.Fprintf(&b, " - ETA: %s", formatDuration(eta))
	}
	if s.Completed == s.Total {
		fmt.Fprintf(&b, " - Done in %s", formatDuration(s.Elapsed))
	}
	// Pad to clear the previous line.
	b.WriteString("          ")

	fmt.Fprint(p.output, b.String())
}

// Done prints the final progress and a newline.
func (p *Progress) Done() {
	if p.enabled {
		p.Print()
		fmt.Fprintln(p.output)
	}
}

// Summary returns a one line summary of the completed work.
func (p *Progress) Summary() string {
	s := p.Stats()
	return fmt.Sprintf("Baked %d/%d (%d failed) in %s (%.1f bakes/sec)",
		s.Completed-s.Failed, s.Total, s.Failed, formatDuration(s.Elapsed), s.Rate)
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
