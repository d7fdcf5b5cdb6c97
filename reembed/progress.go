package reembed

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker rewrites one terminal line with the chunk count, rate and
// estimated time remaining.
type ProgressTracker struct {
	mu      sync.Mutex
	out     io.Writer
	now     func() time.Time
	total   int
	done    int
	every   int
	printed int
	begun   time.Time
	running bool
}

// NewProgressTracker reports on total chunks, printing after every `every` chunks.
func NewProgressTracker(out io.Writer, total, every int) *ProgressTracker {
	if out == nil {
		out = io.Discard
	}
	return &ProgressTracker{
		out:   out,
		now:   time.Now,
		total: total,
		every: max(every, 1),
	}
}

func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.begun = p.now()
	p.running = true
	p.done, p.printed = 0, 0
}

// Add counts n more chunks. Calls before Start are ignored.
func (p *ProgressTracker) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.done = min(p.done+n, p.total)
	if p.done-p.printed >= p.every {
		p.printLine()
		p.printed = p.done
	}
}

// Finish prints the final line and ends it.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}
	p.done = p.total
	p.printLine()
	fmt.Fprintln(p.out)
}

// Elapsed returns the time since Start, or zero before it.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return 0
	}
	return p.now().Sub(p.begun)
}

// printLine is called with mu held.
func (p *ProgressTracker) printLine() {
	pct := 100.0
	if p.total > 0 {
		pct = 100 * float64(p.done) / float64(p.total)
	}
	var rate float64
	eta := time.Duration(0)
	if secs := p.now().Sub(p.begun).Seconds(); secs > 0 && p.done > 0 {
		rate = float64(p.done) / secs
		eta = time.Duration(float64(p.total-p.done) / rate * float64(time.Second))
	}
	fmt.Fprintf(p.out, "\rChunks: %d/%d (%.1f%%) - %.1f chunks/s, eta %s",
		p.done, p.total, pct, rate, eta.Round(time.Second))
}
