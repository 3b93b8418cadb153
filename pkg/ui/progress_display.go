package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// ProgressDisplay prints one progress line per processed resource
type ProgressDisplay struct {
	mu          sync.Mutex
	out         io.Writer
	total       int
	done        int
	downloaded  int
	unconfirmed int
	skipped     int
	failed      int
	current     string
	startTime   time.Time
	isDebug     bool
}

// NewProgressDisplay creates a display writing to out. In debug mode every
// outcome gets its own line instead of rewriting the progress line.
func NewProgressDisplay(out io.Writer, debug bool) *ProgressDisplay {
	if out == nil {
		out = Output()
	}
	return &ProgressDisplay{out: out, startTime: time.Now(), isDebug: debug}
}

// Begin sets the number of resources the run will process
func (p *ProgressDisplay) Begin(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.startTime = time.Now()
	fmt.Fprintf(p.out, "%s %d resources to check\n", Magenta("→"), total)
}

// StartResource marks the resource currently being processed
func (p *ProgressDisplay) StartResource(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = url
	if !p.isDebug {
		p.printProgress()
	}
}

// Downloaded records a confirmed download
func (p *ProgressDisplay) Downloaded(url, file string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.downloaded++
	p.report(Green("✓"), url, file)
}

// Unconfirmed records a click that produced no file in time
func (p *ProgressDisplay) Unconfirmed(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.unconfirmed++
	p.report(Yellow("?"), url, "no file yet")
}

// Skipped records an already downloaded resource
func (p *ProgressDisplay) Skipped(url, method string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.skipped++
	p.report(Dim("="), url, "already downloaded ("+method+")")
}

// Failed records a per-resource failure
func (p *ProgressDisplay) Failed(url string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	p.failed++
	p.report(Red("✗"), url, fmt.Sprintf("%v", err))
}

func (p *ProgressDisplay) report(mark, url, detail string) {
	p.current = ""
	if p.isDebug {
		fmt.Fprintf(p.out, "%s %s • %s\n", mark, url, Dim(detail))
		return
	}
	p.printProgress()
}

// printProgress rewrites the progress line
func (p *ProgressDisplay) printProgress() {
	line := fmt.Sprintf("[%s] %d/%d • %s new • %s skipped",
		Bar(p.done, p.total),
		p.done,
		p.total,
		Green(fmt.Sprintf("%d", p.downloaded)),
		Dim(fmt.Sprintf("%d", p.skipped)),
	)
	if p.unconfirmed > 0 {
		line += fmt.Sprintf(" • %s", Yellow(fmt.Sprintf("%d unconfirmed", p.unconfirmed)))
	}
	if p.failed > 0 {
		line += fmt.Sprintf(" • %s", Red(fmt.Sprintf("%d failed", p.failed)))
	}
	if p.current != "" {
		line += " • " + p.current
	}
	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}

// Complete prints the end-of-run report
func (p *ProgressDisplay) Complete(s Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n\n%s Run %s finished in %s\n", Green("✓"), s.RunID, FormatDuration(s.Duration))
	fmt.Fprintf(p.out, "  %s %d downloaded\n", Dim("•"), s.Downloaded)
	fmt.Fprintf(p.out, "  %s %d already present\n", Dim("•"), s.Skipped)
	if s.Unconfirmed > 0 {
		fmt.Fprintf(p.out, "  %s %d unconfirmed (retried next run)\n", Dim("•"), s.Unconfirmed)
	}
	if s.Recovered > 0 {
		fmt.Fprintf(p.out, "  %s %d earlier downloads confirmed\n", Dim("•"), s.Recovered)
	}
	if s.Failed > 0 {
		fmt.Fprintf(p.out, "  %s %s\n", Dim("•"), Red(fmt.Sprintf("%d failed", s.Failed)))
	}
	fmt.Fprintf(p.out, "  %s %d of %d resources processed\n", Dim("•"), s.Downloaded+s.Unconfirmed+s.Skipped+s.Failed, s.Total)
	fmt.Fprintf(p.out, "  %s library: %d videos, %s\n", Dim("•"), s.LibraryFiles, FormatGB(s.LibraryBytes))
}
