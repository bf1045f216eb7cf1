// Show the dynamic progress bar

package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ThierryZhou/go-s3connector/s3"
)

const (
	// interval between progress prints
	defaultProgressInterval = 500 * time.Millisecond
	// time format for logging
	logTimeFormat = "2006-01-02 15:04:05"
)

// progress prints transfer state to out. It implements s3.Accounter.
type progress struct {
	out      io.Writer
	interval time.Duration

	mu      sync.Mutex
	name    string
	size    int64
	bytes   int64
	started time.Time
	stop    chan struct{}
	wg      sync.WaitGroup
}

var _ s3.Accounter = (*progress)(nil)

func newProgress(out io.Writer) *progress {
	return &progress{out: out, interval: defaultProgressInterval}
}

// Start begins printing the progress line for name.
func (p *progress) Start(name string, size int64) {
	p.mu.Lock()
	p.name = name
	p.size = size
	p.bytes = 0
	p.started = time.Now()
	p.stop = make(chan struct{})
	stop := p.stop
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.printProgress("")
			case <-stop:
				return
			}
		}
	}()
}

// Account adds n transferred bytes.
func (p *progress) Account(n int) {
	p.mu.Lock()
	p.bytes += int64(n)
	p.mu.Unlock()
}

// Done stops the ticker and prints the final state.
func (p *progress) Done(err error) {
	p.mu.Lock()
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	p.wg.Wait()

	msg := "done"
	if err != nil {
		msg = "failed: " + err.Error()
	}
	p.printProgress(fmt.Sprintf("%s %s", time.Now().Format(logTimeFormat), msg))
}

// printProgress redraws the progress line with an optional log message
// below it.
func (p *progress) printProgress(logMessage string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var buf strings.Builder
	buf.WriteString("\r")
	buf.WriteString(p.line())
	logMessage = strings.TrimSpace(logMessage)
	if logMessage != "" {
		buf.WriteString("\n")
		buf.WriteString(logMessage)
		buf.WriteString("\n")
	}
	_, _ = io.WriteString(p.out, buf.String())
}

func (p *progress) line() string {
	elapsed := time.Since(p.started).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(p.bytes) / elapsed
	}
	total := "?"
	percent := ""
	if p.size >= 0 {
		total = sizeSuffix(p.size)
		if p.size > 0 {
			percent = fmt.Sprintf(" %3d%%", p.bytes*100/p.size)
		}
	}
	return fmt.Sprintf("%s: %s / %s%s, %s/s", p.name, sizeSuffix(p.bytes), total, percent, sizeSuffix(int64(rate)))
}

// sizeSuffix renders n bytes with a binary unit.
func sizeSuffix(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
