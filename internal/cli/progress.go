package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"github.com/ytget/video-downloader/internal/model"
)

// plainInterval spaces progress lines when stdout is not a terminal
const plainInterval = 5 * time.Second

// progressPrinter redraws one status line on a terminal and prints
// periodic lines otherwise
type progressPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	tty     bool
	every   rate.Sometimes
	lastLen int
	active  bool
}

func newProgressPrinter(w io.Writer, tty bool) *progressPrinter {
	return &progressPrinter{
		w:     w,
		tty:   tty,
		every: rate.Sometimes{First: 1, Interval: plainInterval},
	}
}

func (p *progressPrinter) Update(pr model.Progress) {
	line := formatProgress(pr)
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.tty {
		p.every.Do(func() { fmt.Fprintln(p.w, line) })
		return
	}
	pad := ""
	if n := p.lastLen - len(line); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprintf(p.w, "\r%s%s", line, pad)
	p.lastLen = len(line)
	p.active = true
}

// Done ends the redrawn line
func (p *progressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active {
		fmt.Fprintln(p.w)
		p.active = false
		p.lastLen = 0
	}
}

func formatProgress(pr model.Progress) string {
	var b strings.Builder
	if pr.TotalBytes > 0 {
		fmt.Fprintf(&b, "%3d%% %s / %s", pr.Percent(), humanize.IBytes(uint64(pr.DownloadedBytes)), humanize.IBytes(uint64(pr.TotalBytes)))
	} else {
		fmt.Fprintf(&b, "%s", humanize.IBytes(uint64(pr.DownloadedBytes)))
	}
	if pr.SpeedBps > 0 {
		fmt.Fprintf(&b, " at %s/s", humanize.IBytes(uint64(pr.SpeedBps)))
	}
	if pr.ETA > 0 {
		fmt.Fprintf(&b, " ETA %s", model.FormatETA(int(pr.ETA.Seconds())))
	}
	if pr.Status == model.ProgressFinished {
		b.WriteString(" done")
	}
	return b.String()
}
