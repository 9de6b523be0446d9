package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rohmanhakim/curlgrab/internal/fetcher"
)

var (
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

const progressInterval = 250 * time.Millisecond

// progressView prints download progress and the final summary.
type progressView struct {
	out       io.Writer
	lastPrint time.Time
	printed   bool
	last      fetcher.ProgressEvent
}

func newProgressView(out io.Writer) *progressView {
	return &progressView{out: out}
}

func (v *progressView) Progress(p fetcher.ProgressEvent) {
	v.last = p
	now := time.Now()
	if v.printed && now.Sub(v.lastPrint) < progressInterval {
		return
	}
	v.lastPrint = now
	v.printed = true
	fmt.Fprintf(v.out, "\r%s %s", labelStyle.Render("downloading"), formatProgress(p))
}

func (v *progressView) Success(o fetcher.Outcome) {
	v.endLine()
	fmt.Fprintf(v.out, "%s %s\n", successStyle.Render("saved"), o.Path())
	fmt.Fprintf(v.out, "  %s %.2f MB in %s\n",
		mutedStyle.Render("size"),
		float64(o.Bytes())/1_048_576,
		o.Elapsed().Round(time.Millisecond),
	)
	if o.Checksum() != "" {
		fmt.Fprintf(v.out, "  %s %s\n", mutedStyle.Render("checksum"), o.Checksum())
	}
	fmt.Fprintf(v.out, "  %s %s\n", mutedStyle.Render("id"), o.ID())
}

func (v *progressView) Failure(err *fetcher.FetchError) {
	v.endLine()
	fmt.Fprintf(v.out, "%s %s\n", errorStyle.Render(err.Kind.String()), err.Message)
}

func (v *progressView) endLine() {
	if !v.printed {
		return
	}
	// the throttled view may have skipped the final chunk
	fmt.Fprintf(v.out, "\r%s %s\n", labelStyle.Render("downloading"), formatProgress(v.last))
}

// formatProgress derives the rate from the event; events carry no rate of their own.
func formatProgress(p fetcher.ProgressEvent) string {
	return fmt.Sprintf("%.2f MB  %.1fs  %.2f MB/s",
		p.Megabytes(),
		p.ElapsedSeconds(),
		p.Megabytes()/p.ElapsedSeconds(),
	)
}
