package report

import (
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"golang.org/x/term"
)

// Progress is the live "N jobs running" indicator shown while a hook
// executes. It is suspended for the duration of an interactive Job (spec
// §4.4: "suspending the progress display") and resumed afterward.
type Progress struct {
	mu      sync.Mutex
	sp      *spinner.Spinner
	enabled bool
}

// NewProgress builds a Progress writing to out, auto-disabling itself when
// out is not a terminal (e.g. piped to a file or CI log).
func NewProgress(out *os.File) *Progress {
	enabled := term.IsTerminal(int(out.Fd()))
	sp := spinner.New(spinner.CharSets[11], 120*time.Millisecond, spinner.WithWriter(out))
	return &Progress{sp: sp, enabled: enabled}
}

// Start begins displaying the spinner with the given status line.
func (p *Progress) Start(status string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sp.Suffix = " " + status
	p.sp.Start()
}

// Update changes the status line without restarting the spinner.
func (p *Progress) Update(status string) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sp.Suffix = " " + status
}

// Suspend pauses the spinner for the duration of fn (used while an
// interactive Job holds the terminal).
func (p *Progress) Suspend(fn func()) {
	if !p.enabled {
		fn()
		return
	}
	p.mu.Lock()
	p.sp.Stop()
	p.mu.Unlock()
	fn()
	p.mu.Lock()
	p.sp.Start()
	p.mu.Unlock()
}

// Stop halts the spinner for good.
func (p *Progress) Stop() {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sp.Stop()
}

// TerminalWidth returns the current terminal column width, or a
// conservative default when out is not a terminal.
func TerminalWidth(out *os.File) int {
	if !term.IsTerminal(int(out.Fd())) {
		return 80
	}
	w, _, err := term.GetSize(int(out.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
