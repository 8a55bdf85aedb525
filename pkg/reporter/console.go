package reporter

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"reef-swap/pkg/types"
)

// Console prints notifications to a terminal
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console notifier; a nil writer means stdout
func NewConsole(out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{out: out}
}

// Notify implements the executor's notifier
func (c *Console) Notify(level types.Level, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, levelColor(level).Sprint(message))
}

func levelColor(level types.Level) *color.Color {
	switch level {
	case types.LevelSuccess:
		return color.New(color.FgGreen)
	case types.LevelWarning:
		return color.New(color.FgYellow)
	case types.LevelDanger:
		return color.New(color.FgRed)
	}
	return color.New(color.FgCyan)
}

var progressText = map[types.EventKind]string{
	types.EventApprovalStarted:       " Estimating approval...",
	types.EventApprovalSignedAndSent: " Waiting for approval to be included...",
	types.EventTradeStarted:          " Preparing trade...",
	types.EventTradeSignedAndSent:    " Waiting for trade to be included...",
}

// Progress shows a spinner while a swap is being signed and included
type Progress struct {
	mu      sync.Mutex
	spinner *spinner.Spinner
}

// NewProgress creates a progress observer writing to out
func NewProgress(out io.Writer) *Progress {
	if out == nil {
		out = os.Stdout
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	return &Progress{spinner: s}
}

// OnEvent implements Observer
func (p *Progress) OnEvent(ev types.LifecycleEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if text, ok := progressText[ev.Kind]; ok {
		p.spinner.Suffix = text
		if !p.spinner.Active() {
			p.spinner.Start()
		}
		return
	}
	switch ev.Kind {
	case types.EventApprovalInBlock, types.EventTradeInBlock,
		types.EventApprovalError, types.EventTradeError, types.EventFailed:
		p.spinner.Stop()
	}
}

// Stop halts the spinner if it is still running
func (p *Progress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.spinner.Stop()
}
