package ui

import (
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// MultiProgress renders one line per file while several conversions run at
// once. It renders nothing when stderr is not a terminal.
type MultiProgress struct {
	progress *mpb.Progress
}

// NewMultiProgress creates an empty multi-line progress display.
func NewMultiProgress() *MultiProgress {
	if !Interactive() {
		return &MultiProgress{}
	}
	return &MultiProgress{progress: mpb.New(mpb.WithWidth(32), mpb.WithOutput(stderr))}
}

// Task is one file line of a MultiProgress. A nil Task is a no-op.
type Task struct {
	bar *mpb.Bar
}

// Track adds a spinner line for name.
func (m *MultiProgress) Track(name string) *Task {
	if m.progress == nil {
		return nil
	}
	bar := m.progress.AddBar(1,
		mpb.BarFillerOnComplete("✓"),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
			decor.OnComplete(decor.Spinner(spinnerFrames, decor.WC{W: 1}), ""),
		),
		mpb.AppendDecorators(
			decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 8}),
		),
	)
	return &Task{bar: bar}
}

// Done completes the line.
func (t *Task) Done() {
	if t == nil {
		return
	}
	t.bar.Increment()
}

// Fail aborts the line, leaving it on screen.
func (t *Task) Fail() {
	if t == nil {
		return
	}
	t.bar.Abort(false)
}

// Wait blocks until every line has rendered its final state.
func (m *MultiProgress) Wait() {
	if m.progress != nil {
		m.progress.Wait()
	}
}
