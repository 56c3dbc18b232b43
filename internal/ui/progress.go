package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/qlty-sh/qlty-core/internal/executor"
)

// Progress renders live invocation status while an Executor run is in
// flight: one mpb bar per plugin/driver pair in a TTY, or a plain
// start/finish line per invocation when stdout isn't one (mpb's cursor
// control just leaves escape codes in a log file or CI pipe).
type Progress struct {
	mu    sync.Mutex
	w     io.Writer
	isTTY bool
	style *Style
	mpb   *mpb.Progress
	bars  map[string]*mpb.Bar
}

// NewProgress creates a Progress writing to w. Bars are drawn only when
// os.Stdout is a terminal, whatever w is; otherwise plain lines go to w.
func NewProgress(w io.Writer) *Progress {
	isTTY := IsInteractive(os.Stdout)

	p := &Progress{
		w:     w,
		isTTY: isTTY,
		style: NewStyle(),
		bars:  make(map[string]*mpb.Bar),
	}
	if isTTY {
		p.mpb = mpb.New(mpb.WithOutput(w), mpb.WithWidth(40))
	}
	return p
}

// IsInteractive reports whether f is a real terminal, including Windows'
// Cygwin-style consoles.
func IsInteractive(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// EventFunc adapts Progress to executor.EventFunc, so it can be passed
// straight through as Executor.Input.OnEvent.
func (p *Progress) EventFunc() executor.EventFunc {
	return func(e executor.Event) {
		switch e.Kind {
		case executor.EventInvocationStart:
			p.start(e)
		case executor.EventInvocationDone:
			p.finish(e, nil)
		case executor.EventInvocationFailed:
			p.finish(e, e.Err)
		}
	}
}

func (p *Progress) key(e executor.Event) string {
	return e.PluginName + "/" + e.DriverName
}

func (p *Progress) start(e executor.Event) {
	if !p.isTTY {
		fmt.Fprintf(p.w, "=> %s/%s\n", p.style.PluginTag.Sprint(e.PluginName), e.DriverName)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	bar := p.mpb.AddBar(0,
		mpb.BarFillerClearOnComplete(),
		mpb.PrependDecorators(
			decor.Name(fmt.Sprintf("  %s/%s ", p.style.PluginTag.Sprint(e.PluginName), e.DriverName),
				decor.WC{W: 30, C: decor.DindentRight}),
			decor.Name(string(e.Verb), decor.WC{W: 8}),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Name(""), " done"),
		),
	)
	p.bars[p.key(e)] = bar
}

func (p *Progress) finish(e executor.Event, err error) {
	if !p.isTTY {
		if err != nil {
			fmt.Fprintf(p.w, "%s %s/%s failed: %v\n", p.style.FailMark, e.PluginName, e.DriverName, err)
		} else {
			fmt.Fprintf(p.w, "%s %s/%s done\n", p.style.OKMark, e.PluginName, e.DriverName)
		}
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	bar, ok := p.bars[p.key(e)]
	if !ok {
		return
	}
	delete(p.bars, p.key(e))

	if err != nil {
		bar.Abort(true)
		fmt.Fprintf(p.w, "%s %s/%s failed: %v\n", p.style.FailMark, e.PluginName, e.DriverName, err)
		return
	}
	bar.SetTotal(bar.Current(), true)
}

// Wait blocks until every bar this Progress owns has finished rendering.
// Callers must invoke it after the Executor run completes, the same way
// mpb.Progress.Wait is always paired with the run that feeds its bars.
func (p *Progress) Wait() {
	if p.mpb != nil {
		p.mpb.Wait()
	}
}
