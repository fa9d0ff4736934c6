package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// ProgressObserver renders committed records as a terminal progress bar.
type ProgressObserver struct {
	mu  sync.Mutex
	out io.Writer
	bar *progressbar.ProgressBar
}

// NewProgressObserver creates a ProgressObserver writing to out.
func NewProgressObserver(out io.Writer) *ProgressObserver {
	return &ProgressObserver{out: out}
}

// Notify implements Observer.
func (p *ProgressObserver) Notify(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch ev.Kind {
	case EventRunStarted:
		p.bar = progressbar.NewOptions(ev.Records,
			progressbar.OptionSetWriter(p.out),
			progressbar.OptionFullWidth(),
			progressbar.OptionShowCount(),
			progressbar.OptionSetDescription("vesting records"),
		)
		committed := 0
		for _, r := range ev.Results {
			committed += r.Records
		}
		if committed > 0 {
			_ = p.bar.Add(committed)
		}
	case EventBatchStarted:
		if p.bar != nil {
			p.bar.Describe(fmt.Sprintf("batch %d/%d", ev.Batch, ev.TotalBatches))
		}
	case EventBatchSucceeded:
		if p.bar != nil && ev.Result != nil {
			_ = p.bar.Add(ev.Result.Records)
		}
	case EventRunCompleted:
		if p.bar == nil {
			return
		}
		if ev.Err == nil {
			_ = p.bar.Finish()
		}
		_, _ = fmt.Fprintln(p.out)
		p.bar = nil
	}
}

// Current returns the number of records the bar has counted so far.
func (p *ProgressObserver) Current() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar == nil {
		return 0
	}
	return p.bar.State().CurrentNum
}
