package main

import (
	"io"
	"path"
	"time"

	"github.com/schollz/progressbar/v3"

	"mediasync/internal/transfer"
)

// barProgress renders one progress bar per transfer attempt.
type barProgress struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

var _ transfer.Progress = (*barProgress)(nil)

func newBarProgress(out io.Writer) *barProgress {
	return &barProgress{out: out}
}

func (p *barProgress) Start(remotePath string, total, offset int64) {
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(path.Base(remotePath)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	if offset > 0 {
		_ = p.bar.Set64(offset)
	}
}

func (p *barProgress) Add(n int) {
	if p.bar != nil {
		_ = p.bar.Add(n)
	}
}

func (p *barProgress) Done(_ string, err error) {
	if p.bar == nil {
		return
	}
	if err == nil {
		_ = p.bar.Finish()
	} else {
		_ = p.bar.Exit()
	}
	p.bar = nil
}
