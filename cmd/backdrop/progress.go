package main

import (
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"backdrop/internal/transcode"
)

// jobBar renders ffmpeg jobs on one terminal bar, restarting it whenever a
// new job begins.
type jobBar struct {
	bar *progressbar.ProgressBar
	job string
}

func newJobBar(w io.Writer) *jobBar {
	return &jobBar{
		bar: progressbar.NewOptions(100,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("preparing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		),
	}
}

func (b *jobBar) update(p transcode.Progress) {
	label := strings.TrimSpace(p.Stage + " " + p.Message)
	if label != b.job {
		b.job = label
		b.bar.Reset()
		b.bar.Describe(label)
	}
	_ = b.bar.Set(int(math.Round(math.Max(0, math.Min(100, p.Percent)))))
}

func (b *jobBar) finish() {
	_ = b.bar.Finish()
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
