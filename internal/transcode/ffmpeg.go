package transcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"backdrop/internal/logging"
	"backdrop/internal/services"
)

// commandContext is swapped in tests to fake the ffmpeg process.
var commandContext = exec.CommandContext

const stderrTailLines = 20

// Job is one ffmpeg invocation. Args excludes the binary and the progress
// flags Run adds itself.
type Job struct {
	Stage string
	Args  []string
	// ExpectedSeconds is the output duration used to compute percent.
	ExpectedSeconds float64
	Message         string
}

// Runner executes transcode jobs.
type Runner interface {
	Run(ctx context.Context, job Job) error
}

// Options configures an FFmpeg runner.
type Options struct {
	Binary string
	Logger *slog.Logger
	// ProgressBucket is the percent step between progress log lines.
	ProgressBucket float64
	// Emit receives PROGRESS lines when set.
	Emit io.Writer
	// OnProgress is called for every parsed sample.
	OnProgress func(Progress)
}

// FFmpeg runs ffmpeg jobs.
type FFmpeg struct {
	binary     string
	logger     *slog.Logger
	bucket     float64
	emitter    *Emitter
	onProgress func(Progress)
	now        func() time.Time
}

// New constructs an FFmpeg runner.
func New(opts Options) *FFmpeg {
	binary := strings.TrimSpace(opts.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{
		binary:     binary,
		logger:     logging.NewComponentLogger(opts.Logger, "transcode"),
		bucket:     opts.ProgressBucket,
		emitter:    NewEmitter(opts.Emit),
		onProgress: opts.OnProgress,
		now:        time.Now,
	}
}

// Binary returns the ffmpeg executable in use.
func (f *FFmpeg) Binary() string { return f.binary }

// Run executes job and blocks until ffmpeg exits.
func (f *FFmpeg) Run(ctx context.Context, job Job) error {
	if len(job.Args) == 0 {
		return services.Wrap(services.ErrValidation, "transcode", job.Stage, "no arguments", nil)
	}
	args := append([]string{"-hide_banner", "-nostats", "-progress", "pipe:1"}, job.Args...)
	cmd := commandContext(ctx, f.binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrEncoding, "transcode", job.Stage, "stdout pipe", err)
	}
	tail := newTailBuffer(stderrTailLines)
	cmd.Stderr = tail

	sampler := logging.NewProgressSampler(f.bucket)
	started := f.now()
	f.logger.Debug("ffmpeg started",
		logging.String(logging.FieldStage, job.Stage),
		logging.String("command", f.binary+" "+strings.Join(args, " ")),
	)
	if err := cmd.Start(); err != nil {
		f.report(job, StatusFailed, -1, started, err.Error())
		return services.Wrap(services.ErrEncoding, "transcode", job.Stage, "start "+f.binary, err)
	}

	f.report(job, StatusRunning, 0, started, job.Message)
	scanner := bufio.NewScanner(stdout)
	var block progressBlock
	for scanner.Scan() {
		if !parseProgressLine(&block, scanner.Text()) {
			continue
		}
		percent := percentOf(block.outTimeSeconds, job.ExpectedSeconds)
		if block.state == "end" {
			continue
		}
		sample := f.report(job, StatusRunning, percent, started, job.Message)
		if sampler.ShouldLog(percent, job.Stage) {
			f.logger.Info("ffmpeg progress",
				logging.String(logging.FieldStage, job.Stage),
				logging.Float64("progress_percent", sample.Percent),
				logging.Float64("progress_eta_seconds", sample.ETASeconds),
			)
		}
	}
	// Drain in case the scanner stopped on an oversized line.
	_, _ = io.Copy(io.Discard, stdout)

	waitErr := cmd.Wait()
	if waitErr != nil {
		detail := tail.String()
		f.report(job, StatusFailed, -1, started, lastLine(detail))
		var exitErr *exec.ExitError
		msg := "ffmpeg failed"
		if errors.As(waitErr, &exitErr) {
			msg = fmt.Sprintf("ffmpeg exited with code %d", exitErr.ExitCode())
		}
		if detail != "" {
			msg += ": " + detail
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return services.Wrap(services.ErrEncoding, "transcode", job.Stage, msg, ctxErr)
		}
		return services.Wrap(services.ErrEncoding, "transcode", job.Stage, msg, waitErr)
	}
	f.report(job, StatusCompleted, 100, started, job.Message)
	f.logger.Debug("ffmpeg finished",
		logging.String(logging.FieldStage, job.Stage),
		logging.Duration("elapsed", f.now().Sub(started)),
	)
	return nil
}

func (f *FFmpeg) report(job Job, status string, percent float64, started time.Time, message string) Progress {
	elapsed := f.now().Sub(started).Seconds()
	sample := Progress{
		Stage:          job.Stage,
		Status:         status,
		Percent:        percent,
		ElapsedSeconds: elapsed,
		ETASeconds:     etaSeconds(percent, elapsed),
		Message:        message,
	}
	if sample.Percent < 0 {
		sample.Percent = 0
	}
	if f.onProgress != nil {
		f.onProgress(sample)
	}
	if err := f.emitter.Emit(sample); err != nil {
		f.logger.Debug("progress emit failed", logging.Error(err))
	}
	return sample
}

func lastLine(s string) string {
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}
