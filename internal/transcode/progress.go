package transcode

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"sync"
)

// Progress statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Progress is one sample of a running job.
type Progress struct {
	Stage          string  `json:"stage"`
	Status         string  `json:"status"`
	Percent        float64 `json:"percent"`
	ElapsedSeconds float64 `json:"elapsedSeconds"`
	ETASeconds     float64 `json:"etaSeconds"`
	Message        string  `json:"message,omitempty"`
}

// Emitter writes PROGRESS lines. It is safe for concurrent use.
type Emitter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEmitter returns an emitter writing to w, or nil when w is nil.
func NewEmitter(w io.Writer) *Emitter {
	if w == nil {
		return nil
	}
	return &Emitter{w: w}
}

// Emit writes p as a single "PROGRESS {json}" line.
func (e *Emitter) Emit(p Progress) error {
	if e == nil {
		return nil
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err = fmt.Fprintf(e.w, "PROGRESS %s\n", payload)
	return err
}

// progressBlock accumulates the key=value lines ffmpeg writes between
// "progress=" markers.
type progressBlock struct {
	outTimeSeconds float64
	state          string
}

// parseProgressLine updates block with one line and reports whether the line
// closed a block.
func parseProgressLine(block *progressBlock, line string) bool {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return false
	}
	value = strings.TrimSpace(value)
	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports both in microseconds.
		if micros, err := strconv.ParseInt(value, 10, 64); err == nil && micros >= 0 {
			block.outTimeSeconds = float64(micros) / 1e6
		}
	case "progress":
		block.state = value
		return true
	}
	return false
}

// percentOf clamps done/expected into [0,100]. Unknown totals yield -1.
func percentOf(done, expected float64) float64 {
	if expected <= 0 || math.IsNaN(expected) {
		return -1
	}
	pct := done / expected * 100
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return pct
	}
}

// etaSeconds extrapolates remaining wall time from the observed rate.
func etaSeconds(percent, elapsed float64) float64 {
	if percent <= 0 || percent >= 100 || elapsed <= 0 {
		return 0
	}
	return elapsed * (100 - percent) / percent
}

// tailBuffer keeps the last limit lines written to it.
type tailBuffer struct {
	mu      sync.Mutex
	limit   int
	lines   []string
	partial strings.Builder
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, b := range p {
		if b == '\n' {
			t.push(t.partial.String())
			t.partial.Reset()
			continue
		}
		t.partial.WriteByte(b)
	}
	return len(p), nil
}

func (t *tailBuffer) push(line string) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return
	}
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	lines := append([]string(nil), t.lines...)
	if rest := strings.TrimSpace(t.partial.String()); rest != "" {
		lines = append(lines, rest)
		if len(lines) > t.limit {
			lines = lines[len(lines)-t.limit:]
		}
	}
	return strings.Join(lines, "\n")
}
