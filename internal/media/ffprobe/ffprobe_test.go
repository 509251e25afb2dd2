package ffprobe

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestResultHelpers(t *testing.T) {
	result := Result{
		Streams: []Stream{
			{CodecType: "video", Width: 1920, Height: 1080, Duration: "12.0"},
			{CodecType: "audio"},
		},
		Format: Format{Duration: "12.48"},
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	clip, err := result.Clip()
	if err != nil {
		t.Fatalf("Clip returned error: %v", err)
	}
	if clip.DurationSeconds != 12.48 || clip.Width != 1920 || clip.Height != 1080 {
		t.Fatalf("unexpected clip %+v", clip)
	}
}

func TestDurationFallsBackToStream(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", Duration: "7.5"}, {CodecType: "video", Duration: "9"}},
		Format:  Format{Duration: "N/A"},
	}
	if got := result.DurationSeconds(); got != 9 {
		t.Fatalf("DurationSeconds = %v, want 9", got)
	}
}

func TestClipRejectsUnusableFiles(t *testing.T) {
	tests := []struct {
		name   string
		result Result
	}{
		{"no video", Result{Streams: []Stream{{CodecType: "audio"}}, Format: Format{Duration: "3"}}},
		{"zero duration", Result{Streams: []Stream{{CodecType: "video"}}, Format: Format{Duration: "0"}}},
		{"malformed duration", Result{Streams: []Stream{{CodecType: "video"}}, Format: Format{Duration: "bad"}}},
		{"negative duration", Result{Streams: []Stream{{CodecType: "video"}}, Format: Format{Duration: "-2"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.result.Clip(); !errors.Is(err, ErrNoVideo) {
				t.Fatalf("expected ErrNoVideo, got %v", err)
			}
		})
	}
	if !math.IsNaN(Result{Format: Format{Duration: "bad"}}.DurationSeconds()) {
		t.Fatal("expected NaN for malformed duration")
	}
}

func fakeCommand(output string, exitCode int) func(context.Context, string, ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := []string{"-test.run=TestHelperProcess", "--", name}
		cs = append(cs, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			"FFPROBE_OUTPUT="+output,
			fmt.Sprintf("FFPROBE_EXIT=%d", exitCode),
		)
		return cmd
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 || !strings.Contains(strings.Join(args, " "), "-show_streams") {
		fmt.Fprintln(os.Stderr, "unexpected arguments")
		os.Exit(2)
	}
	if os.Getenv("FFPROBE_EXIT") != "0" {
		fmt.Fprintln(os.Stderr, "probe failed")
		os.Exit(1)
	}
	fmt.Fprint(os.Stdout, os.Getenv("FFPROBE_OUTPUT"))
	os.Exit(0)
}

func TestProbeRunsFFprobe(t *testing.T) {
	orig := commandContext
	t.Cleanup(func() { commandContext = orig })

	commandContext = fakeCommand(`{"streams":[{"codec_type":"video","width":1280,"height":720}],"format":{"duration":"6.25"}}`, 0)
	clip, err := Probe(context.Background(), "", "/clips/sea/a.mp4")
	if err != nil {
		t.Fatalf("Probe returned error: %v", err)
	}
	if clip.DurationSeconds != 6.25 || clip.Width != 1280 {
		t.Fatalf("unexpected clip %+v", clip)
	}

	commandContext = fakeCommand("", 1)
	_, err = Probe(context.Background(), "ffprobe", "/clips/sea/a.mp4")
	if err == nil || !strings.Contains(err.Error(), "probe failed") {
		t.Fatalf("expected stderr in error, got %v", err)
	}

	if _, err := Inspect(context.Background(), "ffprobe", "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
