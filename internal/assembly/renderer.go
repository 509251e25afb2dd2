package assembly

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"backdrop/internal/fileutil"
	"backdrop/internal/logging"
	"backdrop/internal/planner"
	"backdrop/internal/services"
	"backdrop/internal/transcode"
)

// ErrAssemblyFailed is returned when no playable background could be built.
var ErrAssemblyFailed = errors.New("background assembly failed")

const concatListName = "concat_list.txt"

// Renderer runs the ffmpeg commands of both assembly strategies.
type Renderer struct {
	runner  transcode.Runner
	profile Profile
	logger  *slog.Logger
}

// NewRenderer constructs a Renderer.
func NewRenderer(runner transcode.Runner, profile Profile, logger *slog.Logger) *Renderer {
	return &Renderer{
		runner:  runner,
		profile: profile,
		logger:  logging.NewComponentLogger(logger, "assembly"),
	}
}

// Normalized is a clip re-encoded to the common profile.
type Normalized struct {
	Path     string
	Duration float64
	Source   planner.Segment
}

// Assembled describes a finished background.
type Assembled struct {
	Path     string
	Clips    int
	Dropped  int
	Duration float64
}

// NormalizeArgs returns the ffmpeg arguments that bring seg to the profile:
// frame fill, frame rate, pixel format, bt709 tags, a silent stereo track,
// and the trimmed length.
func (r *Renderer) NormalizeArgs(seg planner.Segment, output string) []string {
	p := r.profile
	vf := strings.Join([]string{
		fillFrame(p)[0].String(),
		fillFrame(p)[1].String(),
		Op{Kind: OpFPS, Params: []Param{{Value: strconv.Itoa(p.FPS)}}}.String(),
		Op{Kind: OpFormat, Params: []Param{{Value: p.PixelFormat}}}.String(),
		Op{Kind: OpSetSAR, Params: []Param{{Value: "1"}}}.String(),
	}, ",")
	sampleRate := strconv.Itoa(p.AudioSampleRate)

	video := ffmpeg.Input(seg.LocalPath)
	silence := ffmpeg.Input("anullsrc=channel_layout=stereo:sample_rate="+sampleRate, ffmpeg.KwArgs{"f": "lavfi"})
	return ffmpeg.Output([]*ffmpeg.Stream{video.Video(), silence.Audio()}, output, ffmpeg.KwArgs{
		"vf":              vf,
		"c:v":             p.Codec,
		"preset":          p.Preset,
		"crf":             strconv.Itoa(p.CRF),
		"pix_fmt":         p.PixelFormat,
		"color_primaries": "bt709",
		"color_trc":       "bt709",
		"colorspace":      "bt709",
		"c:a":             "aac",
		"ar":              sampleRate,
		"ac":              "2",
		"t":               FormatSeconds(seg.TrimmedDuration),
		"movflags":        "+faststart",
	}).OverWriteOutput().GetArgs()
}

// ConcatArgs returns the stream-copy merge arguments for a concat list.
func ConcatArgs(listPath, output string) []string {
	return ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": "0"}).
		Output(output, ffmpeg.KwArgs{"c": "copy", "movflags": "+faststart"}).
		OverWriteOutput().
		GetArgs()
}

// Normalize re-encodes every segment into dir. Segments whose encode fails or
// leaves no output are dropped with a warning.
func (r *Renderer) Normalize(ctx context.Context, segments []planner.Segment, dir string) ([]Normalized, error) {
	logger := logging.WithContext(ctx, r.logger)
	out := make([]Normalized, 0, len(segments))
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target := filepath.Join(dir, fmt.Sprintf("norm_%03d.mp4", i))
		err := r.runner.Run(ctx, transcode.Job{
			Stage:           "normalize",
			Args:            r.NormalizeArgs(seg, target),
			ExpectedSeconds: seg.TrimmedDuration,
			Message:         fmt.Sprintf("clip %d/%d", i+1, len(segments)),
		})
		if err == nil && !fileutil.NonEmptyFile(target) {
			err = services.Wrap(services.ErrEncoding, "assembly", "normalize", target+" missing or empty", nil)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			_ = os.Remove(target)
			logging.WarnWithContext(logger, "clip normalization failed", "normalize_failed",
				logging.Int("clip_index", i),
				logging.String("asset_key", seg.AssetKey),
				logging.Error(err),
				logging.String(logging.FieldImpact, "clip dropped from background"),
			)
			continue
		}
		out = append(out, Normalized{Path: target, Duration: seg.TrimmedDuration, Source: seg})
	}
	return out, nil
}

// WriteConcatList writes a concat demuxer manifest listing files in order.
func WriteConcatList(path string, files []string) error {
	var b strings.Builder
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			return err
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// Assemble runs the normalize-then-concat strategy and writes output.
func (r *Renderer) Assemble(ctx context.Context, segments []planner.Segment, dir, output string) (Assembled, error) {
	normalized, err := r.Normalize(ctx, segments, dir)
	if err != nil {
		return Assembled{}, err
	}
	if len(normalized) == 0 {
		return Assembled{}, services.Wrap(services.ErrEncoding, "assembly", "normalize", "no clip survived normalization", ErrAssemblyFailed)
	}

	files := make([]string, 0, len(normalized))
	result := Assembled{Path: output, Clips: len(normalized), Dropped: len(segments) - len(normalized)}
	for _, n := range normalized {
		files = append(files, n.Path)
		result.Duration += n.Duration
	}
	listPath := filepath.Join(dir, concatListName)
	if err := WriteConcatList(listPath, files); err != nil {
		return Assembled{}, services.Wrap(services.ErrEncoding, "assembly", "concat", "write "+listPath, errors.Join(ErrAssemblyFailed, err))
	}
	err = r.runner.Run(ctx, transcode.Job{
		Stage:           "concat",
		Args:            ConcatArgs(listPath, output),
		ExpectedSeconds: result.Duration,
		Message:         fmt.Sprintf("merging %d clips", len(files)),
	})
	if err == nil && !fileutil.NonEmptyFile(output) {
		err = services.Wrap(services.ErrEncoding, "assembly", "concat", output+" missing or empty", nil)
	}
	if err != nil {
		return Assembled{}, fmt.Errorf("%w: %w", ErrAssemblyFailed, err)
	}
	logging.WithContext(ctx, r.logger).Info("background assembled",
		logging.String("output", output),
		logging.Int("clips", result.Clips),
		logging.Int("dropped", result.Dropped),
		logging.Float64("duration_seconds", result.Duration),
	)
	return result, nil
}

// GraphArgs returns a standalone command rendering comp to output.
func (r *Renderer) GraphArgs(comp Composition, output string) []string {
	p := r.profile
	args := make([]string, 0, 2*len(comp.Inputs)+20)
	for _, in := range comp.Inputs {
		args = append(args, "-i", in)
	}
	return append(args,
		"-filter_complex", comp.FilterComplex(),
		"-map", "["+comp.OutputLabel+"]",
		"-an",
		"-c:v", p.Codec,
		"-preset", p.Preset,
		"-crf", strconv.Itoa(p.CRF),
		"-pix_fmt", p.PixelFormat,
		"-color_primaries", "bt709", "-color_trc", "bt709", "-colorspace", "bt709",
		"-movflags", "+faststart",
		"-y", output,
	)
}

// RenderGraph renders a composition built with offset 0 into output.
func (r *Renderer) RenderGraph(ctx context.Context, comp Composition, output string) (Assembled, error) {
	if comp.InputOffset != 0 {
		return Assembled{}, services.Wrap(services.ErrValidation, "assembly", "render graph", "standalone render needs input offset 0", nil)
	}
	err := r.runner.Run(ctx, transcode.Job{
		Stage:           "filtergraph",
		Args:            r.GraphArgs(comp, output),
		ExpectedSeconds: comp.Duration,
		Message:         fmt.Sprintf("composing %d clips", len(comp.Inputs)),
	})
	if err == nil && !fileutil.NonEmptyFile(output) {
		err = services.Wrap(services.ErrEncoding, "assembly", "render graph", output+" missing or empty", nil)
	}
	if err != nil {
		return Assembled{}, fmt.Errorf("%w: %w", ErrAssemblyFailed, err)
	}
	return Assembled{Path: output, Clips: len(comp.Inputs), Duration: comp.Duration}, nil
}
