package assembly

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"backdrop/internal/planner"
	"backdrop/internal/services"
)

// OpKind names a supported filter.
type OpKind string

const (
	OpTrim   OpKind = "trim"
	OpSetPTS OpKind = "setpts"
	OpScale  OpKind = "scale"
	OpCrop   OpKind = "crop"
	OpFPS    OpKind = "fps"
	OpFormat OpKind = "format"
	OpSetSAR OpKind = "setsar"
	OpConcat OpKind = "concat"
)

// Param is one filter option. An empty Key makes it positional.
type Param struct {
	Key   string
	Value string
}

// Op is a single filter with its options.
type Op struct {
	Kind   OpKind
	Params []Param
}

func (o Op) String() string {
	if len(o.Params) == 0 {
		return string(o.Kind)
	}
	parts := make([]string, 0, len(o.Params))
	for _, p := range o.Params {
		if p.Key == "" {
			parts = append(parts, p.Value)
			continue
		}
		parts = append(parts, p.Key+"="+p.Value)
	}
	return string(o.Kind) + "=" + strings.Join(parts, ":")
}

// Chain is a linear filter chain between labelled pads.
type Chain struct {
	Inputs []string
	Ops    []Op
	Output string
}

func (c Chain) String() string {
	var b strings.Builder
	for _, in := range c.Inputs {
		b.WriteString("[" + in + "]")
	}
	ops := make([]string, 0, len(c.Ops))
	for _, op := range c.Ops {
		ops = append(ops, op.String())
	}
	b.WriteString(strings.Join(ops, ","))
	if c.Output != "" {
		b.WriteString("[" + c.Output + "]")
	}
	return b.String()
}

// Graph is an ordered set of chains.
type Graph struct {
	Chains []Chain
}

// String serializes the graph in filter_complex syntax.
func (g Graph) String() string {
	chains := make([]string, 0, len(g.Chains))
	for _, c := range g.Chains {
		chains = append(chains, c.String())
	}
	return strings.Join(chains, ";")
}

// Profile is the output format every clip is brought to.
type Profile struct {
	Width           int
	Height          int
	FPS             int
	PixelFormat     string
	Codec           string
	Preset          string
	CRF             int
	AudioSampleRate int
	// OutputLabel is the pad name the composed background is exposed as.
	OutputLabel string
}

// Composition is a filter graph plus the inputs it expects, ready to be
// embedded in a larger command whose first background input sits at
// InputOffset.
type Composition struct {
	Inputs      []string
	InputOffset int
	Graph       Graph
	OutputLabel string
	Duration    float64
}

// FilterComplex returns the serialized graph.
func (c Composition) FilterComplex() string { return c.Graph.String() }

// BuildGraph composes segments into one video stream. Input i of segments is
// expected at ffmpeg input index inputOffset+i.
func BuildGraph(segments []planner.Segment, profile Profile, inputOffset int) (Composition, error) {
	if len(segments) == 0 {
		return Composition{}, services.Wrap(services.ErrValidation, "assembly", "build graph", "no segments", nil)
	}
	if profile.Width <= 0 || profile.Height <= 0 || profile.FPS <= 0 {
		return Composition{}, services.Wrap(services.ErrValidation, "assembly", "build graph", fmt.Sprintf("invalid profile %dx%d@%d", profile.Width, profile.Height, profile.FPS), nil)
	}
	if inputOffset < 0 {
		return Composition{}, services.Wrap(services.ErrValidation, "assembly", "build graph", "negative input offset", nil)
	}
	label := strings.Trim(strings.TrimSpace(profile.OutputLabel), "[]")
	if label == "" {
		label = "bg"
	}
	pixFmt := profile.PixelFormat
	if pixFmt == "" {
		pixFmt = "yuv420p"
	}

	comp := Composition{InputOffset: inputOffset, OutputLabel: label}
	pads := make([]string, 0, len(segments))
	for i, seg := range segments {
		pad := "v" + strconv.Itoa(i)
		ops := make([]Op, 0, 7)
		if seg.NeedsTrim {
			ops = append(ops,
				Op{Kind: OpTrim, Params: []Param{{Key: "duration", Value: FormatSeconds(seg.TrimmedDuration)}}},
				Op{Kind: OpSetPTS, Params: []Param{{Value: "PTS-STARTPTS"}}},
			)
		}
		ops = append(ops, fillFrame(profile)...)
		ops = append(ops,
			Op{Kind: OpFPS, Params: []Param{{Value: strconv.Itoa(profile.FPS)}}},
			Op{Kind: OpFormat, Params: []Param{{Value: pixFmt}}},
			Op{Kind: OpSetSAR, Params: []Param{{Value: "1"}}},
		)
		comp.Graph.Chains = append(comp.Graph.Chains, Chain{
			Inputs: []string{strconv.Itoa(inputOffset+i) + ":v"},
			Ops:    ops,
			Output: pad,
		})
		comp.Inputs = append(comp.Inputs, seg.LocalPath)
		comp.Duration += seg.TrimmedDuration
		pads = append(pads, pad)
	}
	comp.Graph.Chains = append(comp.Graph.Chains, Chain{
		Inputs: pads,
		Ops: []Op{
			{Kind: OpConcat, Params: []Param{{Key: "n", Value: strconv.Itoa(len(segments))}, {Key: "v", Value: "1"}, {Key: "a", Value: "0"}}},
			{Kind: OpSetPTS, Params: []Param{{Value: "PTS-STARTPTS"}}},
		},
		Output: label,
	})
	return comp, nil
}

// fillFrame scales a clip to cover the frame and crops the overflow.
func fillFrame(profile Profile) []Op {
	w, h := strconv.Itoa(profile.Width), strconv.Itoa(profile.Height)
	return []Op{
		{Kind: OpScale, Params: []Param{{Key: "w", Value: w}, {Key: "h", Value: h}, {Key: "force_original_aspect_ratio", Value: "increase"}}},
		{Kind: OpCrop, Params: []Param{{Key: "w", Value: w}, {Key: "h", Value: h}}},
	}
}

// FormatSeconds renders a duration with millisecond precision and no
// trailing zeros.
func FormatSeconds(seconds float64) string {
	return strconv.FormatFloat(math.Round(seconds*1000)/1000, 'f', -1, 64)
}
