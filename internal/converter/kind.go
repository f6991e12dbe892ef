package converter

import (
	"context"
	"fmt"
	"strings"

	"media-converter/internal/capability"
	"media-converter/internal/planner"
)

// Kind is an output format. The set of kinds is closed: every variant lives
// in this package and carries its own strategy choice and encode routine, so
// a new variant that lacks either does not compile.
type Kind interface {
	// Tag is the request identifier for the kind.
	Tag() string
	// Extension is the output file extension, including the dot.
	Extension() string

	strategy(ctx context.Context, caps *capability.Cache) planner.Strategy
	encode(ctx context.Context, j *job) error
}

type videoCodec struct {
	hardware capability.Kind
	software string
	profile  string
	hevc     bool
}

var (
	codecH264 = videoCodec{hardware: capability.HardwareH264, software: "libx264", profile: "high"}
	codecHEVC = videoCodec{hardware: capability.HardwareHEVC, software: "libx265", profile: "main", hevc: true}
)

// video is a bitrate-capped H.264 or HEVC output.
type video struct {
	tag       string
	extension string
	codec     videoCodec
	chapters  bool
	faststart bool
}

func (k video) Tag() string       { return k.tag }
func (k video) Extension() string { return k.extension }

// animatedWebP and animatedGIF are sized by quality tiers.
type animatedWebP struct{}

func (animatedWebP) Tag() string       { return "webp" }
func (animatedWebP) Extension() string { return ".webp" }

type animatedGIF struct{}

func (animatedGIF) Tag() string       { return "gif" }
func (animatedGIF) Extension() string { return ".gif" }

// Supported output kinds.
var (
	MP4  Kind = video{tag: "mp4", extension: ".mp4", codec: codecH264, faststart: true}
	MOV  Kind = video{tag: "mov", extension: ".mov", codec: codecH264, faststart: true}
	MKV  Kind = video{tag: "mkv", extension: ".mkv", codec: codecH264, chapters: true}
	HEVC Kind = video{tag: "hevc", extension: ".mp4", codec: codecHEVC, faststart: true}
	WebP Kind = animatedWebP{}
	GIF  Kind = animatedGIF{}
)

// Kinds returns every supported kind.
func Kinds() []Kind {
	return []Kind{MP4, MOV, MKV, HEVC, WebP, GIF}
}

// "video" predates the per-container tags.
var aliases = map[string]Kind{"video": MP4}

// ParseKind resolves a kind tag. Tags are case-insensitive.
func ParseKind(tag string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(tag))
	for _, k := range Kinds() {
		if k.Tag() == norm {
			return k, nil
		}
	}
	if k, ok := aliases[norm]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, tag)
}

// Video kinds use NVENC when it is available and fall back to a two-pass
// software encode, which is slower but spends the bits better.
func (k video) strategy(ctx context.Context, caps *capability.Cache) planner.Strategy {
	if caps != nil && caps.Available(ctx, k.codec.hardware) {
		return planner.StrategyHardware
	}
	return planner.StrategyTwoPass
}

func (animatedWebP) strategy(context.Context, *capability.Cache) planner.Strategy {
	return planner.StrategyTiered
}

func (animatedGIF) strategy(context.Context, *capability.Cache) planner.Strategy {
	return planner.StrategyTiered
}
