package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNoDuration is returned when neither the video stream nor the container
// reports a usable duration.
var ErrNoDuration = errors.New("could not determine media duration")

// MediaInfo is the lightweight probe result the encode plan is built from.
type MediaInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

// VideoStream describes the first video stream of a file.
type VideoStream struct {
	Codec       string  `json:"codec"`
	Profile     string  `json:"profile,omitempty"`
	PixelFormat string  `json:"pixelFormat,omitempty"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FrameRate   float64 `json:"frameRate"`
	BitRate     int64   `json:"bitRate,omitempty"`
}

// AudioStream describes the first audio stream of a file.
type AudioStream struct {
	Codec      string `json:"codec"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sampleRate"`
	BitRate    int64  `json:"bitRate,omitempty"`
}

// Metadata is the fuller probe result shown to operators.
type Metadata struct {
	FormatName string       `json:"formatName"`
	Duration   float64      `json:"duration"`
	Size       int64        `json:"size"`
	BitRate    int64        `json:"bitRate"`
	Video      *VideoStream `json:"video,omitempty"`
	Audio      *AudioStream `json:"audio,omitempty"`
}

// Prober runs ffprobe.
type Prober struct {
	path string
}

// NewProber returns a Prober for the ffprobe binary at path.
func NewProber(path string) *Prober {
	if path == "" {
		path = "ffprobe"
	}
	return &Prober{path: path}
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Profile    string `json:"profile"`
	PixFmt     string `json:"pix_fmt"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
}

func (p *Prober) run(ctx context.Context, path string) (*probeOutput, error) {
	cmd := exec.CommandContext(ctx, p.path,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, strings.TrimSpace(stderr.String()))
	}

	var out probeOutput
	if err := json.Unmarshal(stdout.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &out, nil
}

func (o *probeOutput) stream(codecType string) *probeStream {
	for i := range o.Streams {
		if o.Streams[i].CodecType == codecType {
			return &o.Streams[i]
		}
	}
	return nil
}

// duration prefers the video stream's duration and falls back to the
// container's.
func (o *probeOutput) duration() (float64, error) {
	if v := o.stream("video"); v != nil {
		if d := parseFloat(v.Duration); d > 0 {
			return d, nil
		}
	}
	if d := parseFloat(o.Format.Duration); d > 0 {
		return d, nil
	}
	return 0, ErrNoDuration
}

// Info returns duration and frame size for path.
func (p *Prober) Info(ctx context.Context, path string) (MediaInfo, error) {
	out, err := p.run(ctx, path)
	if err != nil {
		return MediaInfo{}, err
	}

	duration, err := out.duration()
	if err != nil {
		return MediaInfo{}, fmt.Errorf("%s: %w", path, err)
	}

	info := MediaInfo{Duration: duration}
	if v := out.stream("video"); v != nil {
		info.Width = v.Width
		info.Height = v.Height
	}
	return info, nil
}

// Metadata returns container and stream details for path.
func (p *Prober) Metadata(ctx context.Context, path string) (Metadata, error) {
	out, err := p.run(ctx, path)
	if err != nil {
		return Metadata{}, err
	}

	duration, err := out.duration()
	if err != nil {
		return Metadata{}, fmt.Errorf("%s: %w", path, err)
	}

	md := Metadata{
		FormatName: out.Format.FormatName,
		Duration:   duration,
		Size:       parseInt(out.Format.Size),
		BitRate:    parseInt(out.Format.BitRate),
	}
	if v := out.stream("video"); v != nil {
		md.Video = &VideoStream{
			Codec:       v.CodecName,
			Profile:     v.Profile,
			PixelFormat: v.PixFmt,
			Width:       v.Width,
			Height:      v.Height,
			FrameRate:   parseRate(v.RFrameRate),
			BitRate:     parseInt(v.BitRate),
		}
	}
	if a := out.stream("audio"); a != nil {
		md.Audio = &AudioStream{
			Codec:      a.CodecName,
			Channels:   a.Channels,
			SampleRate: int(parseInt(a.SampleRate)),
			BitRate:    parseInt(a.BitRate),
		}
	}
	return md, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

func parseInt(s string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// parseRate converts an ffprobe rational such as "30000/1001".
func parseRate(s string) float64 {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return parseFloat(s)
	}
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return parseFloat(num) / d
}
