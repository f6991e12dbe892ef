package planner

import "fmt"

// SizeTolerance is how far over budget a tier's output may land and still be
// accepted.
const SizeTolerance = 1.10

// Tier is one quality step for formats without bitrate control. Quality is
// the libwebp quality scalar and Colors the GIF palette size; each is zero for
// the other format.
type Tier struct {
	MaxDimension int `json:"maxDimension"`
	FPS          int `json:"fps"`
	Quality      int `json:"quality,omitempty"`
	Colors       int `json:"colors,omitempty"`
}

// Frame-rate never drops below 20fps for WebP.
var webpTiers = []Tier{
	{MaxDimension: 600, FPS: 30, Quality: 70},
	{MaxDimension: 600, FPS: 24, Quality: 65},
	{MaxDimension: 500, FPS: 20, Quality: 60},
	{MaxDimension: 400, FPS: 20, Quality: 55},
	{MaxDimension: 350, FPS: 20, Quality: 50},
	{MaxDimension: 300, FPS: 20, Quality: 45},
}

var gifTiers = []Tier{
	{MaxDimension: 480, FPS: 15, Colors: 256},
	{MaxDimension: 420, FPS: 12, Colors: 256},
	{MaxDimension: 360, FPS: 12, Colors: 192},
	{MaxDimension: 320, FPS: 10, Colors: 128},
	{MaxDimension: 280, FPS: 10, Colors: 96},
	{MaxDimension: 240, FPS: 8, Colors: 64},
}

// WebPTiers returns the animated WebP tiers, highest quality first.
func WebPTiers() []Tier { return append([]Tier(nil), webpTiers...) }

// GIFTiers returns the animated GIF tiers, highest quality first.
func GIFTiers() []Tier { return append([]Tier(nil), gifTiers...) }

// ScaleFilter fits the frame inside MaxDimension on both axes without
// upscaling, forces even dimensions and resamples to FPS.
func (t Tier) ScaleFilter() string {
	return fmt.Sprintf(
		"scale='min(%[1]d,iw)':'min(%[1]d,ih)':force_original_aspect_ratio=decrease,scale=trunc(iw/2)*2:trunc(ih/2)*2,fps=%[2]d",
		t.MaxDimension, t.FPS)
}

// Fits reports whether an output of size bytes is acceptable for a budget of
// target bytes.
func Fits(size, target int64) bool {
	return float64(size) <= float64(target)*SizeTolerance
}
