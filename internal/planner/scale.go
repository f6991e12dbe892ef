package planner

import (
	"fmt"
	"math"
)

const (
	maxHeight = 1080
	maxWidth  = 1920
)

// Scale is a video filter expression together with the frame size it yields.
type Scale struct {
	Filter string `json:"filter"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// ScaleFor returns the delivery scale for a width x height source. Sources
// taller than 1080 are scaled to 1080 high, sources wider than 1920 to 1920
// wide, and everything else only has its dimensions truncated to even values.
func ScaleFor(width, height int) Scale {
	switch {
	case height > maxHeight:
		return Scale{
			Filter: fmt.Sprintf("scale=-2:%d", maxHeight),
			Width:  roundEven(float64(width) * maxHeight / float64(height)),
			Height: maxHeight,
		}
	case width > maxWidth:
		return Scale{
			Filter: fmt.Sprintf("scale=%d:-2", maxWidth),
			Width:  maxWidth,
			Height: roundEven(float64(height) * maxWidth / float64(width)),
		}
	default:
		return Scale{
			Filter: "scale=trunc(iw/2)*2:trunc(ih/2)*2",
			Width:  width &^ 1,
			Height: height &^ 1,
		}
	}
}

// Conformant reports whether a frame size already fits the delivery caps.
func Conformant(width, height int) bool {
	return width <= maxWidth && height <= maxHeight
}

// roundEven mirrors ffmpeg's handling of a -2 dimension.
func roundEven(v float64) int {
	return int(math.Round(v/2)) * 2
}
