package converter

import (
	"fmt"
	"math"
)

// seekArgs splits a trim into the options placed before and after the
// primary input. The whole seconds of the start go before -i, where ffmpeg
// seeks quickly to a nearby keyframe; the remainder goes after it, where
// ffmpeg decodes up to the exact frame. The duration is always an output
// option.
func seekArgs(start, duration *float64) (before, after []string) {
	if start != nil {
		fast := math.Floor(*start)
		before = []string{"-ss", fmt.Sprintf("%.0f", fast)}
		if accurate := *start - fast; accurate > 0.001 {
			after = append(after, "-ss", fmt.Sprintf("%.3f", accurate))
		}
	}
	if duration != nil {
		after = append(after, "-t", fmt.Sprintf("%.3f", *duration))
	}
	return before, after
}

// inputArgs returns the leading arguments of an invocation: overwrite, the
// primary input with its trim, and any extra inputs. Extra inputs precede
// the trailing seek options so that those remain output options.
func (j *job) inputArgs(extra ...string) []string {
	before, after := seekArgs(j.req.TrimStart, j.req.TrimDuration)

	args := []string{"-y"}
	args = append(args, before...)
	args = append(args, "-i", j.req.InputPath)
	for _, in := range extra {
		args = append(args, "-i", in)
	}
	return append(args, after...)
}

// chapterMaps takes video and audio from the primary input and metadata and
// chapters from the sidecar, which must be input 1.
func chapterMaps() []string {
	return []string{"-map", "0:v:0", "-map", "0:a?", "-map_metadata", "1", "-map_chapters", "1"}
}
