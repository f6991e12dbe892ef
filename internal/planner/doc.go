// Package planner derives the immutable encode plan for one conversion job.
//
// It covers:
//   - Video bitrate derivation from a byte budget and effective duration
//   - The delivery scale policy (1080p / 1920px cap, even dimensions)
//   - The ordered quality tiers used for animated WebP and GIF output
//
// Everything here is a pure function of its inputs; no ffmpeg is invoked.
package planner
