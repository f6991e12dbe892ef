// Package converter transcodes a media file so the result lands close to a
// byte budget.
//
// A job moves through Analyzing (probe the input, derive the encode plan),
// Converting (one or more ffmpeg invocations) and Finalizing (remove side
// files) before it is Completed. Any stage may fail the job; failures are
// reported as a Result with Success=false and never as a Go error.
//
// Video kinds are bitrate-capped: a single NVENC pass when the hardware
// encoder is present, otherwise a two-pass software encode. Animated WebP and
// GIF have no bitrate control, so the job walks an ordered list of quality
// tiers and keeps the first output within 110% of the budget. The budget is
// soft: when no tier fits, the lowest tier's output is accepted as is.
package converter
