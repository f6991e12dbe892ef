// Package ffmpeg wraps the ffmpeg and ffprobe executables.
//
// It provides:
//   - Runner, which executes one ffmpeg invocation and reports progress
//   - Encoder discovery (ffmpeg -encoders) used for capability probing
//   - Prober, which reads duration, dimensions and stream metadata via ffprobe
//
// The binaries are located by the caller; an unqualified name is resolved
// through PATH by os/exec.
package ffmpeg
