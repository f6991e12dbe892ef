package converter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"media-converter/internal/planner"
	"media-converter/internal/timeline"
)

const twoPassSplit = 50.0

func (k video) encode(ctx context.Context, j *job) error {
	sidecar, err := k.writeChapters(j)
	if err != nil {
		return err
	}
	if sidecar != "" {
		defer j.discard(sidecar)
	}

	if j.plan.Strategy == planner.StrategyHardware {
		return j.run(ctx, "encode", k.hardwareArgs(j, sidecar), convertingFloor, 100)
	}

	passlog, err := j.workPath("passlog-" + j.req.ID)
	if err != nil {
		return err
	}
	defer removePassLogs(j, passlog)

	if err := j.run(ctx, "pass1", k.passArgs(j, 1, passlog, ""), convertingFloor, twoPassSplit); err != nil {
		return err
	}
	return j.run(ctx, "pass2", k.passArgs(j, 2, passlog, sidecar), twoPassSplit, 100)
}

// writeChapters renders the request's markers, moved into the trimmed
// timeline, to a sidecar file. It returns "" when there is nothing to write.
func (k video) writeChapters(j *job) (string, error) {
	if !k.chapters || len(j.req.Markers) == 0 {
		return "", nil
	}

	// The window ends where the encoded output ends, not where the request
	// asked, so markers past the end of the media are dropped.
	window := j.plan.EffectiveDuration
	markers := timeline.Adjust(j.req.Markers, j.req.TrimStart, &window)
	text := timeline.BuildChapters(markers, j.plan.EffectiveDuration)
	if text == "" {
		j.log.Debug("No markers inside the trim window; writing no chapters")
		return "", nil
	}

	path, err := j.workPath("chapters-" + j.req.ID + ".txt")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSidecar, err)
	}
	j.log.Debug("Wrote %d chapters to %s", len(markers), path)
	return path, nil
}

// inputs returns the primary input arguments, adding the chapter sidecar and
// its stream mapping when one is present.
func (k video) inputs(j *job, sidecar string) []string {
	if sidecar == "" {
		return j.inputArgs()
	}
	return append(j.inputArgs(sidecar), chapterMaps()...)
}

func (k video) rateArgs(j *job) []string {
	b := j.plan.Bitrate
	return []string{"-b:v", b.Target(), "-maxrate", b.Max(), "-bufsize", b.Buffer()}
}

// outputArgs returns audio settings, container flags and the output path.
func (k video) outputArgs(j *job) []string {
	args := []string{"-c:a", "aac", "-b:a", fmt.Sprintf("%dk", planner.AudioKbps)}
	if k.codec.hevc {
		// Apple players only accept the hvc1 tag.
		args = append(args, "-tag:v", "hvc1")
	}
	if k.faststart {
		args = append(args, "-movflags", "+faststart")
	}
	return append(args, j.output)
}

func (k video) hardwareArgs(j *job, sidecar string) []string {
	args := k.inputs(j, sidecar)
	args = append(args,
		"-c:v", k.codec.hardware.Encoder(),
		"-preset", "p7",
		"-tune", "hq",
		"-rc", "vbr",
	)
	args = append(args, k.rateArgs(j)...)
	args = append(args, "-profile:v", k.codec.profile, "-vf", j.plan.Scale.Filter)
	return append(args, k.outputArgs(j)...)
}

// passArgs builds one pass of a two-pass software encode. Pass 1 only
// gathers statistics and writes to the null muxer.
func (k video) passArgs(j *job, pass int, passlog, sidecar string) []string {
	var args []string
	if pass == 1 {
		args = j.inputArgs()
	} else {
		args = k.inputs(j, sidecar)
	}

	args = append(args, "-c:v", k.codec.software, "-preset", "slow")
	args = append(args, k.rateArgs(j)...)
	args = append(args, "-vf", j.plan.Scale.Filter)

	if k.codec.hevc {
		args = append(args, "-x265-params", fmt.Sprintf("pass=%d:stats=%s.log", pass, passlog))
	} else {
		args = append(args, "-pass", strconv.Itoa(pass), "-passlogfile", passlog)
	}

	if pass == 1 {
		return append(args, "-an", "-f", "null", os.DevNull)
	}
	return append(args, k.outputArgs(j)...)
}

// removePassLogs deletes every statistics file written under the passlog
// prefix (x264 writes -0.log and -0.log.mbtree, x265 .log and .log.cutree).
func removePassLogs(j *job, passlog string) {
	matches, err := filepath.Glob(passlog + "*")
	if err != nil {
		j.log.Debug("Failed to list pass logs for %s: %v", passlog, err)
		return
	}
	for _, m := range matches {
		j.discard(m)
	}
}
