package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"media-converter/internal/logging"
)

// ListEncoders returns the encoder names reported by `ffmpeg -encoders`.
func (r *Runner) ListEncoders(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, r.path, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list ffmpeg encoders: %w", err)
	}

	var names []string
	inList := false
	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		// The legend ends with a "------" separator.
		if !inList {
			inList = len(fields) == 1 && fields[0] == "------"
			continue
		}
		// " V....D h264_nvenc           NVIDIA NVENC H.264 encoder"
		if len(fields) >= 2 {
			names = append(names, fields[1])
		}
	}
	return names, scanner.Err()
}

// HasEncoder reports whether ffmpeg lists the named encoder. Failure to run
// ffmpeg counts as not available. Its signature matches capability.ProbeFunc.
func (r *Runner) HasEncoder(ctx context.Context, name string) bool {
	names, err := r.ListEncoders(ctx)
	if err != nil {
		logging.Warn("Encoder probe for %s failed: %v", name, err)
		return false
	}
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
