package converter

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"media-converter/internal/filesystem"
	"media-converter/internal/planner"
)

func (animatedWebP) encode(ctx context.Context, j *job) error {
	return runTiers(ctx, j, planner.WebPTiers(), func(t planner.Tier) []string {
		args := j.inputArgs()
		return append(args,
			"-vf", t.ScaleFilter(),
			"-vcodec", "libwebp",
			"-lossless", "0",
			"-compression_level", "4",
			"-quality", strconv.Itoa(t.Quality),
			"-loop", "0",
			"-an",
			j.output,
		)
	})
}

func (animatedGIF) encode(ctx context.Context, j *job) error {
	return runTiers(ctx, j, planner.GIFTiers(), func(t planner.Tier) []string {
		// Generate a per-clip palette and apply it in the same pass.
		filter := fmt.Sprintf(
			"[0:v]%s,split[a][b];[a]palettegen=max_colors=%d:stats_mode=diff[p];[b][p]paletteuse=dither=bayer:bayer_scale=5:diff_mode=rectangle",
			t.ScaleFilter(), t.Colors)
		args := j.inputArgs()
		return append(args,
			"-filter_complex", filter,
			"-loop", "0",
			"-an",
			j.output,
		)
	})
}

// runTiers encodes tier after tier until one fits the budget. Each tier gets
// an equal share of the converting range.
func runTiers(ctx context.Context, j *job, tiers []planner.Tier, argsFor func(planner.Tier) []string) error {
	share := (tiersCeiling - convertingFloor) / float64(len(tiers))
	target := j.plan.TargetBytes

	index, size, err := selectTier(len(tiers), target, func(i int) (int64, error) {
		j.discard(j.output)

		lo := convertingFloor + share*float64(i)
		if err := j.run(ctx, "tier", argsFor(tiers[i]), lo, lo+share); err != nil {
			return 0, fmt.Errorf("tier %d: %w", i+1, err)
		}

		stat, err := filesystem.StatWithRetry(j.output, filesystem.DefaultRetryConfig())
		if err != nil {
			return 0, fmt.Errorf("%w: tier %d produced no output: %w", ErrEncode, i+1, err)
		}
		fits := planner.Fits(stat.Size(), target)
		j.c.observer.ObserveTier(j.kind.Tag(), i, fits)
		j.log.Info("Tier %d/%d (max %dpx, %dfps): %d bytes, target %d, fits=%v",
			i+1, len(tiers), tiers[i].MaxDimension, tiers[i].FPS, stat.Size(), target, fits)
		return stat.Size(), nil
	})
	if err != nil {
		return err
	}

	if !planner.Fits(size, target) {
		j.log.Warn("No tier fits the budget; keeping tier %d at %d bytes", index+1, size)
	}
	return nil
}

var errNoTiers = errors.New("no quality tiers defined")

// selectTier calls attempt for tiers 0..n-1 in order and stops at the first
// whose output size fits target, or at the last tier. Tiers must be ordered
// from largest to smallest expected output for the first fit to be the best.
func selectTier(n int, target int64, attempt func(i int) (int64, error)) (int, int64, error) {
	if n == 0 {
		return -1, 0, errNoTiers
	}
	for i := 0; i < n; i++ {
		size, err := attempt(i)
		if err != nil {
			return i, 0, err
		}
		if planner.Fits(size, target) || i == n-1 {
			return i, size, nil
		}
	}
	return n - 1, 0, errNoTiers
}
