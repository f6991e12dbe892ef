package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"media-converter/internal/capability"
	"media-converter/internal/ffmpeg"
	"media-converter/internal/filesystem"
	"media-converter/internal/logging"
	"media-converter/internal/planner"
	"media-converter/internal/progress"
)

// Progress milestones, in percent of the whole job.
const (
	convertingFloor = 5.0
	tiersCeiling    = 95.0
)

// Encoder runs one ffmpeg invocation. *ffmpeg.Runner satisfies it.
type Encoder interface {
	Run(ctx context.Context, args []string, duration float64, onProgress func(float64)) error
}

// Prober reads the duration and frame size of an input. *ffmpeg.Prober
// satisfies it.
type Prober interface {
	Info(ctx context.Context, path string) (ffmpeg.MediaInfo, error)
}

// Observer receives instrumentation callbacks for each encoder invocation
// and each quality tier attempt.
type Observer interface {
	ObserveInvocation(stage string, durationSeconds float64, err error)
	ObserveTier(kind string, tier int, fits bool)
}

type noopObserver struct{}

func (noopObserver) ObserveInvocation(string, float64, error) {}
func (noopObserver) ObserveTier(string, int, bool)            {}

// Config holds the filesystem layout used by a Converter.
type Config struct {
	// WorkDir holds pass statistics and chapter files while a job runs.
	WorkDir string
	// OutputDir receives finished files. Empty means next to the input.
	OutputDir string
	// Observer is optional.
	Observer Observer
}

// Converter runs conversion jobs. It is safe for concurrent use; jobs share
// only the capability cache.
type Converter struct {
	enc       Encoder
	prober    Prober
	caps      *capability.Cache
	workDir   string
	outputDir string
	observer  Observer
}

// New creates a Converter. caps may be nil, in which case hardware encoding
// is never used.
func New(enc Encoder, prober Prober, caps *capability.Cache, cfg Config) *Converter {
	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "media-converter")
	}
	var obs Observer = noopObserver{}
	if cfg.Observer != nil {
		obs = cfg.Observer
	}
	return &Converter{
		enc:       enc,
		prober:    prober,
		caps:      caps,
		workDir:   workDir,
		outputDir: cfg.OutputDir,
		observer:  obs,
	}
}

// Capabilities returns the capability cache the Converter consults.
func (c *Converter) Capabilities() *capability.Cache { return c.caps }

// Convert runs req to completion and returns its result. It never returns an
// error: every failure is folded into a Result with Success=false. onProgress
// may be nil.
func (c *Converter) Convert(ctx context.Context, req Request, onProgress ProgressFunc) Result {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	log := logging.Job(req.ID)
	rep := &reporter{jobID: req.ID, fn: onProgress}

	res, err := c.convert(ctx, req, rep, log)
	if err != nil {
		log.Error("Conversion failed: %v", err)
		return Result{
			JobID:    req.ID,
			Success:  false,
			Error:    err.Error(),
			Reason:   Reason(err),
			Strategy: res.Strategy,
		}
	}
	return res
}

func (c *Converter) convert(ctx context.Context, req Request, rep *reporter, log logging.JobLogger) (Result, error) {
	res := Result{JobID: req.ID}

	kind, err := ParseKind(req.Kind)
	if err != nil {
		return res, err
	}
	if err := req.Validate(); err != nil {
		return res, err
	}
	output := c.outputPath(req, kind)
	if samePath(output, req.InputPath) {
		return res, fmt.Errorf("%w: output would overwrite the input %s", ErrInvalidRequest, req.InputPath)
	}

	// Analyzing
	rep.report(0, StatusAnalyzing)
	info, err := c.prober.Info(ctx, req.InputPath)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrInputResolution, err)
	}
	duration := planner.EffectiveDuration(info.Duration, req.TrimStart, req.TrimDuration)
	if duration <= 0 {
		return res, fmt.Errorf("%w: trim window is empty or starts past the end of the media (%.3fs)", ErrInvalidRequest, info.Duration)
	}
	strategy := kind.strategy(ctx, c.caps)
	res.Strategy = strategy.String()
	plan, err := planner.Build(strategy, info.Width, info.Height, req.TargetBytes, duration)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrInputResolution, err)
	}

	log.Info("Converting %s -> %s (kind=%s strategy=%s duration=%.2fs video=%dkbps %s)",
		req.InputPath, output, kind.Tag(), strategy, duration, plan.Bitrate.TargetKbps, plan.Scale.Filter)

	// Converting, then Finalizing inside encode
	rep.report(convertingFloor, StatusConverting)
	j := &job{c: c, req: req, kind: kind, plan: plan, output: output, rep: rep, log: log}
	start := time.Now()
	if err := kind.encode(ctx, j); err != nil {
		return res, err
	}

	stat, err := filesystem.StatWithRetry(output, filesystem.DefaultRetryConfig())
	if err != nil {
		return res, fmt.Errorf("%w: output missing after encode: %w", ErrEncode, err)
	}

	rep.report(100, StatusCompleted)
	log.Info("Completed in %v: %s (%d bytes, target %d)", time.Since(start).Round(time.Millisecond), output, stat.Size(), req.TargetBytes)

	res.Success = true
	res.OutputPath = output
	res.OutputSize = stat.Size()
	return res, nil
}

// outputPath places the output in the configured directory, or next to the
// input, and makes sure it carries the kind's extension.
func (c *Converter) outputPath(req Request, kind Kind) string {
	dir := c.outputDir
	if dir == "" {
		dir = filepath.Dir(req.InputPath)
	}

	name := filepath.Base(strings.TrimSpace(req.OutputName))
	if name == "" || name == "." || name == string(filepath.Separator) {
		base := filepath.Base(req.InputPath)
		name = strings.TrimSuffix(base, filepath.Ext(base)) + "_converted"
	}
	if !strings.EqualFold(filepath.Ext(name), kind.Extension()) {
		name += kind.Extension()
	}
	return filepath.Join(dir, name)
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// job is the per-request state shared by the encode routines.
type job struct {
	c      *Converter
	req    Request
	kind   Kind
	plan   planner.EncodePlan
	output string
	rep    *reporter
	log    logging.JobLogger
}

// run executes one encoder invocation whose own 0-100 maps onto lo-hi of the
// job's progress.
func (j *job) run(ctx context.Context, stage string, args []string, lo, hi float64) error {
	start := time.Now()
	err := j.c.enc.Run(ctx, args, j.plan.EffectiveDuration, j.rep.span(lo, hi))
	j.c.observer.ObserveInvocation(stage, time.Since(start).Seconds(), err)
	if err == nil {
		return nil
	}
	if errors.Is(err, ffmpeg.ErrStart) {
		return fmt.Errorf("%w: %s: %w", ErrSpawn, stage, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrEncode, stage, err)
}

// workPath returns a path for a side file in the work directory, creating
// the directory if needed.
func (j *job) workPath(name string) (string, error) {
	if err := os.MkdirAll(j.c.workDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSidecar, err)
	}
	return filepath.Join(j.c.workDir, name), nil
}

// discard deletes a side file or a superseded attempt. Failure is only logged.
func (j *job) discard(path string) {
	if err := filesystem.RemoveWithRetry(path, filesystem.DefaultRetryConfig()); err != nil {
		j.log.Debug("Failed to remove %s: %v", path, err)
	}
}

// reporter forwards job progress, never letting it go backwards.
type reporter struct {
	jobID string
	fn    ProgressFunc
	last  float64
}

func (r *reporter) report(pct float64, status Status) {
	pct = progress.Clamp(pct)
	if pct < r.last {
		pct = r.last
	}
	r.last = pct
	if r.fn != nil {
		r.fn(Progress{JobID: r.jobID, Progress: pct, Status: status})
	}
}

func (r *reporter) span(lo, hi float64) func(float64) {
	return func(local float64) {
		r.report(lo+(hi-lo)*progress.Clamp(local)/100, StatusConverting)
	}
}
