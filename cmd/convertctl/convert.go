package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/term"

	"media-converter/internal/capability"
	"media-converter/internal/converter"
	"media-converter/internal/ffmpeg"
)

var errUsage = errors.New("usage error")

// optionalFloat is a flag.Value that records whether it was set.
type optionalFloat struct {
	v *float64
}

func (o *optionalFloat) String() string {
	if o.v == nil {
		return ""
	}
	return strconv.FormatFloat(*o.v, 'f', -1, 64)
}

func (o *optionalFloat) Set(s string) error {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	o.v = &f
	return nil
}

// parseConvertArgs turns the convert subcommand's flags into a request.
// Markers are read from the JSON file named by -markers.
func parseConvertArgs(args []string, stderr io.Writer) (converter.Request, bool, error) {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		kind       = fs.String("kind", "", "output kind: "+kindList())
		target     = fs.String("target", "", "byte budget, e.g. 8MiB, 500KB, 1048576")
		outputName = fs.String("output-name", "", "output file name without extension")
		markerFile = fs.String("markers", "", "JSON file with chapter markers (MKV only)")
		jsonOut    = fs.Bool("json", false, "print the result as JSON")
		trimStart  optionalFloat
		trimDur    optionalFloat
	)
	fs.Var(&trimStart, "trim-start", "seconds to skip from the start of the input")
	fs.Var(&trimDur, "trim-duration", "seconds of input to keep")

	if err := fs.Parse(args); err != nil {
		return converter.Request{}, false, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() != 1 {
		return converter.Request{}, false, fmt.Errorf("%w: expected exactly one input file", errUsage)
	}
	if *kind == "" || *target == "" {
		return converter.Request{}, false, fmt.Errorf("%w: -kind and -target are required", errUsage)
	}

	size, err := parseSize(*target)
	if err != nil {
		return converter.Request{}, false, fmt.Errorf("%w: %v", errUsage, err)
	}

	req := converter.Request{
		InputPath:    fs.Arg(0),
		OutputName:   *outputName,
		TargetBytes:  size,
		Kind:         *kind,
		TrimStart:    trimStart.v,
		TrimDuration: trimDur.v,
	}

	if *markerFile != "" {
		data, err := os.ReadFile(*markerFile)
		if err != nil {
			return converter.Request{}, false, fmt.Errorf("failed to read markers: %w", err)
		}
		if err := json.Unmarshal(data, &req.Markers); err != nil {
			return converter.Request{}, false, fmt.Errorf("invalid markers file %s: %w", *markerFile, err)
		}
	}

	if abs, err := filepath.Abs(req.InputPath); err == nil {
		req.InputPath = abs
	}
	return req, *jsonOut, nil
}

func kindList() string {
	tags := make([]string, 0, len(converter.Kinds()))
	for _, k := range converter.Kinds() {
		tags = append(tags, k.Tag())
	}
	return strings.Join(tags, ", ")
}

var sizeUnits = []struct {
	suffix string
	factor float64
}{
	// Longest suffixes first so "MiB" is not read as "B".
	{"kib", 1 << 10},
	{"mib", 1 << 20},
	{"gib", 1 << 30},
	{"kb", 1e3},
	{"mb", 1e6},
	{"gb", 1e9},
	{"k", 1 << 10},
	{"m", 1 << 20},
	{"g", 1 << 30},
	{"b", 1},
}

// parseSize reads a byte count with an optional unit. KB/MB/GB are decimal,
// KiB/MiB/GiB and the bare K/M/G shorthands are binary.
func parseSize(s string) (int64, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "" {
		return 0, errors.New("empty size")
	}

	factor := 1.0
	number := raw
	for _, u := range sizeUnits {
		if strings.HasSuffix(raw, u.suffix) {
			factor = u.factor
			number = strings.TrimSpace(strings.TrimSuffix(raw, u.suffix))
			break
		}
	}

	n, err := strconv.ParseFloat(number, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	bytes := n * factor
	if bytes < 1 || bytes > math.MaxInt64 {
		return 0, fmt.Errorf("size %q out of range", s)
	}
	return int64(bytes), nil
}

// formatSize renders a byte count with a binary unit.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit && exp < 3; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}

func runConvert(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	req, jsonOut, err := parseConvertArgs(args, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			fmt.Fprintln(stderr, "Usage: convertctl convert -kind <kind> -target <size> [flags] <input>")
		}
		return 2
	}

	runner := ffmpeg.NewRunner(getEnv("FFMPEG_PATH", "ffmpeg"))
	conv := converter.New(runner, ffmpeg.NewProber(getEnv("FFPROBE_PATH", "ffprobe")), capability.New(runner.HasEncoder), converter.Config{
		WorkDir:   getEnv("WORK_DIR", ""),
		OutputDir: getEnv("OUTPUT_DIR", ""),
	})

	var bar *progressBar
	if !jsonOut {
		bar = newProgressBar(stderr)
	}
	res := conv.Convert(ctx, req, func(p converter.Progress) {
		if bar != nil {
			bar.Update(p)
		}
	})
	if bar != nil {
		bar.Finish()
	}

	return reportResult(res, req.TargetBytes, jsonOut, stdout, stderr)
}

func reportResult(res converter.Result, target int64, jsonOut bool, stdout, stderr io.Writer) int {
	if jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		if !res.Success {
			return 1
		}
		return 0
	}

	if !res.Success {
		fmt.Fprintf(stderr, "Conversion failed (%s): %s\n", res.Reason, res.Error)
		return 1
	}

	fmt.Fprintf(stdout, "Wrote %s\n", res.OutputPath)
	fmt.Fprintf(stdout, "  Size:     %s (target %s)\n", formatSize(res.OutputSize), formatSize(target))
	fmt.Fprintf(stdout, "  Strategy: %s\n", res.Strategy)
	if res.OutputSize > target {
		fmt.Fprintln(stdout, "  Note:     output is larger than the target")
	}
	return 0
}

func runProbe(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Usage: convertctl probe <path>")
		return 2
	}

	prober := ffmpeg.NewProber(getEnv("FFPROBE_PATH", "ffprobe"))
	meta, err := prober.Metadata(ctx, args[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// progressBar draws job progress on a terminal, or prints a line per 10%
// step when the output is not one.
type progressBar struct {
	out   io.Writer
	tty   bool
	width int
	step  int
	drawn bool
}

func newProgressBar(out io.Writer) *progressBar {
	b := &progressBar{out: out, width: 40, step: -1}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b.tty = true
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil {
			// Room for the status and percentage around the bar.
			b.width = max(10, min(60, cols-30))
		}
	}
	return b
}

func (b *progressBar) Update(p converter.Progress) {
	pct := math.Max(0, math.Min(100, p.Progress))

	if !b.tty {
		step := int(pct) / 10
		if step == b.step {
			return
		}
		b.step = step
		fmt.Fprintf(b.out, "%-10s %3d%%\n", p.Status, step*10)
		return
	}

	filled := int(pct / 100 * float64(b.width))
	fmt.Fprintf(b.out, "\r%-10s [%s%s] %5.1f%%", p.Status,
		strings.Repeat("#", filled), strings.Repeat("-", b.width-filled), pct)
	b.drawn = true
}

// Finish ends the bar's line.
func (b *progressBar) Finish() {
	if b.tty && b.drawn {
		fmt.Fprintln(b.out)
	}
}
