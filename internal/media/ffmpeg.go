package media

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Runner executes an external command. Tests substitute a capture function.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// Toolkit wraps the ffmpeg/ffprobe operations the dubbing pipeline needs.
type Toolkit struct {
	ffmpegBinary  string
	ffprobeBinary string
	runner        Runner
}

// NewToolkit creates a toolkit using the given binaries, defaulting to
// "ffmpeg" and "ffprobe" from PATH.
func NewToolkit(ffmpegBinary, ffprobeBinary string) *Toolkit {
	if ffmpegBinary == "" {
		ffmpegBinary = "ffmpeg"
	}
	if ffprobeBinary == "" {
		ffprobeBinary = "ffprobe"
	}
	return &Toolkit{ffmpegBinary: ffmpegBinary, ffprobeBinary: ffprobeBinary}
}

// WithRunner sets a custom command runner (for testing).
func (t *Toolkit) WithRunner(runner Runner) *Toolkit {
	t.runner = runner
	return t
}

// DefaultRunner executes a command and returns its combined trimmed output.
func DefaultRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return strings.TrimSpace(string(output)), nil
}

func (t *Toolkit) run(ctx context.Context, name string, args ...string) (string, error) {
	if t.runner != nil {
		return t.runner(ctx, name, args...)
	}
	return DefaultRunner(ctx, name, args...)
}

// ProbeDurationMS returns the duration of an audio file in milliseconds.
func (t *Toolkit) ProbeDurationMS(ctx context.Context, path string) (int64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	}
	output, err := t.run(ctx, t.ffprobeBinary, args...)
	if err != nil {
		return 0, fmt.Errorf("probe duration: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(output), 64)
	if err != nil {
		return 0, fmt.Errorf("probe duration: parse %q: %w", output, err)
	}
	return int64(math.Round(seconds * 1000)), nil
}

// Slice extracts [startMS, startMS+durationMS) from source into dest as
// mono 16kHz PCM WAV.
func (t *Toolkit) Slice(ctx context.Context, source string, startMS, durationMS int64, dest string) error {
	if durationMS <= 0 {
		return fmt.Errorf("slice: invalid duration %dms", durationMS)
	}
	if startMS < 0 {
		return fmt.Errorf("slice: invalid start %dms", startMS)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", formatMS(startMS),
		"-t", formatMS(durationMS),
		"-i", source,
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	if _, err := t.run(ctx, t.ffmpegBinary, args...); err != nil {
		return fmt.Errorf("ffmpeg slice: %w", err)
	}
	return nil
}

// TimeStretch renders source into dest with its duration scaled by ratio.
// ratio > 1 speeds playback up (shorter output); ratio < 1 slows it down.
// ffmpeg's atempo filter accepts 0.5-2.0 per instance, so out-of-range
// ratios are decomposed into a chain.
func (t *Toolkit) TimeStretch(ctx context.Context, source string, ratio float64, dest string) error {
	filter, err := atempoChain(ratio)
	if err != nil {
		return err
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", source,
		"-filter:a", filter,
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	if _, err := t.run(ctx, t.ffmpegBinary, args...); err != nil {
		return fmt.Errorf("ffmpeg time-stretch: %w", err)
	}
	return nil
}

// Silence writes durationMS of digital silence into dest as mono 16kHz WAV.
func (t *Toolkit) Silence(ctx context.Context, durationMS int64, dest string) error {
	if durationMS <= 0 {
		return fmt.Errorf("silence: invalid duration %dms", durationMS)
	}
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "lavfi",
		"-i", "anullsrc=r=16000:cl=mono",
		"-t", formatMS(durationMS),
		"-c:a", "pcm_s16le",
		dest,
	}
	if _, err := t.run(ctx, t.ffmpegBinary, args...); err != nil {
		return fmt.Errorf("ffmpeg silence: %w", err)
	}
	return nil
}

func formatMS(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000.0, 'f', 3, 64)
}

// atempoChain decomposes a tempo ratio into chained atempo filters, each
// within ffmpeg's supported 0.5-2.0 range.
func atempoChain(ratio float64) (string, error) {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return "", fmt.Errorf("time-stretch: invalid ratio %v", ratio)
	}
	var parts []string
	remaining := ratio
	for remaining > 2.0 {
		parts = append(parts, "atempo=2.0")
		remaining /= 2.0
	}
	for remaining < 0.5 {
		parts = append(parts, "atempo=0.5")
		remaining /= 0.5
	}
	parts = append(parts, fmt.Sprintf("atempo=%s", strconv.FormatFloat(remaining, 'f', 6, 64)))
	return strings.Join(parts, ","), nil
}
