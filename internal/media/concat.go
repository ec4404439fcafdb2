package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Concat joins the given WAV files into dest in order using ffmpeg's concat
// demuxer. All inputs must share the same sample format; the toolkit's own
// Slice/Silence/TimeStretch outputs always do (mono 16kHz PCM).
func (t *Toolkit) Concat(ctx context.Context, sources []string, dest string) error {
	if len(sources) == 0 {
		return fmt.Errorf("concat: no input files")
	}

	listFile, err := writeConcatList(sources, filepath.Dir(dest))
	if err != nil {
		return err
	}
	defer os.Remove(listFile)

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c:a", "pcm_s16le",
		dest,
	}
	if _, err := t.run(ctx, t.ffmpegBinary, args...); err != nil {
		return fmt.Errorf("ffmpeg concat: %w", err)
	}
	return nil
}

func writeConcatList(sources []string, dir string) (string, error) {
	file, err := os.CreateTemp(dir, "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("concat: create list file: %w", err)
	}
	defer file.Close()

	var builder strings.Builder
	for _, source := range sources {
		abs, err := filepath.Abs(source)
		if err != nil {
			os.Remove(file.Name())
			return "", fmt.Errorf("concat: resolve %s: %w", source, err)
		}
		// concat demuxer quoting: single quotes with '\'' escapes
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		fmt.Fprintf(&builder, "file '%s'\n", escaped)
	}
	if _, err := file.WriteString(builder.String()); err != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("concat: write list file: %w", err)
	}
	return file.Name(), nil
}
