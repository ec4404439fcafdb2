package media

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConcatBuildsListFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out.wav")

	var listContent string
	runner := func(_ context.Context, name string, args ...string) (string, error) {
		for i, arg := range args {
			if arg == "-i" && i+1 < len(args) {
				data, err := os.ReadFile(args[i+1])
				if err != nil {
					t.Fatalf("read list file: %v", err)
				}
				listContent = string(data)
			}
		}
		return "", nil
	}
	tk := NewToolkit("", "").WithRunner(runner)

	sources := []string{filepath.Join(dir, "a.wav"), filepath.Join(dir, "b.wav")}
	if err := tk.Concat(context.Background(), sources, dest); err != nil {
		t.Fatalf("Concat failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(listContent), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 list entries, got %d: %q", len(lines), listContent)
	}
	if !strings.Contains(lines[0], "a.wav") || !strings.Contains(lines[1], "b.wav") {
		t.Fatalf("unexpected list order: %q", listContent)
	}

	// The temp list file is removed after the run.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "concat-") {
			t.Fatalf("expected list file cleanup, found %s", entry.Name())
		}
	}
}

func TestConcatRejectsEmptyInput(t *testing.T) {
	tk := NewToolkit("", "")
	if err := tk.Concat(context.Background(), nil, "out.wav"); err == nil {
		t.Fatal("expected error for empty input")
	}
}
