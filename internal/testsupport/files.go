package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// clipFill is the byte pattern fixture clips are filled with.
var clipFill = []byte("backdrop-clip\n")

// WriteFile creates path and any missing parents with exactly size bytes of
// filler. Sizes below one write a single byte so the file counts as non-empty.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	size = max(size, 1)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	reps := int(size)/len(clipFill) + 1
	data := bytes.Repeat(clipFill, reps)[:size]
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteClipTree writes clips keyed "<theme>/<file>" under root, mirroring
// the layout both the local directory and the bucket use.
func WriteClipTree(t testing.TB, root string, clips map[string]int64) {
	t.Helper()
	for key, size := range clips {
		WriteFile(t, filepath.Join(root, filepath.FromSlash(key)), size)
	}
}
