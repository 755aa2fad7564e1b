package output

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ibrahim-sec/thcsub/internal/collector"
	"github.com/ibrahim-sec/thcsub/internal/sanitize"
)

// LoadLines reads a results file and returns its sanitized, non-empty
// lines. A missing file yields no lines and no error.
func LoadLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	lines, err := sanitize.Lines(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

// WriteSorted replaces path with lines, sorted, one per line. The data is
// written to a temporary file first so an interrupted write never leaves a
// truncated results file behind.
func WriteSorted(path string, lines []string) error {
	sorted := append([]string(nil), lines...)
	sort.Strings(sorted)

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	for _, line := range sorted {
		if _, err := w.WriteString(line + "\n"); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// CleanResult reports what CleanFile did.
type CleanResult struct {
	Lines  int
	Unique int
	Output string
}

// CleanFile strips escape codes from every line of in, drops blanks and
// duplicates and writes the sorted result to out, or back to in when out
// is empty.
func CleanFile(in, out string) (CleanResult, error) {
	data, err := os.ReadFile(in)
	if err != nil {
		return CleanResult{}, fmt.Errorf("failed to read %s: %w", in, err)
	}

	raw := 0
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	set := collector.NewSet()
	for scanner.Scan() {
		raw++
		set.Add(sanitize.Strip(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return CleanResult{}, fmt.Errorf("failed to read %s: %w", in, err)
	}

	if out == "" {
		out = in
	}
	if err := WriteSorted(out, set.Sorted()); err != nil {
		return CleanResult{}, err
	}

	return CleanResult{Lines: raw, Unique: set.Len(), Output: out}, nil
}
