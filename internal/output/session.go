package output

import (
	"errors"
	"fmt"
	"os"

	"github.com/ibrahim-sec/thcsub/internal/collector"
	"github.com/ibrahim-sec/thcsub/internal/metrics"
)

// Persistence modes. A run uses exactly one of them.
const (
	// ModeResume preloads the output file and rewrites it after every page.
	ModeResume = "resume"
	// ModeDiff keeps the output file as the known set, rewrites it once at
	// the end and reports new subdomains in a side file.
	ModeDiff = "diff"
)

const DefaultNewFile = "new_subdomains.txt"

// Session owns the output file for one run.
type Session struct {
	mode    string
	path    string
	newFile string

	results *collector.Set
	known   *collector.Set
	loaded  int
}

// Open loads path according to mode. A missing file starts an empty run;
// any other read error is returned.
func Open(mode, path, newFile string) (*Session, error) {
	if mode != ModeResume && mode != ModeDiff {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
	if newFile == "" {
		newFile = DefaultNewFile
	}

	lines, err := LoadLines(path)
	if err != nil {
		return nil, err
	}

	s := &Session{
		mode:    mode,
		path:    path,
		newFile: newFile,
		results: collector.NewSet(),
		known:   collector.NewSet(),
	}

	if mode == ModeResume {
		s.results = collector.NewSet(lines...)
		s.loaded = s.results.Len()
	} else {
		s.known = collector.NewSet(lines...)
		s.loaded = s.known.Len()
	}

	return s, nil
}

func (s *Session) Mode() string { return s.mode }
func (s *Session) Path() string { return s.path }
func (s *Session) NewFile() string { return s.newFile }
func (s *Session) Results() *collector.Set { return s.results }

// Loaded is the number of unique entries read from the existing file.
func (s *Session) Loaded() int {
	return s.loaded
}

// Resuming reports whether a resume run started from earlier results.
func (s *Session) Resuming() bool {
	return s.mode == ModeResume && s.loaded > 0
}

// AfterPage saves progress. Only resume mode writes between pages.
func (s *Session) AfterPage(results *collector.Set) error {
	if s.mode != ModeResume {
		return nil
	}
	return WriteSorted(s.path, results.Sorted())
}

// Finish completes a run that was not interrupted and returns the
// subdomains that were not known before. In diff mode the output file is
// replaced with this run's results and the new ones go to the side file,
// which is removed when there are none.
func (s *Session) Finish() ([]string, error) {
	if s.mode == ModeResume {
		return nil, nil
	}

	if err := WriteSorted(s.path, s.results.Sorted()); err != nil {
		return nil, err
	}

	fresh := s.results.Difference(s.known)
	metrics.NewSubdomains.Set(float64(len(fresh)))
	if len(fresh) == 0 {
		// a side file from an earlier run would read as this run's findings
		if err := os.Remove(s.newFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to remove %s: %w", s.newFile, err)
		}
		return nil, nil
	}

	if err := WriteSorted(s.newFile, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}
