package sanitize

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

var patterns = []*regexp.Regexp{
	// CSI sequences
	regexp.MustCompile(`\x1B\[[0-?]*[ -/]*[@-~]`),
	// other ESC sequences
	regexp.MustCompile(`\x1B[@-Z\\-_][0-?]*[ -/]*[@-~]`),
	// charset selection
	regexp.MustCompile(`\x1B\([AB0-2]`),
	// codes whose ESC byte was lost, e.g. "[0;36m"
	regexp.MustCompile(`\[\d+(?:;\d+)*m`),
}

// Strip removes real and text-based ANSI escape codes from s and trims
// the result. Removal repeats until nothing matches, so a code split by
// another code ("[[0m1m") does not survive.
func Strip(s string) string {
	if s == "" {
		return ""
	}

	for {
		prev := s
		for _, re := range patterns {
			s = re.ReplaceAllString(s, "")
		}
		if s == prev {
			break
		}
	}

	return strings.TrimSpace(s)
}

// Lines reads r line by line and returns the sanitized, non-empty lines.
func Lines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := Strip(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}
