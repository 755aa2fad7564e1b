package targets

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Load merges targets from CLI values and an optional file. Values may be
// comma-separated. File lines that are blank or start with "#" are
// skipped. Order is preserved and duplicates are dropped.
func Load(values []string, file string) ([]string, error) {
	var all []string
	for _, v := range values {
		all = append(all, strings.Split(v, ",")...)
	}

	if file != "" {
		fromFile, err := ReadFile(file)
		if err != nil {
			return nil, err
		}
		all = append(all, fromFile...)
	}

	return Dedupe(all), nil
}

// ReadFile returns the domains listed in path, one per line.
func ReadFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}
	defer file.Close()

	var domains []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			domains = append(domains, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read targets file: %w", err)
	}

	return domains, nil
}

// Dedupe trims entries and removes blanks and repeats, keeping the first
// occurrence.
func Dedupe(input []string) []string {
	seen := make(map[string]bool)
	var result []string
	for _, s := range input {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	return result
}
