package discovery

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ibrahim-sec/thcsub/internal/sanitize"
)

const (
	commentPrefix   = ";;"
	entriesPrefix   = ";;Entries:"
	rateLimitPrefix = ";;Rate Limit:"
	nextPagePrefix  = ";;Next Page:"
)

var rateLimitRe = regexp.MustCompile(`You can make (\d+)`)

// Page is one parsed API response. Total and RateLimit are nil when the
// page did not carry them; NextPage is empty on the last page.
type Page struct {
	Total      *int
	RateLimit  *int
	NextPage   string
	Subdomains []string
}

// ParseResponse splits a response body into metadata and subdomains.
// Malformed metadata is ignored field by field. A next-page link is only
// kept when it starts with apiBase.
func ParseResponse(body, apiBase string) Page {
	var page Page
	var nextCandidate string

	for _, raw := range strings.Split(body, "\n") {
		line := sanitize.Strip(raw)
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(line, entriesPrefix):
			if n, ok := parseTotal(line); ok {
				page.Total = &n
			}
		case strings.HasPrefix(line, rateLimitPrefix):
			if m := rateLimitRe.FindStringSubmatch(line); m != nil {
				if n, err := strconv.Atoi(m[1]); err == nil {
					page.RateLimit = &n
				}
			}
		case strings.HasPrefix(line, nextPagePrefix):
			_, after, _ := strings.Cut(line, ":")
			nextCandidate = sanitize.Strip(after)
		case strings.HasPrefix(line, commentPrefix):
			// other metadata
		default:
			page.Subdomains = append(page.Subdomains, line)
		}
	}

	if nextCandidate != "" && strings.HasPrefix(nextCandidate, apiBase) {
		page.NextPage = nextCandidate
	}

	return page
}

// parseTotal reads the number after "/" in ";;Entries: 100/2500 ...".
func parseTotal(line string) (int, bool) {
	parts := strings.Split(line, "/")
	if len(parts) < 2 {
		return 0, false
	}
	fields := strings.Fields(parts[1])
	if len(fields) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false
	}
	return n, true
}
