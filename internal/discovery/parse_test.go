package discovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse_Metadata(t *testing.T) {
	body := strings.Join([]string{
		"\x1b[0;90m;;Entries: 5/250 (page 1)\x1b[0m",
		";;Rate Limit: 60/min. You can make 37 more requests this minute.",
		";;Next Page: \x1b[0;33mhttps://ip.thc.org/example.com?l=100&p=2\x1b[0m",
	}, "\n")

	page := ParseResponse(body, DefaultAPIBase)

	require.NotNil(t, page.Total)
	assert.Equal(t, 250, *page.Total)
	require.NotNil(t, page.RateLimit)
	assert.Equal(t, 37, *page.RateLimit)
	assert.Equal(t, "https://ip.thc.org/example.com?l=100&p=2", page.NextPage)
	assert.Empty(t, page.Subdomains)
}

func TestParseResponse_RejectsForeignNextPage(t *testing.T) {
	tests := []string{
		";;Next Page: https://evil.example.net/example.com?p=2",
		";;Next Page: ",
		";;Next Page: [0;33mhttps://ip.thc.or",
	}
	for _, line := range tests {
		page := ParseResponse(line, DefaultAPIBase)
		assert.Empty(t, page.NextPage, line)
	}
}

func TestParseResponse_DataLines(t *testing.T) {
	body := strings.Join([]string{
		";;Entries: 3/3",
		"\x1b[0;36ma.example.com\x1b[0m",
		"",
		"[0;36mb.example.com[0m",
		";;Rate Limit: You can make 12 more",
		"  c.example.com  ",
	}, "\r\n")

	page := ParseResponse(body, DefaultAPIBase)

	assert.Equal(t, []string{"a.example.com", "b.example.com", "c.example.com"}, page.Subdomains)
	for _, s := range page.Subdomains {
		assert.NotContains(t, s, "\x1b")
		assert.NotContains(t, s, "[0")
	}
}

func TestParseResponse_MalformedMetadata(t *testing.T) {
	body := strings.Join([]string{
		";;Entries: lots",
		";;Entries: 5/many",
		";;Rate Limit: unknown",
		";;Something else: 12",
		"x.example.com",
	}, "\n")

	page := ParseResponse(body, DefaultAPIBase)

	assert.Nil(t, page.Total)
	assert.Nil(t, page.RateLimit)
	assert.Empty(t, page.NextPage)
	assert.Equal(t, []string{"x.example.com"}, page.Subdomains)
}

func TestParseResponse_Empty(t *testing.T) {
	page := ParseResponse("", DefaultAPIBase)
	assert.Nil(t, page.Total)
	assert.Nil(t, page.RateLimit)
	assert.Empty(t, page.NextPage)
	assert.Empty(t, page.Subdomains)
}
