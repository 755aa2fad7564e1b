package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ibrahim-sec/thcsub/internal/collector"
	"github.com/mattn/go-isatty"
)

// Theme decides how console text is styled. A disabled theme renders
// plain text, suitable for pipes and log captures.
type Theme struct {
	enabled bool

	title   lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	count   lipgloss.Style
	warn    lipgloss.Style
	dim     lipgloss.Style
	success lipgloss.Style
	alert   lipgloss.Style
}

func NewTheme(enabled bool) *Theme {
	return &Theme{
		enabled: enabled,
		title:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
		label:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		value:   lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
		count:   lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		warn:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		success: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		alert:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	}
}

func (t *Theme) Enabled() bool {
	return t.enabled
}

func (t *Theme) render(style lipgloss.Style, text string) string {
	if !t.enabled {
		return text
	}
	return style.Render(text)
}

// Console prints the banner, the live status line and run summaries.
type Console struct {
	out   io.Writer
	theme *Theme
	quiet bool
	// live is set when out is a terminal and the status line can be
	// rewritten in place.
	live bool

	statusOpen bool
}

func NewConsole(out io.Writer, theme *Theme, quiet bool) *Console {
	return &Console{out: out, theme: theme, quiet: quiet, live: isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (c *Console) Banner(version string) {
	if c.quiet {
		return
	}

	rule := strings.Repeat("=", 60)
	fmt.Fprintln(c.out, c.theme.render(c.theme.title, rule))
	fmt.Fprintln(c.out, c.theme.render(c.theme.title, "thcsub "+version+" - ip.thc.org subdomain collector"))
	fmt.Fprintln(c.out, c.theme.render(c.theme.title, rule))
	fmt.Fprintln(c.out)
}

// StatusLine formats a progress snapshot.
func (c *Console) StatusLine(s collector.Status) string {
	t := c.theme

	total, remaining := "?", "?"
	if s.Total != nil {
		total = fmt.Sprint(*s.Total)
		remaining = fmt.Sprint(*s.Total - s.Fetched)
	}
	rateLimit := "?"
	if s.RateLimit != nil {
		rateLimit = fmt.Sprint(*s.RateLimit)
	}
	resume := ""
	if s.Resuming {
		resume = " (Resuming)"
	}

	return fmt.Sprintf("%s %s%s  |  %s %s/%s  (%s %s)  |  %s %s  |  %s %s",
		t.render(t.title, "Target:"), t.render(t.value, s.Target), resume,
		t.render(t.label, "Fetched:"), t.render(t.count, fmt.Sprint(s.Fetched)), t.render(t.count, total),
		t.render(t.label, "Remaining:"), t.render(t.count, remaining),
		t.render(t.label, "Rate Limit:"), t.render(t.warn, rateLimit),
		t.render(t.label, "Requests:"), t.render(t.value, fmt.Sprint(s.Requests)),
	)
}

// Status rewrites the status line in place on a styled terminal and
// prints one line per update otherwise.
func (c *Console) Status(s collector.Status) {
	if c.quiet {
		return
	}

	line := c.StatusLine(s)
	if c.theme.enabled && c.live {
		fmt.Fprintf(c.out, "\r\033[K%s", line)
		c.statusOpen = true
		return
	}
	fmt.Fprintln(c.out, line)
}

// EndStatus terminates an in-place status line.
func (c *Console) EndStatus() {
	if c.statusOpen {
		fmt.Fprintln(c.out)
		c.statusOpen = false
	}
}

// Summary prints the totals of a finished run.
func (c *Console) Summary(total int, path string, fresh []string, newFile string) {
	c.EndStatus()
	if c.quiet {
		return
	}

	t := c.theme
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(c.out, t.render(t.title, rule))
	fmt.Fprintln(c.out, t.render(t.title, "SUMMARY"))
	fmt.Fprintln(c.out, t.render(t.title, rule))
	fmt.Fprintln(c.out, t.render(t.success, fmt.Sprintf("Total unique subdomains: %d", total)))
	fmt.Fprintln(c.out, t.render(t.value, "Saved to: "+path))
	if newFile != "" {
		if len(fresh) > 0 {
			fmt.Fprintln(c.out, t.render(t.success, fmt.Sprintf("New subdomains: %d (saved to %s)", len(fresh), newFile)))
		} else {
			fmt.Fprintln(c.out, t.render(t.dim, "No new subdomains"))
		}
	}
	fmt.Fprintln(c.out, t.render(t.title, rule))
}

// Interrupted prints what happened to the results after Ctrl+C.
func (c *Console) Interrupted(path string, saved bool) {
	c.EndStatus()

	t := c.theme
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, t.render(t.warn, "Interrupted by user (Ctrl+C)"))
	if saved {
		fmt.Fprintln(c.out, t.render(t.value, "Progress saved to: "+path))
		fmt.Fprintln(c.out, t.render(t.alert, "Run the same command again to resume."))
		return
	}
	fmt.Fprintln(c.out, t.render(t.value, "Nothing written, "+path+" is unchanged."))
}

// Cleaned reports the result of the clean command.
func (c *Console) Cleaned(lines, unique int, path string) {
	t := c.theme
	fmt.Fprintln(c.out, t.render(t.success, fmt.Sprintf("Cleaned %d lines -> %d unique domains", lines, unique)))
	fmt.Fprintln(c.out, t.render(t.success, "Saved to: "+path))
}
