package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

const version = "1.2.0"

// options holds the command line flags of one invocation.
type options struct {
	// Targets
	targets []string
	file    string

	// Output
	output  string
	quiet   bool
	noColor bool
	mode    string
	newFile string

	// Requests
	pacing      string
	maxAttempts int
	retryDelay  time.Duration
	timeout     time.Duration
	pageSize    int

	// Other
	configPath  string
	logFile     string
	metricsAddr string
	debug       bool
	noNotify    bool

	cleanOutput string
	checkOnly   bool
}

// Logger
var logger = log.NewWithOptions(os.Stderr, log.Options{
	ReportTimestamp: true,
	TimeFormat:      "15:04:05",
	Level:           log.InfoLevel,
})

// usageError marks errors caused by bad invocation rather than by the run.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func newRootCmd(opts *options, stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "thcsub [domain...]",
		Short: "Collect every subdomain ip.thc.org knows for one or more domains",
		Long: `thcsub pages through the ip.thc.org subdomain API, strips terminal escape codes,
deduplicates the names and writes them to a file, one per line, sorted.

Persistence modes:
  resume  load the output file first, save after every page; rerun the same
          command after an interruption to continue
  diff    compare against the output file and write entries that are new
          since the last run to --new-file`,
		Example: `  thcsub -t example.com -o subdomains.txt
  thcsub -t example.com,another.com -o subs.txt
  thcsub -f domains.txt -o output.txt --mode diff
  thcsub clean subs.txt -o clean_subs.txt`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, args, opts, stderr)
		},
	}

	cleanCmd := &cobra.Command{
		Use:   "clean <file>",
		Short: "Strip escape codes from an existing file, dedupe and sort it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd.OutOrStdout(), args[0], opts)
		},
	}

	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Update thcsub to the latest release",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(opts.checkOnly)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "thcsub v%s\n", version)
		},
	}

	f := rootCmd.Flags()
	f.StringSliceVarP(&opts.targets, "target", "t", nil, "target domain(s), repeatable or comma-separated")
	f.StringVarP(&opts.file, "file", "f", "", "file with target domains, one per line")
	f.StringVarP(&opts.output, "output", "o", "", "output file for collected subdomains (required)")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "quiet mode (warnings and errors only)")
	f.StringVar(&opts.mode, "mode", "", "persistence mode: resume or diff (default resume)")
	f.StringVar(&opts.newFile, "new-file", "", "file for new subdomains in diff mode (default new_subdomains.txt)")
	f.StringVar(&opts.pacing, "pacing", "", "pacing between pages: step or bucket (default step)")
	f.IntVar(&opts.maxAttempts, "max-attempts", 0, "consecutive failed requests before a target is given up (default 10; 0 = unlimited retries, never give up)")
	f.DurationVar(&opts.retryDelay, "retry-delay", 0, "wait after a failed request (default 10s)")
	f.DurationVar(&opts.timeout, "timeout", 0, "per-request timeout (default 30s)")
	f.IntVar(&opts.pageSize, "page-size", 0, "results per page (default 100)")
	f.StringVar(&opts.configPath, "config", "", "config file path (default ~/.config/thcsub/config.yaml)")
	f.StringVar(&opts.logFile, "log-file", "", "also write logs to this file (rotated)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	f.BoolVar(&opts.debug, "debug", false, "debug logging")
	f.BoolVar(&opts.noNotify, "no-notify", false, "do not send new subdomains to the configured webhooks")

	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	cleanCmd.Flags().StringVarP(&opts.cleanOutput, "output", "o", "", "write the cleaned file here instead of in place")
	updateCmd.Flags().BoolVar(&opts.checkOnly, "check", false, "only check for a newer release")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})
	rootCmd.AddCommand(cleanCmd, updateCmd, versionCmd)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	return rootCmd
}

// execute runs the command line and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logger.SetOutput(stderr)
	logger.SetLevel(log.InfoLevel)

	rootCmd := newRootCmd(&options{}, stdout, stderr)
	rootCmd.SetArgs(args)

	cmd, err := rootCmd.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}

	logger.Error(err.Error())
	if _, ok := err.(*usageError); ok {
		fmt.Fprintln(stderr)
		fmt.Fprint(stderr, cmd.UsageString())
	}
	return 1
}

func main() {
	os.Exit(execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
