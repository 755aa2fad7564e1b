package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ibrahim-sec/thcsub/internal/collector"
	"github.com/ibrahim-sec/thcsub/internal/config"
	"github.com/ibrahim-sec/thcsub/internal/discovery"
	"github.com/ibrahim-sec/thcsub/internal/metrics"
	"github.com/ibrahim-sec/thcsub/internal/notify"
	"github.com/ibrahim-sec/thcsub/internal/output"
	"github.com/ibrahim-sec/thcsub/internal/pacing"
	"github.com/ibrahim-sec/thcsub/internal/targets"
	"github.com/ibrahim-sec/thcsub/internal/ui"
	"github.com/ibrahim-sec/thcsub/internal/update"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

func runCollect(cmd *cobra.Command, args []string, opts *options, stderr io.Writer) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	if opts.output == "" {
		return &usageError{msg: "the following flag is required: -o/--output (unless using clean)"}
	}

	// Load targets
	domains, err := targets.Load(append(opts.targets, args...), opts.file)
	if err != nil {
		return err
	}
	if len(domains) == 0 {
		return &usageError{msg: "no targets specified, use -t or -f"}
	}

	closeLog := setupLogger(opts, cfg.LogFile, stderr)
	defer closeLog()

	if opts.metricsAddr != "" {
		metrics.StartServer(opts.metricsAddr, func(err error) {
			logger.Warn("metrics server failed", "addr", opts.metricsAddr, "error", err)
		})
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = metrics.Shutdown(ctx)
		}()
		logger.Debug("serving metrics", "addr", opts.metricsAddr)
	}

	run := &collectRun{
		cfg: cfg,
		fetcher: discovery.NewClient(discovery.Options{
			APIBase:   cfg.APIBase,
			UserAgent: cfg.UserAgent,
			PageSize:  cfg.PageSize,
			Timeout:   cfg.Timeout,
		}),
		output:  opts.output,
		targets: domains,
		console: ui.NewConsole(cmd.OutOrStdout(), ui.NewTheme(!cfg.NoColor), opts.quiet),
	}
	if !opts.noNotify {
		run.notifier = notify.New(cfg.Webhook, cfg.TelegramBotToken, cfg.TelegramChatID)
	}

	// Setup context
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run.run(ctx)
}

// collectRun is one collection over a list of targets into one output file.
type collectRun struct {
	cfg      *config.Config
	fetcher  collector.Fetcher
	output   string
	targets  []string
	console  *ui.Console
	notifier *notify.Notifier // nil disables notifications
}

// run collects every target and persists the results according to the
// configured mode. An interrupt is not an error.
func (r *collectRun) run(ctx context.Context) error {
	session, err := output.Open(r.cfg.Mode, r.output, r.cfg.NewFile)
	if err != nil {
		return err
	}

	switch {
	case session.Resuming():
		logger.Info("resuming", "entries", session.Loaded(), "file", r.output)
	case session.Mode() == output.ModeDiff && session.Loaded() > 0:
		logger.Info("loaded known subdomains", "entries", session.Loaded(), "file", r.output)
	}

	pacer, err := pacing.New(r.cfg.Pacing)
	if err != nil {
		return err
	}

	col := collector.New(r.fetcher, logger, session.Results(), collector.Options{
		MaxAttempts: r.cfg.MaxAttempts,
		RetryDelay:  r.cfg.RetryDelay,
		Pacer:       pacer,
		Resuming:    session.Resuming(),
		OnPage:      session.AfterPage,
		OnStatus:    r.console.Status,
	})

	r.console.Banner(version)
	logger.Info("starting thcsub", "version", version, "targets", len(r.targets), "mode", session.Mode(), "pacing", r.cfg.Pacing)

	_, runErr := col.Run(ctx, r.targets)
	r.console.EndStatus()

	if errors.Is(runErr, context.Canceled) {
		r.console.Interrupted(r.output, session.Mode() == output.ModeResume)
		return nil
	}
	if runErr != nil && !errors.Is(runErr, collector.ErrRetriesExhausted) {
		return runErr
	}
	if runErr != nil && session.Mode() == output.ModeDiff {
		logger.Warn("incomplete run, output left unchanged", "file", r.output)
		return runErr
	}

	fresh, err := session.Finish()
	if err != nil {
		return err
	}

	newFile := ""
	if session.Mode() == output.ModeDiff {
		newFile = session.NewFile()
	}
	r.console.Summary(session.Results().Len(), r.output, fresh, newFile)

	if r.notifier != nil && len(fresh) > 0 {
		if err := r.notifier.NewDomains(ctx, notifyTitle(r.targets), fresh); err != nil {
			logger.Warn("notification failed", "error", err)
		} else {
			logger.Info("notification sent", "new", len(fresh))
		}
	}

	return runErr
}

func notifyTitle(domains []string) string {
	if len(domains) == 1 {
		return domains[0]
	}
	return fmt.Sprintf("%s +%d more", domains[0], len(domains)-1)
}

// loadConfig reads the config file and applies the flags that were set
// explicitly on the command line.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	if opts.configPath != "" {
		config.SetConfigPath(opts.configPath)
	} else if !config.Exists() {
		if err := config.CreateConfigTemplate(); err != nil {
			logger.Debug("could not create config template", "error", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("mode") {
		cfg.Mode = opts.mode
	}
	if flags.Changed("new-file") {
		cfg.NewFile = opts.newFile
	}
	if flags.Changed("pacing") {
		cfg.Pacing = opts.pacing
	}
	if flags.Changed("max-attempts") {
		cfg.MaxAttempts = opts.maxAttempts
	}
	if flags.Changed("retry-delay") {
		cfg.RetryDelay = opts.retryDelay
	}
	if flags.Changed("timeout") {
		cfg.Timeout = opts.timeout
	}
	if flags.Changed("page-size") {
		cfg.PageSize = opts.pageSize
	}
	if flags.Changed("log-file") {
		cfg.LogFile = opts.logFile
	}
	if opts.noColor {
		cfg.NoColor = true
	}

	if err := config.Validate(cfg); err != nil {
		return nil, &usageError{msg: err.Error()}
	}
	return cfg, nil
}

// setupLogger applies the verbosity flags and tees output into a rotated
// log file when one is configured. The returned func closes the file.
func setupLogger(opts *options, logFile string, stderr io.Writer) func() {
	switch {
	case opts.debug:
		logger.SetLevel(log.DebugLevel)
	case opts.quiet:
		logger.SetLevel(log.WarnLevel)
	}

	if logFile == "" {
		return func() {}
	}

	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	logger.SetOutput(io.MultiWriter(stderr, rotator))
	return func() {
		logger.SetOutput(stderr)
		_ = rotator.Close()
	}
}

func runClean(stdout io.Writer, in string, opts *options) error {
	logger.Info("cleaning ANSI codes from file", "file", in)

	res, err := output.CleanFile(in, opts.cleanOutput)
	if err != nil {
		return err
	}

	console := ui.NewConsole(stdout, ui.NewTheme(!opts.noColor), false)
	console.Cleaned(res.Lines, res.Unique, res.Output)
	return nil
}

func runUpdate(check bool) error {
	if check {
		latest, newer, err := update.Check(version)
		if err != nil {
			return err
		}
		switch {
		case latest == "":
			logger.Info("no releases found", "repo", update.Slug)
		case newer:
			logger.Info("update available", "current", version, "latest", latest)
		default:
			logger.Info("already up to date", "version", version)
		}
		return nil
	}

	installed, err := update.Apply(version)
	if err != nil {
		return err
	}
	if installed == version {
		logger.Info("already up to date", "version", version)
		return nil
	}
	logger.Info("updated", "from", version, "to", installed)
	return nil
}
