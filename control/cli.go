package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sv4u/stravatally/tally/activity"
	"github.com/sv4u/stravatally/tally/auth"
	"github.com/sv4u/stravatally/tally/config"
	"github.com/sv4u/stravatally/tally/logging"
	"github.com/sv4u/stravatally/tally/snapshot"
	"github.com/sv4u/stravatally/tally/strava"
)

// Exit codes for fetch command.
const (
	FetchExitSuccess     = 0
	FetchExitConfigError = 1
	FetchExitAuth        = 2
	FetchExitNetwork     = 3
	FetchExitFilesystem  = 4
	FetchExitInterrupted = 5
)

// Exit codes for summarize command.
const (
	SummarizeExitSuccess         = 0
	SummarizeExitConfigError     = 1
	SummarizeExitSnapshotMissing = 2
	SummarizeExitSnapshotInvalid = 3
)

const (
	envClientID     = "STRAVA_CLIENT_ID"
	envClientSecret = "STRAVA_CLIENT_SECRET"
)

// errFilesystem marks failures writing local files.
var errFilesystem = errors.New("filesystem error")

// usageError is a bad command line. Its message is shown above the usage text.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

type fetchArgs struct {
	configPath   string
	noTUI        bool
	clientID     string
	clientSecret string
	year         int
}

// parseFetchArgs accepts flags anywhere on the line:
// fetch [--config f] [--no-tui] <client_id> <client_secret> <year>, or just
// <year> with credentials taken from the environment or a .env file.
func parseFetchArgs(args []string, stderr io.Writer) (fetchArgs, error) {
	var fa fetchArgs
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&fa.configPath, "config", "", "Path to configuration file")
	fs.BoolVar(&fa.noTUI, "no-tui", false, "Disable the terminal UI")

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return fa, &usageError{msg: err.Error()}
	}

	var yearArg string
	switch len(positional) {
	case 3:
		fa.clientID, fa.clientSecret, yearArg = positional[0], positional[1], positional[2]
	case 1:
		yearArg = positional[0]
		// A missing .env file is not an error; the variables may already be set.
		_ = godotenv.Load()
		fa.clientID = os.Getenv(envClientID)
		fa.clientSecret = os.Getenv(envClientSecret)
		if strings.TrimSpace(fa.clientID) == "" || strings.TrimSpace(fa.clientSecret) == "" {
			return fa, &usageError{msg: fmt.Sprintf("client credentials missing: pass them as arguments or set %s and %s", envClientID, envClientSecret)}
		}
	default:
		return fa, &usageError{msg: "expected <client_id> <client_secret> <year>"}
	}

	year, err := strconv.Atoi(yearArg)
	if err != nil || year < 1970 || year > 9999 {
		return fa, &usageError{msg: fmt.Sprintf("invalid year %q", yearArg)}
	}
	fa.year = year
	return fa, nil
}

// parseInterspersed parses flags that may appear before, between or after
// positional arguments and returns the positionals in order.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

// fetchReporter receives progress from a fetch run.
type fetchReporter interface {
	Phase(phase string)
	AuthorizationURL(url string)
	Progress(page, total int)
}

// plainReporter prints progress lines for non-interactive runs.
type plainReporter struct {
	w io.Writer
}

func (r plainReporter) Phase(phase string) {
	fmt.Fprintln(r.w, phase)
}

func (r plainReporter) AuthorizationURL(url string) {
	fmt.Fprintf(r.w, "If no browser opened, visit this URL to authorize:\n  %s\n", url)
}

func (r plainReporter) Progress(page, total int) {
	fmt.Fprintf(r.w, "Fetched page %d (%d activities so far)\n", page, total)
}

type fetchResult struct {
	Records int
	Path    string
}

// runFetch authorizes, downloads the year's activities and replaces the
// snapshot. Nothing is written unless every page was fetched.
func runFetch(ctx context.Context, cfg *config.TallyConfig, fa fetchArgs, rep fetchReporter, logger *logging.Logger) (fetchResult, error) {
	rep.Phase("Waiting for authorization in the browser...")
	token, err := auth.AcquireToken(ctx, &auth.Config{
		ClientID:     fa.clientID,
		ClientSecret: fa.clientSecret,
		AuthURL:      cfg.Strava.AuthURL,
		TokenURL:     cfg.Strava.TokenURL,
		Scopes:       cfg.Strava.Scopes,
		CallbackHost: cfg.Auth.CallbackHost,
		Timeout:      cfg.Auth.WaitTimeout(),
	}, func(url string) error {
		rep.AuthorizationURL(url)
		return browserOpener(url)
	})
	if err != nil {
		return fetchResult{}, err
	}
	logger.InfoWithOperation("auth", "access token acquired", nil)

	client, err := strava.NewClient(&strava.Config{
		BaseURL:           cfg.Strava.APIURL,
		PerPage:           cfg.Strava.PerPage,
		RequestTimeout:    cfg.Strava.Timeout(),
		RateLimitEnabled:  cfg.Strava.RateLimited(),
		RateLimitRequests: cfg.Strava.RateLimitRequests,
		RateLimitWindow:   cfg.Strava.RateLimitWindow,
	}, token)
	if err != nil {
		return fetchResult{}, err
	}

	after, before := strava.YearWindow(fa.year, time.Local)
	rep.Phase(fmt.Sprintf("Fetching activities for %d...", fa.year))
	records, err := client.FetchAll(ctx, after, before, func(page, total int) {
		rep.Progress(page, total)
		logger.InfoWithOperation("fetch", "page fetched", map[string]string{
			"page":  strconv.Itoa(page),
			"total": strconv.Itoa(total),
		})
	})
	if info := client.GetRateLimitInfo(); info != nil {
		logger.InfoWithOperation("fetch", "rate limit usage", map[string]string{
			"short_usage": fmt.Sprintf("%d/%d", info.ShortUsage, info.ShortLimit),
			"daily_usage": fmt.Sprintf("%d/%d", info.DailyUsage, info.DailyLimit),
		})
	}
	if err != nil {
		return fetchResult{}, err
	}

	store := snapshot.NewStore(cfg.Snapshot.Path)
	rep.Phase("Writing snapshot...")
	if err := store.Write(records); err != nil {
		return fetchResult{}, fmt.Errorf("%w: %w", errFilesystem, err)
	}
	logger.InfoWithOperation("snapshot", "snapshot written", map[string]string{
		"path":    store.Path(),
		"records": strconv.Itoa(len(records)),
	})
	return fetchResult{Records: len(records), Path: store.Path()}, nil
}

// fetchExitCode maps a fetch failure to its exit code.
func fetchExitCode(err error) int {
	var authErr *auth.AuthError
	switch {
	case err == nil:
		return FetchExitSuccess
	case errors.Is(err, context.Canceled):
		return FetchExitInterrupted
	case errors.As(err, &authErr):
		return FetchExitAuth
	case errors.Is(err, errFilesystem):
		return FetchExitFilesystem
	default:
		// strava.APIError, strava.RateLimitError and transport failures
		return FetchExitNetwork
	}
}

// fetchCommand runs the fetch subcommand: authorize, page through the year's
// activities and replace the snapshot. Logs are written to
// .logs/run_<timestamp>/fetch.log. If noTUI is false and stdout is a TTY, shows a TUI.
// Returns exit code.
func fetchCommand(args []string) int {
	fa, err := parseFetchArgs(args, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage()
		return FetchExitConfigError
	}

	cfg, cfgPath, err := config.Resolve(fa.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return FetchExitConfigError
	}

	_, logPath, err := CreateRunDir(RunDirFetch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating log directory: %v\n", err)
		return FetchExitFilesystem
	}
	logger, err := logging.NewLogger(logPath, string(RunDirFetch))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		return FetchExitFilesystem
	}
	defer logger.Close()
	logRunStart(logger, cfgPath, cfg, map[string]string{"year": strconv.Itoa(fa.year)})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var result fetchResult
	if !WantTUI(fa.noTUI) {
		restore := RedirectLogToFile(logger)
		defer restore()

		result, err = runFetch(ctx, cfg, fa, plainReporter{w: os.Stdout}, logger)
		if err != nil {
			logger.ErrorWithOperation("fetch", "fetch failed", err)
			fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
			fmt.Fprintf(os.Stderr, "Log file: %s\n", logPath)
			return fetchExitCode(err)
		}
		fmt.Printf("Saved %d activities to %s\n", result.Records, result.Path)
		fmt.Printf("Log file: %s\n", logPath)
		return FetchExitSuccess
	}

	// TUI path
	errCh := make(chan string, 64)
	tee := NewLogTeeWriter(logger, errCh)
	defer tee.Detach()
	restore := RedirectLogToFile(tee)
	defer restore()

	progressCh := make(chan fetchMsg, 64)
	go func() {
		res, runErr := runFetch(ctx, cfg, fa, tuiReporter{ch: progressCh}, logger)
		progressCh <- fetchMsg{Done: true, Err: runErr, Result: res}
		close(progressCh)
	}()

	result, err = RunFetchTUI(fa.year, logPath, progressCh, errCh, cancel)
	if err != nil {
		logger.ErrorWithOperation("fetch", "fetch failed", err)
		fmt.Fprintf(os.Stderr, "Fetch failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "Log file: %s\n", logPath)
		return fetchExitCode(err)
	}
	fmt.Printf("Saved %d activities to %s\n", result.Records, result.Path)
	return FetchExitSuccess
}

type summarizeArgs struct {
	configPath string
	unit       string
}

func parseSummarizeArgs(args []string, stderr io.Writer) (summarizeArgs, error) {
	var sa summarizeArgs
	fs := flag.NewFlagSet("summarize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&sa.configPath, "config", "", "Path to configuration file")
	fs.StringVar(&sa.unit, "unit", "", "Distance unit: km or mi (overrides summary.unit)")

	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return sa, &usageError{msg: err.Error()}
	}
	if len(positional) > 0 {
		return sa, &usageError{msg: fmt.Sprintf("unexpected argument %q", positional[0])}
	}
	return sa, nil
}

// summarizeCommand runs the summarize subcommand: read the snapshot,
// de-duplicate and print per-bucket totals. Returns exit code.
func summarizeCommand(args []string, stdout io.Writer) int {
	sa, err := parseSummarizeArgs(args, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage()
		return SummarizeExitConfigError
	}

	cfg, cfgPath, err := config.Resolve(sa.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return SummarizeExitConfigError
	}
	unitName := cfg.Summary.Unit
	if sa.unit != "" {
		unitName = sa.unit
	}
	unit, err := activity.ParseUnit(unitName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return SummarizeExitConfigError
	}

	logger := openSummarizeLogger()
	defer logger.Close()
	restore := RedirectLogToFile(logger)
	defer restore()
	logRunStart(logger, cfgPath, cfg, map[string]string{"unit": string(unit)})

	store := snapshot.NewStore(cfg.Snapshot.Path)
	acts, err := store.Read()
	if err != nil {
		logger.ErrorWithOperation("snapshot", "snapshot read failed", err)
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			fmt.Fprintf(os.Stderr, "Snapshot %s not found. Run 'stravatally fetch' first.\n", store.Path())
			return SummarizeExitSnapshotMissing
		}
		fmt.Fprintf(os.Stderr, "Error reading snapshot: %v\n", err)
		return SummarizeExitSnapshotInvalid
	}

	summary := activity.Summarize(acts, activity.SummaryOptions{
		Unit:            unit,
		DedupCategories: cfg.Summary.DedupCategories,
	})
	fields := map[string]string{
		"activities":         strconv.Itoa(summary.Total),
		"duplicates_removed": strconv.Itoa(summary.DuplicatesRemoved),
	}
	for _, b := range summary.Buckets() {
		fields[b.Name] = formatDistance(b.Distance)
	}
	logger.InfoWithOperation("summarize", "summary computed", fields)

	renderSummary(stdout, summary, store.Path())
	return SummarizeExitSuccess
}

// openSummarizeLogger logs into a fresh run directory. Summaries still print
// when the log directory cannot be created.
func openSummarizeLogger() *logging.Logger {
	_, logPath, err := CreateRunDir(RunDirSummarize)
	if err == nil {
		var logger *logging.Logger
		if logger, err = logging.NewLogger(logPath, string(RunDirSummarize)); err == nil {
			return logger
		}
	}
	fmt.Fprintf(os.Stderr, "WARN: run log disabled: %v\n", err)
	return logging.New(io.Discard, string(RunDirSummarize))
}

func logRunStart(logger *logging.Logger, cfgPath string, cfg *config.TallyConfig, fields map[string]string) {
	if fields == nil {
		fields = map[string]string{}
	}
	fields["version"] = Version
	if cfgPath != "" {
		fields["config"] = cfgPath
		fields["config_digest"] = cfg.Digest
	} else {
		fields["config"] = "built-in defaults"
	}
	logger.InfoWithOperation("start", "run started", fields)
}
