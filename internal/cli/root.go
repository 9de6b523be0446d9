package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rohmanhakim/curlgrab/internal/config"
	"github.com/rohmanhakim/curlgrab/internal/fetcher"
	"github.com/rohmanhakim/curlgrab/internal/logging"
	"github.com/rohmanhakim/curlgrab/internal/metadata"
	"github.com/rohmanhakim/curlgrab/internal/storage"
	"github.com/rohmanhakim/curlgrab/pkg/hashutil"
	"github.com/rohmanhakim/curlgrab/pkg/retry"
	"github.com/rohmanhakim/curlgrab/pkg/timeutil"
)

var (
	cfgFile      string
	commandStr   string
	commandFile  string
	outputDir    string
	fileName     string
	timeout      time.Duration
	stallTimeout time.Duration
	maxAttempt   int
	hashAlgo     string
	logLevel     string
	logFormat    string
)

var errNoCommand = errors.New("no command given: use --command, --command-file or stdin")

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "curlgrab",
	Short: "Download a file from a captured cURL (cmd) command.",
	Long: `curlgrab replays the GET request described by a "Copy as cURL (cmd)"
export from a browser's network panel and streams the response body to disk.

The captured command is read from --command, --command-file or stdin.
Only the URL, its query parameters and -H headers are replayed.`,
	SilenceUsage:  true,
	// failures are rendered by the progress view
	SilenceErrors: true,
	RunE:          runDownload,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := ExecuteArgs(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		stop()
		os.Exit(1)
	}
}

// ExecuteArgs runs the command tree against explicit arguments and streams.
func ExecuteArgs(ctx context.Context, args []string, in io.Reader, out io.Writer, errOut io.Writer) error {
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	err := rootCmd.ExecuteContext(ctx)
	var fetchErr *fetcher.FetchError
	if err != nil && !errors.As(err, &fetchErr) {
		fmt.Fprintln(errOut, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "config file path, JSON, TOML or YAML (e.g., /home/myuser/curlgrab.toml)")
	rootCmd.PersistentFlags().StringVar(&commandStr, "command", "", "captured cURL (cmd) command")
	rootCmd.PersistentFlags().StringVar(&commandFile, "command-file", "", "file holding the captured command")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "trace, debug, info, warn, error or disabled")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "console or json")

	rootCmd.Flags().StringVar(&outputDir, "output-dir", "", "directory the file is written to (default \".\")")
	rootCmd.Flags().StringVar(&fileName, "file-name", "", "name of the file to write (required)")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 0, "deadline for the whole download (0 for none)")
	rootCmd.Flags().DurationVar(&stallTimeout, "stall-timeout", 0, "abort when no data arrives for this long (default 30s)")
	rootCmd.Flags().IntVar(&maxAttempt, "max-attempt", 0, "attempts for the request phase (default 1)")
	rootCmd.Flags().StringVar(&hashAlgo, "hash-algo", "", "checksum of the written file: blake3, sha256 or none")

	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(versionCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(fileName) == "" {
		return fmt.Errorf("--file-name is required")
	}

	cfg, err := InitConfigWithError()
	if err != nil {
		return err
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	ctx := logging.WithContext(cmd.Context(), logger)

	captured, err := readCommand(cmd.InOrStdin())
	if err != nil {
		return err
	}

	recorder := metadata.NewRecorder(logger)
	sink := storage.NewLocalSink(recorder, cfg.HashAlgo()).WithCreateDir()
	f := fetcher.NewStreamingFetcher(recorder, &sink, nil, FetchParamFromConfig(cfg))

	view := newProgressView(cmd.OutOrStdout())
	var failed *fetcher.FetchError
	f.Download(
		ctx,
		fetcher.DownloadRequest{
			Command:  captured,
			Dir:      cfg.OutputDir(),
			FileName: fileName,
		},
		view.Progress,
		view.Success,
		func(fetchErr *fetcher.FetchError) {
			view.Failure(fetchErr)
			failed = fetchErr
		},
	)
	if failed != nil {
		return failed
	}
	return nil
}

// FetchParamFromConfig maps transfer and retry settings onto fetcher parameters.
func FetchParamFromConfig(cfg config.Config) fetcher.FetchParam {
	retryParam := retry.NewRetryParam(
		cfg.Jitter(),
		cfg.RandomSeed(),
		cfg.MaxAttempt(),
		timeutil.NewBackoffParam(
			cfg.BackoffInitialDuration(),
			cfg.BackoffMultiplier(),
			cfg.BackoffMaxDuration(),
		),
	)
	return fetcher.NewFetchParam(cfg.Timeout(), cfg.StallTimeout(), cfg.BufferSize(), retryParam)
}

func newLogger(cfg config.Config, out io.Writer) zerolog.Logger {
	logCfg := logging.DefaultConfig()
	// Build already validated the level
	logCfg.Level, _ = logging.ParseLevel(cfg.LogLevel())
	logCfg.Format = cfg.LogFormat()
	logCfg.Output = out
	return logging.New(logCfg)
}

// readCommand picks the captured command from --command, then --command-file, then in.
func readCommand(in io.Reader) (string, error) {
	var captured string
	switch {
	case commandStr != "":
		captured = commandStr
	case commandFile != "":
		content, err := os.ReadFile(commandFile)
		if err != nil {
			return "", fmt.Errorf("reading command file: %w", err)
		}
		captured = string(content)
	case in != nil:
		content, err := io.ReadAll(in)
		if err != nil {
			return "", fmt.Errorf("reading command from stdin: %w", err)
		}
		captured = string(content)
	}

	if strings.TrimSpace(captured) == "" {
		return "", errNoCommand
	}
	return captured, nil
}

// InitConfigWithError reads in config file and ENV variables if set, then applies
// flag values over them, returning any errors.
func InitConfigWithError() (config.Config, error) {
	var (
		base config.Config
		err  error
	)
	if cfgFile != "" {
		base, err = config.WithConfigFile(cfgFile)
		if err != nil {
			return config.Config{}, fmt.Errorf("error initializing config from file: %w", err)
		}
	} else {
		base, err = config.FromEnvironment()
		if err != nil {
			return config.Config{}, fmt.Errorf("error initializing config from environment: %w", err)
		}
	}

	configBuilder := &base

	// Override with CLI flag values where provided
	if outputDir != "" {
		configBuilder = configBuilder.WithOutputDir(outputDir)
	}

	if timeout > 0 {
		configBuilder = configBuilder.WithTimeout(timeout)
	}

	if stallTimeout > 0 {
		configBuilder = configBuilder.WithStallTimeout(stallTimeout)
	}

	if maxAttempt > 0 {
		configBuilder = configBuilder.WithMaxAttempt(maxAttempt)
	}

	if hashAlgo != "" {
		algo, err := hashutil.ParseHashAlgo(hashAlgo)
		if err != nil {
			return config.Config{}, fmt.Errorf("%w: %s", config.ErrInvalidConfig, err.Error())
		}
		configBuilder = configBuilder.WithHashAlgo(algo)
	}

	if logLevel != "" {
		configBuilder = configBuilder.WithLogLevel(logLevel)
	}

	if logFormat != "" {
		configBuilder = configBuilder.WithLogFormat(logFormat)
	}

	cfg, err := configBuilder.Build()
	if err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func ResetFlags() {
	cfgFile = ""
	commandStr = ""
	commandFile = ""
	outputDir = ""
	fileName = ""
	timeout = 0
	stallTimeout = 0
	maxAttempt = 0
	hashAlgo = ""
	logLevel = ""
	logFormat = ""
}

// Test helper functions to set flag values from tests
func SetConfigFileForTest(path string) {
	cfgFile = path
}

func SetCommandForTest(command string) {
	commandStr = command
}

func SetCommandFileForTest(path string) {
	commandFile = path
}

func SetOutputDirForTest(dir string) {
	outputDir = dir
}

func SetFileNameForTest(name string) {
	fileName = name
}

func SetTimeoutForTest(t time.Duration) {
	timeout = t
}

func SetStallTimeoutForTest(t time.Duration) {
	stallTimeout = t
}

func SetMaxAttemptForTest(attempts int) {
	maxAttempt = attempts
}

func SetHashAlgoForTest(algo string) {
	hashAlgo = algo
}

func SetLogLevelForTest(level string) {
	logLevel = level
}

func SetLogFormatForTest(format string) {
	logFormat = format
}

// ReadCommandForTest exposes command resolution to tests.
func ReadCommandForTest(in io.Reader) (string, error) {
	return readCommand(in)
}
