package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rohmanhakim/curlgrab/internal/logging"
	"github.com/rohmanhakim/curlgrab/pkg/hashutil"
)

const envPrefix = "CURLGRAB"

type Config struct {
	//===============
	// Transfer
	//===============
	// Deadline for a whole download, connect to last byte. Zero means none.
	timeout time.Duration
	// A download is aborted when no body bytes arrive for this long. Zero disables it.
	stallTimeout time.Duration
	// Size of the buffer the response body is read into
	bufferSize int

	//===============
	// Retry
	//===============
	// maximum attempt for the request phase; 1 disables retries
	maxAttempt int
	// Randomized variation added on top of each backoff delay
	jitter time.Duration
	// Controls the random number generator
	randomSeed int64
	// initial delay for backoff
	backoffInitialDuration time.Duration
	// multiplier during exponential backoff
	backoffMultiplier float64
	// capped maximum delay for backoff to stop exponential multiplication
	backoffMaxDuration time.Duration

	//===============
	// Output
	//===============
	// Directory downloads are written to when the caller names none
	outputDir string
	// Checksum computed while writing: none, sha256 or blake3
	hashAlgo hashutil.HashAlgo

	//===============
	// Logging
	//===============
	logLevel  string
	logFormat string
}

type configDTO struct {
	Timeout                time.Duration `mapstructure:"timeout"`
	StallTimeout           time.Duration `mapstructure:"stallTimeout"`
	BufferSize             int           `mapstructure:"bufferSize"`
	MaxAttempt             int           `mapstructure:"maxAttempt"`
	Jitter                 time.Duration `mapstructure:"jitter"`
	RandomSeed             int64         `mapstructure:"randomSeed"`
	BackoffInitialDuration time.Duration `mapstructure:"backoffInitialDuration"`
	BackoffMultiplier      float64       `mapstructure:"backoffMultiplier"`
	BackoffMaxDuration     time.Duration `mapstructure:"backoffMaxDuration"`
	OutputDir              string        `mapstructure:"outputDir"`
	HashAlgo               string        `mapstructure:"hashAlgo"`
	LogLevel               string        `mapstructure:"logLevel"`
	LogFormat              string        `mapstructure:"logFormat"`
}

// envBindings maps config keys onto their environment variables.
var envBindings = map[string]string{
	"timeout":                envPrefix + "_TIMEOUT",
	"stallTimeout":           envPrefix + "_STALL_TIMEOUT",
	"bufferSize":             envPrefix + "_BUFFER_SIZE",
	"maxAttempt":             envPrefix + "_MAX_ATTEMPT",
	"jitter":                 envPrefix + "_JITTER",
	"randomSeed":             envPrefix + "_RANDOM_SEED",
	"backoffInitialDuration": envPrefix + "_BACKOFF_INITIAL_DURATION",
	"backoffMultiplier":      envPrefix + "_BACKOFF_MULTIPLIER",
	"backoffMaxDuration":     envPrefix + "_BACKOFF_MAX_DURATION",
	"outputDir":              envPrefix + "_OUTPUT_DIR",
	"hashAlgo":               envPrefix + "_HASH_ALGO",
	"logLevel":               envPrefix + "_LOG_LEVEL",
	"logFormat":              envPrefix + "_LOG_FORMAT",
}

func newConfigFromDTO(dto configDTO) (Config, error) {
	algo, err := hashutil.ParseHashAlgo(dto.HashAlgo)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}

	return WithDefault().
		WithTimeout(dto.Timeout).
		WithStallTimeout(dto.StallTimeout).
		WithBufferSize(dto.BufferSize).
		WithMaxAttempt(dto.MaxAttempt).
		WithJitter(dto.Jitter).
		WithRandomSeed(dto.RandomSeed).
		WithBackoffInitialDuration(dto.BackoffInitialDuration).
		WithBackoffMultiplier(dto.BackoffMultiplier).
		WithBackoffMaxDuration(dto.BackoffMaxDuration).
		WithOutputDir(dto.OutputDir).
		WithHashAlgo(algo).
		WithLogLevel(dto.LogLevel).
		WithLogFormat(dto.LogFormat).
		Build()
}

// WithConfigFile loads a JSON, TOML or YAML file, chosen by extension.
// Keys absent from the file keep their defaults; CURLGRAB_* environment
// variables override both.
func WithConfigFile(path string) (Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrFileDoesNotExist, err.Error())
	}

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrReadConfigFail, err.Error())
	}

	return load(v)
}

// FromEnvironment applies CURLGRAB_* environment variables on top of the defaults.
func FromEnvironment() (Config, error) {
	return load(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	defaults := WithDefault()
	v.SetDefault("timeout", defaults.timeout)
	v.SetDefault("stallTimeout", defaults.stallTimeout)
	v.SetDefault("bufferSize", defaults.bufferSize)
	v.SetDefault("maxAttempt", defaults.maxAttempt)
	v.SetDefault("jitter", defaults.jitter)
	v.SetDefault("randomSeed", defaults.randomSeed)
	v.SetDefault("backoffInitialDuration", defaults.backoffInitialDuration)
	v.SetDefault("backoffMultiplier", defaults.backoffMultiplier)
	v.SetDefault("backoffMaxDuration", defaults.backoffMaxDuration)
	v.SetDefault("outputDir", defaults.outputDir)
	v.SetDefault("hashAlgo", string(defaults.hashAlgo))
	v.SetDefault("logLevel", defaults.logLevel)
	v.SetDefault("logFormat", defaults.logFormat)

	for key, env := range envBindings {
		// BindEnv only fails without a key
		_ = v.BindEnv(key, env)
	}
	return v
}

func load(v *viper.Viper) (Config, error) {
	cfgDTO := configDTO{}
	if err := v.Unmarshal(&cfgDTO); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrConfigParsingFail, err.Error())
	}
	return newConfigFromDTO(cfgDTO)
}

// WithDefault creates a new Config with default values for all fields.
func WithDefault() *Config {
	defaultConfig := Config{
		timeout:                0,
		stallTimeout:           30 * time.Second,
		bufferSize:             32 * 1024,
		maxAttempt:             1,
		jitter:                 250 * time.Millisecond,
		randomSeed:             time.Now().UnixNano(),
		backoffInitialDuration: 500 * time.Millisecond,
		backoffMultiplier:      2.0,
		backoffMaxDuration:     10 * time.Second,
		outputDir:              ".",
		hashAlgo:               hashutil.HashAlgoBLAKE3,
		logLevel:               "info",
		logFormat:              logging.FormatConsole,
	}
	return &defaultConfig
}

func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.timeout = timeout
	return c
}

func (c *Config) WithStallTimeout(timeout time.Duration) *Config {
	c.stallTimeout = timeout
	return c
}

func (c *Config) WithBufferSize(size int) *Config {
	c.bufferSize = size
	return c
}

func (c *Config) WithMaxAttempt(attempts int) *Config {
	c.maxAttempt = attempts
	return c
}

func (c *Config) WithJitter(jitter time.Duration) *Config {
	c.jitter = jitter
	return c
}

func (c *Config) WithRandomSeed(seed int64) *Config {
	c.randomSeed = seed
	return c
}

func (c *Config) WithBackoffInitialDuration(duration time.Duration) *Config {
	c.backoffInitialDuration = duration
	return c
}

func (c *Config) WithBackoffMultiplier(multiplier float64) *Config {
	c.backoffMultiplier = multiplier
	return c
}

func (c *Config) WithBackoffMaxDuration(duration time.Duration) *Config {
	c.backoffMaxDuration = duration
	return c
}

func (c *Config) WithOutputDir(outputDir string) *Config {
	c.outputDir = outputDir
	return c
}

func (c *Config) WithHashAlgo(algo hashutil.HashAlgo) *Config {
	c.hashAlgo = algo
	return c
}

func (c *Config) WithLogLevel(level string) *Config {
	c.logLevel = level
	return c
}

func (c *Config) WithLogFormat(format string) *Config {
	c.logFormat = format
	return c
}

func (c *Config) Build() (Config, error) {
	if c.timeout < 0 {
		return Config{}, fmt.Errorf("%w: timeout cannot be negative", ErrInvalidConfig)
	}
	if c.stallTimeout < 0 {
		return Config{}, fmt.Errorf("%w: stallTimeout cannot be negative", ErrInvalidConfig)
	}
	if c.bufferSize <= 0 {
		return Config{}, fmt.Errorf("%w: bufferSize must be positive", ErrInvalidConfig)
	}
	if c.maxAttempt < 1 {
		return Config{}, fmt.Errorf("%w: maxAttempt must be at least 1", ErrInvalidConfig)
	}
	if c.jitter < 0 || c.backoffInitialDuration < 0 || c.backoffMaxDuration < 0 {
		return Config{}, fmt.Errorf("%w: backoff durations cannot be negative", ErrInvalidConfig)
	}
	if c.backoffMultiplier < 1 {
		return Config{}, fmt.Errorf("%w: backoffMultiplier must be at least 1", ErrInvalidConfig)
	}
	if _, err := hashutil.ParseHashAlgo(string(c.hashAlgo)); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	if _, err := logging.ParseLevel(c.logLevel); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err.Error())
	}
	if c.logFormat != logging.FormatConsole && c.logFormat != logging.FormatJSON {
		return Config{}, fmt.Errorf("%w: unknown log format %q", ErrInvalidConfig, c.logFormat)
	}
	if c.outputDir == "" {
		c.outputDir = "."
	}
	return *c, nil
}

func (c Config) Timeout() time.Duration {
	return c.timeout
}

func (c Config) StallTimeout() time.Duration {
	return c.stallTimeout
}

func (c Config) BufferSize() int {
	return c.bufferSize
}

func (c Config) MaxAttempt() int {
	return c.maxAttempt
}

func (c Config) Jitter() time.Duration {
	return c.jitter
}

func (c Config) RandomSeed() int64 {
	return c.randomSeed
}

func (c Config) BackoffInitialDuration() time.Duration {
	return c.backoffInitialDuration
}

func (c Config) BackoffMultiplier() float64 {
	return c.backoffMultiplier
}

func (c Config) BackoffMaxDuration() time.Duration {
	return c.backoffMaxDuration
}

func (c Config) OutputDir() string {
	return c.outputDir
}

func (c Config) HashAlgo() hashutil.HashAlgo {
	return c.hashAlgo
}

func (c Config) LogLevel() string {
	return c.logLevel
}

func (c Config) LogFormat() string {
	return c.logFormat
}
