package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"
	"github.com/dustin/go-humanize"

	"github.com/cwygoda/thaw/internal/logging"
)

// State backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds application configuration.
type Config struct {
	// File is the TOML file the rest was read from, if any.
	File string `toml:"-"`

	Region          string `toml:"region"`
	CredentialsFile string `toml:"credentials_file"`

	StateBackend string `toml:"state_backend"`
	StateDir     string `toml:"state_dir"`
	DBPath       string `toml:"db_path"`
	OutputDir    string `toml:"output_dir"`

	RetrievalPollInterval time.Duration `toml:"retrieval_poll_interval"`
	InventoryPollInterval time.Duration `toml:"inventory_poll_interval"`
	PollJitter            time.Duration `toml:"poll_jitter"`
	MaxPollWait           time.Duration `toml:"max_poll_wait"`
	StaleAfter            time.Duration `toml:"stale_after"`

	PartSize ByteSize `toml:"part_size"`
	LogLevel string   `toml:"log_level"`
}

// ByteSize is a size written as "64MiB", "1 GiB" or a plain byte count.
type ByteSize int64

func (b ByteSize) String() string { return humanize.IBytes(uint64(b)) }

func (b *ByteSize) Set(s string) error { return b.UnmarshalText([]byte(s)) }

func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := humanize.ParseBytes(string(text))
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", text, err)
	}
	*b = ByteSize(n)
	return nil
}

// DefaultStateDir returns the directory job-state files are kept in,
// $XDG_STATE_HOME/thaw.
func DefaultStateDir() string {
	return filepath.Join(xdg.StateHome, "thaw")
}

// DefaultDBPath returns the default SQLite database path.
func DefaultDBPath() string {
	return filepath.Join(DefaultStateDir(), "jobs.db")
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		StateBackend:          BackendFile,
		StateDir:              DefaultStateDir(),
		DBPath:                DefaultDBPath(),
		OutputDir:             ".",
		RetrievalPollInterval: 5 * time.Minute,
		InventoryPollInterval: 2 * time.Minute,
		MaxPollWait:           18 * time.Hour,
		StaleAfter:            18 * time.Hour,
		PartSize:              64 << 20,
		LogLevel:              "info",
	}
}

// Load builds Config from defaults, an optional TOML file, flags and THAW_*
// environment variables, in increasing order of precedence. It returns the
// positional arguments left after flag parsing.
func Load(args []string, getenv func(string) string, out io.Writer) (*Config, []string, error) {
	cfg := Default()
	cfg.File = getenv("THAW_CONFIG")

	fs := cfg.flagSet(out)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	if cfg.File != "" {
		if _, err := toml.DecodeFile(cfg.File, cfg); err != nil {
			return nil, nil, fmt.Errorf("read config %s: %w", cfg.File, err)
		}
		// Flags given on the command line win over the file.
		fs = cfg.flagSet(io.Discard)
		if err := fs.Parse(args); err != nil {
			return nil, nil, err
		}
	}

	// Env overrides
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, nil, err
	}
	cfg.StateBackend = strings.ToLower(cfg.StateBackend)
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, fs.Args(), nil
}

func (c *Config) flagSet(out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("thaw", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&c.File, "config", c.File, "TOML config file (env THAW_CONFIG)")
	fs.StringVar(&c.Region, "region", c.Region, "AWS region")
	fs.StringVar(&c.CredentialsFile, "credentials", c.CredentialsFile, "JSON credentials file; default AWS chain when empty")
	fs.StringVar(&c.StateBackend, "state-backend", c.StateBackend, "job state store: file or sqlite")
	fs.StringVar(&c.StateDir, "state-dir", c.StateDir, "directory for job state files")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path")
	fs.StringVar(&c.OutputDir, "output-dir", c.OutputDir, "directory inventories are written to")
	fs.DurationVar(&c.RetrievalPollInterval, "poll-interval", c.RetrievalPollInterval, "retrieval job poll interval")
	fs.DurationVar(&c.InventoryPollInterval, "inventory-poll-interval", c.InventoryPollInterval, "inventory job poll interval")
	fs.DurationVar(&c.PollJitter, "poll-jitter", c.PollJitter, "random +/- jitter added to each poll interval")
	fs.DurationVar(&c.MaxPollWait, "max-poll-wait", c.MaxPollWait, "give up waiting on a job after this long (0 waits forever)")
	fs.DurationVar(&c.StaleAfter, "stale-after", c.StaleAfter, "age after which saved job state is ignored")
	fs.Var(&c.PartSize, "part-size", "multipart upload and download range size")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
	return fs
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"THAW_REGION":           &c.Region,
		"THAW_CREDENTIALS_FILE": &c.CredentialsFile,
		"THAW_STATE_BACKEND":    &c.StateBackend,
		"THAW_STATE_DIR":        &c.StateDir,
		"THAW_DB_PATH":          &c.DBPath,
		"THAW_OUTPUT_DIR":       &c.OutputDir,
		"THAW_LOG_LEVEL":        &c.LogLevel,
	}
	for key, dst := range strs {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"THAW_RETRIEVAL_POLL_INTERVAL": &c.RetrievalPollInterval,
		"THAW_INVENTORY_POLL_INTERVAL": &c.InventoryPollInterval,
		"THAW_POLL_JITTER":             &c.PollJitter,
		"THAW_MAX_POLL_WAIT":           &c.MaxPollWait,
		"THAW_STALE_AFTER":             &c.StaleAfter,
	}
	for key, dst := range durations {
		v := getenv(key)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
	}

	if v := getenv("THAW_PART_SIZE"); v != "" {
		if err := c.PartSize.Set(v); err != nil {
			return fmt.Errorf("THAW_PART_SIZE: %w", err)
		}
	}
	return nil
}

// Validate checks values that would only fail later, deep inside a run.
func (c *Config) Validate() error {
	var errs []error
	switch c.StateBackend {
	case BackendFile:
		if c.StateDir == "" {
			errs = append(errs, errors.New("state_dir must be set for the file backend"))
		}
	case BackendSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("db_path must be set for the sqlite backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown state_backend %q", c.StateBackend))
	}
	if c.RetrievalPollInterval <= 0 {
		errs = append(errs, errors.New("retrieval_poll_interval must be positive"))
	}
	if c.InventoryPollInterval <= 0 {
		errs = append(errs, errors.New("inventory_poll_interval must be positive"))
	}
	if c.PollJitter < 0 || c.MaxPollWait < 0 {
		errs = append(errs, errors.New("poll_jitter and max_poll_wait must not be negative"))
	}
	if c.StaleAfter <= 0 {
		errs = append(errs, errors.New("stale_after must be positive"))
	}
	if c.PartSize <= 0 {
		errs = append(errs, errors.New("part_size must be positive"))
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
