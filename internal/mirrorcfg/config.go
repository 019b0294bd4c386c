// Package mirrorcfg loads and validates the merged configuration consumed
// by every sync orchestrator and the file server.
package mirrorcfg

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"
)

const defaultConfigRelPath = "regmirror/config.toml"

// LogConfig configures the global slog logger.
type LogConfig struct {
	Encoder string `toml:"encoder" env:"REGMIRROR_LOG_ENCODER"`
	Level   string `toml:"level" env:"REGMIRROR_LOG_LEVEL"`
	Limit   int    `toml:"limit" env:"REGMIRROR_LOG_LIMIT"`
}

// Apply installs the global slog handler described by lc.
func (lc *LogConfig) Apply() error {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return errors.Newf("invalid log level: %s", lc.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(lc.Encoder) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "plain", "", "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return errors.Newf("invalid log encoder: %s", lc.Encoder)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// CratesConfig configures the crate-index and crate-archive sync.
type CratesConfig struct {
	IndexDomain     string   `toml:"index_domain" env:"REGMIRROR_CRATES_INDEX_DOMAIN"`
	Domain          string   `toml:"domain" env:"REGMIRROR_CRATES_DOMAIN"`
	ServeDomains    []string `toml:"serve_domains"`
	DownloadThreads int      `toml:"download_threads" env:"REGMIRROR_CRATES_THREADS"`
}

// RustupConfig configures channel and rustup-init sync.
type RustupConfig struct {
	Domain                 string   `toml:"domain" env:"REGMIRROR_RUSTUP_DOMAIN"`
	ServeDomains           []string `toml:"serve_domains"`
	DownloadThreads        int      `toml:"download_threads" env:"REGMIRROR_RUSTUP_THREADS"`
	SyncStableVersions     []string `toml:"sync_stable_versions"`
	SyncNightlyDays        int      `toml:"sync_nightly_days" env:"REGMIRROR_SYNC_NIGHTLY_DAYS"`
	SyncBetaDays           int      `toml:"sync_beta_days" env:"REGMIRROR_SYNC_BETA_DAYS"`
	HistoryVersionStartDate string  `toml:"history_version_start_date" env:"REGMIRROR_HISTORY_START_DATE"`
}

// ProxyConfig configures optional upstream HTTP(S) proxies.
type ProxyConfig struct {
	Enable          bool   `toml:"enable" env:"REGMIRROR_PROXY_ENABLE"`
	DownloadProxy   string `toml:"download_proxy" env:"REGMIRROR_DOWNLOAD_PROXY"`
	GitIndexProxy   string `toml:"git_index_proxy" env:"REGMIRROR_GIT_INDEX_PROXY"`
}

// ObjectStoreConfig selects and configures the Storage Uploader backend.
type ObjectStoreConfig struct {
	Driver string `toml:"driver" env:"REGMIRROR_OBJECTSTORE_DRIVER"` // "cli" or "s3"
	Bucket string `toml:"bucket" env:"REGMIRROR_OBJECTSTORE_BUCKET"`
	// CLICommand, when set, replaces the CLI uploader's single-file command
	// template (split on whitespace), e.g. "s3cmd put {src} s3://{bucket}/{dst} --acl-public".
	CLICommand string `toml:"cli_command"`
	// Region/Endpoint are consulted by the S3 uploader.
	Region   string `toml:"region" env:"REGMIRROR_OBJECTSTORE_REGION"`
	Endpoint string `toml:"endpoint" env:"REGMIRROR_OBJECTSTORE_ENDPOINT"`
}

// Config is the merged configuration for a regmirror invocation.
type Config struct {
	WorkDir string            `toml:"work_dir" env:"REGMIRROR_WORK_DIR"`
	Crates  CratesConfig      `toml:"crates"`
	Rustup  RustupConfig      `toml:"rustup"`
	Proxy   ProxyConfig       `toml:"proxy"`
	Log     LogConfig         `toml:"log"`
	Object  ObjectStoreConfig `toml:"objectstore"`
}

// New returns a Config with sane defaults for thread counts and logging.
func New() *Config {
	return &Config{
		Crates: CratesConfig{DownloadThreads: 8},
		Rustup: RustupConfig{DownloadThreads: 8, SyncNightlyDays: 30, SyncBetaDays: 30},
		Log:    LogConfig{Encoder: "text", Level: "info"},
	}
}

// DefaultPath returns "<root>/regmirror/config.toml".
func DefaultPath(root string) string {
	return filepath.Join(root, defaultConfigRelPath)
}

// Load reads the TOML file at path, falling back to New() on ENOENT, then
// applies environment overrides. work_dir defaults to path's parent.
func Load(path string) (*Config, error) {
	cfg := New()
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if _, decErr := toml.Decode(string(content), cfg); decErr != nil {
			return nil, errors.Wrap(decErr, "decode config")
		}
	case os.IsNotExist(err):
		// Use the in-memory default; caller may persist it with Save.
	default:
		return nil, errors.Wrap(err, "read config")
	}

	if cfg.WorkDir == "" {
		cfg.WorkDir = filepath.Dir(path)
	}

	if err := applyEnvToStruct(cfg); err != nil {
		return nil, errors.Wrap(err, "apply environment overrides")
	}
	return cfg, nil
}

// Check validates required fields.
func (c *Config) Check() error {
	if c.WorkDir == "" {
		return errors.New("work_dir is not set")
	}
	if !filepath.IsAbs(c.WorkDir) {
		return errors.New("work_dir must be an absolute path")
	}
	if c.Crates.DownloadThreads <= 0 {
		return errors.New("crates.download_threads must be a positive integer")
	}
	if c.Rustup.DownloadThreads <= 0 {
		return errors.New("rustup.download_threads must be a positive integer")
	}
	return nil
}

// RequireBucket returns ErrBucketRequired if upload is requested without a
// configured bucket.
func (c *Config) RequireBucket(uploadRequested bool) error {
	if uploadRequested && c.Object.Bucket == "" {
		return ErrBucketRequired
	}
	return nil
}

// Path helpers matching the persisted layout.
func (c *Config) IndexDir() string   { return filepath.Join(c.WorkDir, "crates.io-index") }
func (c *Config) CratesDir() string  { return filepath.Join(c.WorkDir, "crates") }
func (c *Config) DistDir() string    { return filepath.Join(c.WorkDir, "dist") }
func (c *Config) RustupDir() string  { return filepath.Join(c.WorkDir, "rustup") }
func (c *Config) LogDir() string     { return filepath.Join(c.WorkDir, "log") }
func (c *Config) ErrorJournal() string {
	return filepath.Join(c.LogDir(), "error-crates.log")
}
func (c *Config) CommitRecordFile(date string) string {
	return filepath.Join(c.LogDir(), date+"-record.log")
}

// applyEnvToStruct recursively applies "env" tags via reflection, letting
// environment variables override whatever the config file set.
func applyEnvToStruct(v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return errors.New("applyEnvToStruct requires a pointer to struct")
	}
	rv = rv.Elem()
	rt := rv.Type()

	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		fieldType := rt.Field(i)
		if !field.CanSet() {
			continue
		}

		if envTag := fieldType.Tag.Get("env"); envTag != "" {
			if err := setFieldFromEnv(field, envTag); err != nil {
				return errors.Wrapf(err, "field %s", fieldType.Name)
			}
			continue
		}

		if field.Kind() == reflect.Struct {
			if err := applyEnvToStruct(field.Addr().Interface()); err != nil {
				return err
			}
		} else if field.Kind() == reflect.Ptr && !field.IsNil() && field.Elem().Kind() == reflect.Struct {
			if err := applyEnvToStruct(field.Interface()); err != nil {
				return err
			}
		}
	}
	return nil
}

func setFieldFromEnv(field reflect.Value, envVar string) error {
	envValue := os.Getenv(envVar)
	if envValue == "" {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int:
		intVal, err := strconv.Atoi(envValue)
		if err != nil {
			return errors.Newf("invalid integer value for %s: %s", envVar, envValue)
		}
		field.SetInt(int64(intVal))
	case reflect.Bool:
		boolVal, err := strconv.ParseBool(envValue)
		if err != nil {
			return errors.Newf("invalid boolean value for %s: %s", envVar, envValue)
		}
		field.SetBool(boolVal)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return errors.New("unsupported slice type for environment variable")
		}
		parts := strings.Split(envValue, ",")
		values := make([]string, len(parts))
		for i, part := range parts {
			values[i] = strings.TrimSpace(part)
		}
		field.Set(reflect.ValueOf(values))
	default:
		return errors.Newf("unsupported field type: %s", field.Kind())
	}
	return nil
}
