// Package config loads courseboard settings from defaults, an optional YAML
// file, COURSEBOARD_* environment variables and command-line flags, in that
// order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read by Load. A double
// underscore separates nesting levels, e.g. COURSEBOARD_SERVER__ADDR.
const EnvPrefix = "COURSEBOARD_"

// Config is the complete application configuration.
type Config struct {
	Server  Server  `koanf:"server"`
	Storage Storage `koanf:"storage"`
	Log     Log     `koanf:"log"`
	Form    Form    `koanf:"form"`
	Import  Import  `koanf:"import"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

// Storage names the SQLite database. DSN may be a file path or ":memory:".
type Storage struct {
	DSN string `koanf:"dsn" validate:"required"`
}

// Log selects the level and handler format of the process logger.
type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Form controls the behaviour of the course form.
type Form struct {
	// KeepDraftOnFailure keeps the typed name and description when a submit
	// does not take effect, instead of clearing them.
	KeepDraftOnFailure bool `koanf:"keep_draft_on_failure"`
}

// Import lists the course sources and where git sources are cloned to.
// Sources may be local directories or git URLs.
type Import struct {
	Sources  []string `koanf:"sources"`
	ReposDir string   `koanf:"repos_dir" validate:"required"`
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"addr":                  "server.addr",
	"shutdown-timeout":      "server.shutdown_timeout",
	"db":                    "storage.dsn",
	"log-level":             "log.level",
	"log-format":            "log.format",
	"keep-draft-on-failure": "form.keep_draft_on_failure",
	"repos-dir":             "import.repos_dir",
}

// RegisterFlags adds the configuration flags, carrying the defaults, to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Path to a YAML configuration file")
	fs.String("addr", ":8080", "Address the HTTP server listens on")
	fs.Duration("shutdown-timeout", 10*time.Second, "Time allowed for in-flight requests on shutdown")
	fs.String("db", "courses.db", "Path to the SQLite database file")
	fs.String("log-level", "info", "Log level: debug, info, warn or error")
	fs.String("log-format", "text", "Log format: text or json")
	fs.Bool("keep-draft-on-failure", true, "Keep the form draft when a submit does not take effect")
	fs.String("repos-dir", "repos", "Directory git import sources are cloned into")
}

// Load builds the configuration. fs must have been set up by RegisterFlags
// and parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, err := fs.GetString("config")
	if err != nil {
		return nil, fmt.Errorf("failed to read config flag: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Flags only override values that are already set when they were given
	// explicitly; otherwise they supply the defaults.
	if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagKey(fs)), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for missing or out-of-range values.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// NewLogger builds the process logger described by the Log settings.
func (l Log) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func flagKey(fs *pflag.FlagSet) func(f *pflag.Flag) (string, interface{}) {
	return func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}
