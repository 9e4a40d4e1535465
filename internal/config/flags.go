package config

import (
	"flag"
	"fmt"
	"io"
)

// CLIFlags holds optional command-line overrides. Nil fields were not set
// on the command line.
type CLIFlags struct {
	ConfigPath *string
	Role       *string
	Port       *string
	LogLevel   *string
	DSN        *string
	NatsURL    *string
}

// ParseFlags parses command-line arguments into CLIFlags. Unknown flags
// produce an error.
func ParseFlags(args []string) (CLIFlags, error) {
	fs := flag.NewFlagSet("caremesh", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	configPath := fs.String("config", "", "path to YAML config file")
	fs.StringVar(configPath, "c", "", "path to YAML config file (shorthand)")
	role := fs.String("role", "", "mesh role to serve")
	fs.StringVar(role, "r", "", "mesh role to serve (shorthand)")
	port := fs.String("port", "", "listen port override for the served role")
	fs.StringVar(port, "p", "", "listen port override (shorthand)")
	logLevel := fs.String("log-level", "", "log level (debug|info|warn|error)")
	dsn := fs.String("dsn", "", "postgres DSN override")
	natsURL := fs.String("nats-url", "", "NATS URL override")

	if err := fs.Parse(args); err != nil {
		return CLIFlags{}, fmt.Errorf("parse flags: %w", err)
	}

	var flags CLIFlags
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "config", "c":
			flags.ConfigPath = configPath
		case "role", "r":
			flags.Role = role
		case "port", "p":
			flags.Port = port
		case "log-level":
			flags.LogLevel = logLevel
		case "dsn":
			flags.DSN = dsn
		case "nats-url":
			flags.NatsURL = natsURL
		}
	})

	return flags, nil
}

// LoadWithCLI loads configuration with CLI flags taking the highest
// precedence: defaults < YAML < ENV < CLI. The resolved config file path is
// returned alongside the config.
func LoadWithCLI(flags CLIFlags) (*Config, string, error) {
	path := DefaultConfigFile
	if flags.ConfigPath != nil {
		path = *flags.ConfigPath
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, path); err != nil {
		return nil, "", fmt.Errorf("config yaml: %w", err)
	}
	loadEnv(&cfg)
	applyCLI(&cfg, flags)

	if err := validate(&cfg); err != nil {
		return nil, "", fmt.Errorf("config validate: %w", err)
	}

	return &cfg, path, nil
}

// applyCLI overlays non-nil CLI flags onto cfg. Role and Port are left for
// the serve command, which knows which role's port to override.
func applyCLI(cfg *Config, flags CLIFlags) {
	if flags.LogLevel != nil {
		cfg.Logging.Level = *flags.LogLevel
	}
	if flags.DSN != nil {
		cfg.Postgres.DSN = *flags.DSN
	}
	if flags.NatsURL != nil {
		cfg.NATS.URL = *flags.NatsURL
	}
}
