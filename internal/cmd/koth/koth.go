// Package koth parses koth command flags and launches the scoring runtime.
package koth

import (
	"context"
	"flag"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/koth/internal/platform/cmd"
	kothserver "github.com/louisbranch/koth/internal/services/koth/app"
)

// Config holds koth command configuration.
type Config struct {
	Bind         string        `env:"KOTH_BIND" envDefault:"127.0.0.1"`
	Port         int           `env:"KOTH_PORT" envDefault:"9999"`
	DataFile     string        `env:"KOTH_DATA_FILE" envDefault:"./data.json"`
	KingFile     string        `env:"KOTH_KING_FILE" envDefault:"./king.txt"`
	TickPoints   uint64        `env:"KOTH_TICK_POINTS" envDefault:"1"`
	TickInterval uint64        `env:"KOTH_TICK_INTERVAL" envDefault:"500"`
	NoBanner     bool          `env:"KOTH_NO_BANNER" envDefault:"false"`
	Verbose      bool          `env:"KOTH_VERBOSE" envDefault:"false"`
	ReadTimeout  time.Duration `env:"KOTH_READ_TIMEOUT" envDefault:"0s"`
	HealthPort   int           `env:"KOTH_HEALTH_PORT" envDefault:"9100"`
	JournalDB    string        `env:"KOTH_JOURNAL_DB"`
}

// ParseConfig parses environment and flags into a Config. Flags win over
// environment values.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	stringFlag(fs, &cfg.Bind, "bind", "b", "Host to bind to (0.0.0.0, 127.0.0.1, etc)")
	intFlag(fs, &cfg.Port, "port", "p", "Port to bind to")
	stringFlag(fs, &cfg.DataFile, "data-file", "d", "Path to data file (json)")
	stringFlag(fs, &cfg.KingFile, "king-file", "k", "Path to king file")
	uint64Flag(fs, &cfg.TickPoints, "tick-points", "t", "Points awarded to the king per tick")
	uint64Flag(fs, &cfg.TickInterval, "tick-interval", "i", "Milliseconds between ticks")
	boolFlag(fs, &cfg.NoBanner, "no-banner", "B", "Don't show the banner")
	boolFlag(fs, &cfg.Verbose, "verbose", "v", "Show details about interactions")
	fs.DurationVar(&cfg.ReadTimeout, "read-timeout", cfg.ReadTimeout, "Per-connection deadline (0 disables)")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "gRPC health server port (0 disables)")
	fs.StringVar(&cfg.JournalDB, "journal-db", cfg.JournalDB, "SQLite award journal path (empty disables)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges the runtime depends on.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range [0, 65535]", c.Port)
	}
	if c.HealthPort < 0 || c.HealthPort > 65535 {
		return fmt.Errorf("health port %d out of range [0, 65535]", c.HealthPort)
	}
	if c.TickInterval == 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if strings.TrimSpace(c.DataFile) == "" {
		return fmt.Errorf("data file path is required")
	}
	if strings.TrimSpace(c.KingFile) == "" {
		return fmt.Errorf("king file path is required")
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("read timeout must not be negative")
	}
	return nil
}

// RuntimeConfig maps command configuration onto the runtime.
func (c Config) RuntimeConfig() kothserver.RuntimeConfig {
	cfg := kothserver.RuntimeConfig{
		Host:         c.Bind,
		Port:         c.Port,
		DataPath:     c.DataFile,
		KingPath:     c.KingFile,
		TickPoints:   c.TickPoints,
		TickInterval: time.Duration(c.TickInterval) * time.Millisecond,
		ReadTimeout:  c.ReadTimeout,
		JournalPath:  strings.TrimSpace(c.JournalDB),
		Verbose:      c.Verbose,
	}
	if c.HealthPort > 0 {
		cfg.HealthAddr = net.JoinHostPort(c.Bind, strconv.Itoa(c.HealthPort))
	}
	return cfg
}

// Run starts the koth runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceKoth, func(ctx context.Context) error {
		return kothserver.Run(ctx, cfg.RuntimeConfig())
	})
}

func stringFlag(fs *flag.FlagSet, p *string, name, short, usage string) {
	fs.StringVar(p, name, *p, usage)
	fs.StringVar(p, short, *p, usage+" (shorthand)")
}

func intFlag(fs *flag.FlagSet, p *int, name, short, usage string) {
	fs.IntVar(p, name, *p, usage)
	fs.IntVar(p, short, *p, usage+" (shorthand)")
}

func uint64Flag(fs *flag.FlagSet, p *uint64, name, short, usage string) {
	fs.Uint64Var(p, name, *p, usage)
	fs.Uint64Var(p, short, *p, usage+" (shorthand)")
}

func boolFlag(fs *flag.FlagSet, p *bool, name, short, usage string) {
	fs.BoolVar(p, name, *p, usage)
	fs.BoolVar(p, short, *p, usage+" (shorthand)")
}
