// Package probe checks the koth health endpoint for container health checks.
package probe

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/koth/internal/platform/cmd"
	"github.com/louisbranch/koth/internal/platform/discovery"
	platformgrpc "github.com/louisbranch/koth/internal/platform/grpc"
	"github.com/louisbranch/koth/internal/platform/timeouts"
)

// Config holds probe command configuration.
type Config struct {
	Addr    string        `env:"KOTH_PROBE_ADDR"`
	Service string        `env:"KOTH_PROBE_SERVICE"`
	Timeout time.Duration `env:"KOTH_PROBE_TIMEOUT" envDefault:"2s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Addr = discovery.OrDefaultHealthAddr(cfg.Addr, discovery.ServiceKoth)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Health endpoint address")
	fs.StringVar(&cfg.Service, "service", cfg.Service, "Health service name (empty checks the whole process)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "How long to wait for SERVING")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return Config{}, fmt.Errorf("health address is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.GRPCDial
	}
	return cfg, nil
}

// Run dials the health endpoint and reports SERVING to out. Any other outcome
// is returned as an error.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceProbe, func(ctx context.Context) error {
		conn, err := platformgrpc.DialWithHealth(ctx, cfg.Addr, cfg.Service, cfg.Timeout, nil)
		if err != nil {
			return fmt.Errorf("check %s: %w", cfg.Addr, err)
		}
		if err := conn.Close(); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}
		name := cfg.Service
		if name == "" {
			name = "koth"
		}
		_, err = fmt.Fprintf(out, "%s: SERVING\n", name)
		return err
	})
}
