package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/knmorgan/nova/sim"
)

var ErrBadConfig = errors.New("bad config")

// Config is the server configuration. Every flag defaults to a NOVA_*
// environment variable, which godotenv may have filled from .env.
type Config struct {
	Addr           string
	PublicURL      string
	DBPath         string
	Secret         string
	TokenTTL       time.Duration
	TickRate       int
	BroadcastEvery int
	MaxSessions    int
	MaxConnsPerIP  int
	MaxConns       int
	Width          int
	Height         int
	Lives          int
	Waves          bool
	LogLevel       string
	LogFormat      string
}

// LoadConfig parses args over the environment defaults.
func LoadConfig(args []string) (Config, error) {
	var cfg Config
	fs := flag.NewFlagSet("nova", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Addr, "addr", envString("NOVA_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.PublicURL, "public-url", envString("NOVA_PUBLIC_URL", "http://localhost:8080"), "Base URL used in spectator links")
	fs.StringVar(&cfg.DBPath, "db", envString("NOVA_DB", "nova.db"), "SQLite run journal path (empty disables)")
	fs.StringVar(&cfg.Secret, "secret", envString("NOVA_SECRET", ""), "Pilot token signing key (empty: stored in the journal)")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", envDuration("NOVA_TOKEN_TTL", 12*time.Hour), "Pilot token lifetime")
	fs.IntVar(&cfg.TickRate, "tick-rate", envInt("NOVA_TICK_RATE", 1000/sim.TickMillis), "Simulation steps per second")
	fs.IntVar(&cfg.BroadcastEvery, "broadcast-every", envInt("NOVA_BROADCAST_EVERY", 2), "Send a state frame every N ticks")
	fs.IntVar(&cfg.MaxSessions, "max-sessions", envInt("NOVA_MAX_SESSIONS", 50), "Maximum concurrent sessions")
	fs.IntVar(&cfg.MaxConnsPerIP, "max-conns-per-ip", envInt("NOVA_MAX_CONNS_PER_IP", 5), "Maximum sockets per remote IP")
	fs.IntVar(&cfg.MaxConns, "max-conns", envInt("NOVA_MAX_CONNS", 1000), "Maximum sockets overall")
	fs.IntVar(&cfg.Width, "width", envInt("NOVA_WIDTH", sim.DefaultArenaWidth), "Arena width")
	fs.IntVar(&cfg.Height, "height", envInt("NOVA_HEIGHT", sim.DefaultArenaHeight), "Arena height")
	fs.IntVar(&cfg.Lives, "lives", envInt("NOVA_LIVES", sim.DefaultLives), "Spare lives per run")
	fs.BoolVar(&cfg.Waves, "waves", envBool("NOVA_WAVES", true), "Run the wave spawner")
	fs.StringVar(&cfg.LogLevel, "log-level", envString("NOVA_LOG_LEVEL", "info"), "Log level")
	fs.StringVar(&cfg.LogFormat, "log-format", envString("NOVA_LOG_FORMAT", "text"), "Log format: text or json")

	if err := fs.Parse(args); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrBadConfig, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.TickRate <= 0 || c.TickRate > 1000:
		return fmt.Errorf("%w: tick rate %d", ErrBadConfig, c.TickRate)
	case c.BroadcastEvery <= 0:
		return fmt.Errorf("%w: broadcast every %d", ErrBadConfig, c.BroadcastEvery)
	case c.MaxSessions <= 0:
		return fmt.Errorf("%w: max sessions %d", ErrBadConfig, c.MaxSessions)
	case c.MaxConnsPerIP <= 0 || c.MaxConns <= 0:
		return fmt.Errorf("%w: connection caps %d/%d", ErrBadConfig, c.MaxConnsPerIP, c.MaxConns)
	case c.TokenTTL <= 0:
		return fmt.Errorf("%w: token ttl %v", ErrBadConfig, c.TokenTTL)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log format %q", ErrBadConfig, c.LogFormat)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrBadConfig, err)
	}
	if err := c.SimConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBadConfig, err)
	}
	return nil
}

// SimConfig is the core configuration every session starts from.
func (c Config) SimConfig() sim.Config {
	sc := sim.DefaultConfig()
	sc.Width = c.Width
	sc.Height = c.Height
	sc.Lives = c.Lives
	sc.Waves = c.Waves
	return sc
}

func (c Config) SessionOptions() SessionOptions {
	return SessionOptions{
		Sim:            c.SimConfig(),
		TickEvery:      time.Second / time.Duration(c.TickRate),
		BroadcastEvery: c.BroadcastEvery,
		MaxSessions:    c.MaxSessions,
	}
}

func (c Config) HubOptions() HubOptions {
	return HubOptions{
		PublicURL:     c.PublicURL,
		MaxConnsPerIP: c.MaxConnsPerIP,
		MaxConns:      c.MaxConns,
	}
}

// newLogger assumes a validated level and format.
func newLogger(level, format string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if lvl, err := logrus.ParseLevel(level); err == nil {
		log.SetLevel(lvl)
	}
	return log
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return def
}

func envBool(key string, def bool) bool {
	if b, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key))); err == nil {
		return b
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return def
}
