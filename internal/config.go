package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultAddress is where the relay listens unless configured otherwise.
const DefaultAddress = "127.0.0.1:5000"

// Config holds the relay configuration.
type Config struct {
	Address         string
	ShowActions     bool
	LogFile         string
	LogLevel        string
	WriteTimeout    time.Duration
	MaxMessageSize  int
	ShutdownTimeout time.Duration
	MetricsAddress  string
	UI              bool
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Address:         DefaultAddress,
		ShowActions:     true,
		LogLevel:        "info",
		WriteTimeout:    10 * time.Second,
		MaxMessageSize:  DefaultMaxMessageSize,
		ShutdownTimeout: 5 * time.Second,
	}
}

// LoadConfig resolves the configuration from command line args, RELAY_*
// environment variables and an optional config file, in that order of precedence.
// It returns pflag.ErrHelp when -h or --help was requested.
func LoadConfig(args []string) (Config, error) {
	def := DefaultConfig()

	fs := pflag.NewFlagSet("relaychat", pflag.ContinueOnError)
	configFile := fs.String("config", "", "Path to a config file (yaml, toml or json)")
	fs.String("address", def.Address, "TCP address to listen on")
	fs.Bool("show-actions", def.ShowActions, "Log clients joining and leaving")
	fs.String("log-file", def.LogFile, "Append log entries to this file")
	fs.String("log-level", def.LogLevel, "Log level (debug, info, warn, error)")
	fs.Duration("write-timeout", def.WriteTimeout, "Deadline for a single write to a client, 0 disables it")
	fs.Int("max-message-size", def.MaxMessageSize, "Largest accepted message payload in bytes")
	fs.Duration("shutdown-timeout", def.ShutdownTimeout, "How long to wait for clients on shutdown")
	fs.String("metrics-address", def.MetricsAddress, "Serve Prometheus metrics on this HTTP address")
	fs.Bool("ui", def.UI, "Run the terminal operator console")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetEnvPrefix("relay")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrap(err, "read config file")
		}
	}

	if err := v.BindPFlags(fs); err != nil {
		return Config{}, errors.Wrap(err, "bind flags")
	}

	cfg := Config{
		Address:         v.GetString("address"),
		ShowActions:     v.GetBool("show-actions"),
		LogFile:         v.GetString("log-file"),
		LogLevel:        v.GetString("log-level"),
		WriteTimeout:    v.GetDuration("write-timeout"),
		MaxMessageSize:  v.GetInt("max-message-size"),
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
		MetricsAddress:  v.GetString("metrics-address"),
		UI:              v.GetBool("ui"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration can be used to start the relay.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max-message-size must be positive, got %d", c.MaxMessageSize)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("write-timeout cannot be negative")
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("shutdown-timeout cannot be negative")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log-level %q", c.LogLevel)
	}
	return nil
}
