package daemon

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/teclabat/performance-go/pkg/machine"
)

type Config struct {
	DaemonID           string   `mapstructure:"daemon_id"`
	CommandNamespace   string   `mapstructure:"command_namespace"`
	ManagementPassword string   `mapstructure:"management_password"`
	APIListenAddr      string   `mapstructure:"api_listen_address"`
	LogDBFile          string   `mapstructure:"log_db_file"`
	KeystoreFile       string   `mapstructure:"keystore_file"`
	Pipeline           []string `mapstructure:"pipeline"`
	PipelineSalt       string   `mapstructure:"pipeline_salt"`
	PipelinePassphrase string   `mapstructure:"pipeline_passphrase"`
	ConfigFile         string   `mapstructure:"config_file"`
}

func DefaultConfig() *Config {
	return &Config{
		CommandNamespace: "performance",
		APIListenAddr:    ":7781",
		LogDBFile:        "performance-logs.db",
		KeystoreFile:     "keys.db",
		Pipeline:         []string{"xor"},
		ConfigFile:       "performance.yaml", // Default config file name.
	}
}

// LoadConfig loads configuration from file and environment, in that order of
// precedence. Command-line overrides are applied by the caller on top.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigName("performance") // name of config file (without extension)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".") // look for config in the working directory
	viper.AddConfigPath("/etc/performance-go/")
	viper.AddConfigPath("$HOME/.performance-go")
	viper.SetEnvPrefix("PERF") // will be uppercased automatically, PERF_...
	viper.AutomaticEnv()       // read in environment variables that match

	// Register defaults so env-only keys survive Unmarshal
	viper.SetDefault("command_namespace", cfg.CommandNamespace)
	viper.SetDefault("management_password", cfg.ManagementPassword)
	viper.SetDefault("api_listen_address", cfg.APIListenAddr)
	viper.SetDefault("log_db_file", cfg.LogDBFile)
	viper.SetDefault("keystore_file", cfg.KeystoreFile)
	viper.SetDefault("pipeline", cfg.Pipeline)
	viper.SetDefault("pipeline_salt", cfg.PipelineSalt)
	viper.SetDefault("pipeline_passphrase", cfg.PipelinePassphrase)
	viper.SetDefault("daemon_id", cfg.DaemonID)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return nil, err
		}
		// Config file not found; defaults and environment apply
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, err
	}

	// Handle defaults that Viper can't. The machine ID suffix keeps default
	// daemon IDs unique across hosts that share a hostname.
	if cfg.DaemonID == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, err
		}
		if short, err := machine.ShortID(); err == nil {
			cfg.DaemonID = h + "-" + short
		} else {
			cfg.DaemonID = h
		}
	}
	if used := viper.ConfigFileUsed(); used != "" {
		cfg.ConfigFile = filepath.Base(used)
	}

	return cfg, nil
}
