// config.go - Configuration management for the axiompay client.
//
// Configuration is read from a YAML file with viper. Every key can be
// overridden through the environment as AXIOMPAY_<SECTION>_<KEY>, for
// example AXIOMPAY_CRYPTO_WORKERS=8.
package config

import (
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"axiompay/internal/fixedpoint"
)

const envPrefix = "AXIOMPAY"

// Config is the application configuration.
type Config struct {
	Crypto   CryptoConfig     `mapstructure:"crypto" json:"crypto"`
	Decimals fixedpoint.Scale `mapstructure:"decimals" json:"decimals"`
	Paths    PathsConfig      `mapstructure:"paths" json:"paths"`
	Log      LogConfig        `mapstructure:"log" json:"log"`
	Metrics  MetricsConfig    `mapstructure:"metrics" json:"metrics"`
}

// CryptoConfig holds the search bounds and key sizes.
type CryptoConfig struct {
	// AmountBound is the exclusive upper bound of encrypted amounts and of
	// the balance search.
	AmountBound uint64 `mapstructure:"amount_bound" json:"amount_bound" validate:"gt=1"`
	// RandomnessBits sets the exclusive upper bound of k to 2^RandomnessBits.
	RandomnessBits uint `mapstructure:"randomness_bits" json:"randomness_bits" validate:"gte=8,lte=200"`
	// Workers is the discrete-log worker count, 0 for one per CPU.
	Workers            int `mapstructure:"workers" json:"workers" validate:"gte=0"`
	TrapdoorBits       int `mapstructure:"trapdoor_bits" json:"trapdoor_bits" validate:"gte=256"`
	TrapdoorMarginBits int `mapstructure:"trapdoor_margin_bits" json:"trapdoor_margin_bits" validate:"gte=0"`
}

// RandomnessBound returns 2^RandomnessBits.
func (c CryptoConfig) RandomnessBound() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), c.RandomnessBits)
}

// PathsConfig holds file and directory locations.
type PathsConfig struct {
	KeyStore  string `mapstructure:"keystore" json:"keystore" validate:"required"`
	Artifacts string `mapstructure:"artifacts" json:"artifacts" validate:"required"`
	Workspace string `mapstructure:"workspace" json:"workspace" validate:"required"`
	Wallets   string `mapstructure:"wallets" json:"wallets" validate:"required"`
	Ledger    string `mapstructure:"ledger" json:"ledger" validate:"required"`
}

type LogConfig struct {
	Level     string `mapstructure:"level" json:"level" validate:"oneof=trace debug info warn error disabled"`
	File      string `mapstructure:"file" json:"file"`
	AuditFile string `mapstructure:"audit_file" json:"audit_file"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr" json:"addr" validate:"omitempty,hostname_port"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Crypto: CryptoConfig{
			AmountBound:        1 << 32,
			RandomnessBits:     38,
			Workers:            0,
			TrapdoorBits:       2048,
			TrapdoorMarginBits: 128,
		},
		Decimals: fixedpoint.Default,
		Paths: PathsConfig{
			KeyStore:  "storage.json",
			Artifacts: "artifacts",
			Workspace: "workspace",
			Wallets:   "wallets",
			Ledger:    "ledger.json",
		},
		Log: LogConfig{
			Level:     "info",
			File:      "axiompay.log",
			AuditFile: "audit.log",
		},
		Metrics: MetricsConfig{Addr: "127.0.0.1:9464"},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that the trapdoor modulus leaves
// the configured margin above the randomness bound.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	if need := int(c.Crypto.RandomnessBits) + c.Crypto.TrapdoorMarginBits; c.Crypto.TrapdoorBits < need {
		return errors.Errorf("invalid configuration: trapdoor_bits %d below randomness_bits + trapdoor_margin_bits = %d",
			c.Crypto.TrapdoorBits, need)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// settings returns the configuration as nested viper keys.
func (c *Config) settings() map[string]any {
	return map[string]any{
		"crypto": map[string]any{
			"amount_bound":         c.Crypto.AmountBound,
			"randomness_bits":      c.Crypto.RandomnessBits,
			"workers":              c.Crypto.Workers,
			"trapdoor_bits":        c.Crypto.TrapdoorBits,
			"trapdoor_margin_bits": c.Crypto.TrapdoorMarginBits,
		},
		"decimals": map[string]any{
			"from": c.Decimals.From,
			"to":   c.Decimals.To,
		},
		"paths": map[string]any{
			"keystore":  c.Paths.KeyStore,
			"artifacts": c.Paths.Artifacts,
			"workspace": c.Paths.Workspace,
			"wallets":   c.Paths.Wallets,
			"ledger":    c.Paths.Ledger,
		},
		"log": map[string]any{
			"level":      c.Log.Level,
			"file":       c.Log.File,
			"audit_file": c.Log.AuditFile,
		},
		"metrics": map[string]any{
			"addr": c.Metrics.Addr,
		},
	}
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the file.
func setDefaults(v *viper.Viper, c *Config) {
	for section, keys := range c.settings() {
		for k, val := range keys.(map[string]any) {
			v.SetDefault(section+"."+k, val)
		}
	}
}

// LoadConfig reads configPath, writing the default configuration there
// first if the file does not exist. Environment overrides apply either way.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := SaveConfig(DefaultConfig(), configPath); err != nil {
			return nil, errors.Wrap(err, "save default config")
		}
	}

	v := newViper()
	setDefaults(v, DefaultConfig())
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode config file")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig writes the configuration as YAML.
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.MergeConfigMap(cfg.settings()); err != nil {
		return errors.Wrap(err, "encode configuration")
	}
	return errors.Wrap(v.WriteConfigAs(configPath), "write config file")
}
