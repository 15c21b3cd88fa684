package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	GENERAL_CONFIG_KEY = "general-config"
	RPC_CONFIG_KEY     = "rpc-config"
	COMPUTE_CONFIG_KEY = "compute-config"
	CACHE_CONFIG_KEY   = "cache-config"

	EnvPrefix = "LPCTL"
)

// Config is one concern's settings, read from a loaded viper instance.
type Config interface {
	Key() string
	Load(v *viper.Viper) error
	Validate() error
}

type GeneralConfig struct {
	LogLevel    string
	LogPretty   bool
	MetricsFile string
}

func (gc *GeneralConfig) Key() string {
	return GENERAL_CONFIG_KEY
}

func (gc *GeneralConfig) Load(v *viper.Viper) error {
	gc.LogLevel = v.GetString("log-level")
	gc.LogPretty = v.GetBool("log-pretty")
	gc.MetricsFile = v.GetString("metrics-file")
	return gc.Validate()
}

func (gc *GeneralConfig) Validate() error {
	switch strings.ToLower(gc.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled", "":
		return nil
	}
	return fmt.Errorf("invalid general config: unknown log level %q", gc.LogLevel)
}

// RegisterGlobalFlags declares the flags shared by every command.
func RegisterGlobalFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (yaml, json or toml)")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.Bool("log-pretty", false, "human readable logs on stderr")
	fs.String("metrics-file", "", "write prometheus metrics to this file on exit")
	fs.String("dex", "raydium", "protocol: raydium|orca|meteora (protocolA|protocolB|protocolC)")
	fs.String("keypair", "", "signing key: file path, JSON byte array or base58 (default $"+"PRIVATE_KEY_B58)")
	registerRPCFlags(fs)
	registerCacheFlags(fs)
}

// RegisterActionFlags declares the position, swap and wrap flags.
func RegisterActionFlags(fs *pflag.FlagSet) {
	registerComputeFlags(fs)
	fs.Bool("dry-run", false, "simulate only, never submit")

	fs.String("pool", "", "pool to open a position in")
	fs.Int32("lower", 0, "lower tick (or bin id)")
	fs.Int32("upper", 0, "upper tick (or bin id)")
	fs.String("price-lower", "", "lower bound as a token1 per token0 price")
	fs.String("price-upper", "", "upper bound as a token1 per token0 price")
	fs.Uint64("amount0", 0, "maximum token0 deposit (base units)")
	fs.Uint64("amount1", 0, "maximum token1 deposit (base units)")

	fs.String("remove-position", "", "position NFT mint (raydium, orca) or position account (meteora) to withdraw from")
	fs.Uint64("min-out0", 0, "minimum token0 to receive")
	fs.Uint64("min-out1", 0, "minimum token1 to receive")
	fs.Bool("close", false, "close the position after withdrawing")

	fs.String("swap-pool", "", "pool to swap in")
	fs.Uint64("swap-amount-in", 0, "exact input amount (base units)")
	fs.Uint64("swap-min-out", 0, "minimum output amount")
	fs.Bool("swap-a-to-b", true, "swap token0 for token1")
	fs.String("swap-sqrt-price-limit", "0", "Q64.64 sqrt price limit, 0 for the protocol extreme")

	fs.Uint64("wrap-sol", 0, "lamports to wrap into the native mint account first")
	fs.Bool("unwrap-sol", false, "close the native mint account last")
}

func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setRPCDefaults(v)
	setComputeDefaults(v)
	setCacheDefaults(v)
	v.SetDefault("log-level", "info")
	v.SetDefault("dex", "raydium")
	v.SetDefault("swap-a-to-b", true)

	// unprefixed names kept for existing .env files
	for key, env := range map[string]string{"rpc": "RPC_URL", "log-level": "LOG_LEVEL"} {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, "-", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env: %w", err)
		}
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("lpctl")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

// Load reads every given config from one viper instance.
func Load(v *viper.Viper, configs ...Config) error {
	for _, c := range configs {
		if err := c.Load(v); err != nil {
			return fmt.Errorf("%s: %w", c.Key(), err)
		}
	}
	return nil
}
