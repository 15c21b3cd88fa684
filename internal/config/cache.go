package config

import (
	"errors"

	"github.com/hxuan190/lp-engine/internal/adapters/persistence"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type CacheConfig struct {
	// DBPath is the bolt file holding pool snapshots.
	DBPath string
	// Enabled makes invocations read token programs from cached snapshots.
	Enabled bool
}

func (c *CacheConfig) Key() string {
	return CACHE_CONFIG_KEY
}

func registerCacheFlags(fs *pflag.FlagSet) {
	fs.String("cache-path", persistence.DefaultDBPath, "pool snapshot database")
	fs.Bool("use-cache", false, "take mint token programs from cached pool snapshots")
}

func setCacheDefaults(v *viper.Viper) {
	v.SetDefault("cache-path", persistence.DefaultDBPath)
	v.SetDefault("use-cache", false)
}

func (c *CacheConfig) Load(v *viper.Viper) error {
	c.DBPath = v.GetString("cache-path")
	c.Enabled = v.GetBool("use-cache")
	return c.Validate()
}

func (c *CacheConfig) Validate() error {
	if c.Enabled && c.DBPath == "" {
		return errors.New("invalid cache config: use-cache needs cache-path")
	}
	return nil
}
