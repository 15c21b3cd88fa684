package config

import (
	"fmt"

	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/services/priority"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultUnitPrice = 1000
	DefaultUnitLimit = 1_200_000
)

type ComputeConfig struct {
	UnitPrice uint64
	// UnitLimit of zero estimates through simulation.
	UnitLimit uint32
	Margin    float64
	// Urgency other than none prices from recent network fees.
	Urgency priority.Urgency
}

func (c *ComputeConfig) Key() string {
	return COMPUTE_CONFIG_KEY
}

func registerComputeFlags(fs *pflag.FlagSet) {
	fs.Uint64("cu-price", DefaultUnitPrice, "compute unit price in micro-lamports")
	fs.Uint32("cu-limit", DefaultUnitLimit, "compute unit limit, 0 to estimate by simulation")
	fs.Float64("cu-margin", 0.1, "headroom over simulated units when estimating")
	fs.String("cu-price-urgency", "none", "price from recent fees: none, low, medium, high or extreme")
}

func setComputeDefaults(v *viper.Viper) {
	v.SetDefault("cu-price", DefaultUnitPrice)
	v.SetDefault("cu-limit", DefaultUnitLimit)
	v.SetDefault("cu-margin", 0.1)
	v.SetDefault("cu-price-urgency", "none")
}

func (c *ComputeConfig) Load(v *viper.Viper) error {
	c.UnitPrice = v.GetUint64("cu-price")
	c.UnitLimit = v.GetUint32("cu-limit")
	c.Margin = v.GetFloat64("cu-margin")
	urgency, err := priority.ParseUrgency(v.GetString("cu-price-urgency"))
	if err != nil {
		return fmt.Errorf("invalid compute config: %w", err)
	}
	c.Urgency = urgency
	return c.Validate()
}

func (c *ComputeConfig) Validate() error {
	if c.UnitLimit > common.MaxComputeUnits {
		return fmt.Errorf("invalid compute config: cu-limit %d above %d", c.UnitLimit, common.MaxComputeUnits)
	}
	if c.Margin < 0 || c.Margin > 1 {
		return fmt.Errorf("invalid compute config: cu-margin %v outside [0, 1]", c.Margin)
	}
	return nil
}
