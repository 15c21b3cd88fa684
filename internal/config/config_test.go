package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/services/priority"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	poolAddr     = "HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ"
	positionMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
)

func load(t *testing.T, args ...string) *Options {
	t.Helper()
	fs := pflag.NewFlagSet("lpctl", pflag.ContinueOnError)
	RegisterGlobalFlags(fs)
	RegisterActionFlags(fs)
	require.NoError(t, fs.Parse(args))
	o, err := LoadOptions(fs)
	require.NoError(t, err)
	return o
}

func TestLoadOptionsDefaults(t *testing.T) {
	t.Setenv("RPC_URL", "")
	o := load(t)

	assert.Equal(t, DefaultRPCURL, o.RPC.URL)
	assert.Equal(t, rpc.CommitmentConfirmed, o.RPC.Commitment)
	assert.Equal(t, 3, o.RPC.MaxAttempts)
	assert.Equal(t, 60*time.Second, o.RPC.ConfirmTimeout)
	assert.Equal(t, uint64(1000), o.Compute.UnitPrice)
	assert.Equal(t, uint32(1_200_000), o.Compute.UnitLimit)
	assert.Equal(t, "raydium", o.Dex)
	assert.True(t, o.SwapAToB)
	assert.Nil(t, o.Lower)
	assert.Nil(t, o.Upper)
}

func TestLoadOptionsPrecedence(t *testing.T) {
	t.Setenv("RPC_URL", "https://from-env.example")
	o := load(t)
	assert.Equal(t, "https://from-env.example", o.RPC.URL)

	t.Setenv("LPCTL_CU_PRICE", "42")
	o = load(t, "--rpc", "https://from-flag.example", "--lower", "-128", "--upper", "0")
	assert.Equal(t, "https://from-flag.example", o.RPC.URL)
	assert.Equal(t, uint64(42), o.Compute.UnitPrice)
	require.NotNil(t, o.Lower)
	assert.Equal(t, int32(-128), *o.Lower)
	assert.Equal(t, int32(0), *o.Upper)
}

func TestLoadOptionsConfigFile(t *testing.T) {
	t.Setenv("RPC_URL", "")
	path := filepath.Join(t.TempDir(), "lpctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dex: orca\ncu-limit: 0\ncu-price-urgency: high\nmax-attempts: 5\n"), 0o600))

	o := load(t, "--config", path)
	assert.Equal(t, "orca", o.Dex)
	assert.Equal(t, uint32(0), o.Compute.UnitLimit)
	assert.Equal(t, priority.UrgencyHigh, o.Compute.Urgency)
	assert.Equal(t, 5, o.RPC.MaxAttempts)
}

func TestLoadOptionsRejects(t *testing.T) {
	for _, args := range [][]string{
		{"--rpc", "ftp://nope"},
		{"--commitment", "recent"},
		{"--cu-limit", "1400001"},
		{"--cu-price-urgency", "asap"},
		{"--max-attempts", "0"},
		{"--log-level", "loud"},
	} {
		fs := pflag.NewFlagSet("lpctl", pflag.ContinueOnError)
		RegisterGlobalFlags(fs)
		RegisterActionFlags(fs)
		require.NoError(t, fs.Parse(args))
		_, err := LoadOptions(fs)
		require.Error(t, err, args)
		assert.Equal(t, common.KindValidation, common.KindOf(err), args)
	}
}

func TestRequest(t *testing.T) {
	o := load(t,
		"--dex", "meteora",
		"--pool", poolAddr, "--price-lower", "0.5", "--price-upper", "2", "--amount0", "10",
		"--remove-position", positionMint, "--close",
		"--wrap-sol", "1000", "--unwrap-sol",
	)
	req, err := o.Request()
	require.NoError(t, err)

	assert.Equal(t, domain.ProtocolMeteora, req.Protocol)
	assert.Nil(t, req.Swap)
	require.NotNil(t, req.Remove)
	assert.True(t, req.Remove.Close)
	assert.Equal(t, poolAddr, req.Remove.Pool.String())
	require.NotNil(t, req.Open)
	assert.True(t, req.Open.Range.HasPrices())
	assert.False(t, req.Open.Range.HasTicks())
	assert.Equal(t, uint64(1000), req.Wrap.Lamports)
	assert.True(t, req.Unwrap.Enabled)
}

func TestRequestSwapIgnoresPositionFlags(t *testing.T) {
	o := load(t,
		"--swap-pool", poolAddr, "--swap-amount-in", "7", "--swap-a-to-b=false",
		"--pool", "not-a-key", "--lower", "10",
		"--remove-position", "also-not-a-key",
		"--wrap-sol", "1000",
	)
	req, err := o.Request()
	require.NoError(t, err)

	require.NotNil(t, req.Swap)
	assert.False(t, req.Swap.AToB)
	assert.Equal(t, uint64(7), req.Swap.AmountIn)
	assert.True(t, req.Swap.SqrtPriceLimitX64.IsZero())
	assert.Nil(t, req.Remove)
	assert.Nil(t, req.Open)
	assert.Equal(t, uint64(1000), req.Wrap.Lamports)
}

func TestRequestRejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
		kind common.Kind
	}{
		{"unknown dex", []string{"--dex", "uniswap"}, common.KindValidation},
		{"bad pool", []string{"--pool", "not-a-key"}, common.KindDerivation},
		{"half tick range", []string{"--pool", poolAddr, "--lower", "10"}, common.KindValidation},
		{"half price range", []string{"--pool", poolAddr, "--price-upper", "3"}, common.KindValidation},
		{"negative price", []string{"--pool", poolAddr, "--price-lower", "-1", "--price-upper", "3"}, common.KindValidation},
		{"limit above u128", []string{"--swap-pool", poolAddr, "--swap-sqrt-price-limit", "340282366920938463463374607431768211456"}, common.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(t, tt.args...).Request()
			require.Error(t, err)
			assert.Equal(t, tt.kind, common.KindOf(err))
		})
	}
}
