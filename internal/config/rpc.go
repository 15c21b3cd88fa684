package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const DefaultRPCURL = "https://api.mainnet-beta.solana.com"

type RPCConfig struct {
	URL        string
	Commitment rpc.CommitmentType
	// ReadRetries bounds retries of idempotent reads; submissions never use it.
	ReadRetries    int
	RetryBackoff   time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	MaxAttempts    int
}

func (r *RPCConfig) Key() string {
	return RPC_CONFIG_KEY
}

func registerRPCFlags(fs *pflag.FlagSet) {
	fs.String("rpc", DefaultRPCURL, "RPC endpoint (env RPC_URL)")
	fs.String("commitment", string(rpc.CommitmentConfirmed), "commitment for reads and confirmation (processed|confirmed|finalized)")
	fs.Int("read-retries", 3, "retries for account reads")
	fs.Duration("retry-backoff", 300*time.Millisecond, "initial read retry backoff")
	fs.Duration("confirm-timeout", 60*time.Second, "how long to wait for confirmation per submission")
	fs.Duration("poll-interval", 500*time.Millisecond, "signature status poll interval")
	fs.Int("max-attempts", 3, "submissions allowed, resubmissions after blockhash expiry included")
}

func setRPCDefaults(v *viper.Viper) {
	v.SetDefault("rpc", DefaultRPCURL)
	v.SetDefault("commitment", string(rpc.CommitmentConfirmed))
	v.SetDefault("read-retries", 3)
	v.SetDefault("retry-backoff", 300*time.Millisecond)
	v.SetDefault("confirm-timeout", 60*time.Second)
	v.SetDefault("poll-interval", 500*time.Millisecond)
	v.SetDefault("max-attempts", 3)
}

func (r *RPCConfig) Load(v *viper.Viper) error {
	r.URL = v.GetString("rpc")
	r.Commitment = rpc.CommitmentType(v.GetString("commitment"))
	r.ReadRetries = v.GetInt("read-retries")
	r.RetryBackoff = v.GetDuration("retry-backoff")
	r.ConfirmTimeout = v.GetDuration("confirm-timeout")
	r.PollInterval = v.GetDuration("poll-interval")
	r.MaxAttempts = v.GetInt("max-attempts")
	return r.Validate()
}

func (r *RPCConfig) Validate() error {
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid rpc config: bad url %q", r.URL)
	}
	switch r.Commitment {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return fmt.Errorf("invalid rpc config: commitment %q", r.Commitment)
	}
	if r.ReadRetries < 0 || r.MaxAttempts < 1 {
		return errors.New("invalid rpc config: retries must be >= 0 and attempts >= 1")
	}
	if r.ConfirmTimeout <= 0 || r.PollInterval <= 0 {
		return errors.New("invalid rpc config: timeouts must be positive")
	}
	return nil
}
