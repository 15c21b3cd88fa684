package persistence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	boltdb "github.com/andrew-solarstorm/bolt-db"
	"github.com/bytedance/sonic"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"

	"github.com/hxuan190/lp-engine/internal/domain"
)

const (
	PoolsBucket = "pools"

	DefaultDBPath = "./pool-cache/pools.db"
)

var ErrCacheMismatch = errors.New("cached pool does not match fetched pool")

type StoredToken struct {
	Mint     string `json:"mint"`
	Vault    string `json:"vault"`
	Program  string `json:"program,omitempty"`
	Decimals uint8  `json:"decimals"`
}

// PoolSnapshot is the static part of a pool: what never changes between
// invocations, so the runner can skip mint lookups.
type PoolSnapshot struct {
	Address     string      `json:"address"`
	Protocol    string      `json:"protocol"`
	ProgramID   string      `json:"programId"`
	Token0      StoredToken `json:"token0"`
	Token1      StoredToken `json:"token1"`
	TickSpacing uint16      `json:"tickSpacing,omitempty"`
	BinStep     uint16      `json:"binStep,omitempty"`
	// RewardPrograms maps reward mint to its token program.
	RewardPrograms map[string]string `json:"rewardPrograms,omitempty"`
	Slot           uint64            `json:"slot"`
	UpdatedAt      int64             `json:"updatedAt"`
}

type PoolCache struct {
	db     *boltdb.BoltDatabase
	dbPath string
}

func OpenPoolCache(dbPath string) (*PoolCache, error) {
	if dbPath == "" {
		dbPath = DefaultDBPath
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	db := boltdb.NewBoltDatabase(dbPath)
	if db == nil {
		return nil, fmt.Errorf("failed to open database at %s", dbPath)
	}

	log.Debug().Str("path", dbPath).Msg("[poolCache] opened database")

	return &PoolCache{
		db:     db,
		dbPath: dbPath,
	}, nil
}

func (c *PoolCache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Save stores the pool's static fields. Token programs must already be resolved.
func (c *PoolCache) Save(pool *domain.PoolState, slot uint64) (*PoolSnapshot, error) {
	snap := snapshotOf(pool, slot)
	data, err := sonic.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal pool: %w", err)
	}
	if err := c.db.Set(PoolsBucket, []byte(snap.Address), data); err != nil {
		return nil, fmt.Errorf("failed to store pool %s: %w", snap.Address, err)
	}
	log.Info().Str("pool", snap.Address).Str("protocol", snap.Protocol).Uint64("slot", slot).Msg("[poolCache] saved pool")
	return snap, nil
}

// Load returns the snapshot for address, or false when none is stored.
func (c *PoolCache) Load(address solana.PublicKey) (*PoolSnapshot, bool, error) {
	data, err := c.db.List(PoolsBucket)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list pools: %w", err)
	}
	value, ok := data[address.String()]
	if !ok {
		return nil, false, nil
	}
	var snap PoolSnapshot
	if err := sonic.Unmarshal(value, &snap); err != nil {
		log.Warn().Str("pool", address.String()).Err(err).Msg("[poolCache] failed to unmarshal pool, ignoring")
		return nil, false, nil
	}
	return &snap, true, nil
}

func (c *PoolCache) Count() (int, error) {
	data, err := c.db.List(PoolsBucket)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

func snapshotOf(pool *domain.PoolState, slot uint64) *PoolSnapshot {
	snap := &PoolSnapshot{
		Address:     pool.Address.String(),
		Protocol:    pool.Protocol.String(),
		ProgramID:   pool.ProgramID.String(),
		Token0:      storedToken(pool.Token0),
		Token1:      storedToken(pool.Token1),
		TickSpacing: pool.TickSpacing,
		BinStep:     pool.BinStep,
		Slot:        slot,
		UpdatedAt:   time.Now().Unix(),
	}
	for _, r := range pool.Rewards {
		if r.Program.IsZero() {
			continue
		}
		if snap.RewardPrograms == nil {
			snap.RewardPrograms = make(map[string]string, len(pool.Rewards))
		}
		snap.RewardPrograms[r.Mint.String()] = r.Program.String()
	}
	return snap
}

func storedToken(t domain.TokenInfo) StoredToken {
	st := StoredToken{
		Mint:     t.Mint.String(),
		Vault:    t.Vault.String(),
		Decimals: t.Decimals,
	}
	if !t.Program.IsZero() {
		st.Program = t.Program.String()
	}
	return st
}

// Apply copies token programs and decimals onto a freshly decoded pool. It
// reports whether every mint, reward mints included, was resolved.
func (s *PoolSnapshot) Apply(pool *domain.PoolState) (bool, error) {
	if s.Address != pool.Address.String() || s.Token0.Mint != pool.Token0.Mint.String() || s.Token1.Mint != pool.Token1.Mint.String() {
		return false, fmt.Errorf("%w: %s", ErrCacheMismatch, pool.Address)
	}
	complete := true
	for _, pair := range []struct {
		stored StoredToken
		token  *domain.TokenInfo
	}{{s.Token0, &pool.Token0}, {s.Token1, &pool.Token1}} {
		if pair.stored.Program == "" {
			complete = false
			continue
		}
		program, err := solana.PublicKeyFromBase58(pair.stored.Program)
		if err != nil {
			return false, fmt.Errorf("%w: token program %q", ErrCacheMismatch, pair.stored.Program)
		}
		pair.token.Program = program
		pair.token.Decimals = pair.stored.Decimals
	}
	for i := range pool.Rewards {
		stored, ok := s.RewardPrograms[pool.Rewards[i].Mint.String()]
		if !ok {
			complete = false
			continue
		}
		program, err := solana.PublicKeyFromBase58(stored)
		if err != nil {
			return false, fmt.Errorf("%w: reward program %q", ErrCacheMismatch, stored)
		}
		pool.Rewards[i].Program = program
	}
	return complete, nil
}
