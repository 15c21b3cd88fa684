// Package wallet loads the signing keypair.
package wallet

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/hxuan190/lp-engine/internal/common"
)

const EnvPrivateKey = "PRIVATE_KEY_B58"

var (
	ErrNoKey          = errors.New("no signing key: pass --keypair or set " + EnvPrivateKey)
	ErrKeyLength      = errors.New("key must be a 32-byte seed or a 64-byte keypair")
	ErrPublicMismatch = errors.New("keypair public half does not match its seed")
)

// Load resolves the keypair from source, falling back to the environment.
// source is a file path, an inline JSON byte array or base58 text.
func Load(source string) (solana.PrivateKey, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		source = strings.TrimSpace(os.Getenv(EnvPrivateKey))
		if source == "" {
			return nil, common.Validation("load keypair", ErrNoKey)
		}
	}

	key, err := parse(source)
	if err != nil {
		return nil, common.Validation("load keypair", err)
	}
	return key, nil
}

func parse(source string) (solana.PrivateKey, error) {
	if strings.HasPrefix(source, "[") {
		return FromJSON([]byte(source))
	}
	if path, ok := existingFile(source); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read keypair file: %w", err)
		}
		data = bytes.TrimSpace(data)
		if bytes.HasPrefix(data, []byte("[")) {
			return FromJSON(data)
		}
		return FromBase58(string(data))
	}
	return FromBase58(source)
}

// FromJSON reads the Solana CLI keypair format: a JSON array of bytes.
func FromJSON(data []byte) (solana.PrivateKey, error) {
	var values []int
	if err := sonic.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("keypair json: %w", err)
	}
	raw := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("keypair json: byte %d out of range: %d", i, v)
		}
		raw[i] = byte(v)
	}
	return fromBytes(raw)
}

func FromBase58(s string) (solana.PrivateKey, error) {
	raw, err := base58.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("keypair base58: %w", err)
	}
	return fromBytes(raw)
}

func fromBytes(raw []byte) (solana.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return solana.PrivateKey(ed25519.NewKeyFromSeed(raw)), nil
	case ed25519.PrivateKeySize:
		expanded := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !bytes.Equal(expanded[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
			return nil, ErrPublicMismatch
		}
		return solana.PrivateKey(expanded), nil
	default:
		return nil, fmt.Errorf("%w, got %d bytes", ErrKeyLength, len(raw))
	}
}

func existingFile(source string) (string, bool) {
	path := source
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", false
		}
		path = filepath.Join(home, path[2:])
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", false
	}
	return path, true
}
