package wallet

import (
	"crypto/ed25519"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed() []byte {
	s := make([]byte, ed25519.SeedSize)
	for i := range s {
		s[i] = byte(i + 1)
	}
	return s
}

func jsonArray(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.Itoa(int(v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestLoadEncodings(t *testing.T) {
	full := ed25519.NewKeyFromSeed(seed())
	want := full.Public().(ed25519.PublicKey)

	dir := t.TempDir()
	jsonFile := filepath.Join(dir, "id.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(jsonArray(full)+"\n"), 0o600))
	b58File := filepath.Join(dir, "id.txt")
	require.NoError(t, os.WriteFile(b58File, []byte(base58.Encode(full)), 0o600))

	tests := []struct {
		name   string
		source string
	}{
		{"base58 seed", base58.Encode(seed())},
		{"base58 keypair", base58.Encode(full)},
		{"inline json", jsonArray(full)},
		{"json file", jsonFile},
		{"base58 file", b58File},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := Load(tt.source)
			require.NoError(t, err)
			assert.Equal(t, []byte(want), key.PublicKey().Bytes())
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(EnvPrivateKey, base58.Encode(seed()))
	key, err := Load("")
	require.NoError(t, err)
	assert.Len(t, []byte(key), ed25519.PrivateKeySize)

	t.Setenv(EnvPrivateKey, "")
	_, err = Load("")
	require.ErrorIs(t, err, ErrNoKey)
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}

func TestLoadRejects(t *testing.T) {
	full := ed25519.NewKeyFromSeed(seed())
	tampered := append([]byte(nil), full...)
	tampered[63] ^= 0xff

	_, err := Load(base58.Encode(tampered))
	require.ErrorIs(t, err, ErrPublicMismatch)

	_, err = Load(base58.Encode([]byte{1, 2, 3}))
	require.ErrorIs(t, err, ErrKeyLength)

	_, err = Load("[1,2,300]")
	require.Error(t, err)

	_, err = Load("not-base58-0OIl")
	require.Error(t, err)
	assert.Equal(t, common.KindValidation, common.KindOf(err))
}
