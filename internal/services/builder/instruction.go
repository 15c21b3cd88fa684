package builder

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// Instruction is a fully encoded instruction. Encoders return it so callers
// and tests can inspect the name and payload without re-deriving anything.
type Instruction struct {
	Name    string
	Program solana.PublicKey
	Metas   solana.AccountMetaSlice
	Payload []byte
	// Creates is the account this instruction initializes, zero if none.
	Creates solana.PublicKey
}

func (i *Instruction) ProgramID() solana.PublicKey {
	return i.Program
}

func (i *Instruction) Accounts() []*solana.AccountMeta {
	return i.Metas
}

func (i *Instruction) Data() ([]byte, error) {
	return i.Payload, nil
}

func (i *Instruction) String() string {
	return fmt.Sprintf("%s(%s, %d accounts, %d bytes)", i.Name, i.Program, len(i.Metas), len(i.Payload))
}

func Writable(pk solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(pk, true, false)
}

func ReadOnly(pk solana.PublicKey) *solana.AccountMeta {
	return solana.NewAccountMeta(pk, false, false)
}

func Signer(pk solana.PublicKey, writable bool) *solana.AccountMeta {
	return solana.NewAccountMeta(pk, writable, true)
}

// AnchorDiscriminator is sha256("global:<name>")[:8].
func AnchorDiscriminator(name string) [8]byte {
	var out [8]byte
	sum := sha256.Sum256([]byte("global:" + name))
	copy(out[:], sum[:8])
	return out
}

// AccountDiscriminator is sha256("account:<name>")[:8].
func AccountDiscriminator(name string) [8]byte {
	var out [8]byte
	sum := sha256.Sum256([]byte("account:" + name))
	copy(out[:], sum[:8])
	return out
}

// Payload builds little-endian borsh instruction data. The first write error
// sticks and is returned by Bytes.
type Payload struct {
	buf *bytes.Buffer
	enc *bin.Encoder
	err error
}

func NewPayload(discriminator []byte) *Payload {
	buf := new(bytes.Buffer)
	p := &Payload{buf: buf, enc: bin.NewBorshEncoder(buf)}
	if len(discriminator) > 0 {
		p.err = p.enc.WriteBytes(discriminator, false)
	}
	return p
}

// NewAnchorPayload starts a payload with the Anchor discriminator of name.
func NewAnchorPayload(name string) *Payload {
	d := AnchorDiscriminator(name)
	return NewPayload(d[:])
}

func (p *Payload) do(f func() error) *Payload {
	if p.err == nil {
		p.err = f()
	}
	return p
}

func (p *Payload) U8(v uint8) *Payload {
	return p.do(func() error { return p.enc.WriteUint8(v) })
}

func (p *Payload) U16(v uint16) *Payload {
	return p.do(func() error { return p.enc.WriteUint16(v, binary.LittleEndian) })
}

func (p *Payload) I32(v int32) *Payload {
	return p.do(func() error { return p.enc.WriteInt32(v, binary.LittleEndian) })
}

func (p *Payload) U32(v uint32) *Payload {
	return p.do(func() error { return p.enc.WriteUint32(v, binary.LittleEndian) })
}

func (p *Payload) I64(v int64) *Payload {
	return p.do(func() error { return p.enc.WriteInt64(v, binary.LittleEndian) })
}

func (p *Payload) U64(v uint64) *Payload {
	return p.do(func() error { return p.enc.WriteUint64(v, binary.LittleEndian) })
}

// U128 writes the low 128 bits, low word first. Values wider than 128 bits are rejected.
func (p *Payload) U128(v *uint256.Int) *Payload {
	return p.do(func() error {
		if v == nil {
			v = new(uint256.Int)
		}
		if v[2] != 0 || v[3] != 0 {
			return fmt.Errorf("value %s overflows u128", v.Dec())
		}
		if err := p.enc.WriteUint64(v[0], binary.LittleEndian); err != nil {
			return err
		}
		return p.enc.WriteUint64(v[1], binary.LittleEndian)
	})
}

func (p *Payload) Bool(v bool) *Payload {
	return p.do(func() error { return p.enc.WriteBool(v) })
}

// None writes an empty borsh Option.
func (p *Payload) None() *Payload {
	return p.U8(0)
}

// SomeBool writes Option<bool>::Some(v).
func (p *Payload) SomeBool(v bool) *Payload {
	return p.U8(1).Bool(v)
}

// VecLen writes a borsh vector length prefix.
func (p *Payload) VecLen(n int) *Payload {
	return p.U32(uint32(n))
}

func (p *Payload) Bytes() ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.buf.Bytes(), nil
}

// U128ToUint256 converts a decoded u128 field.
func U128ToUint256(v bin.Uint128) *uint256.Int {
	return &uint256.Int{v.Lo, v.Hi, 0, 0}
}

// Uint256ToU128 truncates to the low 128 bits.
func Uint256ToU128(v *uint256.Int) bin.Uint128 {
	if v == nil {
		return bin.Uint128{}
	}
	return bin.Uint128{Lo: v[0], Hi: v[1]}
}
