package dispatch

import (
	"github.com/hxuan190/lp-engine/internal/common"
	"github.com/hxuan190/lp-engine/internal/domain"
	"github.com/hxuan190/lp-engine/internal/protocol"
	"github.com/hxuan190/lp-engine/internal/protocol/meteora"
	"github.com/hxuan190/lp-engine/internal/protocol/orca"
	"github.com/hxuan190/lp-engine/internal/protocol/raydium"
)

// Registry maps each protocol to its encoder.
type Registry map[domain.Protocol]protocol.PositionProtocol

func NewRegistry(protocols ...protocol.PositionProtocol) Registry {
	r := make(Registry, len(protocols))
	for _, p := range protocols {
		r[p.Kind()] = p
	}
	return r
}

func DefaultRegistry() Registry {
	return NewRegistry(raydium.New(), orca.New(), meteora.New())
}

func (r Registry) Get(kind domain.Protocol) (protocol.PositionProtocol, error) {
	p, ok := r[kind]
	if !ok {
		return nil, common.Validationf("dex", "unsupported protocol %s", kind)
	}
	return p, nil
}
