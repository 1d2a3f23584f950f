package router

import (
	"context"
	"fmt"
	"time"

	"github.com/xpanvictor/telly/pkg/assistant/adapters"
)

// firstAdapterPolicy routes everything to a fixed adapter name.
type firstAdapterPolicy struct {
	name string
}

func (p *firstAdapterPolicy) Select(adapters.ContractInput) string { return p.name }

// New builds a multiplexer over the given adapters. The first adapter is
// the default route.
func New(ads []adapters.ContractAdapter) (*Mux, error) {
	if len(ads) == 0 {
		return nil, fmt.Errorf("no adapters provided")
	}
	adm := make(map[string]AdapterPack, len(ads))
	for _, ad := range ads {
		adm[ad.Name()] = AdapterPack{Name: ad.Name(), Adapter: ad}
	}
	return &Mux{
		RouterPolicy: &firstAdapterPolicy{name: ads[0].Name()},
		AdapterMap:   adm,
	}, nil
}

// Stream routes the input to an adapter and streams its deltas into ch.
// The mux owns the channel: it is always closed before Stream returns, and
// adapter failures are surfaced as an Err delta so consumers see exactly
// one terminal signal.
func (m *Mux) Stream(ctx context.Context, input adapters.ContractInput, ch adapters.ContractResponseChannel) {
	defer close(ch)

	name := m.RouterPolicy.Select(input)
	pack, ok := m.AdapterMap[name]
	if !ok {
		m.emitErr(ctx, ch, fmt.Errorf("no adapter registered for %q", name))
		return
	}
	if err := pack.Adapter.Process(ctx, input, ch); err != nil {
		m.emitErr(ctx, ch, err)
	}
}

func (m *Mux) emitErr(ctx context.Context, ch adapters.ContractResponseChannel, err error) {
	select {
	case ch <- adapters.ContractResponseDelta{Err: err, CreatedAt: time.Now()}:
	case <-ctx.Done():
	}
}
