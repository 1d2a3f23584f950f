package router

import "github.com/xpanvictor/telly/pkg/assistant/adapters"

type AdapterPack struct {
	Adapter      adapters.ContractAdapter
	Name         string
	DefaultModel adapters.ContractSelectedModel
}

type Mux struct {
	RouterPolicy RoutePolicy
	AdapterMap   map[string]AdapterPack
}

// RoutePolicy picks which adapter handles a given input.
type RoutePolicy interface {
	Select(input adapters.ContractInput) string
}
