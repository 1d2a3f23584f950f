package adapters

import "context"

// ContractAdapter streams one completion. Implementations write deltas to
// the channel and return once the backend is done or ctx is cancelled; the
// router owns the channel and closes it, adapters never do.
type ContractAdapter interface {
	Name() string
	Process(ctx context.Context, input ContractInput, ch ContractResponseChannel) error
}
