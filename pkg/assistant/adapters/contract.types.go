package adapters

import (
	"time"

	"github.com/google/uuid"
)

type MsgRole string

const (
	USER      MsgRole = "user"
	ASSISTANT MsgRole = "assistant"
	SYSTEM    MsgRole = "system"
)

type ContractMessage struct {
	Role      MsgRole
	Content   string
	CreatedAt time.Time
}

type ContractSelectedModel struct {
	Name    string
	Version string
}

type ContractInput struct {
	ID           uuid.UUID
	Msgs         []ContractMessage
	HandlerModel ContractSelectedModel
}

// ContractResponseDelta is one incremental piece of a streamed completion.
// Content is a delta, not cumulative text. Tokens is only meaningful on the
// Done delta and counts the whole exchange.
type ContractResponseDelta struct {
	Content   string
	Done      bool
	Tokens    int
	Err       error
	CreatedAt time.Time
}

type ContractResponseChannel chan ContractResponseDelta
