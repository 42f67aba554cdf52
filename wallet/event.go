package wallet

import "github.com/ethereum/go-ethereum/common"

type EventKind int

const (
	EventAccountsChanged EventKind = iota
	EventChainChanged
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventAccountsChanged:
		return "accountsChanged"
	case EventChainChanged:
		return "chainChanged"
	case EventDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Event is a provider notification. It arrives outside of any request.
type Event struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  uint64
}
