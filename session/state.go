package session

import (
	"github.com/ethereum/go-ethereum/common"

	"efd/directory"
)

type ConnectionStatus int

const (
	Unconnected ConnectionStatus = iota
	Connecting
	Connected
)

func (s ConnectionStatus) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// ErrorKind is the single user-facing error a session carries.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	ErrorNetworkUnsupported
	ErrorLookupFailed
	ErrorConnectionRejected
	ErrorProviderFault
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "none"
	case ErrorNetworkUnsupported:
		return "network unsupported"
	case ErrorLookupFailed:
		return "lookup failed"
	case ErrorConnectionRejected:
		return "connection rejected"
	case ErrorProviderFault:
		return "provider fault"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot. The controller builds a new value for
// every transition; profiles inside are shared and never modified.
type State struct {
	Session string

	Connection ConnectionStatus
	Account    common.Address

	ChainID      uint64
	NetworkKnown bool

	Ready            bool
	CanConnectWallet bool

	CurrentUser *directory.Profile
	Displayed   *directory.Profile
	NotFound    bool
	Query       string

	IsLoading          bool
	IsConnectingWallet bool

	Err       ErrorKind
	ErrDetail string
}

func (s State) withError(kind ErrorKind, detail string) State {
	s.Err = kind
	s.ErrDetail = detail
	return s
}

func (s State) cleared() State {
	return s.withError(ErrorNone, "")
}
