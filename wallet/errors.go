package wallet

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrNoProvider         = errors.New("no wallet provider")
	ErrConnectionRejected = errors.New("wallet connection rejected")
	ErrBridgeClosed       = errors.New("wallet bridge closed")
)

// CodeUserRejected is the EIP-1193 code for a declined request.
const CodeUserRejected = 4001

// BridgeError is an error object returned by the wallet. It satisfies the
// go-ethereum rpc.Error and rpc.DataError interfaces.
type BridgeError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

func (e *BridgeError) ErrorCode() int { return e.Code }

func (e *BridgeError) ErrorData() interface{} { return e.Data }

var (
	_ rpc.Error     = (*BridgeError)(nil)
	_ rpc.DataError = (*BridgeError)(nil)
)

// ErrorMessage extracts the most specific message from a provider error:
// the message inside the error data when present, the error text otherwise.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var de rpc.DataError
	if errors.As(err, &de) {
		switch data := de.ErrorData().(type) {
		case map[string]interface{}:
			if msg, ok := data["message"].(string); ok && msg != "" {
				return msg
			}
		case string:
			if data != "" {
				return data
			}
		}
	}

	var be *BridgeError
	if errors.As(err, &be) {
		return be.Message
	}
	return err.Error()
}
