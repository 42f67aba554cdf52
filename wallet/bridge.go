package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type BridgeConfig struct {
	URL              string
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
}

func DefaultBridgeConfig(url string) *BridgeConfig {
	return &BridgeConfig{
		URL:              url,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
	}
}

type bridgeRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// bridgeMessage is either a response (ID set) or a notification (Event set).
type bridgeMessage struct {
	ID     uint64          `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *BridgeError    `json:"error,omitempty"`
	Event  string          `json:"event,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Bridge talks to a wallet over a websocket using EIP-1193 style JSON-RPC.
// Requests may be issued concurrently; responses are matched by id.
type Bridge struct {
	mu      sync.Mutex
	writeMu sync.Mutex

	config *BridgeConfig
	conn   *websocket.Conn
	log    zerolog.Logger

	nextID  atomic.Uint64
	pending map[uint64]chan bridgeMessage

	OnEvent func(Event)

	running  bool
	stopping bool
	closed   chan struct{}
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

func NewBridge(config *BridgeConfig, log zerolog.Logger) *Bridge {
	return &Bridge{
		config:  config,
		log:     log,
		pending: make(map[uint64]chan bridgeMessage),
		closed:  make(chan struct{}),
		stopCh:  make(chan struct{}),
	}
}

// Start dials the wallet and begins reading. OnEvent must be set before.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: b.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, b.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial wallet bridge %s: %w", b.config.URL, err)
	}

	b.mu.Lock()
	b.conn = conn
	b.running = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.readLoop()

	if b.config.PingInterval > 0 {
		b.wg.Add(1)
		go b.pingLoop()
	}

	b.log.Info().Str("url", b.config.URL).Msg("wallet bridge connected")
	return nil
}

func (b *Bridge) Stop() {
	b.mu.Lock()
	if !b.running || b.stopping {
		b.mu.Unlock()
		return
	}
	b.stopping = true
	close(b.stopCh)
	conn := b.conn
	b.mu.Unlock()

	conn.Close()
	b.wg.Wait()
}

// Alive reports whether the connection is still open.
func (b *Bridge) Alive() bool {
	b.mu.Lock()
	running := b.running
	b.mu.Unlock()
	if !running {
		return false
	}
	select {
	case <-b.closed:
		return false
	default:
		return true
	}
}

func (b *Bridge) readLoop() {
	defer b.wg.Done()

	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			b.shutdown(err)
			return
		}
		b.processMessage(data)
	}
}

func (b *Bridge) pingLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-b.closed:
			return
		case <-ticker.C:
			deadline := time.Now().Add(b.config.PingInterval / 2)
			if err := b.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				b.log.Debug().Err(err).Msg("wallet bridge ping failed")
			}
		}
	}
}

func (b *Bridge) shutdown(cause error) {
	b.mu.Lock()
	select {
	case <-b.closed:
		b.mu.Unlock()
		return
	default:
	}
	close(b.closed)
	stopping := b.stopping
	b.pending = make(map[uint64]chan bridgeMessage)
	b.mu.Unlock()

	if stopping {
		return
	}
	b.log.Warn().Err(cause).Msg("wallet bridge disconnected")
	b.emit(Event{Kind: EventDisconnected})
}

func (b *Bridge) processMessage(data []byte) {
	var msg bridgeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		b.log.Debug().Err(err).Msg("malformed wallet message")
		return
	}

	if msg.Event != "" {
		b.processEvent(msg)
		return
	}

	b.mu.Lock()
	ch, ok := b.pending[msg.ID]
	delete(b.pending, msg.ID)
	b.mu.Unlock()

	if !ok {
		b.log.Debug().Uint64("id", msg.ID).Msg("response for unknown request")
		return
	}
	ch <- msg
}

func (b *Bridge) processEvent(msg bridgeMessage) {
	switch msg.Event {
	case "accountsChanged":
		var raw []string
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &raw); err != nil {
				b.log.Debug().Err(err).Msg("malformed accountsChanged")
				return
			}
		}
		b.emit(Event{Kind: EventAccountsChanged, Accounts: parseAccounts(raw)})

	case "chainChanged":
		chainID, err := parseChainID(msg.Data)
		if err != nil {
			b.log.Debug().Err(err).Msg("malformed chainChanged")
			return
		}
		b.emit(Event{Kind: EventChainChanged, ChainID: chainID})

	case "disconnect":
		b.emit(Event{Kind: EventDisconnected})

	default:
		b.log.Debug().Str("event", msg.Event).Msg("ignoring wallet event")
	}
}

func (b *Bridge) emit(ev Event) {
	if b.OnEvent != nil {
		b.OnEvent(ev)
	}
}

// Call sends one request and waits for its response or ctx.
func (b *Bridge) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	if params == nil {
		params = []interface{}{}
	}
	id := b.nextID.Add(1)
	ch := make(chan bridgeMessage, 1)

	b.mu.Lock()
	select {
	case <-b.closed:
		b.mu.Unlock()
		return ErrBridgeClosed
	default:
	}
	b.pending[id] = ch
	b.mu.Unlock()

	b.writeMu.Lock()
	err := b.conn.WriteJSON(bridgeRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	b.writeMu.Unlock()
	if err != nil {
		b.forget(id)
		return fmt.Errorf("%s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		b.forget(id)
		return ctx.Err()
	case <-b.closed:
		return fmt.Errorf("%s: %w", method, ErrBridgeClosed)
	case msg := <-ch:
		if msg.Error != nil {
			return msg.Error
		}
		if result == nil || len(msg.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(msg.Result, result); err != nil {
			return fmt.Errorf("%s: decode result: %w", method, err)
		}
		return nil
	}
}

func (b *Bridge) forget(id uint64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// Accounts returns the already-authorized accounts without prompting.
func (b *Bridge) Accounts(ctx context.Context) ([]common.Address, error) {
	var raw []string
	if err := b.Call(ctx, &raw, "eth_accounts"); err != nil {
		return nil, err
	}
	return parseAccounts(raw), nil
}

// RequestAccounts prompts the user.
func (b *Bridge) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var raw []string
	if err := b.Call(ctx, &raw, "eth_requestAccounts"); err != nil {
		return nil, err
	}
	return parseAccounts(raw), nil
}

func (b *Bridge) ChainID(ctx context.Context) (uint64, error) {
	var raw json.RawMessage
	if err := b.Call(ctx, &raw, "eth_chainId"); err != nil {
		return 0, err
	}
	return parseChainID(raw)
}

func toBlockArg(blockNumber *big.Int) string {
	if blockNumber == nil {
		return "latest"
	}
	return hexutil.EncodeBig(blockNumber)
}

// CallContract forwards eth_call so the bridge can back contract bindings.
func (b *Bridge) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	arg := map[string]interface{}{
		"data": hexutil.Bytes(call.Data),
	}
	if call.To != nil {
		arg["to"] = call.To
	}
	if call.From != (common.Address{}) {
		arg["from"] = call.From
	}

	var out hexutil.Bytes
	if err := b.Call(ctx, &out, "eth_call", arg, toBlockArg(blockNumber)); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *Bridge) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	var out hexutil.Bytes
	if err := b.Call(ctx, &out, "eth_getCode", contract, toBlockArg(blockNumber)); err != nil {
		return nil, err
	}
	return out, nil
}

func parseAccounts(raw []string) []common.Address {
	out := make([]common.Address, 0, len(raw))
	for _, s := range raw {
		if common.IsHexAddress(s) {
			out = append(out, common.HexToAddress(s))
		}
	}
	return out
}

// parseChainID accepts a hex quantity string or a plain JSON number.
func parseChainID(data json.RawMessage) (uint64, error) {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		base := 10
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			s, base = s[2:], 16
		}
		n, err := strconv.ParseUint(s, base, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
		}
		return n, nil
	}

	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return 0, fmt.Errorf("invalid chain id %s", string(data))
	}
	return n, nil
}
