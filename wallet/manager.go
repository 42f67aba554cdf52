// Package wallet manages the connection to a user's wallet, or to a read-only
// node when no wallet is available.
package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

type Config struct {
	// BridgeURL is the wallet websocket. Empty means no wallet.
	BridgeURL string

	// FallbackRPCURL serves read-only lookups when no wallet is reachable.
	FallbackRPCURL string

	DialTimeout time.Duration
}

// Manager owns the provider connection. Wallet events from any bridge it
// opens are delivered on Events.
type Manager struct {
	mu sync.Mutex

	config Config
	log    zerolog.Logger

	bridge   *Bridge
	fallback *ethclient.Client

	events chan Event
}

func NewManager(config Config, log zerolog.Logger) *Manager {
	if config.DialTimeout <= 0 {
		config.DialTimeout = 10 * time.Second
	}
	return &Manager{
		config: config,
		log:    log,
		events: make(chan Event, 32),
	}
}

// Detect reports whether a wallet is reachable, reusing a live bridge. When
// it is not, the manager switches to the read-only fallback node.
func (m *Manager) Detect(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bridge != nil {
		if m.bridge.Alive() {
			return true
		}
		m.bridge.Stop()
		m.bridge = nil
	}

	if m.config.BridgeURL != "" {
		b := NewBridge(DefaultBridgeConfig(m.config.BridgeURL), m.log)
		b.OnEvent = m.emit

		dialCtx, cancel := context.WithTimeout(ctx, m.config.DialTimeout)
		err := b.Start(dialCtx)
		cancel()
		if err == nil {
			m.bridge = b
			return true
		}
		m.log.Warn().Err(err).Msg("wallet bridge unavailable, falling back to read-only")
	}

	if m.fallback == nil && m.config.FallbackRPCURL != "" {
		client, err := ethclient.DialContext(ctx, m.config.FallbackRPCURL)
		if err != nil {
			m.log.Error().Err(err).Str("url", m.config.FallbackRPCURL).Msg("read-only node unavailable")
			return false
		}
		m.fallback = client
		m.log.Info().Str("url", m.config.FallbackRPCURL).Msg("using read-only node")
	}
	return false
}

func (m *Manager) active() (*Bridge, *ethclient.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bridge, m.fallback
}

// CanConnect reports whether wallet actions are possible.
func (m *Manager) CanConnect() bool {
	b, _ := m.active()
	return b != nil
}

// Caller returns the handle contract reads go through, or nil before Detect.
func (m *Manager) Caller() bind.ContractCaller {
	b, fb := m.active()
	switch {
	case b != nil:
		return b
	case fb != nil:
		return fb
	default:
		return nil
	}
}

func (m *Manager) ChainID(ctx context.Context) (uint64, error) {
	b, fb := m.active()
	switch {
	case b != nil:
		return b.ChainID(ctx)
	case fb != nil:
		id, err := fb.ChainID(ctx)
		if err != nil {
			return 0, err
		}
		return id.Uint64(), nil
	default:
		return 0, ErrNoProvider
	}
}

// Authorized returns the primary account the wallet has already exposed to
// us. It never prompts.
func (m *Manager) Authorized(ctx context.Context) (common.Address, bool, error) {
	b, _ := m.active()
	if b == nil {
		return common.Address{}, false, nil
	}

	accounts, err := b.Accounts(ctx)
	if err != nil {
		return common.Address{}, false, err
	}
	if len(accounts) == 0 {
		return common.Address{}, false, nil
	}
	return accounts[0], true, nil
}

// RequestConnection prompts the user and returns the primary account.
func (m *Manager) RequestConnection(ctx context.Context) (common.Address, error) {
	b, _ := m.active()
	if b == nil {
		return common.Address{}, ErrNoProvider
	}

	accounts, err := b.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrConnectionRejected, err)
	}
	if len(accounts) == 0 {
		return common.Address{}, fmt.Errorf("%w: no accounts returned", ErrConnectionRejected)
	}
	return accounts[0], nil
}

func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		m.log.Warn().Stringer("event", ev.Kind).Msg("wallet event queue full, dropping")
	}
}

func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.bridge != nil {
		m.bridge.Stop()
		m.bridge = nil
	}
	if m.fallback != nil {
		m.fallback.Close()
		m.fallback = nil
	}
}
