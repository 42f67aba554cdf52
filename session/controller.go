package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"efd/chains"
	"efd/contracts"
	"efd/directory"
	"efd/wallet"
)

// Wallet is the provider surface the controller drives.
type Wallet interface {
	Detect(ctx context.Context) bool
	ChainID(ctx context.Context) (uint64, error)
	Authorized(ctx context.Context) (common.Address, bool, error)
	RequestConnection(ctx context.Context) (common.Address, error)
	Caller() bind.ContractCaller
	Events() <-chan wallet.Event
}

// LoadFunc binds the directory endpoints for a chain. It returns an error
// wrapping contracts.ErrNetworkUnsupported when the chain has no deployment.
type LoadFunc func(chainID uint64, caller bind.ContractCaller) (directory.Endpoints, error)

// ContractLoader is the LoadFunc backed by a deployment registry.
func ContractLoader(reg chains.Registry) LoadFunc {
	return func(chainID uint64, caller bind.ContractCaller) (directory.Endpoints, error) {
		endpoints, err := contracts.Load(reg, chainID, caller)
		if err != nil {
			return nil, err
		}
		return endpoints, nil
	}
}

type Config struct {
	Wallet     Wallet
	Load       LoadFunc
	Normalizer directory.Normalizer
	Log        zerolog.Logger
}

type lane int

const (
	laneNav lane = iota
	laneUser
)

func (l lane) String() string {
	if l == laneUser {
		return "current-user"
	}
	return "navigation"
}

type (
	message interface{}

	navigateMsg struct{ query string }
	refreshMsg  struct{ displayed bool }
	connectMsg  struct{}
	eventMsg    struct{ ev wallet.Event }

	initResult struct {
		epoch      uint64
		canConnect bool
		chainID    uint64
		chainKnown bool
		endpoints  directory.Endpoints
		account    common.Address
		authorized bool
		kind       ErrorKind
		err        error
	}

	connectResult struct {
		epoch   uint64
		seq     uint64
		account common.Address
		err     error
	}

	profileResult struct {
		epoch   uint64
		seq     uint64
		lane    lane
		profile *directory.Profile
		err     error
	}
)

// Controller owns the session state. All transitions happen on the Run
// goroutine; provider and chain work runs in background tasks whose results
// come back through the inbox tagged with the epoch and lane sequence they
// were started under. Results with an outdated tag are dropped.
type Controller struct {
	mu    sync.RWMutex
	state State

	wallet     Wallet
	load       LoadFunc
	normalizer directory.Normalizer
	log        zerolog.Logger

	inbox   chan message
	changes chan State
	done    chan struct{}
	started atomic.Bool

	// owned by the Run goroutine
	ctx      context.Context
	epoch    uint64
	navSeq   uint64
	userSeq  uint64
	connSeq  uint64
	resolver *directory.Resolver

	stale atomic.Uint64
}

func NewController(config Config) *Controller {
	return &Controller{
		wallet:     config.Wallet,
		load:       config.Load,
		normalizer: config.Normalizer,
		log:        config.Log,
		inbox:      make(chan message, 64),
		changes:    make(chan State, 1),
		done:       make(chan struct{}),
	}
}

// Run initializes the session and processes commands until ctx is done.
// It may only be called once.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return errors.New("session controller already running")
	}
	defer close(c.done)

	c.ctx = ctx
	go c.pumpEvents(ctx)
	c.reset("start")

	for {
		select {
		case <-ctx.Done():
			c.log.Debug().Msg("session controller stopped")
			return ctx.Err()
		case msg := <-c.inbox:
			c.handle(msg)
		}
	}
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Changes delivers the latest state after each transition. Intermediate
// states are dropped when the reader falls behind.
func (c *Controller) Changes() <-chan State {
	return c.changes
}

// Stale reports how many background results were discarded as outdated.
func (c *Controller) Stale() uint64 {
	return c.stale.Load()
}

// ConnectWallet asks the wallet for account access.
func (c *Controller) ConnectWallet() {
	c.send(connectMsg{})
}

// NavigateTo displays the profile for an address or name. The most recent
// call wins.
func (c *Controller) NavigateTo(query string) {
	c.send(navigateMsg{query: query})
}

// RefreshCurrentUser re-resolves the connected account's profile.
func (c *Controller) RefreshCurrentUser() {
	c.send(refreshMsg{})
}

// RefreshDisplayedUser re-resolves the displayed profile.
func (c *Controller) RefreshDisplayedUser() {
	c.send(refreshMsg{displayed: true})
}

func (c *Controller) send(msg message) {
	select {
	case c.inbox <- msg:
	case <-c.done:
	}
}

func (c *Controller) pumpEvents(ctx context.Context) {
	events := c.wallet.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.send(eventMsg{ev: ev})
		}
	}
}

func (c *Controller) handle(msg message) {
	switch m := msg.(type) {
	case navigateMsg:
		c.handleNavigate(m.query)
	case refreshMsg:
		c.handleRefresh(m.displayed)
	case connectMsg:
		c.handleConnect()
	case eventMsg:
		c.handleEvent(m.ev)
	case initResult:
		c.handleInit(m)
	case connectResult:
		c.handleConnectResult(m)
	case profileResult:
		c.handleProfile(m)
	}
}

func (c *Controller) commit(next State) {
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()

	select {
	case c.changes <- next:
		return
	default:
	}
	select {
	case <-c.changes:
	default:
	}
	select {
	case c.changes <- next:
	default:
	}
}

func (c *Controller) discard(kind string, epoch, seq uint64) {
	c.stale.Add(1)
	c.log.Debug().
		Str("result", kind).
		Uint64("epoch", epoch).
		Uint64("seq", seq).
		Uint64("current_epoch", c.epoch).
		Msg("discarding stale result")
}

// reset starts a new session: every in-flight result is invalidated and the
// state returns to its initial shape. The last query survives so it can be
// replayed once the new session is ready.
func (c *Controller) reset(reason string) {
	c.epoch++
	c.resolver = nil

	next := State{
		Session:    uuid.NewString(),
		Connection: Unconnected,
		Query:      c.state.Query,
	}
	c.commit(next)
	c.log.Info().Str("reason", reason).Str("session", next.Session).Msg("session reset")

	go c.initialize(c.ctx, c.epoch)
}

func (c *Controller) initialize(ctx context.Context, epoch uint64) {
	res := initResult{epoch: epoch}
	res.canConnect = c.wallet.Detect(ctx)

	chainID, err := c.wallet.ChainID(ctx)
	if err != nil {
		res.kind, res.err = ErrorProviderFault, err
		c.send(res)
		return
	}
	res.chainID, res.chainKnown = chainID, true

	endpoints, err := c.load(chainID, c.wallet.Caller())
	if err != nil {
		res.kind, res.err = ErrorProviderFault, err
		if errors.Is(err, contracts.ErrNetworkUnsupported) {
			res.kind = ErrorNetworkUnsupported
		}
		c.send(res)
		return
	}
	res.endpoints = endpoints

	account, ok, err := c.wallet.Authorized(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("authorized account check failed")
	} else if ok {
		res.account, res.authorized = account, true
	}
	c.send(res)
}

func (c *Controller) handleInit(res initResult) {
	if res.epoch != c.epoch {
		c.discard("init", res.epoch, 0)
		return
	}

	next := c.state
	next.CanConnectWallet = res.canConnect
	next.ChainID, next.NetworkKnown = res.chainID, res.chainKnown

	if res.kind != ErrorNone {
		next = next.withError(res.kind, wallet.ErrorMessage(res.err))
		c.commit(next)
		ev := c.log.Warn()
		if res.kind == ErrorProviderFault {
			ev = c.log.Error()
		}
		ev.Uint64("chain_id", res.chainID).
			Stringer("kind", res.kind).
			Err(res.err).
			Msg("session not ready")
		return
	}

	c.resolver = directory.NewResolver(res.endpoints, c.normalizer)
	next.Ready = true
	if res.authorized {
		next.Connection = Connected
		next.Account = res.account
	}
	c.commit(next)
	c.log.Info().
		Uint64("chain_id", res.chainID).
		Str("network", chains.Name(res.chainID)).
		Bool("wallet", res.canConnect).
		Bool("connected", res.authorized).
		Msg("session ready")

	if res.authorized {
		c.resolveCurrentUser(res.account)
	}
	if next.Query != "" {
		c.startNavigation(next.Query)
	}
}

func (c *Controller) handleNavigate(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}
	if d := c.state.Displayed; d != nil && d.Matches(query) {
		if !c.state.IsLoading {
			c.log.Debug().Str("query", query).Msg("already displayed")
			return
		}
		// Back to the displayed profile while another lookup is running:
		// the pending result is now outdated.
		c.navSeq++
		next := c.state
		next.Query = query
		next.IsLoading = false
		next.NotFound = false
		c.commit(next)
		c.log.Debug().Str("query", query).Msg("pending navigation superseded")
		return
	}
	if c.resolver == nil {
		next := c.state
		next.Query = query
		c.commit(next)
		c.log.Debug().Str("query", query).Msg("session not ready, navigation deferred")
		return
	}
	c.startNavigation(query)
}

func (c *Controller) startNavigation(query string) {
	c.navSeq++
	next := c.state
	next.Query = query
	next.IsLoading = true
	c.commit(next)

	c.spawn(laneNav, c.navSeq, func(ctx context.Context, r *directory.Resolver) (*directory.Profile, error) {
		return r.Resolve(ctx, query)
	})
}

func (c *Controller) resolveCurrentUser(account common.Address) {
	c.userSeq++
	c.spawn(laneUser, c.userSeq, func(ctx context.Context, r *directory.Resolver) (*directory.Profile, error) {
		return r.ResolveByAddress(ctx, account)
	})
}

func (c *Controller) spawn(l lane, seq uint64, fn func(context.Context, *directory.Resolver) (*directory.Profile, error)) {
	ctx, epoch, resolver := c.ctx, c.epoch, c.resolver
	go func() {
		profile, err := fn(ctx, resolver)
		c.send(profileResult{epoch: epoch, seq: seq, lane: l, profile: profile, err: err})
	}()
}

func (c *Controller) handleRefresh(displayed bool) {
	if c.resolver == nil {
		return
	}
	if !displayed {
		if c.state.Connection == Connected {
			c.resolveCurrentUser(c.state.Account)
		}
		return
	}

	d := c.state.Displayed
	if d == nil {
		return
	}
	if c.state.IsLoading {
		c.log.Debug().Str("query", c.state.Query).Msg("navigation pending, refresh skipped")
		return
	}
	c.navSeq++
	address := d.Address()
	c.spawn(laneNav, c.navSeq, func(ctx context.Context, r *directory.Resolver) (*directory.Profile, error) {
		return r.ResolveByAddress(ctx, address)
	})
}

func (c *Controller) handleProfile(res profileResult) {
	current := c.navSeq
	if res.lane == laneUser {
		current = c.userSeq
	}
	if res.epoch != c.epoch || res.seq != current {
		c.discard(res.lane.String(), res.epoch, res.seq)
		return
	}

	next := c.state
	switch res.lane {
	case laneNav:
		next.IsLoading = false
		switch {
		case res.err == nil:
			next.Displayed = res.profile
			next.NotFound = false
			next = next.cleared()
		case errors.Is(res.err, directory.ErrNotFound):
			next.Displayed = nil
			next.NotFound = true
			next = next.cleared()
			c.log.Info().Str("query", next.Query).Msg("profile not found")
		default:
			next = next.withError(ErrorLookupFailed, wallet.ErrorMessage(res.err))
			c.log.Warn().Err(res.err).Str("query", next.Query).Msg("profile lookup failed")
		}
	case laneUser:
		if res.err != nil {
			next = next.withError(ErrorLookupFailed, wallet.ErrorMessage(res.err))
			c.log.Warn().Err(res.err).Msg("current user lookup failed")
			break
		}
		next.CurrentUser = res.profile
		next = next.cleared()
	}
	c.commit(next)
}

func (c *Controller) handleConnect() {
	if !c.state.CanConnectWallet {
		c.log.Warn().Msg("no wallet available to connect")
		return
	}
	if c.state.IsConnectingWallet {
		return
	}

	c.connSeq++
	next := c.state
	next.Connection = Connecting
	next.IsConnectingWallet = true
	c.commit(next)

	ctx, epoch, seq := c.ctx, c.epoch, c.connSeq
	go func() {
		account, err := c.wallet.RequestConnection(ctx)
		c.send(connectResult{epoch: epoch, seq: seq, account: account, err: err})
	}()
}

func (c *Controller) handleConnectResult(res connectResult) {
	if res.epoch != c.epoch || res.seq != c.connSeq {
		c.discard("connect", res.epoch, res.seq)
		return
	}

	next := c.state
	next.IsConnectingWallet = false
	if res.err != nil {
		next.Connection = Unconnected
		if next.Account != (common.Address{}) {
			next.Connection = Connected
		}
		kind := ErrorProviderFault
		if errors.Is(res.err, wallet.ErrConnectionRejected) {
			kind = ErrorConnectionRejected
		}
		next = next.withError(kind, wallet.ErrorMessage(res.err))
		c.commit(next)
		c.log.Warn().Err(res.err).Stringer("kind", kind).Msg("wallet connection failed")
		return
	}

	c.connectAccount(next, res.account)
	c.log.Info().Str("account", res.account.Hex()).Msg("wallet connected")
}

func (c *Controller) connectAccount(next State, account common.Address) {
	if next.Account != account {
		next.CurrentUser = nil
	}
	next.Connection = Connected
	next.Account = account
	c.commit(next.cleared())

	if c.resolver != nil {
		c.resolveCurrentUser(account)
	}
}

func (c *Controller) handleEvent(ev wallet.Event) {
	c.log.Debug().Stringer("event", ev.Kind).Msg("wallet event")

	switch ev.Kind {
	case wallet.EventAccountsChanged:
		if len(ev.Accounts) == 0 {
			c.reset("accounts cleared")
			return
		}
		// supersedes any pending connection request
		c.connSeq++
		next := c.state
		next.IsConnectingWallet = false
		c.connectAccount(next, ev.Accounts[0])
	case wallet.EventChainChanged:
		c.reset("chain changed")
	case wallet.EventDisconnected:
		c.reset("wallet disconnected")
	}
}
