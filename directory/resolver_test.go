package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"efd/ens"
)

type fakeEndpoints struct {
	adj        map[common.Address][]common.Address
	names      map[common.Address]string
	resolvers  map[common.Hash]common.Address
	addrs      map[common.Hash]common.Address
	adjErr     error
	namesErr   error
	addrErr    error
	namesCalls int
	short      bool
}

func newFakeEndpoints() *fakeEndpoints {
	return &fakeEndpoints{
		adj:       make(map[common.Address][]common.Address),
		names:     make(map[common.Address]string),
		resolvers: make(map[common.Hash]common.Address),
		addrs:     make(map[common.Hash]common.Address),
	}
}

func (f *fakeEndpoints) Adjacency(ctx context.Context, user common.Address) ([]common.Address, error) {
	if f.adjErr != nil {
		return nil, f.adjErr
	}
	return f.adj[user], nil
}

func (f *fakeEndpoints) Names(ctx context.Context, addresses []common.Address) ([]string, error) {
	f.namesCalls++
	if f.namesErr != nil {
		return nil, f.namesErr
	}
	out := make([]string, len(addresses))
	for i, a := range addresses {
		out[i] = f.names[a]
	}
	if f.short {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeEndpoints) ResolverOf(ctx context.Context, node common.Hash) (common.Address, error) {
	return f.resolvers[node], nil
}

func (f *fakeEndpoints) AddrOf(ctx context.Context, resolver common.Address, node common.Hash) (common.Address, error) {
	if f.addrErr != nil {
		return common.Address{}, f.addrErr
	}
	return f.addrs[node], nil
}

// tableNormalizer maps listed names and leaves everything else unchanged.
type tableNormalizer map[string]string

func (n tableNormalizer) Normalize(name string) (string, error) {
	if out, ok := n[name]; ok {
		return out, nil
	}
	return name, nil
}

var (
	alice = common.HexToAddress("0xABC0000000000000000000000000000000000001")
	bob   = common.HexToAddress("0xDEF0000000000000000000000000000000000002")
	third = common.HexToAddress("0x1110000000000000000000000000000000000003")
)

func TestResolveByAddressScenario(t *testing.T) {
	ep := newFakeEndpoints()
	ep.adj[alice] = []common.Address{bob, third}
	ep.names[alice] = "alice.eth"
	ep.names[bob] = "bob.eth"

	// alice.eth does not canonicalize to itself, bob.eth does.
	norm := tableNormalizer{"alice.eth": "alice-canonical.eth"}
	r := NewResolver(ep, norm)

	p, err := r.ResolveByAddress(context.Background(), alice)
	if err != nil {
		t.Fatalf("ResolveByAddress failed: %v", err)
	}

	if p.Address() != alice {
		t.Errorf("Expected address %s, got %s", alice.Hex(), p.Address().Hex())
	}
	if p.Hex() != "0xabc0000000000000000000000000000000000001" {
		t.Errorf("Expected lowercase hex, got %s", p.Hex())
	}
	if name, ok := p.Name(); ok {
		t.Errorf("Spoofable name should be dropped, got %q", name)
	}

	friends := p.Friends()
	if len(friends) != 2 {
		t.Fatalf("Expected 2 friends, got %d", len(friends))
	}
	if friends[0].Address != bob || friends[0].Name != "bob.eth" {
		t.Errorf("Unexpected first friend %+v", friends[0])
	}
	if friends[1].Address != third || friends[1].Name != "" {
		t.Errorf("Unexpected second friend %+v", friends[1])
	}
	if ep.namesCalls != 1 {
		t.Errorf("Expected exactly one batched names call, got %d", ep.namesCalls)
	}
}

func TestResolveByAddressPreservesOrder(t *testing.T) {
	ep := newFakeEndpoints()
	var adj []common.Address
	for i := 20; i > 0; i-- {
		adj = append(adj, common.BytesToAddress([]byte{0x42, byte(i)}))
	}
	ep.adj[alice] = adj

	p, err := NewResolver(ep, ens.NewNormalizer()).ResolveByAddress(context.Background(), alice)
	if err != nil {
		t.Fatalf("ResolveByAddress failed: %v", err)
	}
	if p.FriendCount() != len(adj) {
		t.Fatalf("Expected %d friends, got %d", len(adj), p.FriendCount())
	}
	for i, f := range p.Friends() {
		if f.Address != adj[i] {
			t.Errorf("Friend %d: expected %s, got %s", i, adj[i].Hex(), f.Address.Hex())
		}
	}
	if ep.namesCalls != 1 {
		t.Errorf("Expected one names call for %d friends, got %d", len(adj), ep.namesCalls)
	}
}

func TestResolveByAddressRejectsUnnormalizedNames(t *testing.T) {
	ep := newFakeEndpoints()
	ep.adj[alice] = []common.Address{bob}
	ep.names[alice] = "Alice.eth"
	ep.names[bob] = "bob.eth"

	p, err := NewResolver(ep, ens.NewNormalizer()).ResolveByAddress(context.Background(), alice)
	if err != nil {
		t.Fatalf("ResolveByAddress failed: %v", err)
	}
	if name, _ := p.Name(); name == "Alice.eth" {
		t.Error("Unnormalized name must never be attached")
	}
	if p.Friends()[0].Name != "bob.eth" {
		t.Errorf("Canonical friend name should be kept, got %q", p.Friends()[0].Name)
	}
}

func TestResolveByAddressIdempotent(t *testing.T) {
	ep := newFakeEndpoints()
	ep.adj[alice] = []common.Address{bob, third}
	ep.names[bob] = "bob.eth"
	r := NewResolver(ep, ens.NewNormalizer())

	p1, err := r.ResolveByAddress(context.Background(), alice)
	if err != nil {
		t.Fatalf("First resolve failed: %v", err)
	}
	p2, err := r.ResolveByAddress(context.Background(), alice)
	if err != nil {
		t.Fatalf("Second resolve failed: %v", err)
	}
	if p1 == p2 {
		t.Error("Each resolution should build a new Profile")
	}
	if !p1.Equal(p2) {
		t.Error("Profiles should be field-wise equal")
	}
}

func TestResolveByAddressLookupFailed(t *testing.T) {
	ep := newFakeEndpoints()
	ep.adjErr = errors.New("execution reverted")
	r := NewResolver(ep, ens.NewNormalizer())

	if _, err := r.ResolveByAddress(context.Background(), alice); !errors.Is(err, ErrLookupFailed) {
		t.Errorf("Expected ErrLookupFailed, got %v", err)
	}

	ep.adjErr = nil
	ep.namesErr = errors.New("connection refused")
	if _, err := r.ResolveByAddress(context.Background(), alice); !errors.Is(err, ErrLookupFailed) {
		t.Errorf("Expected ErrLookupFailed, got %v", err)
	}

	ep.namesErr = nil
	ep.short = true
	if _, err := r.ResolveByAddress(context.Background(), alice); !errors.Is(err, ErrLookupFailed) {
		t.Errorf("Short names result should be ErrLookupFailed, got %v", err)
	}
}

func TestResolveByName(t *testing.T) {
	ep := newFakeEndpoints()
	node := ens.NameHash("bob.eth")
	ep.resolvers[node] = common.HexToAddress("0x4444444444444444444444444444444444444444")
	ep.addrs[node] = bob
	ep.adj[bob] = []common.Address{alice}
	ep.names[bob] = "bob.eth"
	r := NewResolver(ep, ens.NewNormalizer())

	p, err := r.ResolveByName(context.Background(), "Bob.eth")
	if err != nil {
		t.Fatalf("ResolveByName failed: %v", err)
	}
	if p.Address() != bob {
		t.Errorf("Expected %s, got %s", bob.Hex(), p.Address().Hex())
	}
	if name, _ := p.Name(); name != "bob.eth" {
		t.Errorf("Expected bob.eth, got %q", name)
	}
}

func TestResolveByNameNotFound(t *testing.T) {
	ep := newFakeEndpoints()
	r := NewResolver(ep, ens.NewNormalizer())

	if _, err := r.ResolveByName(context.Background(), "nobody.eth"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Unregistered name should be ErrNotFound, got %v", err)
	}

	node := ens.NameHash("nobody.eth")
	ep.resolvers[node] = common.HexToAddress("0x4444444444444444444444444444444444444444")
	if _, err := r.ResolveByName(context.Background(), "nobody.eth"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolver without address should be ErrNotFound, got %v", err)
	}

	ep.addrErr = errors.New("execution reverted")
	if _, err := r.ResolveByName(context.Background(), "nobody.eth"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Failing resolver should be ErrNotFound, got %v", err)
	}

	if _, err := r.ResolveByName(context.Background(), "foo..eth"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Invalid name should be ErrNotFound, got %v", err)
	}
}

func TestResolveDispatch(t *testing.T) {
	ep := newFakeEndpoints()
	ep.adj[alice] = []common.Address{bob}
	r := NewResolver(ep, ens.NewNormalizer())

	p, err := r.Resolve(context.Background(), "0xabc0000000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if p.Address() != alice {
		t.Errorf("Expected alice, got %s", p.Address().Hex())
	}

	if _, err := r.Resolve(context.Background(), "0x1234"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Malformed address should be ErrNotFound, got %v", err)
	}
}

func TestProfileMatchesAndMutuals(t *testing.T) {
	a := NewProfile(alice, "alice.eth", []Friend{{Address: bob}, {Address: third}})
	b := NewProfile(bob, "", []Friend{{Address: third, Name: "third.eth"}, {Address: alice}})

	if !a.Matches("0xabc0000000000000000000000000000000000001") {
		t.Error("Profile should match its lowercase address")
	}
	if !a.Matches("alice.eth") {
		t.Error("Profile should match its name")
	}
	if b.Matches("") {
		t.Error("Empty query should never match")
	}

	m := Mutuals(a, b)
	if len(m) != 1 || m[0].Address != third {
		t.Errorf("Expected third as the only mutual, got %+v", m)
	}

	friends := a.Friends()
	friends[0].Name = "mallory.eth"
	if a.Friends()[0].Name != "" {
		t.Error("Friends must return a copy")
	}
}
