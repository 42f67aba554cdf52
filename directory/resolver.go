// Package directory turns addresses and ENS names into friend-directory
// profiles.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"efd/ens"
)

var (
	ErrLookupFailed = errors.New("lookup failed")
	ErrNotFound     = errors.New("not found")
)

// Endpoints is the on-chain surface the resolver reads from.
type Endpoints interface {
	Adjacency(ctx context.Context, user common.Address) ([]common.Address, error)
	Names(ctx context.Context, addresses []common.Address) ([]string, error)
	ResolverOf(ctx context.Context, node common.Hash) (common.Address, error)
	AddrOf(ctx context.Context, resolver common.Address, node common.Hash) (common.Address, error)
}

type Normalizer interface {
	Normalize(name string) (string, error)
}

// Resolver is stateless apart from its read-only dependencies, so one value
// may serve any number of concurrent resolutions. It never retries.
type Resolver struct {
	endpoints  Endpoints
	normalizer Normalizer
}

func NewResolver(endpoints Endpoints, normalizer Normalizer) *Resolver {
	return &Resolver{endpoints: endpoints, normalizer: normalizer}
}

// Resolve treats 0x-prefixed queries as addresses and everything else as a
// name.
func (r *Resolver) Resolve(ctx context.Context, query string) (*Profile, error) {
	query = strings.TrimSpace(query)
	if strings.HasPrefix(query, "0x") || strings.HasPrefix(query, "0X") {
		if !common.IsHexAddress(query) {
			return nil, fmt.Errorf("%w: malformed address %q", ErrNotFound, query)
		}
		return r.ResolveByAddress(ctx, common.HexToAddress(query))
	}
	return r.ResolveByName(ctx, query)
}

// ResolveByAddress loads the friend list of address and names self and
// friends with a single reverse-records call.
func (r *Resolver) ResolveByAddress(ctx context.Context, address common.Address) (*Profile, error) {
	adj, err := r.endpoints.Adjacency(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}

	all := make([]common.Address, 0, len(adj)+1)
	all = append(all, address)
	all = append(all, adj...)

	names, err := r.endpoints.Names(ctx, all)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	if len(names) != len(all) {
		return nil, fmt.Errorf("%w: %d names for %d addresses", ErrLookupFailed, len(names), len(all))
	}

	friends := make([]Friend, len(adj))
	for i, a := range adj {
		friends[i] = Friend{Address: a, Name: r.verified(names[i+1])}
	}
	return NewProfile(address, r.verified(names[0]), friends), nil
}

// ResolveByName follows registry -> resolver -> address, then resolves the
// address. Unregistered names and resolvers that fail or return nothing are
// ErrNotFound; only a failing registry read is ErrLookupFailed.
func (r *Resolver) ResolveByName(ctx context.Context, name string) (*Profile, error) {
	normalized, err := r.normalizer.Normalize(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	node := ens.NameHash(normalized)

	resolver, err := r.endpoints.ResolverOf(ctx, node)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	if resolver == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s has no resolver", ErrNotFound, normalized)
	}

	address, err := r.endpoints.AddrOf(ctx, resolver, node)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, normalized, err)
	}
	if address == (common.Address{}) {
		return nil, fmt.Errorf("%w: %s has no address", ErrNotFound, normalized)
	}

	return r.ResolveByAddress(ctx, address)
}

// verified returns name only when it is its own canonical form.
func (r *Resolver) verified(name string) string {
	if name == "" {
		return ""
	}
	normalized, err := r.normalizer.Normalize(name)
	if err != nil || normalized != name {
		return ""
	}
	return name
}
