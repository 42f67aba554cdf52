// Package contracts binds the friend directory and the ENS contracts it
// depends on, and loads the right set of them for the active chain.
package contracts

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	"efd/chains"
)

var ErrNetworkUnsupported = errors.New("contracts not deployed on this network")

// Directory is the EthereumFriendDirectory contract.
type Directory struct {
	Address  common.Address
	contract *bind.BoundContract
}

func NewDirectory(address common.Address, caller bind.ContractCaller) *Directory {
	return &Directory{
		Address:  address,
		contract: bind.NewBoundContract(address, DirectoryABI, caller, nil, nil),
	}
}

// GetAdj returns the friend list of user in contract order.
func (d *Directory) GetAdj(ctx context.Context, user common.Address) ([]common.Address, error) {
	var out []interface{}
	if err := d.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getAdj", user); err != nil {
		return nil, fmt.Errorf("getAdj(%s): %w", user.Hex(), err)
	}
	return *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address), nil
}

// ReverseRecords batches reverse ENS lookups.
type ReverseRecords struct {
	Address  common.Address
	contract *bind.BoundContract
}

func NewReverseRecords(address common.Address, caller bind.ContractCaller) *ReverseRecords {
	return &ReverseRecords{
		Address:  address,
		contract: bind.NewBoundContract(address, ReverseRecordsABI, caller, nil, nil),
	}
}

// GetNames returns one claimed name per address, "" where none is set.
// The names are not verified.
func (r *ReverseRecords) GetNames(ctx context.Context, addresses []common.Address) ([]string, error) {
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getNames", addresses); err != nil {
		return nil, fmt.Errorf("getNames(%d addresses): %w", len(addresses), err)
	}
	return *abi.ConvertType(out[0], new([]string)).(*[]string), nil
}

type ENSRegistry struct {
	Address  common.Address
	contract *bind.BoundContract
}

func NewENSRegistry(address common.Address, caller bind.ContractCaller) *ENSRegistry {
	return &ENSRegistry{
		Address:  address,
		contract: bind.NewBoundContract(address, ENSRegistryABI, caller, nil, nil),
	}
}

// Resolver returns the resolver registered for node, or the zero address.
func (r *ENSRegistry) Resolver(ctx context.Context, node common.Hash) (common.Address, error) {
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "resolver", [32]byte(node)); err != nil {
		return common.Address{}, fmt.Errorf("resolver(%s): %w", node.Hex(), err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// PublicResolver is bound to the deployment address but is usually
// re-attached to whichever resolver the registry names.
type PublicResolver struct {
	Address  common.Address
	caller   bind.ContractCaller
	contract *bind.BoundContract
}

func NewPublicResolver(address common.Address, caller bind.ContractCaller) *PublicResolver {
	return &PublicResolver{
		Address:  address,
		caller:   caller,
		contract: bind.NewBoundContract(address, PublicResolverABI, caller, nil, nil),
	}
}

// Attach returns the same interface bound to another address.
func (r *PublicResolver) Attach(address common.Address) *PublicResolver {
	return NewPublicResolver(address, r.caller)
}

func (r *PublicResolver) Addr(ctx context.Context, node common.Hash) (common.Address, error) {
	var out []interface{}
	if err := r.contract.Call(&bind.CallOpts{Context: ctx}, &out, "addr", [32]byte(node)); err != nil {
		return common.Address{}, fmt.Errorf("addr(%s) on %s: %w", node.Hex(), r.Address.Hex(), err)
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// Endpoints is the set of handles for one chain.
type Endpoints struct {
	ChainID        uint64
	Directory      *Directory
	ReverseRecords *ReverseRecords
	ENSRegistry    *ENSRegistry
	PublicResolver *PublicResolver
}

// Load binds the deployment registered for chainID. It does no I/O; an
// unknown chain yields ErrNetworkUnsupported.
func Load(reg chains.Registry, chainID uint64, caller bind.ContractCaller) (*Endpoints, error) {
	d, ok := reg.Lookup(chainID)
	if !ok {
		return nil, fmt.Errorf("%w (chain %d)", ErrNetworkUnsupported, chainID)
	}

	return &Endpoints{
		ChainID:        chainID,
		Directory:      NewDirectory(d.Directory, caller),
		ReverseRecords: NewReverseRecords(d.ReverseRecords, caller),
		ENSRegistry:    NewENSRegistry(d.ENSRegistry, caller),
		PublicResolver: NewPublicResolver(d.PublicResolver, caller),
	}, nil
}

func (e *Endpoints) Adjacency(ctx context.Context, user common.Address) ([]common.Address, error) {
	return e.Directory.GetAdj(ctx, user)
}

func (e *Endpoints) Names(ctx context.Context, addresses []common.Address) ([]string, error) {
	return e.ReverseRecords.GetNames(ctx, addresses)
}

func (e *Endpoints) ResolverOf(ctx context.Context, node common.Hash) (common.Address, error) {
	return e.ENSRegistry.Resolver(ctx, node)
}

func (e *Endpoints) AddrOf(ctx context.Context, resolver common.Address, node common.Hash) (common.Address, error) {
	return e.PublicResolver.Attach(resolver).Addr(ctx, node)
}
