// Package chains is the network registry: which friend-directory and ENS
// contracts serve which chain.
package chains

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	_ "embed"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

const (
	ChainIDEthereum uint64 = 1
	ChainIDGoerli   uint64 = 5
	ChainIDSepolia  uint64 = 11155111
	ChainIDHolesky  uint64 = 17000
	ChainIDLocal    uint64 = 31337
)

// Contract names as they appear in deployment maps.
const (
	ContractDirectory      = "EthereumFriendDirectory"
	ContractReverseRecords = "ReverseRecords"
	ContractENSRegistry    = "ENS"
	ContractPublicResolver = "PublicResolver"
)

// Deployment holds the four endpoint addresses for one chain.
type Deployment struct {
	ChainID        uint64
	Directory      common.Address
	ReverseRecords common.Address
	ENSRegistry    common.Address
	PublicResolver common.Address
}

// Registry maps chain id to deployment. A missing key means the network is
// unsupported.
type Registry map[uint64]*Deployment

func (r Registry) Lookup(chainID uint64) (*Deployment, bool) {
	d, ok := r[chainID]
	return d, ok
}

// ChainIDs returns the supported chains in ascending order.
func (r Registry) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Merge returns a registry with other's entries layered over r.
func (r Registry) Merge(other Registry) Registry {
	out := make(Registry, len(r)+len(other))
	for id, d := range r {
		out[id] = d
	}
	for id, d := range other {
		out[id] = d
	}
	return out
}

func Name(chainID uint64) string {
	switch chainID {
	case ChainIDEthereum:
		return "Ethereum"
	case ChainIDGoerli:
		return "Goerli"
	case ChainIDSepolia:
		return "Sepolia"
	case ChainIDHolesky:
		return "Holesky"
	case ChainIDLocal:
		return "Local"
	default:
		return "chain-" + strconv.FormatUint(chainID, 10)
	}
}

//go:embed deployments.json
var embeddedDeployments []byte

// DefaultRegistry returns the built-in deployments.
func DefaultRegistry() Registry {
	reg, err := ParseRegistry(embeddedDeployments)
	if err != nil {
		panic(fmt.Sprintf("chains: embedded deployments: %v", err))
	}
	return reg
}

// LoadRegistry reads a deployment map from path and layers it over the
// built-in deployments.
func LoadRegistry(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployments: %w", err)
	}
	reg, err := ParseRegistry(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return DefaultRegistry().Merge(reg), nil
}

type deploymentMap struct {
	Contracts map[string]map[string][]string `json:"contracts" yaml:"contracts"`
}

// ParseRegistry decodes a deployment map, JSON or YAML:
//
//	{"contracts": {"31337": {"EthereumFriendDirectory": ["0x..."], ...}}}
//
// Address lists are newest first. A chain missing any of the four contracts
// is rejected.
func ParseRegistry(data []byte) (Registry, error) {
	var m deploymentMap
	unmarshal := yaml.Unmarshal
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		unmarshal = json.Unmarshal
	}
	if err := unmarshal(data, &m); err != nil {
		return nil, err
	}

	reg := make(Registry, len(m.Contracts))
	for key, contracts := range m.Contracts {
		chainID, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q: %w", key, err)
		}

		d := &Deployment{ChainID: chainID}
		fields := []struct {
			name string
			dst  *common.Address
		}{
			{ContractDirectory, &d.Directory},
			{ContractReverseRecords, &d.ReverseRecords},
			{ContractENSRegistry, &d.ENSRegistry},
			{ContractPublicResolver, &d.PublicResolver},
		}
		for _, f := range fields {
			addrs := contracts[f.name]
			if len(addrs) == 0 {
				return nil, fmt.Errorf("chain %d: missing %s", chainID, f.name)
			}
			if !common.IsHexAddress(addrs[0]) {
				return nil, fmt.Errorf("chain %d: %s: invalid address %q", chainID, f.name, addrs[0])
			}
			*f.dst = common.HexToAddress(addrs[0])
		}
		reg[chainID] = d
	}
	return reg, nil
}
