package contracts

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const directoryABI = `[
	{"type":"function","name":"getAdj","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],
	 "outputs":[{"name":"","type":"address[]"}]}
]`

const reverseRecordsABI = `[
	{"type":"function","name":"getNames","stateMutability":"view",
	 "inputs":[{"name":"addresses","type":"address[]"}],
	 "outputs":[{"name":"r","type":"string[]"}]}
]`

const ensRegistryABI = `[
	{"type":"function","name":"resolver","stateMutability":"view",
	 "inputs":[{"name":"node","type":"bytes32"}],
	 "outputs":[{"name":"","type":"address"}]}
]`

const publicResolverABI = `[
	{"type":"function","name":"addr","stateMutability":"view",
	 "inputs":[{"name":"node","type":"bytes32"}],
	 "outputs":[{"name":"","type":"address"}]}
]`

var (
	DirectoryABI      = mustParse(directoryABI)
	ReverseRecordsABI = mustParse(reverseRecordsABI)
	ENSRegistryABI    = mustParse(ensRegistryABI)
	PublicResolverABI = mustParse(publicResolverABI)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}
