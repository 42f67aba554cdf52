// Package ens implements the name primitives the directory needs from the
// Ethereum Name Service: label normalization and the EIP-137 namehash.
package ens

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"
)

var ErrInvalidName = errors.New("invalid ens name")

// Normalizer canonicalizes names with UTS-46 mapping followed by NFC.
// It is safe for concurrent use.
type Normalizer struct {
	profile *idna.Profile
}

func NewNormalizer() *Normalizer {
	return &Normalizer{
		profile: idna.New(
			idna.MapForLookup(),
			idna.Transitional(false),
			idna.StrictDomainName(false),
		),
	}
}

// Normalize returns the canonical form of name. A name that is already
// canonical is returned unchanged, which is what reverse-record checks rely on.
func (n *Normalizer) Normalize(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	}

	mapped, err := n.profile.ToUnicode(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidName, name, err)
	}
	mapped = norm.NFC.String(mapped)

	for _, label := range strings.Split(mapped, ".") {
		if label == "" {
			return "", fmt.Errorf("%w: empty label in %q", ErrInvalidName, name)
		}
	}
	return mapped, nil
}

// NameHash computes the EIP-137 node for an already normalized name.
// The empty name hashes to the zero node.
func NameHash(name string) common.Hash {
	var node common.Hash
	if name == "" {
		return node
	}

	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256Hash(node[:], labelHash)
	}
	return node
}

// Hash normalizes name and returns its node.
func (n *Normalizer) Hash(name string) (common.Hash, error) {
	normalized, err := n.Normalize(name)
	if err != nil {
		return common.Hash{}, err
	}
	return NameHash(normalized), nil
}
