package directory

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Friend is one adjacency entry with its verified name, if any.
type Friend struct {
	Address common.Address
	Name    string
}

func (f Friend) Hex() string {
	return strings.ToLower(f.Address.Hex())
}

// Profile is the resolved view of one account. It is never modified after
// construction; refreshing an account builds a new Profile.
type Profile struct {
	address common.Address
	name    string
	friends []Friend
}

func NewProfile(address common.Address, name string, friends []Friend) *Profile {
	return &Profile{
		address: address,
		name:    name,
		friends: append([]Friend(nil), friends...),
	}
}

func (p *Profile) Address() common.Address { return p.address }

// Hex is the canonical lowercase form of the address.
func (p *Profile) Hex() string { return strings.ToLower(p.address.Hex()) }

// Name returns the verified display name.
func (p *Profile) Name() (string, bool) { return p.name, p.name != "" }

// Friends returns a copy of the friend list in on-chain order.
func (p *Profile) Friends() []Friend {
	return append([]Friend(nil), p.friends...)
}

func (p *Profile) FriendCount() int { return len(p.friends) }

// Label is the name when verified, the address otherwise.
func (p *Profile) Label() string {
	if p.name != "" {
		return p.name
	}
	return p.Hex()
}

// Matches reports whether query designates this profile by address or name.
func (p *Profile) Matches(query string) bool {
	if query == "" {
		return false
	}
	if strings.EqualFold(query, p.address.Hex()) {
		return true
	}
	return p.name != "" && query == p.name
}

// Equal compares field-wise.
func (p *Profile) Equal(other *Profile) bool {
	if p == nil || other == nil {
		return p == other
	}
	if p.address != other.address || p.name != other.name || len(p.friends) != len(other.friends) {
		return false
	}
	for i := range p.friends {
		if p.friends[i] != other.friends[i] {
			return false
		}
	}
	return true
}

// Mutuals returns the friends of b that are also friends of a, in b's order.
func Mutuals(a, b *Profile) []Friend {
	if a == nil || b == nil {
		return nil
	}
	known := make(map[common.Address]struct{}, len(a.friends))
	for _, f := range a.friends {
		known[f.Address] = struct{}{}
	}

	var out []Friend
	for _, f := range b.friends {
		if _, ok := known[f.Address]; ok {
			out = append(out, f)
		}
	}
	return out
}
