package main

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"efd/directory"
	"efd/session"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol = common.HexToAddress("0x00000000000000000000000000000000000ca201")
)

type fakeCommands struct {
	mu      sync.Mutex
	calls   []string
	state   session.State
	changes chan session.State
}

func newFakeCommands(state session.State) *fakeCommands {
	return &fakeCommands{state: state, changes: make(chan session.State, 1)}
}

func (f *fakeCommands) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeCommands) recorded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeCommands) ConnectWallet() {
	f.record("connect")
}

func (f *fakeCommands) NavigateTo(query string) {
	f.record("navigate:" + query)
}

func (f *fakeCommands) RefreshCurrentUser() {
	f.record("refresh:current")
}

func (f *fakeCommands) RefreshDisplayedUser() {
	f.record("refresh:displayed")
}

func (f *fakeCommands) Snapshot() session.State {
	return f.state
}

func (f *fakeCommands) Changes() <-chan session.State {
	return f.changes
}

// sampleState has alice signed in and looking at bob; carol is a friend of
// both.
func sampleState() session.State {
	me := directory.NewProfile(alice, "alice.eth", []directory.Friend{
		{Address: bob, Name: "bob.eth"},
		{Address: carol},
	})
	them := directory.NewProfile(bob, "bob.eth", []directory.Friend{
		{Address: alice, Name: "alice.eth"},
		{Address: carol},
	})
	return session.State{
		Session:          "test-session",
		Connection:       session.Connected,
		Account:          alice,
		ChainID:          31337,
		NetworkKnown:     true,
		Ready:            true,
		CanConnectWallet: true,
		CurrentUser:      me,
		Displayed:        them,
		Query:            "bob.eth",
	}
}
