package main

import (
	"strings"

	"efd/chains"
	"efd/directory"
	"efd/session"
)

type friendView struct {
	Address string `json:"address" yaml:"address"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	Mutual  bool   `json:"mutual,omitempty" yaml:"mutual,omitempty"`
}

type profileView struct {
	Address string       `json:"address" yaml:"address"`
	Name    string       `json:"name,omitempty" yaml:"name,omitempty"`
	Friends []friendView `json:"friends" yaml:"friends"`
}

type stateView struct {
	Session          string       `json:"session"`
	Connection       string       `json:"connection"`
	Account          string       `json:"account,omitempty"`
	ChainID          uint64       `json:"chainId,omitempty"`
	Network          string       `json:"network,omitempty"`
	Ready            bool         `json:"ready"`
	CanConnectWallet bool         `json:"canConnectWallet"`
	CurrentUser      *profileView `json:"currentUser,omitempty"`
	Displayed        *profileView `json:"displayedUser,omitempty"`
	NotFound         bool         `json:"notFound"`
	Query            string       `json:"query,omitempty"`
	IsLoading        bool         `json:"isLoading"`
	IsConnecting     bool         `json:"isConnectingWallet"`
	Error            string       `json:"error,omitempty"`
	ErrorDetail      string       `json:"errorDetail,omitempty"`
}

// newProfileView flags the friends p shares with viewer, if any.
func newProfileView(p, viewer *directory.Profile) *profileView {
	if p == nil {
		return nil
	}
	mutual := make(map[string]bool)
	if viewer != nil && viewer.Address() != p.Address() {
		for _, f := range directory.Mutuals(viewer, p) {
			mutual[f.Hex()] = true
		}
	}

	name, _ := p.Name()
	view := &profileView{Address: p.Hex(), Name: name, Friends: []friendView{}}
	for _, f := range p.Friends() {
		view.Friends = append(view.Friends, friendView{
			Address: f.Hex(),
			Name:    f.Name,
			Mutual:  mutual[f.Hex()],
		})
	}
	return view
}

func newStateView(s session.State) stateView {
	view := stateView{
		Session:          s.Session,
		Connection:       s.Connection.String(),
		Ready:            s.Ready,
		CanConnectWallet: s.CanConnectWallet,
		CurrentUser:      newProfileView(s.CurrentUser, nil),
		Displayed:        newProfileView(s.Displayed, s.CurrentUser),
		NotFound:         s.NotFound,
		Query:            s.Query,
		IsLoading:        s.IsLoading,
		IsConnecting:     s.IsConnectingWallet,
		ErrorDetail:      s.ErrDetail,
	}
	if s.Connection == session.Connected {
		view.Account = strings.ToLower(s.Account.Hex())
	}
	if s.NetworkKnown {
		view.ChainID = s.ChainID
		view.Network = chains.Name(s.ChainID)
	}
	if s.Err != session.ErrorNone {
		view.Error = s.Err.String()
	}
	return view
}
