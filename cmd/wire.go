package main

import (
	"efd/chains"
	"efd/config"
	"efd/ens"
	"efd/logging"
	"efd/session"
	"efd/wallet"
)

// engine holds the long-lived components shared by every command.
type engine struct {
	registry   chains.Registry
	normalizer *ens.Normalizer
	wallet     *wallet.Manager
}

func newEngine(cfg *config.Config) (*engine, error) {
	registry := chains.DefaultRegistry()
	if cfg.Deployments != "" {
		loaded, err := chains.LoadRegistry(cfg.Deployments)
		if err != nil {
			return nil, err
		}
		registry = loaded
	}

	return &engine{
		registry:   registry,
		normalizer: ens.NewNormalizer(),
		wallet:     wallet.NewManager(cfg.Wallet(), logging.WithComponent("wallet")),
	}, nil
}

func (e *engine) controller() *session.Controller {
	return session.NewController(session.Config{
		Wallet:     e.wallet,
		Load:       session.ContractLoader(e.registry),
		Normalizer: e.normalizer,
		Log:        logging.WithComponent("session"),
	})
}

func (e *engine) Close() {
	e.wallet.Close()
}
