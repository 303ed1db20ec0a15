package cli

import (
	"fmt"

	coreapp "ftree/internal/core/app"
	"ftree/internal/core/config"
	"ftree/internal/core/ports"
)

type serviceFactory interface {
	New(cfg *config.Config) (ports.TreeService, *coreapp.HealthService, error)
}

type coreServiceFactory struct{}

func (coreServiceFactory) New(cfg *config.Config) (ports.TreeService, *coreapp.HealthService, error) {
	app, err := coreapp.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return app, coreapp.NewHealthService(app), nil
}

func initializeService(cfg *config.Config, factory serviceFactory) (ports.TreeService, *coreapp.HealthService, error) {
	if factory == nil {
		return nil, nil, fmt.Errorf("service factory is required")
	}
	return factory.New(cfg)
}
