package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/summit/config"
)

func TestNewServeCommand(t *testing.T) {
	cmd := NewServeCommand(nil)
	require.NotNil(t, cmd)
	assert.Equal(t, "serve", cmd.Use)
	assert.NotNil(t, cmd.Flags().Lookup("address"))
}

func TestServe_ConfigError(t *testing.T) {
	deps := DefaultServeDeps()
	deps.LoadConfig = func() (*config.Config, error) { return nil, errors.New("bad yaml") }

	_, err := execute(t, NewServeCommand(deps))
	assert.ErrorContains(t, err, "loading configuration")
}

func TestServe_StopsWithContext(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Address = "127.0.0.1:0"
	reg := prometheus.NewRegistry()
	deps := &ServeCommandDeps{Config: cfg, Registry: reg, Gatherer: reg}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := runServe(ctx, deps, cfg)
	assert.NoError(t, err)
}
