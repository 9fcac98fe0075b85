package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricewaze/ingest-cli/internal/adapter"
	"github.com/pricewaze/ingest-cli/internal/model"
)

type stubAdapter struct {
	name    string
	source  model.Source
	enabled bool
}

func (s *stubAdapter) Name() string         { return s.name }
func (s *stubAdapter) Source() model.Source { return s.source }
func (s *stubAdapter) Weight() float64      { return model.WeightFor(s.source) }
func (s *stubAdapter) Enabled() bool        { return s.enabled }

func (s *stubAdapter) GetListings(_ context.Context, _ model.Zone) ([]model.RawProperty, error) {
	return nil, nil
}

func (s *stubAdapter) GetMarketStats(_ context.Context, _ model.Zone) (*adapter.MarketStats, error) {
	return nil, nil
}

func TestFetchCommand_Flags(t *testing.T) {
	for _, flagName := range []string{"zone", "adapter", "market", "dry-run", "update-existing"} {
		flag := fetchCmd.Flags().Lookup(flagName)
		assert.NotNil(t, flag, "fetch should have --%s flag", flagName)
	}
}

func TestFetchTargetsSkipsUserAdapter(t *testing.T) {
	reg := adapter.NewRegistry()
	reg.Register(&stubAdapter{name: "user", source: model.SourceUser, enabled: true})
	reg.Register(&stubAdapter{name: "paid_api", source: model.SourceAPI, enabled: true})
	reg.Register(&stubAdapter{name: "opendata", source: model.SourceOpenData, enabled: true})

	targets, err := fetchTargets(reg, "")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "paid_api", targets[0].Name())
	assert.Equal(t, "opendata", targets[1].Name())
}

func TestFetchTargetsByName(t *testing.T) {
	reg := adapter.NewRegistry()
	reg.Register(&stubAdapter{name: "user", source: model.SourceUser, enabled: true})

	// The user adapter is reachable when named explicitly.
	targets, err := fetchTargets(reg, "user")
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "user", targets[0].Name())

	_, err = fetchTargets(reg, "nope")
	assert.ErrorContains(t, err, "unknown adapter")
}

func TestFetchTargetsNoExternalAdapters(t *testing.T) {
	reg := adapter.NewRegistry()
	reg.Register(&stubAdapter{name: "user", source: model.SourceUser, enabled: true})

	_, err := fetchTargets(reg, "")
	assert.ErrorContains(t, err, "no external adapters")
}

func TestFetchTargetsDisabledAdapter(t *testing.T) {
	reg := adapter.NewRegistry()
	reg.Register(&stubAdapter{name: "paid_api", source: model.SourceAPI, enabled: false})

	_, err := fetchTargets(reg, "paid_api")
	assert.ErrorContains(t, err, "disabled")
}
