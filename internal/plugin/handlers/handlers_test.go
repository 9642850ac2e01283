package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"tradehook/internal/config"
	"tradehook/internal/domain"
	"tradehook/internal/plugin"
)

func testDeps(t *testing.T, rawConfig string) plugin.Deps {
	t.Helper()
	cfg := &config.Config{}
	require.NoError(t, yaml.Unmarshal([]byte(rawConfig), cfg))
	return plugin.Deps{
		Config: cfg,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func event(payload string) domain.Event {
	return domain.NewEvent(json.RawMessage(payload))
}

func TestPrint_Run(t *testing.T) {
	h, err := newPrint(testDeps(t, ""))
	require.NoError(t, err)

	assert.NoError(t, h.Run(context.Background(), event(`{"sym":"MNQ"}`)))
	assert.ErrorIs(t, h.Run(context.Background(), domain.Event{}), plugin.ErrNoData)
}

func TestIsMarketOrder(t *testing.T) {
	assert.True(t, isMarketOrder(event(`{"o_type":"market"}`)))
	assert.True(t, isMarketOrder(event(`{"o_type":"Market"}`)))
	assert.True(t, isMarketOrder(event(`{"action":"market_order"}`)))
	assert.False(t, isMarketOrder(event(`{"o_type":"limit"}`)))
	assert.False(t, isMarketOrder(event(`{"action":"close_position"}`)))
}

func TestNewTradovate_RequiresSession(t *testing.T) {
	_, err := newTradovate(testDeps(t, ""))
	assert.Error(t, err)
}

func TestNewNinjaTrader_ConfigValidation(t *testing.T) {
	t.Run("missing block", func(t *testing.T) {
		_, err := newNinjaTrader(testDeps(t, "handlers: [ninjatrader]"))
		assert.Error(t, err)
	})

	t.Run("no accounts", func(t *testing.T) {
		_, err := newNinjaTrader(testDeps(t, `
plugin_config:
  ninjatrader:
    oif_dir: /tmp
`))
		assert.Error(t, err)
	})

	t.Run("missing oif_dir", func(t *testing.T) {
		_, err := newNinjaTrader(testDeps(t, `
plugin_config:
  ninjatrader:
    accounts: [Sim101]
`))
		assert.Error(t, err)
	})
}

func TestNinjaTrader_Run(t *testing.T) {
	dir := t.TempDir()
	deps := testDeps(t, `
plugin_config:
  ninjatrader:
    accounts: [Sim101]
    oif_dir: `+dir+`
    symbol_map:
      MNQ1!: MNQ
`)
	h, err := newNinjaTrader(deps)
	require.NoError(t, err)

	err = h.Run(context.Background(), event(`{"o_type":"market","sym":"MNQ1!","side":"Buy","amount":1,"sig_id":"sig-7"}`))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "oif_0.txt"))
	require.NoError(t, err)
	assert.Equal(t, "PLACE;Sim101;MNQ;BUY;1;MARKET;;;GTC;;sig-7;;\n", string(data))
}

func TestNinjaTrader_SkipsNonMarketSignal(t *testing.T) {
	dir := t.TempDir()
	deps := testDeps(t, `
plugin_config:
  ninjatrader:
    accounts: [Sim101]
    oif_dir: `+dir+`
`)
	h, err := newNinjaTrader(deps)
	require.NoError(t, err)

	// Domain-validation failures are warnings, not errors.
	require.NoError(t, h.Run(context.Background(), event(`{"o_type":"limit","sym":"ES","side":"Buy","amount":1}`)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no instruction file should be written for a skipped signal")
}

func TestFactories_CoverConfiguredNames(t *testing.T) {
	fs := Factories()
	for _, name := range []string{"print", "tradovate", "ninjatrader"} {
		_, ok := fs[name]
		assert.True(t, ok, "factory missing for %q", name)
	}
}
