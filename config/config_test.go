package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/smacross/internal/domain"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("backtest:\n  instrument: HINDALCO\n"))
	require.NoError(t, err)

	assert.Equal(t, "sma_crossover", cfg.Strategy.Name)
	assert.Equal(t, 10, cfg.Strategy.FastPeriod)
	assert.Equal(t, 100, cfg.Strategy.SlowPeriod)
	assert.Equal(t, 10000.0, cfg.Backtest.StartingBalance)
	assert.Equal(t, "sqlite", cfg.Source.Kind)
	assert.Equal(t, "smacross.db", cfg.Storage.DSN)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())

	rules := cfg.BacktestRules()
	assert.Equal(t, "0.02", rules.StopLossFraction.String())
	assert.Equal(t, "0.05", rules.TakeProfitFraction.String())
	assert.Equal(t, "10000", rules.StartingBalance.String())
}

func TestParse_InvalidValuesAreRejected(t *testing.T) {
	tests := map[string]string{
		"inverted periods":   "strategy:\n  fast_period: 100\n  slow_period: 10\n",
		"negative fast":      "strategy:\n  fast_period: -5\n",
		"negative balance":   "backtest:\n  starting_balance: -100\n",
		"stop-loss above 1":  "backtest:\n  stop_loss_fraction: 1.5\n",
		"take-profit is one": "backtest:\n  take_profit_fraction: 1\n",
		"negative volume":    "backtest:\n  volume: -3\n",
		"negative workers":   "backtest:\n  workers: -1\n",
		"unknown source":     "source:\n  kind: postgres\n",
		"clickhouse no addr": "source:\n  kind: clickhouse\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			cfg, err := Parse([]byte(in))
			require.NoError(t, err)
			assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfiguration)
		})
	}
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("strategy: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\nstorage:\n  dsn: a.db\n"), 0o644))

	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("BACKTEST_DSN", ":memory:")
	t.Setenv("BACKTEST_INSTRUMENT", "TATASTEEL")
	t.Setenv("BACKTEST_STARTING_BALANCE", "2500.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":memory:", cfg.Storage.DSN)
	assert.Equal(t, "TATASTEEL", cfg.Backtest.Instrument)
	assert.Equal(t, "2500.5", cfg.BacktestRules().StartingBalance.String())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestClickHouse(t *testing.T) {
	cfg, err := Parse([]byte("source:\n  kind: clickhouse\n  clickhouse:\n    addr: ch:9000\n    database: market\n"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	ch := cfg.ClickHouse()
	assert.Equal(t, "ch:9000", ch.Addr)
	assert.Equal(t, "market", ch.Database)
	assert.Equal(t, "bars", ch.Table)
}
