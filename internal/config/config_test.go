package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTickerListJSON(t *testing.T) {
	got, err := ParseTickerList(`["AAPL", "MSFT", "GOOGL"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOGL"}, got)
}

func TestParseTickerListCSV(t *testing.T) {
	got, err := ParseTickerList("AAPL, MSFT ,GOOGL")
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT", "GOOGL"}, got)
}

func TestParseTickerListRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "   ", "[not json", `{"a":1}`, "{}", "[]", ",,,", `AAPL,{bad}`, `AAPL,"MSFT"`} {
		_, err := ParseTickerList(raw)
		assert.Error(t, err, "raw=%q", raw)
	}
}

func TestLoadIngestRequiresToken(t *testing.T) {
	t.Setenv("FINNHUB_API_TOKEN_TRADES", "")
	t.Setenv("FINNHUB_STOCKS_TICKERS", "AAPL")
	_, err := LoadIngest()
	assert.ErrorContains(t, err, "FINNHUB_API_TOKEN_TRADES")
}

func TestLoadIngestDefaults(t *testing.T) {
	t.Setenv("FINNHUB_API_TOKEN_TRADES", "tok")
	t.Setenv("FINNHUB_STOCKS_TICKERS", `["AAPL","TSLA"]`)
	t.Setenv("FINNHUB_VALIDATE_TICKERS", "1")

	cfg, err := LoadIngest()
	require.NoError(t, err)
	assert.Equal(t, "market", cfg.KafkaTopic)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers())
	assert.Equal(t, []string{"AAPL", "TSLA"}, cfg.Tickers)
	assert.True(t, cfg.ValidateTickers)
}

func TestLoadProcessorDefaults(t *testing.T) {
	cfg, err := LoadProcessor()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 10, cfg.BatchIntervalSec)
	assert.Equal(t, 300, cfg.PersistIntervalSec)
	assert.Equal(t, "market", cfg.Cassandra.Keyspace)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr())
}

func TestLoadSyncRequiresKey(t *testing.T) {
	t.Setenv("ALPHA_VANTAGE_API_KEY", "")
	_, err := LoadSync()
	assert.ErrorContains(t, err, "ALPHA_VANTAGE_API_KEY")
}

func TestLoadSyncWatchlist(t *testing.T) {
	t.Setenv("ALPHA_VANTAGE_API_KEY", "k")
	t.Setenv("STOCKS_TICKERS", "AAPL,MSFT")
	cfg, err := LoadSync()
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, cfg.Tickers)
	assert.Equal(t, "host=localhost port=5432 dbname=stocks user=postgres password= sslmode=disable", cfg.Postgres.DSN())
}
