package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpipe/marketpipe/internal/config"
	"github.com/marketpipe/marketpipe/internal/storage/cassandra"
)

type fakeNewsStore struct {
	rows []cassandra.News
	err  error
}

func (f *fakeNewsStore) InsertNews(_ context.Context, n cassandra.News) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, n)
	return nil
}

func TestHandleMessageStoresNewsItems(t *testing.T) {
	store := &fakeNewsStore{}
	n := NewNewsIngester(configNews(), store)

	n.handleMessage(context.Background(), []byte(`{
		"type": "news",
		"data": [
			{"related": "AAPL", "category": "company", "datetime": 1704207000000,
			 "headline": "Apple ships", "id": 7, "source": "wire", "summary": "s", "url": "https://example.com/a"},
			{"related": "AAPL,MSFT", "category": "company", "datetime": 1704207001000,
			 "headline": "Joint venture", "id": 8, "source": "wire", "summary": "s", "url": "https://example.com/b"}
		]
	}`))

	require.Len(t, store.rows, 2)
	assert.Equal(t, "AAPL", store.rows[0].Symbol)
	assert.Equal(t, time.UnixMilli(1704207000000), store.rows[0].Datetime)
	assert.Equal(t, int64(7), store.rows[0].NewsID)
	assert.Equal(t, "AAPL,MSFT", store.rows[1].Symbol, "related list is stored verbatim")
}

func TestHandleMessageIgnoresNonNews(t *testing.T) {
	store := &fakeNewsStore{}
	n := NewNewsIngester(configNews(), store)

	n.handleMessage(context.Background(), []byte(`{"type":"ping"}`))
	n.handleMessage(context.Background(), []byte(`{"type":"trade","data":[]}`))
	n.handleMessage(context.Background(), []byte(`garbage`))

	assert.Empty(t, store.rows)
}

func TestHandleMessageSurvivesInsertFailure(t *testing.T) {
	store := &fakeNewsStore{err: errors.New("unavailable")}
	n := NewNewsIngester(configNews(), store)

	n.handleMessage(context.Background(), []byte(`{
		"type": "news",
		"data": [{"related": "AAPL", "headline": "h", "datetime": 1}]
	}`))
	assert.Empty(t, store.rows)
}

func configNews() config.News {
	return config.News{APIToken: "token", WebSocketHost: "ws.example.com", Tickers: []string{"AAPL"}}
}
