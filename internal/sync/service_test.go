package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpipe/marketpipe/internal/config"
	"github.com/marketpipe/marketpipe/internal/models"
)

type fakeClient struct {
	prices      map[string][]models.DailyPrice
	priceErr    map[string]error
	listings    []models.StockListing
	listingsErr error
	overviews   map[string]*models.CompanyOverview
	income      map[string]*models.FinancialReport[models.IncomeStatement]
	incomeErr   map[string]error
	balance     map[string]*models.FinancialReport[models.BalanceSheet]
	cashflow    map[string]*models.FinancialReport[models.CashFlow]
	news        []models.NewsArticle
	newsErr     error

	newsTickers  string
	newsTimeFrom string
}

func (f *fakeClient) DailyPrices(_ context.Context, symbol, _ string) ([]models.DailyPrice, error) {
	if err := f.priceErr[symbol]; err != nil {
		return nil, err
	}
	return f.prices[symbol], nil
}

func (f *fakeClient) StockListings(_ context.Context, _ []string) ([]models.StockListing, error) {
	return f.listings, f.listingsErr
}

func (f *fakeClient) CompanyOverview(_ context.Context, symbol string) (*models.CompanyOverview, error) {
	o, ok := f.overviews[symbol]
	if !ok {
		return nil, errors.New("no data")
	}
	return o, nil
}

func (f *fakeClient) IncomeStatements(_ context.Context, symbol string) (*models.FinancialReport[models.IncomeStatement], error) {
	if err := f.incomeErr[symbol]; err != nil {
		return nil, err
	}
	return f.income[symbol], nil
}

func (f *fakeClient) BalanceSheets(_ context.Context, symbol string) (*models.FinancialReport[models.BalanceSheet], error) {
	return f.balance[symbol], nil
}

func (f *fakeClient) CashFlows(_ context.Context, symbol string) (*models.FinancialReport[models.CashFlow], error) {
	return f.cashflow[symbol], nil
}

func (f *fakeClient) NewsSentiment(_ context.Context, tickers, timeFrom string, _ int) ([]models.NewsArticle, error) {
	f.newsTickers = tickers
	f.newsTimeFrom = timeFrom
	return f.news, f.newsErr
}

type fakeStore struct {
	prices    []models.DailyPrice
	stocks    []models.StockListing
	overviews []models.CompanyOverview
	income    []models.IncomeStatement
	balance   []models.BalanceSheet
	cashflow  []models.CashFlow
	articles  []models.NewsArticle
	links     []models.NewsStock

	articleIDs map[string]int64
	pricesErr  error
}

func (f *fakeStore) UpsertDailyPrices(_ context.Context, p []models.DailyPrice) error {
	if f.pricesErr != nil {
		return f.pricesErr
	}
	f.prices = append(f.prices, p...)
	return nil
}

func (f *fakeStore) UpsertStocks(_ context.Context, s []models.StockListing) error {
	f.stocks = append(f.stocks, s...)
	return nil
}

func (f *fakeStore) UpsertCompanyOverviews(_ context.Context, o []models.CompanyOverview) error {
	f.overviews = append(f.overviews, o...)
	return nil
}

func (f *fakeStore) UpsertIncomeStatements(_ context.Context, s []models.IncomeStatement) error {
	f.income = append(f.income, s...)
	return nil
}

func (f *fakeStore) UpsertBalanceSheets(_ context.Context, s []models.BalanceSheet) error {
	f.balance = append(f.balance, s...)
	return nil
}

func (f *fakeStore) UpsertCashFlows(_ context.Context, s []models.CashFlow) error {
	f.cashflow = append(f.cashflow, s...)
	return nil
}

func (f *fakeStore) UpsertNewsArticles(_ context.Context, a []models.NewsArticle) (map[string]int64, error) {
	f.articles = append(f.articles, a...)
	return f.articleIDs, nil
}

func (f *fakeStore) UpsertNewsStocks(_ context.Context, l []models.NewsStock) error {
	f.links = append(f.links, l...)
	return nil
}

func newTestService(client *fakeClient, store *fakeStore, symbols ...string) *Service {
	if len(symbols) == 0 {
		symbols = []string{"AAPL", "MSFT"}
	}
	s := New(config.Sync{Tickers: symbols}, client, store)
	s.now = func() time.Time { return time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC) }
	return s
}

func price(symbol, date string) models.DailyPrice {
	d, _ := time.Parse("2006-01-02", date)
	return models.DailyPrice{Symbol: symbol, Date: d}
}

func TestSyncDailyPrices(t *testing.T) {
	client := &fakeClient{prices: map[string][]models.DailyPrice{
		"AAPL": {price("AAPL", "2024-01-08"), price("AAPL", "2024-01-09")},
		"MSFT": {price("MSFT", "2024-01-09")},
	}}
	store := &fakeStore{}

	report := newTestService(client, store).Run(context.Background(), TypeDailyPrices)
	assert.Empty(t, report.Error)
	assert.Equal(t, 1, report.Results.SuccessCount)
	assert.False(t, report.Results.Failed())
	assert.Len(t, store.prices, 3)
}

func TestSyncDailyPricesPartialFetchFailure(t *testing.T) {
	client := &fakeClient{
		prices:   map[string][]models.DailyPrice{"AAPL": {price("AAPL", "2024-01-09")}},
		priceErr: map[string]error{"MSFT": errors.New("throttled")},
	}
	store := &fakeStore{}

	report := newTestService(client, store).Run(context.Background(), TypeDailyPrices)
	assert.True(t, report.Results.Failed())
	assert.Equal(t, []string{"TIME_SERIES_DAILY"}, report.Results.Errors)
	assert.Len(t, store.prices, 1, "healthy symbols still saved")
}

func TestSyncDailyNewsLinksWatchlistTickersOnly(t *testing.T) {
	client := &fakeClient{news: []models.NewsArticle{
		{
			URL: "https://example.com/a",
			TickerSentiment: []models.TickerSentiment{
				{Ticker: "AAPL", RelevanceScore: ptr(0.9)},
				{Ticker: "TSM", RelevanceScore: ptr(0.5)}, // not on watchlist
			},
		},
		{
			URL: "https://example.com/b",
			TickerSentiment: []models.TickerSentiment{
				{Ticker: "MSFT", SentimentScore: ptr(0.2)},
			},
		},
		{URL: "https://example.com/no-id"},
	}}
	store := &fakeStore{articleIDs: map[string]int64{
		"https://example.com/a": 11,
		"https://example.com/b": 12,
	}}

	report := newTestService(client, store).Run(context.Background(), TypeDailyNews)
	assert.False(t, report.Results.Failed())
	assert.Equal(t, 1, report.Results.SuccessCount)

	assert.Equal(t, "AAPL,MSFT", client.newsTickers)
	assert.Equal(t, "20240109T1400", client.newsTimeFrom, "yesterday 09:00 Eastern in UTC")

	assert.Len(t, store.articles, 3)
	require.Len(t, store.links, 2)
	assert.Equal(t, int64(11), store.links[0].NewsID)
	assert.Equal(t, "AAPL", store.links[0].Symbol)
	assert.Equal(t, int64(12), store.links[1].NewsID)
	assert.Equal(t, "MSFT", store.links[1].Symbol)
}

func TestSyncDailyNewsEmptyFeedFails(t *testing.T) {
	client := &fakeClient{}
	store := &fakeStore{}

	report := newTestService(client, store).Run(context.Background(), TypeDailyNews)
	assert.True(t, report.Results.Failed())
	assert.Equal(t, []string{"NEWS_SENTIMENT"}, report.Results.Errors)
	assert.Empty(t, store.articles)
}

func TestSyncWeekly(t *testing.T) {
	client := &fakeClient{
		listings: []models.StockListing{{Symbol: "AAPL"}, {Symbol: "MSFT"}},
		overviews: map[string]*models.CompanyOverview{
			"AAPL": {Symbol: "AAPL"},
			"MSFT": {Symbol: "MSFT"},
		},
	}
	store := &fakeStore{}

	report := newTestService(client, store).Run(context.Background(), TypeWeekly)
	assert.False(t, report.Results.Failed())
	assert.Equal(t, 2, report.Results.SuccessCount)
	assert.Len(t, store.stocks, 2)
	assert.Len(t, store.overviews, 2)
}

func TestSyncWeeklyListingFailureStillSyncsOverviews(t *testing.T) {
	client := &fakeClient{
		listingsErr: errors.New("unavailable"),
		overviews: map[string]*models.CompanyOverview{
			"AAPL": {Symbol: "AAPL"},
			"MSFT": {Symbol: "MSFT"},
		},
	}
	store := &fakeStore{}

	report := newTestService(client, store).Run(context.Background(), TypeWeekly)
	assert.True(t, report.Results.Failed())
	assert.Equal(t, []string{"LISTING_STATUS"}, report.Results.Errors)
	assert.Equal(t, 1, report.Results.SuccessCount)
	assert.Len(t, store.overviews, 2)
}

func TestSyncQuarterlyFlattensReports(t *testing.T) {
	client := &fakeClient{
		income: map[string]*models.FinancialReport[models.IncomeStatement]{
			"AAPL": {
				Symbol:    "AAPL",
				Annual:    []models.IncomeStatement{{Symbol: "AAPL"}},
				Quarterly: []models.IncomeStatement{{Symbol: "AAPL", IsQuarterly: true}, {Symbol: "AAPL", IsQuarterly: true}},
			},
			"MSFT": {Symbol: "MSFT", Annual: []models.IncomeStatement{{Symbol: "MSFT"}}},
		},
		balance: map[string]*models.FinancialReport[models.BalanceSheet]{
			"AAPL": {Symbol: "AAPL", Annual: []models.BalanceSheet{{Symbol: "AAPL"}}},
			"MSFT": {Symbol: "MSFT"},
		},
		cashflow: map[string]*models.FinancialReport[models.CashFlow]{
			"AAPL": {Symbol: "AAPL", Quarterly: []models.CashFlow{{Symbol: "AAPL", IsQuarterly: true}}},
			"MSFT": {Symbol: "MSFT"},
		},
	}
	store := &fakeStore{}

	report := newTestService(client, store).Run(context.Background(), TypeQuarterly)
	assert.False(t, report.Results.Failed())
	assert.Equal(t, 3, report.Results.SuccessCount)
	assert.Len(t, store.income, 4)
	assert.Len(t, store.balance, 1)
	assert.Len(t, store.cashflow, 1)
}

func TestSyncQuarterlyEndpointFailureIsIsolated(t *testing.T) {
	client := &fakeClient{
		incomeErr: map[string]error{"AAPL": errors.New("throttled"), "MSFT": errors.New("throttled")},
		balance: map[string]*models.FinancialReport[models.BalanceSheet]{
			"AAPL": {Symbol: "AAPL", Annual: []models.BalanceSheet{{Symbol: "AAPL"}}},
			"MSFT": {Symbol: "MSFT"},
		},
		cashflow: map[string]*models.FinancialReport[models.CashFlow]{
			"AAPL": {Symbol: "AAPL", Annual: []models.CashFlow{{Symbol: "AAPL"}}},
			"MSFT": {Symbol: "MSFT"},
		},
	}
	store := &fakeStore{}

	report := newTestService(client, store).Run(context.Background(), TypeQuarterly)
	assert.True(t, report.Results.Failed())
	assert.Equal(t, []string{"INCOME_STATEMENT"}, report.Results.Errors)
	assert.Equal(t, 2, report.Results.SuccessCount)
}

func TestRunUnknownType(t *testing.T) {
	report := newTestService(&fakeClient{}, &fakeStore{}).Run(context.Background(), "hourly")
	assert.Contains(t, report.Error, "unknown sync type")
	assert.Equal(t, "hourly", report.SyncType)
}

func ptr[T any](v T) *T { return &v }
