// Package sync runs the scheduled fundamentals jobs: each job pulls one or
// more vendor endpoints for the watchlist and bulk-upserts the results into
// the relational store.
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketpipe/marketpipe/internal/config"
	"github.com/marketpipe/marketpipe/internal/models"
)

// Sync job names, dispatched from configuration or the command line.
const (
	TypeDailyPrices = "daily-prices"
	TypeDailyNews   = "daily-news"
	TypeWeekly      = "weekly"
	TypeQuarterly   = "quarterly"
)

// newsFeedLimit caps one daily news pull.
const newsFeedLimit = 200

// VendorClient is the vendor API surface the jobs consume.
type VendorClient interface {
	DailyPrices(ctx context.Context, symbol, outputSize string) ([]models.DailyPrice, error)
	StockListings(ctx context.Context, watchlist []string) ([]models.StockListing, error)
	CompanyOverview(ctx context.Context, symbol string) (*models.CompanyOverview, error)
	IncomeStatements(ctx context.Context, symbol string) (*models.FinancialReport[models.IncomeStatement], error)
	BalanceSheets(ctx context.Context, symbol string) (*models.FinancialReport[models.BalanceSheet], error)
	CashFlows(ctx context.Context, symbol string) (*models.FinancialReport[models.CashFlow], error)
	NewsSentiment(ctx context.Context, tickers, timeFrom string, limit int) ([]models.NewsArticle, error)
}

// Store is the relational side the jobs write to.
type Store interface {
	UpsertDailyPrices(ctx context.Context, prices []models.DailyPrice) error
	UpsertStocks(ctx context.Context, stocks []models.StockListing) error
	UpsertCompanyOverviews(ctx context.Context, overviews []models.CompanyOverview) error
	UpsertIncomeStatements(ctx context.Context, stmts []models.IncomeStatement) error
	UpsertBalanceSheets(ctx context.Context, sheets []models.BalanceSheet) error
	UpsertCashFlows(ctx context.Context, flows []models.CashFlow) error
	UpsertNewsArticles(ctx context.Context, articles []models.NewsArticle) (map[string]int64, error)
	UpsertNewsStocks(ctx context.Context, links []models.NewsStock) error
}

// JobResult counts one job's endpoint outcomes. Errors lists the endpoint
// names that failed.
type JobResult struct {
	SuccessCount int      `json:"success_count"`
	ErrorCount   int      `json:"error_count"`
	Errors       []string `json:"errors"`
}

// Failed reports whether the job should fail the process.
func (r JobResult) Failed() bool { return r.ErrorCount > 0 }

func (r *JobResult) fail(endpoint string) {
	r.ErrorCount++
	r.Errors = append(r.Errors, endpoint)
}

// Report is the JSON summary a sync run prints.
type Report struct {
	SyncType  string    `json:"sync_type"`
	Timestamp string    `json:"timestamp"`
	Results   JobResult `json:"results"`
	Error     string    `json:"error,omitempty"`
}

// Service wires the jobs over a vendor client and a store.
type Service struct {
	client     VendorClient
	store      Store
	symbols    []string
	outputSize string
	now        func() time.Time
}

// New builds a service for the configured watchlist.
func New(cfg config.Sync, client VendorClient, store Store) *Service {
	return &Service{client: client, store: store, symbols: cfg.Tickers, outputSize: "compact", now: time.Now}
}

// FullPrices switches the daily-prices job to the vendor's full history,
// used for first-sync backfills.
func (s *Service) FullPrices() { s.outputSize = "full" }

// Run dispatches one sync job and returns its report. An unknown type or a
// job-level failure is recorded in the report rather than returned.
func (s *Service) Run(ctx context.Context, syncType string) Report {
	report := Report{SyncType: syncType, Timestamp: s.now().Format(time.RFC3339)}
	log.Info().Str("sync_type", syncType).Int("symbols", len(s.symbols)).Msg("starting sync")

	switch syncType {
	case TypeDailyPrices:
		report.Results = s.syncDailyPrices(ctx)
	case TypeDailyNews:
		report.Results = s.syncDailyNews(ctx)
	case TypeWeekly:
		report.Results = s.syncWeekly(ctx)
	case TypeQuarterly:
		report.Results = s.syncQuarterly(ctx)
	default:
		report.Error = fmt.Sprintf("unknown sync type: %q", syncType)
		return report
	}

	log.Info().Str("sync_type", syncType).
		Int("success", report.Results.SuccessCount).
		Int("errors", report.Results.ErrorCount).
		Msg("sync completed")
	return report
}

// syncDailyPrices pulls the daily series for every symbol and upserts all
// rows in one call.
func (s *Service) syncDailyPrices(ctx context.Context) JobResult {
	var result JobResult
	var all []models.DailyPrice
	failed := false

	for _, symbol := range s.symbols {
		prices, err := s.client.DailyPrices(ctx, symbol, s.outputSize)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("daily prices fetch failed")
			failed = true
			continue
		}
		all = append(all, prices...)
	}

	if err := s.store.UpsertDailyPrices(ctx, all); err != nil {
		log.Error().Err(err).Msg("daily prices save failed")
		failed = true
	} else if len(all) > 0 {
		result.SuccessCount++
	}
	if failed {
		result.fail("TIME_SERIES_DAILY")
	}
	return result
}

// syncDailyNews pulls the news feed since yesterday's market-open window
// and writes articles plus their watchlist links.
func (s *Service) syncDailyNews(ctx context.Context) JobResult {
	var result JobResult

	articles, err := s.client.NewsSentiment(ctx, strings.Join(s.symbols, ","), s.newsTimeFrom(), newsFeedLimit)
	if err != nil || len(articles) == 0 {
		log.Error().Err(err).Msg("news fetch failed or empty")
		result.fail("NEWS_SENTIMENT")
		return result
	}

	ids, err := s.store.UpsertNewsArticles(ctx, articles)
	if err != nil {
		log.Error().Err(err).Msg("news articles save failed")
		result.fail("NEWS_SENTIMENT")
		return result
	}

	watch := make(map[string]bool, len(s.symbols))
	for _, symbol := range s.symbols {
		watch[symbol] = true
	}

	var links []models.NewsStock
	for _, a := range articles {
		newsID, ok := ids[a.URL]
		if !ok {
			continue
		}
		for _, ts := range a.TickerSentiment {
			if !watch[ts.Ticker] {
				continue
			}
			links = append(links, models.NewsStock{
				NewsID:         newsID,
				Symbol:         ts.Ticker,
				RelevanceScore: ts.RelevanceScore,
				SentimentScore: ts.SentimentScore,
				SentimentLabel: ts.SentimentLabel,
			})
		}
	}

	if len(links) == 0 {
		result.fail("NEWS_SENTIMENT")
		return result
	}
	if err := s.store.UpsertNewsStocks(ctx, links); err != nil {
		log.Error().Err(err).Msg("news links save failed")
		result.fail("NEWS_SENTIMENT")
		return result
	}
	result.SuccessCount++
	return result
}

// newsTimeFrom renders yesterday 09:00 US Eastern in the vendor's compact
// UTC form.
func (s *Service) newsTimeFrom() string {
	eastern, err := time.LoadLocation("America/New_York")
	if err != nil {
		eastern = time.FixedZone("EST", -5*3600)
	}
	yesterday := s.now().In(eastern).AddDate(0, 0, -1)
	target := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 9, 0, 0, 0, eastern)
	return target.UTC().Format("20060102T1504")
}

// syncWeekly refreshes listings and company overviews.
func (s *Service) syncWeekly(ctx context.Context) JobResult {
	var result JobResult

	listings, err := s.client.StockListings(ctx, s.symbols)
	if err != nil {
		log.Error().Err(err).Msg("listings fetch failed")
		result.fail("LISTING_STATUS")
	} else if err := s.store.UpsertStocks(ctx, listings); err != nil {
		log.Error().Err(err).Msg("listings save failed")
		result.fail("LISTING_STATUS")
	} else if len(listings) > 0 {
		result.SuccessCount++
	}

	var overviews []models.CompanyOverview
	failed := false
	for _, symbol := range s.symbols {
		o, err := s.client.CompanyOverview(ctx, symbol)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Msg("overview fetch failed")
			failed = true
			continue
		}
		overviews = append(overviews, *o)
	}
	if err := s.store.UpsertCompanyOverviews(ctx, overviews); err != nil {
		log.Error().Err(err).Msg("overviews save failed")
		failed = true
	} else if len(overviews) > 0 {
		result.SuccessCount++
	}
	if failed {
		result.fail("OVERVIEW")
	}
	return result
}

// syncQuarterly refreshes the three financial statement families.
func (s *Service) syncQuarterly(ctx context.Context) JobResult {
	var result JobResult

	runEndpoint(ctx, s, &result, "INCOME_STATEMENT", s.client.IncomeStatements, s.store.UpsertIncomeStatements)
	runEndpoint(ctx, s, &result, "BALANCE_SHEET", s.client.BalanceSheets, s.store.UpsertBalanceSheets)
	runEndpoint(ctx, s, &result, "CASH_FLOW", s.client.CashFlows, s.store.UpsertCashFlows)
	return result
}

// runEndpoint fetches one statement endpoint for every symbol, flattens the
// annual and quarterly reports, and upserts them in one call.
func runEndpoint[T any](ctx context.Context, s *Service, result *JobResult, endpoint string,
	fetch func(context.Context, string) (*models.FinancialReport[T], error),
	save func(context.Context, []T) error) {

	var rows []T
	failed := false
	for _, symbol := range s.symbols {
		report, err := fetch(ctx, symbol)
		if err != nil {
			log.Error().Err(err).Str("symbol", symbol).Str("endpoint", endpoint).Msg("statement fetch failed")
			failed = true
			continue
		}
		rows = append(rows, report.Annual...)
		rows = append(rows, report.Quarterly...)
	}

	if err := save(ctx, rows); err != nil {
		log.Error().Err(err).Str("endpoint", endpoint).Msg("statement save failed")
		failed = true
	} else if len(rows) > 0 {
		result.SuccessCount++
	}
	if failed {
		result.fail(endpoint)
	}
}
