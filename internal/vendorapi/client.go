// Package vendorapi is the Alpha Vantage client used by the fundamentals
// synchronizer. All calls pass through a sliding-window rate gate sized to
// the vendor's free tier.
package vendorapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketpipe/marketpipe/internal/config"
	"github.com/marketpipe/marketpipe/internal/models"
)

const (
	requestTimeout = 30 * time.Second

	rateLimit  = 5
	rateWindow = time.Minute
)

// Client calls the vendor's query endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	gate       *limiter
}

// NewClient builds a client from the synchronizer configuration.
func NewClient(cfg config.Sync) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/") + "/query",
		apiKey:     cfg.APIKey,
		gate:       newLimiter(rateLimit, rateWindow),
	}
}

// get performs one rate-limited request and returns the raw body.
func (c *Client) get(ctx context.Context, params url.Values) ([]byte, error) {
	c.gate.wait()

	params.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("vendorapi: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vendorapi: %s: %w", params.Get("function"), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vendorapi: %s: status %d", params.Get("function"), resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("vendorapi: %s: read body: %w", params.Get("function"), err)
	}
	return body, nil
}

// getJSON performs one request and decodes the body, mapping the vendor's
// in-band error markers to errors.
func (c *Client) getJSON(ctx context.Context, params url.Values) (map[string]any, error) {
	body, err := c.get(ctx, params)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("vendorapi: %s: decode: %w", params.Get("function"), err)
	}
	if msg, ok := data["Error Message"]; ok {
		return nil, fmt.Errorf("vendorapi: %s: vendor error: %v", params.Get("function"), msg)
	}
	if note, ok := data["Note"]; ok {
		log.Warn().Str("function", params.Get("function")).Msgf("vendor note: %v", note)
		return nil, fmt.Errorf("vendorapi: %s: vendor throttle note", params.Get("function"))
	}
	return data, nil
}

// DailyPrices fetches the daily OHLCV series for one symbol. Rows missing
// any of the four prices are dropped; the result is sorted oldest first.
func (c *Client) DailyPrices(ctx context.Context, symbol, outputSize string) ([]models.DailyPrice, error) {
	symbol = strings.ToUpper(symbol)
	data, err := c.getJSON(ctx, url.Values{
		"function":   {"TIME_SERIES_DAILY"},
		"symbol":     {symbol},
		"outputsize": {outputSize},
	})
	if err != nil {
		return nil, err
	}
	series, ok := data["Time Series (Daily)"].(map[string]any)
	if !ok || len(series) == 0 {
		return nil, fmt.Errorf("vendorapi: TIME_SERIES_DAILY %s: no time series in response", symbol)
	}

	prices := make([]models.DailyPrice, 0, len(series))
	for dateStr, raw := range series {
		values, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		date := safeDate(dateStr)
		if date == nil {
			continue
		}
		p := models.DailyPrice{
			Symbol: symbol,
			Date:   *date,
			Open:   safeFloat(values["1. open"]),
			High:   safeFloat(values["2. high"]),
			Low:    safeFloat(values["3. low"]),
			Close:  safeFloat(values["4. close"]),
			Volume: safeInt(values["5. volume"]),
		}
		if p.Open == nil || p.High == nil || p.Low == nil || p.Close == nil {
			continue
		}
		prices = append(prices, p)
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].Date.Before(prices[j].Date) })

	log.Info().Str("symbol", symbol).Int("rows", len(prices)).Msg("fetched daily prices")
	return prices, nil
}

// StockListings fetches the listing-status CSV and keeps only watchlist
// symbols, stopping early once every watchlist symbol has been seen.
func (c *Client) StockListings(ctx context.Context, watchlist []string) ([]models.StockListing, error) {
	body, err := c.get(ctx, url.Values{"function": {"LISTING_STATUS"}})
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(watchlist))
	for _, s := range watchlist {
		wanted[strings.ToUpper(s)] = true
	}

	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) < 2 {
		return nil, fmt.Errorf("vendorapi: LISTING_STATUS: empty response")
	}
	header := splitCSVLine(lines[0])
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var listings []models.StockListing
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row := splitCSVLine(line)
		if len(row) != len(header) {
			continue
		}
		symbol := field(row, "symbol")
		if !wanted[symbol] {
			continue
		}
		listings = append(listings, models.StockListing{
			Symbol:        symbol,
			Name:          field(row, "name"),
			Exchange:      field(row, "exchange"),
			AssetType:     field(row, "assetType"),
			IPODate:       safeDate(field(row, "ipoDate")),
			DelistingDate: safeDate(field(row, "delistingDate")),
			Status:        field(row, "status"),
		})
		if len(listings) == len(wanted) {
			break
		}
	}

	log.Info().Int("rows", len(listings)).Msg("fetched stock listings")
	return listings, nil
}

func splitCSVLine(line string) []string {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// CompanyOverview fetches the overview record for one symbol. A response
// without a Symbol field means the vendor has no data.
func (c *Client) CompanyOverview(ctx context.Context, symbol string) (*models.CompanyOverview, error) {
	symbol = strings.ToUpper(symbol)
	data, err := c.getJSON(ctx, url.Values{
		"function": {"OVERVIEW"},
		"symbol":   {symbol},
	})
	if err != nil {
		return nil, err
	}
	if stringField(data, "Symbol") == "" {
		return nil, fmt.Errorf("vendorapi: OVERVIEW %s: no data", symbol)
	}

	o := &models.CompanyOverview{
		Symbol:        strings.ToUpper(stringField(data, "Symbol")),
		Description:   safeString(data["Description"]),
		Currency:      safeString(data["Currency"]),
		Country:       safeString(data["Country"]),
		Sector:        safeString(data["Sector"]),
		Industry:      safeString(data["Industry"]),
		Address:       safeString(data["Address"]),
		FiscalYearEnd: safeString(data["FiscalYearEnd"]),
		LatestQuarter: safeDate(data["LatestQuarter"]),

		MarketCapitalization:       safeInt(data["MarketCapitalization"]),
		EBITDA:                     safeInt(data["EBITDA"]),
		PERatio:                    safeFloat(data["PERatio"]),
		PEGRatio:                   safeFloat(data["PEGRatio"]),
		BookValue:                  safeFloat(data["BookValue"]),
		DividendPerShare:           safeFloat(data["DividendPerShare"]),
		DividendYield:              safeFloat(data["DividendYield"]),
		EPS:                        safeFloat(data["EPS"]),
		RevenuePerShareTTM:         safeFloat(data["RevenuePerShareTTM"]),
		ProfitMargin:               safeFloat(data["ProfitMargin"]),
		OperatingMarginTTM:         safeFloat(data["OperatingMarginTTM"]),
		ReturnOnAssetsTTM:          safeFloat(data["ReturnOnAssetsTTM"]),
		ReturnOnEquityTTM:          safeFloat(data["ReturnOnEquityTTM"]),
		RevenueTTM:                 safeInt(data["RevenueTTM"]),
		GrossProfitTTM:             safeInt(data["GrossProfitTTM"]),
		DilutedEPSTTM:              safeFloat(data["DilutedEPSTTM"]),
		QuarterlyEarningsGrowthYOY: safeFloat(data["QuarterlyEarningsGrowthYOY"]),
		QuarterlyRevenueGrowthYOY:  safeFloat(data["QuarterlyRevenueGrowthYOY"]),

		AnalystTargetPrice:   safeFloat(data["AnalystTargetPrice"]),
		TrailingPE:           safeFloat(data["TrailingPE"]),
		ForwardPE:            safeFloat(data["ForwardPE"]),
		PriceToSalesRatioTTM: safeFloat(data["PriceToSalesRatioTTM"]),
		PriceToBookRatio:     safeFloat(data["PriceToBookRatio"]),
		EVToRevenue:          safeFloat(data["EVToRevenue"]),
		EVToEBITDA:           safeFloat(data["EVToEBITDA"]),
		Beta:                 safeFloat(data["Beta"]),

		FiftyTwoWeekHigh:           safeFloat(data["52WeekHigh"]),
		FiftyTwoWeekLow:            safeFloat(data["52WeekLow"]),
		FiftyDayMovingAverage:      safeFloat(data["50DayMovingAverage"]),
		TwoHundredDayMovingAverage: safeFloat(data["200DayMovingAverage"]),

		SharesOutstanding:       safeInt(data["SharesOutstanding"]),
		SharesFloat:             safeInt(data["SharesFloat"]),
		SharesShort:             safeInt(data["SharesShort"]),
		SharesShortPriorMonth:   safeInt(data["SharesShortPriorMonth"]),
		ShortRatio:              safeFloat(data["ShortRatio"]),
		ShortPercentOutstanding: safeFloat(data["ShortPercentOutstanding"]),
		ShortPercentFloat:       safeFloat(data["ShortPercentFloat"]),
		PercentInsiders:         safeFloat(data["PercentInsiders"]),
		PercentInstitutions:     safeFloat(data["PercentInstitutions"]),

		ForwardAnnualDividendRate:  safeFloat(data["ForwardAnnualDividendRate"]),
		ForwardAnnualDividendYield: safeFloat(data["ForwardAnnualDividendYield"]),
		PayoutRatio:                safeFloat(data["PayoutRatio"]),
		DividendDate:               safeDate(data["DividendDate"]),
		ExDividendDate:             safeDate(data["ExDividendDate"]),
		LastSplitFactor:            safeString(data["LastSplitFactor"]),
		LastSplitDate:              safeDate(data["LastSplitDate"]),
	}
	return o, nil
}

// fetchReports pulls one statement endpoint and parses its annual and
// quarterly report lists through parse.
func fetchReports[T any](c *Client, ctx context.Context, function, symbol string,
	parse func(symbol string, quarterly bool, report map[string]any) T) (*models.FinancialReport[T], error) {

	symbol = strings.ToUpper(symbol)
	data, err := c.getJSON(ctx, url.Values{
		"function": {function},
		"symbol":   {symbol},
	})
	if err != nil {
		return nil, err
	}
	if _, ok := data["symbol"]; !ok {
		return nil, fmt.Errorf("vendorapi: %s %s: no data", function, symbol)
	}

	out := &models.FinancialReport[T]{Symbol: symbol}
	for _, r := range reportList(data, "annualReports") {
		out.Annual = append(out.Annual, parse(symbol, false, r))
	}
	for _, r := range reportList(data, "quarterlyReports") {
		out.Quarterly = append(out.Quarterly, parse(symbol, true, r))
	}
	return out, nil
}

func reportList(data map[string]any, key string) []map[string]any {
	raw, _ := data[key].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// IncomeStatements fetches the annual and quarterly income statements.
func (c *Client) IncomeStatements(ctx context.Context, symbol string) (*models.FinancialReport[models.IncomeStatement], error) {
	return fetchReports(c, ctx, "INCOME_STATEMENT", symbol, parseIncomeStatement)
}

// BalanceSheets fetches the annual and quarterly balance sheets.
func (c *Client) BalanceSheets(ctx context.Context, symbol string) (*models.FinancialReport[models.BalanceSheet], error) {
	return fetchReports(c, ctx, "BALANCE_SHEET", symbol, parseBalanceSheet)
}

// CashFlows fetches the annual and quarterly cash flow statements.
func (c *Client) CashFlows(ctx context.Context, symbol string) (*models.FinancialReport[models.CashFlow], error) {
	return fetchReports(c, ctx, "CASH_FLOW", symbol, parseCashFlow)
}

func parseIncomeStatement(symbol string, quarterly bool, r map[string]any) models.IncomeStatement {
	return models.IncomeStatement{
		Symbol:           symbol,
		FiscalDateEnding: safeDate(r["fiscalDateEnding"]),
		ReportedCurrency: safeString(r["reportedCurrency"]),
		IsQuarterly:      quarterly,

		GrossProfit:                       safeInt(r["grossProfit"]),
		TotalRevenue:                      safeInt(r["totalRevenue"]),
		CostOfRevenue:                     safeInt(r["costOfRevenue"]),
		CostOfGoodsAndServicesSold:        safeInt(r["costofGoodsAndServicesSold"]),
		OperatingIncome:                   safeInt(r["operatingIncome"]),
		SellingGeneralAndAdministrative:   safeInt(r["sellingGeneralAndAdministrative"]),
		ResearchAndDevelopment:            safeInt(r["researchAndDevelopment"]),
		OperatingExpenses:                 safeInt(r["operatingExpenses"]),
		InvestmentIncomeNet:               safeInt(r["investmentIncomeNet"]),
		NetInterestIncome:                 safeInt(r["netInterestIncome"]),
		InterestIncome:                    safeInt(r["interestIncome"]),
		InterestExpense:                   safeInt(r["interestExpense"]),
		NonInterestIncome:                 safeInt(r["nonInterestIncome"]),
		OtherNonOperatingIncome:           safeInt(r["otherNonOperatingIncome"]),
		Depreciation:                      safeInt(r["depreciation"]),
		DepreciationAndAmortization:       safeInt(r["depreciationAndAmortization"]),
		IncomeBeforeTax:                   safeInt(r["incomeBeforeTax"]),
		IncomeTaxExpense:                  safeInt(r["incomeTaxExpense"]),
		InterestAndDebtExpense:            safeInt(r["interestAndDebtExpense"]),
		NetIncomeFromContinuingOperations: safeInt(r["netIncomeFromContinuingOperations"]),
		ComprehensiveIncomeNetOfTax:       safeInt(r["comprehensiveIncomeNetOfTax"]),
		EBIT:                              safeInt(r["ebit"]),
		EBITDA:                            safeInt(r["ebitda"]),
		NetIncome:                         safeInt(r["netIncome"]),
	}
}

func parseBalanceSheet(symbol string, quarterly bool, r map[string]any) models.BalanceSheet {
	return models.BalanceSheet{
		Symbol:           symbol,
		FiscalDateEnding: safeDate(r["fiscalDateEnding"]),
		ReportedCurrency: safeString(r["reportedCurrency"]),
		IsQuarterly:      quarterly,

		TotalAssets:                            safeInt(r["totalAssets"]),
		TotalCurrentAssets:                     safeInt(r["totalCurrentAssets"]),
		CashAndCashEquivalentsAtCarryingValue:  safeInt(r["cashAndCashEquivalentsAtCarryingValue"]),
		CashAndShortTermInvestments:            safeInt(r["cashAndShortTermInvestments"]),
		Inventory:                              safeInt(r["inventory"]),
		CurrentNetReceivables:                  safeInt(r["currentNetReceivables"]),
		TotalNonCurrentAssets:                  safeInt(r["totalNonCurrentAssets"]),
		PropertyPlantEquipment:                 safeInt(r["propertyPlantEquipment"]),
		AccumulatedDepreciationAmortizationPPE: safeInt(r["accumulatedDepreciationAmortizationPPE"]),
		IntangibleAssets:                       safeInt(r["intangibleAssets"]),
		IntangibleAssetsExcludingGoodwill:      safeInt(r["intangibleAssetsExcludingGoodwill"]),
		Goodwill:                               safeInt(r["goodwill"]),
		Investments:                            safeInt(r["investments"]),
		LongTermInvestments:                    safeInt(r["longTermInvestments"]),
		ShortTermInvestments:                   safeInt(r["shortTermInvestments"]),
		OtherCurrentAssets:                     safeInt(r["otherCurrentAssets"]),
		OtherNonCurrentAssets:                  safeInt(r["otherNonCurrentAssets"]),
		TotalLiabilities:                       safeInt(r["totalLiabilities"]),
		TotalCurrentLiabilities:                safeInt(r["totalCurrentLiabilities"]),
		CurrentAccountsPayable:                 safeInt(r["currentAccountsPayable"]),
		DeferredRevenue:                        safeInt(r["deferredRevenue"]),
		CurrentDebt:                            safeInt(r["currentDebt"]),
		ShortTermDebt:                          safeInt(r["shortTermDebt"]),
		TotalNonCurrentLiabilities:             safeInt(r["totalNonCurrentLiabilities"]),
		CapitalLeaseObligations:                safeInt(r["capitalLeaseObligations"]),
		LongTermDebt:                           safeInt(r["longTermDebt"]),
		CurrentLongTermDebt:                    safeInt(r["currentLongTermDebt"]),
		LongTermDebtNoncurrent:                 safeInt(r["longTermDebtNoncurrent"]),
		ShortLongTermDebtTotal:                 safeInt(r["shortLongTermDebtTotal"]),
		OtherCurrentLiabilities:                safeInt(r["otherCurrentLiabilities"]),
		OtherNonCurrentLiabilities:             safeInt(r["otherNonCurrentLiabilities"]),
		TotalShareholderEquity:                 safeInt(r["totalShareholderEquity"]),
		TreasuryStock:                          safeInt(r["treasuryStock"]),
		RetainedEarnings:                       safeInt(r["retainedEarnings"]),
		CommonStock:                            safeInt(r["commonStock"]),
		CommonStockSharesOutstanding:           safeInt(r["commonStockSharesOutstanding"]),
	}
}

func parseCashFlow(symbol string, quarterly bool, r map[string]any) models.CashFlow {
	return models.CashFlow{
		Symbol:           symbol,
		FiscalDateEnding: safeDate(r["fiscalDateEnding"]),
		ReportedCurrency: safeString(r["reportedCurrency"]),
		IsQuarterly:      quarterly,

		OperatingCashflow:                     safeInt(r["operatingCashflow"]),
		PaymentsForOperatingActivities:        safeInt(r["paymentsForOperatingActivities"]),
		ProceedsFromOperatingActivities:       safeInt(r["proceedsFromOperatingActivities"]),
		ChangeInOperatingLiabilities:          safeInt(r["changeInOperatingLiabilities"]),
		ChangeInOperatingAssets:               safeInt(r["changeInOperatingAssets"]),
		DepreciationDepletionAndAmortization:  safeInt(r["depreciationDepletionAndAmortization"]),
		CapitalExpenditures:                   safeInt(r["capitalExpenditures"]),
		ChangeInReceivables:                   safeInt(r["changeInReceivables"]),
		ChangeInInventory:                     safeInt(r["changeInInventory"]),
		ProfitLoss:                            safeInt(r["profitLoss"]),
		CashflowFromInvestment:                safeInt(r["cashflowFromInvestment"]),
		CashflowFromFinancing:                 safeInt(r["cashflowFromFinancing"]),
		ProceedsFromRepaymentsOfShortTermDebt: safeInt(r["proceedsFromRepaymentsOfShortTermDebt"]),
		PaymentsForRepurchaseOfCommonStock:    safeInt(r["paymentsForRepurchaseOfCommonStock"]),
		PaymentsForRepurchaseOfEquity:         safeInt(r["paymentsForRepurchaseOfEquity"]),
		PaymentsForRepurchaseOfPreferredStock: safeInt(r["paymentsForRepurchaseOfPreferredStock"]),
		DividendPayout:                        safeInt(r["dividendPayout"]),
		DividendPayoutCommonStock:             safeInt(r["dividendPayoutCommonStock"]),
		DividendPayoutPreferredStock:          safeInt(r["dividendPayoutPreferredStock"]),
		ProceedsFromIssuanceOfCommonStock:     safeInt(r["proceedsFromIssuanceOfCommonStock"]),
		ProceedsFromIssuanceOfLongTermDebtAndCapitalSecurities: safeInt(r["proceedsFromIssuanceOfLongTermDebtAndCapitalSecuritiesNet"]),
		ProceedsFromIssuanceOfPreferredStock:                   safeInt(r["proceedsFromIssuanceOfPreferredStock"]),
		ProceedsFromRepurchaseOfEquity:                         safeInt(r["proceedsFromRepurchaseOfEquity"]),
		ProceedsFromSaleOfTreasuryStock:                        safeInt(r["proceedsFromSaleOfTreasuryStock"]),
		ChangeInCashAndCashEquivalents:                         safeInt(r["changeInCashAndCashEquivalents"]),
		ChangeInExchangeRate:                                   safeInt(r["changeInExchangeRate"]),
		NetIncome:                                              safeInt(r["netIncome"]),
	}
}

// NewsSentiment fetches the news feed for a comma-separated ticker list.
// timeFrom is the vendor's compact timestamp form and may be empty; limit
// caps the feed size.
func (c *Client) NewsSentiment(ctx context.Context, tickers, timeFrom string, limit int) ([]models.NewsArticle, error) {
	params := url.Values{
		"function": {"NEWS_SENTIMENT"},
		"tickers":  {tickers},
		"limit":    {strconv.Itoa(limit)},
	}
	if timeFrom != "" {
		params.Set("time_from", timeFrom)
	}
	data, err := c.getJSON(ctx, params)
	if err != nil {
		return nil, err
	}
	feed, ok := data["feed"].([]any)
	if !ok {
		return nil, fmt.Errorf("vendorapi: NEWS_SENTIMENT %s: no feed in response", tickers)
	}

	articles := make([]models.NewsArticle, 0, len(feed))
	for _, raw := range feed {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		articleURL := stringField(item, "url")
		if articleURL == "" {
			continue
		}
		a := models.NewsArticle{
			Title:                 safeString(item["title"]),
			URL:                   articleURL,
			TimePublished:         safeNewsTime(item["time_published"]),
			Summary:               safeString(item["summary"]),
			Source:                safeString(item["source"]),
			CategoryWithinSource:  safeString(item["category_within_source"]),
			SourceDomain:          safeString(item["source_domain"]),
			OverallSentimentScore: safeFloat(item["overall_sentiment_score"]),
			OverallSentimentLabel: safeString(item["overall_sentiment_label"]),
		}
		if authors, ok := item["authors"].([]any); ok {
			for _, author := range authors {
				if s, ok := author.(string); ok {
					a.Authors = append(a.Authors, s)
				}
			}
		}
		if sentiments, ok := item["ticker_sentiment"].([]any); ok {
			for _, raw := range sentiments {
				ts, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				a.TickerSentiment = append(a.TickerSentiment, models.TickerSentiment{
					Ticker:         stringField(ts, "ticker"),
					RelevanceScore: safeFloat(ts["relevance_score"]),
					SentimentScore: safeFloat(ts["ticker_sentiment_score"]),
					SentimentLabel: safeString(ts["ticker_sentiment_label"]),
				})
			}
		}
		articles = append(articles, a)
	}
	return articles, nil
}
