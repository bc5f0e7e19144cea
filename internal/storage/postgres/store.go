// Package postgres is the relational adapter for fundamentals data. Every
// upsert is a paged multi-row INSERT ... ON CONFLICT DO UPDATE executed in
// one transaction: on any failure the whole call rolls back, so partial
// success within a statement is impossible.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/marketpipe/marketpipe/internal/config"
	"github.com/marketpipe/marketpipe/internal/models"
)

// Page sizes per round-trip, matching the width of the row.
const (
	widePageSize   = 500
	narrowPageSize = 1000
)

// Store wraps a Postgres connection pool.
type Store struct {
	db *sqlx.DB
}

// Connect opens and pings the configured database.
func Connect(cfg config.Postgres) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing pool (used by tests).
func New(db *sqlx.DB) *Store { return &Store{db: db} }

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// upsertSpec describes one entity's bulk UPSERT.
type upsertSpec struct {
	table       string
	columns     []string
	conflict    []string
	lastUpdated bool
	pageSize    int
}

// buildQuery renders the paged statement for n rows.
func (u upsertSpec) buildQuery(n int) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(u.table)
	b.WriteString(" (")
	b.WriteString(strings.Join(u.columns, ", "))
	b.WriteString(") VALUES ")
	arg := 1
	for row := 0; row < n; row++ {
		if row > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for col := range u.columns {
			if col > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}
		b.WriteString(")")
	}
	b.WriteString(" ON CONFLICT (")
	b.WriteString(strings.Join(u.conflict, ", "))
	b.WriteString(") DO UPDATE SET ")
	first := true
	for _, col := range u.columns {
		if contains(u.conflict, col) {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false
		b.WriteString(col)
		b.WriteString(" = EXCLUDED.")
		b.WriteString(col)
	}
	if u.lastUpdated {
		b.WriteString(", last_updated = CURRENT_TIMESTAMP")
	}
	return b.String()
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

// bulkUpsert writes all rows in pages of spec.pageSize, inside tx.
func bulkUpsert(ctx context.Context, tx *sqlx.Tx, u upsertSpec, rows [][]any) error {
	for start := 0; start < len(rows); start += u.pageSize {
		end := start + u.pageSize
		if end > len(rows) {
			end = len(rows)
		}
		page := rows[start:end]
		args := make([]any, 0, len(page)*len(u.columns))
		for _, row := range page {
			args = append(args, row...)
		}
		if _, err := tx.ExecContext(ctx, u.buildQuery(len(page)), args...); err != nil {
			return fmt.Errorf("upsert %s rows %d..%d: %w", u.table, start, end, err)
		}
	}
	return nil
}

// inTx wraps fn in one transaction.
func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("postgres: %w (rollback: %v)", err, rbErr)
		}
		return fmt.Errorf("postgres: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

var dailyPricesSpec = upsertSpec{
	table:    "daily_prices",
	columns:  []string{"symbol", "date", "open", "high", "low", "close", "volume"},
	conflict: []string{"symbol", "date"},
	pageSize: narrowPageSize,
}

// UpsertDailyPrices bulk-upserts OHLCV rows.
func (s *Store) UpsertDailyPrices(ctx context.Context, prices []models.DailyPrice) error {
	if len(prices) == 0 {
		return nil
	}
	rows := make([][]any, len(prices))
	for i, p := range prices {
		rows[i] = []any{p.Symbol, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume}
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return bulkUpsert(ctx, tx, dailyPricesSpec, rows)
	})
}

var stocksSpec = upsertSpec{
	table:       "stocks",
	columns:     []string{"symbol", "name", "exchange", "asset_type", "ipo_date", "delisting_date", "status"},
	conflict:    []string{"symbol"},
	lastUpdated: true,
	pageSize:    narrowPageSize,
}

// UpsertStocks bulk-upserts listing rows.
func (s *Store) UpsertStocks(ctx context.Context, stocks []models.StockListing) error {
	if len(stocks) == 0 {
		return nil
	}
	rows := make([][]any, len(stocks))
	for i, st := range stocks {
		rows[i] = []any{st.Symbol, st.Name, st.Exchange, st.AssetType, st.IPODate, st.DelistingDate, st.Status}
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return bulkUpsert(ctx, tx, stocksSpec, rows)
	})
}

var companyOverviewSpec = upsertSpec{
	table: "company_overview",
	columns: []string{
		"symbol", "description", "currency", "country", "sector", "industry", "address",
		"fiscal_year_end", "latest_quarter", "market_capitalization", "ebitda",
		"pe_ratio", "peg_ratio", "book_value", "dividend_per_share", "dividend_yield",
		"eps", "revenue_per_share_ttm", "profit_margin", "operating_margin_ttm",
		"return_on_assets_ttm", "return_on_equity_ttm", "revenue_ttm", "gross_profit_ttm",
		"diluted_eps_ttm", "quarterly_earnings_growth_yoy", "quarterly_revenue_growth_yoy",
		"analyst_target_price", "trailing_pe", "forward_pe", "price_to_sales_ratio_ttm",
		"price_to_book_ratio", "ev_to_revenue", "ev_to_ebitda", "beta",
		"fifty_two_week_high", "fifty_two_week_low", "fifty_day_moving_average",
		"two_hundred_day_moving_average", "shares_outstanding", "shares_float",
		"shares_short", "shares_short_prior_month", "short_ratio",
		"short_percent_outstanding", "short_percent_float", "percent_insiders",
		"percent_institutions", "forward_annual_dividend_rate",
		"forward_annual_dividend_yield", "payout_ratio", "dividend_date",
		"ex_dividend_date", "last_split_factor", "last_split_date",
	},
	conflict:    []string{"symbol"},
	lastUpdated: true,
	pageSize:    widePageSize,
}

// UpsertCompanyOverviews bulk-upserts overview rows.
func (s *Store) UpsertCompanyOverviews(ctx context.Context, overviews []models.CompanyOverview) error {
	if len(overviews) == 0 {
		return nil
	}
	rows := make([][]any, len(overviews))
	for i, o := range overviews {
		rows[i] = []any{
			o.Symbol, o.Description, o.Currency, o.Country, o.Sector, o.Industry, o.Address,
			o.FiscalYearEnd, o.LatestQuarter, o.MarketCapitalization, o.EBITDA,
			o.PERatio, o.PEGRatio, o.BookValue, o.DividendPerShare, o.DividendYield,
			o.EPS, o.RevenuePerShareTTM, o.ProfitMargin, o.OperatingMarginTTM,
			o.ReturnOnAssetsTTM, o.ReturnOnEquityTTM, o.RevenueTTM, o.GrossProfitTTM,
			o.DilutedEPSTTM, o.QuarterlyEarningsGrowthYOY, o.QuarterlyRevenueGrowthYOY,
			o.AnalystTargetPrice, o.TrailingPE, o.ForwardPE, o.PriceToSalesRatioTTM,
			o.PriceToBookRatio, o.EVToRevenue, o.EVToEBITDA, o.Beta,
			o.FiftyTwoWeekHigh, o.FiftyTwoWeekLow, o.FiftyDayMovingAverage,
			o.TwoHundredDayMovingAverage, o.SharesOutstanding, o.SharesFloat,
			o.SharesShort, o.SharesShortPriorMonth, o.ShortRatio,
			o.ShortPercentOutstanding, o.ShortPercentFloat, o.PercentInsiders,
			o.PercentInstitutions, o.ForwardAnnualDividendRate,
			o.ForwardAnnualDividendYield, o.PayoutRatio, o.DividendDate,
			o.ExDividendDate, o.LastSplitFactor, o.LastSplitDate,
		}
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return bulkUpsert(ctx, tx, companyOverviewSpec, rows)
	})
}

var incomeStatementsSpec = upsertSpec{
	table: "income_statements",
	columns: []string{
		"symbol", "fiscal_date_ending", "reported_currency", "is_quarterly",
		"gross_profit", "total_revenue", "cost_of_revenue",
		"cost_of_goods_and_services_sold", "operating_income",
		"selling_general_and_administrative", "research_and_development",
		"operating_expenses", "investment_income_net", "net_interest_income",
		"interest_income", "interest_expense", "non_interest_income",
		"other_non_operating_income", "depreciation",
		"depreciation_and_amortization", "income_before_tax",
		"income_tax_expense", "interest_and_debt_expense",
		"net_income_from_continuing_operations",
		"comprehensive_income_net_of_tax", "ebit", "ebitda", "net_income",
	},
	conflict:    []string{"symbol", "fiscal_date_ending", "is_quarterly"},
	lastUpdated: true,
	pageSize:    widePageSize,
}

// UpsertIncomeStatements bulk-upserts income statement rows.
func (s *Store) UpsertIncomeStatements(ctx context.Context, stmts []models.IncomeStatement) error {
	if len(stmts) == 0 {
		return nil
	}
	rows := make([][]any, len(stmts))
	for i, st := range stmts {
		rows[i] = []any{
			st.Symbol, st.FiscalDateEnding, st.ReportedCurrency, st.IsQuarterly,
			st.GrossProfit, st.TotalRevenue, st.CostOfRevenue,
			st.CostOfGoodsAndServicesSold, st.OperatingIncome,
			st.SellingGeneralAndAdministrative, st.ResearchAndDevelopment,
			st.OperatingExpenses, st.InvestmentIncomeNet, st.NetInterestIncome,
			st.InterestIncome, st.InterestExpense, st.NonInterestIncome,
			st.OtherNonOperatingIncome, st.Depreciation,
			st.DepreciationAndAmortization, st.IncomeBeforeTax,
			st.IncomeTaxExpense, st.InterestAndDebtExpense,
			st.NetIncomeFromContinuingOperations,
			st.ComprehensiveIncomeNetOfTax, st.EBIT, st.EBITDA, st.NetIncome,
		}
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return bulkUpsert(ctx, tx, incomeStatementsSpec, rows)
	})
}

var balanceSheetsSpec = upsertSpec{
	table: "balance_sheets",
	columns: []string{
		"symbol", "fiscal_date_ending", "reported_currency", "is_quarterly",
		"total_assets", "total_current_assets",
		"cash_and_cash_equivalents_at_carrying_value",
		"cash_and_short_term_investments", "inventory",
		"current_net_receivables", "total_non_current_assets",
		"property_plant_equipment",
		"accumulated_depreciation_amortization_ppe", "intangible_assets",
		"intangible_assets_excluding_goodwill", "goodwill", "investments",
		"long_term_investments", "short_term_investments",
		"other_current_assets", "other_non_current_assets",
		"total_liabilities", "total_current_liabilities",
		"current_accounts_payable", "deferred_revenue", "current_debt",
		"short_term_debt", "total_non_current_liabilities",
		"capital_lease_obligations", "long_term_debt",
		"current_long_term_debt", "long_term_debt_noncurrent",
		"short_long_term_debt_total", "other_current_liabilities",
		"other_non_current_liabilities", "total_shareholder_equity",
		"treasury_stock", "retained_earnings", "common_stock",
		"common_stock_shares_outstanding",
	},
	conflict:    []string{"symbol", "fiscal_date_ending", "is_quarterly"},
	lastUpdated: true,
	pageSize:    widePageSize,
}

// UpsertBalanceSheets bulk-upserts balance sheet rows.
func (s *Store) UpsertBalanceSheets(ctx context.Context, sheets []models.BalanceSheet) error {
	if len(sheets) == 0 {
		return nil
	}
	rows := make([][]any, len(sheets))
	for i, bs := range sheets {
		rows[i] = []any{
			bs.Symbol, bs.FiscalDateEnding, bs.ReportedCurrency, bs.IsQuarterly,
			bs.TotalAssets, bs.TotalCurrentAssets,
			bs.CashAndCashEquivalentsAtCarryingValue,
			bs.CashAndShortTermInvestments, bs.Inventory,
			bs.CurrentNetReceivables, bs.TotalNonCurrentAssets,
			bs.PropertyPlantEquipment,
			bs.AccumulatedDepreciationAmortizationPPE, bs.IntangibleAssets,
			bs.IntangibleAssetsExcludingGoodwill, bs.Goodwill, bs.Investments,
			bs.LongTermInvestments, bs.ShortTermInvestments,
			bs.OtherCurrentAssets, bs.OtherNonCurrentAssets,
			bs.TotalLiabilities, bs.TotalCurrentLiabilities,
			bs.CurrentAccountsPayable, bs.DeferredRevenue, bs.CurrentDebt,
			bs.ShortTermDebt, bs.TotalNonCurrentLiabilities,
			bs.CapitalLeaseObligations, bs.LongTermDebt,
			bs.CurrentLongTermDebt, bs.LongTermDebtNoncurrent,
			bs.ShortLongTermDebtTotal, bs.OtherCurrentLiabilities,
			bs.OtherNonCurrentLiabilities, bs.TotalShareholderEquity,
			bs.TreasuryStock, bs.RetainedEarnings, bs.CommonStock,
			bs.CommonStockSharesOutstanding,
		}
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return bulkUpsert(ctx, tx, balanceSheetsSpec, rows)
	})
}

var cashFlowsSpec = upsertSpec{
	table: "cash_flows",
	columns: []string{
		"symbol", "fiscal_date_ending", "reported_currency", "is_quarterly",
		"operating_cashflow", "payments_for_operating_activities",
		"proceeds_from_operating_activities",
		"change_in_operating_liabilities", "change_in_operating_assets",
		"depreciation_depletion_and_amortization", "capital_expenditures",
		"change_in_receivables", "change_in_inventory", "profit_loss",
		"cashflow_from_investment", "cashflow_from_financing",
		"proceeds_from_repayments_of_short_term_debt",
		"payments_for_repurchase_of_common_stock",
		"payments_for_repurchase_of_equity",
		"payments_for_repurchase_of_preferred_stock", "dividend_payout",
		"dividend_payout_common_stock", "dividend_payout_preferred_stock",
		"proceeds_from_issuance_of_common_stock",
		"proceeds_from_issuance_of_long_term_debt_and_capital_securities",
		"proceeds_from_issuance_of_preferred_stock",
		"proceeds_from_repurchase_of_equity",
		"proceeds_from_sale_of_treasury_stock",
		"change_in_cash_and_cash_equivalents", "change_in_exchange_rate",
		"net_income",
	},
	conflict:    []string{"symbol", "fiscal_date_ending", "is_quarterly"},
	lastUpdated: true,
	pageSize:    widePageSize,
}

// UpsertCashFlows bulk-upserts cash flow rows.
func (s *Store) UpsertCashFlows(ctx context.Context, flows []models.CashFlow) error {
	if len(flows) == 0 {
		return nil
	}
	rows := make([][]any, len(flows))
	for i, cf := range flows {
		rows[i] = []any{
			cf.Symbol, cf.FiscalDateEnding, cf.ReportedCurrency, cf.IsQuarterly,
			cf.OperatingCashflow, cf.PaymentsForOperatingActivities,
			cf.ProceedsFromOperatingActivities,
			cf.ChangeInOperatingLiabilities, cf.ChangeInOperatingAssets,
			cf.DepreciationDepletionAndAmortization, cf.CapitalExpenditures,
			cf.ChangeInReceivables, cf.ChangeInInventory, cf.ProfitLoss,
			cf.CashflowFromInvestment, cf.CashflowFromFinancing,
			cf.ProceedsFromRepaymentsOfShortTermDebt,
			cf.PaymentsForRepurchaseOfCommonStock,
			cf.PaymentsForRepurchaseOfEquity,
			cf.PaymentsForRepurchaseOfPreferredStock, cf.DividendPayout,
			cf.DividendPayoutCommonStock, cf.DividendPayoutPreferredStock,
			cf.ProceedsFromIssuanceOfCommonStock,
			cf.ProceedsFromIssuanceOfLongTermDebtAndCapitalSecurities,
			cf.ProceedsFromIssuanceOfPreferredStock,
			cf.ProceedsFromRepurchaseOfEquity,
			cf.ProceedsFromSaleOfTreasuryStock,
			cf.ChangeInCashAndCashEquivalents, cf.ChangeInExchangeRate,
			cf.NetIncome,
		}
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return bulkUpsert(ctx, tx, cashFlowsSpec, rows)
	})
}

var newsArticlesSpec = upsertSpec{
	table: "news_articles",
	columns: []string{
		"title", "url", "time_published", "authors", "summary", "source",
		"category_within_source", "source_domain",
		"overall_sentiment_score", "overall_sentiment_label",
	},
	conflict:    []string{"url"},
	lastUpdated: true,
	pageSize:    widePageSize,
}

const selectNewsIDsByURL = `SELECT id, url FROM news_articles WHERE url = ANY($1)`

// UpsertNewsArticles bulk-upserts articles keyed by url and returns the
// url to surrogate-id mapping for linking, read back in the same
// transaction.
func (s *Store) UpsertNewsArticles(ctx context.Context, articles []models.NewsArticle) (map[string]int64, error) {
	if len(articles) == 0 {
		return map[string]int64{}, nil
	}
	rows := make([][]any, len(articles))
	urls := make([]string, len(articles))
	for i, a := range articles {
		urls[i] = a.URL
		rows[i] = []any{
			a.Title, a.URL, a.TimePublished, pq.StringArray(a.Authors),
			a.Summary, a.Source, a.CategoryWithinSource, a.SourceDomain,
			a.OverallSentimentScore, a.OverallSentimentLabel,
		}
	}
	ids := make(map[string]int64, len(articles))
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		if err := bulkUpsert(ctx, tx, newsArticlesSpec, rows); err != nil {
			return err
		}
		dbRows, err := tx.QueryxContext(ctx, selectNewsIDsByURL, pq.Array(urls))
		if err != nil {
			return fmt.Errorf("select news ids: %w", err)
		}
		defer dbRows.Close()
		for dbRows.Next() {
			var id int64
			var url string
			if err := dbRows.Scan(&id, &url); err != nil {
				return fmt.Errorf("scan news id: %w", err)
			}
			ids[url] = id
		}
		return dbRows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

var newsStocksSpec = upsertSpec{
	table: "news_stocks",
	columns: []string{
		"news_id", "symbol", "relevance_score", "sentiment_score", "sentiment_label",
	},
	conflict: []string{"news_id", "symbol"},
	pageSize: widePageSize,
}

// UpsertNewsStocks bulk-upserts article-to-symbol links.
func (s *Store) UpsertNewsStocks(ctx context.Context, links []models.NewsStock) error {
	if len(links) == 0 {
		return nil
	}
	rows := make([][]any, len(links))
	for i, l := range links {
		rows[i] = []any{l.NewsID, l.Symbol, l.RelevanceScore, l.SentimentScore, l.SentimentLabel}
	}
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return bulkUpsert(ctx, tx, newsStocksSpec, rows)
	})
}
