// Package models defines the fundamentals records exchanged between the
// vendor API client and the relational store. Nullable vendor fields are
// pointers; the safe casts in the API client produce nil for absent or
// unparsable values.
package models

import "time"

// DailyPrice is one OHLCV row, keyed (symbol, date).
type DailyPrice struct {
	Symbol string
	Date   time.Time
	Open   *float64
	High   *float64
	Low    *float64
	Close  *float64
	Volume *int64
}

// StockListing is one `stocks` row, keyed (symbol).
type StockListing struct {
	Symbol        string
	Name          string
	Exchange      string
	AssetType     string
	IPODate       *time.Time
	DelistingDate *time.Time
	Status        string
}

// CompanyOverview is one `company_overview` row, keyed (symbol).
type CompanyOverview struct {
	Symbol        string
	Description   *string
	Currency      *string
	Country       *string
	Sector        *string
	Industry      *string
	Address       *string
	FiscalYearEnd *string
	LatestQuarter *time.Time

	MarketCapitalization       *int64
	EBITDA                     *int64
	PERatio                    *float64
	PEGRatio                   *float64
	BookValue                  *float64
	DividendPerShare           *float64
	DividendYield              *float64
	EPS                        *float64
	RevenuePerShareTTM         *float64
	ProfitMargin               *float64
	OperatingMarginTTM         *float64
	ReturnOnAssetsTTM          *float64
	ReturnOnEquityTTM          *float64
	RevenueTTM                 *int64
	GrossProfitTTM             *int64
	DilutedEPSTTM              *float64
	QuarterlyEarningsGrowthYOY *float64
	QuarterlyRevenueGrowthYOY  *float64

	AnalystTargetPrice   *float64
	TrailingPE           *float64
	ForwardPE            *float64
	PriceToSalesRatioTTM *float64
	PriceToBookRatio     *float64
	EVToRevenue          *float64
	EVToEBITDA           *float64
	Beta                 *float64

	FiftyTwoWeekHigh           *float64
	FiftyTwoWeekLow            *float64
	FiftyDayMovingAverage      *float64
	TwoHundredDayMovingAverage *float64

	SharesOutstanding       *int64
	SharesFloat             *int64
	SharesShort             *int64
	SharesShortPriorMonth   *int64
	ShortRatio              *float64
	ShortPercentOutstanding *float64
	ShortPercentFloat       *float64
	PercentInsiders         *float64
	PercentInstitutions     *float64

	ForwardAnnualDividendRate  *float64
	ForwardAnnualDividendYield *float64
	PayoutRatio                *float64
	DividendDate               *time.Time
	ExDividendDate             *time.Time
	LastSplitFactor            *string
	LastSplitDate              *time.Time
}

// IncomeStatement is one `income_statements` row, keyed
// (symbol, fiscal_date_ending, is_quarterly).
type IncomeStatement struct {
	Symbol           string
	FiscalDateEnding *time.Time
	ReportedCurrency *string
	IsQuarterly      bool

	GrossProfit                       *int64
	TotalRevenue                      *int64
	CostOfRevenue                     *int64
	CostOfGoodsAndServicesSold        *int64
	OperatingIncome                   *int64
	SellingGeneralAndAdministrative   *int64
	ResearchAndDevelopment            *int64
	OperatingExpenses                 *int64
	InvestmentIncomeNet               *int64
	NetInterestIncome                 *int64
	InterestIncome                    *int64
	InterestExpense                   *int64
	NonInterestIncome                 *int64
	OtherNonOperatingIncome           *int64
	Depreciation                      *int64
	DepreciationAndAmortization       *int64
	IncomeBeforeTax                   *int64
	IncomeTaxExpense                  *int64
	InterestAndDebtExpense            *int64
	NetIncomeFromContinuingOperations *int64
	ComprehensiveIncomeNetOfTax       *int64
	EBIT                              *int64
	EBITDA                            *int64
	NetIncome                         *int64
}

// BalanceSheet is one `balance_sheets` row, keyed
// (symbol, fiscal_date_ending, is_quarterly).
type BalanceSheet struct {
	Symbol           string
	FiscalDateEnding *time.Time
	ReportedCurrency *string
	IsQuarterly      bool

	TotalAssets                            *int64
	TotalCurrentAssets                     *int64
	CashAndCashEquivalentsAtCarryingValue  *int64
	CashAndShortTermInvestments            *int64
	Inventory                              *int64
	CurrentNetReceivables                  *int64
	TotalNonCurrentAssets                  *int64
	PropertyPlantEquipment                 *int64
	AccumulatedDepreciationAmortizationPPE *int64
	IntangibleAssets                       *int64
	IntangibleAssetsExcludingGoodwill      *int64
	Goodwill                               *int64
	Investments                            *int64
	LongTermInvestments                    *int64
	ShortTermInvestments                   *int64
	OtherCurrentAssets                     *int64
	OtherNonCurrentAssets                  *int64
	TotalLiabilities                       *int64
	TotalCurrentLiabilities                *int64
	CurrentAccountsPayable                 *int64
	DeferredRevenue                        *int64
	CurrentDebt                            *int64
	ShortTermDebt                          *int64
	TotalNonCurrentLiabilities             *int64
	CapitalLeaseObligations                *int64
	LongTermDebt                           *int64
	CurrentLongTermDebt                    *int64
	LongTermDebtNoncurrent                 *int64
	ShortLongTermDebtTotal                 *int64
	OtherCurrentLiabilities                *int64
	OtherNonCurrentLiabilities             *int64
	TotalShareholderEquity                 *int64
	TreasuryStock                          *int64
	RetainedEarnings                       *int64
	CommonStock                            *int64
	CommonStockSharesOutstanding           *int64
}

// CashFlow is one `cash_flows` row, keyed
// (symbol, fiscal_date_ending, is_quarterly).
type CashFlow struct {
	Symbol           string
	FiscalDateEnding *time.Time
	ReportedCurrency *string
	IsQuarterly      bool

	OperatingCashflow                                    *int64
	PaymentsForOperatingActivities                       *int64
	ProceedsFromOperatingActivities                      *int64
	ChangeInOperatingLiabilities                         *int64
	ChangeInOperatingAssets                              *int64
	DepreciationDepletionAndAmortization                 *int64
	CapitalExpenditures                                  *int64
	ChangeInReceivables                                  *int64
	ChangeInInventory                                    *int64
	ProfitLoss                                           *int64
	CashflowFromInvestment                               *int64
	CashflowFromFinancing                                *int64
	ProceedsFromRepaymentsOfShortTermDebt                *int64
	PaymentsForRepurchaseOfCommonStock                   *int64
	PaymentsForRepurchaseOfEquity                        *int64
	PaymentsForRepurchaseOfPreferredStock                *int64
	DividendPayout                                       *int64
	DividendPayoutCommonStock                            *int64
	DividendPayoutPreferredStock                         *int64
	ProceedsFromIssuanceOfCommonStock                    *int64
	ProceedsFromIssuanceOfLongTermDebtAndCapitalSecurities *int64
	ProceedsFromIssuanceOfPreferredStock                 *int64
	ProceedsFromRepurchaseOfEquity                       *int64
	ProceedsFromSaleOfTreasuryStock                      *int64
	ChangeInCashAndCashEquivalents                       *int64
	ChangeInExchangeRate                                 *int64
	NetIncome                                            *int64
}

// FinancialReport bundles one statement endpoint's response: the annual and
// quarterly report lists for a symbol. The element type is one of the three
// statement records above.
type FinancialReport[T any] struct {
	Symbol    string
	Annual    []T
	Quarterly []T
}

// NewsArticle is one `news_articles` row, keyed (url); the store generates
// the surrogate id.
type NewsArticle struct {
	Title                 *string
	URL                   string
	TimePublished         *time.Time
	Authors               []string
	Summary               *string
	Source                *string
	CategoryWithinSource  *string
	SourceDomain          *string
	OverallSentimentScore *float64
	OverallSentimentLabel *string
	TickerSentiment       []TickerSentiment
}

// TickerSentiment is one per-ticker sentiment sub-record of a news article.
type TickerSentiment struct {
	Ticker         string
	RelevanceScore *float64
	SentimentScore *float64
	SentimentLabel *string
}

// NewsStock links an article to a watchlist symbol, keyed (news_id, symbol).
type NewsStock struct {
	NewsID         int64
	Symbol         string
	RelevanceScore *float64
	SentimentScore *float64
	SentimentLabel *string
}
