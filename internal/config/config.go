// Package config holds the explicit runtime configuration for each process.
// The environment is parsed exactly once, at process start; components
// receive the resulting structs and never read the environment themselves.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Ingest configures the realtime trade producer.
type Ingest struct {
	APIToken        string `env:"FINNHUB_API_TOKEN_TRADES"`
	WebSocketHost   string `env:"FINNHUB_WS_HOST" envDefault:"ws.finnhub.io"`
	KafkaServer     string `env:"KAFKA_SERVER" envDefault:"localhost"`
	KafkaPort       string `env:"KAFKA_PORT" envDefault:"9092"`
	KafkaTopic      string `env:"KAFKA_TOPIC_NAME" envDefault:"market"`
	TickersRaw      string `env:"FINNHUB_STOCKS_TICKERS"`
	ValidateTickers bool   `env:"FINNHUB_VALIDATE_TICKERS"` // "1" enables validation

	Tickers []string `env:"-"`
}

// News configures the realtime news ingester.
type News struct {
	APIToken      string `env:"FINNHUB_API_TOKEN_NEWS"`
	WebSocketHost string `env:"FINNHUB_WS_HOST" envDefault:"ws.finnhub.io"`
	TickersRaw    string `env:"FINNHUB_STOCKS_TICKERS"`
	Cassandra     Cassandra

	Tickers []string `env:"-"`
}

// Cassandra holds wide-column store connection settings.
type Cassandra struct {
	Host     string `env:"CASSANDRA_HOST" envDefault:"cassandra"`
	Username string `env:"CASSANDRA_USERNAME" envDefault:"cassandra"`
	Password string `env:"CASSANDRA_PASSWORD" envDefault:"cassandra"`
	Keyspace string `env:"CASSANDRA_KEYSPACE" envDefault:"market"`
}

// Redis holds KV store connection settings.
type Redis struct {
	Host string `env:"REDIS_HOST" envDefault:"redis"`
	Port int    `env:"REDIS_PORT" envDefault:"6379"`
}

// Processor configures the stream processor.
type Processor struct {
	KafkaServer        string `env:"KAFKA_SERVER" envDefault:"localhost"`
	KafkaPort          string `env:"KAFKA_PORT" envDefault:"9092"`
	KafkaTopic         string `env:"KAFKA_TOPIC_NAME" envDefault:"market"`
	BatchSize          int    `env:"BATCH_SIZE" envDefault:"100"`
	BatchIntervalSec   int    `env:"BATCH_INTERVAL" envDefault:"10"`
	PersistIntervalSec int    `env:"DAILY_PERSIST_INTERVAL" envDefault:"300"`
	Cassandra          Cassandra
	Redis              Redis
}

// Sync configures the fundamentals synchronizer.
type Sync struct {
	APIKey     string `env:"ALPHA_VANTAGE_API_KEY"`
	BaseURL    string `env:"ALPHA_VANTAGE_BASE_URL" envDefault:"https://www.alphavantage.co"`
	SyncType   string `env:"SYNC_TYPE"`
	TickersRaw string `env:"STOCKS_TICKERS" envDefault:"AAPL,MSFT,GOOGL,AMZN,TSLA,META,NVDA,NFLX,CRM,ORCL,ADBE,AMD,INTC,PYPL,CSCO,QCOM,TXN,AMAT,PLTR"`
	Postgres   Postgres

	Tickers []string `env:"-"`
}

// Postgres holds relational store connection settings.
type Postgres struct {
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	Database string `env:"POSTGRES_DATABASE" envDefault:"stocks"`
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD"`
}

// DSN renders the lib/pq connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		p.Host, p.Port, p.Database, p.User, p.Password)
}

// Addr renders host:port for the Redis client.
func (r Redis) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Brokers renders the single-broker seed list.
func brokers(server, port string) []string {
	return []string{fmt.Sprintf("%s:%s", server, port)}
}

func (i Ingest) Brokers() []string    { return brokers(i.KafkaServer, i.KafkaPort) }
func (p Processor) Brokers() []string { return brokers(p.KafkaServer, p.KafkaPort) }

// LoadIngest parses the trade-producer configuration from the environment.
func LoadIngest() (Ingest, error) {
	loadDotEnv()
	var cfg Ingest
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if cfg.APIToken == "" {
		return cfg, fmt.Errorf("config: missing required environment variable FINNHUB_API_TOKEN_TRADES")
	}
	tickers, err := ParseTickerList(cfg.TickersRaw)
	if err != nil {
		return cfg, err
	}
	cfg.Tickers = tickers
	return cfg, nil
}

// LoadNews parses the news-ingester configuration from the environment.
func LoadNews() (News, error) {
	loadDotEnv()
	var cfg News
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if cfg.APIToken == "" {
		return cfg, fmt.Errorf("config: missing required environment variable FINNHUB_API_TOKEN_NEWS")
	}
	tickers, err := ParseTickerList(cfg.TickersRaw)
	if err != nil {
		return cfg, err
	}
	cfg.Tickers = tickers
	return cfg, nil
}

// LoadProcessor parses the stream-processor configuration from the environment.
func LoadProcessor() (Processor, error) {
	loadDotEnv()
	var cfg Processor
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LoadSync parses the synchronizer configuration from the environment.
func LoadSync() (Sync, error) {
	loadDotEnv()
	var cfg Sync
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if cfg.APIKey == "" {
		return cfg, fmt.Errorf("config: missing required environment variable ALPHA_VANTAGE_API_KEY")
	}
	cfg.Tickers = splitCSV(cfg.TickersRaw)
	if len(cfg.Tickers) == 0 {
		return cfg, fmt.Errorf("config: STOCKS_TICKERS is empty")
	}
	return cfg, nil
}

// ParseTickerList accepts either a JSON array (`["AAPL","MSFT"]`) or a
// comma-separated string (`AAPL,MSFT`). Anything else is a startup error.
func ParseTickerList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("config: ticker list is empty")
	}
	if strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "{") {
		var tickers []string
		if err := json.Unmarshal([]byte(raw), &tickers); err != nil {
			return nil, fmt.Errorf("config: ticker list is neither a JSON array nor comma-separated: %w", err)
		}
		if len(tickers) == 0 {
			return nil, fmt.Errorf("config: ticker list is empty")
		}
		return tickers, nil
	}
	tickers := splitCSV(raw)
	if len(tickers) == 0 {
		return nil, fmt.Errorf("config: ticker list is empty")
	}
	for _, ticker := range tickers {
		if strings.ContainsAny(ticker, `{}[]"'`) {
			return nil, fmt.Errorf("config: ticker %q is neither a JSON array nor a plain symbol", ticker)
		}
	}
	return tickers, nil
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// loadDotEnv mirrors the original dotenv behavior: a missing .env file is
// not an error.
func loadDotEnv() {
	_ = godotenv.Load()
}
