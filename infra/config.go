package infra

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

type MongoConfig struct {
	ConnectionURL        string `envconfig:"CC_MONGO_CONNECTION_STRING" default:"mongodb://localhost:27017"`
	DatabaseName         string `envconfig:"CC_MONGO_DATABASE" default:"ccdumper"`
	CandleCollectionName string `envconfig:"CC_MONGO_CANDLE_COLLECTION" default:"candle-data-items"`
	TimeoutSec           int    `envconfig:"CC_MONGO_TIMEOUT" default:"15"`
}

type ExchangeConfig struct {
	BaseURL             string `envconfig:"CC_EXCHANGE_BASE_URL" default:"https://api.binance.com"`
	AvgPriceCandleCount int    `envconfig:"CC_AVG_PRICE_CANDLES_COUNT" default:"5"`
}

type CandleCacheConfig struct {
	RetryCount          int     `envconfig:"CC_GET_CANDLES_RETRY_COUNT" default:"3"`
	RetryDelayMs        int     `envconfig:"CC_GET_CANDLES_RETRY_DELAY_MS" default:"5000"`
	MinCandlesForMedian int     `envconfig:"CC_GET_CANDLES_MIN_CANDLES_FOR_MEDIAN" default:"20"`
	AnomalyThreshold    float64 `envconfig:"CC_GET_CANDLES_PRICE_ANOMALY_THRESHOLD_FACTOR" default:"1000"`
}

type JobConfig struct {
	IntervalSec int    `envconfig:"CC_JOB_INTERVAL_SEC" default:"30"`
	SymbolList  string `envconfig:"CC_SYMBOL_LIST" default:"BTCUSDT,ETHUSDT,SOLUSDT,XRPUSDT,BNBUSDT"`
	Disabled    bool   `envconfig:"CC_NO_JOB" default:"false"`
}

type HTTPConfig struct {
	Port int `envconfig:"CC_HTTP_PORT" default:"8080"`
}

type CentrifugoConfig struct {
	Enabled bool   `envconfig:"CC_CENTRIFUGO_ENABLED" default:"false"`
	Addr    string `envconfig:"CC_CENTRIFUGO_ADDR" default:"http://localhost:8000/api"`
	APIKey  string `envconfig:"CC_CENTRIFUGO_API_KEY" default:""`
}

type Config struct {
	Mongo       MongoConfig
	Exchange    ExchangeConfig
	CandleCache CandleCacheConfig
	Job         JobConfig
	HTTP        HTTPConfig
	Centrifugo  CentrifugoConfig
}

// SetConfig loads the optional .env file and resolves every CC_* variable.
// Workers inherit the supervisor's environment, so both sides read the
// same configuration.
func SetConfig(configPath string) Config {
	if err := godotenv.Load(configPath); err != nil && !os.IsNotExist(err) {
		log.Warnf("can't load %s: %v", configPath, err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	return cfg
}

// Symbols splits the configured symbol list.
func (c JobConfig) Symbols() []string {
	parts := strings.Split(c.SymbolList, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}

func (c JobConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSec) * time.Second
}

func (c CandleCacheConfig) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}
