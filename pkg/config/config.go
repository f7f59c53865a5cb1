package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Proxy     ProxyPoolConfig
	RateLimit RateLimitConfig
	Matcher   MatcherConfig
	Analyzer  AnalyzerConfig
	Profit    ProfitConfig
	Detector  DetectorConfig
}

type AppConfig struct {
	Env         string
	LogLevel    string
	LogFormat   string
	MetricsPort int
}

// ProxyConfig is one proxy endpoint supplied at startup.
type ProxyConfig struct {
	Host     string
	Port     int
	Username string
	Password string
}

type ProxyPoolConfig struct {
	Proxies             []ProxyConfig
	MaxFailures         int
	BanCooldown         time.Duration
	FailedCooldown      time.Duration
	BanIndicators       []string
	HealthCheckURL      string
	HealthCheckTimeout  time.Duration
	HealthCheckInterval time.Duration
}

// RateLimitRule configures request pacing for one domain.
type RateLimitRule struct {
	MaxRequests int
	TimeWindow  time.Duration
	DelayMin    time.Duration
	DelayMax    time.Duration
	BurstLimit  int
}

type BackoffConfig struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

type RateLimitConfig struct {
	Default RateLimitRule
	Domains map[string]RateLimitRule
	Backoff BackoffConfig
}

type MatcherConfig struct {
	TitleThreshold      float64
	BrandThreshold      float64
	CombinedThreshold   float64
	TitleWeight         float64
	BrandWeight         float64
	SimilarityThreshold float64
	ConfidenceThreshold float64
	EmbeddingDim        int
}

type AnalyzerConfig struct {
	AnomalyThreshold float64
	MinConfidence    float64
	MinPricePoints   int
	LookbackDays     int
}

type ProfitConfig struct {
	MinROI    float64
	MinProfit float64
}

type DetectorConfig struct {
	Workers int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("ARBITRAGE")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	setDefaults()
	bindEnvVariables()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if config.Matcher.TitleWeight+config.Matcher.BrandWeight != 1.0 {
		return nil, fmt.Errorf("matcher weights must sum to 1.0, got %.2f",
			config.Matcher.TitleWeight+config.Matcher.BrandWeight)
	}

	return &config, nil
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Env:         "development",
			LogLevel:    "info",
			LogFormat:   "json",
			MetricsPort: 9090,
		},
		Proxy: ProxyPoolConfig{
			MaxFailures:    3,
			BanCooldown:    24 * time.Hour,
			FailedCooldown: time.Hour,
			BanIndicators: []string{
				"access denied", "blocked", "forbidden", "rate limit",
				"too many requests", "captcha", "security check",
			},
			HealthCheckURL:      "https://httpbin.org/ip",
			HealthCheckTimeout:  10 * time.Second,
			HealthCheckInterval: 5 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Default: RateLimitRule{
				MaxRequests: 60,
				TimeWindow:  time.Minute,
				DelayMin:    time.Second,
				DelayMax:    5 * time.Second,
				BurstLimit:  10,
			},
			Backoff: BackoffConfig{
				BaseDelay:  time.Second,
				MaxDelay:   5 * time.Minute,
				Multiplier: 2.0,
			},
		},
		Matcher: MatcherConfig{
			TitleThreshold:      85,
			BrandThreshold:      90,
			CombinedThreshold:   85,
			TitleWeight:         0.7,
			BrandWeight:         0.3,
			SimilarityThreshold: 0.70,
			ConfidenceThreshold: 0.80,
			EmbeddingDim:        384,
		},
		Analyzer: AnalyzerConfig{
			AnomalyThreshold: 0.50,
			MinConfidence:    0.70,
			MinPricePoints:   10,
			LookbackDays:     180,
		},
		Profit: ProfitConfig{
			MinROI:    30,
			MinProfit: 10,
		},
		Detector: DetectorConfig{
			Workers: 20,
		},
	}
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.loglevel", "info")
	viper.SetDefault("app.logformat", "json")
	viper.SetDefault("app.metricsport", 9090)

	viper.SetDefault("proxy.maxfailures", 3)
	viper.SetDefault("proxy.bancooldown", "24h")
	viper.SetDefault("proxy.failedcooldown", "1h")
	viper.SetDefault("proxy.banindicators", []string{
		"access denied", "blocked", "forbidden", "rate limit",
		"too many requests", "captcha", "security check",
	})
	viper.SetDefault("proxy.healthcheckurl", "https://httpbin.org/ip")
	viper.SetDefault("proxy.healthchecktimeout", "10s")
	viper.SetDefault("proxy.healthcheckinterval", "5m")

	viper.SetDefault("ratelimit.default.maxrequests", 60)
	viper.SetDefault("ratelimit.default.timewindow", "60s")
	viper.SetDefault("ratelimit.default.delaymin", "1s")
	viper.SetDefault("ratelimit.default.delaymax", "5s")
	viper.SetDefault("ratelimit.default.burstlimit", 10)
	viper.SetDefault("ratelimit.backoff.basedelay", "1s")
	viper.SetDefault("ratelimit.backoff.maxdelay", "5m")
	viper.SetDefault("ratelimit.backoff.multiplier", 2.0)

	viper.SetDefault("matcher.titlethreshold", 85.0)
	viper.SetDefault("matcher.brandthreshold", 90.0)
	viper.SetDefault("matcher.combinedthreshold", 85.0)
	viper.SetDefault("matcher.titleweight", 0.7)
	viper.SetDefault("matcher.brandweight", 0.3)
	viper.SetDefault("matcher.similaritythreshold", 0.70)
	viper.SetDefault("matcher.confidencethreshold", 0.80)
	viper.SetDefault("matcher.embeddingdim", 384)

	viper.SetDefault("analyzer.anomalythreshold", 0.50)
	viper.SetDefault("analyzer.minconfidence", 0.70)
	viper.SetDefault("analyzer.minpricepoints", 10)
	viper.SetDefault("analyzer.lookbackdays", 180)

	viper.SetDefault("profit.minroi", 30.0)
	viper.SetDefault("profit.minprofit", 10.0)

	viper.SetDefault("detector.workers", 20)
}

func bindEnvVariables() {
	viper.BindEnv("app.env", "APP_ENV")
	viper.BindEnv("app.loglevel", "LOG_LEVEL")
	viper.BindEnv("app.logformat", "LOG_FORMAT")
	viper.BindEnv("app.metricsport", "METRICS_PORT")

	viper.BindEnv("proxy.bancooldown", "PROXY_BAN_COOLDOWN")
	viper.BindEnv("proxy.maxfailures", "PROXY_MAX_FAILURES")
	viper.BindEnv("proxy.healthcheckinterval", "PROXY_HEALTH_CHECK_INTERVAL")

	viper.BindEnv("analyzer.anomalythreshold", "ANOMALY_THRESHOLD")
	viper.BindEnv("analyzer.minconfidence", "MIN_CONFIDENCE")
	viper.BindEnv("analyzer.minpricepoints", "MIN_PRICE_POINTS")
	viper.BindEnv("analyzer.lookbackdays", "LOOKBACK_DAYS")

	viper.BindEnv("profit.minroi", "MIN_ROI")
	viper.BindEnv("profit.minprofit", "MIN_PROFIT")

	viper.BindEnv("detector.workers", "DETECTOR_WORKERS")
}
