package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/cpi-data-etl/internal/domain"
)

const (
	// maxYearSpan is the widest year range the BLS v2 API serves per request
	// for registered keys.
	maxYearSpan = 20

	defaultYearSpan = 10
)

// Config holds all run settings. Values come from, in increasing priority:
// built-in defaults, the YAML file named by CPI_CONFIG, and environment
// variables.
type Config struct {
	// BLS API.
	APIKey        string
	APIURL        string
	UserAgent     string
	APITimeout    time.Duration
	MaxRetries    int
	RetryInterval time.Duration

	// Query plan.
	StartYear    string
	EndYear      string
	BatchSize    int
	RequestDelay time.Duration
	MaxRequests  int

	// Reference feeds (URL or local path).
	AreaFeed string
	ItemFeed string

	DataDir    string
	OutputFile string

	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Kafka publishing is enabled when KafkaBrokers is non-empty.
	KafkaBrokers []string
	KafkaTopic   string
}

// OutputPath is the enriched CSV target.
func (c *Config) OutputPath() string {
	return filepath.Join(c.DataDir, c.OutputFile)
}

// IntermediatePath is where the trimmed copy of a reference feed is stored.
func (c *Config) IntermediatePath(name string) string {
	return filepath.Join(c.DataDir, name+".csv")
}

// KafkaEnabled reports whether enriched records are also published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// RequireAPIKey fails when no registration key is configured. Only commands
// that call the statistics API need one.
func (c *Config) RequireAPIKey() error {
	if c.APIKey == "" {
		return errors.New("BLS_API_KEY is required")
	}
	return nil
}

// Load reads configuration, applying defaults where unset.
func Load() (*Config, error) {
	file, err := loadFile(os.Getenv("CPI_CONFIG"))
	if err != nil {
		return nil, err
	}
	get := func(key, fileValue, def string) string {
		if fileValue != "" {
			def = fileValue
		}
		return sharedcfg.EnvOrDefault(key, def)
	}

	endYearDefault := strconv.Itoa(time.Now().Year())
	endYear := get("END_YEAR", file.Query.EndYear, endYearDefault)
	endYearInt, err := strconv.Atoi(endYear)
	if err != nil {
		return nil, fmt.Errorf("invalid END_YEAR %q", endYear)
	}
	startYear := get("START_YEAR", file.Query.StartYear, strconv.Itoa(endYearInt-defaultYearSpan+1))
	startYearInt, err := strconv.Atoi(startYear)
	if err != nil {
		return nil, fmt.Errorf("invalid START_YEAR %q", startYear)
	}
	if startYearInt > endYearInt {
		return nil, fmt.Errorf("START_YEAR %d is after END_YEAR %d", startYearInt, endYearInt)
	}
	if endYearInt-startYearInt+1 > maxYearSpan {
		return nil, fmt.Errorf("START_YEAR..END_YEAR spans more than %d years", maxYearSpan)
	}

	batchSize, err := parsePositiveInt("BATCH_SIZE", get("BATCH_SIZE", file.Query.BatchSize, strconv.Itoa(domain.MaxSeriesPerRequest)))
	if err != nil {
		return nil, err
	}
	if batchSize > domain.MaxSeriesPerRequest {
		return nil, fmt.Errorf("BATCH_SIZE %d exceeds the API limit of %d", batchSize, domain.MaxSeriesPerRequest)
	}

	maxRequests, err := parseNonNegativeInt("MAX_REQUESTS", get("MAX_REQUESTS", file.Query.MaxRequests, "0"))
	if err != nil {
		return nil, err
	}
	maxRetries, err := parseNonNegativeInt("BLS_MAX_RETRIES", get("BLS_MAX_RETRIES", file.BLS.MaxRetries, "0"))
	if err != nil {
		return nil, err
	}

	apiTimeout, err := parseDuration("BLS_TIMEOUT", get("BLS_TIMEOUT", file.BLS.Timeout, "30s"), false)
	if err != nil {
		return nil, err
	}
	retryInterval, err := parseDuration("BLS_RETRY_INTERVAL", get("BLS_RETRY_INTERVAL", file.BLS.RetryInterval, "1s"), false)
	if err != nil {
		return nil, err
	}
	requestDelay, err := parseDuration("REQUEST_DELAY", get("REQUEST_DELAY", file.Query.RequestDelay, "2s"), true)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	brokers := file.Kafka.Brokers
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		APIKey:        get("BLS_API_KEY", file.BLS.APIKey, ""),
		APIURL:        get("BLS_API_URL", file.BLS.APIURL, "https://api.bls.gov/publicAPI/v2/timeseries/data/"),
		UserAgent:     get("BLS_USER_AGENT", file.BLS.UserAgent, "cpi-data-etl/1.0"),
		APITimeout:    apiTimeout,
		MaxRetries:    maxRetries,
		RetryInterval: retryInterval,

		StartYear:    startYear,
		EndYear:      endYear,
		BatchSize:    batchSize,
		RequestDelay: requestDelay,
		MaxRequests:  maxRequests,

		AreaFeed: get("AREA_FEED", file.Reference.AreaFeed, "https://download.bls.gov/pub/time.series/cu/cu.area"),
		ItemFeed: get("ITEM_FEED", file.Reference.ItemFeed, "https://download.bls.gov/pub/time.series/cu/cu.item"),

		DataDir:    get("DATA_DIR", file.Output.DataDir, "data"),
		OutputFile: get("OUTPUT_FILE", file.Output.File, "cpi_data.csv"),

		LogLevel:        get("LOG_LEVEL", file.Log.Level, "info"),
		LogFormat:       get("LOG_FORMAT", file.Log.Format, "json"),
		HTTPAddr:        get("HTTP_ADDR", file.HTTP.Addr, ""),
		ShutdownTimeout: shutdownTimeout,

		KafkaBrokers: brokers,
		KafkaTopic:   get("KAFKA_TOPIC", file.Kafka.Topic, "cpi-observations"),
	}

	if cfg.OutputFile == "" {
		return nil, errors.New("OUTPUT_FILE is required")
	}
	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parsePositiveInt(key, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, s)
	}
	return n, nil
}

func parseNonNegativeInt(key, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a non-negative integer", key, s)
	}
	return n, nil
}

func parseDuration(key, s string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

// fileConfig is the YAML layout of the optional config file. Scalars are read
// as strings so they go through the same parsing as environment variables.
type fileConfig struct {
	BLS struct {
		APIKey        string `yaml:"apiKey"`
		APIURL        string `yaml:"apiUrl"`
		UserAgent     string `yaml:"userAgent"`
		Timeout       string `yaml:"timeout"`
		MaxRetries    string `yaml:"maxRetries"`
		RetryInterval string `yaml:"retryInterval"`
	} `yaml:"bls"`
	Query struct {
		StartYear    string `yaml:"startYear"`
		EndYear      string `yaml:"endYear"`
		BatchSize    string `yaml:"batchSize"`
		RequestDelay string `yaml:"requestDelay"`
		MaxRequests  string `yaml:"maxRequests"`
	} `yaml:"query"`
	Reference struct {
		AreaFeed string `yaml:"areaFeed"`
		ItemFeed string `yaml:"itemFeed"`
	} `yaml:"reference"`
	Output struct {
		DataDir string `yaml:"dataDir"`
		File    string `yaml:"file"`
	} `yaml:"output"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("read CPI_CONFIG: %w", err)
	}
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fc, fmt.Errorf("parse CPI_CONFIG %s: %w", path, err)
	}
	return fc, nil
}
