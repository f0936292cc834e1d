package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"FinForecast/internal/domain/models"
)

// Split holds the train/validation/test fractions.
type Split struct {
	Train float64 `yaml:"train" validate:"gte=0,lte=1"`
	Val   float64 `yaml:"val" validate:"gte=0,lte=1"`
	Test  float64 `yaml:"test" validate:"gte=0,lte=1"`
}

// Grid lists the candidate values of every search dimension.
type Grid struct {
	HiddenWidth  []int     `yaml:"hidden_width" validate:"min=1,dive,gte=1"`
	Depth        []int     `yaml:"depth" validate:"min=1,dive,gte=1"`
	DropoutRate  []float64 `yaml:"dropout_rate" validate:"min=1,dive,gte=0,lt=1"`
	LearningRate []float64 `yaml:"learning_rate" validate:"min=1,dive,gt=0"`
	BatchSize    []int     `yaml:"batch_size" validate:"min=1,dive,gte=1"`
}

// Size is the number of grid points.
func (g Grid) Size() int {
	return len(g.HiddenWidth) * len(g.Depth) * len(g.DropoutRate) * len(g.LearningRate) * len(g.BatchSize)
}

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic"`
		Format string `yaml:"format" default:"json" validate:"oneof=json console"`
		Output string `yaml:"output" default:"stdout"`
		// Aggregated error logs are shipped to Kafka when enabled.
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"finforecast.logs"`
			Interval       time.Duration `yaml:"interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100" validate:"gte=1"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Server struct {
		Enabled         bool          `yaml:"enabled"`
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		RateLimit       struct {
			Burst     float64 `yaml:"burst" default:"20" validate:"gte=1"`
			PerSecond float64 `yaml:"per_second" default:"10" validate:"gt=0"`
			// Buckets idle this long are dropped.
			IdleTTL time.Duration `yaml:"idle_ttl" default:"10m" validate:"gt=0"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Pipeline struct {
		Symbol     string `yaml:"symbol" default:"FPT" validate:"required"`
		WindowSize int    `yaml:"window_size" default:"60"`
		Split      Split  `yaml:"split"`
		// Empty means all variants.
		Variants        []string `yaml:"variants"`
		Seed            int64    `yaml:"seed"`
		KeepPredictions bool     `yaml:"keep_predictions" default:"true"`
	} `yaml:"pipeline"`
	Source struct {
		Type      string `yaml:"type" default:"csv" validate:"oneof=csv clickhouse"`
		TrainPath string `yaml:"train_path"`
		TestPath  string `yaml:"test_path"`
		Timeframe string `yaml:"timeframe" default:"1d" validate:"oneof=1m 5m 1h 1d"`
		From      string `yaml:"from"`
		To        string `yaml:"to"`
	} `yaml:"source"`
	Search struct {
		Epochs  int  `yaml:"epochs" default:"5"`
		Workers int  `yaml:"workers" default:"1" validate:"gte=1"`
		Grid    Grid `yaml:"grid"`
	} `yaml:"search"`
	Training struct {
		Epochs       int     `yaml:"epochs" default:"50"`
		GradientClip float64 `yaml:"gradient_clip" default:"5" validate:"gte=0"`
	} `yaml:"training"`
	Cache struct {
		Type      string        `yaml:"type" default:"memory" validate:"oneof=memory redis"`
		ReportTTL time.Duration `yaml:"report_ttl" default:"168h"`
		Memory    struct {
			MaxSize int `yaml:"max_size" default:"256" validate:"gte=1"`
		} `yaml:"memory"`
		Redis struct {
			Addr     string `yaml:"addr" default:"localhost:6379"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix" default:"finforecast"`
		} `yaml:"redis"`
	} `yaml:"cache"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"finforecast"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert" default:"true"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers" default:"[\"localhost:9092\"]"`
		ClientID     string        `yaml:"client_id" default:"finforecast"`
		ReportTopic  string        `yaml:"report_topic" default:"finforecast.reports"`
		SummaryTopic string        `yaml:"summary_topic" default:"finforecast.summaries"`
		RequiredAcks int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
		Compression  string        `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	} `yaml:"kafka"`
}

// Applied when the YAML leaves the whole split or grid unset.
var (
	defaultSplit = Split{Train: 0.6, Val: 0.2, Test: 0.2}
	defaultGrid  = Grid{
		HiddenWidth:  []int{32, 64},
		Depth:        []int{1, 2},
		DropoutRate:  []float64{0, 0.2},
		LearningRate: []float64{0.001, 0.01},
		BatchSize:    []int{32, 64},
	}
)

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Parse decodes YAML and fills defaults without validating.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDomainDefaults()
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	c, err := Parse(b)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyDomainDefaults() {
	if c.Pipeline.Split == (Split{}) {
		c.Pipeline.Split = defaultSplit
	}
	g := &c.Search.Grid
	if g.HiddenWidth == nil && g.Depth == nil && g.DropoutRate == nil && g.LearningRate == nil && g.BatchSize == nil {
		*g = defaultGrid
	}
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("FF_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("FF_TRAIN_PATH"); v != "" {
		c.Source.TrainPath = v
	}
	if v := getenv("FF_TEST_PATH"); v != "" {
		c.Source.TestPath = v
	}
	if v := getenv("FF_SYMBOL"); v != "" {
		c.Pipeline.Symbol = v
	}
	if v := getenv("FF_SEED"); v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return models.NewConfigError("FF_SEED", "not an integer: %q", v)
		}
		c.Pipeline.Seed = seed
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	return nil
}

// Validate runs the struct tag rules, then the domain checks. Every failure
// is reported as a ConfigError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return models.NewConfigError(strings.ToLower(fe.Namespace()), "failed %q rule (value %v)", fe.Tag(), fe.Value())
		}
		return models.NewConfigError("config", "%v", err)
	}

	if c.Pipeline.WindowSize < 1 {
		return models.NewConfigError("pipeline.window_size", "must be >= 1, got %d", c.Pipeline.WindowSize)
	}
	if sp := c.Pipeline.Split; sp.Train+sp.Val+sp.Test > 1+1e-9 {
		return models.NewConfigError("pipeline.split", "ratios sum to %g > 1", sp.Train+sp.Val+sp.Test)
	}
	if _, err := c.Variants(); err != nil {
		return err
	}
	if c.Search.Epochs < 1 {
		return models.NewConfigError("search.epochs", "must be >= 1, got %d", c.Search.Epochs)
	}
	if c.Training.Epochs < 1 {
		return models.NewConfigError("training.epochs", "must be >= 1, got %d", c.Training.Epochs)
	}
	if c.Search.Epochs >= c.Training.Epochs {
		return models.NewConfigError("search.epochs", "must be < training.epochs (%d), got %d", c.Training.Epochs, c.Search.Epochs)
	}

	switch c.Source.Type {
	case "csv":
		if c.Source.TrainPath == "" {
			return models.NewConfigError("source.train_path", "required for csv source")
		}
	case "clickhouse":
		if !c.ClickHouse.Enabled {
			return models.NewConfigError("clickhouse.enabled", "clickhouse source requires clickhouse.enabled")
		}
		if _, _, err := c.SourceRange(); err != nil {
			return err
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return models.NewConfigError("kafka.brokers", "cannot be empty when kafka is enabled")
	}
	if c.Log.Collector.Enabled && !c.Kafka.Enabled {
		return models.NewConfigError("log.collector.enabled", "log collector publishes through kafka")
	}
	return nil
}

// Variants parses pipeline.variants; empty means every variant.
func (c *Config) Variants() ([]models.Variant, error) {
	if len(c.Pipeline.Variants) == 0 {
		return append([]models.Variant(nil), models.Variants...), nil
	}
	out := make([]models.Variant, 0, len(c.Pipeline.Variants))
	seen := make(map[models.Variant]bool)
	for _, s := range c.Pipeline.Variants {
		v, err := models.ParseVariant(strings.ToLower(strings.TrimSpace(s)))
		if err != nil {
			return nil, err
		}
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out, nil
}

// SourceRange parses the optional source.from/source.to dates. A zero To
// means now.
func (c *Config) SourceRange() (from, to time.Time, err error) {
	if c.Source.From != "" {
		if from, err = time.Parse(time.DateOnly, c.Source.From); err != nil {
			return from, to, models.NewConfigError("source.from", "want YYYY-MM-DD, got %q", c.Source.From)
		}
	}
	if c.Source.To != "" {
		if to, err = time.Parse(time.DateOnly, c.Source.To); err != nil {
			return from, to, models.NewConfigError("source.to", "want YYYY-MM-DD, got %q", c.Source.To)
		}
	}
	if !to.IsZero() && to.Before(from) {
		return from, to, models.NewConfigError("source.to", "before source.from")
	}
	return from, to, nil
}
