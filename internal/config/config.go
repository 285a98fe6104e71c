package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
	BackendSQS      = "sqs"
	BackendMemory   = "memory"
)

type Config struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`

	// Supabase / Postgres
	DBUrl       string `yaml:"db_url"`       // timeline entries, follows, users (gorm)
	PostsDBUrl  string `yaml:"posts_db_url"` // posts table (pgx), defaults to DBUrl
	AutoMigrate bool   `yaml:"auto_migrate"`

	// Social graph service; when set it replaces the follows table
	SocialGraphURL     string        `yaml:"social_graph_url"`
	SocialGraphTimeout time.Duration `yaml:"social_graph_timeout"`

	// AWS
	AWSRegion      string `yaml:"aws_region"`
	AWSEndpointURL string `yaml:"aws_endpoint_url"` // localstack & co
	AWSAccessKeyID string `yaml:"-"`
	AWSSecretKey   string `yaml:"-"`

	TimelineBackend   string        `yaml:"timeline_backend"` // postgres | dynamodb | memory
	DynamoTableName   string        `yaml:"dynamodb_table_name"`
	QueueBackend      string        `yaml:"queue_backend"` // sqs | memory
	SQSQueueURL       string        `yaml:"sqs_queue_url"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`

	// Fan-out
	FanoutStrategy     string `yaml:"fanout_strategy"`
	CelebrityThreshold int64  `yaml:"celebrity_threshold"`
	FanoutBatchSize    int    `yaml:"fanout_batch_size"` // targets per queue message
	FetchMaxWorkers    int    `yaml:"fetch_max_workers"`
	PullAllowPartial   bool   `yaml:"pull_allow_partial"`

	// Consumer
	ConsumerWorkers      int           `yaml:"consumer_workers"`
	ConsumerPollInterval time.Duration `yaml:"consumer_poll_interval"`
}

func defaults() *Config {
	return &Config{
		Port:                 "8080",
		Env:                  "dev",
		SocialGraphTimeout:   5 * time.Second,
		AWSRegion:            "us-west-2",
		TimelineBackend:      BackendPostgres,
		DynamoTableName:      "posts-timeline_service",
		QueueBackend:         BackendSQS,
		VisibilityTimeout:    30 * time.Second,
		FanoutStrategy:       "push",
		CelebrityThreshold:   50000,
		FanoutBatchSize:      1000,
		FetchMaxWorkers:      50,
		ConsumerWorkers:      1,
		ConsumerPollInterval: time.Second,
	}
}

// LoadConfig reads CONFIG_FILE (optional YAML) then applies environment overrides.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Env = getEnv("ENVIRONMENT", cfg.Env)
	cfg.DBUrl = getEnv("SUPABASE_DB_URL", cfg.DBUrl)
	cfg.PostsDBUrl = getEnv("POSTS_DB_URL", cfg.PostsDBUrl)
	cfg.AutoMigrate = getEnvBool("AUTO_MIGRATE", cfg.AutoMigrate)
	cfg.SocialGraphURL = getEnv("SOCIAL_GRAPH_URL", cfg.SocialGraphURL)
	cfg.SocialGraphTimeout = getEnvDuration("SOCIAL_GRAPH_TIMEOUT", cfg.SocialGraphTimeout)
	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.AWSEndpointURL = getEnv("AWS_ENDPOINT_URL", cfg.AWSEndpointURL)
	cfg.AWSAccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.AWSSecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	cfg.TimelineBackend = getEnv("TIMELINE_BACKEND", cfg.TimelineBackend)
	cfg.DynamoTableName = getEnv("DYNAMODB_TABLE_NAME", cfg.DynamoTableName)
	cfg.QueueBackend = getEnv("QUEUE_BACKEND", cfg.QueueBackend)
	cfg.SQSQueueURL = getEnv("SQS_QUEUE_URL", cfg.SQSQueueURL)
	cfg.VisibilityTimeout = getEnvDuration("VISIBILITY_TIMEOUT", cfg.VisibilityTimeout)
	cfg.FanoutStrategy = getEnv("FANOUT_STRATEGY", cfg.FanoutStrategy)
	cfg.CelebrityThreshold = int64(getEnvInt("CELEBRITY_THRESHOLD", int(cfg.CelebrityThreshold)))
	cfg.FanoutBatchSize = getEnvInt("FANOUT_BATCH_SIZE", cfg.FanoutBatchSize)
	cfg.FetchMaxWorkers = getEnvInt("FETCH_MAX_WORKERS", cfg.FetchMaxWorkers)
	cfg.PullAllowPartial = getEnvBool("PULL_ALLOW_PARTIAL", cfg.PullAllowPartial)
	cfg.ConsumerWorkers = getEnvInt("CONSUMER_WORKERS", cfg.ConsumerWorkers)
	cfg.ConsumerPollInterval = getEnvDuration("CONSUMER_POLL_INTERVAL", cfg.ConsumerPollInterval)

	if cfg.PostsDBUrl == "" {
		cfg.PostsDBUrl = cfg.DBUrl
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate only checks shape; the strategy name is resolved by the fan-out router.
func (c *Config) Validate() error {
	switch c.TimelineBackend {
	case BackendPostgres, BackendDynamoDB, BackendMemory:
	default:
		return fmt.Errorf("unknown timeline backend %q", c.TimelineBackend)
	}
	switch c.QueueBackend {
	case BackendSQS, BackendMemory:
	default:
		return fmt.Errorf("unknown queue backend %q", c.QueueBackend)
	}
	if c.QueueBackend == BackendSQS && c.SQSQueueURL == "" {
		return errors.New("SQS_QUEUE_URL is required for the sqs queue backend")
	}
	if c.TimelineBackend == BackendPostgres && c.DBUrl == "" {
		return errors.New("SUPABASE_DB_URL is required for the postgres timeline backend")
	}
	if c.CelebrityThreshold <= 0 {
		return fmt.Errorf("celebrity threshold must be positive, got %d", c.CelebrityThreshold)
	}
	if c.FanoutBatchSize <= 0 || c.FetchMaxWorkers <= 0 || c.ConsumerWorkers <= 0 {
		return fmt.Errorf("batch size, fetch workers and consumer workers must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
