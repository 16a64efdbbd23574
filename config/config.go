package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Workflow modes select the appointment state graph.
const (
	WorkflowReview     = "review"
	WorkflowScheduling = "scheduling"
)

// Cancellation policies.
const (
	CancelPolicyStatus        = "status"
	CancelPolicyAdvanceNotice = "advance_notice"
)

// Technician assignment policies.
const (
	AssignFirst       = "first"
	AssignRoundRobin  = "round_robin"
	AssignLeastLoaded = "least_loaded"
)

// AppConfig holds the application configuration
type AppConfig struct {
	Env      string `env:"ENV" envDefault:"production"`
	HTTPPort string `env:"HTTP_PORT" envDefault:"8930"`

	DBURL string `env:"DB_URL"`

	Redis RedisConfig

	// SymmetricKey verifies PASETO v2 local tokens issued by the identity service.
	SymmetricKey string `env:"SYMMETRIC_KEY"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RateLimitRPS   float64  `env:"RATE_LIMIT_RPS" envDefault:"15"`
	RateLimitBurst int      `env:"RATE_LIMIT_BURST" envDefault:"30"`

	Workflow WorkflowConfig

	Mail MailConfig

	RabbitMQ RabbitMQConfig
}

type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"5"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"30s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"10s"`
	MaxRetries   int           `env:"REDIS_MAX_RETRIES" envDefault:"3"`
}

// WorkflowConfig tunes the appointment admission and lifecycle rules.
type WorkflowConfig struct {
	Mode              string        `env:"WORKFLOW_MODE" envDefault:"review"`
	ConflictThreshold int           `env:"SLOT_CONFLICT_THRESHOLD" envDefault:"15"`
	MinDuration       int           `env:"APPOINTMENT_MIN_DURATION" envDefault:"15"`
	MaxDuration       int           `env:"APPOINTMENT_MAX_DURATION" envDefault:"120"`
	DefaultDuration   int           `env:"APPOINTMENT_DEFAULT_DURATION" envDefault:"30"`
	CancelPolicy      string        `env:"CANCEL_POLICY" envDefault:"status"`
	CancelNotice      time.Duration `env:"CANCEL_NOTICE" envDefault:"24h"`
	AssignmentPolicy  string        `env:"ASSIGNMENT_POLICY" envDefault:"round_robin"`
}

// MailConfig configures operator alerts. Alerts are disabled when Host is empty.
type MailConfig struct {
	Host      string `env:"SMTP_HOST"`
	Port      int    `env:"SMTP_PORT" envDefault:"587"`
	User      string `env:"SMTP_USER"`
	Password  string `env:"SMTP_PASS"`
	From      string `env:"SMTP_FROM"`
	OpsAlerts string `env:"OPS_ALERT_EMAIL"`
}

type RabbitMQConfig struct {
	Enabled  bool   `env:"RABBITMQ_ENABLED"`
	URL      string `env:"RABBITMQ_URL"`
	Exchange string `env:"RABBITMQ_EXCHANGE" envDefault:"carechain.workflow"`
	// Directory changes published by the identity service evict cached users.
	DirectoryExchange string `env:"RABBITMQ_DIRECTORY_EXCHANGE" envDefault:"identity.events"`
	DirectoryQueue    string `env:"RABBITMQ_DIRECTORY_QUEUE" envDefault:"carechain.directory"`
	DirectoryBinding  string `env:"RABBITMQ_DIRECTORY_BINDING" envDefault:"identity.user.*"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*AppConfig, error) {
	// .env is optional outside local development
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.Env = strings.ToLower(cfg.Env)
	cfg.Workflow.Mode = strings.ToLower(cfg.Workflow.Mode)
	cfg.Workflow.CancelPolicy = strings.ToLower(cfg.Workflow.CancelPolicy)
	cfg.Workflow.AssignmentPolicy = strings.ToLower(cfg.Workflow.AssignmentPolicy)

	if err := cfg.Workflow.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateServe checks the settings the HTTP server cannot start without.
func (c *AppConfig) ValidateServe() error {
	if c.DBURL == "" {
		return fmt.Errorf("missing DB_URL environment variable")
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("missing REDIS_URL environment variable")
	}
	if len(c.SymmetricKey) != 32 {
		return fmt.Errorf("SYMMETRIC_KEY must be 32 bytes long, got %d", len(c.SymmetricKey))
	}
	if c.RabbitMQ.Enabled && c.RabbitMQ.URL == "" {
		return fmt.Errorf("RABBITMQ_URL is required when RABBITMQ_ENABLED is set")
	}
	return nil
}

func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

func (w WorkflowConfig) Validate() error {
	switch w.Mode {
	case WorkflowReview, WorkflowScheduling:
	default:
		return fmt.Errorf("invalid WORKFLOW_MODE %q", w.Mode)
	}
	switch w.CancelPolicy {
	case CancelPolicyStatus, CancelPolicyAdvanceNotice:
	default:
		return fmt.Errorf("invalid CANCEL_POLICY %q", w.CancelPolicy)
	}
	switch w.AssignmentPolicy {
	case AssignFirst, AssignRoundRobin, AssignLeastLoaded:
	default:
		return fmt.Errorf("invalid ASSIGNMENT_POLICY %q", w.AssignmentPolicy)
	}
	if w.ConflictThreshold <= 0 {
		return fmt.Errorf("SLOT_CONFLICT_THRESHOLD must be positive")
	}
	if w.MinDuration <= 0 || w.MaxDuration < w.MinDuration {
		return fmt.Errorf("invalid appointment duration bounds %d..%d", w.MinDuration, w.MaxDuration)
	}
	if w.DefaultDuration < w.MinDuration || w.DefaultDuration > w.MaxDuration {
		return fmt.Errorf("APPOINTMENT_DEFAULT_DURATION %d outside %d..%d", w.DefaultDuration, w.MinDuration, w.MaxDuration)
	}
	return nil
}
