package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	domainconfig "mindmap-backend/domain/config"
)

// Persistence and event bus backends
const (
	BackendMemory      = "memory"
	BackendSQLite      = "sqlite"
	BackendDynamoDB    = "dynamodb"
	BackendEventBridge = "eventbridge"
)

// Config holds all application configuration
type Config struct {
	Environment string `yaml:"environment"`
	IsLambda    bool   `yaml:"-"`

	Server      ServerConfig      `yaml:"server"`
	Logging     LoggingConfig     `yaml:"logging"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Events      EventsConfig      `yaml:"events"`
	AWS         AWSConfig         `yaml:"aws"`
	Model       ModelConfig       `yaml:"model"`
	Breaker     BreakerConfig     `yaml:"breaker"`
	Reconciler  ReconcilerConfig  `yaml:"reconciler"`

	// ConfigFile is the YAML file the configuration was layered from, if any
	ConfigFile string `yaml:"-"`
}

// ServerConfig configures the HTTP server
type ServerConfig struct {
	Address        string        `yaml:"address"`
	EnableCORS     bool          `yaml:"enableCors"`
	AllowedOrigins []string      `yaml:"allowedOrigins"`
	ReadTimeout    time.Duration `yaml:"readTimeout"`
	WriteTimeout   time.Duration `yaml:"writeTimeout"`
	MaxBodyBytes   int64         `yaml:"maxBodyBytes"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// PersistenceConfig selects the snapshot repository
type PersistenceConfig struct {
	Backend       string `yaml:"backend"`
	SQLitePath    string `yaml:"sqlitePath"`
	DynamoDBTable string `yaml:"dynamodbTable"`
}

// EventsConfig selects the event bus
type EventsConfig struct {
	Backend string `yaml:"backend"`
	BusName string `yaml:"busName"`
	Source  string `yaml:"source"`
}

// AWSConfig configures the AWS SDK
type AWSConfig struct {
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// ModelConfig configures the completion service
type ModelConfig struct {
	BaseURL           string        `yaml:"baseUrl"`
	APIKey            string        `yaml:"apiKey"`
	Model             string        `yaml:"model"`
	Temperature       float64       `yaml:"temperature"`
	MaxTokens         int           `yaml:"maxTokens"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute int           `yaml:"requestsPerMinute"`
	Burst             int           `yaml:"burst"`
}

// BreakerConfig configures the circuit breaker around the completion client
type BreakerConfig struct {
	MaxRequests      uint32        `yaml:"maxRequests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failureThreshold"`
}

// ReconcilerConfig overrides domain tunables; zero values keep the defaults
type ReconcilerConfig struct {
	AnchorThreshold     float64 `yaml:"anchorThreshold"`
	ConversationWindow  int     `yaml:"conversationWindow"`
	MaxNodesPerGraph    int     `yaml:"maxNodesPerGraph"`
	TrustRootParentRefs bool    `yaml:"trustRootParentRefs"`
}

// DefaultConfig returns the configuration used before any file or
// environment overrides
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Address:        ":8080",
			EnableCORS:     true,
			AllowedOrigins: []string{"*"},
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   90 * time.Second,
			MaxBodyBytes:   1 << 20,
		},
		Logging: LoggingConfig{Level: "info"},
		Persistence: PersistenceConfig{
			Backend:       BackendMemory,
			SQLitePath:    "mindmap.db",
			DynamoDBTable: "mindmap-sessions",
		},
		Events: EventsConfig{
			Backend: BackendMemory,
			BusName: "mindmap-events",
			Source:  "mindmap.backend",
		},
		AWS: AWSConfig{Region: "us-west-2"},
		Model: ModelConfig{
			BaseURL:           "http://localhost:11434/v1",
			Model:             "llama3.2",
			Temperature:       0.7,
			MaxTokens:         1024,
			Timeout:           60 * time.Second,
			RequestsPerMinute: 30,
			Burst:             5,
		},
		Breaker: BreakerConfig{
			MaxRequests:      1,
			Interval:         time.Minute,
			Timeout:          30 * time.Second,
			FailureThreshold: 5,
		},
	}
}

// LoadConfig loads configuration from defaults, the optional YAML file named
// by CONFIG_FILE and environment variables, in increasing priority
func LoadConfig() (*Config, error) {
	return LoadFrom(getEnv("CONFIG_FILE", ""))
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

// LoadFrom is LoadConfig with an explicit file path; an empty path skips the file
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
		cfg.ConfigFile = path
	}

	cfg.loadEnvironmentVariables()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnvironmentVariables() {
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.IsLambda = getEnvBool("IS_LAMBDA", getEnv("AWS_LAMBDA_FUNCTION_NAME", "") != "")

	c.Server.Address = getEnv("SERVER_ADDRESS", c.Server.Address)
	c.Server.EnableCORS = getEnvBool("ENABLE_CORS", c.Server.EnableCORS)
	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		c.Server.AllowedOrigins = strings.Split(origins, ",")
	}
	c.Logging.Level = getEnv("LOG_LEVEL", c.Logging.Level)

	c.Persistence.Backend = getEnv("PERSISTENCE_BACKEND", c.Persistence.Backend)
	c.Persistence.SQLitePath = getEnv("SQLITE_PATH", c.Persistence.SQLitePath)
	c.Persistence.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", c.Persistence.DynamoDBTable))

	c.Events.Backend = getEnv("EVENT_BACKEND", c.Events.Backend)
	c.Events.BusName = getEnv("EVENT_BUS_NAME", c.Events.BusName)

	c.AWS.Region = getEnv("AWS_REGION", c.AWS.Region)
	c.AWS.Endpoint = getEnv("AWS_ENDPOINT_URL", c.AWS.Endpoint)

	c.Model.BaseURL = getEnv("MODEL_BASE_URL", c.Model.BaseURL)
	c.Model.APIKey = getEnv("MODEL_API_KEY", c.Model.APIKey)
	c.Model.Model = getEnv("MODEL_NAME", c.Model.Model)
	c.Model.Temperature = getEnvFloat("MODEL_TEMPERATURE", c.Model.Temperature)
	c.Model.Timeout = getEnvDuration("MODEL_TIMEOUT", c.Model.Timeout)
	c.Model.RequestsPerMinute = getEnvInt("MODEL_REQUESTS_PER_MINUTE", c.Model.RequestsPerMinute)

	c.Reconciler.AnchorThreshold = getEnvFloat("ANCHOR_THRESHOLD", c.Reconciler.AnchorThreshold)
	c.Reconciler.ConversationWindow = getEnvInt("CONVERSATION_WINDOW", c.Reconciler.ConversationWindow)
}

// Validate checks that every selected backend has what it needs
func (c *Config) Validate() error {
	switch c.Persistence.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Persistence.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required for the sqlite backend")
		}
	case BackendDynamoDB:
		if c.Persistence.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required for the dynamodb backend")
		}
	default:
		return fmt.Errorf("unknown persistence backend %q", c.Persistence.Backend)
	}

	switch c.Events.Backend {
	case BackendMemory:
	case BackendEventBridge:
		if c.Events.BusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required for the eventbridge backend")
		}
	default:
		return fmt.Errorf("unknown event backend %q", c.Events.Backend)
	}

	return c.Model.Validate()
}

// Validate checks the completion settings
func (m ModelConfig) Validate() error {
	if m.BaseURL == "" {
		return fmt.Errorf("MODEL_BASE_URL is required")
	}
	if m.Model == "" {
		return fmt.Errorf("MODEL_NAME is required")
	}
	if m.Temperature < 0 || m.Temperature > 2 {
		return fmt.Errorf("model temperature must be between 0 and 2")
	}
	return nil
}

// Domain returns the domain tunables for this environment with overrides applied
func (c *Config) Domain() *domainconfig.DomainConfig {
	d := domainconfig.LoadDomainConfig(c.Environment)
	if c.Reconciler.AnchorThreshold > 0 {
		d.AnchorThreshold = c.Reconciler.AnchorThreshold
	}
	if c.Reconciler.ConversationWindow > 0 {
		d.ConversationWindow = c.Reconciler.ConversationWindow
	}
	if c.Reconciler.MaxNodesPerGraph > 0 {
		d.MaxNodesPerGraph = c.Reconciler.MaxNodesPerGraph
	}
	d.TrustRootParentRefs = c.Reconciler.TrustRootParentRefs
	return d
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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
