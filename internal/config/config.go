// Package config provides configuration for the support engine.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/namanjain27/EchoPilot/internal/domain"
)

// Config holds the engine configuration.
type Config struct {
	// Server settings
	HTTPPort     int `yaml:"http_port"`
	InternalPort int `yaml:"internal_port"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// Env selects the log encoder ("production" or "development").
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
	// MockMode swaps every model and external system for in-process fakes.
	MockMode bool `yaml:"mock_mode"`

	// ExternalTimeout bounds every call to retrieval, the ticket system and summary storage.
	ExternalTimeout time.Duration `yaml:"external_timeout"`

	LLM        LLMConfig        `yaml:"llm"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Qdrant     QdrantConfig     `yaml:"qdrant"`
	Jira       JiraConfig       `yaml:"jira"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Summary    SummaryConfig    `yaml:"summary"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Validation ValidationConfig `yaml:"validation"`
	Agent      AgentConfig      `yaml:"agent"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Session    SessionConfig    `yaml:"session"`
	Health     HealthConfig     `yaml:"health"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
}

// LLMConfig points at an OpenAI-compatible (LiteLLM) endpoint.
type LLMConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	Timeout        time.Duration `yaml:"timeout"`
}

// GeminiConfig enables the genai backend for embeddings and plain generation.
type GeminiConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// QdrantConfig configures the vector store.
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
	K          int    `yaml:"k"`
}

// JiraConfig configures the external ticket system.
type JiraConfig struct {
	URL        string `yaml:"url"`
	Email      string `yaml:"email"`
	APIToken   string `yaml:"api_token"`
	ProjectKey string `yaml:"project_key"`
	IssueType  string `yaml:"issue_type"`
}

// KafkaConfig configures the ticket event publisher. No brokers disables it.
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	TicketTopic string   `yaml:"ticket_topic"`
}

// SummaryConfig selects the summary persistence backend.
type SummaryConfig struct {
	Backend       string `yaml:"backend"` // sqlite or redis
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
}

// ScoringConfig holds relevance weights and the minimum combined score.
type ScoringConfig struct {
	SemanticWeight float64 `yaml:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
	QualityWeight  float64 `yaml:"quality_weight"`
	RecencyWeight  float64 `yaml:"recency_weight"`
	Threshold      float64 `yaml:"threshold"`
}

// ValidationConfig holds the complaint signal fusion thresholds.
type ValidationConfig struct {
	AIPrimaryThreshold      float64 `yaml:"ai_primary_threshold"`
	PatternPrimaryThreshold float64 `yaml:"pattern_primary_threshold"`
	CombinedThreshold       float64 `yaml:"combined_threshold"`
}

// AgentConfig bounds the reason/act loop.
type AgentConfig struct {
	MaxRounds   int           `yaml:"max_rounds"`
	ToolTimeout time.Duration `yaml:"tool_timeout"`
}

// ChunkingConfig controls document splitting.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// SessionConfig controls idle eviction.
type SessionConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// HealthConfig controls outage surfacing.
type HealthConfig struct {
	// DegradedAfter is the number of consecutive failures that marks a dependency unhealthy.
	DegradedAfter int `yaml:"degraded_after"`
}

// WebSocketConfig controls the chat socket.
type WebSocketConfig struct {
	// APIKey, when set, must be presented in the hello message.
	APIKey         string        `yaml:"api_key"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:        8080,
		InternalPort:    8081,
		DatabaseURL:     "file:echopilot.db?cache=shared&mode=rwc",
		Env:             "development",
		LogLevel:        "info",
		ExternalTimeout: 15 * time.Second,
		LLM: LLMConfig{
			BaseURL:        "http://localhost:4000",
			Model:          "gemini-2.5-flash",
			EmbeddingModel: "text-embedding-004",
			Timeout:        60 * time.Second,
		},
		Gemini: GeminiConfig{
			Model:          "gemini-2.5-flash",
			EmbeddingModel: "text-embedding-004",
		},
		Qdrant: QdrantConfig{
			URL:        "http://localhost:6333",
			Collection: "echopilot_kb",
			K:          4,
		},
		Jira: JiraConfig{
			IssueType: "Story",
		},
		Kafka: KafkaConfig{
			TicketTopic: "echopilot-tickets",
		},
		Summary: SummaryConfig{
			Backend:   "sqlite",
			RedisAddr: "localhost:6379",
		},
		Scoring: ScoringConfig{
			SemanticWeight: 0.5,
			KeywordWeight:  0.2,
			QualityWeight:  0.15,
			RecencyWeight:  0.15,
			Threshold:      0.4,
		},
		Validation: ValidationConfig{
			AIPrimaryThreshold:      0.7,
			PatternPrimaryThreshold: 0.7,
			CombinedThreshold:       0.4,
		},
		Agent: AgentConfig{
			MaxRounds:   6,
			ToolTimeout: 30 * time.Second,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Session: SessionConfig{
			TTL:           24 * time.Hour,
			SweepInterval: time.Minute,
		},
		Health: HealthConfig{
			DegradedAfter: 5,
		},
		WebSocket: WebSocketConfig{
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			PingInterval:   30 * time.Second,
			MaxMessageSize: 64 * 1024,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file
// (ECHOPILOT_CONFIG, default config.yaml) and environment variables.
func Load() (*Config, error) {
	cfg := Default()

	path := getEnv("ECHOPILOT_CONFIG", "config.yaml")
	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &domain.ConfigurationError{Field: path, Message: err.Error()}
		}
	}

	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.InternalPort = getEnvInt("INTERNAL_PORT", cfg.InternalPort)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.Env = getEnv("ECHOPILOT_ENV", cfg.Env)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.MockMode = getEnvBool("ECHOPILOT_MOCK", cfg.MockMode)
	cfg.ExternalTimeout = getEnvMs("EXTERNAL_TIMEOUT_MS", cfg.ExternalTimeout)

	cfg.LLM.BaseURL = getEnv("LITELLM_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("LITELLM_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.EmbeddingModel = getEnv("LLM_EMBEDDING_MODEL", cfg.LLM.EmbeddingModel)
	cfg.LLM.Timeout = getEnvMs("LLM_TIMEOUT_MS", cfg.LLM.Timeout)

	cfg.Gemini.APIKey = getEnv("GEMINI_API_KEY", cfg.Gemini.APIKey)
	cfg.Gemini.Model = getEnv("GEMINI_MODEL", cfg.Gemini.Model)
	cfg.Gemini.EmbeddingModel = getEnv("GEMINI_EMBEDDING_MODEL", cfg.Gemini.EmbeddingModel)

	cfg.Qdrant.URL = getEnv("QDRANT_URL", cfg.Qdrant.URL)
	cfg.Qdrant.APIKey = getEnv("QDRANT_API_KEY", cfg.Qdrant.APIKey)
	cfg.Qdrant.Collection = getEnv("QDRANT_COLLECTION", cfg.Qdrant.Collection)
	cfg.Qdrant.K = getEnvInt("RETRIEVAL_K", cfg.Qdrant.K)

	cfg.Jira.URL = getEnv("JIRA_URL", cfg.Jira.URL)
	cfg.Jira.Email = getEnv("JIRA_EMAIL", cfg.Jira.Email)
	cfg.Jira.APIToken = getEnv("JIRA_API_TOKEN", cfg.Jira.APIToken)
	cfg.Jira.ProjectKey = getEnv("JIRA_PROJECT_KEY", cfg.Jira.ProjectKey)

	cfg.Kafka.Brokers = getEnvList("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.TicketTopic = getEnv("KAFKA_TICKET_TOPIC", cfg.Kafka.TicketTopic)

	cfg.Summary.Backend = getEnv("SUMMARY_BACKEND", cfg.Summary.Backend)
	cfg.Summary.RedisAddr = getEnv("REDIS_ADDR", cfg.Summary.RedisAddr)
	cfg.Summary.RedisPassword = getEnv("REDIS_PASSWORD", cfg.Summary.RedisPassword)
	cfg.Summary.RedisDB = getEnvInt("REDIS_DB", cfg.Summary.RedisDB)

	cfg.Scoring.SemanticWeight = getEnvFloat("SCORE_WEIGHT_SEMANTIC", cfg.Scoring.SemanticWeight)
	cfg.Scoring.KeywordWeight = getEnvFloat("SCORE_WEIGHT_KEYWORD", cfg.Scoring.KeywordWeight)
	cfg.Scoring.QualityWeight = getEnvFloat("SCORE_WEIGHT_QUALITY", cfg.Scoring.QualityWeight)
	cfg.Scoring.RecencyWeight = getEnvFloat("SCORE_WEIGHT_RECENCY", cfg.Scoring.RecencyWeight)
	cfg.Scoring.Threshold = getEnvFloat("SCORE_THRESHOLD", cfg.Scoring.Threshold)

	cfg.Validation.AIPrimaryThreshold = getEnvFloat("VALIDATION_AI_THRESHOLD", cfg.Validation.AIPrimaryThreshold)
	cfg.Validation.PatternPrimaryThreshold = getEnvFloat("VALIDATION_PATTERN_THRESHOLD", cfg.Validation.PatternPrimaryThreshold)
	cfg.Validation.CombinedThreshold = getEnvFloat("VALIDATION_COMBINED_THRESHOLD", cfg.Validation.CombinedThreshold)

	cfg.Agent.MaxRounds = getEnvInt("AGENT_MAX_ROUNDS", cfg.Agent.MaxRounds)
	cfg.Agent.ToolTimeout = getEnvMs("TOOL_TIMEOUT_MS", cfg.Agent.ToolTimeout)

	cfg.Chunking.Size = getEnvInt("CHUNK_SIZE", cfg.Chunking.Size)
	cfg.Chunking.Overlap = getEnvInt("CHUNK_OVERLAP", cfg.Chunking.Overlap)

	cfg.Session.TTL = getEnvMs("SESSION_TTL_MS", cfg.Session.TTL)
	cfg.Session.SweepInterval = getEnvMs("SESSION_SWEEP_INTERVAL_MS", cfg.Session.SweepInterval)

	cfg.Health.DegradedAfter = getEnvInt("DEGRADED_AFTER", cfg.Health.DegradedAfter)

	cfg.WebSocket.APIKey = getEnv("WS_API_KEY", cfg.WebSocket.APIKey)
	cfg.WebSocket.ReadTimeout = getEnvMs("WS_READ_TIMEOUT_MS", cfg.WebSocket.ReadTimeout)
	cfg.WebSocket.PingInterval = getEnvMs("WS_PING_INTERVAL_MS", cfg.WebSocket.PingInterval)
}

// Validate reports the first invalid setting as a ConfigurationError.
func (c *Config) Validate() error {
	invalid := func(field, format string, args ...interface{}) error {
		return &domain.ConfigurationError{Field: field, Message: fmt.Sprintf(format, args...)}
	}

	if c.HTTPPort <= 0 || c.InternalPort <= 0 {
		return invalid("http_port", "ports must be positive")
	}
	if c.HTTPPort == c.InternalPort {
		return invalid("internal_port", "must differ from http_port")
	}
	if !c.MockMode && strings.TrimSpace(c.LLM.Model) == "" {
		return invalid("llm.model", "a reasoning model is required")
	}

	s := c.Scoring
	for name, w := range map[string]float64{
		"semantic_weight": s.SemanticWeight,
		"keyword_weight":  s.KeywordWeight,
		"quality_weight":  s.QualityWeight,
		"recency_weight":  s.RecencyWeight,
	} {
		if w < 0 {
			return invalid("scoring."+name, "must not be negative")
		}
	}
	if s.SemanticWeight <= s.KeywordWeight || s.SemanticWeight <= s.QualityWeight || s.SemanticWeight <= s.RecencyWeight {
		return invalid("scoring.semantic_weight", "must be the largest weight")
	}
	if s.Threshold < 0 || s.Threshold > 1 {
		return invalid("scoring.threshold", "must be within [0,1], got %v", s.Threshold)
	}

	v := c.Validation
	for name, th := range map[string]float64{
		"ai_primary_threshold":      v.AIPrimaryThreshold,
		"pattern_primary_threshold": v.PatternPrimaryThreshold,
		"combined_threshold":        v.CombinedThreshold,
	} {
		if th < 0 || th > 1 {
			return invalid("validation."+name, "must be within [0,1], got %v", th)
		}
	}

	if c.Agent.MaxRounds < 1 {
		return invalid("agent.max_rounds", "must be at least 1")
	}
	if c.Chunking.Size <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return invalid("chunking.overlap", "must be non-negative and smaller than size")
	}
	if c.Qdrant.K <= 0 {
		return invalid("qdrant.k", "must be positive")
	}
	switch c.Summary.Backend {
	case "sqlite", "redis":
	default:
		return invalid("summary.backend", "unknown backend %q", c.Summary.Backend)
	}
	if c.Session.TTL <= 0 || c.Session.SweepInterval <= 0 {
		return invalid("session.ttl", "ttl and sweep interval must be positive")
	}
	if c.WebSocket.PingInterval >= c.WebSocket.ReadTimeout {
		return invalid("websocket.ping_interval", "must be shorter than read_timeout")
	}
	return nil
}

// JiraEnabled reports whether enough Jira settings are present to create issues.
func (c *Config) JiraEnabled() bool {
	return c.Jira.URL != "" && c.Jira.APIToken != "" && c.Jira.ProjectKey != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvMs(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
