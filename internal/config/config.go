// Package config provides configuration for the analyst service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// SynthesisConfig tunes the coordinator's response rendering.
type SynthesisConfig struct {
	CostSavingsThresholdPercent float64 `yaml:"cost_savings_threshold_percent"`
	ImpactScoreThreshold        float64 `yaml:"impact_score_threshold"`
	MaxRecommendations          int     `yaml:"max_recommendations"`
}

// Config holds the analyst service configuration.
type Config struct {
	// Server settings
	HTTPPort int `yaml:"http_port"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// Upstream services
	WarehouseURL string `yaml:"warehouse_url"`
	LLMBaseURL   string `yaml:"llm_base_url"`
	LLMAPIKey    string `yaml:"llm_api_key"`
	LLMModel     string `yaml:"llm_model"`

	// Timeouts. Set from *_ms keys in YAML and env, see durationsMs.
	AgentTimeout        time.Duration `yaml:"-"`
	QueryTimeout        time.Duration `yaml:"-"`
	OptimizationTimeout time.Duration `yaml:"-"`
	ImpactTimeout       time.Duration `yaml:"-"`
	LLMTimeout          time.Duration `yaml:"-"`
	WarehouseTimeout    time.Duration `yaml:"-"`

	// Sessions and history
	SessionTimeout         time.Duration `yaml:"-"`
	SessionCleanupInterval time.Duration `yaml:"-"`
	HistoryMaxAge          time.Duration `yaml:"-"`
	HistoryCleanupInterval time.Duration `yaml:"-"`
	HistoryMaxSize         int           `yaml:"history_max_size"`

	// Query execution
	MaxResultRows int `yaml:"max_result_rows"`

	// Workflow defaults
	EnableOptimization   bool `yaml:"enable_optimization"`
	EnableImpactAnalysis bool `yaml:"enable_impact_analysis"`

	Synthesis SynthesisConfig `yaml:"synthesis"`

	// Logging
	LogLevel string `yaml:"log_level"`
}

// Load loads configuration from environment variables, optionally
// layered on top of a YAML file named by CONFIG_FILE. Environment
// variables win.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:             8080,
		DatabaseURL:          "file:analyst.db?cache=shared&mode=rwc",
		WarehouseURL:         "http://localhost:8090",
		LLMBaseURL:           "http://localhost:8091",
		LLMModel:             "gpt-4o-mini",
		HistoryMaxSize:       100,
		MaxResultRows:        1000,
		EnableOptimization:   true,
		EnableImpactAnalysis: true,
		Synthesis: SynthesisConfig{
			CostSavingsThresholdPercent: 10,
			ImpactScoreThreshold:        0.5,
			MaxRecommendations:          3,
		},
		LogLevel: "info",
	}

	// Durations are exposed to the YAML file as millisecond integers,
	// matching the env variable units.
	ms := durationsMs{
		AgentTimeoutMs:           300000,
		QueryTimeoutMs:           120000,
		OptimizationTimeoutMs:    60000,
		ImpactTimeoutMs:          120000,
		LLMTimeoutMs:             60000,
		WarehouseTimeoutMs:       60000,
		SessionTimeoutMs:         int((24 * time.Hour).Milliseconds()),
		SessionCleanupIntervalMs: int(time.Hour.Milliseconds()),
		HistoryMaxAgeMs:          int((24 * time.Hour).Milliseconds()),
		HistoryCleanupIntervalMs: int(time.Hour.Milliseconds()),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &ms); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.WarehouseURL = getEnv("WAREHOUSE_URL", cfg.WarehouseURL)
	cfg.LLMBaseURL = getEnv("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMAPIKey = getEnv("LLM_API_KEY", cfg.LLMAPIKey)
	cfg.LLMModel = getEnv("LLM_MODEL", cfg.LLMModel)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.HistoryMaxSize = getEnvInt("HISTORY_MAX_SIZE", cfg.HistoryMaxSize)
	cfg.MaxResultRows = getEnvInt("MAX_RESULT_ROWS", cfg.MaxResultRows)
	cfg.EnableOptimization = getEnvBool("ENABLE_OPTIMIZATION", cfg.EnableOptimization)
	cfg.EnableImpactAnalysis = getEnvBool("ENABLE_IMPACT_ANALYSIS", cfg.EnableImpactAnalysis)

	cfg.AgentTimeout = time.Duration(getEnvInt("AGENT_TIMEOUT_MS", ms.AgentTimeoutMs)) * time.Millisecond
	cfg.QueryTimeout = time.Duration(getEnvInt("QUERY_TIMEOUT_MS", ms.QueryTimeoutMs)) * time.Millisecond
	cfg.OptimizationTimeout = time.Duration(getEnvInt("OPTIMIZATION_TIMEOUT_MS", ms.OptimizationTimeoutMs)) * time.Millisecond
	cfg.ImpactTimeout = time.Duration(getEnvInt("IMPACT_TIMEOUT_MS", ms.ImpactTimeoutMs)) * time.Millisecond
	cfg.LLMTimeout = time.Duration(getEnvInt("LLM_TIMEOUT_MS", ms.LLMTimeoutMs)) * time.Millisecond
	cfg.WarehouseTimeout = time.Duration(getEnvInt("WAREHOUSE_TIMEOUT_MS", ms.WarehouseTimeoutMs)) * time.Millisecond

	cfg.SessionTimeout = time.Duration(getEnvInt("SESSION_TIMEOUT_MS", ms.SessionTimeoutMs)) * time.Millisecond
	cfg.SessionCleanupInterval = time.Duration(getEnvInt("SESSION_CLEANUP_INTERVAL_MS", ms.SessionCleanupIntervalMs)) * time.Millisecond
	cfg.HistoryMaxAge = time.Duration(getEnvInt("HISTORY_MAX_AGE_MS", ms.HistoryMaxAgeMs)) * time.Millisecond
	cfg.HistoryCleanupInterval = time.Duration(getEnvInt("HISTORY_CLEANUP_INTERVAL_MS", ms.HistoryCleanupIntervalMs)) * time.Millisecond

	return cfg, nil
}

// durationsMs mirrors the duration settings in millisecond integers for
// the YAML file.
type durationsMs struct {
	AgentTimeoutMs           int `yaml:"agent_timeout_ms"`
	QueryTimeoutMs           int `yaml:"query_timeout_ms"`
	OptimizationTimeoutMs    int `yaml:"optimization_timeout_ms"`
	ImpactTimeoutMs          int `yaml:"impact_timeout_ms"`
	LLMTimeoutMs             int `yaml:"llm_timeout_ms"`
	WarehouseTimeoutMs       int `yaml:"warehouse_timeout_ms"`
	SessionTimeoutMs         int `yaml:"session_timeout_ms"`
	SessionCleanupIntervalMs int `yaml:"session_cleanup_interval_ms"`
	HistoryMaxAgeMs          int `yaml:"history_max_age_ms"`
	HistoryCleanupIntervalMs int `yaml:"history_cleanup_interval_ms"`
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

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if boolVal, err := strconv.ParseBool(val); err == nil {
			return boolVal
		}
	}
	return defaultVal
}
