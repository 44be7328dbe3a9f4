package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all gateway settings loaded from config/gateway.yaml with
// GATEWAY_* environment overrides.
type Config struct {
	HTTP struct {
		Addr            string        `mapstructure:"addr"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		WriteTimeout    time.Duration `mapstructure:"write_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"http"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	LLM struct {
		BaseURL     string        `mapstructure:"base_url"`
		Timeout     time.Duration `mapstructure:"timeout"`
		MaxTokens   int           `mapstructure:"max_tokens"`
		Temperature float64       `mapstructure:"temperature"`
	} `mapstructure:"llm"`

	Agent struct {
		BaseURL      string        `mapstructure:"base_url"`
		AgentID      string        `mapstructure:"agent_id"`
		AliasID      string        `mapstructure:"alias_id"`
		Timeout      time.Duration `mapstructure:"timeout"`
		TraceEnabled bool          `mapstructure:"trace_enabled"`
	} `mapstructure:"agent"`

	Rerank struct {
		BaseURL string        `mapstructure:"base_url"`
		Timeout time.Duration `mapstructure:"timeout"`
		TopK    int           `mapstructure:"top_k"`
	} `mapstructure:"rerank"`

	Memory struct {
		Window                 int           `mapstructure:"window"`
		TTL                    time.Duration `mapstructure:"ttl"`
		RetainOnSummaryFailure bool          `mapstructure:"retain_on_summary_failure"`
	} `mapstructure:"memory"`

	Gateway struct {
		UseLLMClassifier bool `mapstructure:"use_llm_classifier"`
		ClarifyAmbiguous bool `mapstructure:"clarify_ambiguous"`
	} `mapstructure:"gateway"`

	RateLimit struct {
		RPS   float64 `mapstructure:"rps"`
		Burst int     `mapstructure:"burst"`
	} `mapstructure:"rate_limit"`

	PromptsPath string `mapstructure:"prompts_path"`
}

// Load reads gateway.yaml from GATEWAY_CONFIG_PATH or ./config/gateway.yaml.
// A missing config file is not an error; defaults and env overrides apply.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfgPath := os.Getenv("GATEWAY_CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "./config/gateway.yaml"
	}
	v.SetConfigFile(cfgPath)
	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(cfgPath); statErr == nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Agent.AgentID == "" {
		return nil, fmt.Errorf("agent.agent_id is required (GATEWAY_AGENT_AGENT_ID)")
	}
	if cfg.Agent.AliasID == "" {
		return nil, fmt.Errorf("agent.alias_id is required (GATEWAY_AGENT_ALIAS_ID)")
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", 30*time.Second)
	v.SetDefault("http.write_timeout", 120*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("llm.base_url", "http://llm-service:8000")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.2)

	v.SetDefault("agent.base_url", "http://agent-runtime:9000")
	v.SetDefault("agent.timeout", 120*time.Second)
	v.SetDefault("agent.trace_enabled", true)

	v.SetDefault("rerank.base_url", "http://rerank-service:8100")
	v.SetDefault("rerank.timeout", 10*time.Second)
	v.SetDefault("rerank.top_k", 5)

	v.SetDefault("memory.window", 10)
	v.SetDefault("memory.ttl", 30*24*time.Hour)
	v.SetDefault("memory.retain_on_summary_failure", false)

	v.SetDefault("gateway.use_llm_classifier", false)
	v.SetDefault("gateway.clarify_ambiguous", true)

	v.SetDefault("rate_limit.rps", 20.0)
	v.SetDefault("rate_limit.burst", 40)

	v.SetDefault("prompts_path", "./config/prompts.yaml")
}
