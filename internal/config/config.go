package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PricingInfo holds cost details per token for a specific model.
type PricingInfo struct {
	InputPerToken  float64 `mapstructure:"input_per_token"`
	OutputPerToken float64 `mapstructure:"output_per_token"`
}

// PromptFiles optionally overrides the built-in prompt templates.
// Empty values keep the built-in text.
type PromptFiles struct {
	Single         string `mapstructure:"single"`
	Classify       string `mapstructure:"classify"`
	ExtractBug     string `mapstructure:"extract_bug"`
	ExtractFeature string `mapstructure:"extract_feature"`
	ExtractInquiry string `mapstructure:"extract_inquiry"`
	ReplyBug       string `mapstructure:"reply_bug"`
	ReplyFeature   string `mapstructure:"reply_feature"`
	ReplyInquiry   string `mapstructure:"reply_inquiry"`
}

type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
		Port string `mapstructure:"port"`
		Mode string `mapstructure:"mode"` // gin mode: debug, release, test
	} `mapstructure:"server"`

	Classifier struct {
		Provider    string        `mapstructure:"provider"` // "openai", "gemini" or "heuristic"
		Model       string        `mapstructure:"model"`
		Mode        string        `mapstructure:"mode"` // "single" or "staged"
		Temperature float32       `mapstructure:"temperature"`
		MaxTokens   int           `mapstructure:"max_tokens"`
		Timeout     time.Duration `mapstructure:"timeout"`
		Prompts     PromptFiles   `mapstructure:"prompts"`
	} `mapstructure:"classifier"`

	OpenAI struct {
		APIKey  string `mapstructure:"api_key"`
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"openai"`

	Gemini struct {
		APIKey string `mapstructure:"api_key"`
	} `mapstructure:"gemini"`

	Retry struct {
		MaxAttempts int           `mapstructure:"max_attempts"`
		BaseDelay   time.Duration `mapstructure:"base_delay"`
		MaxDelay    time.Duration `mapstructure:"max_delay"`
	} `mapstructure:"retry"`

	Reply struct {
		Mode         string  `mapstructure:"mode"` // "llm" or "template", used by the staged classifier
		Model        string  `mapstructure:"model"`
		Temperature  float32 `mapstructure:"temperature"`
		MaxTokens    int     `mapstructure:"max_tokens"`
		MaxSentences int     `mapstructure:"max_sentences"`
	} `mapstructure:"reply"`

	Resources struct {
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"resources"`

	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Worker struct {
		Concurrency     int            `mapstructure:"concurrency"`
		Queue           string         `mapstructure:"queue"`
		Queues          map[string]int `mapstructure:"queues"`
		MaxRetry        int            `mapstructure:"max_retry"`
		TaskTimeout     time.Duration  `mapstructure:"task_timeout"`
		ResultRetention time.Duration  `mapstructure:"result_retention"`
	} `mapstructure:"worker"`

	Kafka struct {
		Enabled bool     `mapstructure:"enabled"`
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"` // "text" or "json"
	} `mapstructure:"log"`

	// Pricing: map[provider][model] = struct{input_per_token, output_per_token}
	Pricing map[string]map[string]PricingInfo `mapstructure:"pricing"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")

	v.SetDefault("classifier.provider", "openai")
	v.SetDefault("classifier.model", "gpt-4-turbo")
	v.SetDefault("classifier.mode", "single")
	v.SetDefault("classifier.temperature", 0.2)
	v.SetDefault("classifier.max_tokens", 1024)
	v.SetDefault("classifier.timeout", "60s")

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("retry.max_delay", "10s")

	v.SetDefault("reply.mode", "llm")
	v.SetDefault("reply.temperature", 0.7)
	v.SetDefault("reply.max_tokens", 200)
	v.SetDefault("reply.max_sentences", 4)

	v.SetDefault("resources.base_url", "https://example.com")

	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("worker.concurrency", 10)
	v.SetDefault("worker.queue", "classification")
	v.SetDefault("worker.queues", map[string]int{"classification": 1})
	v.SetDefault("worker.max_retry", 3)
	v.SetDefault("worker.task_timeout", "2m")
	v.SetDefault("worker.result_retention", "24h")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "customer-messages.classified")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// LoadConfig reads config.yaml from the working directory (if present) and
// the environment. Environment variables use the TRIAGE_ prefix, e.g.
// TRIAGE_CLASSIFIER_MODEL.
func LoadConfig() (*Config, error) {
	return LoadConfigFile("")
}

// LoadConfigFile is LoadConfig with an explicit config file path. An empty
// path falls back to ./config.yaml.
func LoadConfigFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TRIAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys are commonly exported without the prefix.
	v.BindEnv("openai.api_key", "TRIAGE_OPENAI_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("gemini.api_key", "TRIAGE_GEMINI_API_KEY", "GEMINI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine when it was not requested explicitly.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if config.Reply.Model == "" {
		config.Reply.Model = config.Classifier.Model
	}
	return &config, nil
}
