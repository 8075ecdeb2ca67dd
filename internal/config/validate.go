package config

import (
	"errors"
	"fmt"
)

/*
Validate checks the settings the service cannot run without:
- classifier provider, mode and model
- provider credentials
- retry bounds
- reply settings
- worker queues when Redis is configured
- kafka brokers/topic when publishing is enabled
- pricing entries, if present
*/
func (c *Config) Validate() error {
	switch c.Classifier.Provider {
	case "openai":
		if c.OpenAI.APIKey == "" {
			return errors.New("openai.api_key (or OPENAI_API_KEY) is required when classifier.provider is openai")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return errors.New("gemini.api_key (or GEMINI_API_KEY) is required when classifier.provider is gemini")
		}
	case "heuristic":
	default:
		return fmt.Errorf("classifier.provider must be one of openai, gemini, heuristic (got %q)", c.Classifier.Provider)
	}

	if c.Classifier.Provider != "heuristic" && c.Classifier.Model == "" {
		return errors.New("classifier.model is required")
	}
	if c.Classifier.Mode != "single" && c.Classifier.Mode != "staged" {
		return fmt.Errorf("classifier.mode must be single or staged (got %q)", c.Classifier.Mode)
	}
	if c.Classifier.Temperature < 0 || c.Classifier.Temperature > 2 {
		return fmt.Errorf("classifier.temperature must be within [0,2] (got %v)", c.Classifier.Temperature)
	}
	if c.Classifier.Timeout <= 0 {
		return errors.New("classifier.timeout must be positive")
	}

	// Retry config
	if c.Retry.MaxAttempts <= 0 {
		return errors.New("retry.max_attempts must be a positive integer")
	}
	if c.Retry.BaseDelay < 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry.base_delay (%s) must be non-negative and not exceed retry.max_delay (%s)", c.Retry.BaseDelay, c.Retry.MaxDelay)
	}

	// Reply config
	if c.Reply.Mode != "llm" && c.Reply.Mode != "template" {
		return fmt.Errorf("reply.mode must be llm or template (got %q)", c.Reply.Mode)
	}
	if c.Reply.MaxSentences < 0 {
		return errors.New("reply.max_sentences must not be negative")
	}

	// Worker config, only relevant with Redis
	if c.Redis.Address != "" {
		if c.Worker.Concurrency <= 0 {
			return errors.New("worker.concurrency must be a positive integer")
		}
		if c.Worker.Queue == "" {
			return errors.New("worker.queue is required when redis.address is set")
		}
		if len(c.Worker.Queues) == 0 {
			return errors.New("worker.queues must define at least one queue")
		}
		for name, priority := range c.Worker.Queues {
			if name == "" {
				return errors.New("worker.queues contains an empty queue name")
			}
			if priority <= 0 {
				return fmt.Errorf("worker.queues priority for queue '%s' must be positive", name)
			}
		}
		if _, ok := c.Worker.Queues[c.Worker.Queue]; !ok {
			return fmt.Errorf("worker.queue '%s' is not listed in worker.queues", c.Worker.Queue)
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka.brokers is required when kafka.enabled is true")
		}
		if c.Kafka.Topic == "" {
			return errors.New("kafka.topic is required when kafka.enabled is true")
		}
	}

	for provider, models := range c.Pricing {
		for model, price := range models {
			if model == "" {
				return fmt.Errorf("pricing for provider '%s' contains an empty model name", provider)
			}
			if price.InputPerToken < 0 || price.OutputPerToken < 0 {
				return fmt.Errorf("pricing for provider '%s', model '%s' has negative token cost", provider, model)
			}
		}
	}

	return nil
}
