package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	log "github.com/sirupsen/logrus"

	"triage/internal/config"
	"triage/internal/costtracker"
	"triage/internal/events"
	"triage/internal/inputprocessor"
	"triage/internal/llm"
	"triage/internal/services"
	"triage/internal/store"
	"triage/internal/store/primary"
	"triage/pkg/classifier"
)

type App struct {
	Config *config.Config

	// Optional backends. Nil when not configured.
	UsageStore store.UsageStore
	JobClient  store.JobClient

	CostTracker costtracker.CostTracker
	Publisher   events.Publisher
	// Completions is nil when the heuristic classifier is selected.
	Completions llm.CompletionService
	Classifier  classifier.MessageClassifier
	Processor   inputprocessor.Processor

	// --- Initialized Services ---
	MessageService *services.MessageService
	CostService    *services.CostService

	closers []func() error
}

func NewApp(cfg *config.Config, inputProc inputprocessor.Processor) (*App, error) {
	ctx := context.Background()
	app := &App{Config: cfg}

	if err := ConfigureLogging(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, err
	}
	if err := app.initUsageStore(ctx); err != nil {
		return nil, err
	}
	if err := app.initJobClient(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initPublisher(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initCompletionService(ctx); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initClassifier(); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}
	if err := app.initCoreServices(inputProc); err != nil {
		app.cleanupPartialInit()
		return nil, err
	}

	log.Infof("Application initialization complete (classifier=%s).", app.Classifier.Name())
	return app, nil
}

// ConfigureLogging applies the log level and format to the global logger.
func ConfigureLogging(level, format string) error {
	if level != "" {
		lvl, err := log.ParseLevel(level)
		if err != nil {
			return fmt.Errorf("invalid log.level: %w", err)
		}
		log.SetLevel(lvl)
	}
	switch strings.ToLower(format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("log.format must be text or json (got %q)", format)
	}
	log.SetOutput(os.Stderr)
	return nil
}

// --- Private Helper Methods ---

func (a *App) initUsageStore(ctx context.Context) error {
	cfg := a.Config
	if cfg.Database.DSN == "" {
		log.Debug("database.dsn is empty, AI usage will not be recorded")
		a.CostTracker = costtracker.New()
		return nil
	}
	ps, err := primary.NewPrimaryStore(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("init usage store: %w", err)
	}
	a.UsageStore = ps
	a.closers = append(a.closers, ps.Close)
	a.CostTracker = costtracker.NewLedger(ps, cfg.Pricing)
	return nil
}

func (a *App) initJobClient() error {
	cfg := a.Config
	if cfg.Redis.Address == "" {
		log.Debug("redis.address is empty, async processing disabled")
		return nil
	}
	jc := store.NewAsynqJobClient(a.RedisOpt(), store.JobOptions{
		Queue:     cfg.Worker.Queue,
		MaxRetry:  cfg.Worker.MaxRetry,
		Timeout:   cfg.Worker.TaskTimeout,
		Retention: cfg.Worker.ResultRetention,
	})
	a.JobClient = jc
	a.closers = append(a.closers, jc.Close)
	return nil
}

// RedisOpt returns the asynq connection options from the config.
func (a *App) RedisOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     a.Config.Redis.Address,
		Password: a.Config.Redis.Password,
		DB:       a.Config.Redis.DB,
	}
}

func (a *App) initPublisher() error {
	cfg := a.Config
	if !cfg.Kafka.Enabled {
		a.Publisher = events.NoopPublisher{}
		return nil
	}
	p := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	a.Publisher = p
	a.closers = append(a.closers, p.Close)
	log.Infof("Publishing classified events to Kafka topic %s", cfg.Kafka.Topic)
	return nil
}

func (a *App) initCompletionService(ctx context.Context) error {
	cfg := a.Config

	var provider llm.CompletionService
	switch cfg.Classifier.Provider {
	case "heuristic":
		log.Info("Using the keyword heuristic classifier, no model calls will be made.")
		return nil
	case "openai":
		provider = llm.NewOpenAIProvider(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.Classifier.Model, a.CostTracker)
	case "gemini":
		gp, err := llm.NewGeminiProvider(ctx, cfg.Gemini.APIKey, cfg.Classifier.Model, a.CostTracker)
		if err != nil {
			return fmt.Errorf("init gemini provider: %w", err)
		}
		a.closers = append(a.closers, gp.Close)
		provider = gp
	default:
		return fmt.Errorf("unknown classifier provider: %s", cfg.Classifier.Provider)
	}

	if provider.Status() != llm.ProviderStatusActive {
		return fmt.Errorf("%s provider is %s: %w", provider.Name(), provider.Status(), llm.ErrProviderDisabled)
	}

	a.Completions = llm.NewRetryingService(provider, &llm.ExponentialJitter{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay,
		MaxDelay:    cfg.Retry.MaxDelay,
	})
	log.Infof("Initialized %s completion provider (model: %s)", provider.Name(), provider.ModelName())
	return nil
}

func (a *App) initClassifier() error {
	cfg := a.Config
	templates := services.NewTemplateReplyGenerator()

	if a.Completions == nil {
		h, err := classifier.NewHeuristicClassifier(templates, cfg.Resources.BaseURL)
		if err != nil {
			return fmt.Errorf("init heuristic classifier: %w", err)
		}
		a.Classifier = h
		return nil
	}

	prompts, err := loadPrompts(cfg.Classifier.Prompts)
	if err != nil {
		return err
	}

	var replies classifier.ReplyGenerator = templates
	if cfg.Reply.Mode == "llm" {
		replyPrompts, err := loadReplyPrompts(cfg.Classifier.Prompts)
		if err != nil {
			return err
		}
		replies = services.NewLLMReplyGenerator(a.Completions, services.LLMReplyGeneratorConfig{
			Model:       cfg.Reply.Model,
			Temperature: cfg.Reply.Temperature,
			MaxTokens:   cfg.Reply.MaxTokens,
			Prompts:     replyPrompts,
		})
	}

	c, err := classifier.NewLLMClassifier(a.Completions, classifier.Options{
		Mode:        classifier.Mode(cfg.Classifier.Mode),
		Model:       cfg.Classifier.Model,
		Temperature: cfg.Classifier.Temperature,
		MaxTokens:   cfg.Classifier.MaxTokens,
		Prompts:     prompts,
		Replies:     replies,
	})
	if err != nil {
		return fmt.Errorf("init classifier: %w", err)
	}
	a.Classifier = c
	return nil
}

// loadPrompts reads prompt overrides. Unset entries keep the built-in text.
func loadPrompts(files config.PromptFiles) (classifier.Prompts, error) {
	defaults := classifier.DefaultPrompts()
	var p classifier.Prompts
	for _, item := range []struct {
		path    string
		builtin string
		dst     *string
	}{
		{files.Single, defaults.Single, &p.Single},
		{files.Classify, defaults.Classify, &p.Classify},
		{files.ExtractBug, defaults.ExtractBug, &p.ExtractBug},
		{files.ExtractFeature, defaults.ExtractFeature, &p.ExtractFeature},
		{files.ExtractInquiry, defaults.ExtractInquiry, &p.ExtractInquiry},
	} {
		content, err := config.LoadPromptContent(item.path, item.builtin)
		if err != nil {
			return classifier.Prompts{}, fmt.Errorf("load prompt: %w", err)
		}
		*item.dst = content
	}
	return p, nil
}

func loadReplyPrompts(files config.PromptFiles) (services.ReplyPrompts, error) {
	defaults := services.DefaultReplyPrompts()
	var p services.ReplyPrompts
	for _, item := range []struct {
		path    string
		builtin string
		dst     *string
	}{
		{files.ReplyBug, defaults.Bug, &p.Bug},
		{files.ReplyFeature, defaults.Feature, &p.Feature},
		{files.ReplyInquiry, defaults.Inquiry, &p.Inquiry},
	} {
		content, err := config.LoadPromptContent(item.path, item.builtin)
		if err != nil {
			return services.ReplyPrompts{}, fmt.Errorf("load reply prompt: %w", err)
		}
		*item.dst = content
	}
	return p, nil
}

func (a *App) initCoreServices(inputProc inputprocessor.Processor) error {
	cfg := a.Config
	if inputProc == nil {
		inputProc = inputprocessor.New()
	}
	a.Processor = inputProc
	ms, err := services.NewMessageService(services.MessageServiceDeps{
		Classifier:        a.Classifier,
		Processor:         inputProc,
		Publisher:         a.Publisher,
		Timeout:           cfg.Classifier.Timeout,
		MaxReplySentences: cfg.Reply.MaxSentences,
	})
	if err != nil {
		return fmt.Errorf("init message service: %w", err)
	}
	a.MessageService = ms
	if a.UsageStore != nil {
		a.CostService = services.NewCostService(a.UsageStore)
	}
	return nil
}

// Close releases every backend in reverse order of initialisation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) cleanupPartialInit() {
	if err := a.Close(); err != nil {
		log.Warnf("Error releasing resources after failed init: %v", err)
	}
}
