package app

import (
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"

	"smartgriev/internal/classifier"
	"smartgriev/internal/config"
	"smartgriev/internal/domain"
	"smartgriev/internal/escalation"
	"smartgriev/internal/httpx"
	"smartgriev/internal/integrations/llm"
	"smartgriev/internal/metrics"
	"smartgriev/internal/notify"
	"smartgriev/internal/storage/sqlite"
	"smartgriev/internal/translate"
)

// buildLLM returns the configured providers as a fallback chain, or nil
// when no provider has credentials. The configured model applies to the
// first provider; later ones use their defaults.
func buildLLM(cfg config.Config) llm.Provider {
	client := httpx.ExternalHTTPClient()
	var providers []llm.Provider
	for i, name := range cfg.LLMProviders {
		model := ""
		if i == 0 {
			model = cfg.LLMModel
		}
		switch name {
		case "anthropic":
			if cfg.AnthropicAPIKey != "" {
				providers = append(providers, llm.NewAnthropicProvider(cfg.AnthropicAPIKey, model, client))
			}
		case "openai":
			if cfg.OpenAIAPIKey != "" {
				providers = append(providers, llm.NewOpenAIProvider(cfg.OpenAIAPIKey, model, "", client))
			}
		}
	}
	if len(providers) == 0 {
		log.Warn("No LLM provider configured; classification uses keyword fallback only")
		return nil
	}
	chain := llm.NewChain(providers,
		llm.WithMaxRetries(cfg.LLMMaxRetries),
		llm.WithRateLimit(cfg.LLMRequestsPerSec, 1),
	)
	log.Printf("LLM chain ready: %d provider(s)", chain.Len())
	return chain
}

func buildClassifier(cfg config.Config, m *metrics.Metrics) (*classifier.Classifier, error) {
	opts := []classifier.Option{
		classifier.WithTemperature(cfg.LLMTemperature),
		classifier.WithTimeout(cfg.ExternalHTTPTimeout()),
		classifier.WithMetrics(m),
	}
	if cfg.LexiconPath != "" {
		lex, err := classifier.LoadLexicon(cfg.LexiconPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, classifier.WithLexicon(lex))
	}
	if cfg.LLMGlossaryPath != "" {
		g, err := classifier.LoadGlossary(cfg.LLMGlossaryPath)
		if err != nil {
			return nil, err
		}
		log.Printf("Loaded glossary terms=%d from %s", len(g.Terms), cfg.LLMGlossaryPath)
		opts = append(opts, classifier.WithGlossary(g))
	}
	return classifier.New(buildLLM(cfg), opts...), nil
}

func buildTranslator(cfg config.Config, m *metrics.Metrics) *translate.Translator {
	client := httpx.ExternalHTTPClient()
	var providers []translate.Provider
	if cfg.GoogleTranslateAPIKey != "" {
		providers = append(providers, translate.NewGoogleProvider(cfg.GoogleTranslateAPIKey, "", client))
	}
	if cfg.BhashiniAPIKey != "" {
		providers = append(providers, translate.NewBhashiniProvider(cfg.BhashiniAPIKey, cfg.BhashiniUserID, cfg.BhashiniEndpoint, client))
	}
	providers = append(providers, translate.NewMyMemoryProvider(cfg.MyMemoryEmail, "", client))

	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	log.Printf("Translation providers: %s", strings.Join(names, " -> "))

	return translate.New(providers,
		translate.WithDefaultLanguage(cfg.DefaultLanguage),
		translate.WithTimeout(cfg.ExternalHTTPTimeout()),
		translate.WithRateLimit(cfg.LLMRequestsPerSec, 1),
		translate.WithMetrics(m),
	)
}

// buildNotifier routes in-app notifications to the store and staff alerts
// to Slack when a bot token is configured. The Slack notifier is returned
// separately for sweep summaries; it is nil without a token.
func buildNotifier(cfg config.Config, store *sqlite.Store) (notify.Notifier, *notify.SlackNotifier) {
	router := notify.NewRouter(notify.LogNotifier{}).
		Handle(domain.ChannelInApp, notify.NewStoreNotifier(store))

	if !cfg.SlackConfigured() {
		log.Println("Slack not configured; staff alerts go to the log")
		return router, nil
	}
	api := slack.New(cfg.SlackBotToken, slack.OptionHTTPClient(httpx.ExternalHTTPClient()))
	sn := notify.NewSlackNotifier(api, cfg.SlackStaffChannelID, cfg.StaffSlackIDs)
	router.Handle(domain.ChannelSlack, notify.Multi{sn, notify.LogNotifier{}})
	return router, sn
}

func buildEngine(cfg config.Config, store *sqlite.Store, n notify.Notifier, m *metrics.Metrics) *escalation.Engine {
	return escalation.NewEngine(store,
		escalation.WithNotifier(n),
		escalation.WithDepartments(store),
		escalation.WithMetrics(m),
		escalation.WithCooldown(cfg.EscalationCooldown()),
		escalation.WithWorkers(cfg.EscalationWorkers),
		escalation.WithClock(func() time.Time { return time.Now().In(cfg.Location) }),
	)
}
