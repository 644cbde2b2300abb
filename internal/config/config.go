package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 20 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const maxLLMRetries = 3

// newConfig returns a Config holding the defaults for fields where zero is a
// meaningful setting. yaml and env values are applied on top.
func newConfig() Config {
	return Config{
		LLMTemperature:          0.1,
		LLMMaxRetries:           2,
		LLMRequestsPerSec:       2,
		EscalationCooldownHours: 24,
	}
}

// ProviderList accepts either a single provider name or a list in yaml. The
// order is the fallback order.
type ProviderList []string

func (p *ProviderList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		*p = nil
		for _, v := range strings.Split(single, ",") {
			if v = strings.TrimSpace(v); v != "" {
				*p = append(*p, v)
			}
		}
		return nil
	}
	var list []string
	if err := node.Decode(&list); err != nil {
		return err
	}
	*p = list
	return nil
}

type Config struct {
	LLMProviders      ProviderList `yaml:"llm_provider"`
	LLMModel          string       `yaml:"llm_model"`
	LLMTemperature    float64      `yaml:"llm_temperature"`
	LLMMaxRetries     int          `yaml:"llm_max_retries"`
	LLMRequestsPerSec float64      `yaml:"llm_requests_per_second"`
	LLMGlossaryPath   string       `yaml:"llm_glossary_path"`
	LexiconPath       string       `yaml:"classifier_lexicon_path"`
	AnthropicAPIKey   string       `yaml:"anthropic_api_key"`
	OpenAIAPIKey      string       `yaml:"openai_api_key"`

	GoogleTranslateAPIKey string `yaml:"google_translate_api_key"`
	BhashiniAPIKey        string `yaml:"bhashini_api_key"`
	BhashiniUserID        string `yaml:"bhashini_user_id"`
	BhashiniEndpoint      string `yaml:"bhashini_endpoint"`
	MyMemoryEmail         string `yaml:"mymemory_email"`
	DefaultLanguage       string `yaml:"default_language"`

	DBPath                     string `yaml:"db_path"`
	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`

	EscalationDays          int    `yaml:"escalation_days"`
	EscalationCooldownHours int    `yaml:"escalation_cooldown_hours"`
	EscalationSchedule      string `yaml:"escalation_schedule"`
	EscalationWorkers       int    `yaml:"escalation_workers"`
	SendNotifications       *bool  `yaml:"send_notifications"`

	SlackBotToken       string   `yaml:"slack_bot_token"`
	SlackStaffChannelID string   `yaml:"slack_staff_channel_id"`
	StaffSlackIDs       []string `yaml:"staff_slack_ids"`

	MetricsAddr string `yaml:"metrics_addr"`
	Timezone    string `yaml:"timezone"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	LogFile     string `yaml:"log_file"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

// Load reads config.yaml (or CONFIG_PATH), applies .env and environment
// overrides, fills defaults and validates the result.
func Load() (Config, error) {
	cfg := newConfig()

	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded environment from .env")
	}

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", configPath, err)
		}
		log.Infof("Loaded config from %s", configPath)
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	envOverrideList((*[]string)(&cfg.LLMProviders), "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.LLMGlossaryPath, "LLM_GLOSSARY_PATH")
	envOverride(&cfg.LexiconPath, "CLASSIFIER_LEXICON_PATH")
	envOverride(&cfg.GoogleTranslateAPIKey, "GOOGLE_TRANSLATE_API_KEY")
	envOverride(&cfg.BhashiniAPIKey, "BHASHINI_API_KEY")
	envOverride(&cfg.BhashiniUserID, "BHASHINI_USER_ID")
	envOverride(&cfg.BhashiniEndpoint, "BHASHINI_ENDPOINT")
	envOverride(&cfg.MyMemoryEmail, "MYMEMORY_EMAIL")
	envOverride(&cfg.DefaultLanguage, "DEFAULT_LANGUAGE")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.EscalationSchedule, "ESCALATION_SCHEDULE")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackStaffChannelID, "SLACK_STAFF_CHANNEL_ID")
	envOverrideList(&cfg.StaffSlackIDs, "STAFF_SLACK_IDS")
	envOverride(&cfg.MetricsAddr, "METRICS_ADDR")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.LogFormat, "LOG_FORMAT")
	envOverride(&cfg.LogFile, "LOG_FILE")

	ints := []struct {
		field *int
		key   string
	}{
		{&cfg.LLMMaxRetries, "LLM_MAX_RETRIES"},
		{&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"},
		{&cfg.EscalationDays, "ESCALATION_DAYS"},
		{&cfg.EscalationCooldownHours, "ESCALATION_COOLDOWN_HOURS"},
		{&cfg.EscalationWorkers, "ESCALATION_WORKERS"},
	}
	for _, i := range ints {
		if err := envOverrideInt(i.field, i.key); err != nil {
			return err
		}
	}
	if err := envOverrideFloat(&cfg.LLMTemperature, "LLM_TEMPERATURE"); err != nil {
		return err
	}
	if err := envOverrideFloat(&cfg.LLMRequestsPerSec, "LLM_REQUESTS_PER_SECOND"); err != nil {
		return err
	}
	envOverrideBool(&cfg.SendNotifications, "SEND_NOTIFICATIONS")
	return nil
}

func applyDefaults(cfg *Config) {
	if len(cfg.LLMProviders) == 0 {
		cfg.LLMProviders = ProviderList{"anthropic"}
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./smartgriev.db"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.EscalationDays == 0 {
		cfg.EscalationDays = 3
	}
	if cfg.EscalationSchedule == "" {
		cfg.EscalationSchedule = "0 * * * *"
	}
	if cfg.EscalationWorkers == 0 {
		cfg.EscalationWorkers = 4
	}
	if cfg.SendNotifications == nil {
		enabled := true
		cfg.SendNotifications = &enabled
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = ":9090"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
}

func validate(cfg *Config) error {
	for i, p := range cfg.LLMProviders {
		p = strings.ToLower(strings.TrimSpace(p))
		cfg.LLMProviders[i] = p
		switch p {
		case "anthropic":
			if cfg.AnthropicAPIKey == "" {
				log.Warn("anthropic_api_key is not set; anthropic provider disabled, keyword fallback will be used")
			}
		case "openai":
			if cfg.OpenAIAPIKey == "" {
				log.Warn("openai_api_key is not set; openai provider disabled")
			}
		default:
			return fmt.Errorf("llm_provider entries must be 'anthropic' or 'openai', got '%s'", p)
		}
	}

	if strings.EqualFold(cfg.Timezone, "Local") {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", cfg.Timezone, err)
		}
		cfg.Location = loc
	}

	if cfg.LLMTemperature < 0 || cfg.LLMTemperature > 1 {
		return fmt.Errorf("invalid llm_temperature '%f': must be between 0 and 1", cfg.LLMTemperature)
	}
	if cfg.LLMMaxRetries < 0 || cfg.LLMMaxRetries > maxLLMRetries {
		return fmt.Errorf("invalid llm_max_retries '%d': must be between 0 and %d", cfg.LLMMaxRetries, maxLLMRetries)
	}
	if cfg.LLMRequestsPerSec < 0 {
		return fmt.Errorf("invalid llm_requests_per_second '%f': must be >= 0", cfg.LLMRequestsPerSec)
	}
	if cfg.ExternalHTTPTimeoutSeconds < 5 || cfg.ExternalHTTPTimeoutSeconds > 60 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be between 5 and 60", cfg.ExternalHTTPTimeoutSeconds)
	}
	if cfg.EscalationDays < 1 {
		return fmt.Errorf("invalid escalation_days '%d': must be >= 1", cfg.EscalationDays)
	}
	if cfg.EscalationCooldownHours < 0 {
		return fmt.Errorf("invalid escalation_cooldown_hours '%d': must be >= 0", cfg.EscalationCooldownHours)
	}
	if cfg.EscalationWorkers < 1 {
		return fmt.Errorf("invalid escalation_workers '%d': must be >= 1", cfg.EscalationWorkers)
	}
	if cfg.LLMGlossaryPath != "" {
		if err := validateGlossaryPath(cfg.LLMGlossaryPath); err != nil {
			return fmt.Errorf("invalid llm_glossary_path '%s': %w", cfg.LLMGlossaryPath, err)
		}
	}
	return nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideList(field *[]string, envKey string) {
	val := os.Getenv(envKey)
	if val == "" {
		return
	}
	*field = nil
	for _, v := range strings.Split(val, ",") {
		v = strings.TrimSpace(v)
		if v != "" {
			*field = append(*field, v)
		}
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideFloat(field *float64, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field **bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		b := parseBool(val)
		*field = &b
	}
}

func parseBool(val string) bool {
	return strings.EqualFold(val, "true") || val == "1"
}

func (c Config) NotificationsEnabled() bool {
	return c.SendNotifications != nil && *c.SendNotifications
}

func (c Config) ExternalHTTPTimeout() time.Duration {
	return time.Duration(c.ExternalHTTPTimeoutSeconds) * time.Second
}

func (c Config) EscalationCooldown() time.Duration {
	return time.Duration(c.EscalationCooldownHours) * time.Hour
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && (c.SlackStaffChannelID != "" || len(c.StaffSlackIDs) > 0)
}

func validateGlossaryPath(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read glossary: %w", err)
	}
	var g struct {
		Terms []struct{} `yaml:"terms"`
	}
	if err := yaml.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("parse glossary yaml: %w", err)
	}
	return nil
}
