package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setMinimalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing-config.yaml"))
	t.Setenv("LLM_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("TIMEZONE", "UTC")
}

func TestLoadFromEnvWithDefaults(t *testing.T) {
	setMinimalEnv(t)
	t.Setenv("STAFF_SLACK_IDS", "U12345, U67890")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if len(cfg.LLMProviders) != 1 || cfg.LLMProviders[0] != "openai" {
		t.Fatalf("unexpected providers: %v", cfg.LLMProviders)
	}
	if cfg.DBPath != "./smartgriev.db" {
		t.Fatalf("unexpected db path default: %q", cfg.DBPath)
	}
	if cfg.ExternalHTTPTimeout() != defaultExternalHTTPTimeout {
		t.Fatalf("unexpected external HTTP timeout default: %s", cfg.ExternalHTTPTimeout())
	}
	if cfg.EscalationDays != 3 {
		t.Fatalf("unexpected escalation days default: %d", cfg.EscalationDays)
	}
	if cfg.EscalationCooldown() != 24*time.Hour {
		t.Fatalf("unexpected cooldown default: %s", cfg.EscalationCooldown())
	}
	if !cfg.NotificationsEnabled() {
		t.Fatal("expected notifications enabled by default")
	}
	if cfg.LLMTemperature != 0.1 {
		t.Fatalf("unexpected temperature default: %f", cfg.LLMTemperature)
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Fatalf("unexpected location: %v", cfg.Location)
	}
	if len(cfg.StaffSlackIDs) != 2 {
		t.Fatalf("expected 2 staff IDs, got %d", len(cfg.StaffSlackIDs))
	}
}

func TestLoadYAMLAndEnvOverride(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm_provider: [anthropic, openai]
anthropic_api_key: "yaml-anthropic"
openai_api_key: "yaml-openai"
timezone: "Asia/Kolkata"
db_path: "/tmp/yaml.db"
escalation_days: 2
send_notifications: false
external_http_timeout_seconds: 15
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_PATH", cfgPath)
	t.Setenv("DB_PATH", "/tmp/env.db")
	t.Setenv("ESCALATION_DAYS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if strings.Join(cfg.LLMProviders, ",") != "anthropic,openai" {
		t.Fatalf("expected provider order from yaml, got %v", cfg.LLMProviders)
	}
	if cfg.DBPath != "/tmp/env.db" {
		t.Fatalf("expected db path from env override, got %q", cfg.DBPath)
	}
	if cfg.EscalationDays != 5 {
		t.Fatalf("expected escalation days from env override, got %d", cfg.EscalationDays)
	}
	if cfg.NotificationsEnabled() {
		t.Fatal("expected notifications disabled from yaml")
	}
	if cfg.ExternalHTTPTimeoutSeconds != 15 {
		t.Fatalf("expected timeout from yaml, got %d", cfg.ExternalHTTPTimeoutSeconds)
	}
}

func TestLoadKeepsExplicitZeros(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm_provider: openai
openai_api_key: "sk-test"
timezone: UTC
llm_temperature: 0
llm_max_retries: 0
llm_requests_per_second: 0
escalation_cooldown_hours: 0
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", cfgPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLMTemperature != 0 || cfg.LLMMaxRetries != 0 || cfg.LLMRequestsPerSec != 0 || cfg.EscalationCooldownHours != 0 {
		t.Fatalf("explicit zeros replaced by defaults: temp=%v retries=%d rps=%v cooldown=%d",
			cfg.LLMTemperature, cfg.LLMMaxRetries, cfg.LLMRequestsPerSec, cfg.EscalationCooldownHours)
	}

	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("LLM_PROVIDER", "openai")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LLMTemperature != 0.1 || cfg.LLMMaxRetries != 2 || cfg.EscalationCooldownHours != 24 {
		t.Fatalf("unexpected defaults when unset: %+v", cfg)
	}
}

func TestLoadScalarProviderList(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("llm_provider: \"openai, anthropic\"\ntimezone: UTC\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_PATH", cfgPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if strings.Join(cfg.LLMProviders, ",") != "openai,anthropic" {
		t.Fatalf("unexpected providers: %v", cfg.LLMProviders)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown provider", key: "LLM_PROVIDER", val: "gemini"},
		{name: "bad timezone", key: "TIMEZONE", val: "Mars/Colony"},
		{name: "too many retries", key: "LLM_MAX_RETRIES", val: "7"},
		{name: "timeout too long", key: "EXTERNAL_HTTP_TIMEOUT_SECONDS", val: "300"},
		{name: "non-numeric days", key: "ESCALATION_DAYS", val: "three"},
		{name: "negative days", key: "ESCALATION_DAYS", val: "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMinimalEnv(t)
			t.Setenv(tt.key, tt.val)
			if _, err := Load(); err == nil {
				t.Fatalf("expected Load to fail for %s=%s", tt.key, tt.val)
			}
		})
	}
}

func TestEnvOverrideHelpers(t *testing.T) {
	s := "initial"
	t.Setenv("SG_TEST_STR", "value")
	envOverride(&s, "SG_TEST_STR")
	if s != "value" {
		t.Fatalf("envOverride failed, got %q", s)
	}

	i := 1
	t.Setenv("SG_TEST_INT", "42")
	if err := envOverrideInt(&i, "SG_TEST_INT"); err != nil || i != 42 {
		t.Fatalf("envOverrideInt failed, got %d err=%v", i, err)
	}

	f := 0.1
	t.Setenv("SG_TEST_FLOAT", "0.75")
	if err := envOverrideFloat(&f, "SG_TEST_FLOAT"); err != nil || f != 0.75 {
		t.Fatalf("envOverrideFloat failed, got %f err=%v", f, err)
	}

	var list []string
	t.Setenv("SG_TEST_LIST", " a, ,b ")
	envOverrideList(&list, "SG_TEST_LIST")
	if strings.Join(list, "|") != "a|b" {
		t.Fatalf("envOverrideList failed, got %v", list)
	}

	if !parseBool("1") || !parseBool("TRUE") || parseBool("no") {
		t.Fatal("parseBool returned unexpected values")
	}
}
