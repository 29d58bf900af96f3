package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func envMap(values map[string]string) func(string) string {
	return func(name string) string { return values[name] }
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg := load("", envMap(nil))
	if cfg.IsProduction() {
		t.Fatalf("default environment must not be production")
	}
	if cfg.Workflow.Retries != 5 || cfg.Workflow.Delay != 10*time.Second || cfg.Workflow.Timeout != 3*time.Minute {
		t.Fatalf("unexpected workflow defaults %+v", cfg.Workflow)
	}
	if cfg.BreakTime() != 2*time.Second {
		t.Fatalf("unexpected dev break time %s", cfg.BreakTime())
	}
	limits := cfg.StoryLimits()
	if limits["hacker-news"] != 3 || limits["dev-to"] != 2 {
		t.Fatalf("unexpected dev limits %v", limits)
	}
	if len(cfg.Sources) != 4 || cfg.Sources[0].Name != "hacker-news" {
		t.Fatalf("unexpected default sources %+v", cfg.Sources)
	}
	if cfg.Scheduler.Location().String() != "UTC" {
		t.Fatalf("unexpected location %s", cfg.Scheduler.Location())
	}
}

func TestLoadFileOverDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
environment: production
scheduler:
  cronExpression: "30 5 * * *"
  timezone: Asia/Shanghai
workflow:
  delay: 2s
limits:
  dev-to: 1
speakerLabels:
  A: Host
  B: Guest
sources:
  - name: hacker-news
    scanner: hacker-news
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := load(path, envMap(nil))
	if !cfg.IsProduction() || cfg.BreakTime() != 5*time.Second {
		t.Fatalf("expected production settings, got %s %s", cfg.Environment, cfg.BreakTime())
	}
	if cfg.Workflow.Delay != 2*time.Second || cfg.Workflow.Retries != 5 {
		t.Fatalf("expected file value over defaults, got %+v", cfg.Workflow)
	}
	if cfg.Scheduler.CronExpression != "30 5 * * *" || cfg.Scheduler.Location().String() != "Asia/Shanghai" {
		t.Fatalf("unexpected scheduler %+v", cfg.Scheduler)
	}
	limits := cfg.StoryLimits()
	if limits["hacker-news"] != 8 || limits["dev-to"] != 1 {
		t.Fatalf("unexpected production limits %v", limits)
	}
	if len(cfg.Sources) != 1 {
		t.Fatalf("expected sources from file, got %+v", cfg.Sources)
	}
	if cfg.SpeakerLabels["A"] != "Host" || cfg.SpeakerLabels["B"] != "Guest" {
		t.Fatalf("unexpected speaker labels %v", cfg.SpeakerLabels)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Parallel()

	cfg := load("", envMap(map[string]string{
		"WORKER_ENV":          "production",
		"OPENAI_API_KEY":      "sk-main",
		"OPENAI_BASE_URL":     "https://llm.example.com/v1",
		"OPENAI_MAX_TOKENS":   "2048",
		"TTS_PROVIDER":        "minimax",
		"OPENAI_TTS_BASE_URL": "https://tts.example.com/v1",
		"TELEGRAM_CHAT_ID":    "42",
		"DATABASE_DSN":        "postgres://db/checkpoints",
	}))

	if !cfg.IsProduction() {
		t.Fatalf("expected WORKER_ENV override")
	}
	if cfg.LLM.APIKey != "sk-main" || cfg.LLM.MaxTokens != 2048 {
		t.Fatalf("unexpected llm config %+v", cfg.LLM)
	}
	if cfg.TTS.Provider != "minimax" || cfg.TTS.OpenAIAPIKey != "sk-main" || cfg.TTS.OpenAIBaseURL != "https://tts.example.com/v1" {
		t.Fatalf("unexpected tts config %+v", cfg.TTS)
	}
	if cfg.Notifications.Telegram.ChatID != "42" || cfg.Storage.Checkpoints.DSN != "postgres://db/checkpoints" {
		t.Fatalf("unexpected overrides %+v %+v", cfg.Notifications, cfg.Storage.Checkpoints)
	}
}

func TestUnreadableFileFallsBackToDefaults(t *testing.T) {
	t.Parallel()

	cfg := load(filepath.Join(t.TempDir(), "missing.yaml"), envMap(nil))
	if cfg.Slug != defaultSlug || cfg.Workflow.Retries != 5 {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}
