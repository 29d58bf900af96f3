package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/option"

	"DailyPodcast/internal/config"
	"DailyPodcast/internal/ports"
)

func TestCleanJSONResponse(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"```json\n{\"a\":1}\n```":       `{"a":1}`,
		"Here you go: {\"a\":1} thanks": `{"a":1}`,
		`{"a":1}`:                       `{"a":1}`,
	}
	for in, want := range tests {
		if got := cleanJSONResponse(in); got != want {
			t.Fatalf("cleanJSONResponse(%q) = %q, want %q", in, got, want)
		}
	}
}

func chatCompletion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-test",
		"choices": []any{map[string]any{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
		"usage": map[string]any{"prompt_tokens": 11, "completion_tokens": 7, "total_tokens": 18},
	}
}

func TestChatGPTGenerateText(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion("<story-summary id=\"1\">ok</story-summary>"))
	}))
	defer srv.Close()

	client := NewChatGPTClient(config.LLMConfig{APIKey: "k", BaseURL: srv.URL + "/", Model: "gpt-test"}, "", option.WithMaxRetries(0))
	gen, err := client.GenerateText(context.Background(), ports.GenerationRequest{System: "sys", Prompt: "user", MaxTokens: 321})
	if err != nil {
		t.Fatalf("GenerateText: %v", err)
	}
	if gen.Text != "<story-summary id=\"1\">ok</story-summary>" || gen.FinishReason != "stop" {
		t.Fatalf("unexpected generation %+v", gen)
	}
	if gen.Usage.PromptTokens != 11 || gen.Usage.CompletionTokens != 7 {
		t.Fatalf("unexpected usage %+v", gen.Usage)
	}
	if body["model"] != "gpt-test" || body["max_completion_tokens"] != float64(321) {
		t.Fatalf("unexpected request body %v", body)
	}
	if msgs, _ := body["messages"].([]any); len(msgs) != 2 {
		t.Fatalf("expected system and user messages, got %v", body["messages"])
	}
}

func TestChatGPTGenerateObject(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletion(`{"dialogue":[{"speaker":"A","text":"hi"}]}`))
	}))
	defer srv.Close()

	client := NewChatGPTClient(config.LLMConfig{APIKey: "k", BaseURL: srv.URL + "/", Model: "base"}, "thinker", option.WithMaxRetries(0))
	var out struct {
		Dialogue []struct {
			Speaker string `json:"speaker"`
			Text    string `json:"text"`
		} `json:"dialogue"`
	}
	schema := ports.JSONSchema{Name: "podcast_script", Schema: map[string]any{"type": "object"}}
	if _, err := client.GenerateObject(context.Background(), ports.GenerationRequest{Prompt: "p"}, schema, &out); err != nil {
		t.Fatalf("GenerateObject: %v", err)
	}
	if len(out.Dialogue) != 1 || out.Dialogue[0].Text != "hi" {
		t.Fatalf("unexpected object %+v", out)
	}
	if body["model"] != "thinker" {
		t.Fatalf("expected explicit model, got %v", body["model"])
	}
	format, _ := body["response_format"].(map[string]any)
	if format["type"] != "json_schema" {
		t.Fatalf("expected json_schema response format, got %v", body["response_format"])
	}
}

func TestClaudeGenerateObject(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":          "msg_1",
			"type":        "message",
			"role":        "assistant",
			"model":       "claude-test",
			"content":     []any{map[string]any{"type": "text", "text": "```json\n{\"dialogue\":[{\"speaker\":\"B\",\"text\":\"yo\"}]}\n```"}},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 5, "output_tokens": 3},
		})
	}))
	defer srv.Close()

	client := NewClaudeClient(config.LLMConfig{AnthropicAPIKey: "k", AnthropicBaseURL: srv.URL + "/"}, "claude-test", anthropicoption.WithMaxRetries(0))
	var out struct {
		Dialogue []struct {
			Speaker string `json:"speaker"`
		} `json:"dialogue"`
	}
	gen, err := client.GenerateObject(context.Background(), ports.GenerationRequest{System: "be brief", Prompt: "p"}, ports.JSONSchema{Name: "s", Schema: map[string]any{"type": "object"}}, &out)
	if err != nil {
		t.Fatalf("GenerateObject: %v", err)
	}
	if len(out.Dialogue) != 1 || out.Dialogue[0].Speaker != "B" {
		t.Fatalf("unexpected object %+v", out)
	}
	if gen.FinishReason != "end_turn" || gen.Usage.CompletionTokens != 3 {
		t.Fatalf("unexpected generation %+v", gen)
	}
	if body["max_tokens"] != float64(claudeDefaultMaxTokens) {
		t.Fatalf("expected default max tokens, got %v", body["max_tokens"])
	}
	system, _ := body["system"].([]any)
	if len(system) != 1 || !strings.Contains(system[0].(map[string]any)["text"].(string), "JSON schema") {
		t.Fatalf("expected schema instruction in system prompt, got %v", body["system"])
	}
}
