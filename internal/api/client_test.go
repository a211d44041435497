package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/lamim/storyforge/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

const okChat = `{
	"id": "test",
	"object": "chat.completion",
	"created": 1234567890,
	"model": "test",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "success"}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2}
}`

func fastClient() *Client {
	client := NewClient(testLogger(), nil)
	client.baseRetryDelay = 1 // 1ns for fast testing
	return client
}

func TestChatCompletion_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("Expected Authorization header 'Bearer test-key', got '%s'", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Expected Content-Type 'application/json', got '%s'", r.Header.Get("Content-Type"))
		}

		var req ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.ResponseFormat != nil {
			t.Error("plain chat must not send response_format")
		}
		_, _ = w.Write([]byte(okChat))
	}))
	defer server.Close()

	modelCfg := config.ModelConfig{
		BaseURL:            server.URL + "/v1/",
		ModelName:          "test-model",
		Temperature:        0.7,
		TopP:               1.0,
		MaxOutputTokens:    100,
		RateLimitPerMinute: 600,
	}

	resp, err := fastClient().ChatCompletion(context.Background(), modelCfg, "test-key",
		[]Message{{Role: "user", Content: "Test message"}})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if resp.Content() != "success" {
		t.Errorf("Expected content 'success', got '%s'", resp.Content())
	}
}

func TestChatCompletionStructured_SendsSchema(t *testing.T) {
	type plan struct {
		Title string `json:"title"`
	}

	var got ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(okChat))
	}))
	defer server.Close()

	modelCfg := config.ModelConfig{
		BaseURL:              server.URL,
		ModelName:            "test",
		Temperature:          0.9,
		StructureTemperature: 0.2,
		RateLimitPerMinute:   600,
		UseJSONMode:          true,
	}

	schema := NewJSONSchema[plan]("plan", "a plan")
	if _, err := fastClient().ChatCompletionStructured(context.Background(), modelCfg, "", []Message{{Role: "user", Content: "x"}}, schema); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.ResponseFormat == nil || got.ResponseFormat.Type != "json_schema" {
		t.Fatalf("expected json_schema response_format, got %+v", got.ResponseFormat)
	}
	if got.ResponseFormat.JSONSchema.Name != "plan" || !got.ResponseFormat.JSONSchema.Strict {
		t.Errorf("unexpected schema envelope: %+v", got.ResponseFormat.JSONSchema)
	}
	if got.Temperature != 0.2 {
		t.Errorf("structured request should use structure temperature, got %v", got.Temperature)
	}
}

func TestChatCompletion_RetryOn500(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error": {"message": "Server error"}}`))
			return
		}
		_, _ = w.Write([]byte(okChat))
	}))
	defer server.Close()

	modelCfg := config.ModelConfig{BaseURL: server.URL, ModelName: "test", RateLimitPerMinute: 1000}
	resp, err := fastClient().ChatCompletion(context.Background(), modelCfg, "test", []Message{{Role: "user", Content: "test"}})
	if err != nil {
		t.Fatalf("Expected success after retries, got error: %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts (2 retries), got %d", attempts.Load())
	}
	if resp.Content() != "success" {
		t.Errorf("Expected 'success', got '%s'", resp.Content())
	}
}

func TestChatCompletion_NoRetryOn400(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad prompt", "type": "invalid_request_error"}}`))
	}))
	defer server.Close()

	modelCfg := config.ModelConfig{BaseURL: server.URL, ModelName: "test", RateLimitPerMinute: 1000}
	_, err := fastClient().ChatCompletion(context.Background(), modelCfg, "", []Message{{Role: "user", Content: "test"}})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Retryable {
		t.Errorf("unexpected error: %+v", apiErr)
	}
	if apiErr.Message != "bad prompt" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if attempts.Load() != 1 {
		t.Errorf("400 must not be retried, got %d attempts", attempts.Load())
	}
}

func TestChatCompletion_MaxRetriesExceeded(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	modelCfg := config.ModelConfig{BaseURL: server.URL, ModelName: "test", RateLimitPerMinute: 1000, MaxRetries: 2}
	_, err := fastClient().ChatCompletion(context.Background(), modelCfg, "", []Message{{Role: "user", Content: "x"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 1 attempt + 2 retries, got %d", attempts.Load())
	}
}

func TestChatCompletion_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer server.Close()

	modelCfg := config.ModelConfig{BaseURL: server.URL, ModelName: "test", RateLimitPerMinute: 1000}
	if _, err := fastClient().ChatCompletion(context.Background(), modelCfg, "", nil); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestChatCompletion_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	modelCfg := config.ModelConfig{BaseURL: server.URL, ModelName: "test", RateLimitPerMinute: 1000}
	if _, err := fastClient().ChatCompletion(ctx, modelCfg, "", nil); err == nil {
		t.Error("expected error for canceled context")
	}
}

func TestGenerateImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ImageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Size != "1792x1024" || req.ResponseFormat != "b64_json" {
			t.Errorf("unexpected request %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"created": 1,
			"data":    []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(png)}},
		})
	}))
	defer server.Close()

	modelCfg := config.ModelConfig{BaseURL: server.URL, ModelName: "img", RateLimitPerMinute: 1000}
	img, err := fastClient().GenerateImage(context.Background(), modelCfg, "", "a dark harbor", "1792x1024")
	if err != nil {
		t.Fatalf("GenerateImage() error = %v", err)
	}
	if string(img) != string(png) {
		t.Errorf("image bytes = %v", img)
	}
}

func TestSynthesize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		var req SpeechRequest
		_ = json.Unmarshal(body, &req)
		if req.Voice != "pt-BR-AntonioNeural" || req.Input == "" {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = w.Write([]byte("ID3audio"))
	}))
	defer server.Close()

	modelCfg := config.ModelConfig{BaseURL: server.URL, ModelName: "tts", RateLimitPerMinute: 1000}
	audio, err := fastClient().Synthesize(context.Background(), modelCfg, "", "Olá", "pt-BR-AntonioNeural")
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(audio) != "ID3audio" {
		t.Errorf("audio = %q", audio)
	}
}

func TestRateLimiterPool_ReusesLimiter(t *testing.T) {
	pool := NewRateLimiterPool(map[string]int{"openai": 60}, 10)
	a := pool.GetOrCreate("m1", 60)
	b := pool.GetOrCreate("m1", 120)
	if a != b {
		t.Error("same key should return the same limiter")
	}
	if pool.providerLimiter("openai") == nil {
		t.Error("configured provider should get a limiter")
	}
	if pool.providerLimiter("local") != nil {
		t.Error("unconfigured provider should not be limited")
	}

	if _, err := pool.Wait(context.Background(), "openai", "m1", 60); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}
