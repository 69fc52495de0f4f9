package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const openRouterCatalog = `{
	"data": [
		{
			"id": "small/cheap",
			"name": "Small Cheap",
			"context_length": 16000,
			"pricing": {"prompt": "0.0000001", "completion": "0.0000002"},
			"architecture": {"modality": "text->text"},
			"supported_parameters": ["temperature"]
		},
		{
			"id": "mid/capable",
			"name": "Mid Capable",
			"context_length": 64000,
			"pricing": {"prompt": "0.000001", "completion": "0.000002"},
			"architecture": {"modality": "text+image->text"},
			"supported_parameters": ["temperature", "tools"]
		},
		{
			"id": "big/frontier",
			"name": "Big Frontier",
			"context_length": 200000,
			"pricing": {"prompt": "0.00001", "completion": "0.00003"},
			"architecture": {"modality": "text+image->text"},
			"supported_parameters": ["tools"]
		}
	]
}`

func TestOpenRouterAttributionHeaders(t *testing.T) {
	var captured capturedRequest
	server := fakeVendor(t, 200, `{
		"model": "small/cheap",
		"choices": [{"message": {"content": "hi"}, "finish_reason": "stop"}]
	}`, &captured)
	defer server.Close()

	a := NewOpenRouter(BaseOptions{})
	a.Configure(Options{
		"api_key":  "or-key",
		"base_url": server.URL,
		"site_url": "https://myapp.example",
		"app_name": "MyApp",
	})

	_, err := a.ChatCompletion(context.Background(), &Request{
		Model:    "small/cheap",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer or-key", captured.headers.Get("Authorization"))
	assert.Equal(t, "https://myapp.example", captured.headers.Get("HTTP-Referer"))
	assert.Equal(t, "MyApp", captured.headers.Get("X-Title"))
}

func TestOpenRouterListModels(t *testing.T) {
	var captured capturedRequest
	server := fakeVendor(t, 200, openRouterCatalog, &captured)
	defer server.Close()

	a := NewOpenRouter(BaseOptions{})
	a.Configure(Options{"api_key": "or-key", "base_url": server.URL})

	models, err := a.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 3)

	// Pricing strings parse into floats.
	assert.Equal(t, 0.0000001, models[0].Pricing.PromptCostPerToken)
	assert.Equal(t, 0.0000002, models[0].Pricing.CompletionCostPerToken)
	assert.False(t, models[0].SupportsFunctionCalling)
	assert.Equal(t, ModalityText, models[0].Modality)

	assert.True(t, models[1].SupportsFunctionCalling)
	assert.Equal(t, ModalityMultimodal, models[1].Modality)
	assert.Equal(t, 64000, models[1].ContextLength)
}

func TestOpenRouterRoutesEmptyModel(t *testing.T) {
	var chatModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/models":
			_, _ = w.Write([]byte(openRouterCatalog))
		case "/chat/completions":
			var body map[string]any
			readJSONBody(t, r, &body)
			chatModel = body["model"].(string)
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	a := NewOpenRouter(BaseOptions{})
	a.Configure(Options{
		"api_key":          "or-key",
		"base_url":         server.URL,
		"routing_strategy": StrategyCostOptimized,
	})

	resp, err := a.ChatCompletion(context.Background(), &Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "small/cheap", chatModel)
	assert.Equal(t, "small/cheap", resp.Metadata["routed_model"])
}

func TestOpenRouterToolConstraintFiltersRouting(t *testing.T) {
	var chatModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/models" {
			_, _ = w.Write([]byte(openRouterCatalog))
			return
		}
		var body map[string]any
		readJSONBody(t, r, &body)
		chatModel = body["model"].(string)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	a := NewOpenRouter(BaseOptions{})
	a.Configure(Options{
		"api_key":          "or-key",
		"base_url":         server.URL,
		"routing_strategy": StrategyCostOptimized,
	})

	_, err := a.ChatCompletionWithTools(context.Background(), &Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
		Tools:    []Tool{{Name: "f", Parameters: map[string]any{"type": "object"}}},
	})
	require.NoError(t, err)

	// small/cheap is cheaper but lacks tool support.
	assert.Equal(t, "mid/capable", chatModel)
}

func TestOpenRouterAutoFallback(t *testing.T) {
	attempted := []string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var body map[string]any
		readJSONBody(t, r, &body)
		model := body["model"].(string)
		attempted = append(attempted, model)
		if model == "primary/model" {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"model":"` + model + `","choices":[{"message":{"content":"rescued"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	a := NewOpenRouter(BaseOptions{})
	a.Configure(Options{
		"api_key":         "or-key",
		"base_url":        server.URL,
		"auto_fallback":   true,
		"fallback_models": "backup/model",
	})

	resp, err := a.ChatCompletion(context.Background(), &Request{
		Model:    "primary/model",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"primary/model", "backup/model"}, attempted)
	assert.Equal(t, "rescued", resp.Content)
	assert.Equal(t, "backup/model", resp.Metadata["routed_model"])
}

func TestOpenRouterFallbackSkipsClientErrors(t *testing.T) {
	attempted := []string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		readJSONBody(t, r, &body)
		attempted = append(attempted, body["model"].(string))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid request"}}`))
	}))
	defer server.Close()

	a := NewOpenRouter(BaseOptions{})
	a.Configure(Options{
		"api_key":         "or-key",
		"base_url":        server.URL,
		"auto_fallback":   true,
		"fallback_models": "backup/model",
	})

	_, err := a.ChatCompletion(context.Background(), &Request{
		Model:    "primary/model",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})

	// A 400 is the caller's mistake; no other model would fix it.
	assert.True(t, IsProviderRejected(err))
	assert.Equal(t, []string{"primary/model"}, attempted)
}

func TestOpenRouterFallbackSurfacesLastFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"everything is rate limited"}}`))
	}))
	defer server.Close()

	a := NewOpenRouter(BaseOptions{})
	a.Configure(Options{
		"api_key":         "or-key",
		"base_url":        server.URL,
		"auto_fallback":   true,
		"fallback_models": "backup/model",
	})

	_, err := a.ChatCompletion(context.Background(), &Request{
		Model:    "primary/model",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})

	var typed *Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, 429, typed.StatusCode)
	assert.Equal(t, "everything is rate limited", typed.Message)
}

func TestOpenRouterCredits(t *testing.T) {
	var captured capturedRequest
	server := fakeVendor(t, 200, `{"data": {"total_credits": 50.0, "total_usage": 12.5}}`, &captured)
	defer server.Close()

	a := NewOpenRouter(BaseOptions{})
	a.Configure(Options{"api_key": "or-key", "base_url": server.URL})

	credits, err := a.Credits(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "/credits", captured.path)
	assert.Equal(t, 50.0, credits.TotalCredits)
	assert.Equal(t, 12.5, credits.TotalUsage)
	assert.Equal(t, 37.5, credits.Remaining())
}

func TestOpenRouterCostMetadata(t *testing.T) {
	var captured capturedRequest
	server := fakeVendor(t, 200, `{
		"model": "small/cheap",
		"choices": [{"message": {"content": "hi"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 5, "completion_tokens": 2, "cost": 0.00012}
	}`, &captured)
	defer server.Close()

	a := NewOpenRouter(BaseOptions{})
	a.Configure(Options{"api_key": "or-key", "base_url": server.URL})

	resp, err := a.ChatCompletion(context.Background(), &Request{
		Model:    "small/cheap",
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.00012, resp.Metadata["cost"])
	assert.Equal(t, "openrouter", resp.Metadata["provider"])
}
