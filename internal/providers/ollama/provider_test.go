package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mwiater/atelier/internal/appconfig"
	"github.com/mwiater/atelier/internal/providers"
)

func TestGenerateTextNonStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if stream, ok := payload["stream"].(bool); !ok || stream {
			t.Fatalf("expected stream=false, got %v", payload["stream"])
		}
		messages, _ := payload["messages"].([]any)
		if len(messages) != 2 {
			t.Fatalf("expected system+user messages, got %v", payload["messages"])
		}
		options, _ := payload["options"].(map[string]any)
		if options["num_predict"] != float64(256) {
			t.Fatalf("expected num_predict, got %v", payload["options"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"<section>hi</section>"},"done":true}`))
	}))
	defer server.Close()

	p := New(&appconfig.Config{Endpoints: appconfig.Endpoints{Ollama: server.URL}})
	out, err := p.GenerateText(context.Background(), providers.TextRequest{SystemPrompt: "sys", UserContent: "hi", Model: "llama3", MaxTokens: 256})
	if err != nil {
		t.Fatalf("GenerateText error: %v", err)
	}
	if out != "<section>hi</section>" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestGenerateTextErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	p := New(&appconfig.Config{Endpoints: appconfig.Endpoints{Ollama: server.URL}})
	_, err := p.GenerateText(context.Background(), providers.TextRequest{Model: "missing"})
	if !errors.Is(err, providers.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestDefaultBaseURL(t *testing.T) {
	for _, endpoint := range []string{"", "::not a url"} {
		p := New(&appconfig.Config{Endpoints: appconfig.Endpoints{Ollama: endpoint}})
		if p.baseURL != defaultBaseURL {
			t.Fatalf("New(%q).baseURL = %q", endpoint, p.baseURL)
		}
	}
}

func TestGenerateTextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(&appconfig.Config{Endpoints: appconfig.Endpoints{Ollama: server.URL}})
	_, err := p.GenerateText(ctx, providers.TextRequest{Model: "llama3", UserContent: "hi"})
	if !providers.IsCancelled(err) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]string{{"name": "llama3.2:3b"}, {"name": "qwen2.5-coder:7b"}},
		})
	}))
	defer srv.Close()

	p := New(&appconfig.Config{Endpoints: appconfig.Endpoints{Ollama: srv.URL}})
	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels error: %v", err)
	}
	if len(models) != 2 || models[0] != "llama3.2:3b" || models[1] != "qwen2.5-coder:7b" {
		t.Fatalf("models = %v", models)
	}
}

func TestListModelsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := New(&appconfig.Config{Endpoints: appconfig.Endpoints{Ollama: srv.URL}})
	_, err := p.ListModels(context.Background())
	if !errors.Is(err, providers.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
