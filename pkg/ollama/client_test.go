package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_Complete(t *testing.T) {
	var got ChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ChatResponse{
			Model:   got.Model,
			Message: Message{Role: "assistant", Content: "  SELECT 1;\n"},
			Done:    true,
		})
	}))
	defer server.Close()

	model := NewModel(NewClient(server.URL, 0), "llama3", 0, 128)
	out, err := model.Complete(context.Background(), "be terse", "question")
	require.NoError(t, err)

	assert.Equal(t, "SELECT 1;", out)
	assert.Equal(t, "llama3", got.Model)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "question", got.Messages[1].Content)
	require.NotNil(t, got.Options)
	assert.Equal(t, 128, got.Options.NumPredict)
}

func TestClient_ChatErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, 0).Chat(context.Background(), ChatRequest{Model: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestClient_Embed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		_, _ = w.Write([]byte(`{"embedding":[0.5,0.5,0.0]}`))
	}))
	defer server.Close()

	vec, err := NewClient(server.URL, 0).Embed(context.Background(), "nomic-embed-text", "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.5, 0}, vec)
}

func TestClient_EmbedEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[]}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, 0).Embed(context.Background(), "m", "hello")
	assert.Error(t, err)
}
