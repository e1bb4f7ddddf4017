package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mistral", req.Model)
		assert.Equal(t, "judge this", req.Prompt)
		assert.Equal(t, "json", req.Format)
		assert.False(t, req.Stream)
		assert.EqualValues(t, 0, req.Options["temperature"])
		assert.EqualValues(t, 64, req.Options["num_predict"])
		w.Write([]byte(`{"model":"mistral","response":"{\"score\":0.8}","done":true}`))
	}))
	defer srv.Close()

	client := NewOllama(Config{BaseURL: srv.URL + "/", Model: "mistral", MaxTokens: 64})

	out, err := client.Generate(context.Background(), "judge this")
	require.NoError(t, err)
	assert.Equal(t, `{"score":0.8}`, out)
}

func TestOllamaDefaults(t *testing.T) {
	o := NewOllama(Config{})
	assert.Equal(t, "http://localhost:11434/api/generate", o.endpoint)
	assert.Equal(t, "llama3.2", o.model)
	assert.NotNil(t, o.client)
}

func TestOllamaGenerateError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such model", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllama(Config{BaseURL: srv.URL}).Generate(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
	assert.Contains(t, err.Error(), "no such model")
}
