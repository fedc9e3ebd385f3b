package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClient_Chat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3", body["model"])
		assert.Equal(t, false, body["stream"])
		opts := body["options"].(map[string]interface{})
		assert.Equal(t, float64(64), opts["num_predict"])
		w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"No"},"done":true,"prompt_eval_count":3,"eval_count":1}`))
	}))
	defer srv.Close()

	client, err := NewOllamaClient(&OllamaConfig{URL: srv.URL, DefaultModel: "llama3"})
	require.NoError(t, err)
	res, err := client.Chat(context.Background(), &Request{
		Messages:  []Message{{Role: RoleUser, Content: "Is it cold?"}},
		MaxTokens: 64,
	})
	require.NoError(t, err)
	assert.Equal(t, "No", res.Content)
	assert.Equal(t, 4, res.TokensUsed)
}

func TestOllamaClient_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client, _ := NewOllamaClient(&OllamaConfig{URL: srv.URL, DefaultModel: "x"})
	_, err := client.Chat(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusNotFound, upErr.StatusCode)
}

func TestOllamaClient_NoCompletion(t *testing.T) {
	bodies := map[string]string{
		"missing message": `{"model":"llama3","done":true}`,
		"missing content": `{"model":"llama3","message":{"role":"assistant"},"done":true}`,
		"null content":    `{"model":"llama3","message":{"role":"assistant","content":null},"done":true}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			client, _ := NewOllamaClient(&OllamaConfig{URL: srv.URL, DefaultModel: "llama3"})
			res, err := client.Chat(context.Background(), &Request{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
			assert.Nil(t, res)
			var upErr *UpstreamError
			require.True(t, errors.As(err, &upErr), "expected UpstreamError, got %v", err)
			assert.Equal(t, providerOllama, upErr.Provider)
			assert.Equal(t, http.StatusOK, upErr.StatusCode)
		})
	}
}

func TestOllamaClient_Health(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	client, _ := NewOllamaClient(&OllamaConfig{URL: srv.URL})
	assert.NoError(t, client.Health())
}
