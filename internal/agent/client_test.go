package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatClient_Complete(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"role": "assistant", "content": `Sure! {"a":1}`}},
			},
		})
	}))
	defer server.Close()

	c := NewChatClient(Config{Host: server.URL + "/", APIKey: "secret", Model: "test-model", Temperature: 0.7})
	reply, err := c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Parts: []Part{TextPart("look at this"), ImagePart("data:image/png;base64,AAAA")}},
	})
	require.NoError(t, err)
	assert.Equal(t, `Sure! {"a":1}`, reply)

	assert.Equal(t, "test-model", got["model"])
	assert.Equal(t, 0.7, got["temperature"])
	assert.EqualValues(t, 1500, got["max_tokens"])
	assert.Equal(t, false, got["stream"])

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "be brief", msgs[0].(map[string]any)["content"])

	parts := msgs[1].(map[string]any)["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, map[string]any{"type": "text", "text": "look at this"}, parts[0])
	assert.Equal(t, map[string]any{
		"type":      "image_url",
		"image_url": map[string]any{"url": "data:image/png;base64,AAAA"},
	}, parts[1])
}

func TestChatClient_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewChatClient(Config{Host: server.URL}).Complete(context.Background(), nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Contains(t, se.Body, "model not loaded")
}

func TestChatClient_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := NewChatClient(Config{Host: server.URL}).Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyReply)
}

func TestChatClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	c := NewChatClient(Config{Host: server.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Complete(context.Background(), nil)
	assert.Error(t, err)
}

func TestMessage_MarshalPlainContent(t *testing.T) {
	b, err := json.Marshal(Message{Role: RoleAssistant, Content: "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"assistant","content":"hello"}`, string(b))
}

func TestChatClient_ZeroTemperatureIsSent(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": "{}"}}},
		})
	}))
	defer server.Close()

	_, err := NewChatClient(Config{Host: server.URL, Temperature: 0}).Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Contains(t, got, "temperature")
	assert.Zero(t, got["temperature"])
	assert.EqualValues(t, 1500, got["max_tokens"])
}
