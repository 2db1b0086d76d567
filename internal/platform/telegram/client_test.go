package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage(t *testing.T) {
	var got sendMessageReq
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botsecret/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL))
	require.NoError(t, c.SendMessage(context.Background(), 42, "New triage report"))
	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, "New triage report", got.Text)
}

func TestSendDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botsecret/sendDocument", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "42", r.FormValue("chat_id"))

		f, h, err := r.FormFile("document")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "report.pdf", h.Filename)
		assert.Equal(t, "%PDF-1.4", string(data))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL))
	require.NoError(t, c.SendDocument(context.Background(), 42, []byte("%PDF-1.4"), "report.pdf"))
}

func TestSendMessage_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer srv.Close()

	err := NewClient("secret", WithBaseURL(srv.URL)).SendMessage(context.Background(), 1, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestEnabled(t *testing.T) {
	assert.False(t, NewClient("").Enabled())
	assert.True(t, NewClient("t").Enabled())
}
