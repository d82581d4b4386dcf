package caption

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func completion(content string) string {
	data, _ := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"message": map[string]string{"role": "assistant", "content": content}}},
	})
	return string(data)
}

func TestGenerateWithoutKeySkipsNetwork(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	g := NewGenerator(Config{BaseURL: srv.URL}, zap.NewNop())
	caption, err := g.Generate(context.Background(), "new spa opening", "")
	require.NoError(t, err)

	assert.Empty(t, caption)
	assert.Zero(t, atomic.LoadInt32(&calls))
	assert.False(t, g.Enabled())
}

func TestGenerateSendsOneRequest(t *testing.T) {
	var calls int32
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(completion("Relax, renew, repeat.")))
	}))
	defer srv.Close()

	g := NewGenerator(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", DefaultTone: "warm"}, zap.NewNop())
	caption, err := g.Generate(context.Background(), "new spa opening", "")
	require.NoError(t, err)

	assert.Equal(t, "Relax, renew, repeat.", caption)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.Equal(t, "gpt-4o-mini", got.Model)
	assert.Equal(t, 60, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.True(t, strings.HasPrefix(got.Messages[0].Content, "Create a short Instagram caption based on this brief: new spa opening"))
	assert.Contains(t, got.Messages[0].Content, "Tone: warm.")
	assert.Contains(t, got.Messages[0].Content, "140 characters")
}

func TestGenerateCleansFirstLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion("\n1. \"Bold lines, bolder you.\"\n2. Another option")))
	}))
	defer srv.Close()

	g := NewGenerator(Config{APIKey: "sk-test", BaseURL: srv.URL}, zap.NewNop())
	caption, err := g.Generate(context.Background(), "flash sale", "playful")
	require.NoError(t, err)
	assert.Equal(t, "Bold lines, bolder you.", caption)
}

func TestGenerateSkipsIntroLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion("Here are some options:\n1. Fresh ink, fresh start.\n2. Another option")))
	}))
	defer srv.Close()

	g := NewGenerator(Config{APIKey: "sk-test", BaseURL: srv.URL}, zap.NewNop())
	caption, err := g.Generate(context.Background(), "new year flash", "")
	require.NoError(t, err)
	assert.Equal(t, "Fresh ink, fresh start.", caption)
}

func TestGenerateTruncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion(strings.Repeat("ink ", 100))))
	}))
	defer srv.Close()

	g := NewGenerator(Config{APIKey: "sk-test", BaseURL: srv.URL}, zap.NewNop())
	caption, err := g.Generate(context.Background(), "flash sale", "")
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(caption)), 140)
}

func TestGenerateNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	g := NewGenerator(Config{APIKey: "sk-test", BaseURL: srv.URL}, zap.NewNop())
	caption, err := g.Generate(context.Background(), "flash sale", "")
	assert.Error(t, err)
	assert.Empty(t, caption)
}

func TestGenerateNoChoicesIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	g := NewGenerator(Config{APIKey: "sk-test", BaseURL: srv.URL}, zap.NewNop())
	_, err := g.Generate(context.Background(), "flash sale", "")
	assert.Error(t, err)
}

func TestGenerateTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()
	defer close(release)

	g := NewGenerator(Config{APIKey: "sk-test", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, zap.NewNop())
	_, err := g.Generate(context.Background(), "flash sale", "")
	assert.Error(t, err)
}
