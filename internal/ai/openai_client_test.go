package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOpenAI serves /v1/chat/completions with the given choices and records
// the decoded request.
func fakeOpenAI(t *testing.T, choices []string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}

		out := make([]map[string]any, 0, len(choices))
		for i, c := range choices {
			out = append(out, map[string]any{
				"index":         i,
				"message":       map[string]any{"role": "assistant", "content": c},
				"finish_reason": "stop",
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": out,
			"usage":   map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCompleteTrimsFirstChoice(t *testing.T) {
	var req map[string]any
	srv := fakeOpenAI(t, []string{"  Sure, see you there!\n", "second"}, &req)

	c, err := NewOpenAIClient(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), BuildPrompt("will there be slides?"), 50)
	require.NoError(t, err)

	assert.Equal(t, "Sure, see you there!", out)
	assert.EqualValues(t, 50, req["max_tokens"])
	assert.Equal(t, "gpt-4o-mini", req["model"])
}

func TestCompleteNoChoices(t *testing.T) {
	srv := fakeOpenAI(t, nil, nil)

	c, err := NewOpenAIClient(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "hi", 10)
	assert.ErrorIs(t, err, ErrNoChoices)
}

func TestCompleteTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	c, err := NewOpenAIClient(OpenAIOptions{
		APIKey:  "sk-test",
		BaseURL: srv.URL + "/v1",
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Complete(context.Background(), "hi", 10)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIOptions{})
	assert.Error(t, err)
}

func TestBuildPromptEmbedsMessage(t *testing.T) {
	p := BuildPrompt(`is this "recorded"?`)
	assert.Contains(t, p, `Message: "is this \"recorded\"?"`)
}

func TestShortKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "hi", short("hi"))

	long := strings.Repeat("é", 179) + "日本語"
	got := short(long)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", 179)+"日...", got)
}
