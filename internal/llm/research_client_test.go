package llm

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

func TestResearchClient_SummarizeQuery(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Key findings: magnesium helps sleep"}}]}`))
	}))
	defer server.Close()

	client := NewResearchClient(server.URL, "secret", "sonar-test")
	out, err := client.SummarizeQuery(context.Background(), "magnesium and sleep")
	require.NoError(t, err)

	assert.Equal(t, "Key findings: magnesium helps sleep", out)
	assert.Equal(t, "sonar-test", captured["model"])

	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 2)
	user := messages[1].(map[string]any)
	assert.Equal(t, "Search for recent scientific research about: magnesium and sleep", user["content"])
}

func TestResearchClient_StatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusBadGateway, KindUnavailable},
		{http.StatusGatewayTimeout, KindTimeout},
		{http.StatusUnauthorized, KindRejected},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			_, err := NewResearchClient(server.URL, "k", "m").SummarizeQuery(context.Background(), "q")
			require.Error(t, err)

			var llmErr *Error
			require.True(t, errors.As(err, &llmErr))
			assert.Equal(t, tt.want, llmErr.Kind)
			assert.Equal(t, tt.status, llmErr.StatusCode)
		})
	}
}

func TestResearchClient_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	_, err := NewResearchClient(server.URL, "k", "m").SummarizeQuery(context.Background(), "q")
	assert.Equal(t, KindBadResponse, KindOf(err))
}

func TestResearchClient_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewResearchClient(server.URL, "k", "m").SummarizeQuery(ctx, "q")
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestKindOf_ForeignErrors(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	assert.Equal(t, KindUnavailable, KindOf(errors.New("boom")))
}
