package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oracleConfig(url string) *Config {
	cfg := testConfig()
	cfg.oracleURL = url
	cfg.oracleKey = "test-key"
	cfg.oracleTimeout = 2 * time.Second
	return cfg
}

// fakeOracle answers chat-completions requests with a fixed content
// payload and records what it was asked.
func fakeOracle(t *testing.T, status int, content string, got *chatRequest) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if got != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(got))
		}

		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		response := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
}

func TestOracleEvaluate(t *testing.T) {
	var got chatRequest
	srv := fakeOracle(t, http.StatusOK,
		`{"isMatch": true, "similarity": 88, "explanation": "Same vibe, same brain!"}`, &got)
	defer srv.Close()

	matcher := newOracleMatcher(oracleConfig(srv.URL))

	result := matcher.Evaluate(context.Background(),
		"What's your favorite comfort food?", "ramen", "noodle soup", "Alex", "Sam")

	assert.True(t, result.IsMatch)
	assert.Equal(t, 88, result.Similarity)
	assert.Equal(t, "Same vibe, same brain!", result.Explanation)

	assert.Equal(t, "test-model", got.Model)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, `Alex's answer: "ramen"`)
	assert.Contains(t, got.Messages[1].Content, `Sam's answer: "noodle soup"`)
}

func TestOracleEvaluateClampsSimilarity(t *testing.T) {
	srv := fakeOracle(t, http.StatusOK,
		`{"isMatch": true, "similarity": 150, "explanation": "Off the charts!"}`, nil)
	defer srv.Close()

	matcher := newOracleMatcher(oracleConfig(srv.URL))

	result := matcher.Evaluate(context.Background(), "q", "a", "b", "Alex", "Sam")
	assert.Equal(t, 100, result.Similarity)
}

func TestOracleEvaluateFallsBackOnError(t *testing.T) {
	for name, tc := range map[string]struct {
		status  int
		content string
	}{
		"http error":    {status: http.StatusInternalServerError},
		"malformed":     {status: http.StatusOK, content: `not json at all`},
		"empty choices": {status: http.StatusOK, content: ""},
	} {
		t.Run(name, func(t *testing.T) {
			srv := fakeOracle(t, tc.status, tc.content, nil)
			defer srv.Close()

			matcher := newOracleMatcher(oracleConfig(srv.URL))

			result := matcher.Evaluate(context.Background(), "q", "blue", "Blue ", "Alex", "Sam")
			assert.True(t, result.IsMatch)
			assert.Equal(t, 100, result.Similarity)
			assert.Equal(t, "Using fallback matching due to AI error", result.Explanation)
		})
	}
}

func TestOracleEvaluateUnreachable(t *testing.T) {
	matcher := newOracleMatcher(oracleConfig("http://127.0.0.1:0"))

	result := matcher.Evaluate(context.Background(), "q", "blue", "red", "Alex", "Sam")
	assert.False(t, result.IsMatch)
	assert.Equal(t, 0, result.Similarity)
}

func TestOracleSummarize(t *testing.T) {
	var got chatRequest
	srv := fakeOracle(t, http.StatusOK,
		"Cosmic Soulmates! You two share one brain cell and it shows. 💕", &got)
	defer srv.Close()

	matcher := newOracleMatcher(oracleConfig(srv.URL))

	vibe := matcher.Summarize(context.Background(), Scores{Player1: 4, Player2: 4}, 5, "Alex", "Sam")
	assert.Equal(t, "Cosmic Soulmates! You two share one brain cell and it shows. 💕", vibe)

	// Summarize is free-form prose, not forced JSON.
	assert.Nil(t, got.ResponseFormat)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[1].Content, "4 out of 5")
}

func TestOracleSummarizeFallsBack(t *testing.T) {
	srv := fakeOracle(t, http.StatusBadGateway, "", nil)
	defer srv.Close()

	matcher := newOracleMatcher(oracleConfig(srv.URL))

	vibe := matcher.Summarize(context.Background(), Scores{Player1: 5, Player2: 5}, 5, "Alex", "Sam")
	assert.Equal(t, fallbackSummarize(Scores{Player1: 5, Player2: 5}, 5), vibe)
}

func TestFallbackEvaluate(t *testing.T) {
	for name, tc := range map[string]struct {
		answer1 string
		answer2 string
		match   bool
	}{
		"case and space insensitive": {"blue", " Blue ", true},
		"identical":                  {"pizza", "pizza", true},
		"different":                  {"blue", "red", false},
		"both empty":                 {"", "", true},
	} {
		t.Run(name, func(t *testing.T) {
			result := fallbackEvaluate(tc.answer1, tc.answer2)
			assert.Equal(t, tc.match, result.IsMatch)

			want := 0
			if tc.match {
				want = 100
			}
			assert.Equal(t, want, result.Similarity)
			assert.Equal(t, "Using fallback matching due to AI error", result.Explanation)

			// Deterministic for the same inputs.
			assert.Equal(t, result, fallbackEvaluate(tc.answer1, tc.answer2))
		})
	}
}

func TestFallbackSummarizeTiers(t *testing.T) {
	high := fallbackSummarize(Scores{Player1: 4}, 5)
	mid := fallbackSummarize(Scores{Player1: 3}, 5)
	low := fallbackSummarize(Scores{Player1: 1}, 5)

	assert.Contains(t, high, "totally in sync")
	assert.Contains(t, mid, "Great connection")
	assert.Contains(t, low, "Opposites attract")

	// Exactly at the 80% boundary.
	assert.Equal(t, high, fallbackSummarize(Scores{Player1: 8}, 10))
}

func TestMatchPercent(t *testing.T) {
	assert.Equal(t, 0, matchPercent(3, 0))
	assert.Equal(t, 100, matchPercent(5, 5))
	assert.Equal(t, 60, matchPercent(3, 5))
	assert.Equal(t, 67, matchPercent(2, 3))
}
