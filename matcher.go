package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// MatchResult is the verdict for a single round.
type MatchResult struct {
	IsMatch     bool   `json:"isMatch"`
	Similarity  int    `json:"similarity"`
	Explanation string `json:"explanation"`
}

// Matcher judges answer compatibility and writes the end-of-game
// narrative. Implementations never return errors: oracle failures are
// absorbed by deterministic fallbacks so a round can never get stuck.
type Matcher interface {
	Evaluate(ctx context.Context, question, answer1, answer2, name1, name2 string) MatchResult
	Summarize(ctx context.Context, scores Scores, totalRounds int, name1, name2 string) string
}

// oracleMatcher delegates to an OpenAI-style chat-completions endpoint.
type oracleMatcher struct {
	cfg    *Config
	client *http.Client
}

func newOracleMatcher(cfg *Config) *oracleMatcher {
	return &oracleMatcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.oracleTimeout},
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat *formatSpec   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type formatSpec struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (m *oracleMatcher) Evaluate(ctx context.Context, question, answer1, answer2, name1, name2 string) MatchResult {
	prompt := fmt.Sprintf(`Analyze these answers from a couples compatibility game:

Question: %q
%s's answer: %q
%s's answer: %q

Consider:
- Semantic similarity (same meaning, different words)
- Complementary answers (different but compatible)
- Shared values or preferences
- Overall vibe and energy match

Respond with JSON containing: isMatch (boolean), similarity (0-100 number), explanation (string with MAX 10 words - be playful and concise!).
Be generous with matches - couples don't need identical answers to be compatible.`,
		question, name1, answer1, name2, answer2)

	content, err := m.complete(ctx, chatRequest{
		Model: m.cfg.oracleModel,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: "You are a fun, playful AI that analyzes couple compatibility. Keep explanations SHORT (max 10 words), casual, and fun. Always respond with valid JSON only.",
			},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &formatSpec{Type: "json_object"},
	})
	if err != nil {
		logf(m.cfg, "ORACLE: Evaluate failed, using fallback: %v", err)
		return fallbackEvaluate(answer1, answer2)
	}

	var result MatchResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		logf(m.cfg, "ORACLE: Malformed verdict, using fallback: %v", err)
		return fallbackEvaluate(answer1, answer2)
	}

	if result.Similarity < 0 {
		result.Similarity = 0
	}
	if result.Similarity > 100 {
		result.Similarity = 100
	}

	return result
}

func (m *oracleMatcher) Summarize(ctx context.Context, scores Scores, totalRounds int, name1, name2 string) string {
	matchPercentage := matchPercent(scores.Player1, totalRounds)

	prompt := fmt.Sprintf(`%s and %s matched on %d out of %d questions (%d%%).

Generate a fun, playful, and encouraging vibe analysis (2-3 sentences) that:
- Celebrates their connection
- Is romantic and positive
- Uses emojis sparingly
- Gives them a creative "vibe" label (like "Cosmic Soulmates", "Adventure Twins", "Cozy Companions", etc.)

Keep it upbeat and fun!`,
		name1, name2, scores.Player1, totalRounds, matchPercentage)

	content, err := m.complete(ctx, chatRequest{
		Model: m.cfg.oracleModel,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: "You are a fun, playful relationship analyst who creates encouraging vibe analyses for couples.",
			},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil || content == "" {
		if err != nil {
			logf(m.cfg, "ORACLE: Summarize failed, using fallback: %v", err)
		}
		return fallbackSummarize(scores, totalRounds)
	}

	return content
}

func (m *oracleMatcher) complete(ctx context.Context, req chatRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.oracleTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(m.cfg.oracleURL, "/")+"/chat/completions",
		bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if m.cfg.oracleKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+m.cfg.oracleKey)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("oracle returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// fallbackEvaluate is the deterministic matcher used whenever the
// oracle is unavailable: case-insensitive, whitespace-trimmed equality.
func fallbackEvaluate(answer1, answer2 string) MatchResult {
	match := strings.EqualFold(strings.TrimSpace(answer1), strings.TrimSpace(answer2))

	similarity := 0
	if match {
		similarity = 100
	}

	return MatchResult{
		IsMatch:     match,
		Similarity:  similarity,
		Explanation: "Using fallback matching due to AI error",
	}
}

// fallbackSummarize tiers the canned narrative by match percentage.
func fallbackSummarize(scores Scores, totalRounds int) string {
	switch pct := matchPercent(scores.Player1, totalRounds); {
	case pct >= 80:
		return "You two are totally in sync! Your vibes are perfectly aligned. 💕"
	case pct >= 60:
		return "Great connection! You understand each other well. Keep vibing! ✨"
	default:
		return "Opposites attract! Your unique perspectives make you special together. 💖"
	}
}

func matchPercent(matches, totalRounds int) int {
	if totalRounds <= 0 {
		return 0
	}
	return int(float64(matches)/float64(totalRounds)*100 + 0.5)
}
