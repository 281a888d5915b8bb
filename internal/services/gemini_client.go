package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"matchpost/backend/pkg/models"
)

// GeminiClient calls a Gemini-compatible generateContent REST API. It
// implements workflow.Generator: structured fact extraction via JSON response
// mode, and free-text draft composition.
type GeminiClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewGeminiClient creates a new GeminiClient.
func NewGeminiClient(baseURL, apiKey, model string, timeout time.Duration) *GeminiClient {
	return &GeminiClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string `json:"responseMimeType,omitempty"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	Contents          []geminiContent         `json:"contents"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// matchData mirrors the JSON document the extraction prompt asks the model to
// produce.
type matchData struct {
	DataFound        bool   `json:"data_found"`
	MatchResult      string `json:"match_result"`
	Teams            string `json:"teams"`
	Score            string `json:"score"`
	MatchSummary     string `json:"match_summary"`
	PlayerOfTheMatch string `json:"player_of_the_match"`
	KeyMoment        string `json:"key_moment"`
}

const extractionPrompt = `You are an expert sports data researcher. Your goal is to find the latest, most accurate information for the following sports match query: %q.

Here are the search results to analyze:
%s

Based ONLY on the information from these search results, return a JSON object with exactly these fields:
- "data_found": true if the match data was successfully found, otherwise false
- "match_result": concise outcome including the winner and margin of victory (e.g. "India won by 7 wickets")
- "teams": the two teams that played, formatted as "Team A vs. Team B"
- "score": the final score in detail (e.g. "IND: 251/3, AUS: 250/10")
- "match_summary": a brief 2-3 sentence summary of how the match unfolded, mentioning key phases or performances
- "player_of_the_match": the Player of the Match, or "N/A" if not available
- "key_moment": the single most decisive or memorable moment of the match

If you cannot find relevant information, set "data_found" to false and fill the other fields with "Data not available".`

const composerSystemPrompt = `You are a witty, concise, and insightful sports commentator who writes engaging social posts.
Your job is to turn match details into viral-worthy posts.
Follow these rules:
- Keep it under 280 characters
- Make it punchy, thought-provoking, or celebratory
- Avoid cliches like 'What a match!' or 'Unbelievable scenes'
- Highlight the drama and energy of the game
- You may use emojis sparingly if it adds impact`

// ExtractFacts runs structured generation over the evidence and returns the
// typed match-fact record plus the capability's data-found flag.
func (c *GeminiClient) ExtractFacts(ctx context.Context, topic string, evidence []string) (*models.MatchFacts, bool, error) {
	prompt := fmt.Sprintf(extractionPrompt, topic, formatEvidence(evidence))

	req := geminiRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: prompt}}},
		},
		GenerationConfig: &geminiGenerationConfig{ResponseMIMEType: "application/json"},
	}

	text, err := c.generate(ctx, req)
	if err != nil {
		return nil, false, err
	}

	var data matchData
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, false, fmt.Errorf("malformed extraction output: %w", err)
	}

	return &models.MatchFacts{
		MatchResult:      data.MatchResult,
		Teams:            data.Teams,
		Score:            data.Score,
		MatchSummary:     data.MatchSummary,
		PlayerOfTheMatch: data.PlayerOfTheMatch,
		KeyMoment:        data.KeyMoment,
	}, data.DataFound, nil
}

// ComposeDraft produces one short-form post from the facts, responding to the
// latest feedback when present.
func (c *GeminiClient) ComposeDraft(ctx context.Context, facts *models.MatchFacts, feedback string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a post based on the following match details:\n\n")
	fmt.Fprintf(&b, "Match Result: %q\n", facts.MatchResult)
	fmt.Fprintf(&b, "Match Summary: %q\n", facts.MatchSummary)
	fmt.Fprintf(&b, "Key Moment: %q\n", facts.KeyMoment)
	if feedback != "" {
		fmt.Fprintf(&b, "\nUser Feedback: %q\nPlease use this feedback to regenerate the post.\n", feedback)
	}
	b.WriteString("\nReturn ONLY the post text, no explanations.")

	req := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: composerSystemPrompt}}},
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: b.String()}}},
		},
	}

	text, err := c.generate(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// generate performs one generateContent call and returns the first
// candidate's text.
func (c *GeminiClient) generate(ctx context.Context, request geminiRequest) (string, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation failed: status code %d", resp.StatusCode)
	}

	var body geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response body: %w", err)
	}
	if len(body.Candidates) == 0 || len(body.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generation returned no candidates")
	}
	return body.Candidates[0].Content.Parts[0].Text, nil
}

func formatEvidence(evidence []string) string {
	if len(evidence) == 0 {
		return "(no search results were found)"
	}
	var b strings.Builder
	for i, snippet := range evidence {
		fmt.Fprintf(&b, "%d. %s\n", i+1, snippet)
	}
	return b.String()
}
