package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TavilySearchClient calls a Tavily-compatible search REST API. It implements
// workflow.Searcher.
type TavilySearchClient struct {
	baseURL    string
	apiKey     string
	maxResults int
	httpClient *http.Client
}

// NewTavilySearchClient creates a new TavilySearchClient.
func NewTavilySearchClient(baseURL, apiKey string, maxResults int, timeout time.Duration) *TavilySearchClient {
	if maxResults <= 0 {
		maxResults = 2
	}
	return &TavilySearchClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxResults: maxResults,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type tavilySearchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilySearchResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search returns the content snippets for the query. An empty result list is
// a valid response and is returned as-is.
func (c *TavilySearchClient) Search(ctx context.Context, query string) ([]string, error) {
	requestBody, err := json.Marshal(tavilySearchRequest{
		APIKey:     c.apiKey,
		Query:      query,
		MaxResults: c.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed: status code %d", resp.StatusCode)
	}

	var body tavilySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	snippets := make([]string, 0, len(body.Results))
	for _, result := range body.Results {
		if result.Content != "" {
			snippets = append(snippets, result.Content)
		}
	}
	return snippets, nil
}
