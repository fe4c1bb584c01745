package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Verdicter obtains a short free-text safety verdict for a prompt and a
// base64-encoded photo. Implemented by Client; substituted in tests.
type Verdicter interface {
	Evaluate(ctx context.Context, prompt, base64Image string) (string, error)
}

// Compile-time interface check
var _ Verdicter = (*Client)(nil)

// Client calls an OpenAI-compatible chat completions endpoint with the
// prompt and the photo attached as a data URL. The response is expected
// to be a single short answer.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	client  *http.Client
}

// NewClient creates a vision verdict client.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		timeout: timeout,
		client:  &http.Client{},
	}
}

// The answer is one word; a small completion budget keeps the service
// from elaborating.
const maxTokens = 5

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Evaluate sends the prompt and photo and returns the raw verdict text.
// An empty response is returned as-is; the pipeline decides what an
// empty verdict means.
func (c *Client) Evaluate(ctx context.Context, prompt, base64Image string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody := chatRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []chatMessage{
			{
				Role: "user",
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{
						Type:     "image_url",
						ImageURL: &imageURL{URL: "data:image/jpeg;base64," + base64Image},
					},
				},
			},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision service unreachable: %w", err)
	}
	defer resp.Body.Close()

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode vision response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if parsed.Error != nil {
			return "", fmt.Errorf("vision service error: %s", parsed.Error.Message)
		}
		return "", fmt.Errorf("vision service returned status %d", resp.StatusCode)
	}

	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}
