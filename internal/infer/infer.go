package infer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Scores holds one sigmoid score per model label for a single text.
type Scores map[string]float64

// Model scores texts against a fixed set of toxicity labels. Implementations
// report their label set up front so callers can prepare storage before the
// first batch.
type Model interface {
	Name() string
	Labels() []string
	Classify(ctx context.Context, texts []string) ([]Scores, error)
}

// Client talks to a toxicity inference server over HTTP. The server wraps a
// pretrained multi-label classifier; each label score is an independent
// sigmoid in [0, 1], not a softmax distribution.
type Client struct {
	name      string
	baseURL   string
	maxLength int
	labels    []string
	client    *http.Client
}

// NewClient connects to the inference server and reads the label set of the
// named model. An unreachable server is a hard error: without the label set
// nothing downstream can be set up.
func NewClient(baseURL, name string, maxLength int) (*Client, error) {
	c := &Client{
		name:      name,
		baseURL:   baseURL,
		maxLength: maxLength,
		client:    &http.Client{Timeout: 120 * time.Second},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/info", nil)
	if err != nil {
		return nil, fmt.Errorf("creating info request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference server unreachable at %s: %w", baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("inference server returned %d: %s", resp.StatusCode, string(respBody))
	}

	var info struct {
		Model  string   `json:"model"`
		Labels []string `json:"labels"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding server info: %w", err)
	}
	if len(info.Labels) == 0 {
		return nil, fmt.Errorf("inference server reported no labels for model %s", info.Model)
	}
	if info.Model != "" && info.Model != name {
		return nil, fmt.Errorf("inference server is serving %s, want %s", info.Model, name)
	}

	c.labels = info.Labels
	return c, nil
}

// Name returns the model identifier the server is serving.
func (c *Client) Name() string {
	return c.name
}

// Labels returns the model's label set in server order.
func (c *Client) Labels() []string {
	return c.labels
}

// Classify scores a batch of texts. The result is aligned with the input:
// one Scores map per text, covering every label. Empty strings never reach
// the server; they come back as all-zero scores.
func (c *Client) Classify(ctx context.Context, texts []string) ([]Scores, error) {
	results := make([]Scores, len(texts))

	var batch []string
	var positions []int
	for i, text := range texts {
		if text == "" {
			results[i] = c.zeroScores()
			continue
		}
		// The tokenizer truncates to max_length tokens server-side; the rune
		// cut here is a loose bound that keeps oversized bodies off the wire.
		batch = append(batch, truncate(text, c.maxLength*6))
		positions = append(positions, i)
	}
	if len(batch) == 0 {
		return results, nil
	}

	body := map[string]any{
		"model":      c.name,
		"texts":      batch,
		"max_length": c.maxLength,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/classify", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("inference server returned %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Scores [][]float64 `json:"scores"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding scores: %w", err)
	}
	if len(result.Scores) != len(batch) {
		return nil, fmt.Errorf("inference server returned %d score vectors for %d texts", len(result.Scores), len(batch))
	}

	for bi, vector := range result.Scores {
		if len(vector) != len(c.labels) {
			return nil, fmt.Errorf("score vector has %d entries, model has %d labels", len(vector), len(c.labels))
		}
		scores := make(Scores, len(c.labels))
		for li, label := range c.labels {
			scores[label] = vector[li]
		}
		results[positions[bi]] = scores
	}
	return results, nil
}

func (c *Client) zeroScores() Scores {
	scores := make(Scores, len(c.labels))
	for _, label := range c.labels {
		scores[label] = 0
	}
	return scores
}

// truncate cuts text to at most max runes.
func truncate(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
