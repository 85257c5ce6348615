package provider

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/structured-prompt/promptsvc/internal/config"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	claudeDefaultBaseURL = "https://api.anthropic.com"
	anthropicVersion     = "2023-06-01"

	// connectionProbePrompt is sent by TestConnection on every provider.
	connectionProbePrompt = "Respond with a single word: 'success'"
)

type claudeClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func newClaudeClient(key config.ProviderKey, httpClient *http.Client) *claudeClient {
	model := key.Model
	if model == "" {
		model = defaultClaudeModel
	}
	baseURL := key.BaseURL
	if baseURL == "" {
		baseURL = claudeDefaultBaseURL
	}
	return &claudeClient{apiKey: key.APIKey, model: model, baseURL: baseURL, httpClient: httpClient}
}

func (c *claudeClient) Name() Name    { return Claude }
func (c *claudeClient) Model() string { return c.model }

func (c *claudeClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2000
	}
	payload, _ := sjson.SetBytes([]byte(`{}`), "model", c.model)
	payload, _ = sjson.SetBytes(payload, "max_tokens", maxTokens)
	payload, _ = sjson.SetBytes(payload, "temperature", req.Temperature)
	payload, _ = sjson.SetBytes(payload, "messages.0.role", "user")
	payload, _ = sjson.SetBytes(payload, "messages.0.content", req.Prompt)

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}

	start := time.Now()
	body, err := postJSON(ctx, c.httpClient, Claude, c.baseURL+"/v1/messages", headers, payload)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	root := gjson.ParseBytes(body)
	text := root.Get("content.0.text").String()
	if text == "" {
		return nil, &Error{Provider: Claude, Kind: KindParse, Message: "no completion text in response"}
	}

	tokens := int(root.Get("usage.input_tokens").Int() + root.Get("usage.output_tokens").Int())
	if tokens == 0 {
		tokens = CountTokens(c.model, req.Prompt+text)
	}

	log.WithFields(log.Fields{"provider": Claude, "model": c.model, "latency_ms": latency.Milliseconds(), "tokens_used": tokens}).Debug("upstream request complete")

	return &Response{Text: text, Model: c.model, TokensUsed: tokens, Latency: latency}, nil
}

func (c *claudeClient) TestConnection(ctx context.Context) error {
	_, err := c.Generate(ctx, &Request{Prompt: connectionProbePrompt, MaxTokens: 10})
	return err
}
