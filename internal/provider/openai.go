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

const openaiDefaultBaseURL = "https://api.openai.com"

type openaiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func newOpenAIClient(key config.ProviderKey, httpClient *http.Client) *openaiClient {
	model := key.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	baseURL := key.BaseURL
	if baseURL == "" {
		baseURL = openaiDefaultBaseURL
	}
	return &openaiClient{apiKey: key.APIKey, model: model, baseURL: baseURL, httpClient: httpClient}
}

func (c *openaiClient) Name() Name    { return GPT4 }
func (c *openaiClient) Model() string { return c.model }

func (c *openaiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	payload, _ := sjson.SetBytes([]byte(`{}`), "model", c.model)
	payload, _ = sjson.SetBytes(payload, "temperature", req.Temperature)
	if req.MaxTokens > 0 {
		payload, _ = sjson.SetBytes(payload, "max_tokens", req.MaxTokens)
	}
	payload, _ = sjson.SetBytes(payload, "messages.0.role", "user")
	payload, _ = sjson.SetBytes(payload, "messages.0.content", req.Prompt)

	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	start := time.Now()
	body, err := postJSON(ctx, c.httpClient, GPT4, c.baseURL+"/v1/chat/completions", headers, payload)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	root := gjson.ParseBytes(body)
	text := root.Get("choices.0.message.content").String()
	if text == "" {
		return nil, &Error{Provider: GPT4, Kind: KindParse, Message: "no completion text in response"}
	}

	tokens := int(root.Get("usage.total_tokens").Int())
	if tokens == 0 {
		tokens = CountTokens(c.model, req.Prompt+text)
	}

	log.WithFields(log.Fields{"provider": GPT4, "model": c.model, "latency_ms": latency.Milliseconds(), "tokens_used": tokens}).Debug("upstream request complete")

	return &Response{Text: text, Model: c.model, TokensUsed: tokens, Latency: latency}, nil
}

func (c *openaiClient) TestConnection(ctx context.Context) error {
	_, err := c.Generate(ctx, &Request{Prompt: connectionProbePrompt, MaxTokens: 10})
	return err
}
