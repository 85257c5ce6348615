package provider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/structured-prompt/promptsvc/internal/config"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const geminiDefaultBaseURL = "https://generativelanguage.googleapis.com"

type geminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

func newGeminiClient(key config.ProviderKey, httpClient *http.Client) *geminiClient {
	model := key.Model
	if model == "" {
		model = defaultGeminiModel
	}
	baseURL := key.BaseURL
	if baseURL == "" {
		baseURL = geminiDefaultBaseURL
	}
	return &geminiClient{apiKey: key.APIKey, model: model, baseURL: baseURL, httpClient: httpClient}
}

func (c *geminiClient) Name() Name    { return Gemini }
func (c *geminiClient) Model() string { return c.model }

func (c *geminiClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	payload, _ := sjson.SetBytes([]byte(`{}`), "contents.0.parts.0.text", req.Prompt)
	payload, _ = sjson.SetBytes(payload, "contents.0.role", "user")
	payload, _ = sjson.SetBytes(payload, "generationConfig.temperature", req.Temperature)
	if req.MaxTokens > 0 {
		payload, _ = sjson.SetBytes(payload, "generationConfig.maxOutputTokens", req.MaxTokens)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	start := time.Now()
	body, err := postJSON(ctx, c.httpClient, Gemini, url, nil, payload)
	if err != nil {
		return nil, err
	}
	latency := time.Since(start)

	root := gjson.ParseBytes(body)
	text := root.Get("candidates.0.content.parts.0.text").String()
	if text == "" {
		if reason := root.Get("candidates.0.finishReason").String(); reason != "" && reason != "STOP" {
			return nil, &Error{Provider: Gemini, Kind: KindParse, Message: "empty completion, finish reason " + reason}
		}
		return nil, &Error{Provider: Gemini, Kind: KindParse, Message: "no completion text in response"}
	}

	tokens := int(root.Get("usageMetadata.totalTokenCount").Int())
	if tokens == 0 {
		tokens = CountTokens(c.model, req.Prompt+text)
	}

	log.WithFields(log.Fields{"provider": Gemini, "model": c.model, "latency_ms": latency.Milliseconds(), "tokens_used": tokens}).Debug("upstream request complete")

	return &Response{Text: text, Model: c.model, TokensUsed: tokens, Latency: latency}, nil
}

func (c *geminiClient) TestConnection(ctx context.Context) error {
	_, err := c.Generate(ctx, &Request{Prompt: connectionProbePrompt, MaxTokens: 10})
	return err
}
