package llm

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4.1-mini"
)

// OpenAI pricing (per million tokens)
const (
	openAIInputPricePerMillion  = 0.40
	openAIOutputPricePerMillion = 1.60
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint.
type OpenAIProvider struct {
	httpClient *resty.Client
	apiKey     string
	model      string
}

// OpenAIOpts configures an OpenAIProvider.
type OpenAIOpts struct {
	BaseURL string
	APIKey  string
	Model   string
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(opts OpenAIOpts) *OpenAIProvider {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	model := opts.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIProvider{
		httpClient: resty.New().
			SetDebug(false).
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetHeader("Accept", "application/json"),
		apiKey: opts.APIKey,
		model:  model,
	}
}

func (o *OpenAIProvider) Name() string        { return "openai" }
func (o *OpenAIProvider) HasCredential() bool { return o.apiKey != "" }

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
		TotalTokens      int64 `json:"total_tokens"`
	} `json:"usage"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Generate posts the prompt to /chat/completions.
func (o *OpenAIProvider) Generate(ctx context.Context, prompt Prompt) (*RawResponse, error) {
	imageURL, err := openAIImageURL(prompt.Image)
	if err != nil {
		return &RawResponse{StatusCode: http.StatusBadRequest, Body: err.Error()}, nil
	}

	body := chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: prompt.System},
			{Role: "user", Content: []map[string]any{
				{"type": "text", "text": prompt.Task},
				{"type": "image_url", "image_url": map[string]string{"url": imageURL}},
			}},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
		Temperature:    0.2,
	}

	result := &chatResponse{}
	apiErr := &chatError{}
	res, err := o.httpClient.R().
		SetContext(ctx).
		SetAuthToken(o.apiKey).
		SetBody(body).
		SetResult(result).
		SetError(apiErr).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}

	if res.IsError() {
		msg := apiErr.Error.Message
		if msg == "" {
			msg = Excerpt(strings.TrimSpace(res.String()), 300)
		}
		return &RawResponse{
			StatusCode: res.StatusCode(),
			RetryAfter: parseRetryAfter(res.Header().Get("Retry-After"), time.Now()),
			Body:       msg,
		}, nil
	}

	text := ""
	if len(result.Choices) > 0 {
		text = result.Choices[0].Message.Content
	}
	usage := Usage{
		InputTokens:  result.Usage.PromptTokens,
		OutputTokens: result.Usage.CompletionTokens,
		TotalTokens:  result.Usage.TotalTokens,
	}
	usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, openAIInputPricePerMillion, openAIOutputPricePerMillion)

	log.Info().
		Str("model", o.model).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Int("responseLength", len(text)).
		Msg("evaluation llm call")

	return &RawResponse{StatusCode: res.StatusCode(), Body: text, Usage: usage}, nil
}

// openAIImageURL returns a URL the API accepts: remote URLs pass through,
// inline bytes become a data URL.
func openAIImageURL(img Image) (string, error) {
	switch {
	case len(img.Data) > 0:
		return dataURL(pickMIME(img.MIMEType, "", img.Data), img.Data), nil
	case isDataURL(img.URL):
		if _, _, err := decodeDataURL(img.URL); err != nil {
			return "", err
		}
		return strings.TrimSpace(img.URL), nil
	case img.URL != "":
		return img.URL, nil
	}
	return "", fmt.Errorf("no image provided")
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

