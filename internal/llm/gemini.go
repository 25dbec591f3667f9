package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.30
	geminiOutputPricePerMillion = 2.50
)

const retryInfoType = "type.googleapis.com/google.rpc.RetryInfo"

// GeminiProvider uses Google's Gemini API for product evaluation.
type GeminiProvider struct {
	client  *genai.Client
	model   string
	fetcher *ImageFetcher

	// Last downloaded image, reused when an attempt is retried.
	mu   sync.Mutex
	last fetchedImage
}

type fetchedImage struct {
	url  string
	data []byte
	mime string
}

// NewGeminiProvider creates a Gemini-based provider. An empty apiKey yields
// a provider that reports HasCredential() == false instead of failing, so
// the evaluator can surface a ConfigMissing error to its caller.
func NewGeminiProvider(ctx context.Context, apiKey, model string, fetcher *ImageFetcher) (*GeminiProvider, error) {
	if model == "" {
		model = defaultGeminiModel
	}
	if fetcher == nil {
		fetcher = NewImageFetcher()
	}
	p := &GeminiProvider{model: model, fetcher: fetcher}
	if apiKey == "" {
		return p, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	p.client = client
	return p, nil
}

func (g *GeminiProvider) Name() string        { return "gemini" }
func (g *GeminiProvider) HasCredential() bool { return g.client != nil }

// Generate sends the prompt and image to Gemini.
func (g *GeminiProvider) Generate(ctx context.Context, prompt Prompt) (*RawResponse, error) {
	if g.client == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}

	imageData, mimeType, rejected, err := g.resolveImage(ctx, prompt.Image)
	if err != nil {
		return nil, err
	}
	if rejected != nil {
		return rejected, nil
	}

	parts := []*genai.Part{
		genai.NewPartFromText(prompt.Task),
		{InlineData: &genai.Blob{Data: imageData, MIMEType: mimeType}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		ResponseMIMEType:  "application/json",
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		if apiErr, ok := asAPIError(err); ok {
			return apiErrorResponse(apiErr), nil
		}
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	text := ""
	if len(result.Candidates) > 0 && result.Candidates[0].Content != nil && len(result.Candidates[0].Content.Parts) > 0 {
		text = result.Text()
	}

	usage := Usage{}
	if result.UsageMetadata != nil {
		usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		usage.CostUSD = calculateCost(usage.InputTokens, usage.OutputTokens, geminiInputPricePerMillion, geminiOutputPricePerMillion)
	}

	log.Info().
		Str("model", g.model).
		Int64("inputTokens", usage.InputTokens).
		Int64("outputTokens", usage.OutputTokens).
		Float64("costUSD", usage.CostUSD).
		Int("responseLength", len(text)).
		Msg("evaluation llm call")

	return &RawResponse{StatusCode: http.StatusOK, Body: text, Usage: usage}, nil
}

// resolveImage turns the image reference into bytes. A malformed or
// unusable image is reported as a 400 response.
func (g *GeminiProvider) resolveImage(ctx context.Context, img Image) ([]byte, string, *RawResponse, error) {
	switch {
	case len(img.Data) > 0:
		return img.Data, pickMIME(img.MIMEType, "", img.Data), nil, nil
	case isDataURL(img.URL):
		data, mime, err := decodeDataURL(img.URL)
		if err != nil {
			return nil, "", &RawResponse{StatusCode: http.StatusBadRequest, Body: err.Error()}, nil
		}
		return data, pickMIME(img.MIMEType, mime, data), nil, nil
	case img.URL != "":
		data, mime, err := g.fetch(ctx, img.URL)
		if err != nil {
			var imgErr *ImageError
			if errors.As(err, &imgErr) {
				return nil, "", &RawResponse{StatusCode: http.StatusBadRequest, Body: imgErr.Error()}, nil
			}
			return nil, "", nil, err
		}
		return data, pickMIME(img.MIMEType, mime, data), nil, nil
	default:
		return nil, "", &RawResponse{StatusCode: http.StatusBadRequest, Body: "no image provided"}, nil
	}
}

// fetch downloads url unless it is the image fetched last.
func (g *GeminiProvider) fetch(ctx context.Context, url string) ([]byte, string, error) {
	g.mu.Lock()
	last := g.last
	g.mu.Unlock()
	if last.url == url {
		return last.data, last.mime, nil
	}

	data, mime, err := g.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, "", err
	}
	g.mu.Lock()
	g.last = fetchedImage{url: url, data: data, mime: mime}
	g.mu.Unlock()
	return data, mime, nil
}

func asAPIError(err error) (genai.APIError, bool) {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := e.(type) {
		case genai.APIError:
			return v, true
		case *genai.APIError:
			if v != nil {
				return *v, true
			}
		}
	}
	return genai.APIError{}, false
}

func apiErrorResponse(apiErr genai.APIError) *RawResponse {
	status := apiErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}
	msg := apiErr.Message
	if msg == "" {
		msg = apiErr.Status
	}
	return &RawResponse{
		StatusCode: status,
		RetryAfter: retryDelayFromDetails(apiErr.Details),
		Body:       msg,
	}
}

// retryDelayFromDetails reads google.rpc.RetryInfo from error details.
func retryDelayFromDetails(details []map[string]any) time.Duration {
	for _, d := range details {
		if t, _ := d["@type"].(string); t != retryInfoType {
			continue
		}
		raw, _ := d["retryDelay"].(string)
		if raw == "" {
			continue
		}
		if dur, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil && dur > 0 {
			return dur
		}
	}
	return 0
}
