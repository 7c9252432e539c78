package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// GeminiAPIURL is the generateContent endpoint; %s receives the model id.
	GeminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent"
	// GeminiModel is the default model when none is configured.
	GeminiModel = "gemini-2.0-flash"
)

// RetryConfig defines retry behavior for Gemini API calls.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns the retry policy used in production: three
// attempts with a 2s base delay doubling between them.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates    []geminiCandidate    `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// GeminiClient talks to the Google generative language REST API. It caches
// responses process-wide and retries transient failures with exponential
// backoff. Safe for concurrent use.
type GeminiClient struct {
	apiKey      string
	baseURL     string
	model       string
	httpClient  *http.Client
	retryConfig RetryConfig
	cache       *ResponseCache
	logger      *logrus.Logger
	recorder    UsageRecorder

	requestCount int64
	cacheHits    int64
	errorCount   int64
	latencySumMS int64
}

// NewGeminiClient creates a client with the default retry policy and a
// fresh bounded cache.
func NewGeminiClient(apiKey, baseURL, model string, logger *logrus.Logger) *GeminiClient {
	return NewGeminiClientWithCache(apiKey, baseURL, model, NewResponseCache(0), logger)
}

// NewGeminiClientWithCache creates a client sharing the supplied cache.
func NewGeminiClientWithCache(apiKey, baseURL, model string, cache *ResponseCache, logger *logrus.Logger) *GeminiClient {
	if baseURL == "" {
		baseURL = GeminiAPIURL
	}
	if model == "" {
		model = GeminiModel
	}
	if cache == nil {
		cache = NewResponseCache(0)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &GeminiClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		retryConfig: DefaultRetryConfig(),
		cache:       cache,
		logger:      logger,
	}
}

// SetRetryConfig overrides the retry policy. Intended for tests and hosts
// with unusual upstream latency.
func (c *GeminiClient) SetRetryConfig(cfg RetryConfig) {
	c.retryConfig = cfg
}

// SetUsageRecorder mirrors request accounting into r. Must be called before
// the client serves traffic.
func (c *GeminiClient) SetUsageRecorder(r UsageRecorder) {
	c.recorder = r
}

// AnalyzeText sends a text-only prompt.
func (c *GeminiClient) AnalyzeText(ctx context.Context, prompt string) (*Result, error) {
	return c.generate(ctx, "analyze_text", prompt, nil, []geminiPart{{Text: prompt}})
}

// AnalyzeImage sends a vision prompt with one inline image.
func (c *GeminiClient) AnalyzeImage(ctx context.Context, data []byte, prompt string) (*Result, error) {
	parts := []geminiPart{
		{Text: prompt},
		{InlineData: &geminiInlineData{
			MimeType: http.DetectContentType(data),
			Data:     base64.StdEncoding.EncodeToString(data),
		}},
	}
	return c.generate(ctx, "analyze_image", prompt, data, parts)
}

// AnalyzeMultimodal sends a prompt with an arbitrary part sequence, used
// for frame-by-frame video analysis.
func (c *GeminiClient) AnalyzeMultimodal(ctx context.Context, parts []Part, prompt string) (*Result, error) {
	gparts := make([]geminiPart, 0, len(parts)+1)
	gparts = append(gparts, geminiPart{Text: prompt})
	fingerprint := make([]byte, 0)
	for _, p := range parts {
		if len(p.Data) > 0 {
			mime := p.MIMEType
			if mime == "" {
				mime = http.DetectContentType(p.Data)
			}
			gparts = append(gparts, geminiPart{InlineData: &geminiInlineData{
				MimeType: mime,
				Data:     base64.StdEncoding.EncodeToString(p.Data),
			}})
			fingerprint = append(fingerprint, p.Data...)
		} else if p.Text != "" {
			gparts = append(gparts, geminiPart{Text: p.Text})
			fingerprint = append(fingerprint, []byte(p.Text)...)
		}
	}
	return c.generate(ctx, "analyze_multimodal", prompt, fingerprint, gparts)
}

// Metrics returns a snapshot of request accounting.
func (c *GeminiClient) Metrics() Metrics {
	requests := atomic.LoadInt64(&c.requestCount)
	m := Metrics{
		RequestCount: requests,
		CacheHits:    atomic.LoadInt64(&c.cacheHits),
		ErrorCount:   atomic.LoadInt64(&c.errorCount),
	}
	if requests > 0 {
		m.AvgLatencyMS = float64(atomic.LoadInt64(&c.latencySumMS)) / float64(requests)
	}
	return m
}

func (c *GeminiClient) generate(ctx context.Context, method, prompt string, binary []byte, parts []geminiPart) (*Result, error) {
	key := CacheKey(method, c.model, prompt, binary)
	if res, ok := c.cache.Get(ctx, key); ok {
		atomic.AddInt64(&c.cacheHits, 1)
		if c.recorder != nil {
			c.recorder.RecordCacheHit()
		}
		return res, nil
	}

	start := time.Now()
	req := geminiRequest{
		Contents: []geminiContent{{Parts: parts, Role: "user"}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.1,
			MaxOutputTokens: 4096,
		},
	}

	resp, err := c.makeAPICall(ctx, req)
	if err != nil {
		atomic.AddInt64(&c.errorCount, 1)
		if c.recorder != nil {
			c.recorder.RecordError()
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	atomic.AddInt64(&c.requestCount, 1)
	atomic.AddInt64(&c.latencySumMS, time.Since(start).Milliseconds())
	if c.recorder != nil {
		c.recorder.RecordRequest()
	}

	result := convertResponse(resp)
	c.cache.Set(ctx, key, result)
	return result, nil
}

func convertResponse(resp *geminiResponse) *Result {
	result := &Result{}
	if len(resp.Candidates) > 0 {
		for _, part := range resp.Candidates[0].Content.Parts {
			result.Text += part.Text
		}
	}
	if resp.UsageMetadata != nil {
		result.Usage = Usage{
			PromptTokens:    resp.UsageMetadata.PromptTokenCount,
			CandidateTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
	}
	return result
}

func (c *GeminiClient) makeAPICall(ctx context.Context, req geminiRequest) (*geminiResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf(c.baseURL, c.model)

	var lastErr error
	delay := c.retryConfig.InitialDelay

	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("x-goog-api-key", c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("HTTP request failed: %w", err)
			if attempt < c.retryConfig.MaxAttempts {
				c.waitWithJitter(ctx, delay)
				delay = c.nextDelay(delay)
				continue
			}
			break
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response body: %w", err)
			break
		}

		if isRetryableStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("HTTP %d: retryable error", resp.StatusCode)
			if attempt < c.retryConfig.MaxAttempts {
				c.logger.WithFields(logrus.Fields{
					"attempt": attempt,
					"status":  resp.StatusCode,
				}).Warn("retrying Gemini request")
				c.waitWithJitter(ctx, delay)
				delay = c.nextDelay(delay)
				continue
			}
			break
		}

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("Gemini API error: %d - %s", resp.StatusCode, string(respBody))
		}

		var geminiResp geminiResponse
		if err := json.Unmarshal(respBody, &geminiResp); err != nil {
			return nil, fmt.Errorf("failed to parse Gemini response: %w", err)
		}
		return &geminiResp, nil
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", c.retryConfig.MaxAttempts, lastErr)
}

func isRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func (c *GeminiClient) waitWithJitter(ctx context.Context, delay time.Duration) {
	jitter := time.Duration(rand.Float64() * 0.1 * float64(delay)) // #nosec G404 - jitter doesn't require cryptographic randomness
	select {
	case <-ctx.Done():
	case <-time.After(delay + jitter):
	}
}

func (c *GeminiClient) nextDelay(currentDelay time.Duration) time.Duration {
	next := time.Duration(float64(currentDelay) * c.retryConfig.Multiplier)
	if next > c.retryConfig.MaxDelay {
		next = c.retryConfig.MaxDelay
	}
	return next
}
