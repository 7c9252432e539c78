package llm

import (
	"context"
	"errors"
)

// ErrUpstreamUnavailable is returned when the generative model could not be
// reached after all retry attempts.
var ErrUpstreamUnavailable = errors.New("llm upstream unavailable")

// Usage records token accounting reported by the upstream model. Both
// counts are zero when the upstream omits usage metadata.
type Usage struct {
	PromptTokens    int `json:"prompt_tokens"`
	CandidateTokens int `json:"candidate_tokens"`
}

// Result is a single model response.
type Result struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Part is one element of a multimodal prompt. Exactly one of Text or Data
// is set; Data carries MIMEType.
type Part struct {
	Text     string
	MIMEType string
	Data     []byte
}

// Metrics is a point-in-time snapshot of client activity. Cache hits do not
// count toward RequestCount.
type Metrics struct {
	RequestCount int64   `json:"request_count"`
	CacheHits    int64   `json:"cache_hits"`
	ErrorCount   int64   `json:"error_count"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// UsageRecorder receives per-call accounting events, mirroring the client's
// own counters into an external collector. Implementations must be safe for
// concurrent use.
type UsageRecorder interface {
	RecordRequest()
	RecordCacheHit()
	RecordError()
}

// Client is the sole gateway to the external generative model. All methods
// are safe for concurrent use; responses are served from a shared cache
// when an identical request was answered before.
type Client interface {
	AnalyzeText(ctx context.Context, prompt string) (*Result, error)
	AnalyzeImage(ctx context.Context, data []byte, prompt string) (*Result, error)
	AnalyzeMultimodal(ctx context.Context, parts []Part, prompt string) (*Result, error)
	Metrics() Metrics
}
