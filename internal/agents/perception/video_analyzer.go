package perception

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/surakshanet/surakshanet/internal/llm"
	"github.com/surakshanet/surakshanet/internal/models"
)

// FrameSource points at a short video clip, either on disk or in memory.
type FrameSource struct {
	Path string
	Data []byte
}

// FrameExtractor samples JPEG-encoded frames from a video. Implementations
// compute the sampling step from the stream's framerate as
// max(1, round(intervalS * fps)) and never return more than maxFrames
// frames.
type FrameExtractor interface {
	Extract(ctx context.Context, data []byte, intervalS, maxFrames int) ([][]byte, error)
}

// maxSampledFrames caps how many frames accompany one multimodal prompt.
const maxSampledFrames = 8

const videoPromptTemplate = `You are a video forensics analyst. The attached images are frames
sampled in order from a single video clip. Assess the clip for deepfake
or manipulation evidence, paying attention to temporal inconsistencies
between frames (lighting shifts, identity drift, boundary artifacts).

Respond ONLY with strict JSON:
{"deepfake_score": 0-100, "manipulation_type": string,
"frame_analyses": [{"frame_index": int, "score": 0-100, "notes": string}],
"temporal_inconsistencies": [string], "overall_confidence": 0.0-1.0,
"evidence_timeline": [object]}`

type videoLLMVerdict struct {
	DeepfakeScore           float64                `json:"deepfake_score"`
	ManipulationType        string                 `json:"manipulation_type"`
	FrameAnalyses           []models.FrameAnalysis `json:"frame_analyses"`
	TemporalInconsistencies []string               `json:"temporal_inconsistencies"`
	OverallConfidence       float64                `json:"overall_confidence"`
}

// VideoAnalyzer samples frames from a clip and requests a single
// multimodal verdict over the sequence.
type VideoAnalyzer struct {
	client    llm.Client
	extractor FrameExtractor
	logger    *logrus.Logger
}

// NewVideoAnalyzer creates a video perception agent. A nil extractor
// defaults to the MJPEG reader.
func NewVideoAnalyzer(client llm.Client, extractor FrameExtractor, logger *logrus.Logger) *VideoAnalyzer {
	if extractor == nil {
		extractor = NewMJPEGExtractor(0)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &VideoAnalyzer{client: client, extractor: extractor, logger: logger}
}

// AnalyzeVideo extracts frames at the configured interval and asks the
// model for a temporal manipulation verdict. Decode or upstream failures
// yield the neutral result with confidence 0.
func (a *VideoAnalyzer) AnalyzeVideo(ctx context.Context, src FrameSource, frameIntervalS int) (*models.VideoAnalysisResult, error) {
	if frameIntervalS <= 0 {
		frameIntervalS = 1
	}

	data := src.Data
	if len(data) == 0 && src.Path != "" {
		var err error
		data, err = os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: reading video: %v", ErrUnsupportedMedia, err)
		}
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty video source", ErrUnsupportedMedia)
	}

	frames, err := a.extractor.Extract(ctx, data, frameIntervalS, maxSampledFrames)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: no frames extracted", ErrUnsupportedMedia)
	}

	parts := make([]llm.Part, len(frames))
	for i, frame := range frames {
		parts[i] = llm.Part{MIMEType: "image/jpeg", Data: frame}
	}

	res, err := a.client.AnalyzeMultimodal(ctx, parts, videoPromptTemplate)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.WithError(err).Warn("video analyzer returning neutral verdict")
		return a.NeutralResult(), nil
	}

	var verdict videoLLMVerdict
	if !llm.DecodeJSON(res.Text, &verdict) {
		return a.NeutralResult(), nil
	}

	return &models.VideoAnalysisResult{
		DeepfakeScore:           clamp(verdict.DeepfakeScore, 0, 100),
		ManipulationType:        verdict.ManipulationType,
		FrameAnalyses:           verdict.FrameAnalyses,
		TemporalInconsistencies: verdict.TemporalInconsistencies,
		OverallConfidence:       verdict.OverallConfidence,
	}, nil
}

// NeutralResult returns the substitute used when the video task fails or
// times out.
func (a *VideoAnalyzer) NeutralResult() *models.VideoAnalysisResult {
	return &models.VideoAnalysisResult{ManipulationType: "unknown"}
}

// MJPEGExtractor reads motion-JPEG streams, which are concatenated JPEG
// images. Container formats that need a real demuxer are out of scope for
// the default extractor; hosts with such inputs inject their own
// FrameExtractor.
type MJPEGExtractor struct {
	fps float64
}

// NewMJPEGExtractor creates an extractor assuming the given framerate;
// values at or below zero default to 25 fps.
func NewMJPEGExtractor(fps float64) *MJPEGExtractor {
	if fps <= 0 {
		fps = 25
	}
	return &MJPEGExtractor{fps: fps}
}

var (
	jpegSOI = []byte{0xFF, 0xD8, 0xFF}
	jpegEOI = []byte{0xFF, 0xD9}
)

// Extract implements FrameExtractor.
func (e *MJPEGExtractor) Extract(_ context.Context, data []byte, intervalS, maxFrames int) ([][]byte, error) {
	all := splitJPEGFrames(data)
	if len(all) == 0 {
		return nil, fmt.Errorf("no JPEG frames found in stream")
	}

	step := int(math.Round(float64(intervalS) * e.fps))
	if step < 1 {
		step = 1
	}

	var sampled [][]byte
	for i := 0; i < len(all) && len(sampled) < maxFrames; i += step {
		sampled = append(sampled, all[i])
	}
	return sampled, nil
}

func splitJPEGFrames(data []byte) [][]byte {
	var frames [][]byte
	offset := 0
	for {
		start := bytes.Index(data[offset:], jpegSOI)
		if start == -1 {
			break
		}
		start += offset
		end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
		if end == -1 {
			break
		}
		end += start + len(jpegSOI) + len(jpegEOI)
		frames = append(frames, data[start:end])
		offset = end
	}
	return frames
}
