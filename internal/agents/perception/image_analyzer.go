package perception

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/sirupsen/logrus"

	"github.com/surakshanet/surakshanet/internal/llm"
	"github.com/surakshanet/surakshanet/internal/models"
)

// ErrUnsupportedMedia is returned when submitted bytes cannot be decoded as
// a supported media format.
var ErrUnsupportedMedia = errors.New("unsupported media")

// QRDecoder extracts QR payloads from a decoded image. Decoding is
// best-effort; a nil decoder is valid and simply skips the step.
type QRDecoder interface {
	Decode(img image.Image) ([]string, error)
}

const imagePromptTemplate = `You are a visual threat analyst. Examine the attached image for
evidence of deepfakes, manipulation, or visual social engineering
(fake login pages, forged documents, QR lures).%s

Respond ONLY with strict JSON:
{"visual_threat_score": 0-100, "deepfake_probability": 0.0-1.0,
"manipulation_indicators": [string], "authenticity_assessment": string,
"confidence": 0.0-1.0, "evidence": [object], "reasoning": string}`

type imageLLMVerdict struct {
	VisualThreatScore      float64  `json:"visual_threat_score"`
	DeepfakeProbability    float64  `json:"deepfake_probability"`
	ManipulationIndicators []string `json:"manipulation_indicators"`
	AuthenticityAssessment string   `json:"authenticity_assessment"`
	Confidence             float64  `json:"confidence"`
}

// ImageAnalyzer extracts image metadata and obtains a manipulation verdict
// from the vision model.
type ImageAnalyzer struct {
	client    llm.Client
	qrDecoder QRDecoder
	logger    *logrus.Logger
}

// NewImageAnalyzer creates an image perception agent. qrDecoder may be nil.
func NewImageAnalyzer(client llm.Client, qrDecoder QRDecoder, logger *logrus.Logger) *ImageAnalyzer {
	if logger == nil {
		logger = logrus.New()
	}
	return &ImageAnalyzer{client: client, qrDecoder: qrDecoder, logger: logger}
}

// AnalyzeImage decodes the image, optionally scans for QR payloads, and
// requests a vision verdict. Undecodable bytes return ErrUnsupportedMedia;
// an unparseable model response yields a zero-score result with
// confidence 0.
func (a *ImageAnalyzer) AnalyzeImage(ctx context.Context, data []byte, contextNote string) (*models.ImageAnalysisResult, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMedia, err)
	}
	bounds := img.Bounds()

	result := &models.ImageAnalysisResult{
		Metadata: models.ImageMetadata{
			Format: strings.ToUpper(format),
			Size:   [2]int{bounds.Dx(), bounds.Dy()},
			Mode:   colorMode(img),
		},
	}

	if a.qrDecoder != nil {
		payloads, err := a.qrDecoder.Decode(img)
		if err != nil {
			a.logger.WithError(err).Debug("QR decode failed")
		} else {
			result.QRPayloads = payloads
		}
	}

	note := ""
	if contextNote != "" {
		note = "\nContext: " + contextNote
	}
	prompt := fmt.Sprintf(imagePromptTemplate, note)

	res, err := a.client.AnalyzeImage(ctx, data, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.WithError(err).Warn("image analyzer returning neutral verdict")
		return result, nil
	}

	var verdict imageLLMVerdict
	if !llm.DecodeJSON(res.Text, &verdict) {
		return result, nil
	}

	result.VisualThreatScore = clamp(verdict.VisualThreatScore, 0, 100)
	result.DeepfakeAnalysis = models.DeepfakeAnalysis{
		Probability:  verdict.DeepfakeProbability,
		Authenticity: verdict.AuthenticityAssessment,
		Indicators:   verdict.ManipulationIndicators,
	}
	result.Confidence = verdict.Confidence
	return result, nil
}

// NeutralResult returns the substitute used when the image task fails or
// times out.
func (a *ImageAnalyzer) NeutralResult() *models.ImageAnalysisResult {
	return &models.ImageAnalysisResult{}
}

func colorMode(img image.Image) string {
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return "RGBA"
	case *image.Paletted:
		return "P"
	case *image.CMYK:
		return "CMYK"
	default:
		return "RGB"
	}
}
